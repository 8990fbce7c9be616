package zarr

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// loggerKey is the context key a logr.Logger is stored under. gocloud.dev's
// own blob providers thread OpenTelemetry spans through every call; this
// core follows the same convention for the logger half of its observability
// so a caller's ambient logging/tracing setup covers both layers uniformly.
type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// WithLogger returns a context carrying logger. OpenBucketStore takes its
// logger from this context and uses it for every later read and write on
// the store; Array and Group operations do not consult it.
func WithLogger(ctx context.Context, logger logr.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func loggerFromContext(ctx context.Context) logr.Logger {
	if l, ok := ctx.Value(loggerKey).(logr.Logger); ok {
		return l
	}
	return logr.Discard()
}

var tracer = otel.Tracer("github.com/nimbuslabs/go-zarr")

func startSpan(ctx context.Context, name, path string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("zarr.path", path))
	return ctx, span
}
