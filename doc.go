// Package zarr reads and writes Zarr v2 arrays and groups: chunked,
// compressed, N-dimensional arrays stored as a directory tree of JSON
// metadata and binary chunk files.
package zarr
