// Package iobuf provides small io.ReadCloser composition helpers for
// serving a byte subrange of a local file: seeking to a starting offset
// and capping how many bytes come back afterward.
package iobuf
