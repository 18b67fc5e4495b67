package fdstream

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrStreamDestroyed is handed to write callbacks that were still queued
	// (or in flight) when the stream was destroyed.
	ErrStreamDestroyed = errors.New("stream destroyed")

	// ErrWriteAfterEnd is returned for writes issued on a closed or failed stream.
	ErrWriteAfterEnd = errors.New("write after end")
)

// OpenError reports a failure to open the stream's file.
type OpenError struct {
	Path string
	Err  error
}

func newOpenError(path string, err error) *OpenError {
	return &OpenError{Path: path, Err: errors.WithStack(err)}
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, errors.Cause(e.Err))
}

func (e *OpenError) Unwrap() error { return e.Err }

// IOError reports a failed read or write on an open descriptor.
type IOError struct {
	Op     string
	Path   string
	Offset int64
	Err    error
}

func newIOError(op, path string, offset int64, err error) *IOError {
	return &IOError{Op: op, Path: path, Offset: offset, Err: errors.WithStack(err)}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s at offset %d: %v", e.Op, e.Path, e.Offset, errors.Cause(e.Err))
}

func (e *IOError) Unwrap() error { return e.Err }
