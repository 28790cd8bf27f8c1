// Package hdf5 provides a pure Go implementation for reading HDF5 files.
package hdf5

import (
	"errors"

	"github.com/h5kit/hdf5/internal/errs"
)

// Common errors
var (
	ErrNotHDF5       = errors.New("not an HDF5 file")
	ErrNotFound      = errors.New("object not found")
	ErrNotDataset    = errors.New("object is not a dataset")
	ErrNotGroup      = errors.New("object is not a group")
	ErrUnsupported   = errors.New("unsupported feature")
	ErrInvalidPath   = errors.New("invalid path")
	ErrClosed        = errors.New("file is closed")
	ErrLinkDepth     = errors.New("maximum link depth exceeded")

	// Specific not-found errors for different object types
	ErrDatasetNotFound   = errors.New("dataset not found")
	ErrGroupNotFound     = errors.New("group not found")
	ErrAttributeNotFound = errors.New("attribute not found")
)

// MaxLinkDepth is the maximum number of soft/external links that can be followed
// in a single path resolution. This prevents stack overflow from deeply nested links.
const MaxLinkDepth = 100

// wrapErr builds a structured errs.Error (Kind/Op/ObjectPath, with a
// pkg/errors stack trace on cause) around one of this package's sentinels.
// Unwrap() still reaches the sentinel, so existing errors.Is(err,
// ErrNotFound)-style checks at call sites keep working while StackTrace(err)
// and Kind-based branching become available to callers that want them.
func wrapErr(kind errs.Kind, op string, sentinel error, objectPath string) error {
	e := errs.New(kind, op, nil).As(sentinel)
	if objectPath != "" {
		e = e.WithObject(objectPath)
	}
	return e
}
