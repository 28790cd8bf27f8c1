// Package errs implements the structured error taxonomy used across the
// codec: every failure carries a Kind, the operation that raised it, the
// file/object path involved, a details string, and recovery hints.
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an error the way callers are expected to branch on.
type Kind int

const (
	// Unknown is the zero value; never constructed deliberately.
	Unknown Kind = iota
	InvalidSignature
	UnsupportedVersion
	UnsupportedFeature
	UnsupportedDatatype
	PathNotFound
	DatasetNotFound
	GroupNotFound
	NotADataset
	NotAGroup
	CircularLink
	CorruptedFile
	DecompressionError
	IoError
	InvalidChunkDimensions
	InvalidDatasetName
	GroupPathConflict
	DataValidationError
	AttributeValidationError
	InsufficientSpace
	WriteInterrupted
)

func (k Kind) String() string {
	switch k {
	case InvalidSignature:
		return "InvalidSignature"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case UnsupportedFeature:
		return "UnsupportedFeature"
	case UnsupportedDatatype:
		return "UnsupportedDatatype"
	case PathNotFound:
		return "PathNotFound"
	case DatasetNotFound:
		return "DatasetNotFound"
	case GroupNotFound:
		return "GroupNotFound"
	case NotADataset:
		return "NotADataset"
	case NotAGroup:
		return "NotAGroup"
	case CircularLink:
		return "CircularLink"
	case CorruptedFile:
		return "CorruptedFile"
	case DecompressionError:
		return "DecompressionError"
	case IoError:
		return "IoError"
	case InvalidChunkDimensions:
		return "InvalidChunkDimensions"
	case InvalidDatasetName:
		return "InvalidDatasetName"
	case GroupPathConflict:
		return "GroupPathConflict"
	case DataValidationError:
		return "DataValidationError"
	case AttributeValidationError:
		return "AttributeValidationError"
	case InsufficientSpace:
		return "InsufficientSpace"
	case WriteInterrupted:
		return "WriteInterrupted"
	default:
		return "Unknown"
	}
}

// Error is the structured error value propagated by every operation in the
// codec. It is always returned by value from constructors, never thrown.
type Error struct {
	Kind       Kind
	Op         string // operation that failed, e.g. "superblock.Read"
	FilePath   string
	ObjectPath string
	Details    string // e.g. "offset 0x200: bad signature"
	Hints      []string
	cause      error
}

// New constructs a structured error. cause may be nil.
func New(kind Kind, op string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, cause: wrapped}
}

// WithPath sets the file path.
func (e *Error) WithPath(path string) *Error {
	e.FilePath = path
	return e
}

// WithObject sets the object path.
func (e *Error) WithObject(path string) *Error {
	e.ObjectPath = path
	return e
}

// WithDetails sets the details string, typically including a hex offset.
func (e *Error) WithDetails(format string, args ...any) *Error {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// WithHints appends recovery hints.
func (e *Error) WithHints(hints ...string) *Error {
	e.Hints = append(e.Hints, hints...)
	return e
}

// As lets Unwrap targets stand in for this error under errors.Is, so public
// sentinel errors (hdf5.ErrNotFound, ...) keep matching after being wrapped
// in a structured Error.
func (e *Error) As(target error) *Error {
	e.cause = target
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		fmt.Fprintf(&b, " [%s]", e.Op)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %s", e.cause.Error())
	}
	if e.ObjectPath != "" {
		fmt.Fprintf(&b, " (object %q)", e.ObjectPath)
	}
	if e.FilePath != "" {
		fmt.Fprintf(&b, " (file %q)", e.FilePath)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " — %s", e.Details)
	}
	return b.String()
}

// Unwrap lets errors.Is/errors.As see through to the underlying sentinel or
// wrapped cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// StackTrace returns the pkg/errors stack trace attached to err's cause, if
// any was captured (debug builds / New(...) with a non-nil cause).
func StackTrace(err error) errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var st stackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return nil
}
