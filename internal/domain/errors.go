package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDomain signals a domain name absent from the schema registry.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrNotFound signals a missing source file.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedFormat signals a source file extension with no reader.
	ErrUnsupportedFormat = errors.New("unsupported source format")
	// ErrRowDecode signals structurally corrupt source data.
	ErrRowDecode = errors.New("row decode failed")
	// ErrValidation signals a record that violates its domain schema.
	ErrValidation = errors.New("record validation failed")
	// ErrDimensionMismatch signals an embedding width different from the domain dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrTransport signals a failed stream or a rejection by the batch writer.
	ErrTransport = errors.New("transport failure")
	// ErrNoRecords signals that nothing was left to stream after preprocessing and filtering.
	ErrNoRecords = errors.New("no data to send")
	// ErrInvalidRequest signals a malformed ingestion request.
	ErrInvalidRequest = errors.New("invalid request")
)

// RowDecodeError wraps ErrRowDecode with the file position of the corrupt row.
type RowDecodeError struct {
	Path string
	Row  int // 1-based data row, 0 when the whole container is unreadable
	Err  error
}

func (e *RowDecodeError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: %s row %d: %v", ErrRowDecode.Error(), e.Path, e.Row, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrRowDecode.Error(), e.Path, e.Err)
}

func (e *RowDecodeError) Unwrap() []error { return []error{ErrRowDecode, e.Err} }

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for a field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DimensionMismatchError wraps ErrDimensionMismatch with both widths.
type DimensionMismatchError struct {
	Domain   string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: domain %q expects %d, data has %d",
		ErrDimensionMismatch.Error(), e.Domain, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// TransportError wraps ErrTransport with the stream operation that failed.
type TransportError struct {
	Op  string // dial, open, send, recv, ack, rejected
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport.Error(), e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// NewTransportError creates a transport error for a stream operation.
func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
