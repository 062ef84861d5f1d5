package vecfeed

import (
	"errors"

	"github.com/kailas-cloud/vecfeed/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnknownDomain     = domain.ErrUnknownDomain
	ErrNotFound          = domain.ErrNotFound
	ErrUnsupportedFormat = domain.ErrUnsupportedFormat
	ErrRowDecode         = domain.ErrRowDecode
	ErrValidation        = domain.ErrValidation
	ErrDimensionMismatch = domain.ErrDimensionMismatch
	ErrTransport         = domain.ErrTransport
	ErrNoRecords         = domain.ErrNoRecords
	ErrInvalidRequest    = domain.ErrInvalidRequest
)

// ErrCheckpointsDisabled is returned by checkpoint operations on a client
// built without WithValkey or WithRedis.
var ErrCheckpointsDisabled = errors.New("vecfeed: checkpoint store not configured")
