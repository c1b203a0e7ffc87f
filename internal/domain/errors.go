package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the reportship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrNotFound is returned when an input resource does not exist.
	ErrNotFound = errors.New("reportship: resource not found")

	// ErrParse is returned when an input resource is not a rectangular table
	// with a header row, or its encoding is invalid.
	ErrParse = errors.New("reportship: parse error")

	// ErrSchema is returned when a referenced column is absent or has the wrong kind.
	ErrSchema = errors.New("reportship: schema error")

	// ErrEmptyInput is returned when a table has zero rows and the caller rejects that.
	ErrEmptyInput = errors.New("reportship: empty input")

	// ErrNoRecipientColumn is a soft condition: no column naming an email address exists.
	// Callers degrade to an empty RecipientSet instead of aborting.
	ErrNoRecipientColumn = errors.New("reportship: no recipient column")

	// ErrDelivery is matched by every *DeliveryError.
	ErrDelivery = errors.New("reportship: delivery failed")

	// ErrAlreadyRunning is returned when a run or the service is already active.
	ErrAlreadyRunning = errors.New("reportship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("reportship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("reportship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("reportship: invalid configuration")
)

// DeliveryReason classifies the transport-level cause of a delivery failure.
type DeliveryReason string

const (
	DeliveryReasonAuth       DeliveryReason = "auth"
	DeliveryReasonConnection DeliveryReason = "connection"
	DeliveryReasonAttachment DeliveryReason = "attachment"
	DeliveryReasonTransport  DeliveryReason = "transport"
)

// DeliveryError carries the transport-level cause of a failed delivery.
type DeliveryError struct {
	Reason DeliveryReason
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", ErrDelivery.Error(), e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", ErrDelivery.Error(), e.Reason, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *DeliveryError) Unwrap() error { return e.Err }

// Is reports ErrDelivery as a match so callers can use errors.Is(err, ErrDelivery).
func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }
