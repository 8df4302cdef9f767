package exchange

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoOrders is returned when a submission carries no orders.
var ErrNoOrders = errors.New("exchange: at least one order required")

// EncodingError reports an order or action field that cannot be represented on the wire.
// Fatal to the submission; never retried.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("exchange: encode: %v", e.Err)
	}
	return fmt.Sprintf("exchange: encode %s: %v", e.Field, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// SigningError reports unavailable or invalid key material.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string { return fmt.Sprintf("exchange: sign: %v", e.Err) }

func (e *SigningError) Unwrap() error { return e.Err }

// TransportError wraps network failures and timeouts. Callers may retry with backoff.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("exchange: transport %s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("exchange: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClientError is a 4xx rejection attributed to the request content
// (bad nonce, bad signature, insufficient margin). Not retried verbatim.
type ClientError struct {
	StatusCode int
	Code       *uint16
	Message    string
	Data       *string
}

func (e *ClientError) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("exchange: client error status=%d code=%d: %s", e.StatusCode, *e.Code, e.Message)
	}
	return fmt.Sprintf("exchange: client error status=%d: %s", e.StatusCode, e.Message)
}

// ServerError is a 5xx failure attributed to the venue. Safe to retry with backoff.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("exchange: server error status=%d: %s", e.StatusCode, e.Message)
}

// StageError annotates a failure with the pipeline stage that produced it.
// Only produced when stage timing is enabled.
type StageError struct {
	Stage   string
	Elapsed time.Duration
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v (stage=%s after %s)", e.Err, e.Stage, e.Elapsed)
}

func (e *StageError) Unwrap() error { return e.Err }

// NonceError carries the nonce a failed submission consumed. Nonces are never
// rolled back, so journals and retries need it even when nothing was accepted.
type NonceError struct {
	Nonce uint64
	Err   error
}

func (e *NonceError) Error() string { return e.Err.Error() }

func (e *NonceError) Unwrap() error { return e.Err }

// ConsumedNonce returns the nonce recorded on err, if the failure happened
// after one was allocated.
func ConsumedNonce(err error) (uint64, bool) {
	var nonceErr *NonceError
	if errors.As(err, &nonceErr) {
		return nonceErr.Nonce, true
	}
	return 0, false
}

// IsRetryable reports whether a failed submission may be retried with backoff.
// Only transport and server faults qualify; everything else needs a corrected request.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}

// ErrorClass names the taxonomy bucket of err, for logs and journals.
func ErrorClass(err error) string {
	var (
		encodingErr  *EncodingError
		signingErr   *SigningError
		transportErr *TransportError
		clientErr    *ClientError
		serverErr    *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &encodingErr):
		return "encoding"
	case errors.As(err, &signingErr):
		return "signing"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &clientErr):
		return "client"
	case errors.As(err, &serverErr):
		return "server"
	default:
		return "unknown"
	}
}
