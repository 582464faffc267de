package mega

import (
	"errors"
	"fmt"
)

// Link and key errors. All of these are deterministic: retrying the same
// input cannot succeed, so callers must treat them as terminal.
var (
	ErrMalformedLink        = errors.New("unrecognized MEGA link format")
	ErrMissingKey           = errors.New("could not extract encryption key")
	ErrInvalidKeyEncoding   = errors.New("encryption key is not valid base64")
	ErrInvalidKeyLength     = errors.New("encryption key must decode to 16 or 32 bytes")
	ErrUnsupportedKeyFormat = errors.New("16-byte legacy keys cannot decrypt file content")
)

// Attribute and content errors.
var (
	ErrAttributeMagic = errors.New("attribute magic mismatch (wrong decryption key)")
	ErrAttributeParse = errors.New("attribute blob is not valid JSON")
	ErrIntegrity      = errors.New("content MAC verification failed")
)

// APIErrorKind classifies the provider's negative status codes. The code
// space is open-ended on MEGA's side, so unknown codes fall through to
// KindTemporarilyUnavailable rather than failing classification.
type APIErrorKind int

const (
	KindNotFound APIErrorKind = iota
	KindQuotaExceeded
	KindRateLimited
	KindAccessDenied
	KindTemporarilyUnavailable
)

func (k APIErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindQuotaExceeded:
		return "over quota"
	case KindRateLimited:
		return "rate limited"
	case KindAccessDenied:
		return "access denied"
	default:
		return "temporarily unavailable"
	}
}

// APIError is a negative status code returned by the MEGA API.
type APIError struct {
	Code int
	Kind APIErrorKind
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mega api error %d: %s", e.Code, e.Kind)
}

// Retryable reports whether the request may be reissued. Only rate
// limiting is worth retrying; every other code is a fact about the node
// or the account that backoff cannot change.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRateLimited
}

// newAPIError maps a provider code to its kind. Codes follow the SDK
// convention: -3 EAGAIN, -4 ERATELIMIT, -9 ENOENT, -11 EACCESS,
// -16 EBLOCKED, -17 EOVERQUOTA, -18 ETOOMANY.
func newAPIError(code int) *APIError {
	var kind APIErrorKind
	switch code {
	case -9:
		kind = KindNotFound
	case -17:
		kind = KindQuotaExceeded
	case -3, -4:
		kind = KindRateLimited
	case -11, -16:
		kind = KindAccessDenied
	default:
		kind = KindTemporarilyUnavailable
	}
	return &APIError{Code: code, Kind: kind}
}

// TransportError wraps a network-level failure (timeout, reset, DNS).
// Unlike protocol errors these are always retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth another attempt with backoff.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}
