package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Common errors for the playback core.
var (
	ErrMissingCredentials = errors.New("no API credentials configured for this backend")
	ErrNoVoices           = errors.New("no voices available for the requested language")
	ErrInvalidVoice       = errors.New("voice identifier is not valid for this backend")
	ErrEmptyText          = errors.New("text cannot be empty")
	ErrBackendUnavailable = errors.New("synthesis backend is not available")
)

// ErrorKind classifies a synthesis failure so the caller can present a
// specific message (for example "needs internet" for offline errors).
type ErrorKind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown ErrorKind = iota
	// KindOffline means the network is unreachable.
	KindOffline
	// KindTimeout means a request or resource deadline expired.
	KindTimeout
	// KindHTTP is a non-2xx response from a cloud endpoint.
	KindHTTP
	// KindInvalidAudio means the response arrived but the payload is
	// implausibly small or malformed.
	KindInvalidAudio
	// KindMissingCredentials means the paid backend has no usable key.
	KindMissingCredentials
	// KindQuotaExceeded means the provider rate-limited the account.
	KindQuotaExceeded
	// KindDecode means the local audio engine could not play the bytes.
	KindDecode
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindInvalidAudio:
		return "invalid-audio"
	case KindMissingCredentials:
		return "missing-credentials"
	case KindQuotaExceeded:
		return "quota-exceeded"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// SynthesisError is a classified synthesis failure. HTTP errors carry the
// status code and a body excerpt.
type SynthesisError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	switch e.Kind {
	case KindOffline:
		return "network unreachable: an internet connection is required"
	case KindTimeout:
		return "synthesis request timed out"
	case KindHTTP:
		if e.Body != "" {
			return fmt.Sprintf("synthesis service returned HTTP %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("synthesis service returned HTTP %d", e.StatusCode)
	case KindInvalidAudio:
		return "synthesis service returned invalid audio data"
	case KindMissingCredentials:
		return "missing or invalid API credentials"
	case KindQuotaExceeded:
		return "synthesis quota exceeded, try again later"
	case KindDecode:
		if e.Err != nil {
			return fmt.Sprintf("cannot play synthesized audio: %v", e.Err)
		}
		return "cannot play synthesized audio"
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "synthesis failed"
	}
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// NewSynthesisError creates a classified synthesis error.
func NewSynthesisError(kind ErrorKind, err error) *SynthesisError {
	return &SynthesisError{Kind: kind, Err: err}
}

// NewHTTPError creates a protocol error carrying status and body text.
// 401/403 map to missing/invalid credentials and 429 to quota exhaustion.
func NewHTTPError(status int, body string) *SynthesisError {
	kind := KindHTTP
	switch status {
	case 401, 403:
		kind = KindMissingCredentials
	case 429:
		kind = KindQuotaExceeded
	}
	return &SynthesisError{Kind: kind, StatusCode: status, Body: body}
}

// ClassifyTransport classifies a transport-level error from an HTTP round
// trip: deadline expiry is a timeout, unreachable hosts and DNS failures
// are offline, anything else stays unknown.
func ClassifyTransport(err error) *SynthesisError {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &SynthesisError{Kind: KindTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SynthesisError{Kind: KindTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &SynthesisError{Kind: KindOffline, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &SynthesisError{Kind: KindOffline, Err: err}
	}

	return &SynthesisError{Kind: KindUnknown, Err: err}
}
