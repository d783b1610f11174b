// Package types holds the JSON envelopes every HTTP response is wrapped in.
package types

// Envelope wraps a successful payload. Callers that know the payload type
// decode into Envelope[T] directly.
type Envelope[T any] struct {
	Data T `json:"data"`
}

type SuccessEnvelope = Envelope[any]

// APIError is the public face of a pkg/errors.Error. Retryable tells clients a
// plain resend may succeed (lock contention, timeouts, an unavailable store).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
