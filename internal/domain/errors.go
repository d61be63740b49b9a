package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Typed errors below unwrap to these so callers can use errors.Is.

var (
	ErrValidation     = errors.New("validation error")
	ErrUpstreamHTTP   = errors.New("upstream http error")
	ErrTransport      = errors.New("upstream transport error")
	ErrVendorFailed   = errors.New("vendor reported failure")
	ErrVendorTimeout  = errors.New("vendor job timed out")
	ErrUnknownVendor  = errors.New("unknown vendor")
	ErrMalformedReply = errors.New("malformed vendor response")

	ErrDraftNotFound = errors.New("draft not found")
	ErrJobNotFound   = errors.New("job not found")
)

// VendorErrorEnvelope is the `{error: {err_code, message, message_<locale>}}`
// convention. Localized is keyed by the raw locale suffix.
type VendorErrorEnvelope struct {
	Code      string            `json:"err_code"`
	Message   string            `json:"message"`
	Localized map[string]string `json:"-"`
}

// ValidationError reports missing or invalid request fields.
type ValidationError struct {
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	switch len(e.Fields) {
	case 0:
		return "invalid request"
	case 1:
		return e.Fields[0] + " is required"
	default:
		return "missing required fields: " + strings.Join(e.Fields, ", ")
	}
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// HTTPError is a non-2xx upstream reply.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Envelope   *VendorErrorEnvelope
}

func (e *HTTPError) Error() string {
	if e.Envelope != nil && e.Envelope.Message != "" {
		return fmt.Sprintf("upstream http %d: %s (%s)", e.StatusCode, e.Envelope.Message, e.Envelope.Code)
	}
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	return fmt.Sprintf("upstream http %d: %s", e.StatusCode, body)
}

func (e *HTTPError) Unwrap() error { return ErrUpstreamHTTP }

// TransportError means the request never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// VendorError is a failure the vendor itself reported, either through its
// response code or a failed job status.
type VendorError struct {
	Vendor   Vendor
	Code     string
	Message  string
	Envelope *VendorErrorEnvelope
}

func (e *VendorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code %s)", e.Vendor, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Vendor, e.Message)
}

func (e *VendorError) Unwrap() error { return ErrVendorFailed }

// EnvelopeOf returns the vendor error envelope carried by err, if any.
func EnvelopeOf(err error) *VendorErrorEnvelope {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Envelope != nil {
		return httpErr.Envelope
	}
	var vErr *VendorError
	if errors.As(err, &vErr) {
		if vErr.Envelope != nil {
			return vErr.Envelope
		}
		if vErr.Code != "" {
			return &VendorErrorEnvelope{Code: vErr.Code, Message: vErr.Message}
		}
	}
	return nil
}
