package domain

import (
	"context"
	"errors"
	"testing"
)

func TestPollStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status PollStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusSuccess, true},
		{StatusFailed, true},
		{StatusTimeout, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseVendor(t *testing.T) {
	v, err := ParseVendor(" Chanjing ")
	if err != nil {
		t.Fatalf("ParseVendor() error: %v", err)
	}
	if v != VendorChanjing {
		t.Errorf("ParseVendor() = %q, want %q", v, VendorChanjing)
	}

	if _, err := ParseVendor("nope"); !errors.Is(err, ErrUnknownVendor) {
		t.Errorf("ParseVendor(nope) error = %v, want ErrUnknownVendor", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	one := &ValidationError{Fields: []string{"audioUrl"}}
	if one.Error() != "audioUrl is required" {
		t.Errorf("Error() = %q", one.Error())
	}
	two := &ValidationError{Fields: []string{"apiKey", "videos"}}
	if two.Error() != "missing required fields: apiKey, videos" {
		t.Errorf("Error() = %q", two.Error())
	}
	if !errors.Is(one, ErrValidation) {
		t.Error("ValidationError should unwrap to ErrValidation")
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{Op: "GET /x", Err: context.DeadlineExceeded}
	if !errors.Is(err, ErrTransport) {
		t.Error("should match ErrTransport")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("should match the wrapped cause")
	}
}

func TestEnvelopeOf(t *testing.T) {
	env := &VendorErrorEnvelope{Code: "E1", Message: "bad"}
	if got := EnvelopeOf(&HTTPError{StatusCode: 400, Envelope: env}); got != env {
		t.Errorf("EnvelopeOf(HTTPError) = %v, want %v", got, env)
	}

	got := EnvelopeOf(&VendorError{Vendor: VendorChanjing, Code: "40001", Message: "quota"})
	if got == nil || got.Code != "40001" || got.Message != "quota" {
		t.Errorf("EnvelopeOf(VendorError) = %+v", got)
	}

	if EnvelopeOf(&VendorError{Vendor: VendorChanjing, Message: "processing failed"}) != nil {
		t.Error("VendorError without code should carry no envelope")
	}
	if EnvelopeOf(errors.New("x")) != nil {
		t.Error("plain error should carry no envelope")
	}
}
