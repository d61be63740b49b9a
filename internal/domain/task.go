// Package domain holds the job types shared by the submission and polling layers.
// A job flows: submit → task handle → poll … → terminal result.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Vendor tags the third-party service behind a job.
type Vendor string

const (
	VendorOmniHuman      Vendor = "omnihuman"
	VendorChanjing       Vendor = "chanjing"
	VendorChanjingAvatar Vendor = "chanjing_avatar"
	VendorTopView        Vendor = "topview"
	VendorHedra          Vendor = "hedra"
	VendorLatentSync     Vendor = "latentsync"
	VendorStableAvatar   Vendor = "stableavatar"
	VendorToolkit        Vendor = "toolkit"
)

// Vendors lists every known vendor tag.
func Vendors() []Vendor {
	return []Vendor{
		VendorOmniHuman, VendorChanjing, VendorChanjingAvatar, VendorTopView,
		VendorHedra, VendorLatentSync, VendorStableAvatar, VendorToolkit,
	}
}

// ParseVendor resolves a vendor tag, case-insensitively.
func ParseVendor(s string) (Vendor, error) {
	want := Vendor(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Vendors() {
		if v == want {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVendor, s)
}

// TaskHandle identifies an asynchronous vendor job. Immutable once issued.
type TaskHandle struct {
	TaskID string `json:"taskId"`
	Vendor Vendor `json:"vendor"`
}

// PollStatus is the shared status vocabulary every vendor is mapped into.
type PollStatus string

const (
	StatusPending    PollStatus = "pending"
	StatusProcessing PollStatus = "processing"
	StatusSuccess    PollStatus = "success"
	StatusFailed     PollStatus = "failed"
	StatusTimeout    PollStatus = "timeout"
)

// IsTerminal returns true if no further polling should happen.
func (s PollStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusTimeout
}

// ResultError is the error part of a PollResult.
type ResultError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// PollResult is the outcome of one poll attempt.
// Payload is set only for StatusSuccess and is the vendor's result verbatim.
type PollResult struct {
	Status  PollStatus      `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ResultError    `json:"error,omitempty"`
}

// Submission is the normalized output of a submit call: either a handle to
// poll or an already resolved result. Raw keeps the vendor envelope.
type Submission struct {
	Handle *TaskHandle     `json:"handle,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// Resolved reports whether the vendor answered synchronously.
func (s Submission) Resolved() bool {
	return s.Handle == nil
}

// JobRecord is one row of the job history. Credentials are never part of it.
type JobRecord struct {
	ID         string     `json:"id"`
	Vendor     Vendor     `json:"vendor"`
	TaskID     string     `json:"task_id"`
	Operation  string     `json:"operation"`
	Status     PollStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// Duration returns how long the job ran (0 if unfinished).
func (j *JobRecord) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.CreatedAt)
}
