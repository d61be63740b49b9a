package domain

import (
	"context"
	"encoding/json"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// Infrastructure implements them; the job and api layers depend on them.

// Normalizer maps one vendor's bespoke envelopes into the shared shapes.
// Implemented per vendor by internal/vendor.
type Normalizer interface {
	Vendor() Vendor

	// StatusPath returns the gateway path that reports a task's status.
	StatusPath(taskID string) string

	// ToSubmission normalizes a submit reply into a handle or a resolved result.
	ToSubmission(raw []byte) (Submission, error)

	// ToPollResult normalizes a status reply. A vendor-reported error returns
	// a failed result together with a *VendorError.
	ToPollResult(raw []byte) (PollResult, error)
}

// JobStore records job history. Implemented by infra/sqlite.DB.
type JobStore interface {
	RecordJob(rec JobRecord) error
	FinishJob(vendor Vendor, taskID string, status PollStatus, errMsg string) error
	ListJobs(limit int) ([]JobRecord, error)
}

// DraftStore caches user inputs per entity kind. Implemented by infra/sqlite.DB.
type DraftStore interface {
	GetDraft(kind, key string) (json.RawMessage, error)
	PutDraft(kind, key string, value json.RawMessage) error
	DeleteDraft(kind, key string) error
	ListDrafts(kind string) ([]string, error)
}

// Notifier turns an error into a user-visible event. It never alters control flow.
type Notifier interface {
	Notify(ctx context.Context, err error)
}
