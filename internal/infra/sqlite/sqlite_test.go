package sqlite

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avatarstudio/avatargw/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		db, err := Open(dir)
		if err != nil {
			t.Fatalf("Open() #%d error: %v", i, err)
		}
		db.Close()
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Jobs ───────────────────────────────────────────────────────────────────

func TestRecordJob_AndGet(t *testing.T) {
	db := newTestDB(t)

	rec := domain.JobRecord{
		ID:        "job-1",
		Vendor:    domain.VendorLatentSync,
		TaskID:    "req-123",
		Operation: "lipsync",
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := db.RecordJob(rec); err != nil {
		t.Fatalf("RecordJob() error: %v", err)
	}

	got, err := db.GetJob(domain.VendorLatentSync, "req-123")
	if err != nil {
		t.Fatalf("GetJob() error: %v", err)
	}
	if got.ID != "job-1" || got.Operation != "lipsync" || got.Status != domain.StatusPending {
		t.Errorf("GetJob() = %+v", got)
	}
	if !got.FinishedAt.IsZero() {
		t.Error("FinishedAt should be zero for a pending job")
	}
}

func TestFinishJob(t *testing.T) {
	db := newTestDB(t)

	_ = db.RecordJob(domain.JobRecord{ID: "j", Vendor: domain.VendorChanjing, TaskID: "v1", Status: domain.StatusPending})
	if err := db.FinishJob(domain.VendorChanjing, "v1", domain.StatusFailed, "processing failed"); err != nil {
		t.Fatalf("FinishJob() error: %v", err)
	}

	got, _ := db.GetJob(domain.VendorChanjing, "v1")
	if got.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Error != "processing failed" {
		t.Errorf("Error = %q", got.Error)
	}
	if got.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set")
	}
}

func TestFinishJob_Unknown(t *testing.T) {
	db := newTestDB(t)
	err := db.FinishJob(domain.VendorHedra, "missing", domain.StatusSuccess, "")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("FinishJob(missing) = %v, want ErrJobNotFound", err)
	}
}

func TestListJobs_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		_ = db.RecordJob(domain.JobRecord{
			ID: id, Vendor: domain.VendorHedra, TaskID: "t-" + id,
			Status: domain.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	jobs, err := db.ListJobs(2)
	if err != nil {
		t.Fatalf("ListJobs() error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Errorf("order = %s,%s, want c,b", jobs[0].ID, jobs[1].ID)
	}
}

// ─── Drafts ─────────────────────────────────────────────────────────────────

func TestDrafts_PutGetDelete(t *testing.T) {
	db := newTestDB(t)

	val := json.RawMessage(`{"prompt":"hello"}`)
	if err := db.PutDraft("lipsync", "form", val); err != nil {
		t.Fatalf("PutDraft() error: %v", err)
	}
	got, err := db.GetDraft("lipsync", "form")
	if err != nil {
		t.Fatalf("GetDraft() error: %v", err)
	}
	if string(got) != string(val) {
		t.Errorf("GetDraft() = %s, want %s", got, val)
	}

	if err := db.PutDraft("lipsync", "form", json.RawMessage(`{"prompt":"bye"}`)); err != nil {
		t.Fatalf("PutDraft(update) error: %v", err)
	}
	got, _ = db.GetDraft("lipsync", "form")
	if string(got) != `{"prompt":"bye"}` {
		t.Errorf("after update = %s", got)
	}

	if err := db.DeleteDraft("lipsync", "form"); err != nil {
		t.Fatalf("DeleteDraft() error: %v", err)
	}
	if _, err := db.GetDraft("lipsync", "form"); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Errorf("GetDraft after delete = %v, want ErrDraftNotFound", err)
	}
	if err := db.DeleteDraft("lipsync", "form"); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Errorf("second DeleteDraft = %v, want ErrDraftNotFound", err)
	}
}

func TestListDrafts_ScopedByKind(t *testing.T) {
	db := newTestDB(t)
	_ = db.PutDraft("avatar", "a", json.RawMessage(`1`))
	_ = db.PutDraft("avatar", "b", json.RawMessage(`2`))
	_ = db.PutDraft("voice", "c", json.RawMessage(`3`))

	keys, err := db.ListDrafts("avatar")
	if err != nil {
		t.Fatalf("ListDrafts() error: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("len = %d, want 2 (%v)", len(keys), keys)
	}

	empty, _ := db.ListDrafts("nothing")
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListDrafts(nothing) = %v, want empty non-nil", empty)
	}
}
