package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(tmpDir, FileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	for _, table := range []string{"batches", "dispatch_runs", "deliveries"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInit_CreatesDirectories(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "nested", "path", ".certmail")

	db, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		t.Errorf("base directory not created at %s", baseDir)
	}
}

func TestInit_MigrationIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	db1.Close()

	db2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db2.Close()

	version, err := GetUserVersion(db2)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after second Init = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestConfigurePool_NilConfig(t *testing.T) {
	db := openTestDB(t)
	ConfigurePool(db, nil)
	ConfigurePool(db, &config.Config{DBMaxOpenConns: 1, DBMaxIdleConns: 1})
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

func TestBatches(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := LatestBatch(ctx, db); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("LatestBatch() on empty db error = %v, want NOT_FOUND", err)
	}

	for i, id := range []string{"01A", "01B"} {
		b := &Batch{ID: id, OutputDir: "/out/Certs", Format: "pdf", Count: 2, CreatedAt: int64(100 + i)}
		if err := InsertBatch(ctx, db, b); err != nil {
			t.Fatalf("InsertBatch() error = %v", err)
		}
	}

	got, err := LatestBatch(ctx, db)
	if err != nil {
		t.Fatalf("LatestBatch() error = %v", err)
	}
	if got.ID != "01B" {
		t.Errorf("LatestBatch().ID = %q, want %q", got.ID, "01B")
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	run := &Run{ID: "run-1", Mode: "other", Transport: "smtp", Subject: "Hi", Recipients: "tosend.csv", Total: 3, StartedAt: 10}
	if err := InsertRun(ctx, db, run); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}

	deliveries := []Delivery{
		{RunID: "run-1", Row: 1, Line: 2, Name: "Alice Lee", Email: "a@x.org", Status: "sent", Attachments: []string{"/out/Alice_Lee_certificate.pdf"}, RecordedAt: 11},
		{RunID: "run-1", Row: 2, Line: 3, Name: "Bob Ng", Email: "b@x.org", Status: "failed", Reason: "AUTHENTICATION", RecordedAt: 12},
		{RunID: "run-1", Row: 3, Line: 4, Name: "Carol X", Email: "c@x.org", Status: "not_attempted", RecordedAt: 12},
	}
	for i := range deliveries {
		if err := RecordDelivery(ctx, db, &deliveries[i]); err != nil {
			t.Fatalf("RecordDelivery() error = %v", err)
		}
	}

	finished := int64(13)
	run.Sent, run.Failed, run.NotAttempted = 1, 1, 1
	run.Aborted, run.AbortReason, run.FinishedAt = true, "AUTHENTICATION", &finished
	if err := FinishRun(ctx, db, run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := GetRun(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !got.Aborted || got.AbortReason != "AUTHENTICATION" || got.Sent != 1 || got.NotAttempted != 1 {
		t.Errorf("GetRun() = %+v", got)
	}
	if got.FinishedAt == nil || *got.FinishedAt != 13 {
		t.Errorf("FinishedAt = %v, want 13", got.FinishedAt)
	}

	all, err := ListDeliveries(ctx, db, "run-1", "")
	if err != nil {
		t.Fatalf("ListDeliveries() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListDeliveries() len = %d, want 3", len(all))
	}
	if len(all[0].Attachments) != 1 || all[0].Attachments[0] != "/out/Alice_Lee_certificate.pdf" {
		t.Errorf("Attachments = %v", all[0].Attachments)
	}

	failed, err := ListDeliveries(ctx, db, "run-1", "failed")
	if err != nil {
		t.Fatalf("ListDeliveries(failed) error = %v", err)
	}
	if len(failed) != 1 || failed[0].Reason != "AUTHENTICATION" {
		t.Errorf("ListDeliveries(failed) = %+v", failed)
	}
}

func TestRecordDelivery_Replaces(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := InsertRun(ctx, db, &Run{ID: "r", Mode: "none", Transport: "smtp", Subject: "s", Recipients: "x", Total: 1, StartedAt: 1}); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}

	for _, status := range []string{"failed", "sent"} {
		if err := RecordDelivery(ctx, db, &Delivery{RunID: "r", Row: 1, Line: 2, Name: "A", Email: "a@x.org", Status: status, RecordedAt: 2}); err != nil {
			t.Fatalf("RecordDelivery() error = %v", err)
		}
	}

	got, err := ListDeliveries(ctx, db, "r", "")
	if err != nil {
		t.Fatalf("ListDeliveries() error = %v", err)
	}
	if len(got) != 1 || got[0].Status != "sent" {
		t.Errorf("ListDeliveries() = %+v, want one sent row", got)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	for i, id := range []string{"a", "b", "c"} {
		if err := InsertRun(ctx, db, &Run{ID: id, Mode: "none", Transport: "smtp", Subject: "s", Recipients: "x", StartedAt: int64(i)}); err != nil {
			t.Fatalf("InsertRun() error = %v", err)
		}
	}

	runs, total, err := ListRuns(ctx, db, 2, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("ListRuns() = %+v", runs)
	}
}

func TestFinishRun_Unknown(t *testing.T) {
	db := openTestDB(t)
	err := FinishRun(context.Background(), db, &Run{ID: "missing"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("FinishRun() error = %v, want NOT_FOUND", err)
	}
}
