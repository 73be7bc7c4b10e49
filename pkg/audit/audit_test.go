package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func sampleEvents(base time.Time) []Event {
	return []Event{
		{Tool: "flux_validate_jobspec", Format: "yaml", Valid: true, Digest: "aa", RecordedAt: base},
		{Tool: "flux_validate_jobspec", Format: "batch", Valid: false, Errors: []string{"[SEMANTIC_ERROR] unrecognized directive flag \"--noodles\""}, RecordedAt: base.Add(time.Hour)},
		{Tool: "flux_count_jobspec_resources", Format: "json", Valid: true, Source: "job.json", Duration: 1500 * time.Microsecond, RecordedAt: base.Add(2 * time.Hour)},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, ev := range sampleEvents(base) {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for _, ev := range all {
		if ev.ID == "" {
			t.Fatalf("expected generated id")
		}
		if ev.Errors == nil {
			t.Fatalf("errors must never be nil")
		}
	}
	if all[0].Format != "yaml" || all[2].Source != "job.json" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if all[2].Duration != 1500*time.Microsecond {
		t.Fatalf("unexpected duration: %v", all[2].Duration)
	}

	invalid := false
	failed, err := store.List(ctx, Filter{Valid: &invalid})
	if err != nil {
		t.Fatalf("list invalid: %v", err)
	}
	if len(failed) != 1 || len(failed[0].Errors) != 1 {
		t.Fatalf("expected one failed event with its error, got %+v", failed)
	}

	counts, err := store.List(ctx, Filter{Tool: "flux_count_jobspec_resources"})
	if err != nil {
		t.Fatalf("list by tool: %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("expected one count event, got %d", len(counts))
	}

	recent, err := store.List(ctx, Filter{Since: base.Add(30 * time.Minute), Limit: 1})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 || recent[0].Format != "batch" {
		t.Fatalf("unexpected since/limit result: %+v", recent)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, err := sql.Open("sqlite", "file:fluxcheck_audit_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	exerciseStore(t, store)
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Record(context.Background(), Event{Tool: "flux_validate_jobspec", Format: "yaml", Valid: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	events, err := reopened.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].RecordedAt.IsZero() {
		t.Fatalf("expected persisted event, got %+v", events)
	}
}

func TestNewSQLiteStoreNilDB(t *testing.T) {
	if _, err := NewSQLiteStore(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}
