package web

import (
	"testing"
	"time"
)

func TestJobPersistenceRoundTrip(t *testing.T) {
	jp := NewJobPersistence(t.TempDir())

	state, err := jp.Load()
	if err != nil {
		t.Fatalf("Load on empty dir: %v", err)
	}
	if state != nil {
		t.Fatalf("expected no pending state, got %+v", state)
	}

	saved := &PersistentJobState{
		ID:               "job-1",
		Status:           JobStatusRunning,
		Succeeded:        3,
		Failed:           1,
		Total:            10,
		StartedAt:        time.Now().Truncate(time.Second),
		RemainingDomains: []string{"foo.com", "bar.com"},
		Query:            "has:list",
	}
	if err := jp.Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := jp.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected saved state back")
	}
	if loaded.ID != saved.ID || loaded.Query != saved.Query || loaded.Succeeded != 3 {
		t.Errorf("loaded = %+v, want %+v", loaded, saved)
	}
	if len(loaded.RemainingDomains) != 2 || loaded.RemainingDomains[0] != "foo.com" {
		t.Errorf("remaining domains = %v", loaded.RemainingDomains)
	}

	if err := jp.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if state, _ := jp.Load(); state != nil {
		t.Errorf("state should be gone after Clear, got %+v", state)
	}
	if err := jp.Clear(); err != nil {
		t.Errorf("Clear on missing file should be a no-op, got %v", err)
	}
}

func TestStopWithError(t *testing.T) {
	jm := NewJobManager()
	job := jm.Create(5)

	job.StopWithError("mailbox fetch failed")

	if job.Status != JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.Error != "mailbox fetch failed" {
		t.Errorf("error = %q", job.Error)
	}
	if job.CompletedAt.IsZero() {
		t.Error("CompletedAt should be set")
	}
	if jm.GetActive() != nil {
		t.Error("a stopped job must not count as active")
	}
}

func TestJobManagerCleanup(t *testing.T) {
	jm := NewJobManager()

	old := jm.Create(1)
	old.Complete()
	old.CompletedAt = time.Now().Add(-2 * time.Hour)

	fresh := jm.Create(1)
	fresh.Complete()

	running := jm.Create(1)

	jm.Cleanup(time.Hour)

	if jm.Get(old.ID) != nil {
		t.Error("completed job past max age should be removed")
	}
	if jm.Get(fresh.ID) == nil {
		t.Error("recently completed job should survive")
	}
	if jm.Get(running.ID) == nil {
		t.Error("running job must never be cleaned up")
	}
}
