package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAssignsID(t *testing.T) {
	store := newTestStore(t)

	a := &Attempt{
		MessageID:  "msg-1",
		Sender:     "news@foo.com",
		Domain:     "foo.com",
		Link:       "https://foo.com/unsub",
		Method:     "header",
		Confidence: 0.9,
		Status:     StatusSucceeded,
	}
	if err := store.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.ID == 0 {
		t.Error("Add should assign the row ID")
	}
}

func TestLastAttemptForDomain(t *testing.T) {
	store := newTestStore(t)

	if a, err := store.LastAttemptForDomain("foo.com"); err != nil || a != nil {
		t.Fatalf("empty store: got %+v, %v; want nil, nil", a, err)
	}

	if err := store.Add(&Attempt{MessageID: "m1", Sender: "news@foo.com", Domain: "foo.com", Status: StatusFailed, Detail: "timeout"}); err != nil {
		t.Fatal(err)
	}

	a, err := store.LastAttemptForDomain("foo.com")
	if err != nil {
		t.Fatalf("LastAttemptForDomain: %v", err)
	}
	if a == nil || a.Status != StatusFailed || a.Detail != "timeout" {
		t.Errorf("got %+v, want recorded failure", a)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestSucceededRecently(t *testing.T) {
	store := newTestStore(t)
	window := 30 * 24 * time.Hour

	done, err := store.SucceededRecently("foo.com", window)
	if err != nil {
		t.Fatalf("SucceededRecently: %v", err)
	}
	if done {
		t.Error("unknown domain should not count as handled")
	}

	if err := store.Add(&Attempt{MessageID: "m1", Sender: "a@foo.com", Domain: "foo.com", Status: StatusSucceeded}); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(&Attempt{MessageID: "m2", Sender: "b@bar.com", Domain: "bar.com", Status: StatusFailed}); err != nil {
		t.Fatal(err)
	}

	if done, _ = store.SucceededRecently("foo.com", window); !done {
		t.Error("fresh succeeded attempt should mark the domain handled")
	}
	if done, _ = store.SucceededRecently("bar.com", window); done {
		t.Error("a failed attempt must not mark the domain handled")
	}
}

func TestRecentAttemptsAndSummary(t *testing.T) {
	store := newTestStore(t)

	attempts := []Attempt{
		{MessageID: "m1", Sender: "a@foo.com", Domain: "foo.com", Status: StatusSucceeded},
		{MessageID: "m2", Sender: "b@bar.com", Domain: "bar.com", Status: StatusFailed},
		{MessageID: "m3", Sender: "c@foo.com", Domain: "foo.com", Status: StatusManual},
	}
	for i := range attempts {
		if err := store.Add(&attempts[i]); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := store.RecentAttempts(10)
	if err != nil {
		t.Fatalf("RecentAttempts: %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("recent = %d, want 3", len(recent))
	}

	recent, err = store.RecentAttempts(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Errorf("limited recent = %d, want 2", len(recent))
	}

	summary, err := store.Summarize()
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := Summary{Total: 3, Succeeded: 1, Failed: 1, Manual: 1, Domains: 2}
	if *summary != want {
		t.Errorf("summary = %+v, want %+v", *summary, want)
	}
}
