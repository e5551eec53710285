package web

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/daniellauding/email-cleaner/internal/config"
	"github.com/daniellauding/email-cleaner/internal/history"
	"github.com/daniellauding/email-cleaner/internal/inbox"
)

func TestFilterRecentlyHandled(t *testing.T) {
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	attempts := []history.Attempt{
		{MessageID: "m0", Sender: "a@handled.com", Domain: "handled.com", Status: history.StatusSucceeded},
		{MessageID: "m1", Sender: "b@failed.com", Domain: "failed.com", Status: history.StatusFailed},
	}
	for i := range attempts {
		if err := store.Add(&attempts[i]); err != nil {
			t.Fatal(err)
		}
	}

	s, err := NewServer("127.0.0.1:0", &config.Config{}, nil, nil, store, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	messages := []inbox.Message{
		{ID: "1", From: "news@handled.com"},
		{ID: "2", From: "news@failed.com"},
		{ID: "3", From: "news@untouched.com"},
	}

	kept := s.filterRecentlyHandled(messages)
	if len(kept) != 2 {
		t.Fatalf("kept = %d messages, want 2", len(kept))
	}
	for _, m := range kept {
		if m.SenderDomain() == "handled.com" {
			t.Error("domain with a recent succeeded attempt should be dropped")
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    2,
		window:   time.Minute,
	}

	if !rl.Allow("client") || !rl.Allow("client") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("client") {
		t.Error("third request inside the window should be limited")
	}
	if !rl.Allow("other") {
		t.Error("limits are per client")
	}
}
