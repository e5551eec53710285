package template

import (
	"sort"
	"strings"
	"testing"
)

func TestRenderUnsubscribe(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	email, err := engine.Render("unsubscribe", "me@example.com", "", "", "list@news.example.com")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if email.Subject != "Unsubscribe" {
		t.Errorf("subject = %q, want bare Unsubscribe", email.Subject)
	}
	if !strings.Contains(email.Body, "me@example.com") {
		t.Errorf("body should name the account, got %q", email.Body)
	}
	if !strings.Contains(email.Body, "list@news.example.com") {
		t.Errorf("body should name the list address, got %q", email.Body)
	}
}

func TestRenderPolite(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}

	email, err := engine.Render("polite", "me@example.com", "Acme News", "acme.example.com", "list@acme.example.com")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(email.Body, "Acme News") {
		t.Errorf("body should greet the sender, got %q", email.Body)
	}
	if !strings.Contains(email.Body, "acme.example.com") {
		t.Errorf("body should name the domain, got %q", email.Body)
	}

	// Optional fields degrade cleanly
	email, err = engine.Render("polite", "me@example.com", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(email.Body, "Hello ,") {
		t.Errorf("empty sender name left a dangling greeting: %q", email.Body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Render("aggressive", "me@example.com", "", "", ""); err == nil {
		t.Error("unknown template should error")
	}
}

func TestAvailableTemplates(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	got := engine.AvailableTemplates()
	sort.Strings(got)
	want := []string{"polite", "unsubscribe"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("templates = %v, want %v", got, want)
	}
}
