package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key query param missing, url = %s", r.URL)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Your inbox looks tidy."}]}}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProviderWithEndpoint("test-key", srv.URL, srv.Client())
	out, err := p.SummarizeEmails(context.Background(), []EmailSummary{{Subject: "hi"}})
	if err != nil {
		t.Fatalf("SummarizeEmails: %v", err)
	}
	if out != "Your inbox looks tidy." {
		t.Errorf("out = %q", out)
	}
}

func TestGeminiProviderErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProviderWithEndpoint("bad-key", srv.URL, srv.Client())
	_, err := p.CategorizeEmail(context.Background(), EmailSummary{Subject: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "gemini" {
		t.Errorf("error = %v, want gemini ProviderError", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("error should carry the api message, got %v", err)
	}
}

func TestGeminiAvailability(t *testing.T) {
	if NewGeminiProvider("").IsAvailable() {
		t.Error("empty key should be unavailable")
	}
	if !NewGeminiProvider("k").IsAvailable() {
		t.Error("key present should be available")
	}
}

func TestHuggingFaceProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer hf-key" {
			t.Errorf("auth header = %q", auth)
		}
		w.Write([]byte(`[{"generated_text":"A calm week of mail."}]`))
	}))
	defer srv.Close()

	p := NewHuggingFaceProviderWithEndpoint("hf-key", srv.URL, srv.Client())
	out, err := p.SummarizeEmails(context.Background(), []EmailSummary{{Subject: "hi"}})
	if err != nil {
		t.Fatalf("SummarizeEmails: %v", err)
	}
	if out != "A calm week of mail." {
		t.Errorf("out = %q", out)
	}
}

func TestHuggingFacePromptEchoStripped(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Echo the prompt ahead of the completion the way instruct models do
		quoted, _ := json.Marshal(prompt + " The completion.")
		w.Write([]byte(`[{"generated_text":` + string(quoted) + `}]`))
	}))
	defer srv.Close()

	p := NewHuggingFaceProviderWithEndpoint("hf-key", srv.URL, srv.Client())
	prompt = categoryPrompt(EmailSummary{Subject: "hi", From: "a@b.com"})
	out, err := p.CategorizeEmail(context.Background(), EmailSummary{Subject: "hi", From: "a@b.com"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "The completion." {
		t.Errorf("out = %q, want echoed prompt stripped", out)
	}
}

func TestHuggingFaceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer srv.Close()

	p := NewHuggingFaceProviderWithEndpoint("hf-key", srv.URL, srv.Client())
	_, err := p.SummarizeEmails(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "model is loading") {
		t.Errorf("error = %v, want api error message", err)
	}
}
