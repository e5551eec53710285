package browser

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseIndicatesSuccess(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"explicit success wording", 200, "You have been unsubscribed.", true},
		{"success wording wins over status 202", 202, "Your preferences updated.", true},
		{"failure wording", 200, "Something went wrong, please try again.", false},
		{"plain 200 with neutral body", 200, "<html><body>Goodbye</body></html>", true},
		{"neutral body on non-200", 202, "<html><body>Processing</body></html>", false},
		{"client error", 404, "thank you", false},
		{"server error", 500, "", false},
		{"case insensitive", 200, "SUCCESSFULLY REMOVED", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResponseIndicatesSuccess(tt.status, tt.body); got != tt.want {
				t.Errorf("ResponseIndicatesSuccess(%d, %q) = %v, want %v", tt.status, tt.body, got, tt.want)
			}
		})
	}
}

func TestValidateDomain(t *testing.T) {
	h := NewConfirmationHandler([]string{"Example.com", "news.acme.org"})

	tests := []struct {
		url   string
		valid bool
	}{
		{"https://example.com/confirm?t=1", true},
		{"https://www.example.com/confirm", true},
		{"https://links.example.com/c/abc", true},
		{"https://deep.click.example.com/c", true},
		{"https://example.com:8443/confirm", true},
		{"https://news.acme.org/u", true},
		{"https://evil.com/confirm", false},
		{"https://example.com.evil.com/confirm", false},
	}

	for _, tt := range tests {
		valid, _, err := h.ValidateDomain(tt.url)
		if err != nil {
			t.Fatalf("ValidateDomain(%q): %v", tt.url, err)
		}
		if valid != tt.valid {
			t.Errorf("ValidateDomain(%q) = %v, want %v", tt.url, valid, tt.valid)
		}
	}
}

func TestFollowConfirmationLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/confirm":
			http.Redirect(w, r, "/done", http.StatusFound)
		case "/done":
			w.Write([]byte("<html><body>You have been unsubscribed.</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewConfirmationHandler(nil)
	result, err := h.FollowConfirmationLink(srv.URL+"/confirm", false)
	if err != nil {
		t.Fatalf("FollowConfirmationLink: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if !strings.HasSuffix(result.FinalURL, "/done") {
		t.Errorf("final URL = %q, want the redirect target", result.FinalURL)
	}
	if len(result.RedirectPath) != 2 {
		t.Errorf("redirect path = %v, want original plus one hop", result.RedirectPath)
	}
	if h.StatusDescription(result) != "Confirmation successful" {
		t.Errorf("description = %q", h.StatusDescription(result))
	}
}

func TestFollowConfirmationLinkRejectsUnknownDomain(t *testing.T) {
	h := NewConfirmationHandler([]string{"example.com"})
	result, err := h.FollowConfirmationLink("https://evil.test/confirm", true)
	if err == nil {
		t.Fatal("unknown domain should be rejected before any request")
	}
	if result.Success {
		t.Error("rejected link must not be marked successful")
	}
}
