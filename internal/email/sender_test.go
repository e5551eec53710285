package email

import (
	"testing"

	"github.com/daniellauding/email-cleaner/internal/config"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"plain address", "user@example.com", false},
		{"display name", "User <user@example.com>", false},
		{"crlf injection", "user@example.com\r\nBcc: evil@example.com", true},
		{"comma smuggling", "a@example.com,b@example.com", true},
		{"semicolon", "a@example.com;b@example.com", true},
		{"no at sign", "not-an-address", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMessageRejectsHeaderInjection(t *testing.T) {
	msg := Message{
		From:    "me@example.com",
		To:      "list@example.com",
		Subject: "Unsubscribe\r\nBcc: evil@example.com",
		Body:    "please remove me",
	}
	if err := validateMessage(msg); err == nil {
		t.Error("CRLF in subject should be rejected")
	}

	msg.Subject = "Unsubscribe"
	if err := validateMessage(msg); err != nil {
		t.Errorf("clean message rejected: %v", err)
	}
}

func TestNewSenderProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmailConfig
		wantName string
		wantErr  bool
	}{
		{"default is smtp", config.EmailConfig{From: "me@example.com"}, "smtp", false},
		{"explicit smtp", config.EmailConfig{Provider: "smtp"}, "smtp", false},
		{"resend with key", config.EmailConfig{Provider: "resend", APIKey: "re_x"}, "resend", false},
		{"resend without key", config.EmailConfig{Provider: "resend"}, "", true},
		{"sendgrid with key", config.EmailConfig{Provider: "sendgrid", APIKey: "SG.x"}, "sendgrid", false},
		{"sendgrid without key", config.EmailConfig{Provider: "sendgrid"}, "", true},
		{"unknown provider", config.EmailConfig{Provider: "carrier-pigeon"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSender(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s.Name() != tt.wantName {
				t.Errorf("name = %s, want %s", s.Name(), tt.wantName)
			}
		})
	}
}
