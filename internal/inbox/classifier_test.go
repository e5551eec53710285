package inbox

import (
	"testing"
)

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		from     string
		snippet  string
		expected Category
	}{
		{
			name:     "Weekly digest newsletter",
			subject:  "Your Weekly Digest",
			from:     "digest@news.example.com",
			expected: CategoryNewsletter,
		},
		{
			name:     "Noreply sender",
			subject:  "Account activity",
			from:     "noreply@service.example.com",
			expected: CategoryNewsletter,
		},
		{
			name:     "Marketing sender address",
			subject:  "Big news from us",
			from:     "marketing@startup.example.com",
			expected: CategoryNewsletter,
		},
		{
			name:     "Sale promotion",
			subject:  "50% off everything - limited time sale",
			from:     "deals@shop.example.com",
			expected: CategoryPromotional,
		},
		{
			name:     "Meeting invite",
			subject:  "Meeting tomorrow at 10",
			from:     "colleague@company.example.com",
			expected: CategoryWork,
		},
		{
			name:     "Social notification",
			subject:  "Jane commented on your photo",
			from:     "notification@social.example.com",
			expected: CategorySocial,
		},
		{
			name:     "Order receipt",
			subject:  "Your order receipt #4521",
			from:     "orders@store.example.com",
			expected: CategoryTransactional,
		},
		{
			name:     "Short personal note",
			subject:  "lunch?",
			from:     "friend@gmail.com",
			snippet:  "are you free thursday",
			expected: CategoryPersonal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Message{Subject: tt.subject, From: tt.from, Snippet: tt.snippet}
			got := Classify(m)
			if got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// Newsletter terms win over promotional terms when both match
	m := &Message{
		Subject: "Weekly newsletter: huge sale inside",
		From:    "marketing@shop.example.com",
	}
	if got := Classify(m); got != CategoryNewsletter {
		t.Errorf("newsletter should outrank promotional, got %s", got)
	}

	// Promotional wins over work
	m = &Message{
		Subject: "Exclusive discount on meeting software",
		From:    "sales@vendor.example.com",
	}
	if got := Classify(m); got != CategoryPromotional {
		t.Errorf("promotional should outrank work, got %s", got)
	}
}

func TestIsNewsletter(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected bool
	}{
		{
			name:     "List-Unsubscribe header present",
			msg:      Message{From: "friend@gmail.com", Subject: "hi", ListUnsubscribe: "<https://example.com/u>"},
			expected: true,
		},
		{
			name:     "noreply sender",
			msg:      Message{From: "noreply@example.com", Subject: "hello"},
			expected: true,
		},
		{
			name:     "unsubscribe in subject",
			msg:      Message{From: "a@b.com", Subject: "How to unsubscribe from everything"},
			expected: true,
		},
		{
			name:     "plain personal mail",
			msg:      Message{From: "jane@gmail.com", Subject: "dinner plans"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNewsletter(&tt.msg); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLooksPhishy(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected bool
	}{
		{
			name:     "urgent account verify",
			msg:      Message{Subject: "URGENT: verify account now", From: "security@bank-example.tk"},
			expected: true,
		},
		{
			name:     "suspicious TLD",
			msg:      Message{Subject: "hello", From: "friend@site.ml", Snippet: "click here to claim"},
			expected: true,
		},
		{
			name:     "regular newsletter",
			msg:      Message{Subject: "Weekly digest", From: "news@example.com"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksPhishy(&tt.msg); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCountByCategory(t *testing.T) {
	messages := []Message{
		{Subject: "Your weekly newsletter", From: "news@a.com"},
		{Subject: "Monthly updates", From: "digest@b.com"},
		{Subject: "Flash sale today", From: "deals@c.com"},
	}

	counts := CountByCategory(messages)
	if counts[CategoryNewsletter] != 2 {
		t.Errorf("newsletter count = %d, want 2", counts[CategoryNewsletter])
	}
	if counts[CategoryPromotional] != 1 {
		t.Errorf("promotional count = %d, want 1", counts[CategoryPromotional])
	}
}

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		from     string
		expected string
	}{
		{"Jane <jane@foo.com>", "foo.com"},
		{"bob@bar.com", "bar.com"},
		{"News Team <news@Mail.Example.COM>", "mail.example.com"},
		{"no-address-here", "unknown"},
		{"trailing@", "unknown"},
	}

	for _, tt := range tests {
		m := Message{From: tt.from}
		if got := m.SenderDomain(); got != tt.expected {
			t.Errorf("SenderDomain(%q) = %q, want %q", tt.from, got, tt.expected)
		}
	}
}
