package inbox

import (
	"testing"
	"time"
)

func TestQueryFragments(t *testing.T) {
	jan := time.Date(2025, time.January, 5, 14, 30, 0, 0, time.UTC)
	if got := QueryBefore(jan); got != "before:2025/01/05" {
		t.Errorf("QueryBefore = %q, want zero-padded date", got)
	}
	if got := QueryUnread(); got != "is:unread" {
		t.Errorf("QueryUnread = %q", got)
	}
	if got := QueryHasList(); got != "has:list" {
		t.Errorf("QueryHasList = %q", got)
	}
	if got := QueryLargerMB(5); got != "larger:5M" {
		t.Errorf("QueryLargerMB = %q", got)
	}
}

func TestCombineQuery(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      string
	}{
		{"two fragments", []string{"is:unread", "has:list"}, "is:unread has:list"},
		{"skips empties", []string{"", "is:unread", ""}, "is:unread"},
		{"nothing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CombineQuery(tt.fragments...); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Now()
	messages := []Message{
		{From: "digest@news.com", Subject: "Weekly digest", Unread: true, IsNewsletter: true, Date: now.AddDate(0, 0, -10), SizeEstimate: 2_000_000},
		{From: "jane@gmail.com", Subject: "hi", Date: now.AddDate(0, 0, -1), SizeEstimate: 1_000_000},
		{From: "Jane <jane@gmail.com>", Subject: "re: hi", Unread: true, Date: now.AddDate(0, 0, -2), SizeEstimate: 1_000_000},
	}

	stats := ComputeStats(messages)
	if stats.TotalEmails != 3 {
		t.Errorf("total = %d, want 3", stats.TotalEmails)
	}
	if stats.UnreadEmails != 2 {
		t.Errorf("unread = %d, want 2", stats.UnreadEmails)
	}
	if stats.Newsletters != 1 {
		t.Errorf("newsletters = %d, want 1", stats.Newsletters)
	}
	if stats.TotalSizeMB != 3 {
		t.Errorf("size = %d MB, want 3", stats.TotalSizeMB)
	}
	if stats.OldestUnread < 9 || stats.OldestUnread > 11 {
		t.Errorf("oldest unread = %d days, want about 10", stats.OldestUnread)
	}
}
