package insight

import (
	"strings"
	"testing"
	"time"

	"github.com/daniellauding/email-cleaner/internal/inbox"
)

func TestAnalyzePatterns(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	messages := []inbox.Message{
		{From: "news@a.com", Subject: "Weekly digest", Unread: true, Date: now.Add(-time.Hour)},
		{From: "News@A.COM", Subject: "weekly DIGEST", Date: now.Add(-time.Hour)},
		{From: "old@b.com", Subject: "hello", Date: now.Add(-40 * 24 * time.Hour)},
		{From: "big@c.com", Subject: "photos", SizeEstimate: 6_000_000, Date: now.Add(-time.Hour)},
	}

	p := analyzePatterns(messages, now)
	if p.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1 (case-insensitive sender+subject)", p.Duplicates)
	}
	if p.OldEmails != 1 {
		t.Errorf("old emails = %d, want 1", p.OldEmails)
	}
	if p.LargeEmails != 1 {
		t.Errorf("large emails = %d, want 1", p.LargeEmails)
	}
	if p.Newsletters != 2 {
		t.Errorf("newsletters = %d, want 2", p.Newsletters)
	}
	if p.UnreadNewsletters != 1 {
		t.Errorf("unread newsletters = %d, want 1", p.UnreadNewsletters)
	}
}

func TestAnalyzeSendersTopTen(t *testing.T) {
	var messages []inbox.Message
	for i := 0; i < 12; i++ {
		sender := string(rune('a'+i)) + "@example.com"
		for j := 0; j <= i; j++ {
			messages = append(messages, inbox.Message{From: sender, Subject: "x", Unread: j%2 == 0})
		}
	}

	senders := analyzeSenders(messages)
	if len(senders) != 10 {
		t.Fatalf("senders = %d, want capped at 10", len(senders))
	}
	if senders[0].Sender != "l@example.com" || senders[0].Total != 12 {
		t.Errorf("top sender = %+v, want l@example.com with 12", senders[0])
	}
	for i := 1; i < len(senders); i++ {
		if senders[i].Total > senders[i-1].Total {
			t.Errorf("senders not sorted by count at index %d", i)
		}
	}
}

func TestInsightRules(t *testing.T) {
	p := PatternAnalysis{
		UnreadNewsletters: 60,
		LargeEmails:       25,
		Duplicates:        15,
		Phishy:            6,
	}
	senders := []SenderCount{{Sender: "noisy@example.com", Total: 80, Unread: 40}}
	var times TimeAnalysis
	times.ByHour[9] = 30
	stats := inbox.Stats{TotalEmails: 3000, UnreadEmails: 1500}

	insights := rankInsights(generateInsights(p, senders, times, stats))

	if len(insights) > 10 {
		t.Fatalf("insights = %d, want at most 10", len(insights))
	}
	for i := 1; i < len(insights); i++ {
		if priorityRank[insights[i].Priority] < priorityRank[insights[i-1].Priority] {
			t.Errorf("insights not sorted by priority at index %d", i)
		}
	}

	titles := make(map[string]Insight)
	for _, in := range insights {
		titles[in.Title] = in
	}
	backlog, ok := titles["Large unread backlog"]
	if !ok {
		t.Fatal("expected backlog warning for 1500 unread")
	}
	if backlog.Priority != PriorityHigh || backlog.Category != AreaCleanup {
		t.Errorf("backlog insight = %+v", backlog)
	}
	if backlog.Action == nil || backlog.Action.Operation != "markRead" {
		t.Errorf("backlog action = %+v, want markRead", backlog.Action)
	}
	if _, ok := titles["Unread newsletters piling up"]; !ok {
		t.Error("expected newsletter recommendation for 60 unread newsletters")
	}
	if _, ok := titles["Possible phishing emails"]; !ok {
		t.Error("expected security warning for 6 phishy messages")
	}
	peak, ok := titles["Peak email hour"]
	if !ok {
		t.Fatal("expected peak hour insight")
	}
	if !strings.Contains(peak.Description, "9 AM") {
		t.Errorf("peak description = %q, want 9 AM", peak.Description)
	}
	if _, ok := titles["High unread ratio"]; !ok {
		t.Error("expected unread ratio warning at 50%")
	}
}

func TestInsightRulesQuietMailbox(t *testing.T) {
	insights := generateInsights(PatternAnalysis{}, nil, TimeAnalysis{}, inbox.Stats{TotalEmails: 40, UnreadEmails: 2})
	if len(insights) != 0 {
		t.Errorf("quiet mailbox should fire no rules, got %d: %+v", len(insights), insights)
	}
}

func TestScoreHealth(t *testing.T) {
	tests := []struct {
		name     string
		patterns PatternAnalysis
		stats    inbox.Stats
		want     HealthScore
	}{
		{
			name:  "empty mailbox scores perfect",
			stats: inbox.Stats{},
			want:  HealthScore{Cleanliness: 100, Organization: 100, Productivity: 100},
		},
		{
			name:  "unread backlog drags cleanliness and productivity",
			stats: inbox.Stats{TotalEmails: 1000, UnreadEmails: 600},
			want:  HealthScore{Cleanliness: 70, Organization: 100, Productivity: 94},
		},
		{
			name:     "fully cluttered mailbox",
			patterns: PatternAnalysis{OldEmails: 1000, UnreadNewsletters: 1000, Duplicates: 1000},
			stats:    inbox.Stats{TotalEmails: 1000, UnreadEmails: 1000},
			want:     HealthScore{Cleanliness: 20, Organization: 40, Productivity: 90},
		},
		{
			name:  "productivity clamps at zero",
			stats: inbox.Stats{TotalEmails: 50000, UnreadEmails: 20000},
			want:  HealthScore{Cleanliness: 80, Organization: 100, Productivity: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreHealth(tt.patterns, tt.stats)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatHour(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "12 AM"},
		{5, "5 AM"},
		{12, "12 PM"},
		{17, "5 PM"},
	}
	for _, tt := range tests {
		if got := formatHour(tt.hour); got != tt.want {
			t.Errorf("formatHour(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	now := time.Now()
	messages := []inbox.Message{
		{From: "digest@news.com", Subject: "Weekly digest", Unread: true, Date: now.Add(-time.Hour)},
		{From: "jane@gmail.com", Subject: "lunch", Date: now.Add(-2 * time.Hour)},
	}
	stats := inbox.ComputeStats(messages)

	a := Analyze(messages, stats)
	if a.Patterns.Newsletters != 1 {
		t.Errorf("newsletters = %d, want 1", a.Patterns.Newsletters)
	}
	if len(a.Senders) != 2 {
		t.Errorf("senders = %d, want 2", len(a.Senders))
	}
	for _, s := range []int{a.Score.Cleanliness, a.Score.Organization, a.Score.Productivity} {
		if s < 0 || s > 100 {
			t.Errorf("score %d out of range", s)
		}
	}
}
