// Package insight derives ranked, actionable findings from aggregate
// mailbox statistics.
package insight

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/daniellauding/email-cleaner/internal/inbox"
)

// Type tags what kind of finding an insight is
type Type string

const (
	TypeRecommendation Type = "recommendation"
	TypeWarning        Type = "warning"
	TypeInfo           Type = "info"
	TypeSuccess        Type = "success"
)

// Priority orders insights for presentation
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Area groups insights by the kind of action they suggest
type Area string

const (
	AreaCleanup      Area = "cleanup"
	AreaOrganization Area = "organization"
	AreaProductivity Area = "productivity"
	AreaSecurity     Area = "security"
)

// Action is an optional suggested follow-up attached to an insight
type Action struct {
	Label     string            `json:"label"`
	Operation string            `json:"operation"`
	Params    map[string]string `json:"params,omitempty"`
}

// Insight is one actionable finding. Insights are generated fresh per
// analysis call and never persisted.
type Insight struct {
	Type        Type     `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Category    Area     `json:"category"`
	Action      *Action  `json:"action,omitempty"`
}

// PatternAnalysis holds the counters the insight rules fire on
type PatternAnalysis struct {
	Newsletters       int `json:"newsletters"`
	UnreadNewsletters int `json:"unreadNewsletters"`
	OldEmails         int `json:"oldEmails"`    // older than 30 days
	LargeEmails       int `json:"largeEmails"`  // larger than 5,000,000 bytes
	Duplicates        int `json:"duplicates"`   // same (sender, subject) pair
	Phishy            int `json:"phishy"`       // matched the phishing heuristic
}

// SenderCount is one row of the sender analysis
type SenderCount struct {
	Sender string `json:"sender"`
	Total  int    `json:"total"`
	Unread int    `json:"unread"`
}

// TimeAnalysis histograms message arrival by weekday and hour
type TimeAnalysis struct {
	ByWeekday [7]int  `json:"byWeekday"`
	ByHour    [24]int `json:"byHour"`
}

// HealthScore holds the three 0-100 mailbox scores
type HealthScore struct {
	Cleanliness  int `json:"cleanliness"`
	Organization int `json:"organization"`
	Productivity int `json:"productivity"`
}

// Analysis is the full result of one analyze call
type Analysis struct {
	Insights []Insight       `json:"insights"`
	Patterns PatternAnalysis `json:"patterns"`
	Senders  []SenderCount   `json:"topSenders"`
	Times    TimeAnalysis    `json:"times"`
	Stats    inbox.Stats     `json:"stats"`
	Score    HealthScore     `json:"score"`
}

const (
	oldEmailCutoff  = 30 * 24 * time.Hour
	largeEmailBytes = 5_000_000
	maxInsights     = 10
	topSenderCount  = 10
)

// Analyze runs every sub-analysis over the message collection and summary
// statistics, fires all applicable insight rules, ranks them by priority and
// caps the list at ten.
func Analyze(messages []inbox.Message, stats inbox.Stats) Analysis {
	return analyzeAt(messages, stats, time.Now())
}

func analyzeAt(messages []inbox.Message, stats inbox.Stats, now time.Time) Analysis {
	a := Analysis{
		Patterns: analyzePatterns(messages, now),
		Senders:  analyzeSenders(messages),
		Times:    analyzeTimes(messages),
		Stats:    stats,
	}
	a.Insights = rankInsights(generateInsights(a.Patterns, a.Senders, a.Times, stats))
	a.Score = scoreHealth(a.Patterns, stats)
	return a
}

// analyzePatterns counts newsletters, stale mail, oversized mail and
// duplicates. Duplicate detection keys on (sender, subject) only, which
// conflates recurring automated mail with true duplicates; that is the
// documented heuristic, not a defect.
func analyzePatterns(messages []inbox.Message, now time.Time) PatternAnalysis {
	p := PatternAnalysis{}
	cutoff := now.Add(-oldEmailCutoff)
	distinct := make(map[string]bool)

	for i := range messages {
		m := &messages[i]
		if inbox.IsNewsletter(m) {
			p.Newsletters++
			if m.Unread {
				p.UnreadNewsletters++
			}
		}
		if m.Date.Before(cutoff) {
			p.OldEmails++
		}
		if m.SizeEstimate > largeEmailBytes {
			p.LargeEmails++
		}
		if inbox.LooksPhishy(m) {
			p.Phishy++
		}
		distinct[strings.ToLower(m.From)+":"+strings.ToLower(m.Subject)] = true
	}
	p.Duplicates = len(messages) - len(distinct)
	return p
}

// analyzeSenders tallies per-sender totals and returns the top ten by count
func analyzeSenders(messages []inbox.Message) []SenderCount {
	totals := make(map[string]*SenderCount)
	var order []string
	for i := range messages {
		m := &messages[i]
		sc, ok := totals[m.From]
		if !ok {
			sc = &SenderCount{Sender: m.From}
			totals[m.From] = sc
			order = append(order, m.From)
		}
		sc.Total++
		if m.Unread {
			sc.Unread++
		}
	}

	senders := make([]SenderCount, 0, len(order))
	for _, from := range order {
		senders = append(senders, *totals[from])
	}
	sort.SliceStable(senders, func(i, j int) bool {
		return senders[i].Total > senders[j].Total
	})
	if len(senders) > topSenderCount {
		senders = senders[:topSenderCount]
	}
	return senders
}

func analyzeTimes(messages []inbox.Message) TimeAnalysis {
	t := TimeAnalysis{}
	for i := range messages {
		ts := messages[i].Date
		if ts.IsZero() {
			continue
		}
		t.ByWeekday[int(ts.Weekday())]++
		t.ByHour[ts.Hour()]++
	}
	return t
}

// generateInsights evaluates every rule independently; all applicable rules
// fire.
func generateInsights(p PatternAnalysis, senders []SenderCount, times TimeAnalysis, stats inbox.Stats) []Insight {
	var insights []Insight

	if stats.UnreadEmails > 1000 {
		insights = append(insights, Insight{
			Type:        TypeWarning,
			Title:       "Large unread backlog",
			Description: fmt.Sprintf("You have %d unread emails. Marking old mail as read makes the rest manageable.", stats.UnreadEmails),
			Priority:    PriorityHigh,
			Category:    AreaCleanup,
			Action: &Action{
				Label:     "Mark old emails as read",
				Operation: "markRead",
				Params:    map[string]string{"query": inbox.CombineQuery(inbox.QueryUnread(), inbox.QueryBefore(time.Now().AddDate(0, -1, 0)))},
			},
		})
	}

	if p.UnreadNewsletters > 50 {
		insights = append(insights, Insight{
			Type:        TypeRecommendation,
			Title:       "Unread newsletters piling up",
			Description: fmt.Sprintf("%d newsletters sit unread. Unsubscribing from them stops the influx at the source.", p.UnreadNewsletters),
			Priority:    PriorityHigh,
			Category:    AreaCleanup,
			Action: &Action{
				Label:     "Bulk unsubscribe",
				Operation: "unsubscribe",
				Params:    map[string]string{"query": inbox.QueryHasList()},
			},
		})
	}

	if p.LargeEmails > 20 {
		insights = append(insights, Insight{
			Type:        TypeInfo,
			Title:       "Large attachments found",
			Description: fmt.Sprintf("%d emails are larger than 5 MB and dominate your storage.", p.LargeEmails),
			Priority:    PriorityMedium,
			Category:    AreaCleanup,
			Action: &Action{
				Label:     "Review large emails",
				Operation: "search",
				Params:    map[string]string{"query": inbox.QueryLargerMB(5)},
			},
		})
	}

	if len(senders) > 0 && senders[0].Total > 50 && senders[0].Unread > 20 {
		insights = append(insights, Insight{
			Type:        TypeRecommendation,
			Title:       "One sender dominates your inbox",
			Description: fmt.Sprintf("%s sent %d emails (%d unread). A filter or label would keep them out of the way.", senders[0].Sender, senders[0].Total, senders[0].Unread),
			Priority:    PriorityMedium,
			Category:    AreaOrganization,
		})
	}

	if p.Duplicates > 10 {
		insights = append(insights, Insight{
			Type:        TypeInfo,
			Title:       "Duplicate emails detected",
			Description: fmt.Sprintf("%d emails share a sender and subject with another message.", p.Duplicates),
			Priority:    PriorityLow,
			Category:    AreaOrganization,
		})
	}

	if peak, count := peakHour(times); count > 0 {
		insights = append(insights, Insight{
			Type:        TypeInfo,
			Title:       "Peak email hour",
			Description: fmt.Sprintf("Most of your mail arrives around %s. Batching your inbox time there saves interruptions.", formatHour(peak)),
			Priority:    PriorityLow,
			Category:    AreaProductivity,
		})
	}

	if stats.TotalEmails > 0 && float64(stats.UnreadEmails)/float64(stats.TotalEmails) > 0.3 {
		insights = append(insights, Insight{
			Type:        TypeWarning,
			Title:       "High unread ratio",
			Description: fmt.Sprintf("%d%% of your mailbox is unread; important mail is easy to miss.", stats.UnreadEmails*100/stats.TotalEmails),
			Priority:    PriorityMedium,
			Category:    AreaProductivity,
		})
	}

	if p.Phishy > 5 {
		insights = append(insights, Insight{
			Type:        TypeWarning,
			Title:       "Possible phishing emails",
			Description: fmt.Sprintf("%d emails match common phishing indicators. Review them before clicking anything.", p.Phishy),
			Priority:    PriorityHigh,
			Category:    AreaSecurity,
		})
	}

	return insights
}

var priorityRank = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// rankInsights sorts by descending priority (stable otherwise) and caps the
// list
func rankInsights(insights []Insight) []Insight {
	sort.SliceStable(insights, func(i, j int) bool {
		return priorityRank[insights[i].Priority] < priorityRank[insights[j].Priority]
	})
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// scoreHealth computes the three 0-100 scores. Each formula is independent
// and clamped into range.
func scoreHealth(p PatternAnalysis, stats inbox.Stats) HealthScore {
	total := stats.TotalEmails
	if total == 0 {
		return HealthScore{Cleanliness: 100, Organization: 100, Productivity: 100}
	}

	unreadRatio := float64(stats.UnreadEmails) / float64(total)
	oldRatio := float64(p.OldEmails) / float64(total)
	unreadNewsRatio := float64(p.UnreadNewsletters) / float64(total)
	dupRatio := float64(p.Duplicates) / float64(total)

	return HealthScore{
		Cleanliness:  clampScore(100 - unreadRatio*50 - oldRatio*30),
		Organization: clampScore(100 - unreadNewsRatio*40 - dupRatio*20),
		Productivity: clampScore(100 - float64(stats.UnreadEmails)/100),
	}
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

func peakHour(t TimeAnalysis) (hour, count int) {
	for h, c := range t.ByHour {
		if c > count {
			hour, count = h, c
		}
	}
	return hour, count
}

// formatHour renders an hour-of-day as a 12-hour clock label
func formatHour(h int) string {
	switch {
	case h == 0:
		return "12 AM"
	case h < 12:
		return fmt.Sprintf("%d AM", h)
	case h == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", h-12)
	}
}
