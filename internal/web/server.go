// Package web serves a local JSON API over the analysis and unsubscribe
// pipeline. It binds to localhost only; there is no authentication layer.
package web

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/daniellauding/email-cleaner/internal/ai"
	"github.com/daniellauding/email-cleaner/internal/config"
	"github.com/daniellauding/email-cleaner/internal/history"
	"github.com/daniellauding/email-cleaner/internal/inbox"
	"github.com/daniellauding/email-cleaner/internal/insight"
	"github.com/daniellauding/email-cleaner/internal/senders"
	"github.com/daniellauding/email-cleaner/internal/unsub"
)

const (
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute
	defaultMaxFetch   = 100

	// A domain with a succeeded attempt inside this window is not retried
	recentSuccessWindow = 30 * 24 * time.Hour
)

type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) filterRecent(times []time.Time, windowStart time.Time) []time.Time {
	n := 0
	for _, t := range times {
		if t.After(windowStart) {
			times[n] = t
			n++
		}
	}
	return times[:n]
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.filterRecent(rl.requests[key], now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		windowStart := time.Now().Add(-rl.window)
		for key, times := range rl.requests {
			recent := rl.filterRecent(times, windowStart)
			if len(recent) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = recent
			}
		}
		rl.mu.Unlock()
	}
}

type Server struct {
	config       *config.Config
	gateway      inbox.Gateway
	aiChain      *ai.Chain
	historyStore *history.Store
	senderDB     *senders.Database
	httpServer   *http.Server
	addr         string
	csrfKey      []byte
	rateLimiter  *RateLimiter
	jobManager   *JobManager
	persistence  *JobPersistence
}

func NewServer(addr string, cfg *config.Config, gateway inbox.Gateway, aiChain *ai.Chain, historyStore *history.Store, senderDB *senders.Database) (*Server, error) {
	csrfKey := make([]byte, 32)
	if _, err := rand.Read(csrfKey); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}

	return &Server{
		config:       cfg,
		gateway:      gateway,
		aiChain:      aiChain,
		historyStore: historyStore,
		senderDB:     senderDB,
		addr:         addr,
		csrfKey:      csrfKey,
		rateLimiter:  NewRateLimiter(defaultRateLimit, defaultRateWindow),
		jobManager:   NewJobManager(),
		persistence:  NewJobPersistence(DefaultDataDir()),
	}, nil
}

// Start starts the API server
func (s *Server) Start() error {
	router := s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.jobCleanupLoop()
	go s.resumePendingJob()

	fmt.Printf("Serving email-cleaner API at http://%s\n", s.addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRouter configures all routes
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)
	r.Use(s.limitRequests)

	// CSRF protection, localhost-only deployment so Secure is off
	csrfMiddleware := csrf.Protect(
		s.csrfKey,
		csrf.Secure(false),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.TrustedOrigins([]string{"localhost", "127.0.0.1", s.addr}),
	)
	r.Use(csrfMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/insights", s.handleInsights)
		r.Post("/summarize", s.handleSummarize)
		r.Post("/unsubscribe", s.handleUnsubscribe)
		r.Get("/job/active", s.handleJobActive)
		r.Get("/job/{jobID}/status", s.handleJobStatus)
		r.Post("/job/{jobID}/cancel", s.handleJobCancel)
		r.Get("/history", s.handleHistory)
		r.Get("/senders", s.handleSenders)
	})

	return r
}

// securityHeaders adds security headers to all responses
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// limitRequests applies the per-client rate limit
func (s *Server) limitRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fetchMessages pulls up to max messages matching the query, paging through
// the gateway
func (s *Server) fetchMessages(ctx context.Context, query string, max int, format inbox.Format) ([]inbox.Message, error) {
	var messages []inbox.Message
	pageToken := ""

	for len(messages) < max {
		batch := int64(max - len(messages))
		page, err := s.gateway.ListMessages(ctx, query, batch, pageToken)
		if err != nil {
			return nil, err
		}
		for i := range page.Messages {
			m := page.Messages[i]
			if format == inbox.FormatFull {
				full, err := s.gateway.GetMessage(ctx, m.ID, inbox.FormatFull)
				if err != nil {
					log.Printf("failed to fetch message %s: %v", m.ID, err)
					continue
				}
				m = *full
			}
			messages = append(messages, m)
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return messages, nil
}

func queryParams(r *http.Request) (string, int) {
	query := r.URL.Query().Get("query")
	max := defaultMaxFetch
	if raw := r.URL.Query().Get("max"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			max = n
		}
	}
	return query, max
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	query, max := queryParams(r)

	messages, err := s.fetchMessages(r.Context(), query, max, inbox.FormatMetadata)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("mailbox fetch failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      inbox.ComputeStats(messages),
		"categories": inbox.CountByCategory(messages),
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	query, max := queryParams(r)

	messages, err := s.fetchMessages(r.Context(), query, max, inbox.FormatMetadata)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("mailbox fetch failed: %v", err))
		return
	}

	stats := inbox.ComputeStats(messages)
	analysis := insight.Analyze(messages, stats)

	response := map[string]interface{}{
		"stats":    stats,
		"analysis": analysis,
	}

	if s.aiChain != nil {
		narrative, err := s.aiChain.GenerateInsights(r.Context(), ai.InsightRequest{
			Stats:    stats,
			Patterns: analysis.Patterns,
		})
		if err != nil {
			log.Printf("insight narrative failed: %v", err)
		} else {
			response["narrative"] = narrative
			response["provider"] = s.aiChain.Current()
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.aiChain == nil {
		writeError(w, http.StatusServiceUnavailable, "no analysis providers configured")
		return
	}

	query, max := queryParams(r)
	messages, err := s.fetchMessages(r.Context(), query, max, inbox.FormatMetadata)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("mailbox fetch failed: %v", err))
		return
	}

	emails := make([]ai.EmailSummary, len(messages))
	for i, m := range messages {
		emails[i] = ai.EmailSummary{Subject: m.Subject, From: m.From, Snippet: m.Snippet}
	}

	summary, err := s.aiChain.SummarizeEmails(r.Context(), emails)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("summarization failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":  summary,
		"provider": s.aiChain.Current(),
		"count":    len(emails),
	})
}

type unsubscribeRequest struct {
	Query  string `json:"query"`
	Max    int    `json:"max"`
	DryRun bool   `json:"dryRun"`
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if active := s.jobManager.GetActive(); active != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("job %s is already running", active.ID))
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		req.Query = inbox.QueryHasList()
	}
	if req.Max <= 0 || req.Max > 500 {
		req.Max = defaultMaxFetch
	}

	messages, err := s.fetchMessages(r.Context(), req.Query, req.Max, inbox.FormatFull)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("mailbox fetch failed: %v", err))
		return
	}
	messages = s.filterExcluded(messages)
	messages = s.filterRecentlyHandled(messages)
	if len(messages) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"total": 0})
		return
	}

	job := s.jobManager.Create(len(messages))
	if !req.DryRun && !s.config.Options.DryRun {
		s.savePendingJob(job, messages, req.Query, 0, 0)
	}
	go s.processUnsubscribeJob(job, messages, req.DryRun, req.Query)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"total":  len(messages),
	})
}

// filterExcluded drops messages from excluded domains and senders marked
// keep in the sender database
func (s *Server) filterExcluded(messages []inbox.Message) []inbox.Message {
	excluded := make(map[string]bool)
	for _, d := range s.config.Options.ExcludedDomains {
		excluded[d] = true
	}

	var kept []inbox.Message
	for i := range messages {
		domain := messages[i].SenderDomain()
		if excluded[domain] {
			continue
		}
		if s.senderDB != nil {
			if rec := s.senderDB.FindByDomain(domain); rec != nil && rec.Keep {
				continue
			}
		}
		kept = append(kept, messages[i])
	}
	return kept
}

// filterRecentlyHandled drops messages whose sender domain already has a
// recent succeeded unsubscribe attempt on record
func (s *Server) filterRecentlyHandled(messages []inbox.Message) []inbox.Message {
	if s.historyStore == nil {
		return messages
	}

	handled := make(map[string]bool)
	var kept []inbox.Message
	for i := range messages {
		domain := messages[i].SenderDomain()
		done, seen := handled[domain]
		if !seen {
			var err error
			done, err = s.historyStore.SucceededRecently(domain, recentSuccessWindow)
			if err != nil {
				log.Printf("history lookup for %s failed: %v", domain, err)
			}
			handled[domain] = done
		}
		if !done {
			kept = append(kept, messages[i])
		}
	}
	return kept
}

// processUnsubscribeJob runs in a background goroutine. Progress is written
// to the pending-job state file after every item so an interrupted run can
// pick up the leftover domains on the next start.
func (s *Server) processUnsubscribeJob(job *Job, messages []inbox.Message, dryRun bool, query string) {
	dry := dryRun || s.config.Options.DryRun
	persist := !dry
	executor := unsub.NewExecutor(dry)
	rateLimitMs := s.config.Options.RateLimitMs
	succeeded, failed := 0, 0

	for i := range messages {
		if job.IsCancelled() {
			if persist {
				s.clearPendingJob()
			}
			return
		}
		m := &messages[i]
		job.Update(succeeded, failed, m.From)

		batch := executor.ProcessBatch(job.Context(), messages[i:i+1])
		item := batch.Items[0]
		if item.Success {
			succeeded++
		} else {
			failed++
		}
		s.recordAttempt(item, dryRun)
		if persist {
			s.savePendingJob(job, messages[i+1:], query, succeeded, failed)
		}

		if i < len(messages)-1 && rateLimitMs > 0 {
			select {
			case <-job.Context().Done():
				if persist {
					s.clearPendingJob()
				}
				return
			case <-time.After(time.Duration(rateLimitMs) * time.Millisecond):
			}
		}
	}

	job.Update(succeeded, failed, "")
	job.Complete()
	if persist {
		s.clearPendingJob()
	}
	log.Printf("unsubscribe job %s done: %d succeeded, %d failed", job.ID, succeeded, failed)
}

// savePendingJob writes the job's leftover work to disk
func (s *Server) savePendingJob(job *Job, remaining []inbox.Message, query string, succeeded, failed int) {
	if s.persistence == nil {
		return
	}

	seen := make(map[string]bool)
	var domains []string
	for i := range remaining {
		d := remaining[i].SenderDomain()
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}

	err := s.persistence.Save(&PersistentJobState{
		ID:               job.ID,
		Status:           JobStatusRunning,
		Succeeded:        succeeded,
		Failed:           failed,
		Total:            job.Total,
		StartedAt:        job.StartedAt,
		RemainingDomains: domains,
		Query:            query,
	})
	if err != nil {
		log.Printf("failed to persist job %s: %v", job.ID, err)
	}
}

func (s *Server) clearPendingJob() {
	if s.persistence == nil {
		return
	}
	if err := s.persistence.Clear(); err != nil {
		log.Printf("failed to clear pending job state: %v", err)
	}
}

// resumePendingJob picks up an unsubscribe job a previous run left behind
func (s *Server) resumePendingJob() {
	if s.persistence == nil {
		return
	}
	state, err := s.persistence.Load()
	if err != nil {
		log.Printf("failed to load pending job state: %v", err)
		return
	}
	if state == nil || len(state.RemainingDomains) == 0 {
		if state != nil {
			s.clearPendingJob()
		}
		return
	}

	log.Printf("resuming unsubscribe job %s: %d domains left", state.ID, len(state.RemainingDomains))

	ctx := context.Background()
	messages, err := s.fetchMessages(ctx, state.Query, defaultMaxFetch, inbox.FormatFull)
	if err != nil {
		// State stays on disk so the next start can retry
		job := s.jobManager.Create(len(state.RemainingDomains))
		job.StopWithError(fmt.Sprintf("mailbox fetch failed while resuming: %v", err))
		log.Printf("resume of job %s aborted: %v", state.ID, err)
		return
	}

	wanted := make(map[string]bool, len(state.RemainingDomains))
	for _, d := range state.RemainingDomains {
		wanted[d] = true
	}
	var remaining []inbox.Message
	for i := range messages {
		d := messages[i].SenderDomain()
		if wanted[d] {
			delete(wanted, d)
			remaining = append(remaining, messages[i])
		}
	}
	if len(remaining) == 0 {
		s.clearPendingJob()
		return
	}

	job := s.jobManager.Create(len(remaining))
	s.processUnsubscribeJob(job, remaining, s.config.Options.DryRun, state.Query)
}

// jobCleanupLoop prunes finished jobs so the manager does not grow without
// bound
func (s *Server) jobCleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.jobManager.Cleanup(24 * time.Hour)
	}
}

func (s *Server) recordAttempt(item unsub.ItemResult, dryRun bool) {
	if s.historyStore == nil || dryRun {
		return
	}

	status := history.StatusFailed
	if item.Success {
		status = history.StatusSucceeded
	} else if item.Method == string(inbox.MethodEmail) {
		status = history.StatusManual
	}

	err := s.historyStore.Add(&history.Attempt{
		MessageID:  item.MessageID,
		Sender:     item.Sender,
		Domain:     item.Domain,
		Link:       item.Link,
		Method:     item.Method,
		Confidence: item.Confidence,
		Status:     status,
		Detail:     item.Message,
	})
	if err != nil {
		log.Printf("failed to record attempt for %s: %v", item.Domain, err)
	}
}

func (s *Server) handleJobActive(w http.ResponseWriter, r *http.Request) {
	job := s.jobManager.GetActive()
	if job == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, job.ToJSON())
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobManager.Get(chi.URLParam(r, "jobID"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.ToJSON())
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	job := s.jobManager.Get(chi.URLParam(r, "jobID"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	writeJSON(w, http.StatusOK, job.ToJSON())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.historyStore == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	attempts, err := s.historyStore.RecentAttempts(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("history query failed: %v", err))
		return
	}
	summary, err := s.historyStore.Summarize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("history summary failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"summary":  summary,
	})
}

func (s *Server) handleSenders(w http.ResponseWriter, r *http.Request) {
	if s.senderDB == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"senders": []senders.Sender{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"senders": s.senderDB.Senders})
}
