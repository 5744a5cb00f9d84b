// Package web exposes the local JSON API: browse imported emails, kick off
// unsubscribe batches as background jobs, and poll their progress.
package web

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/mailsweep/mailsweep/internal/agent"
	"github.com/mailsweep/mailsweep/internal/store"
)

const (
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute
	jobRetention      = time.Hour
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
	store          *store.Store
	runner         *agent.Runner
	addr           string
	httpServer     *http.Server
	csrfKey        []byte
	rateLimiter    *RateLimiter
	jobManager     *JobManager
	jobPersistence *JobPersistence
}

func NewServer(addr string, st *store.Store, runner *agent.Runner) (*Server, error) {
	csrfKey := make([]byte, 32)
	if _, err := rand.Read(csrfKey); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}

	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".mailsweep")

	return &Server{
		store:          st,
		runner:         runner,
		addr:           addr,
		csrfKey:        csrfKey,
		rateLimiter:    NewRateLimiter(defaultRateLimit, defaultRateWindow),
		jobManager:     NewJobManager(),
		jobPersistence: NewJobPersistence(dataDir),
	}, nil
}

func (s *Server) Start() error {
	s.checkPendingJob()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.setupRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	log.Printf("listening on http://%s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// checkPendingJob resumes a batch that was interrupted by a restart.
func (s *Server) checkPendingJob() {
	state, err := s.jobPersistence.Load()
	if err != nil || state == nil {
		return
	}
	s.jobPersistence.Clear()

	if len(state.RemainingEmails) == 0 {
		return
	}

	log.Printf("resuming interrupted job %s with %d emails remaining", state.ID, len(state.RemainingEmails))
	job := s.jobManager.Create(state.Total)
	job.Unsubscribed = state.Unsubscribed
	job.Failed = state.Failed
	go s.runBatch(job, state.RemainingEmails)
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)

	csrfMiddleware := csrf.Protect(
		s.csrfKey,
		csrf.Secure(false), // Allow HTTP for localhost
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.TrustedOrigins([]string{"localhost", "127.0.0.1", s.addr}),
	)
	r.Use(csrfMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf", s.handleCSRFToken)
		r.Get("/stats", s.handleStats)
		r.Get("/emails", s.handleEmails)
		r.Get("/emails/{emailID}/attempts", s.handleEmailAttempts)
		r.Post("/emails/unsubscribe", s.handleUnsubscribe)
		r.Get("/jobs/active", s.handleJobActive)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Post("/jobs/{jobID}/cancel", s.handleJobCancel)
	})

	return r
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; frame-ancestors 'none'; base-uri 'self'")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": csrf.Token(r)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"emails":           stats.Emails,
		"attempts":         stats.Attempts,
		"unsubscribed":     stats.Unsubscribed,
		"failed":           stats.FailedAttempts,
		"distinct_senders": stats.DistinctSenders,
	})
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		fmt.Sscanf(q, "%d", &limit)
	}
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	emails, err := s.store.ListEmails(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load emails")
		return
	}

	type emailJSON struct {
		ID         int64     `json:"id"`
		Subject    string    `json:"subject"`
		FromName   string    `json:"from_name"`
		FromEmail  string    `json:"from_email"`
		Snippet    string    `json:"snippet"`
		ReceivedAt time.Time `json:"received_at"`
	}
	out := make([]emailJSON, 0, len(emails))
	for _, e := range emails {
		out = append(out, emailJSON{
			ID:         e.ID,
			Subject:    e.Subject,
			FromName:   e.FromName,
			FromEmail:  e.FromEmail,
			Snippet:    e.Snippet,
			ReceivedAt: e.ReceivedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": out})
}

func (s *Server) handleEmailAttempts(w http.ResponseWriter, r *http.Request) {
	var emailID int64
	if _, err := fmt.Sscanf(chi.URLParam(r, "emailID"), "%d", &emailID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}

	attempts, err := s.store.GetAttempts(emailID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load attempts")
		return
	}

	type attemptJSON struct {
		Link        string    `json:"link"`
		Success     bool      `json:"success"`
		Error       string    `json:"error,omitempty"`
		AttemptedAt time.Time `json:"attempted_at"`
	}
	out := make([]attemptJSON, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptJSON{a.Link, a.Success, a.Error, a.AttemptedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": out})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimiter.Allow(r.RemoteAddr) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if s.jobManager.GetActive() != nil {
		writeError(w, http.StatusConflict, "a job is already running")
		return
	}

	var req struct {
		EmailIDs []int64 `json:"email_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.EmailIDs) == 0 {
		writeError(w, http.StatusBadRequest, "email_ids is required")
		return
	}

	job := s.jobManager.Create(len(req.EmailIDs))
	go s.runBatch(job, req.EmailIDs)

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// runBatch processes emails one at a time so progress and cancellation stay
// responsive, persisting the remaining work between emails.
func (s *Server) runBatch(job *Job, emailIDs []int64) {
	defer s.jobManager.Cleanup(jobRetention)
	defer s.jobPersistence.Clear()

	unsubscribed, failed := job.Unsubscribed, job.Failed

	for i, id := range emailIDs {
		if job.IsCancelled() {
			return
		}

		email, err := s.store.GetEmail(id)
		if err != nil || email == nil {
			failed++
			job.Update(unsubscribed, failed, "")
			continue
		}

		job.Update(unsubscribed, failed, email.FromEmail)

		s.jobPersistence.Save(&PersistentJobState{
			ID:              job.ID,
			Status:          JobStatusRunning,
			Unsubscribed:    unsubscribed,
			Failed:          failed,
			Total:           job.Total,
			StartedAt:       job.StartedAt,
			RemainingEmails: emailIDs[i:],
		})

		summary := s.runner.Run(job.Context(), []agent.EmailInput{{
			EmailID:   email.ID,
			MessageID: email.MessageID,
			BodyHTML:  email.BodyHTML,
		}})

		if summary.Unsubscribed > 0 {
			unsubscribed++
		} else {
			failed++
		}
		job.Update(unsubscribed, failed, "")
	}

	job.Complete()
}

func (s *Server) handleJobActive(w http.ResponseWriter, r *http.Request) {
	job := s.jobManager.GetActive()
	if job == nil {
		writeJSON(w, http.StatusOK, map[string]any{"job": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job.ToJSON()})
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
