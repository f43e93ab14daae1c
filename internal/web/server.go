// Package web exposes the review engine over a JSON HTTP API. It performs no
// authentication itself: the owner identity arrives in the X-Owner-ID header,
// placed there by the fronting access layer.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/retain-srs/retain/internal/domain"
	"github.com/retain-srs/retain/internal/ingest"
	"github.com/retain-srs/retain/internal/review"
	"github.com/retain-srs/retain/internal/sm2"
	"github.com/retain-srs/retain/internal/storage"
)

// ownerHeader carries the authenticated owner id set by the access layer.
const ownerHeader = "X-Owner-ID"

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc      *review.Service
	importer *ingest.Importer
	router   *http.ServeMux
	pageSize int
}

// NewServer creates and configures a new server. pageSize caps due-card
// pages; values outside (0, pageSize] are clamped to it.
func NewServer(svc *review.Service, importer *ingest.Importer, pageSize int) *Server {
	if pageSize <= 0 {
		pageSize = 50
	}
	s := &Server{
		svc:      svc,
		importer: importer,
		router:   http.NewServeMux(),
		pageSize: pageSize,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.HandleFunc("POST /api/cards", s.handleCreateCard)
	s.router.HandleFunc("GET /api/cards/{id}", s.handleGetCard)
	s.router.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)
	s.router.HandleFunc("GET /api/cards/{id}/history", s.handleGetHistory)
	s.router.HandleFunc("POST /api/cards/{id}/review", s.handlePostReview)
	s.router.HandleFunc("GET /api/due", s.handleGetDue)
	s.router.HandleFunc("GET /api/stats", s.handleGetStats)
	s.router.HandleFunc("POST /api/import", s.handlePostImport)
}

// owner extracts the authenticated owner id, writing a 401 if it is absent.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return "", false
	}
	return owner, true
}

type cardResponse struct {
	ID             string     `json:"id"`
	Scope          string     `json:"scope,omitempty"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	Context        string     `json:"context,omitempty"`
	EaseFactor     float64    `json:"ease_factor"`
	IntervalDays   int        `json:"interval_days"`
	Repetitions    int        `json:"repetitions"`
	NextReviewDate time.Time  `json:"next_review_date"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	TotalReviews   int        `json:"total_reviews"`
	CorrectReviews int        `json:"correct_reviews"`
	Tier           string     `json:"tier"`
}

func toCardResponse(c *domain.Flashcard) cardResponse {
	rs := c.Retention
	return cardResponse{
		ID:             c.ID,
		Scope:          c.Scope,
		Question:       c.Question,
		Answer:         c.Answer,
		Context:        c.Context,
		EaseFactor:     rs.EaseFactor,
		IntervalDays:   rs.IntervalDays,
		Repetitions:    rs.Repetitions,
		NextReviewDate: rs.NextReviewDate,
		LastReviewedAt: rs.LastReviewedAt,
		TotalReviews:   rs.TotalReviews,
		CorrectReviews: rs.CorrectReviews,
		Tier:           domain.TierOf(rs).String(),
	}
}

type eventResponse struct {
	ID               string    `json:"id"`
	FlashcardID      string    `json:"flashcard_id"`
	Quality          int       `json:"quality"`
	WasCorrect       bool      `json:"was_correct"`
	TimeSpentSeconds *int      `json:"time_spent_seconds,omitempty"`
	EaseFactorAfter  float64   `json:"ease_factor_after"`
	IntervalAfter    int       `json:"interval_days_after"`
	ReviewedAt       time.Time `json:"reviewed_at"`
}

func toEventResponse(ev *domain.ReviewEvent) eventResponse {
	return eventResponse{
		ID:               ev.ID,
		FlashcardID:      ev.FlashcardID,
		Quality:          ev.Quality,
		WasCorrect:       ev.WasCorrect,
		TimeSpentSeconds: ev.TimeSpentSeconds,
		EaseFactorAfter:  ev.EaseFactorAfter,
		IntervalAfter:    ev.IntervalAfter,
		ReviewedAt:       ev.ReviewedAt,
	}
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		Scope    string `json:"scope"`
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Context  string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "question and answer are required")
		return
	}
	card, err := s.svc.CreateCard(r.Context(), owner, req.Scope, req.Question, req.Answer, req.Context)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardResponse(card))
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	card, err := s.svc.GetCard(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeleteCard(r.Context(), owner, r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	events, err := s.svc.History(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		Quality          int    `json:"quality"`
		TimeSpentSeconds *int   `json:"time_spent_seconds"`
		IdempotencyKey   string `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ev, err := s.svc.ApplyReview(r.Context(), review.ApplyParams{
		OwnerID:          owner,
		CardID:           r.PathValue("id"),
		Quality:          req.Quality,
		TimeSpentSeconds: req.TimeSpentSeconds,
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

func (s *Server) handleGetDue(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}

	var asOf time.Time
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be RFC 3339")
			return
		}
		asOf = t
	}
	limit := s.pageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	page, err := s.svc.ListDue(r.Context(), owner, asOf,
		r.URL.Query().Get("scope"), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	cards := make([]cardResponse, 0, len(page.Cards))
	for i := range page.Cards {
		cards = append(cards, toCardResponse(&page.Cards[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cards":       cards,
		"next_cursor": page.NextCursor,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	stats, err := s.svc.GetDeckStats(r.Context(), owner, r.URL.Query().Get("scope"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePostImport(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		Scope string `json:"scope"`
		Dir   string `json:"dir"`
		Git   string `json:"git"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		sum *ingest.Summary
		err error
	)
	switch {
	case req.Git != "" && req.Dir != "":
		writeError(w, http.StatusBadRequest, "specify either dir or git, not both")
		return
	case req.Git != "":
		sum, err = s.importer.ImportGit(r.Context(), owner, req.Scope, req.Git)
	case req.Dir != "":
		sum, err = s.importer.ImportDir(r.Context(), owner, req.Scope, req.Dir)
	default:
		writeError(w, http.StatusBadRequest, "dir or git is required")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// writeServiceError maps engine errors to HTTP statuses so callers can tell
// a bad request from a missing card from a storage failure.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sm2.ErrInvalidQuality), errors.Is(err, storage.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
