// Package review implements the operations built around the SM-2 scheduler:
// recording reviews, selecting due cards, and aggregating deck statistics.
package review

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/retain-srs/retain/internal/domain"
	"github.com/retain-srs/retain/internal/sm2"
	"github.com/retain-srs/retain/internal/storage"
)

// Service coordinates the scheduler and the store. The clock is injected so
// tests control "now"; a nil clock means time.Now.
type Service struct {
	db  *storage.DB
	now func() time.Time
}

// NewService creates a review service over the given store.
func NewService(db *storage.DB, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, now: now}
}

// ApplyParams describes one submitted review.
type ApplyParams struct {
	OwnerID          string
	CardID           string
	Quality          int
	TimeSpentSeconds *int
	// IdempotencyKey, when set, makes retries of the same submission safe:
	// a replay returns the original event without touching any state.
	IdempotencyKey string
}

/// ApplyReview records one review of a card: it schedules the next state,
// overwrites the card's retention fields, and appends the history event, all
// in a single transaction. A failed transaction leaves the prior state and
// history untouched.
func (s *Service) ApplyReview(ctx context.Context, p ApplyParams) (*domain.ReviewEvent, error) {
	if !sm2.ValidQuality(p.Quality) {
		return nil, fmt.Errorf("%w: %d", sm2.ErrInvalidQuality, p.Quality)
	}

	now := s.now()
	var event *domain.ReviewEvent

	err := s.db.Transact(ctx, func(tx *storage.Tx) error {
		card, err := tx.Card(ctx, p.OwnerID, p.CardID)
		if err != nil {
			return err
		}

		if p.IdempotencyKey != "" {
			seen, err := tx.FindEventByIdempotencyKey(ctx, p.CardID, p.IdempotencyKey)
			if err != nil {
				return err
			}
			if seen != nil {
				event = seen
				return nil
			}
		}

		res, err := sm2.Schedule(p.Quality, card.Retention, now)
		if err != nil {
			return err
		}

		// reviewed_at is server-assigned and monotonic per card: clamp to the
		// previous review if the host clock stepped backwards.
		reviewedAt := now
		if prev := card.Retention.LastReviewedAt; prev != nil && reviewedAt.Before(*prev) {
			reviewedAt = *prev
		}

		next := domain.RetentionState{
			EaseFactor:     res.EaseFactor,
			IntervalDays:   res.IntervalDays,
			Repetitions:    res.Repetitions,
			NextReviewDate: res.NextReviewDate,
			LastReviewedAt: &reviewedAt,
			TotalReviews:   card.Retention.TotalReviews + 1,
			CorrectReviews: card.Retention.CorrectReviews,
		}
		if res.WasCorrect {
			next.CorrectReviews++
		}

		ev := &domain.ReviewEvent{
			ID:               s.db.NewID(),
			FlashcardID:      card.ID,
			OwnerID:          card.OwnerID,
			Quality:          p.Quality,
			WasCorrect:       res.WasCorrect,
			TimeSpentSeconds: p.TimeSpentSeconds,
			EaseFactorAfter:  res.EaseFactor,
			IntervalAfter:    res.IntervalDays,
			ReviewedAt:       reviewedAt,
		}

		if err := tx.UpdateRetention(ctx, card.ID, next); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, ev, p.IdempotencyKey); err != nil {
			return err
		}
		event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ListDue returns one page of the owner's due cards, most overdue first.
// A zero asOf means "due now".
func (s *Service) ListDue(ctx context.Context, ownerID string, asOf time.Time, scope, cursor string, limit int) (*storage.DuePage, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.db.ListDue(ctx, storage.DueQuery{
		OwnerID: ownerID,
		AsOf:    asOf,
		Scope:   scope,
		Cursor:  cursor,
		Limit:   limit,
	})
}

// DeckStats summarizes an owner's scoped card set for the dashboard.
type DeckStats struct {
	SuccessRate   int     `json:"success_rate"`
	TotalReviews  int     `json:"total_reviews"`
	AverageEase   float64 `json:"average_ease"`
	MasteredCards int     `json:"mastered_cards"`
	LearningCards int     `json:"learning_cards"`
	NewCards      int     `json:"new_cards"`
}

// GetDeckStats aggregates review statistics over the owner's cards,
// optionally restricted to one scope.
func (s *Service) GetDeckStats(ctx context.Context, ownerID, scope string) (*DeckStats, error) {
	counts, err := s.db.DeckCounts(ctx, ownerID, scope)
	if err != nil {
		return nil, err
	}
	return &DeckStats{
		SuccessRate:   SuccessRate(counts.CorrectReviews, counts.TotalReviews),
		TotalReviews:  counts.TotalReviews,
		AverageEase:   counts.AverageEase,
		MasteredCards: counts.Mastered,
		LearningCards: counts.Learning,
		NewCards:      counts.New,
	}, nil
}

// SuccessRate is the percentage of correct reviews, rounded half-up.
// Zero total reviews means a rate of 0, not a division error.
func SuccessRate(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(correct)/float64(total)*100 + 0.5))
}

// CreateCard creates a card with the default retention state, due
// immediately. The content hash dedupes identical cards per owner.
func (s *Service) CreateCard(ctx context.Context, ownerID, scope, question, answer, cardContext string) (*domain.Flashcard, error) {
	now := s.now()
	card := &domain.Flashcard{
		ID:        s.db.NewID(),
		OwnerID:   ownerID,
		Scope:     scope,
		Question:  question,
		Answer:    answer,
		Context:   cardContext,
		Hash:      domain.ContentHash(question, answer, cardContext),
		Retention: domain.NewRetentionState(now),
		CreatedAt: now,
	}
	if err := s.db.InsertCard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// GetCard returns one card with its retention state.
func (s *Service) GetCard(ctx context.Context, ownerID, cardID string) (*domain.Flashcard, error) {
	return s.db.GetCard(ctx, ownerID, cardID)
}

// DeleteCard removes a card and its review history.
func (s *Service) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	return s.db.DeleteCard(ctx, ownerID, cardID)
}

// History returns the card's review events, oldest first.
func (s *Service) History(ctx context.Context, ownerID, cardID string) ([]domain.ReviewEvent, error) {
	if _, err := s.db.GetCard(ctx, ownerID, cardID); err != nil {
		return nil, err
	}
	return s.db.EventsForCard(ctx, ownerID, cardID)
}
