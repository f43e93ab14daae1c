package domain

import "time"

// Flashcard is a single reviewable question-answer-context entry owned by
// one user. The content payload is opaque to the review engine; Hash
// identifies it for import dedupe.
type Flashcard struct {
	ID       string
	OwnerID  string
	Scope    string // optional grouping, e.g. a folder or deck name
	Question string
	Answer   string
	Context  string // optional supporting material shown with the answer
	Hash     string

	Retention RetentionState

	CreatedAt time.Time
}

// RetentionState is the per-card memory state driving the scheduler.
// It is created with the card and mutated only by recording a review.
type RetentionState struct {
	EaseFactor     float64 // never below MinEaseFactor
	IntervalDays   int     // days until the next scheduled review
	Repetitions    int     // consecutive successes since the last failure
	NextReviewDate time.Time
	LastReviewedAt *time.Time // nil before the first review
	TotalReviews   int
	CorrectReviews int
}

// DefaultEaseFactor is the ease assigned to a card that has never been reviewed.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the floor below which ease never drops.
const MinEaseFactor = 1.3

// NewRetentionState returns the state for a freshly created card: due
// immediately, ease at the default, nothing reviewed yet.
func NewRetentionState(now time.Time) RetentionState {
	return RetentionState{
		EaseFactor:     DefaultEaseFactor,
		NextReviewDate: StartOfDay(now),
	}
}

// Due reports whether a card with the given next-review date is due at now.
// This is the single due-ness predicate; the storage layer's SQL comparison
// mirrors it exactly.
func Due(nextReview, now time.Time) bool {
	return !nextReview.After(now)
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ReviewEvent is one immutable history entry, written when a review is
// recorded. Rows are never updated or deleted except by card cascade.
type ReviewEvent struct {
	ID               string
	FlashcardID      string
	OwnerID          string
	Quality          int
	WasCorrect       bool
	TimeSpentSeconds *int
	EaseFactorAfter  float64
	IntervalAfter    int
	ReviewedAt       time.Time
}
