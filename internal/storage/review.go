package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/retain-srs/retain/internal/domain"
)

// Tx exposes the write operations available inside a review transaction.
type Tx struct {
	tx *sql.Tx
}

// Transact runs fn inside a single transaction. If fn returns an error the
// transaction is rolled back and nothing is persisted.
func (db *DB) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Card loads a card inside the transaction, scoped to its owner.
// Returns ErrNotFound for a missing card or an ownership mismatch.
func (tx *Tx) Card(ctx context.Context, ownerID, cardID string) (*domain.Flashcard, error) {
	row := tx.tx.QueryRowContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE id = ? AND owner_id = ?
	`, cardID, ownerID)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", cardID, err)
	}
	return c, nil
}

// FindEventByIdempotencyKey returns the event previously recorded for the
// card with this key, or nil if the key has not been seen.
func (tx *Tx) FindEventByIdempotencyKey(ctx context.Context, cardID, key string) (*domain.ReviewEvent, error) {
	row := tx.tx.QueryRowContext(ctx, `
		SELECT id, card_id, owner_id, quality, was_correct, time_spent_seconds,
		       ease_factor_after, interval_days_after, reviewed_at
		FROM review_events WHERE card_id = ? AND idempotency_key = ?
	`, cardID, key)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return ev, nil
}

func scanEvent(row rowScanner) (*domain.ReviewEvent, error) {
	var (
		ev         domain.ReviewEvent
		timeSpent  sql.NullInt64
		reviewedAt string
	)
	err := row.Scan(
		&ev.ID, &ev.FlashcardID, &ev.OwnerID, &ev.Quality, &ev.WasCorrect,
		&timeSpent, &ev.EaseFactorAfter, &ev.IntervalAfter, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}
	if timeSpent.Valid {
		v := int(timeSpent.Int64)
		ev.TimeSpentSeconds = &v
	}
	if ev.ReviewedAt, err = parseTime(reviewedAt); err != nil {
		return nil, fmt.Errorf("failed to parse reviewed_at: %w", err)
	}
	return &ev, nil
}

// UpdateRetention overwrites the card's retention state.
func (tx *Tx) UpdateRetention(ctx context.Context, cardID string, rs domain.RetentionState) error {
	var lastReviewed any
	if rs.LastReviewedAt != nil {
		lastReviewed = formatTime(*rs.LastReviewedAt)
	}
	res, err := tx.tx.ExecContext(ctx, `
		UPDATE cards
		SET ease_factor = ?, interval_days = ?, repetitions = ?,
		    next_review_date = ?, last_reviewed_at = ?,
		    total_reviews = ?, correct_reviews = ?
		WHERE id = ?
	`,
		rs.EaseFactor, rs.IntervalDays, rs.Repetitions,
		formatTime(rs.NextReviewDate), lastReviewed,
		rs.TotalReviews, rs.CorrectReviews, cardID,
	)
	if err != nil {
		return fmt.Errorf("failed to update retention state for card %s: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update retention state for card %s: %w", cardID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	return nil
}

// AppendEvent writes one immutable review-history row. idempotencyKey may be
// empty, in which case the row carries no key.
func (tx *Tx) AppendEvent(ctx context.Context, ev *domain.ReviewEvent, idempotencyKey string) error {
	var key any
	if idempotencyKey != "" {
		key = idempotencyKey
	}
	var timeSpent any
	if ev.TimeSpentSeconds != nil {
		timeSpent = *ev.TimeSpentSeconds
	}
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO review_events (id, card_id, owner_id, quality, was_correct,
			time_spent_seconds, ease_factor_after, interval_days_after,
			reviewed_at, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.FlashcardID, ev.OwnerID, ev.Quality, ev.WasCorrect,
		timeSpent, ev.EaseFactorAfter, ev.IntervalAfter,
		formatTime(ev.ReviewedAt), key,
	)
	if err != nil {
		return fmt.Errorf("failed to append review event for card %s: %w", ev.FlashcardID, err)
	}
	return nil
}

// EventsForCard returns the card's review history, oldest first.
func (db *DB) EventsForCard(ctx context.Context, ownerID, cardID string) ([]domain.ReviewEvent, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, owner_id, quality, was_correct, time_spent_seconds,
		       ease_factor_after, interval_days_after, reviewed_at
		FROM review_events WHERE card_id = ? AND owner_id = ?
		ORDER BY reviewed_at ASC, id ASC
	`, cardID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review events for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var events []domain.ReviewEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list review events for card %s: %w", cardID, err)
	}
	return events, nil
}
