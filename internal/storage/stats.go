package storage

import (
	"context"
	"fmt"

	"github.com/retain-srs/retain/internal/domain"
)

// DeckCounts holds the raw aggregates for an owner's scoped card set. Rate
// and rounding policy live in the review package; this is just the SQL.
type DeckCounts struct {
	TotalCards     int
	TotalReviews   int
	CorrectReviews int
	AverageEase    float64
	Mastered       int
	Learning       int
	New            int
}

// DeckCounts aggregates the owner's cards, optionally restricted to a scope.
// The tier CASE mirrors domain.TierOf; its thresholds are passed in as
// parameters so the two definitions cannot drift apart silently.
func (db *DB) DeckCounts(ctx context.Context, ownerID, scope string) (*DeckCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(total_reviews), 0),
			COALESCE(SUM(correct_reviews), 0),
			COALESCE(AVG(ease_factor), 0),
			COALESCE(SUM(CASE WHEN total_reviews = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN total_reviews > 0 AND repetitions >= ? AND interval_days >= ? THEN 1 ELSE 0 END), 0)
		FROM cards WHERE owner_id = ?`
	args := []any{domain.MasteredMinRepetitions, domain.MasteredMinInterval, ownerID}
	if scope != "" {
		query += ` AND scope = ?`
		args = append(args, scope)
	}

	var c DeckCounts
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&c.TotalCards, &c.TotalReviews, &c.CorrectReviews,
		&c.AverageEase, &c.New, &c.Mastered,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate deck counts: %w", err)
	}
	c.Learning = c.TotalCards - c.New - c.Mastered
	return &c, nil
}
