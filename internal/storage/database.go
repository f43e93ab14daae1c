package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/retain-srs/retain/internal/domain"
)

// ErrNotFound is returned when a card does not exist or belongs to a
// different owner. Check with errors.Is.
var ErrNotFound = errors.New("storage: card not found")

// timeFormat is how timestamps are stored: RFC 3339 in UTC with fixed-width
// nanoseconds. The fixed width (unlike RFC3339Nano, which trims zeros) keeps
// lexical and chronological order identical, which the due query and the
// pagination cursor both rely on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// NewID returns a fresh ULID. IDs sort by creation time.
func (db *DB) NewID() string {
	return ulid.Make().String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

const cardColumns = `id, owner_id, scope, question, answer, context, content_hash,
	ease_factor, interval_days, repetitions, next_review_date, last_reviewed_at,
	total_reviews, correct_reviews, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Flashcard, error) {
	var (
		c            domain.Flashcard
		nextReview   string
		lastReviewed sql.NullString
		createdAt    string
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Scope, &c.Question, &c.Answer, &c.Context, &c.Hash,
		&c.Retention.EaseFactor, &c.Retention.IntervalDays, &c.Retention.Repetitions,
		&nextReview, &lastReviewed,
		&c.Retention.TotalReviews, &c.Retention.CorrectReviews, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if c.Retention.NextReviewDate, err = parseTime(nextReview); err != nil {
		return nil, fmt.Errorf("failed to parse next_review_date: %w", err)
	}
	if lastReviewed.Valid {
		t, err := parseTime(lastReviewed.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_reviewed_at: %w", err)
		}
		c.Retention.LastReviewedAt = &t
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &c, nil
}

// InsertCard inserts a new card with its initial retention state.
func (db *DB) InsertCard(ctx context.Context, c *domain.Flashcard) error {
	var lastReviewed any
	if c.Retention.LastReviewedAt != nil {
		lastReviewed = formatTime(*c.Retention.LastReviewedAt)
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.OwnerID, c.Scope, c.Question, c.Answer, c.Context, c.Hash,
		c.Retention.EaseFactor, c.Retention.IntervalDays, c.Retention.Repetitions,
		formatTime(c.Retention.NextReviewDate), lastReviewed,
		c.Retention.TotalReviews, c.Retention.CorrectReviews, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
	}
	return nil
}

// GetCard retrieves a card by id, scoped to its owner.
// Returns ErrNotFound for a missing card or an ownership mismatch.
func (db *DB) GetCard(ctx context.Context, ownerID, cardID string) (*domain.Flashcard, error) {
	row := db.conn.QueryRowContext(ctx, `
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

// FindCardIDByHash returns the id of the owner's card with the given content
// hash, or "" when no such card exists. Used by the importer for dedupe.
func (db *DB) FindCardIDByHash(ctx context.Context, ownerID, hash string) (string, error) {
	var id string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id FROM cards WHERE owner_id = ? AND content_hash = ?
	`, ownerID, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up card by hash: %w", err)
	}
	return id, nil
}

// DeleteCard removes a card and, by cascade, its review history.
func (db *DB) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM cards WHERE id = ? AND owner_id = ?
	`, cardID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", cardID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	return nil
}

// DueQuery selects an owner's due cards, most overdue first.
type DueQuery struct {
	OwnerID string
	AsOf    time.Time
	Scope   string // empty means all scopes
	Cursor  string // empty means first page
	Limit   int
}

// DuePage is one page of due cards. NextCursor is empty on the last page.
type DuePage struct {
	Cards      []domain.Flashcard
	NextCursor string
}

// ListDue returns cards with next_review_date <= asOf ordered by
// (next_review_date, id) ascending, resuming after the cursor if given.
func (db *DB) ListDue(ctx context.Context, q DueQuery) (*DuePage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + cardColumns + ` FROM cards WHERE owner_id = ? AND next_review_date <= ?`
	args := []any{q.OwnerID, formatTime(q.AsOf)}

	if q.Scope != "" {
		query += ` AND scope = ?`
		args = append(args, q.Scope)
	}
	if q.Cursor != "" {
		afterDue, afterID, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (next_review_date > ? OR (next_review_date = ? AND id > ?))`
		args = append(args, afterDue, afterDue, afterID)
	}
	// Fetch one extra row to know whether another page exists.
	query += ` ORDER BY next_review_date ASC, id ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due card: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list due cards: %w", err)
	}

	page := &DuePage{}
	if len(cards) > limit {
		cards = cards[:limit]
		last := cards[len(cards)-1]
		page.NextCursor = encodeCursor(last.Retention.NextReviewDate, last.ID)
	}
	page.Cards = cards
	return page, nil
}

// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
var ErrInvalidCursor = errors.New("storage: invalid pagination cursor")

func encodeCursor(due time.Time, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(formatTime(due) + "\x00" + id))
}

func decodeCursor(cursor string) (due, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(raw), "\x00", 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidCursor
	}
	if _, err := parseTime(parts[0]); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return parts[0], parts[1], nil
}
