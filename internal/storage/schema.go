package storage

const schema = `
-- The 'cards' table stores each flashcard together with its retention state.
-- Retention columns are written only by the review recorder.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    scope TEXT NOT NULL DEFAULT '',
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    ease_factor REAL NOT NULL,
    interval_days INTEGER NOT NULL DEFAULT 0,
    repetitions INTEGER NOT NULL DEFAULT 0,
    next_review_date TEXT NOT NULL,
    last_reviewed_at TEXT,
    total_reviews INTEGER NOT NULL DEFAULT 0,
    correct_reviews INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,

    UNIQUE(owner_id, content_hash)
);

-- Supports "due cards for owner, most overdue first" with keyset pagination.
CREATE INDEX IF NOT EXISTS idx_cards_owner_due ON cards(owner_id, next_review_date, id);
CREATE INDEX IF NOT EXISTS idx_cards_owner_scope ON cards(owner_id, scope);

-- The 'review_events' table is append-only history. Rows are never updated;
-- they go away only when their card is deleted (cascade).
CREATE TABLE IF NOT EXISTS review_events (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    owner_id TEXT NOT NULL,
    quality INTEGER NOT NULL,
    was_correct INTEGER NOT NULL,
    time_spent_seconds INTEGER,
    ease_factor_after REAL NOT NULL,
    interval_days_after INTEGER NOT NULL,
    reviewed_at TEXT NOT NULL,
    idempotency_key TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_card ON review_events(card_id, reviewed_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_idempotency
    ON review_events(card_id, idempotency_key)
    WHERE idempotency_key IS NOT NULL;
`
