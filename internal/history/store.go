// Package history is the outreach and engagement store: every prior
// send and every engagement signal, queryable by rolling time window.
// Outreach rows are append-only facts — nothing updates or deletes
// them.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/sendwatch/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS outreach (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	contact_id  TEXT NOT NULL,
	company     TEXT NOT NULL DEFAULT '',
	channel     TEXT NOT NULL,
	sent_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outreach_contact ON outreach(contact_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_outreach_company ON outreach(company, sent_at);
CREATE INDEX IF NOT EXISTS idx_outreach_sent_at ON outreach(sent_at);

CREATE TABLE IF NOT EXISTS engagement (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	contact_id  TEXT NOT NULL,
	positive    INTEGER NOT NULL,
	weight      REAL NOT NULL DEFAULT 1.0,
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_engagement_contact ON engagement(contact_id, occurred_at);
`

// timeLayout is fixed-width so that the TEXT columns order
// lexicographically the same as the times they encode. RFC3339Nano
// trims trailing fractional zeros and would break the >= window
// comparisons in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	if ts, err := time.Parse(timeLayout, raw); err == nil {
		return ts, nil
	}
	// Rows written before the fixed-width layout.
	return time.Parse(time.RFC3339Nano, raw)
}

// Store manages outreach history and engagement events in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("history: pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendOutreach records one send. Append-only.
func (s *Store) AppendOutreach(rec model.OutreachRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO outreach (contact_id, company, channel, sent_at) VALUES (?, ?, ?, ?)`,
		rec.ContactID, rec.Company, string(rec.Channel), encodeTime(rec.SentAt),
	)
	if err != nil {
		return fmt.Errorf("history: append outreach: %w", err)
	}
	return nil
}

// AddEngagement records one engagement event for a contact.
func (s *Store) AddEngagement(ev model.EngagementEvent) error {
	positive := 0
	if ev.Positive {
		positive = 1
	}
	weight := ev.Weight
	if weight <= 0 {
		weight = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO engagement (contact_id, positive, weight, occurred_at) VALUES (?, ?, ?, ?)`,
		ev.ContactID, positive, weight, encodeTime(ev.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("history: add engagement: %w", err)
	}
	return nil
}

// CountContactSince counts sends to one contact since the given time.
func (s *Store) CountContactSince(contactID string, since time.Time) (int, error) {
	return s.count(
		`SELECT COUNT(*) FROM outreach WHERE contact_id = ? AND sent_at >= ?`,
		contactID, encodeTime(since),
	)
}

// CountCompanySince counts sends to any contact at a company since
// the given time.
func (s *Store) CountCompanySince(company string, since time.Time) (int, error) {
	return s.count(
		`SELECT COUNT(*) FROM outreach WHERE company = ? AND sent_at >= ?`,
		company, encodeTime(since),
	)
}

// CountAllSince counts all sends across all targets since the given time.
func (s *Store) CountAllSince(since time.Time) (int, error) {
	return s.count(
		`SELECT COUNT(*) FROM outreach WHERE sent_at >= ?`,
		encodeTime(since),
	)
}

// LastOutreachAt returns the most recent send time for a contact.
// The second return is false if the contact has no history.
func (s *Store) LastOutreachAt(contactID string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT sent_at FROM outreach WHERE contact_id = ? ORDER BY sent_at DESC LIMIT 1`,
		contactID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("history: last outreach: %w", err)
	}
	ts, err := parseTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("history: parse sent_at %q: %w", raw, err)
	}
	return ts, true, nil
}

// PositiveEvents returns positive engagement events for a contact
// since the given time, oldest first.
func (s *Store) PositiveEvents(contactID string, since time.Time) ([]model.EngagementEvent, error) {
	rows, err := s.db.Query(
		`SELECT contact_id, weight, occurred_at FROM engagement
		 WHERE contact_id = ? AND positive = 1 AND occurred_at >= ?
		 ORDER BY occurred_at ASC`,
		contactID, encodeTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("history: query engagements: %w", err)
	}
	defer rows.Close()

	var events []model.EngagementEvent
	for rows.Next() {
		var ev model.EngagementEvent
		var raw string
		if err := rows.Scan(&ev.ContactID, &ev.Weight, &raw); err != nil {
			return nil, fmt.Errorf("history: scan engagement: %w", err)
		}
		ts, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("history: parse occurred_at %q: %w", raw, err)
		}
		ev.Positive = true
		ev.OccurredAt = ts
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate engagements: %w", err)
	}
	return events, nil
}

func (s *Store) count(query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}
