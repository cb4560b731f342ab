package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UsageRecord is one recorded billable or gated action.
type UsageRecord struct {
	Identity  string    `json:"identity"`
	UsageType string    `json:"usageType"` // "scan" | "agent" | feature name
	AgentID   string    `json:"agentId,omitempty"`
	Feature   string    `json:"featureName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UsageStore records trial usage and answers quota queries.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a usage store using the given database.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Record inserts a usage row.
func (s *UsageStore) Record(rec UsageRecord) error {
	ts := rec.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO trial_usage (identity, usage_type, agent_id, feature, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Identity, rec.UsageType, rec.AgentID, rec.Feature,
		ts.UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// CountSince returns the number of usage rows of a type for an identity
// since the given time.
func (s *UsageStore) CountSince(identity, usageType string, since time.Time) (int, error) {
	var count int
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*) FROM trial_usage
		 WHERE identity = ? AND usage_type = ? AND created_at >= ?`,
		identity, usageType, since.UTC().Format(time.DateTime),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage: %w", err)
	}
	return count, nil
}

// TrialStart returns when the identity's trial began, starting it on first
// call.
func (s *UsageStore) TrialStart(identity string) (time.Time, error) {
	var startedAt string
	err := s.db.sql.QueryRow(
		`SELECT started_at FROM trials WHERE identity = ?`, identity,
	).Scan(&startedAt)
	if err == nil {
		t, perr := time.Parse(time.DateTime, startedAt)
		if perr != nil {
			return time.Time{}, fmt.Errorf("parsing trial start: %w", perr)
		}
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("loading trial: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err = s.db.sql.Exec(
		`INSERT INTO trials (identity, started_at) VALUES (?, ?)
		 ON CONFLICT(identity) DO NOTHING`,
		identity, now.Format(time.DateTime),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("starting trial: %w", err)
	}
	return now, nil
}
