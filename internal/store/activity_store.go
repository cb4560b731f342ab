package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/skrblai/percy/internal/domain"
)

// ActivityStore keeps a durable log of agent lifecycle events so dashboards
// can backfill the live feed after a reconnect.
type ActivityStore struct {
	db *DB
}

// NewActivityStore creates an activity store using the given database.
func NewActivityStore(db *DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Upsert inserts or replaces the event row keyed by event ID. Newest known
// state wins.
func (s *ActivityStore) Upsert(ev domain.ActivityEvent) error {
	var completedAt sql.NullString
	if ev.CompletedAt != nil {
		completedAt = sql.NullString{String: ev.CompletedAt.UTC().Format(time.DateTime), Valid: true}
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO activity_events
		   (id, agent_id, agent_name, status, started_at, completed_at, source, error_message, result, user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   completed_at = excluded.completed_at,
		   error_message = excluded.error_message,
		   result = excluded.result`,
		ev.ID, ev.AgentID, ev.AgentName, string(ev.Status),
		ev.StartedAt.UTC().Format(time.DateTime), completedAt,
		ev.Source, ev.ErrorMessage, ev.Result, ev.UserID,
	)
	if err != nil {
		return fmt.Errorf("upserting activity event: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first. Limit of 0 defaults
// to 50.
func (s *ActivityStore) Recent(limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.sql.Query(
		`SELECT id, agent_id, agent_name, status, started_at, completed_at,
		        source, error_message, result, user_id
		 FROM activity_events ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing activity events: %w", err)
	}
	defer rows.Close()

	var events []domain.ActivityEvent
	for rows.Next() {
		var ev domain.ActivityEvent
		var status, startedAt string
		var completedAt sql.NullString

		if err := rows.Scan(
			&ev.ID, &ev.AgentID, &ev.AgentName, &status, &startedAt,
			&completedAt, &ev.Source, &ev.ErrorMessage, &ev.Result, &ev.UserID,
		); err != nil {
			continue
		}

		ev.Status = domain.ActivityStatus(status)
		ev.StartedAt, _ = time.Parse(time.DateTime, startedAt)
		if completedAt.Valid {
			if t, err := time.Parse(time.DateTime, completedAt.String); err == nil {
				ev.CompletedAt = &t
			}
		}

		events = append(events, ev)
	}
	return events, rows.Err()
}
