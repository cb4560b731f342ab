package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skrblai/percy/internal/domain"
)

// SQLiteOnboardingStore persists onboarding conversation state as
// identity-keyed JSON docs.
type SQLiteOnboardingStore struct {
	db *DB
}

// NewSQLiteOnboardingStore creates an onboarding store using the given database.
func NewSQLiteOnboardingStore(db *DB) *SQLiteOnboardingStore {
	return &SQLiteOnboardingStore{db: db}
}

// Load returns the persisted onboarding state, or ErrNotFound.
func (s *SQLiteOnboardingStore) Load(identity string) (*domain.OnboardingState, error) {
	var doc string
	err := s.db.sql.QueryRow(
		`SELECT doc FROM onboarding WHERE identity = ?`, identity,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading onboarding state: %w", err)
	}

	var state domain.OnboardingState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return nil, fmt.Errorf("decoding onboarding state: %w", err)
	}
	return &state, nil
}

// Save upserts the onboarding state for its identity.
func (s *SQLiteOnboardingStore) Save(state *domain.OnboardingState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding onboarding state: %w", err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO onboarding (identity, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   doc = excluded.doc,
		   updated_at = excluded.updated_at`,
		state.Identity, string(doc), time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving onboarding state: %w", err)
	}
	return nil
}

// Delete removes the onboarding state for an identity. Used only by the
// explicit user reset.
func (s *SQLiteOnboardingStore) Delete(identity string) error {
	_, err := s.db.sql.Exec(`DELETE FROM onboarding WHERE identity = ?`, identity)
	return err
}

// MemoryOnboardingStore is an in-memory onboarding store.
type MemoryOnboardingStore struct {
	mu   sync.RWMutex
	docs map[string]*domain.OnboardingState
}

// NewMemoryOnboardingStore creates an empty in-memory onboarding store.
func NewMemoryOnboardingStore() *MemoryOnboardingStore {
	return &MemoryOnboardingStore{docs: make(map[string]*domain.OnboardingState)}
}

// Load returns a copy of the stored state, or ErrNotFound.
func (s *MemoryOnboardingStore) Load(identity string) (*domain.OnboardingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.docs[identity]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *state
	return &cp, nil
}

// Save stores a copy of the state keyed by its identity.
func (s *MemoryOnboardingStore) Save(state *domain.OnboardingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.docs[state.Identity] = &cp
	return nil
}

// Delete removes the state for an identity.
func (s *MemoryOnboardingStore) Delete(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, identity)
	return nil
}
