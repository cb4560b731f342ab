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

// ErrNotFound is returned when no row exists for the requested identity.
var ErrNotFound = errors.New("store: not found")

// SQLiteContextStore persists session contexts as identity-keyed JSON docs.
type SQLiteContextStore struct {
	db *DB
}

// NewSQLiteContextStore creates a context store using the given database.
func NewSQLiteContextStore(db *DB) *SQLiteContextStore {
	return &SQLiteContextStore{db: db}
}

// Load returns the persisted context for an identity, or ErrNotFound.
func (s *SQLiteContextStore) Load(identity string) (*domain.SessionContext, error) {
	var doc string
	err := s.db.sql.QueryRow(
		`SELECT doc FROM contexts WHERE identity = ?`, identity,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading context: %w", err)
	}

	var ctx domain.SessionContext
	if err := json.Unmarshal([]byte(doc), &ctx); err != nil {
		return nil, fmt.Errorf("decoding context: %w", err)
	}
	return &ctx, nil
}

// Save upserts the context document for its identity.
func (s *SQLiteContextStore) Save(ctx *domain.SessionContext) error {
	doc, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO contexts (identity, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   doc = excluded.doc,
		   updated_at = excluded.updated_at`,
		ctx.Identity, string(doc), time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving context: %w", err)
	}
	return nil
}

// MemoryContextStore is an in-memory context store for tests and the
// "memory" storage option.
type MemoryContextStore struct {
	mu   sync.RWMutex
	docs map[string]*domain.SessionContext
}

// NewMemoryContextStore creates an empty in-memory context store.
func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{docs: make(map[string]*domain.SessionContext)}
}

// Load returns a copy of the stored context, or ErrNotFound.
func (s *MemoryContextStore) Load(identity string) (*domain.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.docs[identity]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ctx
	return &cp, nil
}

// Save stores a copy of the context keyed by its identity.
func (s *MemoryContextStore) Save(ctx *domain.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ctx
	s.docs[ctx.Identity] = &cp
	return nil
}
