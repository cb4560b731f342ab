package tracker

import (
	"context"
	"time"

	"sync"

	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/logging"
)

// RemoteStore receives context upserts for authenticated identities.
type RemoteStore interface {
	UpsertContext(ctx context.Context, sc *domain.SessionContext) error
}

// Syncer batches context upserts to the remote store on a fixed interval.
// Each tick flushes at most one batch; failed items are requeued at the tail
// rather than dropped, with no ordering guarantee across retries. The queue
// lives in memory only; items still pending when the process exits are lost,
// which is acceptable for this cache.
type Syncer struct {
	mu    sync.Mutex
	queue []*domain.SessionContext // one entry per identity, latest wins

	remote   RemoteStore
	interval time.Duration
	batch    int
	log      *logging.Logger
}

// NewSyncer creates a syncer flushing up to batch items every interval.
func NewSyncer(remote RemoteStore, interval time.Duration, batch int, log *logging.Logger) *Syncer {
	if batch < 1 {
		batch = 1
	}
	return &Syncer{
		remote:   remote,
		interval: interval,
		batch:    batch,
		log:      log.Sub("sync"),
	}
}

// Enqueue queues a context for remote upsert. A pending entry for the same
// identity is replaced only when the new snapshot is at least as recent, so a
// requeued failure can never clobber state queued during the flush.
func (s *Syncer) Enqueue(sc *domain.SessionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, pending := range s.queue {
		if pending.Identity == sc.Identity {
			if !sc.LastActivity.Before(pending.LastActivity) {
				s.queue[i] = sc
			}
			return
		}
	}
	s.queue = append(s.queue, sc)
}

// Pending returns the number of queued upserts.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Flush sends at most one batch of queued upserts. Failures are requeued.
func (s *Syncer) Flush(ctx context.Context) {
	s.mu.Lock()
	n := len(s.queue)
	if n > s.batch {
		n = s.batch
	}
	if n == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.queue[:n]
	s.queue = append([]*domain.SessionContext(nil), s.queue[n:]...)
	s.mu.Unlock()

	for _, sc := range batch {
		if err := s.remote.UpsertContext(ctx, sc); err != nil {
			s.log.Warn().Err(err).Str("identity", sc.Identity).Msg("remote upsert failed, requeueing")
			s.Enqueue(sc)
			continue
		}
		s.log.Debug().Str("identity", sc.Identity).Msg("context synced")
	}
}

// Run flushes on the configured interval until the context is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Int("batch", s.batch).Msg("remote sync started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Int("pending", s.Pending()).Msg("remote sync stopped")
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}
