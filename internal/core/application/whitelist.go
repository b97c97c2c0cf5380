package application

import (
	"context"
	"sync"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

// whitelist caches the coins already cleared by the risk checks. Writes
// bump a change counter and the repository is rewritten only if that moved
// since the last write.
type whitelist struct {
	lock    sync.RWMutex
	repo    domain.WhitelistRepository
	ttl     time.Duration
	entries map[wire.OutPoint]domain.WhitelistEntry

	changeId  int
	writtenId int
}

func newWhitelist(
	ctx context.Context, repo domain.WhitelistRepository, ttl time.Duration,
) (*whitelist, error) {
	entries, err := repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	w := &whitelist{
		repo:    repo,
		ttl:     ttl,
		entries: make(map[wire.OutPoint]domain.WhitelistEntry, len(entries)),
	}
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsExpired(now) {
			w.entries[entry.Outpoint] = entry
		}
	}
	log.Debugf("loaded %d whitelisted coins", len(w.entries))
	return w, nil
}

func (w *whitelist) contains(outpoint wire.OutPoint, now time.Time) bool {
	w.lock.RLock()
	defer w.lock.RUnlock()
	entry, ok := w.entries[outpoint]
	return ok && !entry.IsExpired(now)
}

func (w *whitelist) add(outpoints ...wire.OutPoint) {
	now := time.Now()

	w.lock.Lock()
	defer w.lock.Unlock()
	for _, op := range outpoints {
		w.entries[op] = domain.WhitelistEntry{
			Outpoint:  op,
			ClearedAt: now,
			ExpiresAt: now.Add(w.ttl),
		}
	}
	w.changeId++
}

func (w *whitelist) removeExpired(now time.Time) int {
	w.lock.Lock()
	defer w.lock.Unlock()
	count := 0
	for op, entry := range w.entries {
		if entry.IsExpired(now) {
			delete(w.entries, op)
			count++
		}
	}
	if count > 0 {
		w.changeId++
	}
	return count
}

func (w *whitelist) list() []domain.WhitelistEntry {
	w.lock.RLock()
	defer w.lock.RUnlock()
	entries := make([]domain.WhitelistEntry, 0, len(w.entries))
	for _, entry := range w.entries {
		entries = append(entries, entry)
	}
	return entries
}

func (w *whitelist) writeIfChanged(ctx context.Context) error {
	w.lock.RLock()
	if w.changeId == w.writtenId {
		w.lock.RUnlock()
		return nil
	}
	changeId := w.changeId
	entries := make([]domain.WhitelistEntry, 0, len(w.entries))
	for _, entry := range w.entries {
		entries = append(entries, entry)
	}
	w.lock.RUnlock()

	if err := w.repo.ReplaceAll(ctx, entries); err != nil {
		return err
	}

	w.lock.Lock()
	if changeId > w.writtenId {
		w.writtenId = changeId
	}
	w.lock.Unlock()
	return nil
}
