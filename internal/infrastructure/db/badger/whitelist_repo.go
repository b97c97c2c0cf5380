package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const whitelistStoreDir = "whitelist"

type whitelistEntryDTO struct {
	Txid      string
	VOut      uint32
	ClearedAt int64
	ExpiresAt int64
}

type whitelistRepository struct {
	store *badgerhold.Store
	lock  *sync.Mutex
}

func NewWhitelistRepository(config ...interface{}) (domain.WhitelistRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, whitelistStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open whitelist store: %s", err)
	}
	return &whitelistRepository{store, &sync.Mutex{}}, nil
}

func (r *whitelistRepository) Get(
	_ context.Context, outpoint wire.OutPoint,
) (*domain.WhitelistEntry, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var dto whitelistEntryDTO
	if err := r.store.Get(outpointKey(outpoint), &dto); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return dto.toDomain()
}

func (r *whitelistRepository) GetAll(_ context.Context) ([]domain.WhitelistEntry, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var dtos []whitelistEntryDTO
	if err := r.store.Find(&dtos, nil); err != nil {
		return nil, err
	}
	entries := make([]domain.WhitelistEntry, 0, len(dtos))
	for _, dto := range dtos {
		entry, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (r *whitelistRepository) Add(_ context.Context, entries ...domain.WhitelistEntry) error {
	if len(entries) <= 0 {
		return nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	return update(r.store, func(tx *badger.Txn) error {
		return r.upsert(tx, entries)
	})
}

func (r *whitelistRepository) ReplaceAll(
	_ context.Context, entries []domain.WhitelistEntry,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return update(r.store, func(tx *badger.Txn) error {
		if err := r.store.TxDeleteMatching(tx, &whitelistEntryDTO{}, nil); err != nil {
			return err
		}
		return r.upsert(tx, entries)
	})
}

func (r *whitelistRepository) Close() {
	r.store.Close()
}

func (r *whitelistRepository) upsert(tx *badger.Txn, entries []domain.WhitelistEntry) error {
	for _, entry := range entries {
		dto := whitelistEntryDTO{
			Txid:      entry.Outpoint.Hash.String(),
			VOut:      entry.Outpoint.Index,
			ClearedAt: entry.ClearedAt.UnixNano(),
			ExpiresAt: entry.ExpiresAt.UnixNano(),
		}
		if err := r.store.TxUpsert(tx, outpointKey(entry.Outpoint), dto); err != nil {
			return err
		}
	}
	return nil
}

func (d whitelistEntryDTO) toDomain() (*domain.WhitelistEntry, error) {
	outpoint, err := parseOutpoint(d.Txid, d.VOut)
	if err != nil {
		return nil, err
	}
	return &domain.WhitelistEntry{
		Outpoint:  outpoint,
		ClearedAt: time.Unix(0, d.ClearedAt),
		ExpiresAt: time.Unix(0, d.ExpiresAt),
	}, nil
}
