package badgerdb

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const coinjoinStoreDir = "coinjoins"

type coinjoinDTO struct {
	Txid        string
	Scripts     []string
	BroadcastAt int64
}

// scriptDTO indexes every output script of a coinjoin by its hex encoding.
type scriptDTO struct {
	Script string
	Txid   string
}

type coinjoinRepository struct {
	store *badgerhold.Store
	lock  *sync.Mutex
}

func NewCoinJoinRepository(config ...interface{}) (domain.CoinJoinRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, coinjoinStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open coinjoin store: %s", err)
	}
	return &coinjoinRepository{store, &sync.Mutex{}}, nil
}

func (r *coinjoinRepository) Add(_ context.Context, coinjoin domain.CoinJoin) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	txid := coinjoin.Txid.String()
	scripts := make([]string, 0, len(coinjoin.Scripts))
	for _, script := range coinjoin.Scripts {
		scripts = append(scripts, hex.EncodeToString(script))
	}

	return update(r.store, func(tx *badger.Txn) error {
		dto := coinjoinDTO{
			Txid:        txid,
			Scripts:     scripts,
			BroadcastAt: coinjoin.BroadcastAt.Unix(),
		}
		if err := r.store.TxUpsert(tx, txid, dto); err != nil {
			return err
		}
		for _, script := range scripts {
			if err := r.store.TxUpsert(tx, script, scriptDTO{script, txid}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *coinjoinRepository) ContainsTxid(_ context.Context, txid chainhash.Hash) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var dto coinjoinDTO
	if err := r.store.Get(txid.String(), &dto); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *coinjoinRepository) ContainsScript(_ context.Context, script []byte) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var dto scriptDTO
	if err := r.store.Get(hex.EncodeToString(script), &dto); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *coinjoinRepository) Close() {
	r.store.Close()
}
