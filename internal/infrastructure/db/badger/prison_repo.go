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

const prisonStoreDir = "prison"

type inmateDTO struct {
	Txid       string
	VOut       uint32
	RoundId    string
	Punishment int
	StartedAt  int64
	ExpiresAt  int64
}

type prisonRepository struct {
	store *badgerhold.Store
	lock  *sync.Mutex
}

func NewPrisonRepository(config ...interface{}) (domain.PrisonRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, prisonStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open prison store: %s", err)
	}
	return &prisonRepository{store, &sync.Mutex{}}, nil
}

func (r *prisonRepository) Add(_ context.Context, inmates ...domain.Inmate) error {
	if len(inmates) <= 0 {
		return nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	return update(r.store, func(tx *badger.Txn) error {
		for _, inmate := range inmates {
			dto := inmateDTO{
				Txid:       inmate.Outpoint.Hash.String(),
				VOut:       inmate.Outpoint.Index,
				RoundId:    inmate.RoundId,
				Punishment: int(inmate.Punishment),
				StartedAt:  inmate.StartedAt.UnixNano(),
				ExpiresAt:  inmate.ExpiresAt.UnixNano(),
			}
			if err := r.store.TxUpsert(tx, outpointKey(inmate.Outpoint), dto); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *prisonRepository) Get(
	_ context.Context, outpoint wire.OutPoint,
) (*domain.Inmate, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var dto inmateDTO
	if err := r.store.Get(outpointKey(outpoint), &dto); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	inmate, err := dto.toDomain()
	if err != nil {
		return nil, err
	}
	return inmate, nil
}

func (r *prisonRepository) GetAll(_ context.Context) ([]domain.Inmate, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var dtos []inmateDTO
	if err := r.store.Find(&dtos, nil); err != nil {
		return nil, err
	}
	inmates := make([]domain.Inmate, 0, len(dtos))
	for _, dto := range dtos {
		inmate, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		inmates = append(inmates, *inmate)
	}
	return inmates, nil
}

func (r *prisonRepository) Remove(_ context.Context, outpoints ...wire.OutPoint) error {
	if len(outpoints) <= 0 {
		return nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	return update(r.store, func(tx *badger.Txn) error {
		for _, outpoint := range outpoints {
			err := r.store.TxDelete(tx, outpointKey(outpoint), inmateDTO{})
			if err != nil && err != badgerhold.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

func (r *prisonRepository) Close() {
	r.store.Close()
}

func (d inmateDTO) toDomain() (*domain.Inmate, error) {
	outpoint, err := parseOutpoint(d.Txid, d.VOut)
	if err != nil {
		return nil, err
	}
	return &domain.Inmate{
		Outpoint:   outpoint,
		RoundId:    d.RoundId,
		Punishment: domain.Punishment(d.Punishment),
		StartedAt:  time.Unix(0, d.StartedAt),
		ExpiresAt:  time.Unix(0, d.ExpiresAt),
	}, nil
}
