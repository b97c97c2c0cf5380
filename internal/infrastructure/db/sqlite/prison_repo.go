package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/infrastructure/db/sqlite/sqlc/queries"
	"github.com/btcsuite/btcd/wire"
)

type prisonRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewPrisonRepository(config ...interface{}) (domain.PrisonRepository, error) {
	db, err := parseDbConfig(config, "prison")
	if err != nil {
		return nil, err
	}
	return &prisonRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *prisonRepository) Add(ctx context.Context, inmates ...domain.Inmate) error {
	if len(inmates) <= 0 {
		return nil
	}
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		for _, inmate := range inmates {
			if err := querierWithTx.UpsertInmate(ctx, queries.UpsertInmateParams{
				Txid:       inmate.Outpoint.Hash.String(),
				Vout:       int64(inmate.Outpoint.Index),
				RoundID:    inmate.RoundId,
				Punishment: int64(inmate.Punishment),
				StartedAt:  inmate.StartedAt.UnixNano(),
				ExpiresAt:  inmate.ExpiresAt.UnixNano(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *prisonRepository) Get(
	ctx context.Context, outpoint wire.OutPoint,
) (*domain.Inmate, error) {
	row, err := r.querier.SelectInmate(ctx, queries.SelectInmateParams{
		Txid: outpoint.Hash.String(),
		Vout: int64(outpoint.Index),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToInmate(row)
}

func (r *prisonRepository) GetAll(ctx context.Context) ([]domain.Inmate, error) {
	rows, err := r.querier.SelectAllInmates(ctx)
	if err != nil {
		return nil, err
	}
	inmates := make([]domain.Inmate, 0, len(rows))
	for _, row := range rows {
		inmate, err := rowToInmate(row)
		if err != nil {
			return nil, err
		}
		inmates = append(inmates, *inmate)
	}
	return inmates, nil
}

func (r *prisonRepository) Remove(ctx context.Context, outpoints ...wire.OutPoint) error {
	if len(outpoints) <= 0 {
		return nil
	}
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		for _, outpoint := range outpoints {
			if err := querierWithTx.DeleteInmate(ctx, queries.DeleteInmateParams{
				Txid: outpoint.Hash.String(),
				Vout: int64(outpoint.Index),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *prisonRepository) Close() {
	_ = r.db.Close()
}

func rowToInmate(row queries.Inmate) (*domain.Inmate, error) {
	outpoint, err := parseOutpoint(row.Txid, row.Vout)
	if err != nil {
		return nil, err
	}
	return &domain.Inmate{
		Outpoint:   outpoint,
		RoundId:    row.RoundID,
		Punishment: domain.Punishment(row.Punishment),
		StartedAt:  time.Unix(0, row.StartedAt),
		ExpiresAt:  time.Unix(0, row.ExpiresAt),
	}, nil
}
