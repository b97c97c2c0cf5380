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

type whitelistRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewWhitelistRepository(config ...interface{}) (domain.WhitelistRepository, error) {
	db, err := parseDbConfig(config, "whitelist")
	if err != nil {
		return nil, err
	}
	return &whitelistRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *whitelistRepository) Get(
	ctx context.Context, outpoint wire.OutPoint,
) (*domain.WhitelistEntry, error) {
	row, err := r.querier.SelectWhitelistEntry(ctx, queries.SelectWhitelistEntryParams{
		Txid: outpoint.Hash.String(),
		Vout: int64(outpoint.Index),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToWhitelistEntry(row)
}

func (r *whitelistRepository) GetAll(ctx context.Context) ([]domain.WhitelistEntry, error) {
	rows, err := r.querier.SelectAllWhitelistEntries(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.WhitelistEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := rowToWhitelistEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (r *whitelistRepository) Add(ctx context.Context, entries ...domain.WhitelistEntry) error {
	if len(entries) <= 0 {
		return nil
	}
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		return upsertWhitelistEntries(ctx, querierWithTx, entries)
	})
}

func (r *whitelistRepository) ReplaceAll(
	ctx context.Context, entries []domain.WhitelistEntry,
) error {
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		if err := querierWithTx.DeleteAllWhitelistEntries(ctx); err != nil {
			return err
		}
		return upsertWhitelistEntries(ctx, querierWithTx, entries)
	})
}

func (r *whitelistRepository) Close() {
	_ = r.db.Close()
}

func upsertWhitelistEntries(
	ctx context.Context, querier *queries.Queries, entries []domain.WhitelistEntry,
) error {
	for _, entry := range entries {
		if err := querier.UpsertWhitelistEntry(ctx, queries.UpsertWhitelistEntryParams{
			Txid:      entry.Outpoint.Hash.String(),
			Vout:      int64(entry.Outpoint.Index),
			ClearedAt: entry.ClearedAt.UnixNano(),
			ExpiresAt: entry.ExpiresAt.UnixNano(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func rowToWhitelistEntry(row queries.WhitelistEntry) (*domain.WhitelistEntry, error) {
	outpoint, err := parseOutpoint(row.Txid, row.Vout)
	if err != nil {
		return nil, err
	}
	return &domain.WhitelistEntry{
		Outpoint:  outpoint,
		ClearedAt: time.Unix(0, row.ClearedAt),
		ExpiresAt: time.Unix(0, row.ExpiresAt),
	}, nil
}
