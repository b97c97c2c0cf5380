package sqlitedb

import (
	"context"
	"database/sql"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/infrastructure/db/sqlite/sqlc/queries"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

type coinjoinRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewCoinJoinRepository(config ...interface{}) (domain.CoinJoinRepository, error) {
	db, err := parseDbConfig(config, "coinjoin")
	if err != nil {
		return nil, err
	}
	return &coinjoinRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *coinjoinRepository) Add(ctx context.Context, coinjoin domain.CoinJoin) error {
	txid := coinjoin.Txid.String()
	return execTx(ctx, r.db, func(querierWithTx *queries.Queries) error {
		if err := querierWithTx.InsertCoinJoin(ctx, queries.InsertCoinJoinParams{
			Txid:        txid,
			BroadcastAt: coinjoin.BroadcastAt.Unix(),
		}); err != nil {
			return err
		}
		for _, script := range coinjoin.Scripts {
			if err := querierWithTx.InsertCoinJoinScript(ctx, queries.InsertCoinJoinScriptParams{
				Script: script,
				Txid:   txid,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *coinjoinRepository) ContainsTxid(ctx context.Context, txid chainhash.Hash) (bool, error) {
	count, err := r.querier.ContainsCoinJoin(ctx, txid.String())
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *coinjoinRepository) ContainsScript(ctx context.Context, script []byte) (bool, error) {
	count, err := r.querier.ContainsCoinJoinScript(ctx, script)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *coinjoinRepository) Close() {
	_ = r.db.Close()
}
