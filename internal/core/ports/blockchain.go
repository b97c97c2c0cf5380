package ports

import (
	"context"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

type TxOutInfo struct {
	TxOut         wire.TxOut
	Confirmations int64
	IsCoinbase    bool
}

type BlockchainService interface {
	// GetTxOut returns nil if the outpoint is unknown or already spent.
	GetTxOut(
		ctx context.Context, outpoint wire.OutPoint, includeMempool bool,
	) (*TxOutInfo, error)
	GetRawTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)
	SendRawTransaction(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error)
	EstimateFeeRate(ctx context.Context, confTarget int64) (common.FeeRate, error)
	Close()
}
