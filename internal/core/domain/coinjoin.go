package domain

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// CoinJoin is the record of a broadcast coinjoin. Its txid grants zero
// coordination fee to the outputs, its scripts can't be registered again.
type CoinJoin struct {
	Txid        chainhash.Hash
	Scripts     [][]byte
	BroadcastAt time.Time
}

type CoinJoinRepository interface {
	Add(ctx context.Context, coinjoin CoinJoin) error
	ContainsTxid(ctx context.Context, txid chainhash.Hash) (bool, error)
	ContainsScript(ctx context.Context, script []byte) (bool, error)
	Close()
}
