package wallet

import (
	"context"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	SingleKeyWallet = "singlekey"
)

// Wallet is what the coinjoin client needs from a wallet: prove and spend
// ownership of its coins and provide fresh scripts for the outputs.
type Wallet interface {
	GetType() string
	Network() *chaincfg.Params
	// Coin returns the coin at the given outpoint, locked by the script of
	// the given derivation index.
	Coin(outpoint wire.OutPoint, amount int64, index uint32) (*common.Coin, error)
	NewScript(ctx context.Context) ([]byte, error)
	OwnershipProof(
		coin common.Coin, commitmentData []byte,
	) (*common.OwnershipProof, error)
	SignInput(
		tx *wire.MsgTx, inputIndex int, prevouts txscript.PrevOutputFetcher,
	) (wire.TxWitness, error)
}
