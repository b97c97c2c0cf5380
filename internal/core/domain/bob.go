package domain

import (
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Bob is the output side of a participant, immutable once registered.
type Bob struct {
	Script           []byte
	CredentialAmount btcutil.Amount
}

func (b Bob) OutputVsize() int64 {
	return common.OutputVsize(b.Script)
}

func (b Bob) OutputValue(feeRate common.FeeRate) btcutil.Amount {
	return b.CredentialAmount - common.NetworkFee(feeRate, b.OutputVsize())
}

func (b Bob) TxOut(feeRate common.FeeRate) *wire.TxOut {
	return wire.NewTxOut(int64(b.OutputValue(feeRate)), b.Script)
}
