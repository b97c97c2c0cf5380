package domain

import (
	"time"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Standard transactions can't be bigger than 100k vbytes.
const MaxTransactionVsize = int64(100_000)

// RoundParameters are fixed at round creation and shared with every
// participant through the status endpoint.
type RoundParameters struct {
	Network                       *chaincfg.Params
	FeeRate                       common.FeeRate
	CoordinationFeeRate           common.CoordinationFeeRate
	MinInputCount                 int
	MaxInputCount                 int
	MinAmount                     btcutil.Amount
	MaxAmount                     btcutil.Amount
	MaxVsizeAllocationPerAlice    int64
	InputRegistrationTimeout      time.Duration
	ConnectionConfirmationTimeout time.Duration
	OutputRegistrationTimeout     time.Duration
	TransactionSigningTimeout     time.Duration
	CoordinatorScript             []byte
}

// InitialInputVsizeAllocation is the vsize budget shared by all the Alices
// of a round, what's left once the shared transaction overhead is paid.
func (p RoundParameters) InitialInputVsizeAllocation() int64 {
	// version, locktime, segwit marker and the in/out counters.
	const sharedOverhead = 4 + 4 + 1 + 3 + 3
	return MaxTransactionVsize - sharedOverhead
}
