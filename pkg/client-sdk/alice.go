package wabisabisdk

import (
	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/btcutil"
)

// alice is a registered input.
type alice struct {
	id                          string
	coin                        common.Coin
	isPayingZeroCoordinationFee bool
	node                        int

	// Set if a keep-alive got confirmed because the phase changed in the
	// meantime.
	amounts []credential.Credential
	vsizes  []credential.Credential
}

func (a *alice) effectiveValue(params client.RoundParameters) (btcutil.Amount, error) {
	return common.EffectiveInputValue(
		a.coin, params.FeeRate, params.CoordinationFeeRate, a.isPayingZeroCoordinationFee,
	)
}

func (a *alice) remainingVsize(params client.RoundParameters) (int64, error) {
	vsize, err := common.InputVsize(a.coin.Script())
	if err != nil {
		return 0, err
	}
	return params.MaxVsizeAllocationPerAlice - vsize, nil
}
