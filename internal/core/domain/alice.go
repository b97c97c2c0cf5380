package domain

import (
	"time"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
)

// Alice is the input side of a participant.
type Alice struct {
	Id                          string
	Coin                        common.Coin
	OwnershipProof              common.OwnershipProof
	InputVsize                  int64
	IsPayingZeroCoordinationFee bool
	ConfirmedConnection         bool
	ReadyToSign                 bool
	Deadline                    time.Time
}

func NewAlice(
	coin common.Coin, proof common.OwnershipProof,
	isPayingZeroCoordinationFee bool,
) (*Alice, error) {
	inputVsize, err := common.InputVsize(coin.Script())
	if err != nil {
		return nil, NewProtocolError(ErrNonStandardInput, "%s", err)
	}
	return &Alice{
		Id:                          uuid.New().String(),
		Coin:                        coin,
		OwnershipProof:              proof,
		InputVsize:                  inputVsize,
		IsPayingZeroCoordinationFee: isPayingZeroCoordinationFee,
	}, nil
}

func (a *Alice) CoordinationFee(params RoundParameters) btcutil.Amount {
	if a.IsPayingZeroCoordinationFee {
		return 0
	}
	return params.CoordinationFeeRate.Fee(a.Coin.Amount())
}

func (a *Alice) NetworkFee(params RoundParameters) btcutil.Amount {
	return common.NetworkFee(params.FeeRate, a.InputVsize)
}

// RemainingAmount is the amount credential value the Alice is entitled to.
func (a *Alice) RemainingAmount(params RoundParameters) btcutil.Amount {
	return a.Coin.Amount() - a.NetworkFee(params) - a.CoordinationFee(params)
}

// RemainingVsize is the vsize credential value the Alice is entitled to.
func (a *Alice) RemainingVsize(params RoundParameters) int64 {
	return params.MaxVsizeAllocationPerAlice - a.InputVsize
}

func (a *Alice) SetDeadlineRelativeTo(timeFrame time.Duration) {
	// Have alice time out a little bit later than the client expects.
	a.Deadline = time.Now().Add(2 * timeFrame)
}

func (a *Alice) IsExpired(now time.Time) bool {
	return !a.ConfirmedConnection && now.After(a.Deadline)
}
