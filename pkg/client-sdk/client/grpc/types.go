package grpcclient

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

var networks = map[string]*chaincfg.Params{
	chaincfg.MainNetParams.Name:       &chaincfg.MainNetParams,
	chaincfg.TestNet3Params.Name:      &chaincfg.TestNet3Params,
	chaincfg.SigNetParams.Name:        &chaincfg.SigNetParams,
	chaincfg.RegressionNetParams.Name: &chaincfg.RegressionNetParams,
}

type roundStateList []coordinatorv1.RoundState

func (l roundStateList) toRoundStates() ([]client.RoundState, error) {
	list := make([]client.RoundState, 0, len(l))
	for _, r := range l {
		state, err := roundState(r).toRoundState()
		if err != nil {
			return nil, fmt.Errorf("round %s: %s", r.Id, err)
		}
		list = append(list, *state)
	}
	return list, nil
}

type roundState coordinatorv1.RoundState

func (r roundState) toRoundState() (*client.RoundState, error) {
	params := r.Parameters
	network, ok := networks[params.Network]
	if !ok {
		return nil, fmt.Errorf("unknown network %s", params.Network)
	}

	var unsignedTx *wire.MsgTx
	if len(r.UnsignedTx) > 0 {
		buf, err := hex.DecodeString(r.UnsignedTx)
		if err != nil {
			return nil, fmt.Errorf("invalid unsigned tx: %s", err)
		}
		unsignedTx = &wire.MsgTx{}
		if err := unsignedTx.Deserialize(bytes.NewReader(buf)); err != nil {
			return nil, fmt.Errorf("invalid unsigned tx: %s", err)
		}
	}
	prevouts := make([]*wire.TxOut, 0, len(r.Prevouts))
	for _, out := range r.Prevouts {
		prevouts = append(prevouts, wire.NewTxOut(out.Value, out.Script))
	}

	return &client.RoundState{
		Id:            r.Id,
		BlameOf:       r.BlameOf,
		Version:       r.Version,
		Phase:         client.Phase(r.Phase),
		EndRoundState: r.EndRoundState,
		Parameters: client.RoundParameters{
			Network: network,
			FeeRate: common.FeeRate(params.FeeRate),
			CoordinationFeeRate: common.CoordinationFeeRate{
				PartsPerMillion:       params.CoordinationFeeRate,
				PlebsDontPayThreshold: btcutil.Amount(params.PlebsDontPayThreshold),
			},
			MinInputCount:                 params.MinInputCount,
			MaxInputCount:                 params.MaxInputCount,
			MinAmount:                     btcutil.Amount(params.MinAmount),
			MaxAmount:                     btcutil.Amount(params.MaxAmount),
			MaxVsizeAllocationPerAlice:    params.MaxVsizeAllocationPerAlice,
			InputRegistrationTimeout:      seconds(params.InputRegistrationTimeout),
			ConnectionConfirmationTimeout: seconds(params.ConnectionConfirmationTimeout),
			OutputRegistrationTimeout:     seconds(params.OutputRegistrationTimeout),
			TransactionSigningTimeout:     seconds(params.TransactionSigningTimeout),
			CoordinatorScript:             params.CoordinatorScript,
		},
		AmountIssuer:         r.AmountIssuer,
		VsizeIssuer:          r.VsizeIssuer,
		InputRegistrationEnd: time.Unix(r.InputRegistrationEnd, 0),
		PhaseDeadline:        time.Unix(r.PhaseDeadline, 0),
		InputAmounts:         r.InputAmounts,
		UnsignedTx:           unsignedTx,
		Prevouts:             prevouts,
		Txid:                 r.Txid,
	}, nil
}

func seconds(s int64) time.Duration {
	return time.Duration(s) * time.Second
}
