package handlers

import (
	"bytes"
	"encoding/hex"
	"fmt"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/internal/core/application"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func parseOutpoint(op coordinatorv1.Outpoint) (wire.OutPoint, error) {
	if len(op.Txid) <= 0 {
		return wire.OutPoint{}, fmt.Errorf("missing outpoint txid")
	}
	hash, err := chainhash.NewHashFromStr(op.Txid)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("invalid outpoint txid: %s", err)
	}
	return wire.OutPoint{Hash: *hash, Index: op.Vout}, nil
}

func parseRoundId(roundId string) (string, error) {
	if len(roundId) <= 0 {
		return "", fmt.Errorf("missing round id")
	}
	return roundId, nil
}

func parseAliceId(aliceId string) (string, error) {
	if len(aliceId) <= 0 {
		return "", fmt.Errorf("missing alice id")
	}
	return aliceId, nil
}

func parseWitness(witness [][]byte) (wire.TxWitness, error) {
	if len(witness) <= 0 {
		return nil, fmt.Errorf("missing witness")
	}
	return wire.TxWitness(witness), nil
}

type roundStateList []application.RoundState

func (l roundStateList) toProto() []coordinatorv1.RoundState {
	list := make([]coordinatorv1.RoundState, 0, len(l))
	for _, r := range l {
		list = append(list, roundState(r).toProto())
	}
	return list
}

type roundState application.RoundState

func (r roundState) toProto() coordinatorv1.RoundState {
	var unsignedTx string
	if r.UnsignedTx != nil {
		buf, err := serializeTx(r.UnsignedTx)
		if err == nil {
			unsignedTx = hex.EncodeToString(buf)
		}
	}
	prevouts := make([]coordinatorv1.TxOut, 0, len(r.Prevouts))
	for _, out := range r.Prevouts {
		prevouts = append(prevouts, coordinatorv1.TxOut{
			Value: out.Value, Script: out.PkScript,
		})
	}
	params := r.Parameters
	var network string
	if params.Network != nil {
		network = params.Network.Name
	}
	return coordinatorv1.RoundState{
		Id:            r.Id,
		BlameOf:       r.BlameOf,
		Version:       r.Version,
		Phase:         r.Phase.String(),
		EndRoundState: r.EndRoundState.String(),
		Parameters: coordinatorv1.RoundParameters{
			Network:                       network,
			FeeRate:                       int64(params.FeeRate),
			CoordinationFeeRate:           params.CoordinationFeeRate.PartsPerMillion,
			PlebsDontPayThreshold:         int64(params.CoordinationFeeRate.PlebsDontPayThreshold),
			MinInputCount:                 params.MinInputCount,
			MaxInputCount:                 params.MaxInputCount,
			MinAmount:                     int64(params.MinAmount),
			MaxAmount:                     int64(params.MaxAmount),
			MaxVsizeAllocationPerAlice:    params.MaxVsizeAllocationPerAlice,
			InputRegistrationTimeout:      int64(params.InputRegistrationTimeout.Seconds()),
			ConnectionConfirmationTimeout: int64(params.ConnectionConfirmationTimeout.Seconds()),
			OutputRegistrationTimeout:     int64(params.OutputRegistrationTimeout.Seconds()),
			TransactionSigningTimeout:     int64(params.TransactionSigningTimeout.Seconds()),
			CoordinatorScript:             params.CoordinatorScript,
		},
		AmountIssuer:         r.AmountIssuer,
		VsizeIssuer:          r.VsizeIssuer,
		InputRegistrationEnd: r.InputRegistrationEnd.Unix(),
		PhaseDeadline:        r.PhaseDeadline.Unix(),
		InputAmounts:         r.InputAmounts,
		UnsignedTx:           unsignedTx,
		Prevouts:             prevouts,
		Txid:                 r.Txid,
	}
}

func serializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
