package domain

import (
	"bytes"
	"fmt"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
)

// ConstructionState is the coinjoin being assembled. Every transition
// returns a new state and leaves the receiver untouched, so that callers
// can validate a change without committing it.
type ConstructionState struct {
	Parameters RoundParameters
	Inputs     []common.Coin
	Outputs    []*wire.TxOut
}

func NewConstructionState(params RoundParameters) ConstructionState {
	return ConstructionState{
		Parameters: params,
		Inputs:     make([]common.Coin, 0),
		Outputs:    make([]*wire.TxOut, 0),
	}
}

func (s ConstructionState) AddInput(coin common.Coin) (ConstructionState, error) {
	for _, in := range s.Inputs {
		if in.Outpoint == coin.Outpoint {
			return s, NewProtocolError(
				ErrNonUniqueInputs, "input %s already in coinjoin", coin,
			)
		}
	}
	if len(s.Inputs) >= s.Parameters.MaxInputCount {
		return s, NewProtocolError(ErrTooManyInputs, "")
	}
	if !isAllowedScript(coin.Script(), false) {
		return s, NewProtocolError(
			ErrNonStandardInput, "input %s has unsupported script", coin,
		)
	}
	return s.withInput(coin), nil
}

func (s ConstructionState) AddOutput(out *wire.TxOut) (ConstructionState, error) {
	if !isAllowedScript(out.PkScript, true) {
		return s, NewProtocolError(ErrNonStandardOutput, "")
	}
	if out.Value <= 0 || txrules.IsDustOutput(out, txrules.DefaultRelayFeePerKb) {
		return s, NewProtocolError(
			ErrDustOutput, "output value %d is dust", out.Value,
		)
	}
	for _, o := range s.Outputs {
		if bytes.Equal(o.PkScript, out.PkScript) {
			return s, NewProtocolError(ErrAlreadyRegisteredScript, "")
		}
	}
	return s.withOutput(out), nil
}

func (s ConstructionState) withInput(coin common.Coin) ConstructionState {
	inputs := make([]common.Coin, 0, len(s.Inputs)+1)
	inputs = append(inputs, s.Inputs...)
	s.Inputs = append(inputs, coin)
	return s
}

func (s ConstructionState) withOutput(out *wire.TxOut) ConstructionState {
	outputs := make([]*wire.TxOut, 0, len(s.Outputs)+1)
	outputs = append(outputs, s.Outputs...)
	s.Outputs = append(outputs, out)
	return s
}

func (s ConstructionState) Balance() btcutil.Amount {
	var balance btcutil.Amount
	for _, in := range s.Inputs {
		balance += in.Amount()
	}
	for _, out := range s.Outputs {
		balance -= btcutil.Amount(out.Value)
	}
	return balance
}

func (s ConstructionState) EstimatedVsize() (int64, error) {
	scripts := make([][]byte, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		scripts = append(scripts, in.Script())
	}
	return common.TxVsize(scripts, s.Outputs)
}

// Finalize builds the unsigned coinjoin. What's left after paying the mining
// fee goes to the coordinator script, if any and if not dust.
func (s ConstructionState) Finalize() (*SigningState, error) {
	if len(s.Inputs) <= 0 || len(s.Outputs) <= 0 {
		return nil, fmt.Errorf("coinjoin must have at least one input and one output")
	}

	state := s
	if len(s.Parameters.CoordinatorScript) > 0 {
		withFee := s.withOutput(wire.NewTxOut(0, s.Parameters.CoordinatorScript))
		vsize, err := withFee.EstimatedVsize()
		if err != nil {
			return nil, err
		}
		leftover := s.Balance() - common.NetworkFee(s.Parameters.FeeRate, vsize)
		coordinatorOut := wire.NewTxOut(
			int64(leftover), s.Parameters.CoordinatorScript,
		)
		if leftover > 0 &&
			!txrules.IsDustOutput(coordinatorOut, txrules.DefaultRelayFeePerKb) {
			state = s.withOutput(coordinatorOut)
		}
	}

	vsize, err := state.EstimatedVsize()
	if err != nil {
		return nil, err
	}
	if vsize > MaxTransactionVsize {
		return nil, fmt.Errorf("coinjoin too large: %d vbytes", vsize)
	}
	minFee := common.NetworkFee(s.Parameters.FeeRate, vsize)
	if fee := state.Balance(); fee < minFee {
		return nil, fmt.Errorf(
			"coinjoin pays %d sats of fees, expected at least %d", fee, minFee,
		)
	}

	return newSigningState(state), nil
}

func isAllowedScript(script []byte, isOutput bool) bool {
	switch txscript.GetScriptClass(script) {
	case txscript.WitnessV0PubKeyHashTy, txscript.WitnessV1TaprootTy:
		return true
	case txscript.WitnessV0ScriptHashTy:
		return isOutput
	default:
		return false
	}
}
