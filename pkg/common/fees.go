package common

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

type FeeRate = chainfee.SatPerKVByte

// CoordinationFeeRate is expressed in parts per million of the input amount.
// Inputs whose amount is not above PlebsDontPayThreshold pay nothing.
type CoordinationFeeRate struct {
	PartsPerMillion       int64
	PlebsDontPayThreshold btcutil.Amount
}

func (r CoordinationFeeRate) Fee(amount btcutil.Amount) btcutil.Amount {
	if amount <= r.PlebsDontPayThreshold {
		return 0
	}
	return amount * btcutil.Amount(r.PartsPerMillion) / 1_000_000
}

// InputVsize returns the marginal virtual size of spending an output locked
// by the given script. Only segwit v0 keyhash and taproot keyspend inputs
// can join a round.
func InputVsize(script []byte) (int64, error) {
	switch txscript.GetScriptClass(script) {
	case txscript.WitnessV0PubKeyHashTy, txscript.WitnessV1TaprootTy:
		return int64(txsizes.GetMinInputVirtualSize(script)), nil
	default:
		return 0, ErrUnsupportedScript
	}
}

// TxVsize estimates the virtual size of the fully signed transaction
// spending the given prevout scripts to the given outputs.
func TxVsize(prevoutScripts [][]byte, outputs []*wire.TxOut) (int64, error) {
	weightEstimator := &input.TxWeightEstimator{}
	for _, script := range prevoutScripts {
		switch txscript.GetScriptClass(script) {
		case txscript.WitnessV0PubKeyHashTy:
			weightEstimator.AddP2WKHInput()
		case txscript.WitnessV1TaprootTy:
			weightEstimator.AddTaprootKeySpendInput(txscript.SigHashDefault)
		default:
			return 0, ErrUnsupportedScript
		}
	}
	for _, out := range outputs {
		weightEstimator.AddOutput(out.PkScript)
	}
	return int64(weightEstimator.VSize()), nil
}

// OutputVsize returns the marginal virtual size of adding an output paying
// to the given script.
func OutputVsize(script []byte) int64 {
	return int64(8 + wire.VarIntSerializeSize(uint64(len(script))) + len(script))
}

func NetworkFee(feeRate FeeRate, vsize int64) btcutil.Amount {
	return feeRate.FeeForVSize(lntypes.VByte(vsize))
}

// EffectiveInputValue is what an input contributes to the round once its
// own mining fee and coordination fee are paid.
func EffectiveInputValue(
	coin Coin, feeRate FeeRate, coordinationFeeRate CoordinationFeeRate,
	payingZeroCoordinationFee bool,
) (btcutil.Amount, error) {
	vsize, err := InputVsize(coin.Script())
	if err != nil {
		return 0, err
	}
	value := coin.Amount() - NetworkFee(feeRate, vsize)
	if !payingZeroCoordinationFee {
		value -= coordinationFeeRate.Fee(coin.Amount())
	}
	return value, nil
}

// EffectiveOutputCost is the amount credential value needed to register an
// output of the given amount.
func EffectiveOutputCost(
	amount btcutil.Amount, script []byte, feeRate FeeRate,
) btcutil.Amount {
	return amount + NetworkFee(feeRate, OutputVsize(script))
}
