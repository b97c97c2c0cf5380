package decomposer

import (
	"errors"
	"sort"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
)

var ErrNotEnoughValue = errors.New("not enough value to create any output")

// minOthersProducing is how many inputs of other participants must be able
// to produce a denomination for it to be preferred.
const minOthersProducing = 2

// Decomposer splits the value a participant brings to a round into output
// amounts, preferring standard denominations that other participants can
// produce too.
type Decomposer struct {
	feeRate       common.FeeRate
	minOutput     btcutil.Amount
	outputVsize   int64
	denominations []btcutil.Amount
}

// New returns a decomposer for outputs of the given vsize. The smallest
// output created is minOutput, the biggest maxOutput.
func New(
	feeRate common.FeeRate, minOutput, maxOutput btcutil.Amount, outputVsize int64,
) *Decomposer {
	return &Decomposer{
		feeRate:       feeRate,
		minOutput:     minOutput,
		outputVsize:   outputVsize,
		denominations: StandardDenominations(minOutput, maxOutput),
	}
}

// StandardDenominations returns, in descending order, the powers of two,
// the powers of three and the 1-2-5 series in the given range.
func StandardDenominations(minAmount, maxAmount btcutil.Amount) []btcutil.Amount {
	set := make(map[btcutil.Amount]struct{})
	add := func(a btcutil.Amount) {
		if a >= minAmount && a <= maxAmount {
			set[a] = struct{}{}
		}
	}
	for a := btcutil.Amount(1); a <= maxAmount; a *= 2 {
		add(a)
	}
	for a := btcutil.Amount(1); a <= maxAmount; a *= 3 {
		add(a)
	}
	for a := btcutil.Amount(1); a <= maxAmount; a *= 10 {
		add(a)
		add(2 * a)
		add(5 * a)
	}

	denominations := make([]btcutil.Amount, 0, len(set))
	for a := range set {
		denominations = append(denominations, a)
	}
	sort.Slice(denominations, func(i, j int) bool {
		return denominations[i] > denominations[j]
	})
	return denominations
}

func (d *Decomposer) outputFee() btcutil.Amount {
	return common.NetworkFee(d.feeRate, d.outputVsize)
}

// Decompose returns the amounts of the outputs to register given the
// effective value of the participant's inputs, the amounts of the other
// participants' inputs and the vsize available for outputs.
func (d *Decomposer) Decompose(
	value btcutil.Amount, othersInputs []btcutil.Amount, availableVsize int64,
) ([]btcutil.Amount, error) {
	maxOutputs := int(availableVsize / d.outputVsize)
	fee := d.outputFee()

	outputs := make([]btcutil.Amount, 0)
	remaining := value
	for len(outputs) < maxOutputs {
		denomination, ok := d.pick(remaining, othersInputs)
		if !ok {
			break
		}
		outputs = append(outputs, denomination)
		remaining -= denomination + fee
	}

	if len(outputs) < maxOutputs {
		if change := remaining - fee; change >= d.minOutput {
			outputs = append(outputs, change)
		}
	}

	if len(outputs) <= 0 {
		return nil, ErrNotEnoughValue
	}
	return outputs, nil
}

// pick returns the largest affordable denomination other participants can
// produce too or, if there isn't any, just the largest affordable one.
func (d *Decomposer) pick(
	remaining btcutil.Amount, othersInputs []btcutil.Amount,
) (btcutil.Amount, bool) {
	fee := d.outputFee()
	fallback, found := btcutil.Amount(0), false
	for _, denomination := range d.denominations {
		cost := denomination + fee
		if cost > remaining {
			continue
		}
		if !found {
			fallback, found = denomination, true
		}
		producing := 0
		for _, amount := range othersInputs {
			if amount >= cost {
				producing++
			}
		}
		if producing >= minOthersProducing {
			return denomination, true
		}
	}
	return fallback, found
}
