package common

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// CoordinatorIdentifier is mixed into every ownership proof commitment so
	// that a proof produced for one coordinator can't be replayed on another.
	CoordinatorIdentifier = "CoinJoinCoordinatorIdentifier"

	CoinbaseMaturity = 100

	// MaxAmountCredentialValue bounds every amount credential, 43000 BTC.
	MaxAmountCredentialValue = int64(4_300_000_000_000)
	// MaxVsizeCredentialValue bounds every vsize credential.
	MaxVsizeCredentialValue = int64(255)
)

var (
	ErrUnsupportedScript = errors.New("unsupported script type")
	ErrInvalidOutpoint   = errors.New("invalid outpoint")
)

type Coin struct {
	Outpoint wire.OutPoint
	TxOut    wire.TxOut
}

func NewCoin(outpoint wire.OutPoint, amount int64, script []byte) Coin {
	return Coin{
		Outpoint: outpoint,
		TxOut:    wire.TxOut{Value: amount, PkScript: script},
	}
}

func (c Coin) Amount() btcutil.Amount {
	return btcutil.Amount(c.TxOut.Value)
}

func (c Coin) Script() []byte {
	return c.TxOut.PkScript
}

func (c Coin) String() string {
	return c.Outpoint.String()
}

// ParseOutpoint parses the txid:vout notation used by the cli and the
// admin endpoints.
func ParseOutpoint(s string) (*wire.OutPoint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutpoint, s)
	}
	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutpoint, err)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutpoint, err)
	}
	return wire.NewOutPoint(hash, uint32(vout)), nil
}

// SerializeOutpoint returns the 36 bytes consensus encoding of the outpoint.
func SerializeOutpoint(op wire.OutPoint) []byte {
	buf := make([]byte, 0, chainhash.HashSize+4)
	buf = append(buf, op.Hash[:]...)
	return append(
		buf, byte(op.Index), byte(op.Index>>8), byte(op.Index>>16),
		byte(op.Index>>24),
	)
}

// ContainsOutputs tells whether every given output is paid by the
// transaction with at least the given value.
func ContainsOutputs(tx *wire.MsgTx, outputs []*wire.TxOut) bool {
	available := make([]*wire.TxOut, len(tx.TxOut))
	copy(available, tx.TxOut)

	for _, want := range outputs {
		found := -1
		for i, got := range available {
			if got != nil && bytes.Equal(got.PkScript, want.PkScript) &&
				got.Value >= want.Value {
				found = i
				break
			}
		}
		if found < 0 {
			return false
		}
		available[found] = nil
	}
	return true
}
