package common_test

import (
	"testing"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func p2wpkhScript(t *testing.T, key *btcec.PrivateKey) []byte {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(key.PubKey().SerializeCompressed())).
		Script()
	require.NoError(t, err)
	return script
}

func p2trScript(t *testing.T, key *btcec.PrivateKey) []byte {
	outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
	script, err := txscript.PayToTaprootScript(outputKey)
	require.NoError(t, err)
	return script
}

func TestOwnershipProof(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	otherKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	outpoint := wire.OutPoint{Hash: chainhash.Hash{1}, Index: 3}
	fixtures := []struct {
		name   string
		script []byte
	}{
		{"p2wpkh", p2wpkhScript(t, key)},
		{"p2tr", p2trScript(t, key)},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			coin := common.NewCoin(outpoint, 100_000, f.script)
			commitment := common.CommitmentData("round-1")

			proof, err := common.NewOwnershipProof(key, coin, commitment)
			require.NoError(t, err)
			require.NoError(t, common.VerifyOwnershipProof(proof, coin, commitment))

			err = common.VerifyOwnershipProof(
				proof, coin, common.CommitmentData("round-2"),
			)
			require.ErrorIs(t, err, common.ErrInvalidOwnershipProof)

			_, err = common.NewOwnershipProof(otherKey, coin, commitment)
			require.Error(t, err)
		})
	}

	t.Run("forged", func(t *testing.T) {
		coin := common.NewCoin(outpoint, 100_000, p2trScript(t, key))
		commitment := common.CommitmentData("round-1")
		sig, err := schnorr.Sign(otherKey, chainhash.HashB([]byte("x")))
		require.NoError(t, err)
		err = common.VerifyOwnershipProof(
			&common.OwnershipProof{Signature: sig.Serialize()}, coin, commitment,
		)
		require.ErrorIs(t, err, common.ErrInvalidOwnershipProof)
	})
}

func TestFees(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	t.Run("input vsize", func(t *testing.T) {
		vsize, err := common.InputVsize(p2wpkhScript(t, key))
		require.NoError(t, err)
		require.Equal(t, int64(69), vsize)

		vsize, err = common.InputVsize(p2trScript(t, key))
		require.NoError(t, err)
		require.Equal(t, int64(58), vsize)

		_, err = common.InputVsize([]byte{txscript.OP_TRUE})
		require.ErrorIs(t, err, common.ErrUnsupportedScript)
	})

	t.Run("output vsize", func(t *testing.T) {
		require.Equal(t, int64(31), common.OutputVsize(p2wpkhScript(t, key)))
		require.Equal(t, int64(43), common.OutputVsize(p2trScript(t, key)))
	})

	t.Run("effective value", func(t *testing.T) {
		coin := common.NewCoin(wire.OutPoint{}, 1_000_000, p2wpkhScript(t, key))
		feeRate := common.FeeRate(10_000)
		coordRate := common.CoordinationFeeRate{PartsPerMillion: 3000}

		value, err := common.EffectiveInputValue(coin, feeRate, coordRate, false)
		require.NoError(t, err)
		require.Equal(t, btcutil.Amount(1_000_000-690-3000), value)

		value, err = common.EffectiveInputValue(coin, feeRate, coordRate, true)
		require.NoError(t, err)
		require.Equal(t, btcutil.Amount(1_000_000-690), value)

		coordRate.PlebsDontPayThreshold = 1_000_000
		value, err = common.EffectiveInputValue(coin, feeRate, coordRate, false)
		require.NoError(t, err)
		require.Equal(t, btcutil.Amount(1_000_000-690), value)
	})

	t.Run("outpoint", func(t *testing.T) {
		op := wire.OutPoint{Hash: chainhash.Hash{7}, Index: 1}
		parsed, err := common.ParseOutpoint(op.String())
		require.NoError(t, err)
		require.Equal(t, op, *parsed)

		_, err = common.ParseOutpoint("nope")
		require.ErrorIs(t, err, common.ErrInvalidOutpoint)
	})
}
