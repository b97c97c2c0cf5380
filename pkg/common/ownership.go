package common

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

var (
	ErrInvalidOwnershipProof = errors.New("invalid ownership proof")

	ownershipTag = []byte("wabisabi/ownership")
)

// OwnershipProof proves control of the key locking a coin. PubKey is only
// set for segwit v0 keyhash coins, taproot coins commit to the key in the
// script itself.
type OwnershipProof struct {
	PubKey    []byte `json:"pubkey,omitempty"`
	Signature []byte `json:"signature"`
}

// CommitmentData binds an ownership proof to one round of this coordinator.
func CommitmentData(roundId string) []byte {
	data := make([]byte, 0, len(CoordinatorIdentifier)+len(roundId)+2)
	data = append(data, byte(len(CoordinatorIdentifier)))
	data = append(data, CoordinatorIdentifier...)
	data = append(data, byte(len(roundId)))
	return append(data, roundId...)
}

func ownershipSighash(coin Coin, commitmentData []byte) *chainhash.Hash {
	return chainhash.TaggedHash(
		ownershipTag, commitmentData, SerializeOutpoint(coin.Outpoint),
		coin.Script(),
	)
}

func NewOwnershipProof(
	key *btcec.PrivateKey, coin Coin, commitmentData []byte,
) (*OwnershipProof, error) {
	msg := ownershipSighash(coin, commitmentData)

	switch txscript.GetScriptClass(coin.Script()) {
	case txscript.WitnessV0PubKeyHashTy:
		pubkey := key.PubKey().SerializeCompressed()
		if !bytes.Equal(btcutil.Hash160(pubkey), coin.Script()[2:]) {
			return nil, fmt.Errorf("key does not match coin %s", coin)
		}
		sig := ecdsa.Sign(key, msg[:])
		return &OwnershipProof{
			PubKey:    pubkey,
			Signature: sig.Serialize(),
		}, nil
	case txscript.WitnessV1TaprootTy:
		tweakedKey := txscript.TweakTaprootPrivKey(*key, nil)
		outputKey := schnorr.SerializePubKey(tweakedKey.PubKey())
		if !bytes.Equal(outputKey, coin.Script()[2:]) {
			return nil, fmt.Errorf("key does not match coin %s", coin)
		}
		sig, err := schnorr.Sign(tweakedKey, msg[:])
		if err != nil {
			return nil, err
		}
		return &OwnershipProof{Signature: sig.Serialize()}, nil
	default:
		return nil, ErrUnsupportedScript
	}
}

func VerifyOwnershipProof(
	proof *OwnershipProof, coin Coin, commitmentData []byte,
) error {
	if proof == nil {
		return ErrInvalidOwnershipProof
	}
	msg := ownershipSighash(coin, commitmentData)

	switch txscript.GetScriptClass(coin.Script()) {
	case txscript.WitnessV0PubKeyHashTy:
		if !bytes.Equal(btcutil.Hash160(proof.PubKey), coin.Script()[2:]) {
			return ErrInvalidOwnershipProof
		}
		pubkey, err := btcec.ParsePubKey(proof.PubKey)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOwnershipProof, err)
		}
		sig, err := ecdsa.ParseDERSignature(proof.Signature)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOwnershipProof, err)
		}
		if !sig.Verify(msg[:], pubkey) {
			return ErrInvalidOwnershipProof
		}
		return nil
	case txscript.WitnessV1TaprootTy:
		pubkey, err := schnorr.ParsePubKey(coin.Script()[2:])
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOwnershipProof, err)
		}
		sig, err := schnorr.ParseSignature(proof.Signature)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOwnershipProof, err)
		}
		if !sig.Verify(msg[:], pubkey) {
			return ErrInvalidOwnershipProof
		}
		return nil
	default:
		return ErrUnsupportedScript
	}
}
