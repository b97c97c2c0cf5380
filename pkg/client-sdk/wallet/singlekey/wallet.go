package singlekeywallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ark-network/wabisabi/pkg/client-sdk/wallet"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	purposeSegwit  = 84
	purposeTaproot = 86
)

// singlekeyWallet derives every key from a single root key. Coins and
// fresh output scripts live on the external branch of the first account,
// segwit v0 or taproot.
type singlekeyWallet struct {
	lock sync.Mutex

	network *chaincfg.Params
	taproot bool
	branch  *hdkeychain.ExtendedKey
	next    uint32
	keys    map[string]*btcec.PrivateKey
}

// NewWallet returns a wallet for the given seed. Fresh scripts are derived
// starting from nextIndex so that they never collide with the scripts of
// the coins being mixed.
func NewWallet(
	seed []byte, network *chaincfg.Params, taproot bool, nextIndex uint32,
) (wallet.Wallet, error) {
	root, err := hdkeychain.NewMaster(seed, network)
	if err != nil {
		return nil, err
	}

	purpose := uint32(purposeSegwit)
	if taproot {
		purpose = purposeTaproot
	}
	branch := root
	for _, index := range []uint32{
		purpose + hdkeychain.HardenedKeyStart,
		network.HDCoinType + hdkeychain.HardenedKeyStart,
		hdkeychain.HardenedKeyStart,
		0,
	} {
		if branch, err = branch.Derive(index); err != nil {
			return nil, err
		}
	}

	return &singlekeyWallet{
		network: network,
		taproot: taproot,
		branch:  branch,
		next:    nextIndex,
		keys:    make(map[string]*btcec.PrivateKey),
	}, nil
}

func (w *singlekeyWallet) GetType() string {
	return wallet.SingleKeyWallet
}

func (w *singlekeyWallet) Network() *chaincfg.Params {
	return w.network
}

func (w *singlekeyWallet) Coin(
	outpoint wire.OutPoint, amount int64, index uint32,
) (*common.Coin, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	script, err := w.deriveScript(index)
	if err != nil {
		return nil, err
	}
	coin := common.NewCoin(outpoint, amount, script)
	return &coin, nil
}

func (w *singlekeyWallet) NewScript(_ context.Context) ([]byte, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	script, err := w.deriveScript(w.next)
	if err != nil {
		return nil, err
	}
	w.next++
	return script, nil
}

func (w *singlekeyWallet) OwnershipProof(
	coin common.Coin, commitmentData []byte,
) (*common.OwnershipProof, error) {
	key, err := w.keyFor(coin.Script())
	if err != nil {
		return nil, err
	}
	return common.NewOwnershipProof(key, coin, commitmentData)
}

func (w *singlekeyWallet) SignInput(
	tx *wire.MsgTx, inputIndex int, prevouts txscript.PrevOutputFetcher,
) (wire.TxWitness, error) {
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return nil, fmt.Errorf("input index %d out of range", inputIndex)
	}
	prevout := prevouts.FetchPrevOutput(tx.TxIn[inputIndex].PreviousOutPoint)
	if prevout == nil {
		return nil, fmt.Errorf("missing prevout for input %d", inputIndex)
	}
	key, err := w.keyFor(prevout.PkScript)
	if err != nil {
		return nil, err
	}

	sighashes := txscript.NewTxSigHashes(tx, prevouts)
	switch txscript.GetScriptClass(prevout.PkScript) {
	case txscript.WitnessV0PubKeyHashTy:
		return txscript.WitnessSignature(
			tx, sighashes, inputIndex, prevout.Value, prevout.PkScript,
			txscript.SigHashAll, key, true,
		)
	case txscript.WitnessV1TaprootTy:
		return txscript.TaprootWitnessSignature(
			tx, sighashes, inputIndex, prevout.Value, prevout.PkScript,
			txscript.SigHashDefault, key,
		)
	default:
		return nil, common.ErrUnsupportedScript
	}
}

func (w *singlekeyWallet) keyFor(script []byte) (*btcec.PrivateKey, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	key, ok := w.keys[hex.EncodeToString(script)]
	if !ok {
		return nil, fmt.Errorf("script %x not owned by wallet", script)
	}
	return key, nil
}

// deriveScript must be called with the lock held.
func (w *singlekeyWallet) deriveScript(index uint32) ([]byte, error) {
	child, err := w.branch.Derive(index)
	if err != nil {
		return nil, err
	}
	key, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}

	var script []byte
	if w.taproot {
		outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
		script, err = txscript.PayToTaprootScript(outputKey)
	} else {
		var addr *btcutil.AddressWitnessPubKeyHash
		addr, err = btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(key.PubKey().SerializeCompressed()), w.network,
		)
		if err == nil {
			script, err = txscript.PayToAddrScript(addr)
		}
	}
	if err != nil {
		return nil, err
	}

	w.keys[hex.EncodeToString(script)] = key
	return script, nil
}

// Address returns the address of the given script on the wallet network.
func Address(script []byte, network *chaincfg.Params) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, network)
	if err != nil {
		return "", err
	}
	if len(addrs) != 1 {
		return "", fmt.Errorf("script %x has no address", script)
	}
	return addrs[0].EncodeAddress(), nil
}
