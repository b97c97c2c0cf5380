package bitcoind

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	log "github.com/sirupsen/logrus"
)

const defaultTxCacheSize = 10_000

// rpcClient is the subset of the bitcoind json-rpc api in use.
type rpcClient interface {
	GetTxOut(txHash *chainhash.Hash, index uint32, mempool bool) (*btcjson.GetTxOutResult, error)
	GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error)
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error)
	EstimateSmartFee(
		confTarget int64, mode *btcjson.EstimateSmartFeeMode,
	) (*btcjson.EstimateSmartFeeResult, error)
	Shutdown()
}

type Config struct {
	Host        string
	User        string
	Pass        string
	TxCacheSize int
}

type service struct {
	client rpcClient
	// Confirmed transactions never change, so caching them by txid is safe.
	txCache *lru.Cache[chainhash.Hash, *wire.MsgTx]
}

func NewService(cfg Config) (ports.BlockchainService, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		DisableTLS:   true,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bitcoind: %w", err)
	}
	return newService(client, cfg.TxCacheSize)
}

func newService(client rpcClient, txCacheSize int) (*service, error) {
	if txCacheSize <= 0 {
		txCacheSize = defaultTxCacheSize
	}
	cache, err := lru.New[chainhash.Hash, *wire.MsgTx](txCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tx cache: %w", err)
	}
	return &service{client, cache}, nil
}

func (s *service) GetTxOut(
	ctx context.Context, outpoint wire.OutPoint, includeMempool bool,
) (*ports.TxOutInfo, error) {
	res, err := call(ctx, func() (*btcjson.GetTxOutResult, error) {
		return s.client.GetTxOut(&outpoint.Hash, outpoint.Index, includeMempool)
	})
	if err != nil {
		return nil, err
	}
	// Unknown or spent.
	if res == nil {
		return nil, nil
	}

	amount, err := btcutil.NewAmount(res.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid txout value: %w", err)
	}
	script, err := hex.DecodeString(res.ScriptPubKey.Hex)
	if err != nil {
		return nil, fmt.Errorf("invalid txout script: %w", err)
	}

	return &ports.TxOutInfo{
		TxOut:         wire.TxOut{Value: int64(amount), PkScript: script},
		Confirmations: res.Confirmations,
		IsCoinbase:    res.Coinbase,
	}, nil
}

func (s *service) GetRawTransaction(
	ctx context.Context, txid chainhash.Hash,
) (*wire.MsgTx, error) {
	if tx, ok := s.txCache.Get(txid); ok {
		return tx, nil
	}

	tx, err := call(ctx, func() (*btcutil.Tx, error) {
		return s.client.GetRawTransaction(&txid)
	})
	if err != nil {
		return nil, err
	}

	s.txCache.Add(txid, tx.MsgTx())
	return tx.MsgTx(), nil
}

func (s *service) SendRawTransaction(
	ctx context.Context, tx *wire.MsgTx,
) (*chainhash.Hash, error) {
	txid, err := call(ctx, func() (*chainhash.Hash, error) {
		return s.client.SendRawTransaction(tx, false)
	})
	if err != nil {
		return nil, err
	}
	s.txCache.Add(*txid, tx)
	return txid, nil
}

func (s *service) EstimateFeeRate(
	ctx context.Context, confTarget int64,
) (common.FeeRate, error) {
	mode := btcjson.EstimateModeConservative
	res, err := call(ctx, func() (*btcjson.EstimateSmartFeeResult, error) {
		return s.client.EstimateSmartFee(confTarget, &mode)
	})
	if err != nil {
		return 0, err
	}
	if res.FeeRate == nil {
		return 0, fmt.Errorf(
			"fee estimation unavailable: %s", strings.Join(res.Errors, ", "),
		)
	}

	feeRate, err := btcutil.NewAmount(*res.FeeRate)
	if err != nil {
		return 0, fmt.Errorf("invalid fee rate: %w", err)
	}
	return chainfee.SatPerKVByte(feeRate), nil
}

func (s *service) Close() {
	s.client.Shutdown()
	log.Debug("closed connection with bitcoind")
}

// call runs the blocking rpc call and gives up as soon as the context is
// done. The rpc itself is left to complete in background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
