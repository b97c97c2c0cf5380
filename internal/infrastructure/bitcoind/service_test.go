package bitcoind

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockedRpcClient struct {
	mock.Mock
}

func (m *mockedRpcClient) GetTxOut(
	txHash *chainhash.Hash, index uint32, mempool bool,
) (*btcjson.GetTxOutResult, error) {
	args := m.Called(*txHash, index, mempool)
	var res *btcjson.GetTxOutResult
	if a := args.Get(0); a != nil {
		res = a.(*btcjson.GetTxOutResult)
	}
	return res, args.Error(1)
}

func (m *mockedRpcClient) GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error) {
	args := m.Called(*txHash)
	var res *btcutil.Tx
	if a := args.Get(0); a != nil {
		res = a.(*btcutil.Tx)
	}
	return res, args.Error(1)
}

func (m *mockedRpcClient) SendRawTransaction(
	tx *wire.MsgTx, allowHighFees bool,
) (*chainhash.Hash, error) {
	args := m.Called(tx, allowHighFees)
	var res *chainhash.Hash
	if a := args.Get(0); a != nil {
		res = a.(*chainhash.Hash)
	}
	return res, args.Error(1)
}

func (m *mockedRpcClient) EstimateSmartFee(
	confTarget int64, mode *btcjson.EstimateSmartFeeMode,
) (*btcjson.EstimateSmartFeeResult, error) {
	args := m.Called(confTarget)
	var res *btcjson.EstimateSmartFeeResult
	if a := args.Get(0); a != nil {
		res = a.(*btcjson.EstimateSmartFeeResult)
	}
	return res, args.Error(1)
}

func (m *mockedRpcClient) Shutdown() {
	m.Called()
}

func TestGetTxOut(t *testing.T) {
	ctx := context.Background()
	client := &mockedRpcClient{}
	svc, err := newService(client, 10)
	require.NoError(t, err)

	spent := wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}
	unspent := wire.OutPoint{Hash: chainhash.Hash{2}, Index: 1}
	client.On("GetTxOut", spent.Hash, spent.Index, true).Return(nil, nil)
	client.On("GetTxOut", unspent.Hash, unspent.Index, true).Return(&btcjson.GetTxOutResult{
		Confirmations: 3,
		Value:         0.5,
		ScriptPubKey: btcjson.ScriptPubKeyResult{
			Hex: "0014751e76e8199196d454941c45d1b3a323f1433bd6",
		},
		Coinbase: true,
	}, nil)

	info, err := svc.GetTxOut(ctx, spent, true)
	require.NoError(t, err)
	require.Nil(t, info)

	info, err = svc.GetTxOut(ctx, unspent, true)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, int64(50_000_000), info.TxOut.Value)
	require.Len(t, info.TxOut.PkScript, 22)
	require.Equal(t, int64(3), info.Confirmations)
	require.True(t, info.IsCoinbase)
}

func TestTxCache(t *testing.T) {
	ctx := context.Background()
	client := &mockedRpcClient{}
	svc, err := newService(client, 2)
	require.NoError(t, err)

	txs := make([]*wire.MsgTx, 0, 3)
	for i := 0; i < 3; i++ {
		tx := wire.NewMsgTx(2)
		tx.AddTxOut(wire.NewTxOut(int64(1000+i), []byte{0x51}))
		txs = append(txs, tx)
		client.On("GetRawTransaction", tx.TxHash()).Return(btcutil.NewTx(tx), nil)
	}

	for i := 0; i < 2; i++ {
		for _, tx := range txs[:2] {
			got, err := svc.GetRawTransaction(ctx, tx.TxHash())
			require.NoError(t, err)
			require.Equal(t, tx.TxHash(), got.TxHash())
		}
	}
	client.AssertNumberOfCalls(t, "GetRawTransaction", 2)

	// Fetching a third tx evicts the least recently used one.
	_, err = svc.GetRawTransaction(ctx, txs[2].TxHash())
	require.NoError(t, err)
	_, err = svc.GetRawTransaction(ctx, txs[0].TxHash())
	require.NoError(t, err)
	client.AssertNumberOfCalls(t, "GetRawTransaction", 4)
}

func TestSendRawTransaction(t *testing.T) {
	ctx := context.Background()
	client := &mockedRpcClient{}
	svc, err := newService(client, 10)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	txid := tx.TxHash()
	client.On("SendRawTransaction", tx, false).Return(&txid, nil)

	got, err := svc.SendRawTransaction(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, txid, *got)

	// The broadcast tx is served from cache.
	cached, err := svc.GetRawTransaction(ctx, txid)
	require.NoError(t, err)
	require.Equal(t, tx, cached)
	client.AssertNotCalled(t, "GetRawTransaction", txid)
}

func TestEstimateFeeRate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		client := &mockedRpcClient{}
		svc, err := newService(client, 10)
		require.NoError(t, err)

		feeRate := 0.0002
		client.On("EstimateSmartFee", int64(2)).Return(
			&btcjson.EstimateSmartFeeResult{FeeRate: &feeRate}, nil,
		)

		got, err := svc.EstimateFeeRate(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, chainfee.SatPerKVByte(20_000), got)
	})

	t.Run("invalid", func(t *testing.T) {
		client := &mockedRpcClient{}
		svc, err := newService(client, 10)
		require.NoError(t, err)

		client.On("EstimateSmartFee", int64(2)).Return(
			&btcjson.EstimateSmartFeeResult{Errors: []string{"insufficient data"}}, nil,
		)

		_, err = svc.EstimateFeeRate(ctx, 2)
		require.ErrorContains(t, err, "insufficient data")
	})
}

func TestCallHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := call(ctx, func() (int, error) {
		time.Sleep(time.Second)
		return 1, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
