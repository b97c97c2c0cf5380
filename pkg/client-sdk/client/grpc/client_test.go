package grpcclient_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"testing"
	"time"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	grpcclient "github.com/ark-network/wabisabi/pkg/client-sdk/client/grpc"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeServer struct {
	coordinatorv1.UnimplementedCoordinatorServiceServer

	registerErr error
	rounds      []coordinatorv1.RoundState
	checkpoints []coordinatorv1.RoundCheckpoint
	witness     [][]byte
}

func (s *fakeServer) RegisterInput(
	_ context.Context, req *coordinatorv1.RegisterInputRequest,
) (*coordinatorv1.RegisterInputResponse, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &coordinatorv1.RegisterInputResponse{
		AliceId:                     req.Outpoint.Txid,
		IsPayingZeroCoordinationFee: req.Outpoint.Vout == 0,
	}, nil
}

func (s *fakeServer) SignTransaction(
	_ context.Context, req *coordinatorv1.SignTransactionRequest,
) (*coordinatorv1.SignTransactionResponse, error) {
	s.witness = req.Witness
	return &coordinatorv1.SignTransactionResponse{}, nil
}

func (s *fakeServer) GetStatus(
	_ context.Context, req *coordinatorv1.GetStatusRequest,
) (*coordinatorv1.GetStatusResponse, error) {
	s.checkpoints = req.Checkpoints
	return &coordinatorv1.GetStatusResponse{Rounds: s.rounds}, nil
}

func newTestClient(t *testing.T, srv *fakeServer) client.TransportClient {
	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	coordinatorv1.RegisterCoordinatorServiceServer(server, srv)
	// nolint:all
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := grpcclient.NewClientWithConn(conn)
	t.Cleanup(c.Close)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := grpcclient.NewClient("")
	require.Error(t, err)

	for _, url := range []string{
		"localhost:6060", "http://localhost:6060", "https://coordinator.example.com",
	} {
		c, err := grpcclient.NewClient(url)
		require.NoError(t, err)
		c.Close()
	}
}

func TestRegisterInput(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv)
	hash := chainhash.DoubleHashH([]byte("coin"))
	zero := credential.Request{Requested: make([]int64, credential.K)}

	resp, err := c.RegisterInput(
		context.Background(), "round", *wire.NewOutPoint(&hash, 0),
		common.OwnershipProof{Signature: []byte{0x01}}, zero, zero,
	)
	require.NoError(t, err)
	require.Equal(t, hash.String(), resp.AliceId)
	require.True(t, resp.IsPayingZeroCoordinationFee)

	t.Run("protocol errors", func(t *testing.T) {
		srv.registerErr = status.Error(
			codes.PermissionDenied, coordinatorv1.ErrCodeInputBanned+": banned until tomorrow",
		)
		_, err := c.RegisterInput(
			context.Background(), "round", *wire.NewOutPoint(&hash, 0),
			common.OwnershipProof{}, zero, zero,
		)
		require.True(t, client.IsProtocolError(err, coordinatorv1.ErrCodeInputBanned))

		var protocolErr *client.ProtocolError
		require.ErrorAs(t, err, &protocolErr)
		require.Equal(t, "banned until tomorrow", protocolErr.Msg)
	})

	t.Run("other errors", func(t *testing.T) {
		srv.registerErr = status.Error(codes.Internal, "something went wrong")
		_, err := c.RegisterInput(
			context.Background(), "round", *wire.NewOutPoint(&hash, 0),
			common.OwnershipProof{}, zero, zero,
		)
		require.Error(t, err)
		require.False(t, client.IsProtocolError(err, coordinatorv1.ErrCodeInputBanned))
		st, ok := status.FromError(err)
		require.True(t, ok)
		require.Equal(t, codes.Internal, st.Code())
	})
}

func TestSignTransaction(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv)

	witness := wire.TxWitness{[]byte{0x01, 0x02}, []byte{0x03}}
	err := c.SignTransaction(context.Background(), "round", 1, witness)
	require.NoError(t, err)
	require.Equal(t, [][]byte(witness), srv.witness)
}

func TestGetStatus(t *testing.T) {
	prevHash := chainhash.DoubleHashH([]byte("prev"))
	prevout := wire.NewTxOut(100_000, []byte{0x00, 0x14})
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 3), nil, nil))
	tx.AddTxOut(wire.NewTxOut(90_000, []byte{0x51}))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	now := time.Now().Truncate(time.Second)
	round := coordinatorv1.RoundState{
		Id:      "round",
		Version: 4,
		Phase:   coordinatorv1.PhaseTransactionSigning,
		Parameters: coordinatorv1.RoundParameters{
			Network:                    chaincfg.RegressionNetParams.Name,
			FeeRate:                    2000,
			CoordinationFeeRate:        3000,
			PlebsDontPayThreshold:      1_000_000,
			MinAmount:                  5000,
			MaxAmount:                  1_000_000_000,
			MaxVsizeAllocationPerAlice: 255,
			InputRegistrationTimeout:   60,
			TransactionSigningTimeout:  120,
		},
		InputRegistrationEnd: now.Unix(),
		PhaseDeadline:        now.Add(time.Minute).Unix(),
		InputAmounts:         []int64{100_000},
		UnsignedTx:           hex.EncodeToString(buf.Bytes()),
		Prevouts:             []coordinatorv1.TxOut{{Value: prevout.Value, Script: prevout.PkScript}},
	}

	srv := &fakeServer{rounds: []coordinatorv1.RoundState{round}}
	c := newTestClient(t, srv)

	states, err := c.GetStatus(context.Background(), map[string]int{"round": 3})
	require.NoError(t, err)
	require.Equal(t, []coordinatorv1.RoundCheckpoint{{RoundId: "round", Version: 3}}, srv.checkpoints)
	require.Len(t, states, 1)

	state := states[0]
	require.Equal(t, "round", state.Id)
	require.Equal(t, 4, state.Version)
	require.Equal(t, client.PhaseTransactionSigning, state.Phase)
	require.False(t, state.IsBlameRound())
	require.False(t, state.WasTransactionBroadcast())
	require.Equal(t, &chaincfg.RegressionNetParams, state.Parameters.Network)
	require.Equal(t, common.FeeRate(2000), state.Parameters.FeeRate)
	require.Equal(t, int64(3000), state.Parameters.CoordinationFeeRate.PartsPerMillion)
	require.Equal(t, time.Minute, state.Parameters.InputRegistrationTimeout)
	require.Equal(t, 2*time.Minute, state.Parameters.TransactionSigningTimeout)
	require.True(t, now.Equal(state.InputRegistrationEnd))
	require.Equal(t, tx.TxHash(), state.UnsignedTx.TxHash())

	prevouts := state.PrevoutsByOutpoint()
	require.Len(t, prevouts, 1)
	require.Equal(t, prevout, prevouts[*wire.NewOutPoint(&prevHash, 3)])

	t.Run("invalid round state", func(t *testing.T) {
		invalid := round
		invalid.Parameters.Network = "unknown"
		srv.rounds = []coordinatorv1.RoundState{invalid}
		_, err := c.GetStatus(context.Background(), nil)
		require.Error(t, err)

		invalid = round
		invalid.UnsignedTx = "not hex"
		srv.rounds = []coordinatorv1.RoundState{invalid}
		_, err = c.GetStatus(context.Background(), nil)
		require.Error(t, err)
	})
}
