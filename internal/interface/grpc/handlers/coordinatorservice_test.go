package handlers_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/internal/core/application"
	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/interface/grpc/handlers"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const roundId = "round-1"

func TestHandler(t *testing.T) {
	t.Run("register input", func(t *testing.T) {
		appSvc := &mockedAppService{}
		client := newTestClient(t, appSvc)

		txid := chainhash.DoubleHashH([]byte("prev"))
		outpoint := wire.OutPoint{Hash: txid, Index: 1}
		amountResp := &credential.Response{
			Issued: []credential.Credential{{Type: credential.AmountType, Value: 0}},
		}

		appSvc.On(
			"RegisterInput", mock.Anything,
			mock.MatchedBy(func(req application.InputRegistrationRequest) bool {
				return req.RoundId == roundId && req.Outpoint == outpoint
			}),
		).Return(&application.InputRegistrationResponse{
			AliceId:                     "alice-1",
			AmountCredentials:           amountResp,
			VsizeCredentials:            &credential.Response{},
			IsPayingZeroCoordinationFee: true,
		}, nil)

		resp, err := client.RegisterInput(context.Background(), &coordinatorv1.RegisterInputRequest{
			RoundId:  roundId,
			Outpoint: coordinatorv1.Outpoint{Txid: txid.String(), Vout: 1},
		})
		require.NoError(t, err)
		require.Equal(t, "alice-1", resp.AliceId)
		require.True(t, resp.IsPayingZeroCoordinationFee)
		require.Equal(t, amountResp.Issued, resp.AmountCredentials.Issued)
		appSvc.AssertExpectations(t)
	})

	t.Run("invalid requests", func(t *testing.T) {
		appSvc := &mockedAppService{}
		client := newTestClient(t, appSvc)
		ctx := context.Background()

		_, err := client.RegisterInput(ctx, &coordinatorv1.RegisterInputRequest{
			Outpoint: coordinatorv1.Outpoint{Txid: chainhash.Hash{}.String()},
		})
		requireStatus(t, err, codes.InvalidArgument)

		_, err = client.RegisterInput(ctx, &coordinatorv1.RegisterInputRequest{
			RoundId:  roundId,
			Outpoint: coordinatorv1.Outpoint{Txid: "not a txid"},
		})
		requireStatus(t, err, codes.InvalidArgument)

		_, err = client.RemoveInput(ctx, &coordinatorv1.RemoveInputRequest{RoundId: roundId})
		requireStatus(t, err, codes.InvalidArgument)

		_, err = client.SignTransaction(ctx, &coordinatorv1.SignTransactionRequest{
			RoundId: roundId,
		})
		requireStatus(t, err, codes.InvalidArgument)

		_, err = client.RegisterOutput(ctx, &coordinatorv1.RegisterOutputRequest{
			RoundId: roundId,
		})
		requireStatus(t, err, codes.InvalidArgument)

		appSvc.AssertNotCalled(t, "RegisterInput", mock.Anything, mock.Anything)
	})

	t.Run("sign transaction", func(t *testing.T) {
		appSvc := &mockedAppService{}
		client := newTestClient(t, appSvc)

		witness := wire.TxWitness{[]byte{0x01}, []byte{0x02, 0x03}}
		appSvc.On("SignTransaction", mock.Anything, roundId, 2, witness).Return(nil)

		_, err := client.SignTransaction(context.Background(), &coordinatorv1.SignTransactionRequest{
			RoundId:    roundId,
			InputIndex: 2,
			Witness:    witness,
		})
		require.NoError(t, err)
		appSvc.AssertExpectations(t)
	})

	t.Run("get status", func(t *testing.T) {
		appSvc := &mockedAppService{}
		client := newTestClient(t, appSvc)

		deadline := time.Now().Add(time.Minute).Truncate(time.Second)
		appSvc.On("GetStatus", mock.Anything, map[string]int{roundId: 3}).Return(
			[]application.RoundState{
				{
					Id:            "round-2",
					Version:       1,
					Phase:         domain.ConnectionConfirmation,
					EndRoundState: domain.NotEnded,
					Parameters: domain.RoundParameters{
						Network:                  &chaincfg.RegressionNetParams,
						FeeRate:                  2000,
						MinInputCount:            2,
						InputRegistrationTimeout: time.Minute,
					},
					InputRegistrationEnd: deadline,
					PhaseDeadline:        deadline,
					InputAmounts:         []int64{100_000, 200_000},
				},
			}, nil,
		)

		resp, err := client.GetStatus(context.Background(), &coordinatorv1.GetStatusRequest{
			Checkpoints: []coordinatorv1.RoundCheckpoint{{RoundId: roundId, Version: 3}},
		})
		require.NoError(t, err)
		require.Len(t, resp.Rounds, 1)

		round := resp.Rounds[0]
		require.Equal(t, "round-2", round.Id)
		require.Equal(t, coordinatorv1.PhaseConnectionConfirmation, round.Phase)
		require.Equal(t, coordinatorv1.EndStateNotEnded, round.EndRoundState)
		require.Equal(t, deadline.Unix(), round.PhaseDeadline)
		require.Equal(t, []int64{100_000, 200_000}, round.InputAmounts)
		require.Equal(t, "regtest", round.Parameters.Network)
		require.Equal(t, int64(2000), round.Parameters.FeeRate)
		require.Equal(t, int64(60), round.Parameters.InputRegistrationTimeout)
		require.Empty(t, round.UnsignedTx)
	})
}

func TestProtocolErrorStatus(t *testing.T) {
	fixtures := []struct {
		err  error
		code codes.Code
	}{
		{domain.NewProtocolError(domain.ErrWrongPhase, "round in %s", domain.Ended), codes.FailedPrecondition},
		{domain.NewProtocolError(domain.ErrRoundNotFound, ""), codes.NotFound},
		{domain.NewProtocolError(domain.ErrAliceNotFound, ""), codes.NotFound},
		{domain.NewProtocolError(domain.ErrTooManyInputs, ""), codes.ResourceExhausted},
		{domain.NewProtocolError(domain.ErrVsizeQuotaExceeded, ""), codes.ResourceExhausted},
		{domain.NewProtocolError(domain.ErrCredentialCheating, "double spend"), codes.PermissionDenied},
		{domain.NewProtocolError(domain.ErrWrongOwnershipProof, ""), codes.PermissionDenied},
		{domain.NewProtocolError(domain.ErrInputBanned, ""), codes.PermissionDenied},
		{domain.NewProtocolError(domain.ErrDustOutput, ""), codes.InvalidArgument},
		{fmt.Errorf("wrapped: %w", domain.NewProtocolError(domain.ErrWrongPhase, "")), codes.FailedPrecondition},
		{fmt.Errorf("db is down"), codes.Internal},
	}

	for _, f := range fixtures {
		t.Run(f.err.Error(), func(t *testing.T) {
			appSvc := &mockedAppService{}
			client := newTestClient(t, appSvc)
			appSvc.On("ReadyToSign", mock.Anything, roundId, "alice").Return(f.err)

			_, err := client.ReadyToSign(context.Background(), &coordinatorv1.ReadyToSignRequest{
				RoundId: roundId,
				AliceId: "alice",
			})
			st := requireStatus(t, err, f.code)

			var protocolErr *domain.ProtocolError
			if f.code != codes.Internal {
				parsed, ok := domain.ParseProtocolError(st.Message())
				require.True(t, ok)
				require.ErrorAs(t, f.err, &protocolErr)
				require.Equal(t, protocolErr.Code, parsed.Code)
			}
		})
	}
}

func TestWireErrorCodes(t *testing.T) {
	fixtures := map[string]domain.ErrorCode{
		coordinatorv1.ErrCodeAliceNotFound:           domain.ErrAliceNotFound,
		coordinatorv1.ErrCodeAlreadyRegisteredScript: domain.ErrAlreadyRegisteredScript,
		coordinatorv1.ErrCodeInputBanned:             domain.ErrInputBanned,
		coordinatorv1.ErrCodeInputNotWhitelisted:     domain.ErrInputNotWhitelisted,
		coordinatorv1.ErrCodeRoundNotFound:           domain.ErrRoundNotFound,
		coordinatorv1.ErrCodeWrongPhase:              domain.ErrWrongPhase,
	}
	for name, code := range fixtures {
		require.Equal(t, code.String(), name)
	}

	phases := map[string]domain.Phase{
		coordinatorv1.PhaseInputRegistration:      domain.InputRegistration,
		coordinatorv1.PhaseConnectionConfirmation: domain.ConnectionConfirmation,
		coordinatorv1.PhaseOutputRegistration:     domain.OutputRegistration,
		coordinatorv1.PhaseTransactionSigning:     domain.TransactionSigning,
		coordinatorv1.PhaseEnded:                  domain.Ended,
	}
	for name, phase := range phases {
		require.Equal(t, phase.String(), name)
	}
}

func newTestClient(
	t *testing.T, appSvc application.Service,
) coordinatorv1.CoordinatorServiceClient {
	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	coordinatorv1.RegisterCoordinatorServiceServer(server, handlers.NewHandler(appSvc))
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
	t.Cleanup(func() {
		// nolint:all
		conn.Close()
	})
	return coordinatorv1.NewCoordinatorServiceClient(conn)
}

func requireStatus(t *testing.T, err error, code codes.Code) *status.Status {
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, code, st.Code(), st.Message())
	return st
}
