package grpcclient

import (
	"context"
	"fmt"
	"strings"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type grpcClient struct {
	conn *grpc.ClientConn
	svc  coordinatorv1.CoordinatorServiceClient
}

func NewClient(coordinatorUrl string) (client.TransportClient, error) {
	if len(coordinatorUrl) <= 0 {
		return nil, fmt.Errorf("missing coordinator url")
	}

	creds := insecure.NewCredentials()
	port := 80
	if strings.HasPrefix(coordinatorUrl, "https://") {
		coordinatorUrl = strings.TrimPrefix(coordinatorUrl, "https://")
		creds = credentials.NewTLS(nil)
		port = 443
	}
	coordinatorUrl = strings.TrimPrefix(coordinatorUrl, "http://")
	if !strings.Contains(coordinatorUrl, ":") {
		coordinatorUrl = fmt.Sprintf("%s:%d", coordinatorUrl, port)
	}
	conn, err := grpc.NewClient(coordinatorUrl, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, err
	}

	return NewClientWithConn(conn), nil
}

// NewClientWithConn wraps an already established connection, the client
// owns it from then on.
func NewClientWithConn(conn *grpc.ClientConn) client.TransportClient {
	return &grpcClient{conn, coordinatorv1.NewCoordinatorServiceClient(conn)}
}

func (c *grpcClient) Close() {
	//nolint:all
	c.conn.Close()
}

func (c *grpcClient) RegisterInput(
	ctx context.Context, roundId string, outpoint wire.OutPoint,
	proof common.OwnershipProof, zeroAmount, zeroVsize credential.Request,
) (*client.InputRegistration, error) {
	resp, err := c.svc.RegisterInput(ctx, &coordinatorv1.RegisterInputRequest{
		RoundId: roundId,
		Outpoint: coordinatorv1.Outpoint{
			Txid: outpoint.Hash.String(),
			Vout: outpoint.Index,
		},
		OwnershipProof:        proof,
		ZeroAmountCredentials: zeroAmount,
		ZeroVsizeCredentials:  zeroVsize,
	})
	if err != nil {
		return nil, parseError(err)
	}
	return &client.InputRegistration{
		AliceId:                     resp.AliceId,
		AmountCredentials:           resp.AmountCredentials,
		VsizeCredentials:            resp.VsizeCredentials,
		IsPayingZeroCoordinationFee: resp.IsPayingZeroCoordinationFee,
	}, nil
}

func (c *grpcClient) RemoveInput(ctx context.Context, roundId, aliceId string) error {
	_, err := c.svc.RemoveInput(ctx, &coordinatorv1.RemoveInputRequest{
		RoundId: roundId,
		AliceId: aliceId,
	})
	return parseError(err)
}

func (c *grpcClient) ConfirmConnection(
	ctx context.Context, req client.ConnectionConfirmation,
) (*client.ConnectionConfirmationResult, error) {
	resp, err := c.svc.ConfirmConnection(ctx, &coordinatorv1.ConfirmConnectionRequest{
		RoundId:               req.RoundId,
		AliceId:               req.AliceId,
		ZeroAmountCredentials: req.ZeroAmountCredentials,
		RealAmountCredentials: req.RealAmountCredentials,
		ZeroVsizeCredentials:  req.ZeroVsizeCredentials,
		RealVsizeCredentials:  req.RealVsizeCredentials,
	})
	if err != nil {
		return nil, parseError(err)
	}
	return &client.ConnectionConfirmationResult{
		ZeroAmountCredentials: resp.ZeroAmountCredentials,
		RealAmountCredentials: resp.RealAmountCredentials,
		ZeroVsizeCredentials:  resp.ZeroVsizeCredentials,
		RealVsizeCredentials:  resp.RealVsizeCredentials,
	}, nil
}

func (c *grpcClient) ReadyToSign(ctx context.Context, roundId, aliceId string) error {
	_, err := c.svc.ReadyToSign(ctx, &coordinatorv1.ReadyToSignRequest{
		RoundId: roundId,
		AliceId: aliceId,
	})
	return parseError(err)
}

func (c *grpcClient) RegisterOutput(
	ctx context.Context, roundId string, script []byte,
	amount, vsize credential.Request,
) (*client.OutputRegistrationResult, error) {
	resp, err := c.svc.RegisterOutput(ctx, &coordinatorv1.RegisterOutputRequest{
		RoundId:           roundId,
		Script:            script,
		AmountCredentials: amount,
		VsizeCredentials:  vsize,
	})
	if err != nil {
		return nil, parseError(err)
	}
	return &client.OutputRegistrationResult{
		AmountCredentials: resp.AmountCredentials,
		VsizeCredentials:  resp.VsizeCredentials,
	}, nil
}

func (c *grpcClient) ReissueCredentials(
	ctx context.Context, req client.Reissuance,
) (*client.ReissuanceResult, error) {
	resp, err := c.svc.ReissueCredentials(ctx, &coordinatorv1.ReissueCredentialsRequest{
		RoundId:               req.RoundId,
		RealAmountCredentials: req.RealAmountCredentials,
		RealVsizeCredentials:  req.RealVsizeCredentials,
		ZeroAmountCredentials: req.ZeroAmountCredentials,
		ZeroVsizeCredentials:  req.ZeroVsizeCredentials,
	})
	if err != nil {
		return nil, parseError(err)
	}
	return &client.ReissuanceResult{
		RealAmountCredentials: resp.RealAmountCredentials,
		RealVsizeCredentials:  resp.RealVsizeCredentials,
		ZeroAmountCredentials: resp.ZeroAmountCredentials,
		ZeroVsizeCredentials:  resp.ZeroVsizeCredentials,
	}, nil
}

func (c *grpcClient) SignTransaction(
	ctx context.Context, roundId string, inputIndex int, witness wire.TxWitness,
) error {
	_, err := c.svc.SignTransaction(ctx, &coordinatorv1.SignTransactionRequest{
		RoundId:    roundId,
		InputIndex: inputIndex,
		Witness:    witness,
	})
	return parseError(err)
}

func (c *grpcClient) GetStatus(
	ctx context.Context, checkpoints map[string]int,
) ([]client.RoundState, error) {
	req := &coordinatorv1.GetStatusRequest{
		Checkpoints: make([]coordinatorv1.RoundCheckpoint, 0, len(checkpoints)),
	}
	for roundId, version := range checkpoints {
		req.Checkpoints = append(req.Checkpoints, coordinatorv1.RoundCheckpoint{
			RoundId: roundId,
			Version: version,
		})
	}
	resp, err := c.svc.GetStatus(ctx, req)
	if err != nil {
		return nil, parseError(err)
	}
	return roundStateList(resp.Rounds).toRoundStates()
}

// parseError turns the status errors carrying a protocol error code back
// into client.ProtocolError.
func parseError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if protocolErr, ok := client.ParseProtocolError(st.Message()); ok {
		return protocolErr
	}
	return err
}
