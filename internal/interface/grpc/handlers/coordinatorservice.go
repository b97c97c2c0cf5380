package handlers

import (
	"context"
	"errors"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/internal/core/application"
	"github.com/ark-network/wabisabi/internal/core/domain"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type handler struct {
	coordinatorv1.UnimplementedCoordinatorServiceServer

	svc application.Service
}

func NewHandler(service application.Service) coordinatorv1.CoordinatorServiceServer {
	return &handler{svc: service}
}

func (h *handler) RegisterInput(
	ctx context.Context, req *coordinatorv1.RegisterInputRequest,
) (*coordinatorv1.RegisterInputResponse, error) {
	roundId, err := parseRoundId(req.RoundId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	outpoint, err := parseOutpoint(req.Outpoint)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := h.svc.RegisterInput(ctx, application.InputRegistrationRequest{
		RoundId:               roundId,
		Outpoint:              outpoint,
		OwnershipProof:        req.OwnershipProof,
		ZeroAmountCredentials: req.ZeroAmountCredentials,
		ZeroVsizeCredentials:  req.ZeroVsizeCredentials,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return &coordinatorv1.RegisterInputResponse{
		AliceId:                     resp.AliceId,
		AmountCredentials:           resp.AmountCredentials,
		VsizeCredentials:            resp.VsizeCredentials,
		IsPayingZeroCoordinationFee: resp.IsPayingZeroCoordinationFee,
	}, nil
}

func (h *handler) RemoveInput(
	ctx context.Context, req *coordinatorv1.RemoveInputRequest,
) (*coordinatorv1.RemoveInputResponse, error) {
	roundId, err := parseRoundId(req.RoundId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	aliceId, err := parseAliceId(req.AliceId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := h.svc.RemoveInput(ctx, roundId, aliceId); err != nil {
		return nil, toStatusError(err)
	}
	return &coordinatorv1.RemoveInputResponse{}, nil
}

func (h *handler) ConfirmConnection(
	ctx context.Context, req *coordinatorv1.ConfirmConnectionRequest,
) (*coordinatorv1.ConfirmConnectionResponse, error) {
	roundId, err := parseRoundId(req.RoundId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	aliceId, err := parseAliceId(req.AliceId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := h.svc.ConfirmConnection(ctx, application.ConnectionConfirmationRequest{
		RoundId:               roundId,
		AliceId:               aliceId,
		ZeroAmountCredentials: req.ZeroAmountCredentials,
		RealAmountCredentials: req.RealAmountCredentials,
		ZeroVsizeCredentials:  req.ZeroVsizeCredentials,
		RealVsizeCredentials:  req.RealVsizeCredentials,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return &coordinatorv1.ConfirmConnectionResponse{
		ZeroAmountCredentials: resp.ZeroAmountCredentials,
		RealAmountCredentials: resp.RealAmountCredentials,
		ZeroVsizeCredentials:  resp.ZeroVsizeCredentials,
		RealVsizeCredentials:  resp.RealVsizeCredentials,
	}, nil
}

func (h *handler) ReadyToSign(
	ctx context.Context, req *coordinatorv1.ReadyToSignRequest,
) (*coordinatorv1.ReadyToSignResponse, error) {
	roundId, err := parseRoundId(req.RoundId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	aliceId, err := parseAliceId(req.AliceId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := h.svc.ReadyToSign(ctx, roundId, aliceId); err != nil {
		return nil, toStatusError(err)
	}
	return &coordinatorv1.ReadyToSignResponse{}, nil
}

func (h *handler) RegisterOutput(
	ctx context.Context, req *coordinatorv1.RegisterOutputRequest,
) (*coordinatorv1.RegisterOutputResponse, error) {
	roundId, err := parseRoundId(req.RoundId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if len(req.Script) <= 0 {
		return nil, status.Error(codes.InvalidArgument, "missing output script")
	}

	resp, err := h.svc.RegisterOutput(ctx, application.OutputRegistrationRequest{
		RoundId:           roundId,
		Script:            req.Script,
		AmountCredentials: req.AmountCredentials,
		VsizeCredentials:  req.VsizeCredentials,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return &coordinatorv1.RegisterOutputResponse{
		AmountCredentials: resp.AmountCredentials,
		VsizeCredentials:  resp.VsizeCredentials,
	}, nil
}

func (h *handler) ReissueCredentials(
	ctx context.Context, req *coordinatorv1.ReissueCredentialsRequest,
) (*coordinatorv1.ReissueCredentialsResponse, error) {
	roundId, err := parseRoundId(req.RoundId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := h.svc.ReissueCredentials(ctx, application.ReissueCredentialRequest{
		RoundId:               roundId,
		RealAmountCredentials: req.RealAmountCredentials,
		RealVsizeCredentials:  req.RealVsizeCredentials,
		ZeroAmountCredentials: req.ZeroAmountCredentials,
		ZeroVsizeCredentials:  req.ZeroVsizeCredentials,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return &coordinatorv1.ReissueCredentialsResponse{
		RealAmountCredentials: resp.RealAmountCredentials,
		RealVsizeCredentials:  resp.RealVsizeCredentials,
		ZeroAmountCredentials: resp.ZeroAmountCredentials,
		ZeroVsizeCredentials:  resp.ZeroVsizeCredentials,
	}, nil
}

func (h *handler) SignTransaction(
	ctx context.Context, req *coordinatorv1.SignTransactionRequest,
) (*coordinatorv1.SignTransactionResponse, error) {
	roundId, err := parseRoundId(req.RoundId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	witness, err := parseWitness(req.Witness)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.InputIndex < 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid input index")
	}

	if err := h.svc.SignTransaction(
		ctx, roundId, req.InputIndex, witness,
	); err != nil {
		return nil, toStatusError(err)
	}
	return &coordinatorv1.SignTransactionResponse{}, nil
}

func (h *handler) GetStatus(
	ctx context.Context, req *coordinatorv1.GetStatusRequest,
) (*coordinatorv1.GetStatusResponse, error) {
	checkpoints := make(map[string]int, len(req.Checkpoints))
	for _, c := range req.Checkpoints {
		checkpoints[c.RoundId] = c.Version
	}

	rounds, err := h.svc.GetStatus(ctx, checkpoints)
	if err != nil {
		return nil, toStatusError(err)
	}

	return &coordinatorv1.GetStatusResponse{
		Rounds: roundStateList(rounds).toProto(),
	}, nil
}

// toStatusError maps protocol errors to grpc status codes, the message keeps
// the "<code>: <reason>" format that clients parse back.
func toStatusError(err error) error {
	var protocolErr *domain.ProtocolError
	if !errors.As(err, &protocolErr) {
		log.WithError(err).Warn("internal error")
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(statusCode(protocolErr.Code), protocolErr.Error())
}

func statusCode(code domain.ErrorCode) codes.Code {
	if code.IsCheating() {
		return codes.PermissionDenied
	}
	switch code {
	case domain.ErrWrongPhase:
		return codes.FailedPrecondition
	case domain.ErrRoundNotFound, domain.ErrAliceNotFound:
		return codes.NotFound
	case domain.ErrTooManyInputs, domain.ErrVsizeQuotaExceeded:
		return codes.ResourceExhausted
	case domain.ErrInputBanned:
		return codes.PermissionDenied
	default:
		return codes.InvalidArgument
	}
}
