package application

import (
	"context"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/wire"
)

type Service interface {
	Start() error
	Stop()
	RegisterInput(
		ctx context.Context, req InputRegistrationRequest,
	) (*InputRegistrationResponse, error)
	RemoveInput(ctx context.Context, roundId, aliceId string) error
	ConfirmConnection(
		ctx context.Context, req ConnectionConfirmationRequest,
	) (*ConnectionConfirmationResponse, error)
	ReadyToSign(ctx context.Context, roundId, aliceId string) error
	RegisterOutput(
		ctx context.Context, req OutputRegistrationRequest,
	) (*OutputRegistrationResponse, error)
	ReissueCredentials(
		ctx context.Context, req ReissueCredentialRequest,
	) (*ReissueCredentialResponse, error)
	SignTransaction(
		ctx context.Context, roundId string, inputIndex int, witness wire.TxWitness,
	) error
	// GetStatus returns the state of the rounds that changed since the given
	// checkpoints (round id -> version).
	GetStatus(ctx context.Context, checkpoints map[string]int) ([]RoundState, error)

	ListInmates(ctx context.Context) ([]domain.Inmate, error)
	ListWhitelist(ctx context.Context) ([]domain.WhitelistEntry, error)
}

type InputRegistrationRequest struct {
	RoundId               string
	Outpoint              wire.OutPoint
	OwnershipProof        common.OwnershipProof
	ZeroAmountCredentials credential.Request
	ZeroVsizeCredentials  credential.Request
}

type InputRegistrationResponse struct {
	AliceId                     string
	AmountCredentials           *credential.Response
	VsizeCredentials            *credential.Response
	IsPayingZeroCoordinationFee bool
}

type ConnectionConfirmationRequest struct {
	RoundId               string
	AliceId               string
	ZeroAmountCredentials credential.Request
	RealAmountCredentials credential.Request
	ZeroVsizeCredentials  credential.Request
	RealVsizeCredentials  credential.Request
}

// ConnectionConfirmationResponse carries real credentials only once the
// round reached the connection confirmation phase.
type ConnectionConfirmationResponse struct {
	ZeroAmountCredentials *credential.Response
	ZeroVsizeCredentials  *credential.Response
	RealAmountCredentials *credential.Response
	RealVsizeCredentials  *credential.Response
}

type OutputRegistrationRequest struct {
	RoundId           string
	Script            []byte
	AmountCredentials credential.Request
	VsizeCredentials  credential.Request
}

type OutputRegistrationResponse struct {
	AmountCredentials *credential.Response
	VsizeCredentials  *credential.Response
}

type ReissueCredentialRequest struct {
	RoundId               string
	RealAmountCredentials credential.Request
	RealVsizeCredentials  credential.Request
	ZeroAmountCredentials credential.Request
	ZeroVsizeCredentials  credential.Request
}

type ReissueCredentialResponse struct {
	RealAmountCredentials *credential.Response
	RealVsizeCredentials  *credential.Response
	ZeroAmountCredentials *credential.Response
	ZeroVsizeCredentials  *credential.Response
}

type RoundState struct {
	Id                   string
	BlameOf              string
	Version              int
	Phase                domain.Phase
	EndRoundState        domain.EndRoundState
	Parameters           domain.RoundParameters
	AmountIssuer         credential.IssuerParameters
	VsizeIssuer          credential.IssuerParameters
	InputRegistrationEnd time.Time
	PhaseDeadline        time.Time
	InputAmounts         []int64
	UnsignedTx           *wire.MsgTx
	// Prevouts are the outputs spent by the unsigned tx, in input order.
	Prevouts []*wire.TxOut
	Txid     string
}

func newRoundState(round *domain.Round) RoundState {
	amounts := make([]int64, 0, len(round.Alices))
	for _, alice := range round.Alices {
		amounts = append(amounts, alice.Coin.TxOut.Value)
	}
	var unsignedTx *wire.MsgTx
	var prevouts []*wire.TxOut
	if round.Signing != nil {
		unsignedTx = round.Signing.UnsignedTx()
		prevouts = make([]*wire.TxOut, 0, len(unsignedTx.TxIn))
		for i := range unsignedTx.TxIn {
			prevouts = append(prevouts, round.Signing.Prevout(i))
		}
	}
	return RoundState{
		Id:                   round.Id,
		BlameOf:              round.BlameOf,
		Version:              round.Version(),
		Phase:                round.Phase,
		EndRoundState:        round.EndRoundState,
		Parameters:           round.Parameters,
		AmountIssuer:         round.AmountIssuer.Parameters(),
		VsizeIssuer:          round.VsizeIssuer.Parameters(),
		InputRegistrationEnd: round.InputRegistrationEnd(),
		PhaseDeadline:        round.PhaseDeadline(),
		InputAmounts:         amounts,
		UnsignedTx:           unsignedTx,
		Prevouts:             prevouts,
		Txid:                 round.Txid,
	}
}
