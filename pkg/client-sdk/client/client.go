package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

const GrpcClient = "grpc"

type Phase string

const (
	PhaseInputRegistration      Phase = coordinatorv1.PhaseInputRegistration
	PhaseConnectionConfirmation Phase = coordinatorv1.PhaseConnectionConfirmation
	PhaseOutputRegistration     Phase = coordinatorv1.PhaseOutputRegistration
	PhaseTransactionSigning     Phase = coordinatorv1.PhaseTransactionSigning
	PhaseEnded                  Phase = coordinatorv1.PhaseEnded
)

// TransportClient is the client side of the coordinator api.
type TransportClient interface {
	RegisterInput(
		ctx context.Context, roundId string, outpoint wire.OutPoint,
		proof common.OwnershipProof, zeroAmount, zeroVsize credential.Request,
	) (*InputRegistration, error)
	RemoveInput(ctx context.Context, roundId, aliceId string) error
	ConfirmConnection(
		ctx context.Context, req ConnectionConfirmation,
	) (*ConnectionConfirmationResult, error)
	ReadyToSign(ctx context.Context, roundId, aliceId string) error
	RegisterOutput(
		ctx context.Context, roundId string, script []byte,
		amount, vsize credential.Request,
	) (*OutputRegistrationResult, error)
	ReissueCredentials(ctx context.Context, req Reissuance) (*ReissuanceResult, error)
	SignTransaction(
		ctx context.Context, roundId string, inputIndex int, witness wire.TxWitness,
	) error
	GetStatus(ctx context.Context, checkpoints map[string]int) ([]RoundState, error)
	Close()
}

type InputRegistration struct {
	AliceId                     string
	AmountCredentials           *credential.Response
	VsizeCredentials            *credential.Response
	IsPayingZeroCoordinationFee bool
}

type ConnectionConfirmation struct {
	RoundId               string
	AliceId               string
	ZeroAmountCredentials credential.Request
	RealAmountCredentials credential.Request
	ZeroVsizeCredentials  credential.Request
	RealVsizeCredentials  credential.Request
}

type ConnectionConfirmationResult struct {
	ZeroAmountCredentials *credential.Response
	RealAmountCredentials *credential.Response
	ZeroVsizeCredentials  *credential.Response
	RealVsizeCredentials  *credential.Response
}

type OutputRegistrationResult struct {
	AmountCredentials *credential.Response
	VsizeCredentials  *credential.Response
}

type Reissuance struct {
	RoundId               string
	RealAmountCredentials credential.Request
	RealVsizeCredentials  credential.Request
	ZeroAmountCredentials credential.Request
	ZeroVsizeCredentials  credential.Request
}

type ReissuanceResult struct {
	RealAmountCredentials *credential.Response
	RealVsizeCredentials  *credential.Response
	ZeroAmountCredentials *credential.Response
	ZeroVsizeCredentials  *credential.Response
}

type RoundParameters struct {
	Network                       *chaincfg.Params
	FeeRate                       common.FeeRate
	CoordinationFeeRate           common.CoordinationFeeRate
	MinInputCount                 int
	MaxInputCount                 int
	MinAmount                     btcutil.Amount
	MaxAmount                     btcutil.Amount
	MaxVsizeAllocationPerAlice    int64
	InputRegistrationTimeout      time.Duration
	ConnectionConfirmationTimeout time.Duration
	OutputRegistrationTimeout     time.Duration
	TransactionSigningTimeout     time.Duration
	CoordinatorScript             []byte
}

type RoundState struct {
	Id                   string
	BlameOf              string
	Version              int
	Phase                Phase
	EndRoundState        string
	Parameters           RoundParameters
	AmountIssuer         credential.IssuerParameters
	VsizeIssuer          credential.IssuerParameters
	InputRegistrationEnd time.Time
	PhaseDeadline        time.Time
	InputAmounts         []int64
	UnsignedTx           *wire.MsgTx
	Prevouts             []*wire.TxOut
	Txid                 string
}

func (r RoundState) IsBlameRound() bool {
	return len(r.BlameOf) > 0
}

func (r RoundState) WasTransactionBroadcast() bool {
	return r.EndRoundState == coordinatorv1.EndStateTransactionBroadcasted
}

// PrevoutsByOutpoint returns the outputs spent by the unsigned tx, it's nil
// before the signing phase.
func (r RoundState) PrevoutsByOutpoint() map[wire.OutPoint]*wire.TxOut {
	if r.UnsignedTx == nil || len(r.Prevouts) != len(r.UnsignedTx.TxIn) {
		return nil
	}
	prevouts := make(map[wire.OutPoint]*wire.TxOut, len(r.Prevouts))
	for i, in := range r.UnsignedTx.TxIn {
		prevouts[in.PreviousOutPoint] = r.Prevouts[i]
	}
	return prevouts
}

// ProtocolError is an error returned by the coordinator carrying one of
// its protocol error codes.
type ProtocolError struct {
	Code string
	Msg  string
}

func (e *ProtocolError) Error() string {
	if len(e.Msg) <= 0 {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// ParseProtocolError recovers the protocol error from the message of an
// error received from the coordinator, formatted as "<code>: <reason>".
func ParseProtocolError(msg string) (*ProtocolError, bool) {
	code, reason, _ := strings.Cut(msg, ": ")
	if !isErrorCode(code) {
		return nil, false
	}
	return &ProtocolError{code, reason}, true
}

func IsProtocolError(err error, code string) bool {
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr.Code == code
	}
	return false
}

func isErrorCode(s string) bool {
	if len(s) <= 0 || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
