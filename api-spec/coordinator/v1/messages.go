package coordinatorv1

import (
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
)

// Round phases and end states as carried by RoundState.
const (
	PhaseInputRegistration      = "INPUT_REGISTRATION"
	PhaseConnectionConfirmation = "CONNECTION_CONFIRMATION"
	PhaseOutputRegistration     = "OUTPUT_REGISTRATION"
	PhaseTransactionSigning     = "TRANSACTION_SIGNING"
	PhaseEnded                  = "ENDED"

	EndStateNotEnded                     = "NOT_ENDED"
	EndStateTransactionBroadcasted       = "TRANSACTION_BROADCASTED"
	EndStateTransactionBroadcastFailed   = "TRANSACTION_BROADCAST_FAILED"
	EndStateAbortedNotEnoughAlices       = "ABORTED_NOT_ENOUGH_ALICES"
	EndStateAbortedNotEnoughAlicesSigned = "ABORTED_NOT_ENOUGH_ALICES_SIGNED"
	EndStateAbortedWithError             = "ABORTED_WITH_ERROR"
)

type Outpoint struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

type RegisterInputRequest struct {
	RoundId               string                `json:"round_id"`
	Outpoint              Outpoint              `json:"outpoint"`
	OwnershipProof        common.OwnershipProof `json:"ownership_proof"`
	ZeroAmountCredentials credential.Request    `json:"zero_amount_credentials"`
	ZeroVsizeCredentials  credential.Request    `json:"zero_vsize_credentials"`
}

type RegisterInputResponse struct {
	AliceId                     string               `json:"alice_id"`
	AmountCredentials           *credential.Response `json:"amount_credentials"`
	VsizeCredentials            *credential.Response `json:"vsize_credentials"`
	IsPayingZeroCoordinationFee bool                 `json:"is_paying_zero_coordination_fee"`
}

type RemoveInputRequest struct {
	RoundId string `json:"round_id"`
	AliceId string `json:"alice_id"`
}

type RemoveInputResponse struct{}

type ConfirmConnectionRequest struct {
	RoundId               string             `json:"round_id"`
	AliceId               string             `json:"alice_id"`
	ZeroAmountCredentials credential.Request `json:"zero_amount_credentials"`
	RealAmountCredentials credential.Request `json:"real_amount_credentials"`
	ZeroVsizeCredentials  credential.Request `json:"zero_vsize_credentials"`
	RealVsizeCredentials  credential.Request `json:"real_vsize_credentials"`
}

// ConfirmConnectionResponse carries real credentials only once the round
// is in connection confirmation.
type ConfirmConnectionResponse struct {
	ZeroAmountCredentials *credential.Response `json:"zero_amount_credentials"`
	RealAmountCredentials *credential.Response `json:"real_amount_credentials,omitempty"`
	ZeroVsizeCredentials  *credential.Response `json:"zero_vsize_credentials"`
	RealVsizeCredentials  *credential.Response `json:"real_vsize_credentials,omitempty"`
}

type ReadyToSignRequest struct {
	RoundId string `json:"round_id"`
	AliceId string `json:"alice_id"`
}

type ReadyToSignResponse struct{}

type RegisterOutputRequest struct {
	RoundId           string             `json:"round_id"`
	Script            []byte             `json:"script"`
	AmountCredentials credential.Request `json:"amount_credentials"`
	VsizeCredentials  credential.Request `json:"vsize_credentials"`
}

type RegisterOutputResponse struct {
	AmountCredentials *credential.Response `json:"amount_credentials"`
	VsizeCredentials  *credential.Response `json:"vsize_credentials"`
}

type ReissueCredentialsRequest struct {
	RoundId               string             `json:"round_id"`
	RealAmountCredentials credential.Request `json:"real_amount_credentials"`
	RealVsizeCredentials  credential.Request `json:"real_vsize_credentials"`
	ZeroAmountCredentials credential.Request `json:"zero_amount_credentials"`
	ZeroVsizeCredentials  credential.Request `json:"zero_vsize_credentials"`
}

type ReissueCredentialsResponse struct {
	RealAmountCredentials *credential.Response `json:"real_amount_credentials"`
	RealVsizeCredentials  *credential.Response `json:"real_vsize_credentials"`
	ZeroAmountCredentials *credential.Response `json:"zero_amount_credentials"`
	ZeroVsizeCredentials  *credential.Response `json:"zero_vsize_credentials"`
}

type SignTransactionRequest struct {
	RoundId    string   `json:"round_id"`
	InputIndex int      `json:"input_index"`
	Witness    [][]byte `json:"witness"`
}

type SignTransactionResponse struct{}

type RoundCheckpoint struct {
	RoundId string `json:"round_id"`
	Version int    `json:"version"`
}

type GetStatusRequest struct {
	Checkpoints []RoundCheckpoint `json:"checkpoints"`
}

type GetStatusResponse struct {
	Rounds []RoundState `json:"rounds"`
}

// RoundParameters mirrors the coordinator's round settings. Amounts are in
// sats, fee rates in sat/kvB, durations in seconds.
type RoundParameters struct {
	Network                       string `json:"network"`
	FeeRate                       int64  `json:"fee_rate"`
	CoordinationFeeRate           int64  `json:"coordination_fee_rate"`
	PlebsDontPayThreshold         int64  `json:"plebs_dont_pay_threshold"`
	MinInputCount                 int    `json:"min_input_count"`
	MaxInputCount                 int    `json:"max_input_count"`
	MinAmount                     int64  `json:"min_amount"`
	MaxAmount                     int64  `json:"max_amount"`
	MaxVsizeAllocationPerAlice    int64  `json:"max_vsize_allocation_per_alice"`
	InputRegistrationTimeout      int64  `json:"input_registration_timeout"`
	ConnectionConfirmationTimeout int64  `json:"connection_confirmation_timeout"`
	OutputRegistrationTimeout     int64  `json:"output_registration_timeout"`
	TransactionSigningTimeout     int64  `json:"transaction_signing_timeout"`
	CoordinatorScript             []byte `json:"coordinator_script,omitempty"`
}

// RoundState is the public view of a round. Timestamps are unix seconds,
// the unsigned tx is hex encoded and set from signing phase onward.
type RoundState struct {
	Id                   string                      `json:"id"`
	BlameOf              string                      `json:"blame_of,omitempty"`
	Version              int                         `json:"version"`
	Phase                string                      `json:"phase"`
	EndRoundState        string                      `json:"end_round_state"`
	Parameters           RoundParameters             `json:"parameters"`
	AmountIssuer         credential.IssuerParameters `json:"amount_issuer"`
	VsizeIssuer          credential.IssuerParameters `json:"vsize_issuer"`
	InputRegistrationEnd int64                       `json:"input_registration_end"`
	PhaseDeadline        int64                       `json:"phase_deadline"`
	InputAmounts         []int64                     `json:"input_amounts"`
	UnsignedTx           string                      `json:"unsigned_tx,omitempty"`
	Prevouts             []TxOut                     `json:"prevouts,omitempty"`
	Txid                 string                      `json:"txid,omitempty"`
}

type TxOut struct {
	Value  int64  `json:"value"`
	Script []byte `json:"script"`
}

// Error codes carried in the message of grpc status errors, formatted as
// "<code>: <reason>".
const (
	ErrCodeAliceNotFound           = "AliceNotFound"
	ErrCodeAlreadyRegisteredScript = "AlreadyRegisteredScript"
	ErrCodeInputBanned             = "InputBanned"
	ErrCodeInputNotWhitelisted     = "InputNotWhitelisted"
	ErrCodeRoundNotFound           = "RoundNotFound"
	ErrCodeWrongPhase              = "WrongPhase"
)
