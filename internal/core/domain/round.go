package domain

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
)

type Round struct {
	Id                            string
	BlameOf                       string
	BlameWhitelist                map[wire.OutPoint]struct{}
	Parameters                    RoundParameters
	Phase                         Phase
	EndRoundState                 EndRoundState
	AmountIssuer                  *credential.Issuer
	VsizeIssuer                   *credential.Issuer
	Alices                        []*Alice
	Bobs                          []Bob
	Construction                  ConstructionState
	Signing                       *SigningState
	RemainingInputVsizeAllocation int64
	CreatedAt                     time.Time
	InputRegistrationTimeFrame    time.Duration
	PhaseStartedAt                time.Time
	Txid                          string
	EndedAt                       time.Time
	changes                       []RoundEvent
}

func NewRound(params RoundParameters) (*Round, error) {
	return newRound(params, "", nil, params.InputRegistrationTimeout)
}

// NewBlameRound restarts a failed round allowing only the given inputs.
func NewBlameRound(
	params RoundParameters, blameOf string, whitelist []wire.OutPoint,
	inputRegistrationTimeFrame time.Duration,
) (*Round, error) {
	if len(blameOf) <= 0 {
		return nil, fmt.Errorf("missing blamed round id")
	}
	return newRound(params, blameOf, whitelist, inputRegistrationTimeFrame)
}

func newRound(
	params RoundParameters, blameOf string, whitelist []wire.OutPoint,
	inputRegistrationTimeFrame time.Duration,
) (*Round, error) {
	id := uuid.New().String()

	amountIssuer, err := credential.NewIssuer(
		credential.AmountType, id, common.MaxAmountCredentialValue,
	)
	if err != nil {
		return nil, err
	}
	vsizeIssuer, err := credential.NewIssuer(
		credential.VsizeType, id, common.MaxVsizeCredentialValue,
	)
	if err != nil {
		return nil, err
	}

	blameWhitelist := make(map[wire.OutPoint]struct{}, len(whitelist))
	for _, op := range whitelist {
		blameWhitelist[op] = struct{}{}
	}

	r := &Round{
		Id:                            id,
		BlameWhitelist:                blameWhitelist,
		Parameters:                    params,
		AmountIssuer:                  amountIssuer,
		VsizeIssuer:                   vsizeIssuer,
		Alices:                        make([]*Alice, 0),
		Bobs:                          make([]Bob, 0),
		Construction:                  NewConstructionState(params),
		RemainingInputVsizeAllocation: params.InitialInputVsizeAllocation(),
		InputRegistrationTimeFrame:    inputRegistrationTimeFrame,
		changes:                       make([]RoundEvent, 0),
	}
	r.raise(RoundCreated{
		Id:        id,
		BlameOf:   blameOf,
		Timestamp: time.Now().UnixMilli(),
	})
	return r, nil
}

func (r *Round) Events() []RoundEvent {
	return r.changes
}

// Version is the number of events raised by the round, clients use it as
// a checkpoint when polling for updates.
func (r *Round) Version() int {
	return len(r.changes)
}

func (r *Round) On(event RoundEvent) {
	switch e := event.(type) {
	case RoundCreated:
		r.Phase = InputRegistration
		r.BlameOf = e.BlameOf
		r.CreatedAt = time.UnixMilli(e.Timestamp)
		r.PhaseStartedAt = r.CreatedAt
	case InputRegistrationExtended:
		r.InputRegistrationTimeFrame += time.Duration(e.TimeFrame)
	case AliceRegistered:
		r.Alices = append(r.Alices, e.Alice)
		r.RemainingInputVsizeAllocation -= r.Parameters.MaxVsizeAllocationPerAlice
	case AliceRemoved:
		for i, alice := range r.Alices {
			if alice.Id == e.AliceId {
				r.Alices = append(r.Alices[:i:i], r.Alices[i+1:]...)
				r.RemainingInputVsizeAllocation += r.Parameters.MaxVsizeAllocationPerAlice
				break
			}
		}
	case ConnectionConfirmed:
		if alice, _ := r.GetAlice(e.AliceId); alice != nil {
			alice.ConfirmedConnection = true
			r.Construction = r.Construction.withInput(alice.Coin)
		}
	case OutputRegistered:
		r.Bobs = append(r.Bobs, e.Bob)
		r.Construction = r.Construction.withOutput(e.Bob.TxOut(r.Parameters.FeeRate))
	case AliceReadyToSign:
		if alice, _ := r.GetAlice(e.AliceId); alice != nil {
			alice.ReadyToSign = true
		}
	case PhaseChanged:
		r.Phase = e.Phase
		r.PhaseStartedAt = time.UnixMilli(e.Timestamp)
	case SigningStarted:
		r.Signing = e.Signing
		r.Txid = e.Txid
	case RoundEnded:
		r.Phase = Ended
		r.EndRoundState = e.State
		r.EndedAt = time.UnixMilli(e.Timestamp)
		if len(e.Txid) > 0 {
			r.Txid = e.Txid
		}
	}
}

func (r *Round) IsBlameRound() bool {
	return len(r.BlameOf) > 0
}

func (r *Round) IsEnded() bool {
	return r.Phase == Ended
}

func (r *Round) WasTransactionBroadcast() bool {
	return r.EndRoundState == TransactionBroadcasted
}

func (r *Round) InputRegistrationEnd() time.Time {
	return r.CreatedAt.Add(r.InputRegistrationTimeFrame)
}

func (r *Round) IsInputRegistrationEnded(now time.Time) bool {
	return r.Phase > InputRegistration ||
		len(r.Alices) >= r.Parameters.MaxInputCount ||
		!now.Before(r.InputRegistrationEnd())
}

// PhaseDeadline is when the current phase times out.
func (r *Round) PhaseDeadline() time.Time {
	switch r.Phase {
	case InputRegistration:
		return r.InputRegistrationEnd()
	case ConnectionConfirmation:
		return r.PhaseStartedAt.Add(r.Parameters.ConnectionConfirmationTimeout)
	case OutputRegistration:
		return r.PhaseStartedAt.Add(r.Parameters.OutputRegistrationTimeout)
	case TransactionSigning:
		return r.PhaseStartedAt.Add(r.Parameters.TransactionSigningTimeout)
	default:
		return r.EndedAt
	}
}

func (r *Round) ExtendInputRegistration(timeFrame time.Duration) error {
	if r.Phase != InputRegistration {
		return r.wrongPhase(InputRegistration)
	}
	r.raise(InputRegistrationExtended{Id: r.Id, TimeFrame: int64(timeFrame)})
	return nil
}

func (r *Round) GetAlice(id string) (*Alice, error) {
	for _, alice := range r.Alices {
		if alice.Id == id {
			return alice, nil
		}
	}
	return nil, NewProtocolError(ErrAliceNotFound, "round %s: alice %s not found", r.Id, id)
}

func (r *Round) GetAliceByOutpoint(outpoint wire.OutPoint) *Alice {
	for _, alice := range r.Alices {
		if alice.Coin.Outpoint == outpoint {
			return alice
		}
	}
	return nil
}

func (r *Round) HasInputScript(script []byte) bool {
	for _, alice := range r.Alices {
		if bytes.Equal(alice.Coin.Script(), script) {
			return true
		}
	}
	return false
}

// ValidateInput checks that the coin could be added to the coinjoin without
// committing anything.
func (r *Round) ValidateInput(coin common.Coin) error {
	if r.Phase != InputRegistration {
		return r.wrongPhase(InputRegistration)
	}
	if r.IsBlameRound() {
		if _, ok := r.BlameWhitelist[coin.Outpoint]; !ok {
			return NewProtocolError(
				ErrInputNotWhitelisted, "input %s not allowed in blame round", coin,
			)
		}
	}
	if len(r.Alices) >= r.Parameters.MaxInputCount {
		return NewProtocolError(ErrTooManyInputs, "round %s is full", r.Id)
	}
	if r.GetAliceByOutpoint(coin.Outpoint) != nil {
		return NewProtocolError(ErrAliceAlreadyRegistered, "")
	}
	_, err := r.Construction.AddInput(coin)
	return err
}

// ValidateAlice checks the input and the vsize quota left for it.
func (r *Round) ValidateAlice(alice *Alice) error {
	if err := r.ValidateInput(alice.Coin); err != nil {
		return err
	}
	if r.RemainingInputVsizeAllocation < r.Parameters.MaxVsizeAllocationPerAlice {
		return NewProtocolError(ErrVsizeQuotaExceeded, "")
	}
	return nil
}

func (r *Round) RegisterAlice(alice *Alice) error {
	if err := r.ValidateAlice(alice); err != nil {
		return err
	}
	r.raise(AliceRegistered{Id: r.Id, Alice: alice})
	return nil
}

func (r *Round) RemoveAlice(aliceId, reason string) error {
	alice, err := r.GetAlice(aliceId)
	if err != nil {
		return err
	}
	r.raise(AliceRemoved{
		Id:       r.Id,
		AliceId:  aliceId,
		Outpoint: alice.Coin.Outpoint,
		Reason:   reason,
	})
	return nil
}

func (r *Round) ValidateConnectionConfirmation(aliceId string) error {
	if r.Phase != ConnectionConfirmation {
		return r.wrongPhase(ConnectionConfirmation)
	}
	alice, err := r.GetAlice(aliceId)
	if err != nil {
		return err
	}
	if alice.ConfirmedConnection {
		return NewProtocolError(ErrAliceAlreadyConfirmedConnection, "")
	}
	_, err = r.Construction.AddInput(alice.Coin)
	return err
}

func (r *Round) ConfirmConnection(aliceId string) error {
	if err := r.ValidateConnectionConfirmation(aliceId); err != nil {
		return err
	}
	r.raise(ConnectionConfirmed{Id: r.Id, AliceId: aliceId})
	return nil
}

func (r *Round) ValidateOutput(bob Bob) error {
	if r.Phase != OutputRegistration {
		return r.wrongPhase(OutputRegistration)
	}
	if r.HasInputScript(bob.Script) {
		return NewProtocolError(
			ErrAlreadyRegisteredScript, "round %s: script already used by an input", r.Id,
		)
	}
	_, err := r.Construction.AddOutput(bob.TxOut(r.Parameters.FeeRate))
	return err
}

func (r *Round) RegisterBob(bob Bob) error {
	if err := r.ValidateOutput(bob); err != nil {
		return err
	}
	r.raise(OutputRegistered{Id: r.Id, Bob: bob})
	return nil
}

func (r *Round) SetReadyToSign(aliceId string) error {
	if r.Phase != OutputRegistration {
		return r.wrongPhase(OutputRegistration)
	}
	alice, err := r.GetAlice(aliceId)
	if err != nil {
		return err
	}
	if alice.ReadyToSign {
		return nil
	}
	r.raise(AliceReadyToSign{Id: r.Id, AliceId: aliceId})
	return nil
}

func (r *Round) AllAlicesConfirmed() bool {
	for _, alice := range r.Alices {
		if !alice.ConfirmedConnection {
			return false
		}
	}
	return true
}

func (r *Round) AllAlicesReadyToSign() bool {
	for _, alice := range r.Alices {
		if !alice.ReadyToSign {
			return false
		}
	}
	return true
}

// SetPhase moves the round forward, phases never go back.
func (r *Round) SetPhase(phase Phase) error {
	if phase <= r.Phase || phase == Ended {
		return fmt.Errorf(
			"round %s: invalid phase transition from %s to %s", r.Id, r.Phase, phase,
		)
	}
	r.raise(PhaseChanged{Id: r.Id, Phase: phase, Timestamp: time.Now().UnixMilli()})
	return nil
}

func (r *Round) StartSigning() error {
	if r.Phase != OutputRegistration {
		return r.wrongPhase(OutputRegistration)
	}
	signing, err := r.Construction.Finalize()
	if err != nil {
		return err
	}
	if err := r.SetPhase(TransactionSigning); err != nil {
		return err
	}
	r.raise(SigningStarted{
		Id:      r.Id,
		Signing: signing,
		Txid:    signing.Tx.TxHash().String(),
	})
	return nil
}

func (r *Round) AddWitness(index int, witness wire.TxWitness) error {
	if r.Phase != TransactionSigning || r.Signing == nil {
		return r.wrongPhase(TransactionSigning)
	}
	if err := r.Signing.AddWitness(index, witness); err != nil {
		return err
	}
	r.raise(WitnessAdded{Id: r.Id, InputIndex: index})
	return nil
}

func (r *Round) End(state EndRoundState) {
	if r.IsEnded() {
		return
	}
	r.raise(RoundEnded{
		Id:         r.Id,
		State:      state,
		Txid:       r.Txid,
		InputCount: len(r.Alices),
		Timestamp:  time.Now().UnixMilli(),
	})
}

func (r *Round) wrongPhase(expected ...Phase) error {
	return NewProtocolError(
		ErrWrongPhase, "round %s: in phase %s, expected %v", r.Id, r.Phase, expected,
	)
}

func (r *Round) raise(event RoundEvent) {
	if r.changes == nil {
		r.changes = make([]RoundEvent, 0)
	}
	r.changes = append(r.changes, event)
	r.On(event)
}
