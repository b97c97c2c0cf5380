package domain

import (
	"github.com/btcsuite/btcd/wire"
)

const RoundTopic = "round"

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeRoundCreated
	EventTypeInputRegistrationExtended
	EventTypeAliceRegistered
	EventTypeAliceRemoved
	EventTypeConnectionConfirmed
	EventTypeOutputRegistered
	EventTypeAliceReadyToSign
	EventTypePhaseChanged
	EventTypeSigningStarted
	EventTypeWitnessAdded
	EventTypeRoundEnded
)

type RoundEvent interface {
	GetTopic() string
	GetType() EventType
	GetRoundId() string
}

func (e RoundCreated) GetTopic() string                { return RoundTopic }
func (e InputRegistrationExtended) GetTopic() string   { return RoundTopic }
func (e AliceRegistered) GetTopic() string             { return RoundTopic }
func (e AliceRemoved) GetTopic() string                { return RoundTopic }
func (e ConnectionConfirmed) GetTopic() string         { return RoundTopic }
func (e OutputRegistered) GetTopic() string            { return RoundTopic }
func (e AliceReadyToSign) GetTopic() string            { return RoundTopic }
func (e PhaseChanged) GetTopic() string                { return RoundTopic }
func (e SigningStarted) GetTopic() string              { return RoundTopic }
func (e WitnessAdded) GetTopic() string                { return RoundTopic }
func (e RoundEnded) GetTopic() string                  { return RoundTopic }
func (e RoundCreated) GetType() EventType              { return EventTypeRoundCreated }
func (e InputRegistrationExtended) GetType() EventType { return EventTypeInputRegistrationExtended }
func (e AliceRegistered) GetType() EventType           { return EventTypeAliceRegistered }
func (e AliceRemoved) GetType() EventType              { return EventTypeAliceRemoved }
func (e ConnectionConfirmed) GetType() EventType       { return EventTypeConnectionConfirmed }
func (e OutputRegistered) GetType() EventType          { return EventTypeOutputRegistered }
func (e AliceReadyToSign) GetType() EventType          { return EventTypeAliceReadyToSign }
func (e PhaseChanged) GetType() EventType              { return EventTypePhaseChanged }
func (e SigningStarted) GetType() EventType            { return EventTypeSigningStarted }
func (e WitnessAdded) GetType() EventType              { return EventTypeWitnessAdded }
func (e RoundEnded) GetType() EventType                { return EventTypeRoundEnded }
func (e RoundCreated) GetRoundId() string              { return e.Id }
func (e InputRegistrationExtended) GetRoundId() string { return e.Id }
func (e AliceRegistered) GetRoundId() string           { return e.Id }
func (e AliceRemoved) GetRoundId() string              { return e.Id }
func (e ConnectionConfirmed) GetRoundId() string       { return e.Id }
func (e OutputRegistered) GetRoundId() string          { return e.Id }
func (e AliceReadyToSign) GetRoundId() string          { return e.Id }
func (e PhaseChanged) GetRoundId() string              { return e.Id }
func (e SigningStarted) GetRoundId() string            { return e.Id }
func (e WitnessAdded) GetRoundId() string              { return e.Id }
func (e RoundEnded) GetRoundId() string                { return e.Id }

type RoundCreated struct {
	Id        string
	BlameOf   string
	Timestamp int64
}

type InputRegistrationExtended struct {
	Id        string
	TimeFrame int64
}

type AliceRegistered struct {
	Id    string
	Alice *Alice `json:"-"`
}

type AliceRemoved struct {
	Id       string
	AliceId  string
	Outpoint wire.OutPoint
	Reason   string
}

type ConnectionConfirmed struct {
	Id      string
	AliceId string
}

type OutputRegistered struct {
	Id  string
	Bob Bob
}

type AliceReadyToSign struct {
	Id      string
	AliceId string
}

type PhaseChanged struct {
	Id        string
	Phase     Phase
	Timestamp int64
}

type SigningStarted struct {
	Id      string
	Signing *SigningState `json:"-"`
	Txid    string
}

type WitnessAdded struct {
	Id         string
	InputIndex int
}

type RoundEnded struct {
	Id         string
	State      EndRoundState
	Txid       string
	InputCount int
	Timestamp  int64
}
