package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode int

const (
	ErrUnknown ErrorCode = iota
	ErrAliceAlreadyRegistered
	ErrAliceAlreadyConfirmedConnection
	ErrAliceNotFound
	ErrAlreadyRegisteredScript
	ErrCredentialCheating
	ErrDeltaNotZero
	ErrDustOutput
	ErrIncorrectRequestedAmountCredentials
	ErrIncorrectRequestedVsizeCredentials
	ErrInputBanned
	ErrInputImmature
	ErrInputNotWhitelisted
	ErrInputSpent
	ErrInputUnconfirmed
	ErrInvalidInputIndex
	ErrInvalidWitness
	ErrNonStandardInput
	ErrNonStandardOutput
	ErrNonUniqueInputs
	ErrNotEnoughFunds
	ErrRoundNotFound
	ErrTooManyInputs
	ErrTooMuchFunds
	ErrTooMuchVsize
	ErrUneconomicalInput
	ErrVsizeQuotaExceeded
	ErrWitnessAlreadyProvided
	ErrWrongNumberOfCreds
	ErrWrongOwnershipProof
	ErrWrongPhase
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnknown:                             "Unknown",
	ErrAliceAlreadyRegistered:              "AliceAlreadyRegistered",
	ErrAliceAlreadyConfirmedConnection:     "AliceAlreadyConfirmedConnection",
	ErrAliceNotFound:                       "AliceNotFound",
	ErrAlreadyRegisteredScript:             "AlreadyRegisteredScript",
	ErrCredentialCheating:                  "CredentialCheating",
	ErrDeltaNotZero:                        "DeltaNotZero",
	ErrDustOutput:                          "DustOutput",
	ErrIncorrectRequestedAmountCredentials: "IncorrectRequestedAmountCredentials",
	ErrIncorrectRequestedVsizeCredentials:  "IncorrectRequestedVsizeCredentials",
	ErrInputBanned:                         "InputBanned",
	ErrInputImmature:                       "InputImmature",
	ErrInputNotWhitelisted:                 "InputNotWhitelisted",
	ErrInputSpent:                          "InputSpent",
	ErrInputUnconfirmed:                    "InputUnconfirmed",
	ErrInvalidInputIndex:                   "InvalidInputIndex",
	ErrInvalidWitness:                      "InvalidWitness",
	ErrNonStandardInput:                    "NonStandardInput",
	ErrNonStandardOutput:                   "NonStandardOutput",
	ErrNonUniqueInputs:                     "NonUniqueInputs",
	ErrNotEnoughFunds:                      "NotEnoughFunds",
	ErrRoundNotFound:                       "RoundNotFound",
	ErrTooManyInputs:                       "TooManyInputs",
	ErrTooMuchFunds:                        "TooMuchFunds",
	ErrTooMuchVsize:                        "TooMuchVsize",
	ErrUneconomicalInput:                   "UneconomicalInput",
	ErrVsizeQuotaExceeded:                  "VsizeQuotaExceeded",
	ErrWitnessAlreadyProvided:              "WitnessAlreadyProvided",
	ErrWrongNumberOfCreds:                  "WrongNumberOfCreds",
	ErrWrongOwnershipProof:                 "WrongOwnershipProof",
	ErrWrongPhase:                          "WrongPhase",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return errorCodeNames[ErrUnknown]
}

// IsCheating tells whether the error evidences a clear misbehavior of the
// participant, in which case its input gets banned.
func (c ErrorCode) IsCheating() bool {
	switch c {
	case ErrAliceAlreadyConfirmedConnection, ErrCredentialCheating,
		ErrInvalidWitness, ErrWrongOwnershipProof:
		return true
	default:
		return false
	}
}

func ParseErrorCode(name string) ErrorCode {
	for code, n := range errorCodeNames {
		if n == name {
			return code
		}
	}
	return ErrUnknown
}

type ProtocolError struct {
	Code ErrorCode
	Msg  string
}

func NewProtocolError(code ErrorCode, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{code, fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	if len(e.Msg) <= 0 {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// ParseProtocolError is the inverse of Error, it's used by clients to
// recover the code of an error received over the wire.
func ParseProtocolError(msg string) (*ProtocolError, bool) {
	name, rest, _ := strings.Cut(msg, ": ")
	code := ParseErrorCode(name)
	if code == ErrUnknown {
		return nil, false
	}
	return &ProtocolError{code, rest}, true
}

func IsProtocolError(err error, code ErrorCode) bool {
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr.Code == code
	}
	return false
}

func IsCheating(err error) bool {
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr.Code.IsCheating()
	}
	return false
}
