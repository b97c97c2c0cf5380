package domain

const (
	InputRegistration Phase = iota
	ConnectionConfirmation
	OutputRegistration
	TransactionSigning
	Ended
)

type Phase int

func (p Phase) String() string {
	switch p {
	case InputRegistration:
		return "INPUT_REGISTRATION"
	case ConnectionConfirmation:
		return "CONNECTION_CONFIRMATION"
	case OutputRegistration:
		return "OUTPUT_REGISTRATION"
	case TransactionSigning:
		return "TRANSACTION_SIGNING"
	case Ended:
		return "ENDED"
	default:
		return "UNDEFINED"
	}
}

func ParsePhase(s string) Phase {
	for p := InputRegistration; p <= Ended; p++ {
		if p.String() == s {
			return p
		}
	}
	return -1
}

const (
	NotEnded EndRoundState = iota
	TransactionBroadcasted
	TransactionBroadcastFailed
	AbortedNotEnoughAlices
	AbortedNotEnoughAlicesSigned
	AbortedWithError
)

type EndRoundState int

func (s EndRoundState) String() string {
	switch s {
	case TransactionBroadcasted:
		return "TRANSACTION_BROADCASTED"
	case TransactionBroadcastFailed:
		return "TRANSACTION_BROADCAST_FAILED"
	case AbortedNotEnoughAlices:
		return "ABORTED_NOT_ENOUGH_ALICES"
	case AbortedNotEnoughAlicesSigned:
		return "ABORTED_NOT_ENOUGH_ALICES_SIGNED"
	case AbortedWithError:
		return "ABORTED_WITH_ERROR"
	default:
		return "NOT_ENDED"
	}
}

func ParseEndRoundState(s string) EndRoundState {
	for st := NotEnded; st <= AbortedWithError; st++ {
		if st.String() == s {
			return st
		}
	}
	return NotEnded
}
