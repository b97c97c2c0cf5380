package credential

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// K is the fixed number of credentials presented and requested by every
// issuance request, whatever the real number of values moved is.
const K = 2

type Type uint8

const (
	AmountType Type = iota
	VsizeType
)

func (t Type) String() string {
	switch t {
	case AmountType:
		return "amount"
	case VsizeType:
		return "vsize"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

var (
	ErrWrongNumberOfCredentials = errors.New("wrong number of credentials")
	ErrAlreadyPresented         = errors.New("credential already presented")
	ErrInvalidCredential        = errors.New("invalid credential")
	ErrValueOutOfRange          = errors.New("credential value out of range")
	ErrBalanceMismatch          = errors.New("presented minus requested does not match delta")
	ErrNotNullRequest           = errors.New("request without presentations must be a null request")
	ErrPoolExhausted            = errors.New("no zero credential available")
	ErrUnexpectedResponse       = errors.New("unexpected issuer response")

	credentialTag = []byte("wabisabi/credential")
)

type Credential struct {
	Type   Type   `json:"type"`
	Value  int64  `json:"value"`
	Serial []byte `json:"serial"`
	Tag    []byte `json:"tag"`
}

func (c Credential) serialKey() (key [32]byte) {
	copy(key[:], c.Serial)
	return
}

// Request asks the issuer to trade the presented credentials for freshly
// issued ones of the requested values. Delta is Σ(presented) − Σ(requested):
// negative deltas mint balance, positive ones spend it.
type Request struct {
	Delta     int64        `json:"delta"`
	Presented []Credential `json:"presented"`
	Requested []int64      `json:"requested"`
}

func (r Request) IsNullRequest() bool {
	if len(r.Presented) > 0 || r.Delta != 0 {
		return false
	}
	for _, v := range r.Requested {
		if v != 0 {
			return false
		}
	}
	return true
}

func (r Request) PresentedSum() (sum int64) {
	for _, c := range r.Presented {
		sum += c.Value
	}
	return
}

func (r Request) RequestedSum() (sum int64) {
	for _, v := range r.Requested {
		sum += v
	}
	return
}

type Response struct {
	Issued []Credential `json:"issued"`
}

// IssuerParameters is the public part of an issuer that clients need to
// check what they receive.
type IssuerParameters struct {
	Type     Type   `json:"type"`
	Scope    string `json:"scope"`
	PubKey   []byte `json:"pubkey"`
	MaxValue int64  `json:"max_value"`
}

func tagMessage(scope string, credType Type, value int64, serial []byte) []byte {
	var buf [9]byte
	buf[0] = byte(credType)
	binary.BigEndian.PutUint64(buf[1:], uint64(value))
	msg := chainhash.TaggedHash(credentialTag, []byte(scope), buf[:], serial)
	return msg[:]
}
