package credential

import (
	"crypto/rand"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Issuer mints and redeems credentials of one type for one scope (a round).
// Every presented serial is remembered so that a credential can be spent
// only once.
type Issuer struct {
	lock *sync.Mutex

	key       *btcec.PrivateKey
	credType  Type
	scope     string
	maxValue  int64
	presented map[[32]byte]struct{}
	balance   int64
}

func NewIssuer(credType Type, scope string, maxValue int64) (*Issuer, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Issuer{
		lock:      &sync.Mutex{},
		key:       key,
		credType:  credType,
		scope:     scope,
		maxValue:  maxValue,
		presented: make(map[[32]byte]struct{}),
	}, nil
}

func (i *Issuer) Parameters() IssuerParameters {
	return IssuerParameters{
		Type:     i.credType,
		Scope:    i.scope,
		PubKey:   schnorr.SerializePubKey(i.key.PubKey()),
		MaxValue: i.maxValue,
	}
}

// Balance is the net value minted by the issuer so far.
func (i *Issuer) Balance() int64 {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.balance
}

// PreparedResponse is a validated request waiting to be committed. Callers
// validate their own state transition in between and drop the prepared
// response if that fails, leaving the issuer untouched.
type PreparedResponse struct {
	issuer  *Issuer
	request Request
}

func (p *PreparedResponse) Commit() (*Response, error) {
	responses, err := CommitAll(p)
	if err != nil {
		return nil, err
	}
	return responses[0], nil
}

// CommitAll commits the prepared responses, possibly of different issuers,
// as a whole: if any of them fails none is committed.
func CommitAll(prepared ...*PreparedResponse) ([]*Response, error) {
	issuers := make([]*Issuer, 0, 2)
	for _, p := range prepared {
		found := false
		for _, i := range issuers {
			if i == p.issuer {
				found = true
				break
			}
		}
		if !found {
			issuers = append(issuers, p.issuer)
		}
	}
	// Issuers are always locked in the same order.
	sort.Slice(issuers, func(a, b int) bool {
		if issuers[a].credType != issuers[b].credType {
			return issuers[a].credType < issuers[b].credType
		}
		return issuers[a].scope < issuers[b].scope
	})
	for _, i := range issuers {
		i.lock.Lock()
		defer i.lock.Unlock()
	}

	// A concurrent request may have spent the same serials since prepare.
	spent := make(map[*Issuer]map[[32]byte]struct{}, len(issuers))
	for _, p := range prepared {
		if _, ok := spent[p.issuer]; !ok {
			spent[p.issuer] = make(map[[32]byte]struct{})
		}
		for _, c := range p.request.Presented {
			key := c.serialKey()
			if _, ok := p.issuer.presented[key]; ok {
				return nil, ErrAlreadyPresented
			}
			if _, ok := spent[p.issuer][key]; ok {
				return nil, ErrAlreadyPresented
			}
			spent[p.issuer][key] = struct{}{}
		}
	}

	responses := make([]*Response, 0, len(prepared))
	for _, p := range prepared {
		issued := make([]Credential, 0, len(p.request.Requested))
		for _, value := range p.request.Requested {
			cred, err := p.issuer.issue(value)
			if err != nil {
				return nil, err
			}
			issued = append(issued, *cred)
		}
		responses = append(responses, &Response{Issued: issued})
	}

	for issuer, keys := range spent {
		for key := range keys {
			issuer.presented[key] = struct{}{}
		}
	}
	for _, p := range prepared {
		p.issuer.balance -= p.request.Delta
	}
	return responses, nil
}

// HandleRequest validates and commits the request in one step.
func (i *Issuer) HandleRequest(req Request) (*Response, error) {
	prepared, err := i.PrepareResponse(req)
	if err != nil {
		return nil, err
	}
	return prepared.Commit()
}

func (i *Issuer) PrepareResponse(req Request) (*PreparedResponse, error) {
	i.lock.Lock()
	defer i.lock.Unlock()

	if err := i.validate(req); err != nil {
		return nil, err
	}
	return &PreparedResponse{issuer: i, request: req}, nil
}

func (i *Issuer) validate(req Request) error {
	if len(req.Requested) != K {
		return fmt.Errorf(
			"%w: requested %d, expected %d",
			ErrWrongNumberOfCredentials, len(req.Requested), K,
		)
	}
	if len(req.Presented) == 0 {
		if !req.IsNullRequest() {
			return ErrNotNullRequest
		}
		return nil
	}
	if len(req.Presented) != K {
		return fmt.Errorf(
			"%w: presented %d, expected %d",
			ErrWrongNumberOfCredentials, len(req.Presented), K,
		)
	}

	for _, v := range req.Requested {
		if v < 0 || v > i.maxValue {
			return fmt.Errorf("%w: %d", ErrValueOutOfRange, v)
		}
	}

	seen := make(map[[32]byte]struct{}, K)
	for _, c := range req.Presented {
		if err := i.verify(c); err != nil {
			return err
		}
		key := c.serialKey()
		if _, ok := i.presented[key]; ok {
			return ErrAlreadyPresented
		}
		if _, ok := seen[key]; ok {
			return ErrAlreadyPresented
		}
		seen[key] = struct{}{}
	}

	if req.PresentedSum()-req.RequestedSum() != req.Delta {
		return fmt.Errorf(
			"%w: presented %d, requested %d, delta %d", ErrBalanceMismatch,
			req.PresentedSum(), req.RequestedSum(), req.Delta,
		)
	}
	return nil
}

func (i *Issuer) verify(c Credential) error {
	if c.Type != i.credType || len(c.Serial) != 32 {
		return ErrInvalidCredential
	}
	if c.Value < 0 || c.Value > i.maxValue {
		return fmt.Errorf("%w: %d", ErrValueOutOfRange, c.Value)
	}
	sig, err := schnorr.ParseSignature(c.Tag)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCredential, err)
	}
	if !sig.Verify(tagMessage(i.scope, c.Type, c.Value, c.Serial), i.key.PubKey()) {
		return ErrInvalidCredential
	}
	return nil
}

func (i *Issuer) issue(value int64) (*Credential, error) {
	serial := make([]byte, 32)
	if _, err := rand.Read(serial); err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(i.key, tagMessage(i.scope, i.credType, value, serial))
	if err != nil {
		return nil, err
	}
	return &Credential{
		Type:   i.credType,
		Value:  value,
		Serial: serial,
		Tag:    sig.Serialize(),
	}, nil
}
