package credential

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ZeroPool caches zero-value credentials of one type so that every request
// can be padded to K presentations. It is bounded, when full new zero
// credentials are dropped.
type ZeroPool struct {
	credType Type
	creds    chan Credential
}

func NewZeroPool(credType Type, size int) *ZeroPool {
	return &ZeroPool{
		credType: credType,
		creds:    make(chan Credential, size),
	}
}

func (p *ZeroPool) Put(creds ...Credential) {
	for _, c := range creds {
		if c.Value != 0 || c.Type != p.credType {
			continue
		}
		select {
		case p.creds <- c:
		default:
			return
		}
	}
}

func (p *ZeroPool) Get() (Credential, bool) {
	select {
	case c := <-p.creds:
		return c, true
	default:
		return Credential{}, false
	}
}

func (p *ZeroPool) Len() int {
	return len(p.creds)
}

// Client builds requests for, and checks responses of, a remote issuer.
type Client struct {
	params IssuerParameters
	pool   *ZeroPool
}

func NewClient(params IssuerParameters, pool *ZeroPool) *Client {
	return &Client{params, pool}
}

func (c *Client) Parameters() IssuerParameters {
	return c.params
}

func (c *Client) Pool() *ZeroPool {
	return c.pool
}

func (c *Client) NewNullRequest() Request {
	return Request{Requested: make([]int64, K)}
}

// NewRequest presents the given credentials and asks for the given values,
// padding both sides with zeros up to K.
func (c *Client) NewRequest(presented []Credential, values []int64) (Request, error) {
	if len(presented) > K || len(values) > K {
		return Request{}, ErrWrongNumberOfCredentials
	}

	creds := make([]Credential, 0, K)
	creds = append(creds, presented...)
	taken := make([]Credential, 0, K)
	for len(creds) < K {
		zero, ok := c.pool.Get()
		if !ok {
			// Give back what we took so a later attempt can use it.
			c.pool.Put(taken...)
			return Request{}, ErrPoolExhausted
		}
		taken = append(taken, zero)
		creds = append(creds, zero)
	}

	requested := make([]int64, K)
	copy(requested, values)

	req := Request{Presented: creds, Requested: requested}
	req.Delta = req.PresentedSum() - req.RequestedSum()
	return req, nil
}

// HandleResponse checks that the issuer answered exactly what was requested.
func (c *Client) HandleResponse(req Request, resp *Response) ([]Credential, error) {
	if resp == nil || len(resp.Issued) != len(req.Requested) {
		return nil, ErrUnexpectedResponse
	}

	pubkey, err := schnorr.ParsePubKey(c.params.PubKey)
	if err != nil {
		return nil, err
	}
	for i, cred := range resp.Issued {
		if cred.Type != c.params.Type || cred.Value != req.Requested[i] {
			return nil, fmt.Errorf(
				"%w: credential %d has value %d, requested %d",
				ErrUnexpectedResponse, i, cred.Value, req.Requested[i],
			)
		}
		sig, err := schnorr.ParseSignature(cred.Tag)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, err)
		}
		msg := tagMessage(c.params.Scope, cred.Type, cred.Value, cred.Serial)
		if !sig.Verify(msg, pubkey) {
			return nil, ErrInvalidCredential
		}
	}
	return resp.Issued, nil
}

// HandleNullResponse stores the zero credentials of a null request response
// in the pool.
func (c *Client) HandleNullResponse(req Request, resp *Response) error {
	creds, err := c.HandleResponse(req, resp)
	if err != nil {
		return err
	}
	c.pool.Put(creds...)
	return nil
}

// SplitZeros separates zero-value credentials, sending them to the pool,
// from the ones carrying value.
func (c *Client) SplitZeros(creds []Credential) []Credential {
	nonZero := make([]Credential, 0, len(creds))
	for _, cred := range creds {
		if cred.Value == 0 {
			c.pool.Put(cred)
			continue
		}
		nonZero = append(nonZero, cred)
	}
	return nonZero
}
