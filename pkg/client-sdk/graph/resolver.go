package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ark-network/wabisabi/pkg/credential"
	"golang.org/x/sync/errgroup"
)

var ErrStuck = errors.New("no node ready to be resolved")

// Issuer performs the remote calls a node needs to be resolved. Presented
// credentials and requested values may be fewer than credential.K, it's up
// to the issuer to pad them.
type Issuer interface {
	Reissue(
		ctx context.Context, amounts, vsizes []credential.Credential,
		amountValues, vsizeValues []int64,
	) (issuedAmounts, issuedVsizes []credential.Credential, err error)
	RegisterOutput(
		ctx context.Context, output int, amounts, vsizes []credential.Credential,
	) error
}

// Resolver walks the graph once the input credentials are known: every
// node whose in-edges have all been delivered is resolved, concurrently
// with the other ready ones, and its credentials flow along its out-edges.
type Resolver struct {
	graph  *DependencyGraph
	issuer Issuer

	lock      sync.RWMutex
	delivered map[int]credential.Credential
	resolved  []bool
	extra     []credential.Credential
}

func NewResolver(g *DependencyGraph, issuer Issuer) *Resolver {
	return &Resolver{
		graph:     g,
		issuer:    issuer,
		delivered: make(map[int]credential.Credential),
		resolved:  make([]bool, len(g.Nodes)),
		extra:     make([]credential.Credential, 0),
	}
}

func (r *Resolver) Graph() *DependencyGraph {
	return r.graph
}

// SetInputCredentials hands the credentials obtained for an input node,
// ordered as the node's RequestedValues.
func (r *Resolver) SetInputCredentials(
	node int, amounts, vsizes []credential.Credential,
) error {
	if node < 0 || node >= len(r.graph.Nodes) || r.graph.Nodes[node].Kind != InputNode {
		return fmt.Errorf("node %d is not an input", node)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.resolved[node] {
		return fmt.Errorf("input node %d already resolved", node)
	}
	for _, c := range []struct {
		t     credential.Type
		creds []credential.Credential
	}{
		{credential.AmountType, amounts},
		{credential.VsizeType, vsizes},
	} {
		if err := r.deliver(node, c.t, c.creds); err != nil {
			return err
		}
	}
	r.resolved[node] = true
	return nil
}

// Unresolved returns the number of edges whose credentials are still to be
// consumed.
func (r *Resolver) Unresolved() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	count := 0
	for _, e := range r.graph.Edges {
		if !r.resolved[e.To] {
			count++
		}
	}
	return count
}

func (r *Resolver) Done() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, ok := range r.resolved {
		if !ok {
			return false
		}
	}
	return true
}

// Extra returns the credentials that were requested but not forwarded.
func (r *Resolver) Extra() []credential.Credential {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return append([]credential.Credential{}, r.extra...)
}

// Step resolves all the nodes currently ready and returns how many they
// were.
func (r *Resolver) Step(ctx context.Context) (int, error) {
	ready := r.readyNodes()
	if len(ready) <= 0 {
		if r.Done() {
			return 0, nil
		}
		return 0, ErrStuck
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, node := range ready {
		node := node
		eg.Go(func() error {
			return r.resolve(ctx, node)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return len(ready), nil
}

// Resolve steps until every node is resolved.
func (r *Resolver) Resolve(ctx context.Context) error {
	for !r.Done() {
		if _, err := r.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) readyNodes() []int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ready := make([]int, 0)
	for i, n := range r.graph.Nodes {
		if r.resolved[i] || n.Kind == InputNode {
			continue
		}
		isReady := true
		for _, t := range types {
			for _, e := range r.graph.InEdges(i, t) {
				if _, ok := r.delivered[e]; !ok {
					isReady = false
				}
			}
		}
		if isReady {
			ready = append(ready, i)
		}
	}
	return ready
}

func (r *Resolver) resolve(ctx context.Context, node int) error {
	amounts, vsizes := r.incoming(node)

	if n := r.graph.Nodes[node]; n.Kind == OutputNode {
		if err := r.issuer.RegisterOutput(ctx, n.Ref, amounts, vsizes); err != nil {
			return fmt.Errorf("failed to register output %d: %w", n.Ref, err)
		}
		r.lock.Lock()
		r.resolved[node] = true
		r.lock.Unlock()
		return nil
	}

	issuedAmounts, issuedVsizes, err := r.issuer.Reissue(
		ctx, amounts, vsizes,
		r.graph.RequestedValues(node, credential.AmountType),
		r.graph.RequestedValues(node, credential.VsizeType),
	)
	if err != nil {
		return fmt.Errorf("failed to reissue credentials of node %d: %w", node, err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.deliver(node, credential.AmountType, issuedAmounts); err != nil {
		return err
	}
	if err := r.deliver(node, credential.VsizeType, issuedVsizes); err != nil {
		return err
	}
	r.resolved[node] = true
	return nil
}

func (r *Resolver) incoming(node int) (amounts, vsizes []credential.Credential) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, e := range r.graph.InEdges(node, credential.AmountType) {
		amounts = append(amounts, r.delivered[e])
	}
	for _, e := range r.graph.InEdges(node, credential.VsizeType) {
		vsizes = append(vsizes, r.delivered[e])
	}
	return
}

// deliver must be called with the lock held.
func (r *Resolver) deliver(
	node int, t credential.Type, creds []credential.Credential,
) error {
	expected := r.graph.RequestedValues(node, t)
	if len(creds) < len(expected) {
		return fmt.Errorf(
			"node %d: got %d %s credentials, expected %d", node, len(creds), t, len(expected),
		)
	}
	for i, v := range expected {
		if creds[i].Value != v {
			return fmt.Errorf(
				"node %d: got %s credential of value %d, expected %d",
				node, t, creds[i].Value, v,
			)
		}
	}

	outEdges := r.graph.OutEdges(node, t)
	for i, e := range outEdges {
		r.delivered[e] = creds[i]
	}
	r.extra = append(r.extra, creds[len(outEdges):len(expected)]...)
	return nil
}
