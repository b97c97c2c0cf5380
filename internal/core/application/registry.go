package application

import (
	"sync"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
)

type roundEntry struct {
	lock      sync.Mutex
	round     *domain.Round
	published int
}

// roundRegistry indexes the live rounds. The map lock only guards the map,
// every round is mutated under its own entry lock, never two at once.
type roundRegistry struct {
	lock   sync.RWMutex
	rounds map[string]*roundEntry

	claimsLock sync.Mutex
	claims     map[wire.OutPoint]string
}

func newRoundRegistry() *roundRegistry {
	return &roundRegistry{
		rounds: make(map[string]*roundEntry),
		claims: make(map[wire.OutPoint]string),
	}
}

func (r *roundRegistry) add(round *domain.Round) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.rounds[round.Id] = &roundEntry{round: round}
}

func (r *roundRegistry) remove(id string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.rounds, id)
}

func (r *roundRegistry) get(id string) (*roundEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entry, ok := r.rounds[id]
	if !ok {
		return nil, domain.NewProtocolError(domain.ErrRoundNotFound, "round %s not found", id)
	}
	return entry, nil
}

func (r *roundRegistry) all() []*roundEntry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entries := make([]*roundEntry, 0, len(r.rounds))
	for _, entry := range r.rounds {
		entries = append(entries, entry)
	}
	return entries
}

// withRound runs fn with the round locked and returns the events it raised.
func (r *roundRegistry) withRound(
	id string, fn func(round *domain.Round) error,
) ([]domain.RoundEvent, error) {
	entry, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return entry.with(fn)
}

func (e *roundEntry) with(fn func(round *domain.Round) error) ([]domain.RoundEvent, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	err := fn(e.round)

	events := e.round.Events()
	newEvents := append([]domain.RoundEvent{}, events[e.published:]...)
	e.published = len(events)
	return newEvents, err
}

// claim reserves the outpoint for the given round. An outpoint can be
// registered in only one live round at a time.
func (r *roundRegistry) claim(outpoint wire.OutPoint, roundId string) error {
	r.claimsLock.Lock()
	defer r.claimsLock.Unlock()
	if _, ok := r.claims[outpoint]; ok {
		return domain.NewProtocolError(
			domain.ErrAliceAlreadyRegistered, "input %s already registered", outpoint,
		)
	}
	r.claims[outpoint] = roundId
	return nil
}

func (r *roundRegistry) release(outpoints ...wire.OutPoint) {
	r.claimsLock.Lock()
	defer r.claimsLock.Unlock()
	for _, op := range outpoints {
		delete(r.claims, op)
	}
}

func (r *roundRegistry) releaseRound(roundId string) {
	r.claimsLock.Lock()
	defer r.claimsLock.Unlock()
	for op, id := range r.claims {
		if id == roundId {
			delete(r.claims, op)
		}
	}
}
