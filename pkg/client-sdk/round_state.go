package wabisabisdk

import (
	"context"
	"sync"
	"time"

	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	log "github.com/sirupsen/logrus"
)

// roundStateUpdater keeps the latest known state of every round, asking
// the coordinator only for the rounds that changed since the last poll.
type roundStateUpdater struct {
	transport client.TransportClient

	lock   sync.RWMutex
	rounds map[string]client.RoundState
}

func newRoundStateUpdater(transport client.TransportClient) *roundStateUpdater {
	return &roundStateUpdater{
		transport: transport,
		rounds:    make(map[string]client.RoundState),
	}
}

func (u *roundStateUpdater) refresh(ctx context.Context) error {
	u.lock.RLock()
	checkpoints := make(map[string]int, len(u.rounds))
	for id, round := range u.rounds {
		checkpoints[id] = round.Version
	}
	u.lock.RUnlock()

	states, err := u.transport.GetStatus(ctx, checkpoints)
	if err != nil {
		return err
	}

	u.lock.Lock()
	defer u.lock.Unlock()
	for _, state := range states {
		u.rounds[state.Id] = state
	}
	return nil
}

func (u *roundStateUpdater) get(roundId string) (client.RoundState, bool) {
	u.lock.RLock()
	defer u.lock.RUnlock()
	state, ok := u.rounds[roundId]
	return state, ok
}

func (u *roundStateUpdater) find(predicate func(client.RoundState) bool) (client.RoundState, bool) {
	u.lock.RLock()
	defer u.lock.RUnlock()
	for _, state := range u.rounds {
		if predicate(state) {
			return state, true
		}
	}
	return client.RoundState{}, false
}

// await polls the coordinator until a round satisfies the predicate.
// Failed polls are retried until the context is done.
func (u *roundStateUpdater) await(
	ctx context.Context, interval func() time.Duration,
	predicate func(client.RoundState) bool,
) (client.RoundState, error) {
	for {
		if err := u.refresh(ctx); err != nil {
			log.WithError(err).Warn("failed to get round status")
		}
		if state, ok := u.find(predicate); ok {
			return state, nil
		}
		if err := sleep(ctx, interval()); err != nil {
			return client.RoundState{}, err
		}
	}
}

func (u *roundStateUpdater) awaitRound(
	ctx context.Context, interval func() time.Duration, roundId string,
	predicate func(client.RoundState) bool,
) (client.RoundState, error) {
	return u.await(ctx, interval, func(state client.RoundState) bool {
		return state.Id == roundId && predicate(state)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
