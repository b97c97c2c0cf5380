package application

import (
	"context"
	"sync"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/ark-network/wabisabi/pkg/common"
	log "github.com/sirupsen/logrus"
)

type roundSnapshot struct {
	id                   string
	phase                domain.Phase
	inputRegistrationEnd time.Time
}

// coinVerifier dispatches the coins of every round to the round's own
// verifier.
type coinVerifier struct {
	cfg       CoinVerifierConfig
	chain     ports.BlockchainService
	risk      ports.RiskScoringService
	coinjoins domain.CoinJoinRepository
	whitelist *whitelist
	prison    *prison

	ctx    context.Context
	cancel context.CancelFunc

	lock      sync.Mutex
	verifiers map[string]*roundVerifier
}

func newCoinVerifier(
	cfg CoinVerifierConfig, chain ports.BlockchainService,
	risk ports.RiskScoringService, coinjoins domain.CoinJoinRepository,
	whitelist *whitelist, prison *prison,
) *coinVerifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &coinVerifier{
		cfg:       cfg,
		chain:     chain,
		risk:      risk,
		coinjoins: coinjoins,
		whitelist: whitelist,
		prison:    prison,
		ctx:       ctx,
		cancel:    cancel,
		verifiers: make(map[string]*roundVerifier),
	}
}

func (c *coinVerifier) getOrCreate(roundId string) *roundVerifier {
	c.lock.Lock()
	defer c.lock.Unlock()
	v, ok := c.verifiers[roundId]
	if !ok {
		v = newRoundVerifier(
			c.ctx, roundId, c.cfg, c.chain, c.risk, c.coinjoins, c.whitelist, c.prison,
		)
		c.verifiers[roundId] = v
	}
	return v
}

func (c *coinVerifier) addCoin(roundId string, coin common.Coin) error {
	_, err := c.getOrCreate(roundId).addCoin(coin)
	return err
}

func (c *coinVerifier) get(roundId string) *roundVerifier {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.verifiers[roundId]
}

// stepRoundVerifiers starts the verifiers of the rounds about to end input
// registration, closes those of the rounds that moved on and drops the
// finished ones. The start lead time is checked against the current input
// registration end, that can move if the round was extended. Only rounds in
// input registration get a verifier created.
func (c *coinVerifier) stepRoundVerifiers(rounds []roundSnapshot, now time.Time) {
	live := make(map[string]roundSnapshot, len(rounds))
	for _, r := range rounds {
		live[r.id] = r
	}

	for _, r := range rounds {
		if r.phase != domain.InputRegistration {
			if v := c.get(r.id); v != nil {
				v.close()
			}
			continue
		}
		v := c.getOrCreate(r.id)
		if r.inputRegistrationEnd.Sub(now) < c.cfg.StartBefore {
			if err := v.start(); err == nil {
				log.WithField("round", r.id).Debug("coin verification started")
			}
		}
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	for id, v := range c.verifiers {
		r, ok := live[id]
		if ok && r.phase <= domain.InputRegistration {
			continue
		}
		gone := !ok || r.phase == domain.Ended
		if gone {
			v.close()
		}
		if gone || v.isFinished() {
			v.stop()
			delete(c.verifiers, id)
		}
	}
}

// verifyCoins closes the round verifier and streams the verdicts as they
// come. The channel is closed once all of them have been sent or the
// context is done.
func (c *coinVerifier) verifyCoins(ctx context.Context, roundId string) <-chan CoinVerifyInfo {
	v := c.getOrCreate(roundId)
	v.close()

	items := v.getItems()
	out := make(chan CoinVerifyInfo, len(items))

	go func() {
		defer close(out)

		for _, item := range items {
			select {
			case <-item.done:
				out <- v.consume(item)
			case <-ctx.Done():
				return
			}
		}

		if err := c.whitelist.writeIfChanged(ctx); err != nil {
			log.WithError(err).Warn("failed to persist whitelist")
		}
		if err := c.prison.flushIfChanged(ctx); err != nil {
			log.WithError(err).Warn("failed to persist prison")
		}
	}()
	return out
}

func (c *coinVerifier) stop() {
	c.cancel()
	c.lock.Lock()
	defer c.lock.Unlock()
	for id, v := range c.verifiers {
		v.stop()
		delete(c.verifiers, id)
	}
}
