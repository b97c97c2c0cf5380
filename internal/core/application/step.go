package application

import (
	"context"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

// step moves every round forward. Steps never overlap, the chain and risk
// I/O of a step is done without holding any round lock.
func (s *service) step() {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	ctx := context.Background()
	now := time.Now()

	s.verifier.stepRoundVerifiers(s.snapshots(), now)

	for _, entry := range s.rounds.all() {
		switch phase := s.phaseOf(entry); phase {
		case domain.InputRegistration:
			s.stepInputRegistration(ctx, entry, now)
		case domain.ConnectionConfirmation:
			s.stepConnectionConfirmation(ctx, entry, now)
		case domain.OutputRegistration:
			s.stepOutputRegistration(ctx, entry, now)
		case domain.TransactionSigning:
			s.stepTransactionSigning(ctx, entry, now)
		case domain.Ended:
			s.evictIfExpired(entry, now)
		}
	}

	s.ensureRound(ctx)
}

func (s *service) snapshots() []roundSnapshot {
	entries := s.rounds.all()
	snapshots := make([]roundSnapshot, 0, len(entries))
	for _, entry := range entries {
		entry.lock.Lock()
		snapshots = append(snapshots, roundSnapshot{
			id:                   entry.round.Id,
			phase:                entry.round.Phase,
			inputRegistrationEnd: entry.round.InputRegistrationEnd(),
		})
		entry.lock.Unlock()
	}
	return snapshots
}

func (s *service) phaseOf(entry *roundEntry) domain.Phase {
	entry.lock.Lock()
	defer entry.lock.Unlock()
	return entry.round.Phase
}

func (s *service) update(
	ctx context.Context, entry *roundEntry, fn func(round *domain.Round) error,
) error {
	events, err := entry.with(fn)
	if len(events) > 0 {
		s.publish(ctx, events[0].GetRoundId(), events)
	}
	return err
}

func (s *service) stepInputRegistration(
	ctx context.Context, entry *roundEntry, now time.Time,
) {
	var (
		roundId string
		ended   bool
	)
	dropped := make([]wire.OutPoint, 0)
	// nolint:errcheck
	s.update(ctx, entry, func(round *domain.Round) error {
		roundId = round.Id
		for _, alice := range append([]*domain.Alice{}, round.Alices...) {
			if alice.IsExpired(now) {
				// nolint:errcheck
				round.RemoveAlice(alice.Id, "connection confirmation timed out")
				dropped = append(dropped, alice.Coin.Outpoint)
			}
		}
		if !round.IsInputRegistrationEnded(now) {
			return nil
		}

		// Rounds short of inputs get one more input registration time frame.
		alices := len(round.Alices)
		if alices > 0 && alices < round.Parameters.MinInputCount &&
			!round.IsBlameRound() &&
			round.InputRegistrationTimeFrame == round.Parameters.InputRegistrationTimeout {
			return round.ExtendInputRegistration(round.Parameters.InputRegistrationTimeout)
		}
		ended = true
		return nil
	})
	s.rounds.release(dropped...)
	if !ended {
		return
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.cfg.CoinVerifier.ItemTimeout+time.Minute)
	defer cancel()
	results := make([]CoinVerifyInfo, 0)
	for info := range s.verifier.verifyCoins(verifyCtx, roundId) {
		results = append(results, info)
	}

	removed := make([]wire.OutPoint, 0)
	// nolint:errcheck
	s.update(ctx, entry, func(round *domain.Round) error {
		for _, info := range results {
			if !info.ShouldRemove {
				continue
			}
			alice := round.GetAliceByOutpoint(info.Coin.Outpoint)
			if alice == nil {
				continue
			}
			// nolint:errcheck
			round.RemoveAlice(alice.Id, info.Reason)
			removed = append(removed, alice.Coin.Outpoint)
		}

		if len(round.Alices) < round.Parameters.MinInputCount {
			round.End(domain.AbortedNotEnoughAlices)
			return nil
		}
		return round.SetPhase(domain.ConnectionConfirmation)
	})
	s.rounds.release(removed...)
	s.releaseIfEnded(entry)
}

func (s *service) stepConnectionConfirmation(
	ctx context.Context, entry *roundEntry, now time.Time,
) {
	// nolint:errcheck
	s.update(ctx, entry, func(round *domain.Round) error {
		if !round.AllAlicesConfirmed() && now.Before(round.PhaseDeadline()) {
			return nil
		}

		for _, alice := range append([]*domain.Alice{}, round.Alices...) {
			if alice.ConfirmedConnection {
				continue
			}
			// nolint:errcheck
			round.RemoveAlice(alice.Id, "connection not confirmed")
			s.prison.punish(alice.Coin.Outpoint, round.Id, domain.Noted)
			s.rounds.release(alice.Coin.Outpoint)
		}

		if len(round.Alices) < round.Parameters.MinInputCount {
			round.End(domain.AbortedNotEnoughAlices)
			return nil
		}
		return round.SetPhase(domain.OutputRegistration)
	})
	s.releaseIfEnded(entry)
}

func (s *service) stepOutputRegistration(
	ctx context.Context, entry *roundEntry, now time.Time,
) {
	// nolint:errcheck
	s.update(ctx, entry, func(round *domain.Round) error {
		if !round.AllAlicesReadyToSign() && now.Before(round.PhaseDeadline()) {
			return nil
		}
		if err := round.StartSigning(); err != nil {
			log.WithError(err).WithField("round", round.Id).Warn(
				"failed to build coinjoin transaction",
			)
			round.End(domain.AbortedWithError)
		}
		return nil
	})
	s.releaseIfEnded(entry)
}

func (s *service) stepTransactionSigning(
	ctx context.Context, entry *roundEntry, now time.Time,
) {
	var (
		signedTx *wire.MsgTx
		blame    *domain.Round
	)
	// nolint:errcheck
	s.update(ctx, entry, func(round *domain.Round) error {
		if round.Signing.IsFullySigned() {
			signedTx = round.Signing.Tx.Copy()
			return nil
		}
		if now.Before(round.PhaseDeadline()) {
			return nil
		}

		for _, op := range round.Signing.UnsignedInputs() {
			s.prison.punish(op, round.Id, domain.Banned)
		}
		round.End(domain.AbortedNotEnoughAlicesSigned)

		signed := round.Signing.SignedInputs()
		if len(signed) < round.Parameters.MinInputCount {
			return nil
		}
		var err error
		blame, err = domain.NewBlameRound(
			round.Parameters, round.Id, signed, s.cfg.BlameInputRegistrationTimeout,
		)
		return err
	})

	if signedTx != nil {
		s.broadcast(ctx, entry, signedTx)
	}
	s.releaseIfEnded(entry)

	if blame != nil {
		s.addRound(ctx, blame)
		log.WithField("round", blame.Id).Infof("blame round created for round %s", blame.BlameOf)
	}
}

func (s *service) broadcast(ctx context.Context, entry *roundEntry, tx *wire.MsgTx) {
	txid, err := s.chain.SendRawTransaction(ctx, tx)

	// nolint:errcheck
	s.update(ctx, entry, func(round *domain.Round) error {
		if err != nil {
			log.WithError(err).WithField("round", round.Id).Warn("failed to broadcast coinjoin")
			round.End(domain.TransactionBroadcastFailed)
			return nil
		}
		round.End(domain.TransactionBroadcasted)
		return nil
	})
	if err != nil {
		return
	}

	scripts := make([][]byte, 0, len(tx.TxOut))
	for _, out := range tx.TxOut {
		scripts = append(scripts, out.PkScript)
	}
	if err := s.repoManager.CoinJoins().Add(ctx, domain.CoinJoin{
		Txid:        *txid,
		Scripts:     scripts,
		BroadcastAt: time.Now(),
	}); err != nil {
		log.WithError(err).Warnf("failed to store coinjoin %s", txid)
		return
	}
	log.Infof("broadcasted coinjoin %s", txid)
}

func (s *service) releaseIfEnded(entry *roundEntry) {
	entry.lock.Lock()
	ended, id := entry.round.IsEnded(), entry.round.Id
	entry.lock.Unlock()
	if ended {
		s.rounds.releaseRound(id)
	}
}

func (s *service) evictIfExpired(entry *roundEntry, now time.Time) {
	entry.lock.Lock()
	expired, id := now.Sub(entry.round.EndedAt) > endedRoundRetention, entry.round.Id
	entry.lock.Unlock()
	if expired {
		s.rounds.remove(id)
		log.WithField("round", id).Debug("round evicted")
	}
}

// ensureRound creates a new round if there's none accepting inputs.
func (s *service) ensureRound(ctx context.Context) {
	for _, entry := range s.rounds.all() {
		entry.lock.Lock()
		open := entry.round.Phase == domain.InputRegistration && !entry.round.IsBlameRound()
		entry.lock.Unlock()
		if open {
			return
		}
	}

	params := s.cfg.Parameters
	if params.FeeRate <= 0 {
		feeRate, err := s.chain.EstimateFeeRate(ctx, feeRateConfTarget)
		if err != nil {
			log.WithError(err).Warn("failed to estimate fee rate, round not created")
			return
		}
		params.FeeRate = feeRate
	}

	round, err := domain.NewRound(params)
	if err != nil {
		log.WithError(err).Warn("failed to create round")
		return
	}
	s.addRound(ctx, round)
	log.WithField("round", round.Id).Infof(
		"round created, input registration ends at %s",
		round.InputRegistrationEnd().Format(time.RFC3339),
	)
}

func (s *service) addRound(ctx context.Context, round *domain.Round) {
	s.rounds.add(round)
	entry, err := s.rounds.get(round.Id)
	if err != nil {
		return
	}
	// nolint:errcheck
	s.update(ctx, entry, func(*domain.Round) error { return nil })

	// Step right when input registration ends, without waiting for the
	// next tick.
	if err := s.scheduler.ScheduleTaskOnce(round.InputRegistrationEnd(), s.step); err != nil {
		log.WithError(err).Debug("failed to schedule round step")
	}
}

// maintain releases the expired inmates and whitelist entries and persists
// both if they changed.
func (s *service) maintain() {
	ctx := context.Background()
	now := time.Now()

	if count := s.prison.releaseExpired(now); count > 0 {
		log.Debugf("released %d inmates", count)
	}
	if err := s.prison.flushIfChanged(ctx); err != nil {
		log.WithError(err).Warn("failed to persist prison")
	}

	if count := s.whitelist.removeExpired(now); count > 0 {
		log.Debugf("removed %d expired whitelist entries", count)
	}
	if err := s.whitelist.writeIfChanged(ctx); err != nil {
		log.WithError(err).Warn("failed to persist whitelist")
	}
}
