package application

import (
	"context"
	"sync"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/instrument"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

type PunishmentDurations struct {
	Noted      time.Duration
	Banned     time.Duration
	LongBanned time.Duration
}

func (d PunishmentDurations) of(p domain.Punishment) time.Duration {
	switch p {
	case domain.Noted:
		return d.Noted
	case domain.LongBanned:
		return d.LongBanned
	default:
		return d.Banned
	}
}

// prison keeps the banned outpoints in memory and writes the changes to the
// repository in batches. A punishment can only get harsher until it
// expires.
type prison struct {
	lock      sync.RWMutex
	repo      domain.PrisonRepository
	durations PunishmentDurations
	inmates   map[wire.OutPoint]domain.Inmate

	changed  map[wire.OutPoint]struct{}
	released map[wire.OutPoint]struct{}
}

func newPrison(
	ctx context.Context, repo domain.PrisonRepository, durations PunishmentDurations,
) (*prison, error) {
	inmates, err := repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	p := &prison{
		repo:      repo,
		durations: durations,
		inmates:   make(map[wire.OutPoint]domain.Inmate, len(inmates)),
		changed:   make(map[wire.OutPoint]struct{}),
		released:  make(map[wire.OutPoint]struct{}),
	}
	for _, inmate := range inmates {
		p.inmates[inmate.Outpoint] = inmate
	}
	return p, nil
}

func (p *prison) get(outpoint wire.OutPoint) (domain.Inmate, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	inmate, ok := p.inmates[outpoint]
	if !ok || inmate.IsExpired(time.Now()) {
		return domain.Inmate{}, false
	}
	return inmate, true
}

func (p *prison) punish(
	outpoint wire.OutPoint, roundId string, punishment domain.Punishment,
) domain.Inmate {
	inmate := domain.NewInmate(
		outpoint, roundId, punishment, p.durations.of(punishment),
	)

	p.lock.Lock()
	defer p.lock.Unlock()

	if current, ok := p.inmates[outpoint]; ok &&
		!current.IsExpired(time.Now()) && !inmate.Harsher(current) {
		return current
	}
	p.inmates[outpoint] = inmate
	p.changed[outpoint] = struct{}{}
	delete(p.released, outpoint)
	instrument.Punished(punishment.String())

	log.WithField("round", roundId).Infof(
		"outpoint %s punished: %s until %s", outpoint, punishment,
		inmate.ExpiresAt.Format(time.RFC3339),
	)
	return inmate
}

func (p *prison) releaseExpired(now time.Time) int {
	p.lock.Lock()
	defer p.lock.Unlock()

	count := 0
	for op, inmate := range p.inmates {
		if inmate.IsExpired(now) {
			delete(p.inmates, op)
			delete(p.changed, op)
			p.released[op] = struct{}{}
			count++
		}
	}
	return count
}

func (p *prison) list() []domain.Inmate {
	p.lock.RLock()
	defer p.lock.RUnlock()
	inmates := make([]domain.Inmate, 0, len(p.inmates))
	for _, inmate := range p.inmates {
		inmates = append(inmates, inmate)
	}
	return inmates
}

// flushIfChanged persists what changed since the last flush, if anything.
func (p *prison) flushIfChanged(ctx context.Context) error {
	p.lock.Lock()
	changed := make([]domain.Inmate, 0, len(p.changed))
	for op := range p.changed {
		changed = append(changed, p.inmates[op])
	}
	released := make([]wire.OutPoint, 0, len(p.released))
	for op := range p.released {
		released = append(released, op)
	}
	p.changed = make(map[wire.OutPoint]struct{})
	p.released = make(map[wire.OutPoint]struct{})
	p.lock.Unlock()

	if len(changed) > 0 {
		if err := p.repo.Add(ctx, changed...); err != nil {
			p.markChanged(changed)
			return err
		}
	}
	if len(released) > 0 {
		if err := p.repo.Remove(ctx, released...); err != nil {
			return err
		}
	}
	return nil
}

func (p *prison) markChanged(inmates []domain.Inmate) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, inmate := range inmates {
		if _, ok := p.inmates[inmate.Outpoint]; ok {
			p.changed[inmate.Outpoint] = struct{}{}
		}
	}
}
