package domain

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/wire"
)

const (
	Noted Punishment = iota
	Banned
	LongBanned
)

type Punishment int

func (p Punishment) String() string {
	switch p {
	case Noted:
		return "NOTED"
	case Banned:
		return "BANNED"
	case LongBanned:
		return "LONG_BANNED"
	default:
		return "UNKNOWN"
	}
}

type Inmate struct {
	Outpoint   wire.OutPoint
	RoundId    string
	Punishment Punishment
	StartedAt  time.Time
	ExpiresAt  time.Time
}

func NewInmate(
	outpoint wire.OutPoint, roundId string, punishment Punishment,
	duration time.Duration,
) Inmate {
	now := time.Now()
	return Inmate{
		Outpoint:   outpoint,
		RoundId:    roundId,
		Punishment: punishment,
		StartedAt:  now,
		ExpiresAt:  now.Add(duration),
	}
}

func (i Inmate) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Harsher tells whether the inmate record should replace the other one for
// the same outpoint. Bans are never softened nor shortened.
func (i Inmate) Harsher(other Inmate) bool {
	if i.Punishment != other.Punishment {
		return i.Punishment > other.Punishment
	}
	return i.ExpiresAt.After(other.ExpiresAt)
}

type PrisonRepository interface {
	Add(ctx context.Context, inmates ...Inmate) error
	Get(ctx context.Context, outpoint wire.OutPoint) (*Inmate, error)
	GetAll(ctx context.Context) ([]Inmate, error)
	Remove(ctx context.Context, outpoints ...wire.OutPoint) error
	Close()
}
