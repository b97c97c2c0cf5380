package domain

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/wire"
)

type WhitelistEntry struct {
	Outpoint  wire.OutPoint
	ClearedAt time.Time
	ExpiresAt time.Time
}

func (e WhitelistEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

type WhitelistRepository interface {
	Get(ctx context.Context, outpoint wire.OutPoint) (*WhitelistEntry, error)
	GetAll(ctx context.Context) ([]WhitelistEntry, error)
	Add(ctx context.Context, entries ...WhitelistEntry) error
	// ReplaceAll rewrites the whole whitelist with the given entries.
	ReplaceAll(ctx context.Context, entries []WhitelistEntry) error
	Close()
}
