package application

import (
	"context"
	"testing"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPrison(t *testing.T) {
	ctx := context.Background()
	outpoint := wire.OutPoint{Hash: randomHash(t)}

	repo := &mockedPrisonRepo{}
	repo.On("GetAll", mock.Anything).Return([]domain.Inmate{}, nil)
	repo.On("Add", mock.Anything, mock.MatchedBy(func(inmates []domain.Inmate) bool {
		return len(inmates) == 1 && inmates[0].Outpoint == outpoint &&
			inmates[0].Punishment == domain.LongBanned
	})).Return(nil).Once()
	repo.On("Remove", mock.Anything, []wire.OutPoint{outpoint}).Return(nil).Once()

	p, err := newPrison(ctx, repo, PunishmentDurations{
		Noted: time.Minute, Banned: time.Hour, LongBanned: 24 * time.Hour,
	})
	require.NoError(t, err)

	p.punish(outpoint, "r1", domain.Noted)
	p.punish(outpoint, "r2", domain.LongBanned)

	// Punishments are never softened.
	inmate := p.punish(outpoint, "r3", domain.Banned)
	require.Equal(t, domain.LongBanned, inmate.Punishment)
	require.Equal(t, "r2", inmate.RoundId)

	require.NoError(t, p.flushIfChanged(ctx))
	// Nothing changed since the last flush.
	require.NoError(t, p.flushIfChanged(ctx))

	require.Zero(t, p.releaseExpired(time.Now()))
	require.Equal(t, 1, p.releaseExpired(time.Now().Add(48*time.Hour)))
	_, ok := p.get(outpoint)
	require.False(t, ok)
	require.NoError(t, p.flushIfChanged(ctx))

	repo.AssertExpectations(t)
}

func TestWhitelist(t *testing.T) {
	ctx := context.Background()
	expired := domain.WhitelistEntry{
		Outpoint:  wire.OutPoint{Hash: randomHash(t)},
		ClearedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	outpoint := wire.OutPoint{Hash: randomHash(t)}

	repo := &mockedWhitelistRepo{}
	repo.On("GetAll", mock.Anything).Return([]domain.WhitelistEntry{expired}, nil)
	repo.On("ReplaceAll", mock.Anything, mock.MatchedBy(func(entries []domain.WhitelistEntry) bool {
		return len(entries) == 1 && entries[0].Outpoint == outpoint
	})).Return(nil).Once()

	w, err := newWhitelist(ctx, repo, time.Hour)
	require.NoError(t, err)
	require.False(t, w.contains(expired.Outpoint, time.Now()))

	// Nothing to write yet.
	require.NoError(t, w.writeIfChanged(ctx))

	w.add(outpoint)
	require.True(t, w.contains(outpoint, time.Now()))
	require.False(t, w.contains(outpoint, time.Now().Add(2*time.Hour)))

	require.NoError(t, w.writeIfChanged(ctx))
	require.NoError(t, w.writeIfChanged(ctx))

	repo.AssertExpectations(t)
}
