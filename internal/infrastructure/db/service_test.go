package db_test

import (
	"context"
	"crypto/rand"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/ark-network/wabisabi/internal/infrastructure/db"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				DataStoreType:   "badger",
				DataStoreConfig: []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				DataStoreType:   "sqlite",
				DataStoreConfig: []interface{}{t.TempDir()},
			},
		},
		{
			name: "repo_manager_with_badger_and_sqlite_whitelist",
			config: db.ServiceConfig{
				DataStoreType:        "badger",
				WhitelistStoreType:   "sqlite",
				DataStoreConfig:      []interface{}{t.TempDir(), nil},
				WhitelistStoreConfig: []interface{}{t.TempDir()},
			},
		},
	}

	if redisUrl := os.Getenv("REDIS_URL"); len(redisUrl) > 0 {
		tests = append(tests, struct {
			name   string
			config db.ServiceConfig
		}{
			name: "repo_manager_with_redis_whitelist",
			config: db.ServiceConfig{
				DataStoreType:        "badger",
				WhitelistStoreType:   "redis",
				DataStoreConfig:      []interface{}{"", nil},
				WhitelistStoreConfig: []interface{}{redisUrl},
			},
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testPrisonRepository(t, svc)
			testWhitelistRepository(t, svc)
			testCoinJoinRepository(t, svc)
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := db.NewService(db.ServiceConfig{
		DataStoreType:   "postgres",
		DataStoreConfig: []interface{}{"", nil},
	})
	require.Error(t, err)

	_, err = db.NewService(db.ServiceConfig{
		DataStoreType:      "badger",
		WhitelistStoreType: "memcached",
		DataStoreConfig:    []interface{}{"", nil},
	})
	require.Error(t, err)

	_, err = db.NewService(db.ServiceConfig{
		DataStoreType:   "sqlite",
		DataStoreConfig: []interface{}{42},
	})
	require.Error(t, err)
}

func testPrisonRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_prison_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Prison()

		op1, op2 := randomOutpoint(), randomOutpoint()

		inmate, err := repo.Get(ctx, op1)
		require.NoError(t, err)
		require.Nil(t, inmate)

		noted := domain.NewInmate(op1, "round1", domain.Noted, time.Hour)
		banned := domain.NewInmate(op2, "round1", domain.Banned, 24*time.Hour)
		err = repo.Add(ctx, noted, banned)
		require.NoError(t, err)

		inmate, err = repo.Get(ctx, op1)
		require.NoError(t, err)
		require.NotNil(t, inmate)
		requireSameInmate(t, noted, *inmate)

		inmates, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, inmates, 2)

		longBanned := domain.NewInmate(op1, "round2", domain.LongBanned, 30*24*time.Hour)
		err = repo.Add(ctx, longBanned)
		require.NoError(t, err)

		inmate, err = repo.Get(ctx, op1)
		require.NoError(t, err)
		require.NotNil(t, inmate)
		requireSameInmate(t, longBanned, *inmate)

		err = repo.Remove(ctx, op1, randomOutpoint())
		require.NoError(t, err)

		inmates, err = repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, inmates, 1)
		requireSameInmate(t, banned, inmates[0])

		require.NoError(t, repo.Add(ctx))
		require.NoError(t, repo.Remove(ctx))
	})
}

func testWhitelistRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_whitelist_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.Whitelist()

		entries := []domain.WhitelistEntry{
			newWhitelistEntry(), newWhitelistEntry(), newWhitelistEntry(),
		}
		err := repo.ReplaceAll(ctx, entries)
		require.NoError(t, err)

		entry, err := repo.Get(ctx, entries[0].Outpoint)
		require.NoError(t, err)
		require.NotNil(t, entry)
		require.Equal(t, entries[0].Outpoint, entry.Outpoint)
		require.Equal(t, entries[0].ExpiresAt.Unix(), entry.ExpiresAt.Unix())

		entry, err = repo.Get(ctx, randomOutpoint())
		require.NoError(t, err)
		require.Nil(t, entry)

		added := newWhitelistEntry()
		err = repo.Add(ctx, added)
		require.NoError(t, err)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, outpointsOf(append(entries, added)), outpointsOf(all))

		replacement := []domain.WhitelistEntry{entries[1], newWhitelistEntry()}
		err = repo.ReplaceAll(ctx, replacement)
		require.NoError(t, err)

		all, err = repo.GetAll(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, outpointsOf(replacement), outpointsOf(all))

		entry, err = repo.Get(ctx, entries[0].Outpoint)
		require.NoError(t, err)
		require.Nil(t, entry)

		err = repo.ReplaceAll(ctx, nil)
		require.NoError(t, err)

		all, err = repo.GetAll(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
	})
}

func testCoinJoinRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_coinjoin_repository", func(t *testing.T) {
		ctx := context.Background()
		repo := svc.CoinJoins()

		txid := randomHash()
		scripts := [][]byte{randomBytes(22), randomBytes(34)}

		ok, err := repo.ContainsTxid(ctx, txid)
		require.NoError(t, err)
		require.False(t, ok)

		err = repo.Add(ctx, domain.CoinJoin{
			Txid:        txid,
			Scripts:     scripts,
			BroadcastAt: time.Now(),
		})
		require.NoError(t, err)

		ok, err = repo.ContainsTxid(ctx, txid)
		require.NoError(t, err)
		require.True(t, ok)

		for _, script := range scripts {
			ok, err = repo.ContainsScript(ctx, script)
			require.NoError(t, err)
			require.True(t, ok)
		}

		ok, err = repo.ContainsScript(ctx, randomBytes(22))
		require.NoError(t, err)
		require.False(t, ok)

		// Adding the same coinjoin twice is a no-op.
		err = repo.Add(ctx, domain.CoinJoin{
			Txid:        txid,
			Scripts:     scripts,
			BroadcastAt: time.Now(),
		})
		require.NoError(t, err)
	})
}

func requireSameInmate(t *testing.T, expected, got domain.Inmate) {
	require.Equal(t, expected.Outpoint, got.Outpoint)
	require.Equal(t, expected.RoundId, got.RoundId)
	require.Equal(t, expected.Punishment, got.Punishment)
	require.True(t, expected.StartedAt.Equal(got.StartedAt))
	require.True(t, expected.ExpiresAt.Equal(got.ExpiresAt))
}

func newWhitelistEntry() domain.WhitelistEntry {
	now := time.Now()
	return domain.WhitelistEntry{
		Outpoint:  randomOutpoint(),
		ClearedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func outpointsOf(entries []domain.WhitelistEntry) []string {
	outpoints := make([]string, 0, len(entries))
	for _, e := range entries {
		outpoints = append(outpoints, e.Outpoint.String())
	}
	sort.Strings(outpoints)
	return outpoints
}

func randomOutpoint() wire.OutPoint {
	return wire.OutPoint{Hash: randomHash(), Index: uint32(randomBytes(1)[0])}
}

func randomHash() chainhash.Hash {
	var h chainhash.Hash
	copy(h[:], randomBytes(32))
	return h
}

func randomBytes(len int) []byte {
	buf := make([]byte, len)
	// nolint
	rand.Read(buf)
	return buf
}
