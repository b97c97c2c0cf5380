package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/redis/go-redis/v9"
)

const whitelistKeyPrefix = "whitelist:"

type whitelistEntryDTO struct {
	Txid      string `json:"txid"`
	VOut      uint32 `json:"vout"`
	ClearedAt int64  `json:"clearedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// whitelistRepository keeps every entry under its own key and lets redis
// expire it when its ttl elapses.
type whitelistRepository struct {
	rdb *redis.Client
}

func NewWhitelistRepository(config ...interface{}) (domain.WhitelistRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}

	var rdb *redis.Client
	switch v := config[0].(type) {
	case *redis.Client:
		rdb = v
	case string:
		opts, err := redis.ParseURL(v)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
	default:
		return nil, fmt.Errorf("invalid config, expected redis url or client at 0")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &whitelistRepository{rdb}, nil
}

func (r *whitelistRepository) Get(
	ctx context.Context, outpoint wire.OutPoint,
) (*domain.WhitelistEntry, error) {
	val, err := r.rdb.Get(ctx, key(outpoint)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(val)
}

func (r *whitelistRepository) GetAll(ctx context.Context) ([]domain.WhitelistEntry, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) <= 0 {
		return nil, nil
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.WhitelistEntry, 0, len(vals))
	for _, v := range vals {
		// Expired between scan and mget.
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected value type %T", v)
		}
		entry, err := decodeEntry(s)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (r *whitelistRepository) Add(ctx context.Context, entries ...domain.WhitelistEntry) error {
	if len(entries) <= 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return setEntries(ctx, pipe, entries)
	})
	return err
}

func (r *whitelistRepository) ReplaceAll(
	ctx context.Context, entries []domain.WhitelistEntry,
) error {
	keys, err := r.keys(ctx)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return setEntries(ctx, pipe, entries)
	})
	return err
}

func (r *whitelistRepository) Close() {
	_ = r.rdb.Close()
}

func (r *whitelistRepository) keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	iter := r.rdb.Scan(ctx, 0, whitelistKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func setEntries(
	ctx context.Context, pipe redis.Pipeliner, entries []domain.WhitelistEntry,
) error {
	now := time.Now()
	for _, entry := range entries {
		ttl := entry.ExpiresAt.Sub(now)
		if ttl <= 0 {
			continue
		}
		buf, err := json.Marshal(whitelistEntryDTO{
			Txid:      entry.Outpoint.Hash.String(),
			VOut:      entry.Outpoint.Index,
			ClearedAt: entry.ClearedAt.UnixNano(),
			ExpiresAt: entry.ExpiresAt.UnixNano(),
		})
		if err != nil {
			return err
		}
		pipe.Set(ctx, key(entry.Outpoint), buf, ttl)
	}
	return nil
}

func decodeEntry(val string) (*domain.WhitelistEntry, error) {
	var dto whitelistEntryDTO
	if err := json.Unmarshal([]byte(val), &dto); err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(dto.Txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %s: %w", dto.Txid, err)
	}
	return &domain.WhitelistEntry{
		Outpoint:  wire.OutPoint{Hash: *hash, Index: dto.VOut},
		ClearedAt: time.Unix(0, dto.ClearedAt),
		ExpiresAt: time.Unix(0, dto.ExpiresAt),
	}, nil
}

func key(outpoint wire.OutPoint) string {
	return whitelistKeyPrefix + outpoint.String()
}
