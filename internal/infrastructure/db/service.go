package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	badgerdb "github.com/ark-network/wabisabi/internal/infrastructure/db/badger"
	redisdb "github.com/ark-network/wabisabi/internal/infrastructure/db/redis"
	sqlitedb "github.com/ark-network/wabisabi/internal/infrastructure/db/sqlite"
)

var (
	prisonStoreTypes = map[string]func(...interface{}) (domain.PrisonRepository, error){
		"badger": badgerdb.NewPrisonRepository,
		"sqlite": sqlitedb.NewPrisonRepository,
	}
	coinjoinStoreTypes = map[string]func(...interface{}) (domain.CoinJoinRepository, error){
		"badger": badgerdb.NewCoinJoinRepository,
		"sqlite": sqlitedb.NewCoinJoinRepository,
	}
	whitelistStoreTypes = map[string]func(...interface{}) (domain.WhitelistRepository, error){
		"badger": badgerdb.NewWhitelistRepository,
		"sqlite": sqlitedb.NewWhitelistRepository,
		"redis":  redisdb.NewWhitelistRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	DataStoreType      string
	WhitelistStoreType string

	DataStoreConfig []interface{}
	// WhitelistStoreConfig defaults to DataStoreConfig if empty.
	WhitelistStoreConfig []interface{}
}

type service struct {
	prisonStore    domain.PrisonRepository
	whitelistStore domain.WhitelistRepository
	coinjoinStore  domain.CoinJoinRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	prisonStoreFactory, ok := prisonStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	coinjoinStoreFactory, ok := coinjoinStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	whitelistStoreType := config.WhitelistStoreType
	if len(whitelistStoreType) <= 0 {
		whitelistStoreType = config.DataStoreType
	}
	whitelistStoreFactory, ok := whitelistStoreTypes[whitelistStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid whitelist store type: %s", whitelistStoreType)
	}
	whitelistStoreConfig := config.WhitelistStoreConfig
	if len(whitelistStoreConfig) <= 0 {
		whitelistStoreConfig = config.DataStoreConfig
	}

	// All sqlite repositories share the same db.
	var sqliteDb *sql.DB
	resolveConfig := func(storeType string, storeConfig []interface{}) ([]interface{}, error) {
		if storeType != "sqlite" {
			return storeConfig, nil
		}
		if sqliteDb == nil {
			db, err := openSqlite(storeConfig)
			if err != nil {
				return nil, err
			}
			sqliteDb = db
		}
		return []interface{}{sqliteDb}, nil
	}

	dataStoreConfig, err := resolveConfig(config.DataStoreType, config.DataStoreConfig)
	if err != nil {
		return nil, err
	}
	whitelistStoreConfig, err = resolveConfig(whitelistStoreType, whitelistStoreConfig)
	if err != nil {
		return nil, err
	}

	prisonStore, err := prisonStoreFactory(dataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prison store: %w", err)
	}

	coinjoinStore, err := coinjoinStoreFactory(dataStoreConfig...)
	if err != nil {
		prisonStore.Close()
		return nil, fmt.Errorf("failed to create coinjoin store: %w", err)
	}

	whitelistStore, err := whitelistStoreFactory(whitelistStoreConfig...)
	if err != nil {
		prisonStore.Close()
		coinjoinStore.Close()
		return nil, fmt.Errorf("failed to create whitelist store: %w", err)
	}

	return &service{
		prisonStore:    prisonStore,
		whitelistStore: whitelistStore,
		coinjoinStore:  coinjoinStore,
	}, nil
}

func (s *service) Prison() domain.PrisonRepository {
	return s.prisonStore
}

func (s *service) Whitelist() domain.WhitelistRepository {
	return s.whitelistStore
}

func (s *service) CoinJoins() domain.CoinJoinRepository {
	return s.coinjoinStore
}

func (s *service) Close() {
	s.prisonStore.Close()
	s.whitelistStore.Close()
	s.coinjoinStore.Close()
}

func openSqlite(config []interface{}) (*sql.DB, error) {
	if len(config) != 1 {
		return nil, errors.New("invalid config")
	}

	baseDir, ok := config[0].(string)
	if !ok {
		return nil, errors.New("invalid config, expected base directory at 0")
	}

	db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
	if err != nil {
		return nil, err
	}

	if err := sqlitedb.MigrateDb(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}

	return db, nil
}
