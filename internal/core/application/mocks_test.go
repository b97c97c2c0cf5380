package application

import (
	"context"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

type mockedBlockchain struct {
	mock.Mock
}

func (m *mockedBlockchain) GetTxOut(
	ctx context.Context, outpoint wire.OutPoint, includeMempool bool,
) (*ports.TxOutInfo, error) {
	args := m.Called(ctx, outpoint, includeMempool)

	var res *ports.TxOutInfo
	if a := args.Get(0); a != nil {
		res = a.(*ports.TxOutInfo)
	}
	return res, args.Error(1)
}

func (m *mockedBlockchain) GetRawTransaction(
	ctx context.Context, txid chainhash.Hash,
) (*wire.MsgTx, error) {
	args := m.Called(ctx, txid)

	var res *wire.MsgTx
	if a := args.Get(0); a != nil {
		res = a.(*wire.MsgTx)
	}
	return res, args.Error(1)
}

func (m *mockedBlockchain) SendRawTransaction(
	ctx context.Context, tx *wire.MsgTx,
) (*chainhash.Hash, error) {
	args := m.Called(ctx, tx)

	var res *chainhash.Hash
	if a := args.Get(0); a != nil {
		res = a.(*chainhash.Hash)
	}
	return res, args.Error(1)
}

func (m *mockedBlockchain) EstimateFeeRate(
	ctx context.Context, confTarget int64,
) (common.FeeRate, error) {
	args := m.Called(ctx, confTarget)
	return args.Get(0).(common.FeeRate), args.Error(1)
}

func (m *mockedBlockchain) Close() {
	m.Called()
}

type mockedRiskScoring struct {
	mock.Mock
}

func (m *mockedRiskScoring) CheckScripts(
	ctx context.Context, scripts [][]byte,
) (<-chan ports.ScriptCheckResult, error) {
	args := m.Called(ctx, scripts)

	if rf, ok := args.Get(0).(func(context.Context, [][]byte) <-chan ports.ScriptCheckResult); ok {
		return rf(ctx, scripts), args.Error(1)
	}
	var res <-chan ports.ScriptCheckResult
	if a := args.Get(0); a != nil {
		res = a.(<-chan ports.ScriptCheckResult)
	}
	return res, args.Error(1)
}

type mockedScheduler struct {
	mock.Mock
}

func (m *mockedScheduler) Start() {
	m.Called()
}

func (m *mockedScheduler) Stop() {
	m.Called()
}

func (m *mockedScheduler) ScheduleEvery(interval time.Duration, task func()) error {
	args := m.Called(interval, task)
	return args.Error(0)
}

func (m *mockedScheduler) ScheduleTaskOnce(at time.Time, task func()) error {
	args := m.Called(at, task)
	return args.Error(0)
}

type mockedEventBus struct {
	mock.Mock
}

func (m *mockedEventBus) Publish(
	ctx context.Context, topic, id string, events []domain.RoundEvent,
) error {
	args := m.Called(ctx, topic, id, events)
	return args.Error(0)
}

func (m *mockedEventBus) RegisterEventsHandler(
	topic string, handler func(events []domain.RoundEvent),
) {
	m.Called(topic, handler)
}

func (m *mockedEventBus) Close() {
	m.Called()
}

type mockedRepoManager struct {
	mock.Mock
}

func (m *mockedRepoManager) Prison() domain.PrisonRepository {
	args := m.Called()
	return args.Get(0).(domain.PrisonRepository)
}

func (m *mockedRepoManager) Whitelist() domain.WhitelistRepository {
	args := m.Called()
	return args.Get(0).(domain.WhitelistRepository)
}

func (m *mockedRepoManager) CoinJoins() domain.CoinJoinRepository {
	args := m.Called()
	return args.Get(0).(domain.CoinJoinRepository)
}

func (m *mockedRepoManager) Close() {
	m.Called()
}

type mockedPrisonRepo struct {
	mock.Mock
}

func (m *mockedPrisonRepo) Add(ctx context.Context, inmates ...domain.Inmate) error {
	args := m.Called(ctx, inmates)
	return args.Error(0)
}

func (m *mockedPrisonRepo) Get(
	ctx context.Context, outpoint wire.OutPoint,
) (*domain.Inmate, error) {
	args := m.Called(ctx, outpoint)

	var res *domain.Inmate
	if a := args.Get(0); a != nil {
		res = a.(*domain.Inmate)
	}
	return res, args.Error(1)
}

func (m *mockedPrisonRepo) GetAll(ctx context.Context) ([]domain.Inmate, error) {
	args := m.Called(ctx)

	var res []domain.Inmate
	if a := args.Get(0); a != nil {
		res = a.([]domain.Inmate)
	}
	return res, args.Error(1)
}

func (m *mockedPrisonRepo) Remove(ctx context.Context, outpoints ...wire.OutPoint) error {
	args := m.Called(ctx, outpoints)
	return args.Error(0)
}

func (m *mockedPrisonRepo) Close() {
	m.Called()
}

type mockedWhitelistRepo struct {
	mock.Mock
}

func (m *mockedWhitelistRepo) Get(
	ctx context.Context, outpoint wire.OutPoint,
) (*domain.WhitelistEntry, error) {
	args := m.Called(ctx, outpoint)

	var res *domain.WhitelistEntry
	if a := args.Get(0); a != nil {
		res = a.(*domain.WhitelistEntry)
	}
	return res, args.Error(1)
}

func (m *mockedWhitelistRepo) GetAll(ctx context.Context) ([]domain.WhitelistEntry, error) {
	args := m.Called(ctx)

	var res []domain.WhitelistEntry
	if a := args.Get(0); a != nil {
		res = a.([]domain.WhitelistEntry)
	}
	return res, args.Error(1)
}

func (m *mockedWhitelistRepo) Add(ctx context.Context, entries ...domain.WhitelistEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *mockedWhitelistRepo) ReplaceAll(
	ctx context.Context, entries []domain.WhitelistEntry,
) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *mockedWhitelistRepo) Close() {
	m.Called()
}

type mockedCoinJoinRepo struct {
	mock.Mock
}

func (m *mockedCoinJoinRepo) Add(ctx context.Context, coinjoin domain.CoinJoin) error {
	args := m.Called(ctx, coinjoin)
	return args.Error(0)
}

func (m *mockedCoinJoinRepo) ContainsTxid(ctx context.Context, txid chainhash.Hash) (bool, error) {
	args := m.Called(ctx, txid)
	return args.Bool(0), args.Error(1)
}

func (m *mockedCoinJoinRepo) ContainsScript(ctx context.Context, script []byte) (bool, error) {
	args := m.Called(ctx, script)
	return args.Bool(0), args.Error(1)
}

func (m *mockedCoinJoinRepo) Close() {
	m.Called()
}
