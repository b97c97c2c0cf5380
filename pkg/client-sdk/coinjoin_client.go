package wabisabisdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	"github.com/ark-network/wabisabi/pkg/client-sdk/decomposer"
	"github.com/ark-network/wabisabi/pkg/client-sdk/graph"
	"github.com/ark-network/wabisabi/pkg/client-sdk/wallet"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const removeInputsTimeout = 10 * time.Second

var (
	ErrNoCoins             = errors.New("no coins to join")
	ErrNoInputRegistered   = errors.New("no input could be registered")
	ErrNotEnoughRegistered = errors.New("registered amount below minimum")
	ErrMissingOutputs      = errors.New("unsigned transaction misses some of our outputs")
)

type Config struct {
	// Round status is polled every PollInterval to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	// Every alice waits up to MaxConfirmationJitter before confirming its
	// connection.
	MaxConfirmationJitter time.Duration
	// MinRegisteredAmount is the minimum value the registered inputs must
	// sum to for the attempt to go on.
	MinRegisteredAmount btcutil.Amount
}

var DefaultConfig = Config{
	PollInterval:          time.Second,
	MaxPollInterval:       5 * time.Second,
	MaxConfirmationJitter: time.Second,
}

type CoinJoinResult struct {
	RoundId string
	Success bool
	Txid    string
}

// CoinJoinClient takes a set of coins through one coinjoin round, from
// input registration to the broadcast of the transaction.
type CoinJoinClient struct {
	transport client.TransportClient
	wallet    wallet.Wallet
	cfg       Config
	rounds    *roundStateUpdater
	bus       *progressBus
}

func NewCoinJoinClient(
	transport client.TransportClient, wallet wallet.Wallet, cfg Config,
) *CoinJoinClient {
	return &CoinJoinClient{
		transport: transport,
		wallet:    wallet,
		cfg:       cfg,
		rounds:    newRoundStateUpdater(transport),
		bus:       &progressBus{},
	}
}

// Subscribe returns a channel of the progress events published from now on.
// The channel is closed by Close.
func (c *CoinJoinClient) Subscribe() <-chan ProgressEvent {
	return c.bus.subscribe()
}

func (c *CoinJoinClient) Close() {
	c.bus.close()
}

// StartCoinJoin registers the given coins in the next round and drives
// them until the round ends. Any failure abandons the attempt, a new call
// starts over with a fresh round.
func (c *CoinJoinClient) StartCoinJoin(
	ctx context.Context, coins []common.Coin,
) (*CoinJoinResult, error) {
	if len(coins) <= 0 {
		return nil, ErrNoCoins
	}

	state, err := c.rounds.await(ctx, c.pollInterval, func(r client.RoundState) bool {
		return r.Phase == client.PhaseInputRegistration && !r.IsBlameRound() &&
			time.Now().Before(r.InputRegistrationEnd)
	})
	if err != nil {
		return nil, err
	}
	roundId := state.Id
	c.bus.publish(RoundStarted{RoundId: roundId})
	c.bus.publish(EnteringInputRegistration{
		RoundId: roundId, TimeoutAt: state.InputRegistrationEnd,
	})
	log.Infof("joining round %s with %d coins", roundId, len(coins))

	arena := newArenaClient(c.transport, state)
	alices, err := c.registerInputs(ctx, arena, coins)
	if err != nil {
		return nil, err
	}

	result, err := c.playRound(ctx, arena, alices)
	if err != nil {
		c.removeInputs(arena, alices)
		return nil, fmt.Errorf("round %s: %w", roundId, err)
	}
	c.bus.publish(RoundEnded{
		RoundId: result.RoundId, Success: result.Success, Txid: result.Txid,
	})
	return result, nil
}

func (c *CoinJoinClient) registerInputs(
	ctx context.Context, arena *arenaClient, coins []common.Coin,
) ([]*alice, error) {
	lock := &sync.Mutex{}
	alices := make([]*alice, 0, len(coins))
	commitmentData := common.CommitmentData(arena.roundId)

	eg := &errgroup.Group{}
	for _, coin := range coins {
		coin := coin
		eg.Go(func() error {
			proof, err := c.wallet.OwnershipProof(coin, commitmentData)
			if err != nil {
				log.WithError(err).Warnf("failed to prove ownership of coin %s", coin)
				return nil
			}
			resp, err := arena.registerInput(ctx, coin, *proof)
			if err != nil {
				if client.IsProtocolError(err, coordinatorv1.ErrCodeInputBanned) {
					c.bus.publish(CoinBanned{Coin: coin, Reason: err.Error()})
				}
				log.WithError(err).Warnf("failed to register coin %s", coin)
				return nil
			}

			lock.Lock()
			defer lock.Unlock()
			alices = append(alices, &alice{
				id:                          resp.AliceId,
				coin:                        coin,
				isPayingZeroCoordinationFee: resp.IsPayingZeroCoordinationFee,
			})
			return nil
		})
	}
	//nolint:all
	eg.Wait()

	if len(alices) <= 0 {
		return nil, ErrNoInputRegistered
	}

	// Keep the coin order stable, the graph input nodes follow it.
	sort.SliceStable(alices, func(i, j int) bool {
		return alices[i].coin.Outpoint.String() < alices[j].coin.Outpoint.String()
	})

	var total btcutil.Amount
	for _, a := range alices {
		total += a.coin.Amount()
	}
	if total < c.cfg.MinRegisteredAmount {
		c.removeInputs(arena, alices)
		return nil, fmt.Errorf(
			"%w: %s < %s", ErrNotEnoughRegistered, total, c.cfg.MinRegisteredAmount,
		)
	}
	log.Debugf("registered %d/%d coins in round %s", len(alices), len(coins), arena.roundId)
	return alices, nil
}

func (c *CoinJoinClient) playRound(
	ctx context.Context, arena *arenaClient, alices []*alice,
) (*CoinJoinResult, error) {
	roundId := arena.roundId

	state, err := c.keepAlive(ctx, arena, alices)
	if err != nil {
		return nil, err
	}
	if state.Phase != client.PhaseConnectionConfirmation {
		return c.endOfRound(ctx, roundId)
	}
	c.bus.publish(EnteringConnectionConfirmation{
		RoundId: roundId, TimeoutAt: state.PhaseDeadline,
	})

	bob, resolver, err := c.planOutputs(ctx, arena, state, alices)
	if err != nil {
		return nil, err
	}
	if err := c.confirmConnections(ctx, arena, state, alices, resolver); err != nil {
		return nil, err
	}

	c.bus.publish(EnteringCriticalPhase{RoundId: roundId})
	defer c.bus.publish(LeavingCriticalPhase{RoundId: roundId})

	state, err = c.rounds.awaitRound(ctx, c.pollInterval, roundId, func(r client.RoundState) bool {
		return r.Phase != client.PhaseConnectionConfirmation
	})
	if err != nil {
		return nil, err
	}
	if state.Phase != client.PhaseOutputRegistration {
		return c.endOfRound(ctx, roundId)
	}
	c.bus.publish(EnteringOutputRegistration{
		RoundId: roundId, TimeoutAt: state.PhaseDeadline,
	})

	if err := resolver.Resolve(ctx); err != nil {
		return nil, err
	}
	eg, egCtx := errgroup.WithContext(ctx)
	for _, a := range alices {
		a := a
		eg.Go(func() error {
			return arena.readyToSign(egCtx, a.id)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	state, err = c.rounds.awaitRound(ctx, c.pollInterval, roundId, func(r client.RoundState) bool {
		return r.Phase != client.PhaseOutputRegistration
	})
	if err != nil {
		return nil, err
	}
	if state.Phase != client.PhaseTransactionSigning {
		return c.endOfRound(ctx, roundId)
	}

	if err := c.signTransaction(ctx, arena, state, alices, bob.outputs); err != nil {
		return nil, err
	}
	return c.endOfRound(ctx, roundId)
}

// keepAlive confirms the connection of every alice, with zero value, until
// input registration is over.
func (c *CoinJoinClient) keepAlive(
	ctx context.Context, arena *arenaClient, alices []*alice,
) (client.RoundState, error) {
	for {
		if err := c.rounds.refresh(ctx); err != nil {
			log.WithError(err).Warn("failed to get round status")
		}
		state, ok := c.rounds.get(arena.roundId)
		if !ok {
			return client.RoundState{}, fmt.Errorf("round %s not found", arena.roundId)
		}
		if state.Phase != client.PhaseInputRegistration {
			return state, nil
		}

		params := state.Parameters
		eg, egCtx := errgroup.WithContext(ctx)
		for _, a := range alices {
			a := a
			eg.Go(func() error {
				if err := sleep(egCtx, c.jitter()); err != nil {
					return err
				}
				value, err := a.effectiveValue(params)
				if err != nil {
					return err
				}
				vsize, err := a.remainingVsize(params)
				if err != nil {
					return err
				}
				amounts, vsizes, confirmed, err := arena.confirmConnection(
					egCtx, a.id, []int64{int64(value)}, []int64{vsize},
				)
				if err != nil {
					// The phase may have changed in the meantime.
					if client.IsProtocolError(err, coordinatorv1.ErrCodeWrongPhase) {
						return nil
					}
					return err
				}
				if confirmed {
					a.amounts, a.vsizes = amounts, vsizes
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return client.RoundState{}, err
		}

		if err := sleep(ctx, c.pollInterval()); err != nil {
			return client.RoundState{}, err
		}
	}
}

// planOutputs decomposes the value of the alices into outputs and builds
// the dependency graph routing the credentials to them.
func (c *CoinJoinClient) planOutputs(
	ctx context.Context, arena *arenaClient, state client.RoundState, alices []*alice,
) (*bobClient, *graph.Resolver, error) {
	params := state.Parameters

	inputs := make([]graph.Values, 0, len(alices))
	var total btcutil.Amount
	var availableVsize int64
	for i, a := range alices {
		value, err := a.effectiveValue(params)
		if err != nil {
			return nil, nil, err
		}
		vsize, err := a.remainingVsize(params)
		if err != nil {
			return nil, nil, err
		}
		a.node = i
		inputs = append(inputs, graph.Values{int64(value), vsize})
		total += value
		availableVsize += vsize
	}

	others := othersInputs(state.InputAmounts, alices)

	firstScript, err := c.wallet.NewScript(ctx)
	if err != nil {
		return nil, nil, err
	}
	outputVsize := common.OutputVsize(firstScript)
	d := decomposer.New(params.FeeRate, params.MinAmount, params.MaxAmount, outputVsize)
	maxValues := graph.Values{state.AmountIssuer.MaxValue, state.VsizeIssuer.MaxValue}

	// The graph may not be able to use all the vsize, retry with fewer
	// outputs if so.
	for ; availableVsize >= outputVsize; availableVsize -= outputVsize {
		amounts, err := d.Decompose(total, others, availableVsize)
		if err != nil {
			return nil, nil, err
		}

		outputs := make([]output, 0, len(amounts))
		targets := make([]graph.Values, 0, len(amounts))
		for i, amount := range amounts {
			script := firstScript
			if i > 0 {
				if script, err = c.wallet.NewScript(ctx); err != nil {
					return nil, nil, err
				}
			}
			outputs = append(outputs, output{script, amount})
			targets = append(targets, graph.Values{
				int64(common.EffectiveOutputCost(amount, script, params.FeeRate)),
				common.OutputVsize(script),
			})
		}

		g, err := graph.New(inputs, targets, maxValues)
		if errors.Is(err, graph.ErrInsufficientValue) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		log.Debugf(
			"round %s: %d outputs, %d reissuances", arena.roundId, len(outputs),
			len(g.NodesOfKind(graph.ReissuanceNode)),
		)
		bob := &bobClient{arena, outputs}
		return bob, graph.NewResolver(g, bob), nil
	}
	return nil, nil, fmt.Errorf("not enough vsize for any output")
}

func othersInputs(amounts []int64, alices []*alice) []btcutil.Amount {
	own := make(map[int64]int)
	for _, a := range alices {
		own[a.coin.TxOut.Value]++
	}
	others := make([]btcutil.Amount, 0, len(amounts))
	for _, amount := range amounts {
		if own[amount] > 0 {
			own[amount]--
			continue
		}
		others = append(others, btcutil.Amount(amount))
	}
	return others
}

// confirmConnections gets the real credentials of every alice, with the
// values its graph input node needs.
func (c *CoinJoinClient) confirmConnections(
	ctx context.Context, arena *arenaClient, state client.RoundState,
	alices []*alice, resolver *graph.Resolver,
) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, a := range alices {
		a := a
		eg.Go(func() error {
			g := resolver.Graph()
			amountValues := g.RequestedValues(a.node, credential.AmountType)
			vsizeValues := g.RequestedValues(a.node, credential.VsizeType)

			if len(a.amounts) > 0 {
				amounts, vsizes, err := arena.Reissue(
					egCtx, a.amounts, a.vsizes, amountValues, vsizeValues,
				)
				if err != nil {
					return fmt.Errorf("failed to reissue credentials of coin %s: %w", a.coin, err)
				}
				return resolver.SetInputCredentials(a.node, amounts, vsizes)
			}

			if err := sleep(egCtx, c.jitter()); err != nil {
				return err
			}
			amounts, vsizes, confirmed, err := arena.confirmConnection(
				egCtx, a.id, amountValues, vsizeValues,
			)
			if err != nil {
				return fmt.Errorf("failed to confirm coin %s: %w", a.coin, err)
			}
			if !confirmed {
				return fmt.Errorf("coin %s: round %s not in connection confirmation", a.coin, state.Id)
			}
			return resolver.SetInputCredentials(a.node, amounts, vsizes)
		})
	}
	return eg.Wait()
}

// signTransaction checks that the coordinator's transaction pays all the
// outputs and signs every input. Inputs fail independently.
func (c *CoinJoinClient) signTransaction(
	ctx context.Context, arena *arenaClient, state client.RoundState,
	alices []*alice, outputs []output,
) error {
	tx := state.UnsignedTx
	if tx == nil {
		return fmt.Errorf("missing unsigned transaction")
	}
	expected := make([]*wire.TxOut, 0, len(outputs))
	for _, o := range outputs {
		expected = append(expected, wire.NewTxOut(int64(o.amount), o.script))
	}
	if !common.ContainsOutputs(tx, expected) {
		return ErrMissingOutputs
	}
	prevouts := state.PrevoutsByOutpoint()
	if prevouts == nil {
		return fmt.Errorf("missing prevouts of unsigned transaction")
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevouts)

	lock := &sync.Mutex{}
	errs := make([]error, 0)
	eg := &errgroup.Group{}
	for _, a := range alices {
		a := a
		eg.Go(func() error {
			err := c.signInput(ctx, arena, tx, fetcher, a)
			if err != nil {
				log.WithError(err).Warnf("failed to sign coin %s", a.coin)
				lock.Lock()
				errs = append(errs, err)
				lock.Unlock()
			}
			return nil
		})
	}
	//nolint:all
	eg.Wait()

	if len(errs) == len(alices) {
		return errors.Join(errs...)
	}
	return nil
}

func (c *CoinJoinClient) signInput(
	ctx context.Context, arena *arenaClient, tx *wire.MsgTx,
	fetcher txscript.PrevOutputFetcher, a *alice,
) error {
	index := -1
	for i, in := range tx.TxIn {
		if in.PreviousOutPoint == a.coin.Outpoint {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("coin %s not in transaction", a.coin)
	}
	prevout := fetcher.FetchPrevOutput(a.coin.Outpoint)
	if prevout == nil || prevout.Value != a.coin.TxOut.Value ||
		!bytes.Equal(prevout.PkScript, a.coin.Script()) {
		return fmt.Errorf("coin %s: prevout mismatch", a.coin)
	}

	witness, err := c.wallet.SignInput(tx, index, fetcher)
	if err != nil {
		return err
	}
	return c.transport.SignTransaction(ctx, arena.roundId, index, witness)
}

// endOfRound waits for the round to end and reports how it went.
func (c *CoinJoinClient) endOfRound(
	ctx context.Context, roundId string,
) (*CoinJoinResult, error) {
	state, err := c.rounds.awaitRound(ctx, c.pollInterval, roundId, func(r client.RoundState) bool {
		return r.Phase == client.PhaseEnded
	})
	if err != nil {
		return nil, err
	}
	if !state.WasTransactionBroadcast() {
		log.Infof("round %s ended without coinjoin: %s", roundId, state.EndRoundState)
	}
	return &CoinJoinResult{
		RoundId: roundId,
		Success: state.WasTransactionBroadcast(),
		Txid:    state.Txid,
	}, nil
}

func (c *CoinJoinClient) removeInputs(arena *arenaClient, alices []*alice) {
	ctx, cancel := context.WithTimeout(context.Background(), removeInputsTimeout)
	defer cancel()

	for _, a := range alices {
		if err := arena.removeInput(ctx, a.id); err != nil {
			log.WithError(err).Debugf("failed to remove coin %s", a.coin)
		}
	}
}

func (c *CoinJoinClient) pollInterval() time.Duration {
	spread := c.cfg.MaxPollInterval - c.cfg.PollInterval
	if spread <= 0 {
		return c.cfg.PollInterval
	}
	return c.cfg.PollInterval + rand.N(spread)
}

func (c *CoinJoinClient) jitter() time.Duration {
	if c.cfg.MaxConfirmationJitter <= 0 {
		return 0
	}
	return rand.N(c.cfg.MaxConfirmationJitter)
}
