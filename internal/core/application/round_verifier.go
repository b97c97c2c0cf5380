package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/ark-network/wabisabi/internal/instrument"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type VerifyOutcome int

const (
	OutcomeWhitelisted VerifyOutcome = iota
	OutcomeFromCoinjoin
	OutcomeOneHopExempt
	OutcomeRemoteCheckPass
	OutcomeRemoteCheckBan
	OutcomeRemoteCheckRemove
	OutcomeFault
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeWhitelisted:
		return "whitelisted"
	case OutcomeFromCoinjoin:
		return "from_coinjoin"
	case OutcomeOneHopExempt:
		return "one_hop_exempt"
	case OutcomeRemoteCheckPass:
		return "remote_check_pass"
	case OutcomeRemoteCheckBan:
		return "remote_check_ban"
	case OutcomeRemoteCheckRemove:
		return "remote_check_remove"
	default:
		return "fault"
	}
}

// CoinVerifyInfo is the verdict on a coin. ShouldBan implies ShouldRemove.
type CoinVerifyInfo struct {
	Coin         common.Coin
	Outcome      VerifyOutcome
	ShouldBan    bool
	ShouldRemove bool
	Reason       string
	Err          error
}

type CoinVerifierConfig struct {
	RiskFlags                  []string
	FailOpen                   bool
	StartBefore                time.Duration
	RequiredConfirmations      int64
	RequiredConfirmationAmount btcutil.Amount
	ItemTimeout                time.Duration
	BatchSize                  int
}

func (c CoinVerifierConfig) riskFlags() map[string]struct{} {
	flags := make(map[string]struct{}, len(c.RiskFlags))
	for _, f := range c.RiskFlags {
		flags[f] = struct{}{}
	}
	return flags
}

type verifierState int

const (
	verifierNotStarted verifierState = iota
	verifierStarted
	verifierClosed
	verifierFinished
)

var (
	errVerifierAlreadyStarted = fmt.Errorf("round verifier already started")
	errVerifierClosed         = fmt.Errorf("round verifier closed, can't add coins")
)

// verifyItem is a one-shot handle: done is closed once info is set.
type verifyItem struct {
	coin     common.Coin
	once     sync.Once
	done     chan struct{}
	info     CoinVerifyInfo
	consumed bool
}

func (i *verifyItem) isDone() bool {
	select {
	case <-i.done:
		return true
	default:
		return false
	}
}

// roundVerifier runs the risk checks for the coins of a single round.
// Coins can be added until the verifier is closed, the verifier finishes
// once every added coin got a verdict.
type roundVerifier struct {
	roundId string
	cfg     CoinVerifierConfig
	flags   map[string]struct{}

	chain     ports.BlockchainService
	risk      ports.RiskScoringService
	coinjoins domain.CoinJoinRepository
	whitelist *whitelist
	prison    *prison

	ctx    context.Context
	cancel context.CancelFunc

	lock     sync.Mutex
	state    verifierState
	items    []*verifyItem
	pending  []*verifyItem
	wake     chan struct{}
	finished chan struct{}
}

func newRoundVerifier(
	ctx context.Context, roundId string, cfg CoinVerifierConfig,
	chain ports.BlockchainService, risk ports.RiskScoringService,
	coinjoins domain.CoinJoinRepository, whitelist *whitelist, prison *prison,
) *roundVerifier {
	ctx, cancel := context.WithCancel(ctx)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &roundVerifier{
		roundId:   roundId,
		cfg:       cfg,
		flags:     cfg.riskFlags(),
		chain:     chain,
		risk:      risk,
		coinjoins: coinjoins,
		whitelist: whitelist,
		prison:    prison,
		ctx:       ctx,
		cancel:    cancel,
		items:     make([]*verifyItem, 0),
		pending:   make([]*verifyItem, 0),
		wake:      make(chan struct{}, 1),
		finished:  make(chan struct{}),
	}
}

func (v *roundVerifier) addCoin(coin common.Coin) (*verifyItem, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.state >= verifierClosed {
		return nil, errVerifierClosed
	}
	for _, item := range v.items {
		if item.coin.Outpoint == coin.Outpoint {
			return item, nil
		}
	}
	item := &verifyItem{coin: coin, done: make(chan struct{})}
	v.items = append(v.items, item)
	v.pending = append(v.pending, item)
	v.notify()
	return item, nil
}

func (v *roundVerifier) start() error {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.state != verifierNotStarted {
		return errVerifierAlreadyStarted
	}
	v.state = verifierStarted
	go v.run()
	v.notify()
	return nil
}

// close stops accepting coins. A verifier closed before being started still
// checks the coins it got.
func (v *roundVerifier) close() {
	v.lock.Lock()
	defer v.lock.Unlock()
	switch v.state {
	case verifierNotStarted:
		v.state = verifierClosed
		go v.run()
	case verifierStarted:
		v.state = verifierClosed
	default:
		return
	}
	v.notify()
}

func (v *roundVerifier) isFinished() bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.state == verifierFinished
}

func (v *roundVerifier) getItems() []*verifyItem {
	v.lock.Lock()
	defer v.lock.Unlock()
	return append([]*verifyItem{}, v.items...)
}

// stop aborts the pending checks and reports the unconsumed verdicts.
func (v *roundVerifier) stop() {
	v.cancel()
	v.lock.Lock()
	defer v.lock.Unlock()
	for _, item := range v.items {
		if item.isDone() && !item.consumed {
			instrument.VerificationDropped()
			log.WithField("round", v.roundId).Debugf(
				"dropping unread verification of %s: %s",
				item.coin.Outpoint, item.info.Outcome,
			)
		}
	}
}

func (v *roundVerifier) consume(item *verifyItem) CoinVerifyInfo {
	v.lock.Lock()
	defer v.lock.Unlock()
	item.consumed = true
	return item.info
}

func (v *roundVerifier) notify() {
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

func (v *roundVerifier) run() {
	defer close(v.finished)

	group := errgroup.Group{}
	for {
		select {
		case <-v.wake:
		case <-v.ctx.Done():
			v.lock.Lock()
			v.state = verifierFinished
			v.lock.Unlock()
			v.failPending(v.ctx.Err())
			return
		}

		v.lock.Lock()
		pending := v.pending
		v.pending = make([]*verifyItem, 0)
		closed := v.state == verifierClosed
		v.lock.Unlock()

		remote := make([]*verifyItem, 0, len(pending))
		for _, item := range pending {
			if info, done := v.checkLocally(item.coin); done {
				v.complete(item, info)
				continue
			}
			remote = append(remote, item)
		}

		for len(remote) > 0 {
			size := min(v.cfg.BatchSize, len(remote))
			batch := remote[:size]
			remote = remote[size:]
			group.Go(func() error {
				v.checkRemotely(batch)
				return nil
			})
		}

		if closed {
			// nolint:errcheck
			group.Wait()
			v.lock.Lock()
			v.state = verifierFinished
			v.lock.Unlock()
			return
		}
	}
}

func (v *roundVerifier) failPending(err error) {
	for _, item := range v.getItems() {
		if !item.isDone() {
			v.complete(item, v.fault(err))
		}
	}
}

func (v *roundVerifier) fault(err error) CoinVerifyInfo {
	return CoinVerifyInfo{
		Outcome:      OutcomeFault,
		ShouldRemove: !v.cfg.FailOpen,
		Reason:       "verification failed",
		Err:          err,
	}
}

// checkLocally returns the verdict for the coins that don't need to be
// checked against the risk scoring service.
func (v *roundVerifier) checkLocally(coin common.Coin) (CoinVerifyInfo, bool) {
	now := time.Now()
	if v.whitelist.contains(coin.Outpoint, now) {
		return CoinVerifyInfo{Outcome: OutcomeWhitelisted, Reason: "whitelisted"}, true
	}

	ctx, cancel := context.WithTimeout(v.ctx, v.cfg.ItemTimeout)
	defer cancel()

	isCoinjoin, err := v.coinjoins.ContainsTxid(ctx, coin.Outpoint.Hash)
	if err != nil {
		return v.fault(err), true
	}
	if isCoinjoin {
		return CoinVerifyInfo{Outcome: OutcomeFromCoinjoin, Reason: "coinjoin output"}, true
	}

	oneHop, err := v.isOneHopCoinjoin(ctx, coin)
	if err != nil {
		return v.fault(err), true
	}
	if oneHop {
		return CoinVerifyInfo{Outcome: OutcomeOneHopExempt, Reason: "spends coinjoin outputs only"}, true
	}

	if coin.Amount() >= v.cfg.RequiredConfirmationAmount {
		txOut, err := v.chain.GetTxOut(ctx, coin.Outpoint, true)
		if err != nil {
			return v.fault(err), true
		}
		if txOut == nil {
			return CoinVerifyInfo{
				Outcome:      OutcomeRemoteCheckRemove,
				ShouldRemove: true,
				Reason:       "coin is spent",
			}, true
		}
		if txOut.Confirmations < v.cfg.RequiredConfirmations {
			return CoinVerifyInfo{
				Outcome:      OutcomeRemoteCheckRemove,
				ShouldRemove: true,
				Reason: fmt.Sprintf(
					"%s with %d confirmations, %d required",
					coin.Amount(), txOut.Confirmations, v.cfg.RequiredConfirmations,
				),
			}, true
		}
	}
	return CoinVerifyInfo{}, false
}

func (v *roundVerifier) isOneHopCoinjoin(ctx context.Context, coin common.Coin) (bool, error) {
	tx, err := v.chain.GetRawTransaction(ctx, coin.Outpoint.Hash)
	if err != nil {
		return false, err
	}
	if tx == nil || len(tx.TxIn) <= 0 {
		return false, nil
	}
	for _, in := range tx.TxIn {
		ok, err := v.coinjoins.ContainsTxid(ctx, in.PreviousOutPoint.Hash)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (v *roundVerifier) checkRemotely(batch []*verifyItem) {
	ctx, cancel := context.WithTimeout(v.ctx, v.cfg.ItemTimeout)
	defer cancel()

	byScript := make(map[string][]*verifyItem)
	scripts := make([][]byte, 0, len(batch))
	for _, item := range batch {
		key := string(item.coin.Script())
		if _, ok := byScript[key]; !ok {
			scripts = append(scripts, item.coin.Script())
		}
		byScript[key] = append(byScript[key], item)
	}

	results, err := v.risk.CheckScripts(ctx, scripts)
	if err != nil {
		for _, item := range batch {
			v.complete(item, v.fault(err))
		}
		return
	}

	for {
		select {
		case res, ok := <-results:
			if !ok {
				v.completeMissing(batch, fmt.Errorf("no result from risk service"))
				return
			}
			for _, item := range byScript[string(res.Script)] {
				v.complete(item, v.verdict(res))
			}
			delete(byScript, string(res.Script))
		case <-ctx.Done():
			v.completeMissing(batch, ctx.Err())
			return
		}
	}
}

func (v *roundVerifier) completeMissing(batch []*verifyItem, err error) {
	for _, item := range batch {
		if !item.isDone() {
			v.complete(item, v.fault(err))
		}
	}
}

func (v *roundVerifier) verdict(res ports.ScriptCheckResult) CoinVerifyInfo {
	if res.Err != nil {
		return v.fault(res.Err)
	}
	for _, flag := range res.Flags {
		if _, ok := v.flags[flag]; ok {
			return CoinVerifyInfo{
				Outcome:   OutcomeRemoteCheckBan,
				ShouldBan: true,
				Reason:    fmt.Sprintf("flagged as %s", flag),
			}
		}
	}
	return CoinVerifyInfo{Outcome: OutcomeRemoteCheckPass, Reason: "passed risk checks"}
}

func (v *roundVerifier) complete(item *verifyItem, info CoinVerifyInfo) {
	item.once.Do(func() {
		info.Coin = item.coin
		if info.ShouldBan {
			info.ShouldRemove = true
		}

		switch info.Outcome {
		case OutcomeRemoteCheckPass:
			v.whitelist.add(item.coin.Outpoint)
		case OutcomeRemoteCheckBan:
			v.prison.punish(item.coin.Outpoint, v.roundId, domain.LongBanned)
		case OutcomeFault:
			log.WithError(info.Err).WithField("round", v.roundId).Warnf(
				"failed to verify coin %s", item.coin.Outpoint,
			)
		}
		instrument.CoinVerified(info.Outcome.String())

		v.lock.Lock()
		item.info = info
		v.lock.Unlock()
		close(item.done)
	})
}
