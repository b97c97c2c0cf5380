package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/ark-network/wabisabi/internal/instrument"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

const (
	endedRoundRetention = 2 * time.Minute
	maintenanceInterval = time.Minute
	feeRateConfTarget   = 2
)

type Config struct {
	// Parameters is the template for the parameters of every new round. A
	// zero fee rate means the fee rate is estimated by the node.
	Parameters                    domain.RoundParameters
	RoundStepInterval             time.Duration
	BlameInputRegistrationTimeout time.Duration
	AllowNotedInputRegistration   bool
	Punishments                   PunishmentDurations
	WhitelistTTL                  time.Duration
	CoinVerifier                  CoinVerifierConfig
}

type service struct {
	cfg Config

	repoManager ports.RepoManager
	chain       ports.BlockchainService
	scheduler   ports.SchedulerService
	eventBus    ports.EventBus

	rounds    *roundRegistry
	prison    *prison
	whitelist *whitelist
	verifier  *coinVerifier

	stepLock sync.Mutex
}

func NewService(
	cfg Config, repoManager ports.RepoManager, chain ports.BlockchainService,
	risk ports.RiskScoringService, scheduler ports.SchedulerService,
	eventBus ports.EventBus,
) (Service, error) {
	ctx := context.Background()

	prison, err := newPrison(ctx, repoManager.Prison(), cfg.Punishments)
	if err != nil {
		return nil, fmt.Errorf("failed to load prison: %s", err)
	}
	whitelist, err := newWhitelist(ctx, repoManager.Whitelist(), cfg.WhitelistTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to load whitelist: %s", err)
	}

	svc := &service{
		cfg:         cfg,
		repoManager: repoManager,
		chain:       chain,
		scheduler:   scheduler,
		eventBus:    eventBus,
		rounds:      newRoundRegistry(),
		prison:      prison,
		whitelist:   whitelist,
		verifier: newCoinVerifier(
			cfg.CoinVerifier, chain, risk, repoManager.CoinJoins(), whitelist, prison,
		),
	}

	eventBus.RegisterEventsHandler(domain.RoundTopic, svc.onRoundEvents)

	return svc, nil
}

func (s *service) Start() error {
	log.Debug("starting coordinator...")

	s.scheduler.Start()
	if err := s.scheduler.ScheduleEvery(s.cfg.RoundStepInterval, s.step); err != nil {
		return err
	}
	if err := s.scheduler.ScheduleEvery(maintenanceInterval, s.maintain); err != nil {
		return err
	}

	s.step()
	return nil
}

func (s *service) Stop() {
	ctx := context.Background()

	s.scheduler.Stop()
	log.Debug("stopped scheduler")
	s.verifier.stop()
	log.Debug("stopped coin verifier")

	if err := s.prison.flushIfChanged(ctx); err != nil {
		log.WithError(err).Warn("failed to persist prison")
	}
	if err := s.whitelist.writeIfChanged(ctx); err != nil {
		log.WithError(err).Warn("failed to persist whitelist")
	}

	s.eventBus.Close()
	s.chain.Close()
	log.Debug("closed connection to node")
	s.repoManager.Close()
	log.Debug("closed connection to db")
}

func (s *service) RegisterInput(
	ctx context.Context, req InputRegistrationRequest,
) (*InputRegistrationResponse, error) {
	entry, err := s.rounds.get(req.RoundId)
	if err != nil {
		return nil, err
	}

	if inmate, ok := s.prison.get(req.Outpoint); ok {
		if inmate.Punishment != domain.Noted || !s.cfg.AllowNotedInputRegistration {
			return nil, domain.NewProtocolError(
				domain.ErrInputBanned, "input %s banned until %s",
				req.Outpoint, inmate.ExpiresAt.Format(time.RFC3339),
			)
		}
	}

	coin, err := s.getCoin(ctx, req.Outpoint)
	if err != nil {
		return nil, err
	}

	if err := s.rounds.claim(req.Outpoint, req.RoundId); err != nil {
		return nil, err
	}
	registered := false
	defer func() {
		if !registered {
			s.rounds.release(req.Outpoint)
		}
	}()

	isPayingZeroCoordinationFee, err := s.isPayingZeroCoordinationFee(ctx, req.Outpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to check coordination fee exemption: %s", err)
	}

	var resp *InputRegistrationResponse
	events, err := entry.with(func(round *domain.Round) error {
		if round.Phase == domain.InputRegistration &&
			!time.Now().Before(round.InputRegistrationEnd()) {
			return domain.NewProtocolError(
				domain.ErrWrongPhase, "round %s: input registration is over", round.Id,
			)
		}
		if err := round.ValidateInput(*coin); err != nil {
			return err
		}

		if err := common.VerifyOwnershipProof(
			&req.OwnershipProof, *coin, common.CommitmentData(round.Id),
		); err != nil {
			return domain.NewProtocolError(domain.ErrWrongOwnershipProof, "%s", err)
		}

		alice, err := domain.NewAlice(*coin, req.OwnershipProof, isPayingZeroCoordinationFee)
		if err != nil {
			return err
		}
		if err := validateAliceAmounts(round.Parameters, alice); err != nil {
			return err
		}

		if !req.ZeroAmountCredentials.IsNullRequest() ||
			!req.ZeroVsizeCredentials.IsNullRequest() {
			return domain.NewProtocolError(
				domain.ErrCredentialCheating, "input registration only accepts null requests",
			)
		}
		amountResp, err := round.AmountIssuer.PrepareResponse(req.ZeroAmountCredentials)
		if err != nil {
			return credentialError(err)
		}
		vsizeResp, err := round.VsizeIssuer.PrepareResponse(req.ZeroVsizeCredentials)
		if err != nil {
			return credentialError(err)
		}

		if err := round.ValidateAlice(alice); err != nil {
			return err
		}
		creds, err := credential.CommitAll(amountResp, vsizeResp)
		if err != nil {
			return credentialError(err)
		}

		// The verifier is closed once the round is about to leave input
		// registration, a coin it can't check is not let in.
		if err := s.verifier.addCoin(round.Id, *coin); err != nil {
			if !s.cfg.CoinVerifier.FailOpen {
				return domain.NewProtocolError(
					domain.ErrWrongPhase, "round %s: input registration is over", round.Id,
				)
			}
			log.WithError(err).WithField("round", round.Id).Warnf(
				"coin %s registered without verification", coin.Outpoint,
			)
		}

		alice.SetDeadlineRelativeTo(round.Parameters.ConnectionConfirmationTimeout)
		if err := round.RegisterAlice(alice); err != nil {
			return err
		}

		resp = &InputRegistrationResponse{
			AliceId:                     alice.Id,
			AmountCredentials:           creds[0],
			VsizeCredentials:            creds[1],
			IsPayingZeroCoordinationFee: alice.IsPayingZeroCoordinationFee,
		}
		return nil
	})
	s.publish(ctx, req.RoundId, events)
	if err != nil {
		if domain.IsCheating(err) {
			s.prison.punish(req.Outpoint, req.RoundId, domain.Banned)
		}
		return nil, err
	}
	registered = true

	log.WithField("round", req.RoundId).Debugf("registered input %s", req.Outpoint)
	return resp, nil
}

func (s *service) RemoveInput(ctx context.Context, roundId, aliceId string) error {
	var outpoint wire.OutPoint
	events, err := s.rounds.withRound(roundId, func(round *domain.Round) error {
		if round.Phase != domain.InputRegistration {
			return domain.NewProtocolError(
				domain.ErrWrongPhase, "round %s: inputs can be removed only during input registration",
				round.Id,
			)
		}
		alice, err := round.GetAlice(aliceId)
		if err != nil {
			return err
		}
		outpoint = alice.Coin.Outpoint
		return round.RemoveAlice(aliceId, "removed by owner")
	})
	s.publish(ctx, roundId, events)
	if err != nil {
		return err
	}
	s.rounds.release(outpoint)
	return nil
}

func (s *service) ConfirmConnection(
	ctx context.Context, req ConnectionConfirmationRequest,
) (*ConnectionConfirmationResponse, error) {
	var (
		resp     *ConnectionConfirmationResponse
		outpoint *wire.OutPoint
	)
	events, err := s.rounds.withRound(req.RoundId, func(round *domain.Round) error {
		if round.Phase != domain.InputRegistration &&
			round.Phase != domain.ConnectionConfirmation {
			return domain.NewProtocolError(
				domain.ErrWrongPhase, "round %s: in phase %s", round.Id, round.Phase,
			)
		}
		alice, err := round.GetAlice(req.AliceId)
		if err != nil {
			return err
		}
		outpoint = &alice.Coin.Outpoint

		if alice.ConfirmedConnection {
			return domain.NewProtocolError(domain.ErrAliceAlreadyConfirmedConnection, "")
		}

		params := round.Parameters
		if -req.RealAmountCredentials.Delta != int64(alice.RemainingAmount(params)) {
			return domain.NewProtocolError(
				domain.ErrIncorrectRequestedAmountCredentials,
				"expected %d, got %d", alice.RemainingAmount(params),
				-req.RealAmountCredentials.Delta,
			)
		}
		if -req.RealVsizeCredentials.Delta != alice.RemainingVsize(params) {
			return domain.NewProtocolError(
				domain.ErrIncorrectRequestedVsizeCredentials,
				"expected %d, got %d", alice.RemainingVsize(params),
				-req.RealVsizeCredentials.Delta,
			)
		}

		zeroAmount, err := round.AmountIssuer.PrepareResponse(req.ZeroAmountCredentials)
		if err != nil {
			return credentialError(err)
		}
		zeroVsize, err := round.VsizeIssuer.PrepareResponse(req.ZeroVsizeCredentials)
		if err != nil {
			return credentialError(err)
		}

		// Before connection confirmation the Alice is only kept alive.
		if round.Phase == domain.InputRegistration {
			creds, err := credential.CommitAll(zeroAmount, zeroVsize)
			if err != nil {
				return credentialError(err)
			}
			alice.SetDeadlineRelativeTo(params.ConnectionConfirmationTimeout)
			resp = &ConnectionConfirmationResponse{
				ZeroAmountCredentials: creds[0],
				ZeroVsizeCredentials:  creds[1],
			}
			return nil
		}

		if err := round.ValidateConnectionConfirmation(alice.Id); err != nil {
			return err
		}

		realAmount, err := round.AmountIssuer.PrepareResponse(req.RealAmountCredentials)
		if err != nil {
			return credentialError(err)
		}
		realVsize, err := round.VsizeIssuer.PrepareResponse(req.RealVsizeCredentials)
		if err != nil {
			return credentialError(err)
		}

		creds, err := credential.CommitAll(zeroAmount, zeroVsize, realAmount, realVsize)
		if err != nil {
			return credentialError(err)
		}
		if err := round.ConfirmConnection(alice.Id); err != nil {
			return err
		}

		resp = &ConnectionConfirmationResponse{
			ZeroAmountCredentials: creds[0],
			ZeroVsizeCredentials:  creds[1],
			RealAmountCredentials: creds[2],
			RealVsizeCredentials:  creds[3],
		}
		return nil
	})
	s.publish(ctx, req.RoundId, events)
	if err != nil {
		if domain.IsCheating(err) && outpoint != nil {
			s.prison.punish(*outpoint, req.RoundId, domain.Banned)
		}
		return nil, err
	}
	return resp, nil
}

func (s *service) ReadyToSign(ctx context.Context, roundId, aliceId string) error {
	events, err := s.rounds.withRound(roundId, func(round *domain.Round) error {
		return round.SetReadyToSign(aliceId)
	})
	s.publish(ctx, roundId, events)
	return err
}

func (s *service) RegisterOutput(
	ctx context.Context, req OutputRegistrationRequest,
) (*OutputRegistrationResponse, error) {
	entry, err := s.rounds.get(req.RoundId)
	if err != nil {
		return nil, err
	}

	reused, err := s.repoManager.CoinJoins().ContainsScript(ctx, req.Script)
	if err != nil {
		return nil, fmt.Errorf("failed to check script reuse: %s", err)
	}
	if reused {
		return nil, domain.NewProtocolError(
			domain.ErrAlreadyRegisteredScript, "script already used in a previous coinjoin",
		)
	}

	var resp *OutputRegistrationResponse
	events, err := entry.with(func(round *domain.Round) error {
		if round.Phase != domain.OutputRegistration {
			return domain.NewProtocolError(
				domain.ErrWrongPhase, "round %s: in phase %s", round.Id, round.Phase,
			)
		}

		bob := domain.Bob{
			Script:           req.Script,
			CredentialAmount: btcutil.Amount(req.AmountCredentials.Delta),
		}
		if req.VsizeCredentials.Delta != bob.OutputVsize() {
			return domain.NewProtocolError(
				domain.ErrIncorrectRequestedVsizeCredentials,
				"expected %d, got %d", bob.OutputVsize(), req.VsizeCredentials.Delta,
			)
		}

		amountResp, err := round.AmountIssuer.PrepareResponse(req.AmountCredentials)
		if err != nil {
			return credentialError(err)
		}
		vsizeResp, err := round.VsizeIssuer.PrepareResponse(req.VsizeCredentials)
		if err != nil {
			return credentialError(err)
		}

		if err := round.ValidateOutput(bob); err != nil {
			return err
		}
		creds, err := credential.CommitAll(amountResp, vsizeResp)
		if err != nil {
			return credentialError(err)
		}
		if err := round.RegisterBob(bob); err != nil {
			return err
		}

		resp = &OutputRegistrationResponse{
			AmountCredentials: creds[0],
			VsizeCredentials:  creds[1],
		}
		return nil
	})
	s.publish(ctx, req.RoundId, events)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *service) ReissueCredentials(
	ctx context.Context, req ReissueCredentialRequest,
) (*ReissueCredentialResponse, error) {
	var resp *ReissueCredentialResponse
	_, err := s.rounds.withRound(req.RoundId, func(round *domain.Round) error {
		if round.Phase != domain.ConnectionConfirmation &&
			round.Phase != domain.OutputRegistration {
			return domain.NewProtocolError(
				domain.ErrWrongPhase, "round %s: in phase %s", round.Id, round.Phase,
			)
		}
		if req.RealAmountCredentials.Delta != 0 || req.RealVsizeCredentials.Delta != 0 {
			return domain.NewProtocolError(domain.ErrDeltaNotZero, "")
		}
		if len(req.RealAmountCredentials.Requested) != credential.K ||
			len(req.RealVsizeCredentials.Requested) != credential.K {
			return domain.NewProtocolError(domain.ErrWrongNumberOfCreds, "")
		}

		prepared := make([]*credential.PreparedResponse, 0, 4)
		for _, r := range []struct {
			issuer *credential.Issuer
			req    credential.Request
		}{
			{round.AmountIssuer, req.RealAmountCredentials},
			{round.VsizeIssuer, req.RealVsizeCredentials},
			{round.AmountIssuer, req.ZeroAmountCredentials},
			{round.VsizeIssuer, req.ZeroVsizeCredentials},
		} {
			p, err := r.issuer.PrepareResponse(r.req)
			if err != nil {
				return credentialError(err)
			}
			prepared = append(prepared, p)
		}

		responses, err := credential.CommitAll(prepared...)
		if err != nil {
			return credentialError(err)
		}
		resp = &ReissueCredentialResponse{
			RealAmountCredentials: responses[0],
			RealVsizeCredentials:  responses[1],
			ZeroAmountCredentials: responses[2],
			ZeroVsizeCredentials:  responses[3],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *service) SignTransaction(
	ctx context.Context, roundId string, inputIndex int, witness wire.TxWitness,
) error {
	var outpoint *wire.OutPoint
	events, err := s.rounds.withRound(roundId, func(round *domain.Round) error {
		if round.Signing != nil {
			tx := round.Signing.UnsignedTx()
			if inputIndex >= 0 && inputIndex < len(tx.TxIn) {
				outpoint = &tx.TxIn[inputIndex].PreviousOutPoint
			}
		}
		return round.AddWitness(inputIndex, witness)
	})
	s.publish(ctx, roundId, events)
	if err != nil {
		if domain.IsCheating(err) && outpoint != nil {
			s.prison.punish(*outpoint, roundId, domain.Banned)
		}
		return err
	}
	return nil
}

func (s *service) GetStatus(
	_ context.Context, checkpoints map[string]int,
) ([]RoundState, error) {
	states := make([]RoundState, 0)
	for _, entry := range s.rounds.all() {
		entry.lock.Lock()
		if entry.round.Version() > checkpoints[entry.round.Id] {
			states = append(states, newRoundState(entry.round))
		}
		entry.lock.Unlock()
	}
	return states, nil
}

func (s *service) ListInmates(_ context.Context) ([]domain.Inmate, error) {
	return s.prison.list(), nil
}

func (s *service) ListWhitelist(_ context.Context) ([]domain.WhitelistEntry, error) {
	return s.whitelist.list(), nil
}

func (s *service) getCoin(ctx context.Context, outpoint wire.OutPoint) (*common.Coin, error) {
	txOut, err := s.chain.GetTxOut(ctx, outpoint, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch input %s: %s", outpoint, err)
	}
	if txOut == nil {
		return nil, domain.NewProtocolError(domain.ErrInputSpent, "input %s", outpoint)
	}
	if txOut.Confirmations <= 0 {
		return nil, domain.NewProtocolError(domain.ErrInputUnconfirmed, "input %s", outpoint)
	}
	if txOut.IsCoinbase && txOut.Confirmations <= common.CoinbaseMaturity {
		return nil, domain.NewProtocolError(
			domain.ErrInputImmature, "input %s has %d confirmations",
			outpoint, txOut.Confirmations,
		)
	}
	coin := common.NewCoin(outpoint, txOut.TxOut.Value, txOut.TxOut.PkScript)
	return &coin, nil
}

// isPayingZeroCoordinationFee tells whether the coin is remixed, either as
// a coinjoin output or as the output of a tx spending coinjoin outputs only.
func (s *service) isPayingZeroCoordinationFee(
	ctx context.Context, outpoint wire.OutPoint,
) (bool, error) {
	coinjoins := s.repoManager.CoinJoins()
	ok, err := coinjoins.ContainsTxid(ctx, outpoint.Hash)
	if err != nil || ok {
		return ok, err
	}
	return isOneHopCoinjoin(ctx, s.chain, coinjoins, outpoint.Hash)
}

func isOneHopCoinjoin(
	ctx context.Context, chain ports.BlockchainService,
	coinjoins domain.CoinJoinRepository, txid chainhash.Hash,
) (bool, error) {
	tx, err := chain.GetRawTransaction(ctx, txid)
	if err != nil {
		return false, err
	}
	if tx == nil || len(tx.TxIn) <= 0 {
		return false, nil
	}
	for _, in := range tx.TxIn {
		ok, err := coinjoins.ContainsTxid(ctx, in.PreviousOutPoint.Hash)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func validateAliceAmounts(params domain.RoundParameters, alice *domain.Alice) error {
	amount := alice.Coin.Amount()
	if alice.RemainingAmount(params) <= 0 {
		return domain.NewProtocolError(
			domain.ErrUneconomicalInput, "input %s is worth less than its fees", alice.Coin,
		)
	}
	if amount < params.MinAmount {
		return domain.NewProtocolError(
			domain.ErrNotEnoughFunds, "%s is below the minimum of %s", amount, params.MinAmount,
		)
	}
	if params.MaxAmount > 0 && amount > params.MaxAmount {
		return domain.NewProtocolError(
			domain.ErrTooMuchFunds, "%s is above the maximum of %s", amount, params.MaxAmount,
		)
	}
	if alice.InputVsize > params.MaxVsizeAllocationPerAlice {
		return domain.NewProtocolError(
			domain.ErrTooMuchVsize, "input vsize %d above %d",
			alice.InputVsize, params.MaxVsizeAllocationPerAlice,
		)
	}
	return nil
}

func credentialError(err error) error {
	if errors.Is(err, credential.ErrWrongNumberOfCredentials) {
		return domain.NewProtocolError(domain.ErrWrongNumberOfCreds, "%s", err)
	}
	return domain.NewProtocolError(domain.ErrCredentialCheating, "%s", err)
}

func (s *service) publish(ctx context.Context, roundId string, events []domain.RoundEvent) {
	if len(events) <= 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, domain.RoundTopic, roundId, events); err != nil {
		log.WithError(err).WithField("round", roundId).Warn("failed to publish round events")
	}
}

func (s *service) onRoundEvents(events []domain.RoundEvent) {
	for _, event := range events {
		switch e := event.(type) {
		case domain.PhaseChanged:
			log.WithField("round", e.Id).Infof("round entered phase %s", e.Phase)
		case domain.RoundEnded:
			instrument.RoundEnded(e.State.String(), e.InputCount)
			log.WithField("round", e.Id).Infof("round ended: %s", e.State)
		}
	}
}
