package wabisabisdk_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var testParams = client.RoundParameters{
	Network:                       &chaincfg.RegressionNetParams,
	FeeRate:                       common.FeeRate(10_000),
	MinInputCount:                 1,
	MaxInputCount:                 10,
	MinAmount:                     5_000,
	MaxAmount:                     10 * btcutil.SatoshiPerBitcoin,
	MaxVsizeAllocationPerAlice:    255,
	InputRegistrationTimeout:      time.Minute,
	ConnectionConfirmationTimeout: time.Minute,
	OutputRegistrationTimeout:     time.Minute,
	TransactionSigningTimeout:     time.Minute,
}

type fakeAlice struct {
	id        string
	coin      common.Coin
	keptAlive bool
	confirmed bool
	ready     bool
}

// fakeCoordinator plays a single round in process, advancing phases as soon
// as every registered alice did what the phase expects. It checks the
// credential requests the way the coordinator does.
type fakeCoordinator struct {
	lock sync.Mutex

	coins   map[wire.OutPoint]common.Coin
	banned  map[wire.OutPoint]struct{}
	others  []int64
	issuers [2]*credential.Issuer

	state   client.RoundState
	alices  []*fakeAlice
	outputs []*wire.TxOut
	tx      *wire.MsgTx
	signed  map[int]struct{}
}

func newFakeCoordinator(coins []common.Coin, others []int64) (*fakeCoordinator, error) {
	roundId := uuid.New().String()
	c := &fakeCoordinator{
		coins:  make(map[wire.OutPoint]common.Coin),
		banned: make(map[wire.OutPoint]struct{}),
		others: others,
		signed: make(map[int]struct{}),
	}
	for _, coin := range coins {
		c.coins[coin.Outpoint] = coin
	}
	maxValues := [2]int64{common.MaxAmountCredentialValue, common.MaxVsizeCredentialValue}
	for _, ct := range []credential.Type{credential.AmountType, credential.VsizeType} {
		issuer, err := credential.NewIssuer(ct, roundId, maxValues[ct])
		if err != nil {
			return nil, err
		}
		c.issuers[ct] = issuer
	}

	now := time.Now()
	c.state = client.RoundState{
		Id:                   roundId,
		Version:              1,
		Phase:                client.PhaseInputRegistration,
		Parameters:           testParams,
		AmountIssuer:         c.issuers[credential.AmountType].Parameters(),
		VsizeIssuer:          c.issuers[credential.VsizeType].Parameters(),
		InputRegistrationEnd: now.Add(time.Minute),
		PhaseDeadline:        now.Add(time.Minute),
	}
	return c, nil
}

func (c *fakeCoordinator) ban(outpoint wire.OutPoint) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.banned[outpoint] = struct{}{}
}

func (c *fakeCoordinator) setPhase(phase client.Phase) {
	c.state.Phase = phase
	c.state.Version++
	c.state.PhaseDeadline = time.Now().Add(time.Minute)
}

func (c *fakeCoordinator) alice(id string) (*fakeAlice, error) {
	for _, a := range c.alices {
		if a.id == id {
			return a, nil
		}
	}
	return nil, &client.ProtocolError{Code: coordinatorv1.ErrCodeAliceNotFound}
}

func (c *fakeCoordinator) wrongPhase() error {
	return &client.ProtocolError{
		Code: coordinatorv1.ErrCodeWrongPhase, Msg: string(c.state.Phase),
	}
}

func (c *fakeCoordinator) handle(ct credential.Type, req credential.Request) (*credential.Response, error) {
	return c.issuers[ct].HandleRequest(req)
}

func (c *fakeCoordinator) RegisterInput(
	_ context.Context, roundId string, outpoint wire.OutPoint,
	proof common.OwnershipProof, zeroAmount, zeroVsize credential.Request,
) (*client.InputRegistration, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if roundId != c.state.Id {
		return nil, &client.ProtocolError{Code: coordinatorv1.ErrCodeRoundNotFound}
	}
	if c.state.Phase != client.PhaseInputRegistration {
		return nil, c.wrongPhase()
	}
	if _, ok := c.banned[outpoint]; ok {
		return nil, &client.ProtocolError{Code: coordinatorv1.ErrCodeInputBanned, Msg: outpoint.String()}
	}
	coin, ok := c.coins[outpoint]
	if !ok {
		return nil, fmt.Errorf("unknown coin %s", outpoint)
	}
	if err := common.VerifyOwnershipProof(&proof, coin, common.CommitmentData(roundId)); err != nil {
		return nil, err
	}
	if !zeroAmount.IsNullRequest() || !zeroVsize.IsNullRequest() {
		return nil, credential.ErrNotNullRequest
	}

	amounts, err := c.handle(credential.AmountType, zeroAmount)
	if err != nil {
		return nil, err
	}
	vsizes, err := c.handle(credential.VsizeType, zeroVsize)
	if err != nil {
		return nil, err
	}

	a := &fakeAlice{id: uuid.New().String(), coin: coin}
	c.alices = append(c.alices, a)
	c.state.InputAmounts = append(c.state.InputAmounts, coin.TxOut.Value)
	c.state.Version++
	return &client.InputRegistration{
		AliceId:           a.id,
		AmountCredentials: amounts,
		VsizeCredentials:  vsizes,
	}, nil
}

func (c *fakeCoordinator) RemoveInput(_ context.Context, _, aliceId string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	for i, a := range c.alices {
		if a.id == aliceId {
			c.alices = append(c.alices[:i], c.alices[i+1:]...)
			return nil
		}
	}
	return &client.ProtocolError{Code: coordinatorv1.ErrCodeAliceNotFound}
}

func (c *fakeCoordinator) ConfirmConnection(
	_ context.Context, req client.ConnectionConfirmation,
) (*client.ConnectionConfirmationResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	a, err := c.alice(req.AliceId)
	if err != nil {
		return nil, err
	}
	phase := c.state.Phase
	if phase != client.PhaseInputRegistration && phase != client.PhaseConnectionConfirmation {
		return nil, c.wrongPhase()
	}

	value, err := common.EffectiveInputValue(
		a.coin, testParams.FeeRate, testParams.CoordinationFeeRate, false,
	)
	if err != nil {
		return nil, err
	}
	inputVsize, err := common.InputVsize(a.coin.Script())
	if err != nil {
		return nil, err
	}
	if -req.RealAmountCredentials.Delta != int64(value) {
		return nil, fmt.Errorf("amount delta %d, expected %d", req.RealAmountCredentials.Delta, -value)
	}
	if -req.RealVsizeCredentials.Delta != testParams.MaxVsizeAllocationPerAlice-inputVsize {
		return nil, fmt.Errorf("wrong vsize delta %d", req.RealVsizeCredentials.Delta)
	}

	resp := &client.ConnectionConfirmationResult{}
	if resp.ZeroAmountCredentials, err = c.handle(credential.AmountType, req.ZeroAmountCredentials); err != nil {
		return nil, err
	}
	if resp.ZeroVsizeCredentials, err = c.handle(credential.VsizeType, req.ZeroVsizeCredentials); err != nil {
		return nil, err
	}

	if phase == client.PhaseInputRegistration {
		a.keptAlive = true
		if c.all(func(a *fakeAlice) bool { return a.keptAlive }) && len(c.alices) == len(c.coins)-len(c.banned) {
			c.state.InputAmounts = append(c.state.InputAmounts, c.others...)
			c.setPhase(client.PhaseConnectionConfirmation)
		}
		return resp, nil
	}

	if a.confirmed {
		return nil, fmt.Errorf("alice %s already confirmed", a.id)
	}
	if resp.RealAmountCredentials, err = c.handle(credential.AmountType, req.RealAmountCredentials); err != nil {
		return nil, err
	}
	if resp.RealVsizeCredentials, err = c.handle(credential.VsizeType, req.RealVsizeCredentials); err != nil {
		return nil, err
	}
	a.confirmed = true
	if c.all(func(a *fakeAlice) bool { return a.confirmed }) {
		c.setPhase(client.PhaseOutputRegistration)
	}
	return resp, nil
}

func (c *fakeCoordinator) ReadyToSign(_ context.Context, _, aliceId string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	a, err := c.alice(aliceId)
	if err != nil {
		return err
	}
	if c.state.Phase != client.PhaseOutputRegistration {
		return c.wrongPhase()
	}
	a.ready = true
	if !c.all(func(a *fakeAlice) bool { return a.ready }) {
		return nil
	}

	tx := wire.NewMsgTx(2)
	prevouts := make([]*wire.TxOut, 0, len(c.alices))
	for _, a := range c.alices {
		outpoint := a.coin.Outpoint
		tx.AddTxIn(wire.NewTxIn(&outpoint, nil, nil))
		prevout := a.coin.TxOut
		prevouts = append(prevouts, &prevout)
	}
	for _, out := range c.outputs {
		tx.AddTxOut(out)
	}
	c.tx = tx
	c.state.UnsignedTx = tx.Copy()
	c.state.Prevouts = prevouts
	c.setPhase(client.PhaseTransactionSigning)
	return nil
}

func (c *fakeCoordinator) RegisterOutput(
	_ context.Context, _ string, script []byte, amount, vsize credential.Request,
) (*client.OutputRegistrationResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state.Phase != client.PhaseOutputRegistration {
		return nil, c.wrongPhase()
	}
	outputVsize := common.OutputVsize(script)
	if vsize.Delta != outputVsize {
		return nil, fmt.Errorf("vsize delta %d, expected %d", vsize.Delta, outputVsize)
	}
	for _, out := range c.outputs {
		if string(out.PkScript) == string(script) {
			return nil, &client.ProtocolError{Code: coordinatorv1.ErrCodeAlreadyRegisteredScript}
		}
	}

	resp := &client.OutputRegistrationResult{}
	var err error
	if resp.AmountCredentials, err = c.handle(credential.AmountType, amount); err != nil {
		return nil, err
	}
	if resp.VsizeCredentials, err = c.handle(credential.VsizeType, vsize); err != nil {
		return nil, err
	}
	value := btcutil.Amount(amount.Delta) - common.NetworkFee(testParams.FeeRate, outputVsize)
	c.outputs = append(c.outputs, wire.NewTxOut(int64(value), script))
	return resp, nil
}

func (c *fakeCoordinator) ReissueCredentials(
	_ context.Context, req client.Reissuance,
) (*client.ReissuanceResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	phase := c.state.Phase
	if phase != client.PhaseConnectionConfirmation && phase != client.PhaseOutputRegistration {
		return nil, c.wrongPhase()
	}
	if req.RealAmountCredentials.Delta != 0 || req.RealVsizeCredentials.Delta != 0 {
		return nil, credential.ErrBalanceMismatch
	}

	resp := &client.ReissuanceResult{}
	var err error
	if resp.RealAmountCredentials, err = c.handle(credential.AmountType, req.RealAmountCredentials); err != nil {
		return nil, err
	}
	if resp.RealVsizeCredentials, err = c.handle(credential.VsizeType, req.RealVsizeCredentials); err != nil {
		return nil, err
	}
	if resp.ZeroAmountCredentials, err = c.handle(credential.AmountType, req.ZeroAmountCredentials); err != nil {
		return nil, err
	}
	if resp.ZeroVsizeCredentials, err = c.handle(credential.VsizeType, req.ZeroVsizeCredentials); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *fakeCoordinator) SignTransaction(
	_ context.Context, _ string, inputIndex int, witness wire.TxWitness,
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state.Phase != client.PhaseTransactionSigning {
		return c.wrongPhase()
	}
	if inputIndex < 0 || inputIndex >= len(c.tx.TxIn) {
		return fmt.Errorf("invalid input index %d", inputIndex)
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range c.tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, c.state.Prevouts[i])
	}
	prevout := c.state.Prevouts[inputIndex]
	c.tx.TxIn[inputIndex].Witness = witness
	engine, err := txscript.NewEngine(
		prevout.PkScript, c.tx, inputIndex, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(c.tx, fetcher), prevout.Value, fetcher,
	)
	if err != nil {
		return err
	}
	if err := engine.Execute(); err != nil {
		c.tx.TxIn[inputIndex].Witness = nil
		return err
	}

	c.signed[inputIndex] = struct{}{}
	if len(c.signed) == len(c.tx.TxIn) {
		c.state.EndRoundState = coordinatorv1.EndStateTransactionBroadcasted
		c.state.Txid = c.tx.TxHash().String()
		c.setPhase(client.PhaseEnded)
	}
	return nil
}

func (c *fakeCoordinator) GetStatus(
	_ context.Context, _ map[string]int,
) ([]client.RoundState, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	state := c.state
	state.InputAmounts = append([]int64{}, c.state.InputAmounts...)
	if c.state.UnsignedTx != nil {
		state.UnsignedTx = c.state.UnsignedTx.Copy()
	}
	return []client.RoundState{state}, nil
}

func (c *fakeCoordinator) Close() {}

func (c *fakeCoordinator) all(fn func(a *fakeAlice) bool) bool {
	if len(c.alices) <= 0 {
		return false
	}
	for _, a := range c.alices {
		if !fn(a) {
			return false
		}
	}
	return true
}

func (c *fakeCoordinator) registeredOutputs() []*wire.TxOut {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]*wire.TxOut{}, c.outputs...)
}

func (c *fakeCoordinator) balance(ct credential.Type) int64 {
	return c.issuers[ct].Balance()
}

type mockedTransport struct {
	mock.Mock
}

func (m *mockedTransport) RegisterInput(
	ctx context.Context, roundId string, outpoint wire.OutPoint,
	proof common.OwnershipProof, zeroAmount, zeroVsize credential.Request,
) (*client.InputRegistration, error) {
	args := m.Called(ctx, roundId, outpoint, proof, zeroAmount, zeroVsize)

	var res *client.InputRegistration
	if a := args.Get(0); a != nil {
		res = a.(*client.InputRegistration)
	}
	return res, args.Error(1)
}

func (m *mockedTransport) RemoveInput(ctx context.Context, roundId, aliceId string) error {
	args := m.Called(ctx, roundId, aliceId)
	return args.Error(0)
}

func (m *mockedTransport) ConfirmConnection(
	ctx context.Context, req client.ConnectionConfirmation,
) (*client.ConnectionConfirmationResult, error) {
	args := m.Called(ctx, req)

	var res *client.ConnectionConfirmationResult
	if a := args.Get(0); a != nil {
		res = a.(*client.ConnectionConfirmationResult)
	}
	return res, args.Error(1)
}

func (m *mockedTransport) ReadyToSign(ctx context.Context, roundId, aliceId string) error {
	args := m.Called(ctx, roundId, aliceId)
	return args.Error(0)
}

func (m *mockedTransport) RegisterOutput(
	ctx context.Context, roundId string, script []byte,
	amount, vsize credential.Request,
) (*client.OutputRegistrationResult, error) {
	args := m.Called(ctx, roundId, script, amount, vsize)

	var res *client.OutputRegistrationResult
	if a := args.Get(0); a != nil {
		res = a.(*client.OutputRegistrationResult)
	}
	return res, args.Error(1)
}

func (m *mockedTransport) ReissueCredentials(
	ctx context.Context, req client.Reissuance,
) (*client.ReissuanceResult, error) {
	args := m.Called(ctx, req)

	var res *client.ReissuanceResult
	if a := args.Get(0); a != nil {
		res = a.(*client.ReissuanceResult)
	}
	return res, args.Error(1)
}

func (m *mockedTransport) SignTransaction(
	ctx context.Context, roundId string, inputIndex int, witness wire.TxWitness,
) error {
	args := m.Called(ctx, roundId, inputIndex, witness)
	return args.Error(0)
}

func (m *mockedTransport) GetStatus(
	ctx context.Context, checkpoints map[string]int,
) ([]client.RoundState, error) {
	args := m.Called(ctx, checkpoints)

	var res []client.RoundState
	if a := args.Get(0); a != nil {
		res = a.([]client.RoundState)
	}
	return res, args.Error(1)
}

func (m *mockedTransport) Close() {
	m.Called()
}
