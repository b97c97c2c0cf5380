package handlers_test

import (
	"context"

	"github.com/ark-network/wabisabi/internal/core/application"
	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

type mockedAppService struct {
	mock.Mock
}

func (m *mockedAppService) Start() error {
	return m.Called().Error(0)
}

func (m *mockedAppService) Stop() {
	m.Called()
}

func (m *mockedAppService) RegisterInput(
	ctx context.Context, req application.InputRegistrationRequest,
) (*application.InputRegistrationResponse, error) {
	args := m.Called(ctx, req)
	var res *application.InputRegistrationResponse
	if a := args.Get(0); a != nil {
		res = a.(*application.InputRegistrationResponse)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) RemoveInput(ctx context.Context, roundId, aliceId string) error {
	return m.Called(ctx, roundId, aliceId).Error(0)
}

func (m *mockedAppService) ConfirmConnection(
	ctx context.Context, req application.ConnectionConfirmationRequest,
) (*application.ConnectionConfirmationResponse, error) {
	args := m.Called(ctx, req)
	var res *application.ConnectionConfirmationResponse
	if a := args.Get(0); a != nil {
		res = a.(*application.ConnectionConfirmationResponse)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) ReadyToSign(ctx context.Context, roundId, aliceId string) error {
	return m.Called(ctx, roundId, aliceId).Error(0)
}

func (m *mockedAppService) RegisterOutput(
	ctx context.Context, req application.OutputRegistrationRequest,
) (*application.OutputRegistrationResponse, error) {
	args := m.Called(ctx, req)
	var res *application.OutputRegistrationResponse
	if a := args.Get(0); a != nil {
		res = a.(*application.OutputRegistrationResponse)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) ReissueCredentials(
	ctx context.Context, req application.ReissueCredentialRequest,
) (*application.ReissueCredentialResponse, error) {
	args := m.Called(ctx, req)
	var res *application.ReissueCredentialResponse
	if a := args.Get(0); a != nil {
		res = a.(*application.ReissueCredentialResponse)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) SignTransaction(
	ctx context.Context, roundId string, inputIndex int, witness wire.TxWitness,
) error {
	return m.Called(ctx, roundId, inputIndex, witness).Error(0)
}

func (m *mockedAppService) GetStatus(
	ctx context.Context, checkpoints map[string]int,
) ([]application.RoundState, error) {
	args := m.Called(ctx, checkpoints)
	var res []application.RoundState
	if a := args.Get(0); a != nil {
		res = a.([]application.RoundState)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) ListInmates(ctx context.Context) ([]domain.Inmate, error) {
	args := m.Called(ctx)
	var res []domain.Inmate
	if a := args.Get(0); a != nil {
		res = a.([]domain.Inmate)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) ListWhitelist(ctx context.Context) ([]domain.WhitelistEntry, error) {
	args := m.Called(ctx)
	var res []domain.WhitelistEntry
	if a := args.Get(0); a != nil {
		res = a.([]domain.WhitelistEntry)
	}
	return res, args.Error(1)
}
