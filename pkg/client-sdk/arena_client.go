package wabisabisdk

import (
	"context"
	"fmt"

	"github.com/ark-network/wabisabi/pkg/client-sdk/client"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/ark-network/wabisabi/pkg/credential"
	"github.com/btcsuite/btcd/btcutil"
)

const zeroPoolSize = 128

// arenaClient binds the transport to the credential issuers of one round.
type arenaClient struct {
	roundId      string
	transport    client.TransportClient
	amountClient *credential.Client
	vsizeClient  *credential.Client
}

func newArenaClient(transport client.TransportClient, state client.RoundState) *arenaClient {
	return &arenaClient{
		roundId:   state.Id,
		transport: transport,
		amountClient: credential.NewClient(
			state.AmountIssuer, credential.NewZeroPool(credential.AmountType, zeroPoolSize),
		),
		vsizeClient: credential.NewClient(
			state.VsizeIssuer, credential.NewZeroPool(credential.VsizeType, zeroPoolSize),
		),
	}
}

func (a *arenaClient) registerInput(
	ctx context.Context, coin common.Coin, proof common.OwnershipProof,
) (*client.InputRegistration, error) {
	zeroAmount := a.amountClient.NewNullRequest()
	zeroVsize := a.vsizeClient.NewNullRequest()

	resp, err := a.transport.RegisterInput(
		ctx, a.roundId, coin.Outpoint, proof, zeroAmount, zeroVsize,
	)
	if err != nil {
		return nil, err
	}
	if err := a.amountClient.HandleNullResponse(zeroAmount, resp.AmountCredentials); err != nil {
		return nil, err
	}
	if err := a.vsizeClient.HandleNullResponse(zeroVsize, resp.VsizeCredentials); err != nil {
		return nil, err
	}
	return resp, nil
}

// confirmConnection asks for real credentials of the given values, their
// sums must be what the alice is entitled to. Before connection
// confirmation phase the coordinator only refreshes the alice deadline and
// confirmed is false.
func (a *arenaClient) confirmConnection(
	ctx context.Context, aliceId string, amountValues, vsizeValues []int64,
) (amounts, vsizes []credential.Credential, confirmed bool, err error) {
	zeroAmount := a.amountClient.NewNullRequest()
	zeroVsize := a.vsizeClient.NewNullRequest()
	realAmount, err := a.amountClient.NewRequest(nil, amountValues)
	if err != nil {
		return nil, nil, false, err
	}
	realVsize, err := a.vsizeClient.NewRequest(nil, vsizeValues)
	if err != nil {
		a.amountClient.Pool().Put(realAmount.Presented...)
		return nil, nil, false, err
	}

	resp, err := a.transport.ConfirmConnection(ctx, client.ConnectionConfirmation{
		RoundId:               a.roundId,
		AliceId:               aliceId,
		ZeroAmountCredentials: zeroAmount,
		RealAmountCredentials: realAmount,
		ZeroVsizeCredentials:  zeroVsize,
		RealVsizeCredentials:  realVsize,
	})
	if err != nil {
		return nil, nil, false, err
	}
	if err := a.amountClient.HandleNullResponse(zeroAmount, resp.ZeroAmountCredentials); err != nil {
		return nil, nil, false, err
	}
	if err := a.vsizeClient.HandleNullResponse(zeroVsize, resp.ZeroVsizeCredentials); err != nil {
		return nil, nil, false, err
	}

	if resp.RealAmountCredentials == nil || resp.RealVsizeCredentials == nil {
		// Nothing was spent, the zero credentials can be presented again.
		a.amountClient.Pool().Put(realAmount.Presented...)
		a.vsizeClient.Pool().Put(realVsize.Presented...)
		return nil, nil, false, nil
	}

	if amounts, err = a.handleResponse(
		a.amountClient, realAmount, resp.RealAmountCredentials, len(amountValues),
	); err != nil {
		return nil, nil, false, err
	}
	if vsizes, err = a.handleResponse(
		a.vsizeClient, realVsize, resp.RealVsizeCredentials, len(vsizeValues),
	); err != nil {
		return nil, nil, false, err
	}
	return amounts, vsizes, true, nil
}

// Reissue presents the given credentials in exchange of new ones of the
// given values, it also refills the zero credential pools.
func (a *arenaClient) Reissue(
	ctx context.Context, amounts, vsizes []credential.Credential,
	amountValues, vsizeValues []int64,
) ([]credential.Credential, []credential.Credential, error) {
	realAmount, err := a.amountClient.NewRequest(amounts, amountValues)
	if err != nil {
		return nil, nil, err
	}
	realVsize, err := a.vsizeClient.NewRequest(vsizes, vsizeValues)
	if err != nil {
		a.amountClient.Pool().Put(realAmount.Presented[len(amounts):]...)
		return nil, nil, err
	}
	zeroAmount := a.amountClient.NewNullRequest()
	zeroVsize := a.vsizeClient.NewNullRequest()

	resp, err := a.transport.ReissueCredentials(ctx, client.Reissuance{
		RoundId:               a.roundId,
		RealAmountCredentials: realAmount,
		RealVsizeCredentials:  realVsize,
		ZeroAmountCredentials: zeroAmount,
		ZeroVsizeCredentials:  zeroVsize,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := a.amountClient.HandleNullResponse(zeroAmount, resp.ZeroAmountCredentials); err != nil {
		return nil, nil, err
	}
	if err := a.vsizeClient.HandleNullResponse(zeroVsize, resp.ZeroVsizeCredentials); err != nil {
		return nil, nil, err
	}
	issuedAmounts, err := a.handleResponse(
		a.amountClient, realAmount, resp.RealAmountCredentials, len(amountValues),
	)
	if err != nil {
		return nil, nil, err
	}
	issuedVsizes, err := a.handleResponse(
		a.vsizeClient, realVsize, resp.RealVsizeCredentials, len(vsizeValues),
	)
	if err != nil {
		return nil, nil, err
	}
	return issuedAmounts, issuedVsizes, nil
}

func (a *arenaClient) registerOutput(
	ctx context.Context, script []byte, amounts, vsizes []credential.Credential,
) error {
	amountReq, err := a.amountClient.NewRequest(amounts, nil)
	if err != nil {
		return err
	}
	vsizeReq, err := a.vsizeClient.NewRequest(vsizes, nil)
	if err != nil {
		a.amountClient.Pool().Put(amountReq.Presented[len(amounts):]...)
		return err
	}

	resp, err := a.transport.RegisterOutput(ctx, a.roundId, script, amountReq, vsizeReq)
	if err != nil {
		return err
	}
	if err := a.amountClient.HandleNullResponse(amountReq, resp.AmountCredentials); err != nil {
		return err
	}
	return a.vsizeClient.HandleNullResponse(vsizeReq, resp.VsizeCredentials)
}

func (a *arenaClient) readyToSign(ctx context.Context, aliceId string) error {
	return a.transport.ReadyToSign(ctx, a.roundId, aliceId)
}

func (a *arenaClient) removeInput(ctx context.Context, aliceId string) error {
	return a.transport.RemoveInput(ctx, a.roundId, aliceId)
}

// handleResponse returns the credentials of the requested values and sends
// the zero ones used as padding to the pool.
func (a *arenaClient) handleResponse(
	c *credential.Client, req credential.Request, resp *credential.Response,
	numValues int,
) ([]credential.Credential, error) {
	creds, err := c.HandleResponse(req, resp)
	if err != nil {
		return nil, fmt.Errorf("round %s: %w", a.roundId, err)
	}
	c.Pool().Put(creds[numValues:]...)
	return creds[:numValues], nil
}

// bobClient registers the outputs of the dependency graph.
type bobClient struct {
	*arenaClient
	outputs []output
}

type output struct {
	script []byte
	amount btcutil.Amount
}

func (b *bobClient) RegisterOutput(
	ctx context.Context, index int, amounts, vsizes []credential.Credential,
) error {
	if index < 0 || index >= len(b.outputs) {
		return fmt.Errorf("unknown output %d", index)
	}
	return b.registerOutput(ctx, b.outputs[index].script, amounts, vsizes)
}
