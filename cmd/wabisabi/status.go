package main

import (
	"time"

	grpcclient "github.com/ark-network/wabisabi/pkg/client-sdk/client/grpc"
	"github.com/urfave/cli/v2"
)

var statusCommand = cli.Command{
	Name:   "status",
	Usage:  "Shows the rounds currently run by the coordinator",
	Action: statusAction,
}

type roundSummary struct {
	Id                   string `json:"id"`
	BlameOf              string `json:"blame_of,omitempty"`
	Phase                string `json:"phase"`
	EndRoundState        string `json:"end_round_state,omitempty"`
	Network              string `json:"network"`
	FeeRate              int64  `json:"fee_rate"`
	MinAmount            int64  `json:"min_amount"`
	MaxAmount            int64  `json:"max_amount"`
	Inputs               int    `json:"inputs"`
	InputRegistrationEnd string `json:"input_registration_end"`
	PhaseDeadline        string `json:"phase_deadline"`
	Txid                 string `json:"txid,omitempty"`
}

func statusAction(ctx *cli.Context) error {
	transport, err := grpcclient.NewClient(ctx.String(coordinatorUrlFlag.Name))
	if err != nil {
		return err
	}
	defer transport.Close()

	rounds, err := transport.GetStatus(cntx, nil)
	if err != nil {
		return err
	}

	list := make([]roundSummary, 0, len(rounds))
	for _, r := range rounds {
		list = append(list, roundSummary{
			Id:                   r.Id,
			BlameOf:              r.BlameOf,
			Phase:                string(r.Phase),
			EndRoundState:        r.EndRoundState,
			Network:              r.Parameters.Network.Name,
			FeeRate:              int64(r.Parameters.FeeRate),
			MinAmount:            int64(r.Parameters.MinAmount),
			MaxAmount:            int64(r.Parameters.MaxAmount),
			Inputs:               len(r.InputAmounts),
			InputRegistrationEnd: r.InputRegistrationEnd.Format(time.RFC3339),
			PhaseDeadline:        r.PhaseDeadline.Format(time.RFC3339),
			Txid:                 r.Txid,
		})
	}
	return printJSON(list)
}
