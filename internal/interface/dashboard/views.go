package dashboard

import "github.com/ark-network/wabisabi/internal/core/application"

type roundView struct {
	Id                   string `json:"id"`
	BlameOf              string `json:"blameOf,omitempty"`
	Phase                string `json:"phase"`
	EndRoundState        string `json:"endRoundState"`
	InputCount           int    `json:"inputCount"`
	InputRegistrationEnd int64  `json:"inputRegistrationEnd"`
	PhaseDeadline        int64  `json:"phaseDeadline"`
	Txid                 string `json:"txid,omitempty"`
}

func newRoundView(r application.RoundState) roundView {
	return roundView{
		Id:                   r.Id,
		BlameOf:              r.BlameOf,
		Phase:                r.Phase.String(),
		EndRoundState:        r.EndRoundState.String(),
		InputCount:           len(r.InputAmounts),
		InputRegistrationEnd: r.InputRegistrationEnd.Unix(),
		PhaseDeadline:        r.PhaseDeadline.Unix(),
		Txid:                 r.Txid,
	}
}

type inmateView struct {
	Outpoint   string `json:"outpoint"`
	RoundId    string `json:"roundId"`
	Punishment string `json:"punishment"`
	StartedAt  int64  `json:"startedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

type whitelistView struct {
	Outpoint  string `json:"outpoint"`
	ClearedAt int64  `json:"clearedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}
