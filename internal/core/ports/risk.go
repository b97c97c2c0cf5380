package ports

import "context"

type ScriptCheckResult struct {
	Script []byte
	Flags  []string
	Err    error
}

// RiskScoringService checks scripts against an external risk scoring
// service. Results are streamed as they come, a failure for one script is
// reported in its own result and doesn't stop the others.
type RiskScoringService interface {
	CheckScripts(ctx context.Context, scripts [][]byte) (<-chan ScriptCheckResult, error)
}
