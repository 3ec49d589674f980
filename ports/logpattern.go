package ports

import (
	"context"

	"obsnote/domain/logpattern"
)

// LogPatternPort submits an analysis to the server-side log pattern
// service. A 404 from the service must surface as core.ErrAgentNotFound.
type LogPatternPort interface {
	Analyze(ctx context.Context, req logpattern.AnalyzeRequest) (*logpattern.AnalyzeResponse, error)
}
