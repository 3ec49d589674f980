package app

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sirupsen/logrus"

	"obsnote/domain/core"
	"obsnote/domain/logpattern"
	"obsnote/domain/paragraph"
	"obsnote/domain/sample"
	ranking "obsnote/internal/analysis/logpattern"
	"obsnote/internal/errors"
	"obsnote/internal/metrics"
	"obsnote/internal/state"
	"obsnote/ports"
)

// Log pattern sub-request names
const (
	StepInsights  = "insights"
	StepPatterns  = "pattern_difference"
	StepSequences = "sequences"
)

// LogPatternService drives the server-side log pattern analysis. The
// sub-requests run one after another and each result is published as soon
// as it arrives.
type LogPatternService struct {
	backend ports.LogPatternPort
	repo    ports.ParagraphOutputRepository
	states  *state.Store
	metrics *metrics.Metrics
}

// NewLogPatternService creates a log pattern service
func NewLogPatternService(backend ports.LogPatternPort, repo ports.ParagraphOutputRepository, states *state.Store, m *metrics.Metrics) *LogPatternService {
	return &LogPatternService{
		backend: backend,
		repo:    repo,
		states:  states,
		metrics: m,
	}
}

type subRequest struct {
	name    string
	request logpattern.AnalyzeRequest
	apply   func(*logpattern.AnalysisResult, *logpattern.AnalyzeResponse)
}

func planSubRequests(req logpattern.AnalyzeRequest) []subRequest {
	insights := req
	insights.BaselineStartTime, insights.BaselineEndTime = nil, nil
	insights.TraceIDField = ""

	plan := []subRequest{{
		name:    StepInsights,
		request: insights,
		apply: func(r *logpattern.AnalysisResult, resp *logpattern.AnalyzeResponse) {
			r.LogInsights = ranking.SortInsights(resp.LogInsights)
		},
	}}

	if req.HasBaseline() {
		patterns := req
		patterns.TraceIDField = ""
		plan = append(plan, subRequest{
			name:    StepPatterns,
			request: patterns,
			apply: func(r *logpattern.AnalysisResult, resp *logpattern.AnalyzeResponse) {
				r.PatternMapDifference = ranking.RankPatternDifferences(resp.PatternMapDifference)
			},
		})
	}

	if req.HasTraceField() {
		plan = append(plan, subRequest{
			name:    StepSequences,
			request: req,
			apply: func(r *logpattern.AnalysisResult, resp *logpattern.AnalyzeResponse) {
				r.Exceptional = resp.Exceptional
				r.Base = resp.Base
			},
		})
	}
	return plan
}

func validateLogPatternRequest(req logpattern.AnalyzeRequest) error {
	if req.IndexName == "" {
		return core.NewMissingContextError("index")
	}
	if req.TimeField == "" {
		return core.NewMissingContextError("time field")
	}
	if req.LogMessageField == "" {
		return core.NewMissingContextError("log message field")
	}
	if err := (sample.TimeWindow{Start: req.SelectionStartTime, End: req.SelectionEndTime}).Validate(); err != nil {
		return err
	}
	if req.HasBaseline() {
		return sample.TimeWindow{Start: *req.BaselineStartTime, End: *req.BaselineEndTime}.Validate()
	}
	return nil
}

// Analyze runs insights, then pattern difference when a baseline is set,
// then sequences when a trace field is set. A failed sub-request is logged
// in the result's steps and the rest still run; a missing analysis agent
// ends the run immediately.
func (s *LogPatternService) Analyze(ctx context.Context, id core.ParagraphID, req logpattern.AnalyzeRequest) (*logpattern.AnalysisResult, error) {
	started := time.Now()
	kind := string(paragraph.OutputLogPattern)
	log := logrus.WithFields(logrus.Fields{
		"paragraph_id": id,
		"index":        req.IndexName,
	})

	if err := validateLogPatternRequest(req); err != nil {
		log.WithError(err).Info("log pattern analysis skipped, analysis context incomplete")
		s.states.Empty(id, nil)
		return nil, errors.FromDomain(err)
	}

	plan := planSubRequests(req)
	runCtx, run := s.states.Start(ctx, id, paragraph.OutputLogPattern, len(plan))
	defer run.Finish()

	result := &logpattern.AnalysisResult{
		LogInsights:          []logpattern.LogPattern{},
		PatternMapDifference: []logpattern.LogPattern{},
	}
	var lastErr error
	for i, sub := range plan {
		if !run.Progress(i+1, len(plan)) {
			return nil, superseded(log, s.metrics, kind, started)
		}

		resp, err := s.backend.Analyze(runCtx, sub.request)
		if err != nil {
			if !run.Current() {
				return nil, superseded(log, s.metrics, kind, started)
			}
			if stderrors.Is(err, core.ErrAgentNotFound) || runCtx.Err() != nil {
				appErr := errors.FromDomain(err)
				log.WithError(err).WithField("step", sub.name).Error("log pattern analysis aborted")
				run.Fail(errors.GetCode(appErr), err)
				s.metrics.ObserveRun(kind, metrics.StatusFailed, time.Since(started))
				return nil, appErr
			}

			lastErr = err
			record := logpattern.StepRecord{Name: sub.name, Status: logpattern.StepFailed, Error: err.Error()}
			result.Steps = append(result.Steps, record)
			s.metrics.ObserveStepFailure(sub.name)
			log.WithError(err).WithField("step", sub.name).Warn("log pattern sub-request failed")
			if _, err := run.ApplyPartial(nil, record); err != nil {
				log.WithError(err).Warn("failed to publish step failure")
			}
			continue
		}

		sub.apply(result, resp)
		record := logpattern.StepRecord{Name: sub.name, Status: logpattern.StepCompleted}
		result.Steps = append(result.Steps, record)
		if _, err := run.ApplyPartial(result, record); err != nil {
			log.WithError(err).Warn("failed to publish partial result")
		}
	}

	if allFailed(result.Steps) {
		appErr := errors.ExternalServiceError("log pattern", lastErr)
		run.Fail(appErr.Code, appErr)
		s.metrics.ObserveRun(kind, metrics.StatusFailed, time.Since(started))
		return nil, appErr
	}

	committed, err := run.Commit(func() error {
		output, err := paragraph.NewOutput(id, paragraph.OutputLogPattern, core.ComputeRequestHash(req), result)
		if err != nil {
			return err
		}
		return s.repo.Save(runCtx, output)
	})
	if err != nil {
		log.WithError(err).Error("failed to persist log pattern output")
		run.Fail(errors.CodeDatabaseError, err)
		s.metrics.ObserveRun(kind, metrics.StatusFailed, time.Since(started))
		return nil, errors.DatabaseError("failed to persist paragraph output", err)
	}
	if !committed {
		return nil, superseded(log, s.metrics, kind, started)
	}

	if isEmpty(result) {
		run.Empty(result)
		s.metrics.ObserveRun(kind, metrics.StatusEmpty, time.Since(started))
		return result, nil
	}

	if _, err := run.Complete(result); err != nil {
		return nil, errors.Wrap(err, "failed to publish log pattern result")
	}
	s.metrics.ObserveRun(kind, metrics.StatusSuccess, time.Since(started))
	log.WithField("steps", len(result.Steps)).Info("log pattern analysis completed")
	return result, nil
}

func allFailed(steps []logpattern.StepRecord) bool {
	for _, st := range steps {
		if st.Status != logpattern.StepFailed {
			return false
		}
	}
	return len(steps) > 0
}

func isEmpty(r *logpattern.AnalysisResult) bool {
	return len(r.LogInsights) == 0 && len(r.PatternMapDifference) == 0 &&
		len(r.Exceptional) == 0 && len(r.Base) == 0
}
