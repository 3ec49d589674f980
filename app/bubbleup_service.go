package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"obsnote/domain/comparison"
	"obsnote/domain/core"
	"obsnote/domain/paragraph"
	"obsnote/domain/sample"
	"obsnote/internal/analysis/bubbleup"
	"obsnote/internal/charts"
	"obsnote/internal/errors"
	"obsnote/internal/metrics"
	"obsnote/internal/state"
	"obsnote/ports"
)

// BubbleUpService runs distribution comparisons for notebook paragraphs
// and keeps their state and persisted output current.
type BubbleUpService struct {
	analyzer *bubbleup.Analyzer
	repo     ports.ParagraphOutputRepository
	states   *state.Store
	metrics  *metrics.Metrics
}

// BubbleUpRequest is the client input of one comparison
type BubbleUpRequest struct {
	Index      string          `json:"index"`
	TimeField  string          `json:"time_field"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Filters    []sample.Filter `json:"filters,omitempty"`
	SampleSize int             `json:"sample_size,omitempty"`
	MaxResults int             `json:"max_results,omitempty"`
}

func (r BubbleUpRequest) runRequest() bubbleup.RunRequest {
	return bubbleup.RunRequest{
		SampleRequest: bubbleup.SampleRequest{
			Index:     core.IndexName(r.Index),
			TimeField: r.TimeField,
			Selection: sample.TimeWindow{Start: r.Start, End: r.End},
			Filters:   r.Filters,
			Size:      r.SampleSize,
		},
		MaxResults: r.MaxResults,
	}
}

// NewBubbleUpService creates a bubble-up service
func NewBubbleUpService(analyzer *bubbleup.Analyzer, repo ports.ParagraphOutputRepository, states *state.Store, m *metrics.Metrics) *BubbleUpService {
	return &BubbleUpService{
		analyzer: analyzer,
		repo:     repo,
		states:   states,
		metrics:  m,
	}
}

// Run compares the selection against its baseline and persists the
// result for the paragraph. Missing context leaves the paragraph empty
// and returns a PRECONDITION_FAILED error before any fetch. A run that is
// overtaken by a newer run of the same paragraph publishes nothing and
// returns a SUPERSEDED error.
func (s *BubbleUpService) Run(ctx context.Context, id core.ParagraphID, req BubbleUpRequest) (*comparison.Result, error) {
	started := time.Now()
	kind := string(paragraph.OutputBubbleUp)
	log := logrus.WithFields(logrus.Fields{
		"paragraph_id": id,
		"index":        req.Index,
	})

	runReq := req.runRequest()
	if err := runReq.Validate(); err != nil {
		log.WithError(err).Info("bubble-up skipped, analysis context incomplete")
		s.states.Empty(id, nil)
		return nil, errors.FromDomain(err)
	}

	runCtx, run := s.states.Start(ctx, id, paragraph.OutputBubbleUp, bubbleup.TotalSteps)
	defer run.Finish()

	result, err := s.analyzer.Run(runCtx, runReq, func(step, total int, stage string) {
		run.Progress(step, total)
		log.WithField("stage", stage).Debug("bubble-up progress")
	})
	if err != nil {
		if !run.Current() {
			return nil, superseded(log, s.metrics, kind, started)
		}
		appErr := errors.FromDomain(err)
		log.WithError(err).Error("bubble-up failed")
		run.Fail(errors.GetCode(appErr), err)
		s.metrics.ObserveRun(kind, metrics.StatusFailed, time.Since(started))
		return nil, appErr
	}

	s.metrics.ObserveSample("selection", result.SelectionCount)
	s.metrics.ObserveSample("baseline", result.BaselineCount)

	specs, err := charts.BuildComparisonCharts(result.Summaries)
	if err != nil {
		log.WithError(err).Warn("chart generation failed")
	} else {
		result.Charts = specs
	}

	committed, err := run.Commit(func() error {
		return s.persist(runCtx, id, req, result)
	})
	if err != nil {
		log.WithError(err).Error("failed to persist bubble-up output")
		run.Fail(errors.CodeDatabaseError, err)
		s.metrics.ObserveRun(kind, metrics.StatusFailed, time.Since(started))
		return nil, errors.DatabaseError("failed to persist paragraph output", err)
	}
	if !committed {
		return nil, superseded(log, s.metrics, kind, started)
	}

	if result.NoComparable {
		run.Empty(result)
		s.metrics.ObserveRun(kind, metrics.StatusEmpty, time.Since(started))
		return result, nil
	}

	if _, err := run.Complete(result); err != nil {
		return nil, errors.Wrap(err, "failed to publish bubble-up result")
	}
	s.metrics.ObserveRun(kind, metrics.StatusSuccess, time.Since(started))
	log.WithFields(logrus.Fields{
		"fields":   len(result.Summaries),
		"duration": time.Since(started).String(),
	}).Info("bubble-up completed")
	return result, nil
}

func superseded(log *logrus.Entry, m *metrics.Metrics, kind string, started time.Time) error {
	log.Info("analysis superseded by a newer run, result dropped")
	m.ObserveRun(kind, metrics.StatusSuperseded, time.Since(started))
	return errors.FromDomain(core.ErrSuperseded)
}

func (s *BubbleUpService) persist(ctx context.Context, id core.ParagraphID, req BubbleUpRequest, result *comparison.Result) error {
	output, err := paragraph.NewOutput(id, paragraph.OutputBubbleUp, core.ComputeRequestHash(req), result)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, output)
}
