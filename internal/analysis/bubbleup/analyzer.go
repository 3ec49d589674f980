package bubbleup

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"obsnote/domain/comparison"
	"obsnote/domain/core"
	"obsnote/domain/sample"
)

const tracerName = "obsnote/bubbleup"

// TotalSteps is the number of progress steps reported by Analyzer.Run
const TotalSteps = 3

// ProgressFunc receives step progress, 1-based
type ProgressFunc func(step, total int, stage string)

// Analyzer chains the Sampler, the FieldDiscoverer and the comparison
type Analyzer struct {
	sampler    *Sampler
	discoverer *FieldDiscoverer
	opts       Options
	tracer     trace.Tracer
}

// NewAnalyzer creates an analyzer from its collaborators
func NewAnalyzer(sampler *Sampler, discoverer *FieldDiscoverer, opts Options) *Analyzer {
	return &Analyzer{
		sampler:    sampler,
		discoverer: discoverer,
		opts:       opts,
		tracer:     otel.Tracer(tracerName),
	}
}

// RunRequest is one bubble-up analysis request
type RunRequest struct {
	SampleRequest
	MaxResults int
}

// Run samples both windows, selects comparable fields and summarizes the
// ranked differences. When no field qualifies the result has NoComparable
// set and no summaries; that is not an error.
func (a *Analyzer) Run(ctx context.Context, req RunRequest, progress ProgressFunc) (*comparison.Result, error) {
	if progress == nil {
		progress = func(int, int, string) {}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "bubbleup.Run", trace.WithAttributes(
		attribute.String("index", req.Index.String()),
		attribute.String("time_field", req.TimeField),
	))
	defer span.End()

	log := logrus.WithFields(logrus.Fields{
		"index":     req.Index,
		"selection": req.Selection.String(),
	})

	progress(1, TotalSteps, "sampling")
	window, err := a.sample(ctx, req.SampleRequest)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"selection_docs": window.Selection.Len(),
		"baseline_docs":  window.Baseline.Len(),
	}).Debug("sampled comparison windows")

	progress(2, TotalSteps, "discovering fields")
	_, fieldSpan := a.tracer.Start(ctx, "bubbleup.DiscoverFields")
	candidates, err := a.discoverer.DiscoverFields(ctx, req.Index, window.Combined())
	fieldSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: field metadata: %w", core.ErrFetchFailed, err)
	}

	result := &comparison.Result{
		RunID:          core.NewRunID().String(),
		SelectionCount: window.Selection.Len(),
		BaselineCount:  window.Baseline.Len(),
		FieldsCompared: candidates,
	}
	if len(candidates) == 0 {
		log.Info("no comparable fields")
		result.NoComparable = true
		result.Summaries = []comparison.ComparisonSummary{}
		return result, nil
	}

	progress(3, TotalSteps, "comparing distributions")
	opts := a.opts
	if req.MaxResults > 0 {
		opts.MaxResults = req.MaxResults
	}
	result.Summaries = Compare(*window, candidates, opts)
	span.SetAttributes(attribute.Int("fields", len(candidates)))

	log.WithField("fields", len(candidates)).Debug("bubble-up comparison finished")
	return result, nil
}

func (a *Analyzer) sample(ctx context.Context, req SampleRequest) (*sample.ComparisonWindow, error) {
	ctx, span := a.tracer.Start(ctx, "bubbleup.Sample")
	defer span.End()
	return a.sampler.Sample(ctx, req)
}
