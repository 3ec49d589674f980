package bubbleup

import (
	"context"

	"golang.org/x/sync/errgroup"

	"obsnote/domain/core"
	"obsnote/domain/sample"
	"obsnote/ports"
)

// SampleRequest describes the selection to sample. The baseline window is
// always derived from Selection.
type SampleRequest struct {
	Index     core.IndexName
	TimeField string
	Selection sample.TimeWindow
	Filters   []sample.Filter
	Size      int
}

// Validate checks the preconditions that must hold before any fetch
func (r SampleRequest) Validate() error {
	if r.Index == "" {
		return core.NewMissingContextError("index")
	}
	if r.TimeField == "" {
		return core.NewMissingContextError("time field")
	}
	return r.Selection.Validate()
}

// Sampler fetches the selection and baseline samples of a comparison
type Sampler struct {
	search      ports.SearchPort
	defaultSize int
}

// NewSampler creates a sampler. size <= 0 selects sample.DefaultSampleSize.
func NewSampler(search ports.SearchPort, size int) *Sampler {
	if size <= 0 {
		size = sample.DefaultSampleSize
	}
	return &Sampler{search: search, defaultSize: size}
}

// Sample fetches both windows concurrently. Either failure cancels the
// other fetch and fails the whole call; nothing is retried.
func (s *Sampler) Sample(ctx context.Context, req SampleRequest) (*sample.ComparisonWindow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	size := req.Size
	if size <= 0 {
		size = s.defaultSize
	}
	baseline := sample.BaselineFor(req.Selection)

	var selDocs, baseDocs []sample.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.search.Fetch(gctx, s.fetchRequest(req, req.Selection, size))
		if err != nil {
			return core.NewFetchError("selection", err)
		}
		selDocs = docs
		return nil
	})
	g.Go(func() error {
		docs, err := s.search.Fetch(gctx, s.fetchRequest(req, baseline, size))
		if err != nil {
			return core.NewFetchError("baseline", err)
		}
		baseDocs = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &sample.ComparisonWindow{
		Selection: sample.Sample{Window: req.Selection, Documents: selDocs},
		Baseline:  sample.Sample{Window: baseline, Documents: baseDocs},
	}, nil
}

func (s *Sampler) fetchRequest(req SampleRequest, window sample.TimeWindow, size int) ports.FetchRequest {
	return ports.FetchRequest{
		Index:     req.Index,
		TimeField: req.TimeField,
		Window:    window,
		Filters:   req.Filters,
		Size:      size,
	}
}
