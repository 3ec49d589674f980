package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"obsnote/domain/core"
	"obsnote/domain/logpattern"
	"obsnote/domain/paragraph"
	"obsnote/domain/sample"
	"obsnote/ports"

	"github.com/stretchr/testify/mock"
)

type MockSearch struct {
	mock.Mock
}

func (m *MockSearch) Fetch(ctx context.Context, req ports.FetchRequest) ([]sample.Document, error) {
	args := m.Called(ctx, req)
	docs, _ := args.Get(0).([]sample.Document)
	return docs, args.Error(1)
}

type MockFieldMetadata struct {
	mock.Mock
}

func (m *MockFieldMetadata) GetFields(ctx context.Context, index core.IndexName) ([]sample.FieldMetadata, error) {
	args := m.Called(ctx, index)
	fields, _ := args.Get(0).([]sample.FieldMetadata)
	return fields, args.Error(1)
}

type MockLogPattern struct {
	mock.Mock
}

func (m *MockLogPattern) Analyze(ctx context.Context, req logpattern.AnalyzeRequest) (*logpattern.AnalyzeResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*logpattern.AnalyzeResponse)
	return resp, args.Error(1)
}

type MockAgentMemory struct {
	mock.Mock
}

func (m *MockAgentMemory) GetTraces(ctx context.Context, interactionID string) ([]ports.AgentTrace, bool, error) {
	args := m.Called(ctx, interactionID)
	traces, _ := args.Get(0).([]ports.AgentTrace)
	return traces, args.Bool(1), args.Error(2)
}

// memoryRepository is an in-process ParagraphOutputRepository
type memoryRepository struct {
	mu      sync.Mutex
	outputs map[core.ParagraphID]paragraph.Output
	saveErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{outputs: make(map[core.ParagraphID]paragraph.Output)}
}

func (r *memoryRepository) Save(_ context.Context, output *paragraph.Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored := *output
	stored.Version = r.outputs[output.ParagraphID].Version + 1
	r.outputs[output.ParagraphID] = stored
	output.Version = stored.Version
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id core.ParagraphID) (*paragraph.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	output, ok := r.outputs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrParagraphNotFound, id)
	}
	return &output, nil
}

func (r *memoryRepository) Delete(_ context.Context, id core.ParagraphID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outputs, id)
	return nil
}

func selectionWindow() sample.TimeWindow {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return sample.TimeWindow{Start: start, End: start.Add(10 * time.Minute)}
}

func forWindow(w sample.TimeWindow) interface{} {
	return mock.MatchedBy(func(req ports.FetchRequest) bool {
		return req.Window.Start.Equal(w.Start) && req.Window.End.Equal(w.End)
	})
}

func serviceDocs(counts map[string]int) []sample.Document {
	var docs []sample.Document
	for value, n := range counts {
		for i := 0; i < n; i++ {
			docs = append(docs, sample.Document{
				"service": map[string]interface{}{"name": value},
				"msg":     fmt.Sprintf("line %d", i),
			})
		}
	}
	return docs
}
