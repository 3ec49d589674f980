// Package state keeps the live analysis state of every paragraph and
// notifies subscribers whenever it changes.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"obsnote/domain/core"
	"obsnote/domain/logpattern"
	"obsnote/domain/paragraph"
)

// Status is the lifecycle position of a paragraph's analysis
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusCompleted Status = "completed"
	StatusEmpty     Status = "empty"
	StatusFailed    Status = "failed"
)

const (
	MessageNoResultsYet       = "no results yet"
	MessageNoResultsAvailable = "no results available"
)

const subscriberBuffer = 16

// AnalysisState is a snapshot of one paragraph's analysis. Result holds the
// latest (possibly partial) payload as JSON.
type AnalysisState struct {
	ParagraphID core.ParagraphID        `json:"paragraph_id"`
	Kind        paragraph.OutputKind    `json:"kind,omitempty"`
	Status      Status                  `json:"status"`
	Step        int                     `json:"step"`
	TotalSteps  int                     `json:"total_steps"`
	Message     string                  `json:"message"`
	Error       string                  `json:"error,omitempty"`
	ErrorCode   string                  `json:"error_code,omitempty"`
	Steps       []logpattern.StepRecord `json:"steps,omitempty"`
	Result      json.RawMessage         `json:"result,omitempty"`
	Run         uint64                  `json:"run"`
	Version     int                     `json:"version"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Terminal reports whether the analysis has stopped
func (s AnalysisState) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusEmpty || s.Status == StatusFailed
}

// LoadingMessage formats step progress
func LoadingMessage(step, total int) string {
	return fmt.Sprintf("Analyzing... (%d/%d)", step, total)
}

// Store is a concurrency-safe map of paragraph states with per-paragraph
// subscriptions. Notifications never block: a subscriber whose buffer is
// full misses that snapshot.
type Store struct {
	mu          sync.RWMutex
	states      map[core.ParagraphID]AnalysisState
	subscribers map[core.ParagraphID]map[chan AnalysisState]struct{}
	runs        map[core.ParagraphID]*Run
	// runLocks order run starts, resets and commits of one paragraph
	runLocks    map[core.ParagraphID]*sync.Mutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		states:      make(map[core.ParagraphID]AnalysisState),
		subscribers: make(map[core.ParagraphID]map[chan AnalysisState]struct{}),
		runs:        make(map[core.ParagraphID]*Run),
		runLocks:    make(map[core.ParagraphID]*sync.Mutex),
	}
}

func (s *Store) runLock(id core.ParagraphID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.runLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.runLocks[id] = l
	}
	return l
}

// Get returns the current state; unknown paragraphs are idle
func (s *Store) Get(id core.ParagraphID) AnalysisState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id core.ParagraphID) AnalysisState {
	if st, ok := s.states[id]; ok {
		return st
	}
	return AnalysisState{ParagraphID: id, Status: StatusIdle, Message: MessageNoResultsYet}
}

// Subscribe returns a channel receiving every later snapshot of id and a
// func that ends the subscription. The unsubscribe func is idempotent.
func (s *Store) Subscribe(id core.ParagraphID) (<-chan AnalysisState, func()) {
	ch := make(chan AnalysisState, subscriberBuffer)

	s.mu.Lock()
	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[chan AnalysisState]struct{})
	}
	s.subscribers[id][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subscribers[id]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(s.subscribers, id)
				}
			}
			close(ch)
		})
	}
}

// SubscriberCount returns the number of active subscriptions for id
func (s *Store) SubscriberCount(id core.ParagraphID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[id])
}

// Update applies mutate to the state of id, bumps its version and
// notifies subscribers. The new snapshot is returned.
func (s *Store) Update(id core.ParagraphID, mutate func(*AnalysisState)) AnalysisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, mutate)
}

// updateRun applies mutate only while run is the newest run of id
func (s *Store) updateRun(id core.ParagraphID, run uint64, mutate func(*AnalysisState)) (AnalysisState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.getLocked(id); st.Run != run {
		return st, false
	}
	return s.updateLocked(id, mutate), true
}

func (s *Store) updateLocked(id core.ParagraphID, mutate func(*AnalysisState)) AnalysisState {
	st := s.getLocked(id)
	mutate(&st)
	st.ParagraphID = id
	st.Version++
	st.UpdatedAt = time.Now().UTC()
	s.states[id] = st

	for ch := range s.subscribers[id] {
		select {
		case ch <- st:
		default:
			logrus.WithField("paragraph_id", id).Debug("state subscriber buffer full, skipping snapshot")
		}
	}
	return st
}

// Begin marks a new run as loading and clears the previous result. Updates
// of any earlier Run of id are dropped from then on.
func (s *Store) Begin(id core.ParagraphID, kind paragraph.OutputKind, total int) AnalysisState {
	l := s.runLock(id)
	l.Lock()
	defer l.Unlock()
	return s.begin(id, kind, total)
}

// Start begins a run of id and returns its handle together with a context
// that is cancelled when a newer run starts or the paragraph is reset.
func (s *Store) Start(ctx context.Context, id core.ParagraphID, kind paragraph.OutputKind, total int) (context.Context, *Run) {
	l := s.runLock(id)
	l.Lock()
	defer l.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	st := s.begin(id, kind, total)
	run := &Run{store: s, id: id, token: st.Run, cancel: cancel}

	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()
	return runCtx, run
}

func (s *Store) begin(id core.ParagraphID, kind paragraph.OutputKind, total int) AnalysisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.runs[id]
	delete(s.runs, id)
	st := s.updateLocked(id, func(st *AnalysisState) {
		*st = AnalysisState{
			Kind:       kind,
			Status:     StatusLoading,
			TotalSteps: total,
			Message:    LoadingMessage(0, total),
			Run:        st.Run + 1,
			Version:    st.Version,
		}
	})
	if prev != nil {
		prev.cancel()
	}
	return st
}

func progressed(step, total int) func(*AnalysisState) {
	return func(st *AnalysisState) {
		st.Status = StatusLoading
		st.Step = step
		st.TotalSteps = total
		st.Message = LoadingMessage(step, total)
	}
}

func partial(raw json.RawMessage, step logpattern.StepRecord) func(*AnalysisState) {
	return func(st *AnalysisState) {
		if raw != nil {
			st.Result = raw
		}
		st.Steps = append(append([]logpattern.StepRecord(nil), st.Steps...), step)
	}
}

func completed(raw json.RawMessage) func(*AnalysisState) {
	return func(st *AnalysisState) {
		st.Status = StatusCompleted
		st.Step = st.TotalSteps
		st.Message = "completed"
		st.Error = ""
		st.ErrorCode = ""
		st.Result = raw
	}
}

func emptied(raw json.RawMessage) func(*AnalysisState) {
	return func(st *AnalysisState) {
		st.Status = StatusEmpty
		st.Message = MessageNoResultsAvailable
		st.Result = raw
	}
}

func failed(code string, err error) func(*AnalysisState) {
	return func(st *AnalysisState) {
		st.Status = StatusFailed
		st.Message = "error"
		st.Error = err.Error()
		st.ErrorCode = code
	}
}

// Progress records that step of total has started
func (s *Store) Progress(id core.ParagraphID, step, total int) AnalysisState {
	return s.Update(id, progressed(step, total))
}

// ApplyPartial stores an intermediate result and the step that produced it
// while the run keeps loading.
func (s *Store) ApplyPartial(id core.ParagraphID, result interface{}, step logpattern.StepRecord) (AnalysisState, error) {
	raw, err := encode(result)
	if err != nil {
		return AnalysisState{}, err
	}
	return s.Update(id, partial(raw, step)), nil
}

// Complete stores the final result
func (s *Store) Complete(id core.ParagraphID, result interface{}) (AnalysisState, error) {
	raw, err := encode(result)
	if err != nil {
		return AnalysisState{}, err
	}
	return s.Update(id, completed(raw)), nil
}

// Empty marks a run that finished without anything to show
func (s *Store) Empty(id core.ParagraphID, result interface{}) AnalysisState {
	raw, _ := encode(result)
	return s.Update(id, emptied(raw))
}

// Fail marks the run as failed. The error message is shown verbatim.
func (s *Store) Fail(id core.ParagraphID, code string, err error) AnalysisState {
	return s.Update(id, failed(code, err))
}

// Restore seeds the state from a persisted output without re-running
func (s *Store) Restore(output *paragraph.Output) AnalysisState {
	return s.Update(output.ParagraphID, func(st *AnalysisState) {
		st.Kind = output.Kind
		st.Status = StatusCompleted
		st.Message = "completed"
		st.Result = output.Payload
	})
}

// Reset forgets the state of id and supersedes any run in flight;
// subscribers receive an idle snapshot.
func (s *Store) Reset(id core.ParagraphID) AnalysisState {
	l := s.runLock(id)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev := s.runs[id]; prev != nil {
		delete(s.runs, id)
		prev.cancel()
	}
	return s.updateLocked(id, func(st *AnalysisState) {
		*st = AnalysisState{Status: StatusIdle, Message: MessageNoResultsYet, Run: st.Run + 1, Version: st.Version}
	})
}

func encode(result interface{}) (json.RawMessage, error) {
	if result == nil {
		return nil, nil
	}
	if raw, ok := result.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis result: %w", err)
	}
	return raw, nil
}
