package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"obsnote/internal/errors"
	"obsnote/internal/polling"
	"obsnote/ports"
)

// TraceSnapshot is what a client sees of an agent interaction
type TraceSnapshot struct {
	InteractionID string             `json:"interaction_id"`
	Traces        []ports.AgentTrace `json:"traces"`
	Finished      bool               `json:"finished"`
	Polling       bool               `json:"polling"`
	Error         string             `json:"error,omitempty"`
}

// DefaultTraceRetention is how long the traces of a finished interaction
// stay readable
const DefaultTraceRetention = 10 * time.Minute

// AgentTraceService polls agent memory for interactions a client is
// watching. There is at most one poller per interaction.
type AgentTraceService struct {
	memory    ports.AgentMemoryPort
	interval  time.Duration
	retention time.Duration

	mu      sync.Mutex
	pollers map[string]*polling.Poller[ports.AgentTrace]
}

// NewAgentTraceService creates an agent trace service
func NewAgentTraceService(memory ports.AgentMemoryPort, interval time.Duration) *AgentTraceService {
	return &AgentTraceService{
		memory:    memory,
		interval:  interval,
		retention: DefaultTraceRetention,
		pollers:   make(map[string]*polling.Poller[ports.AgentTrace]),
	}
}

// WithRetention sets how long finished interactions are kept. Non-positive
// values keep the default.
func (s *AgentTraceService) WithRetention(d time.Duration) *AgentTraceService {
	if d > 0 {
		s.retention = d
	}
	return s
}

// Start begins polling the interaction. Polling outlives ctx's
// cancellation; it ends when the agent finishes, a fetch fails or Stop is
// called. It reports whether a new loop was started.
func (s *AgentTraceService) Start(ctx context.Context, interactionID string) (bool, error) {
	if interactionID == "" {
		return false, errors.InvalidInput("interaction id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(time.Now())

	p, ok := s.pollers[interactionID]
	if !ok {
		p = polling.NewPoller[ports.AgentTrace](s.interval, func(ctx context.Context) ([]ports.AgentTrace, bool, error) {
			return s.memory.GetTraces(ctx, interactionID)
		}, func(traces []ports.AgentTrace, done bool) {
			logrus.WithFields(logrus.Fields{
				"interaction_id": interactionID,
				"traces":         len(traces),
				"finished":       done,
			}).Debug("agent traces updated")
		})
		s.pollers[interactionID] = p
	}
	return p.Start(context.WithoutCancel(ctx)), nil
}

// pruneLocked forgets interactions that finished more than the retention
// period ago
func (s *AgentTraceService) pruneLocked(now time.Time) {
	for id, p := range s.pollers {
		if finished := p.FinishedAt(); !finished.IsZero() && now.Sub(finished) > s.retention {
			delete(s.pollers, id)
		}
	}
}

// Stop cancels polling and forgets collected traces
func (s *AgentTraceService) Stop(interactionID string) {
	s.mu.Lock()
	p, ok := s.pollers[interactionID]
	delete(s.pollers, interactionID)
	s.mu.Unlock()

	if ok {
		p.Stop()
	}
}

// Snapshot returns what has been collected for the interaction
func (s *AgentTraceService) Snapshot(interactionID string) (TraceSnapshot, error) {
	s.mu.Lock()
	s.pruneLocked(time.Now())
	p, ok := s.pollers[interactionID]
	s.mu.Unlock()
	if !ok {
		return TraceSnapshot{}, errors.NotFound("agent trace poller")
	}

	traces, finished, err := p.Snapshot()
	snap := TraceSnapshot{
		InteractionID: interactionID,
		Traces:        traces,
		Finished:      finished,
		Polling:       p.Active(),
	}
	if snap.Traces == nil {
		snap.Traces = []ports.AgentTrace{}
	}
	if err != nil {
		snap.Error = err.Error()
	}
	return snap, nil
}

// StopAll cancels every poller
func (s *AgentTraceService) StopAll() {
	s.mu.Lock()
	pollers := s.pollers
	s.pollers = make(map[string]*polling.Poller[ports.AgentTrace])
	s.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
}
