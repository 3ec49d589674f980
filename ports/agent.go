package ports

import (
	"context"
	"time"
)

// AgentTrace is one recorded step of an ML-agent interaction
type AgentTrace struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Response  string    `json:"response"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentMemoryPort reads the traces an ML agent writes while it works
type AgentMemoryPort interface {
	// GetTraces returns all traces recorded so far for the interaction and
	// whether the interaction has finished.
	GetTraces(ctx context.Context, interactionID string) ([]AgentTrace, bool, error)
}
