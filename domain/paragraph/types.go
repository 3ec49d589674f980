package paragraph

import (
	"encoding/json"
	"time"

	"obsnote/domain/core"
)

// OutputKind says which analysis produced a paragraph output
type OutputKind string

const (
	OutputBubbleUp   OutputKind = "bubble_up"
	OutputLogPattern OutputKind = "log_pattern"
)

// Output is an analysis result persisted against a paragraph so reopening
// a notebook renders it without re-querying. Payload is opaque JSON.
type Output struct {
	ParagraphID core.ParagraphID `json:"paragraph_id" db:"paragraph_id"`
	Kind        OutputKind       `json:"kind" db:"kind"`
	RequestHash core.RequestHash `json:"request_hash" db:"request_hash"`
	Payload     json.RawMessage  `json:"payload" db:"payload"`
	Version     int              `json:"version" db:"version"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// NewOutput marshals payload into an Output
func NewOutput(id core.ParagraphID, kind OutputKind, hash core.RequestHash, payload interface{}) (*Output, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Output{
		ParagraphID: id,
		Kind:        kind,
		RequestHash: hash,
		Payload:     raw,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v
func (o *Output) Decode(v interface{}) error {
	return json.Unmarshal(o.Payload, v)
}
