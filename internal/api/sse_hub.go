package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"obsnote/domain/core"
	"obsnote/internal/state"
)

// DefaultPingInterval keeps idle event streams from being cut by proxies
const DefaultPingInterval = 30 * time.Second

// Event names written to the stream
const (
	EventState = "state"
	EventPing  = "ping"
)

// SSEHub streams paragraph state snapshots to Server-Sent Events clients
type SSEHub struct {
	states       *state.Store
	pingInterval time.Duration
}

// NewSSEHub creates a hub over the state store
func NewSSEHub(states *state.Store) *SSEHub {
	return &SSEHub{states: states, pingInterval: DefaultPingInterval}
}

// WithPingInterval overrides the keep-alive interval
func (h *SSEHub) WithPingInterval(d time.Duration) *SSEHub {
	if d > 0 {
		h.pingInterval = d
	}
	return h
}

// HandleSSE streams the state of the paragraph named by the :id route
// parameter. The current snapshot is sent first, then every change until
// the client disconnects.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	id, err := core.ParseParagraphID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates, unsubscribe := h.states.Subscribe(id)
	defer unsubscribe()

	log := logrus.WithField("paragraph_id", id)
	log.WithField("clients", h.states.SubscriberCount(id)).Debug("event stream opened")
	defer log.Debug("event stream closed")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeState(c, h.states.Get(id))

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return false
			}
			writeState(c, snapshot)
			return true

		case <-ping.C:
			c.SSEvent(EventPing, `{"status":"alive","timestamp":"`+time.Now().UTC().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

func writeState(c *gin.Context, snapshot state.AnalysisState) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		logrus.WithError(err).Warn("failed to marshal state event")
		return
	}
	c.SSEvent(EventState, string(data))
	c.Writer.Flush()
}
