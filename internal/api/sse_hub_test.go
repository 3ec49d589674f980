package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"obsnote/domain/paragraph"
	"obsnote/internal/state"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEvent reads one event block and returns its name and data
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" || data != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func newStreamServer(t *testing.T, hub *SSEHub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/paragraphs/:id/events", hub.HandleSSE)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func openStream(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func TestSSEHubStreamsStateChanges(t *testing.T) {
	states := state.NewStore()
	srv := newStreamServer(t, NewSSEHub(states))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, reader := openStream(t, ctx, srv.URL+"/paragraphs/p1/events")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	name, data := readEvent(t, reader)
	assert.Equal(t, EventState, name)
	assert.Contains(t, data, `"status":"idle"`)
	assert.Equal(t, 1, states.SubscriberCount("p1"))

	states.Begin("p1", paragraph.OutputBubbleUp, 3)
	name, data = readEvent(t, reader)
	assert.Equal(t, EventState, name)
	assert.Contains(t, data, `"status":"loading"`)
	assert.Contains(t, data, `"total_steps":3`)

	states.Progress("p1", 1, 3)
	_, data = readEvent(t, reader)
	assert.Contains(t, data, "Analyzing... (1/3)")

	cancel()
	assert.Eventually(t, func() bool {
		return states.SubscriberCount("p1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSSEHubSendsPing(t *testing.T) {
	states := state.NewStore()
	srv := newStreamServer(t, NewSSEHub(states).WithPingInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, reader := openStream(t, ctx, srv.URL+"/paragraphs/p1/events")
	name, _ := readEvent(t, reader)
	require.Equal(t, EventState, name)

	name, data := readEvent(t, reader)
	assert.Equal(t, EventPing, name)
	assert.Contains(t, data, "alive")
}
