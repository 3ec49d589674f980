package mlagent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"obsnote/domain/core"
	"obsnote/ports"
)

// Client reads ML-agent conversation memory
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.AgentMemoryPort = (*Client)(nil)

// NewClient creates a memory client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetTraces returns the traces of a message and whether the agent has
// written its final response.
func (c *Client) GetTraces(ctx context.Context, interactionID string) ([]ports.AgentTrace, bool, error) {
	id := url.PathEscape(interactionID)

	tracesBody, err := c.get(ctx, "/_plugins/_ml/memory/message/"+id+"/traces")
	if err != nil {
		return nil, false, err
	}
	messageBody, err := c.get(ctx, "/_plugins/_ml/memory/message/"+id)
	if err != nil {
		return nil, false, err
	}

	var traces []ports.AgentTrace
	gjson.GetBytes(tracesBody, "traces").ForEach(func(_, t gjson.Result) bool {
		traces = append(traces, ports.AgentTrace{
			ID:        t.Get("message_id").String(),
			Input:     t.Get("input").String(),
			Response:  t.Get("response").String(),
			Origin:    t.Get("origin").String(),
			CreatedAt: t.Get("create_time").Time(),
		})
		return true
	})

	finished := strings.TrimSpace(gjson.GetBytes(messageBody, "response").String()) != ""
	return traces, finished, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memory request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.NewNotFoundError("agent message", path)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("memory API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
