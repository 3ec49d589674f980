package logpattern

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"obsnote/domain/core"
	"obsnote/domain/logpattern"
	"obsnote/ports"
)

const analyzePath = "/api/logpattern/analyze"

// Client posts analysis requests to the log pattern backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.LogPatternPort = (*Client)(nil)

// NewClient creates a log pattern client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze submits one request. A 404 means the analysis agent is not
// deployed and is reported as core.ErrAgentNotFound.
func (c *Client) Analyze(ctx context.Context, request logpattern.AnalyzeRequest) (*logpattern.AnalyzeResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("log pattern request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.ErrAgentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, fmt.Errorf("log pattern backend returned status %d: %s", resp.StatusCode, msg)
	}

	var out logpattern.AnalyzeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
