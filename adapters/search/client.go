package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"obsnote/domain/core"
	"obsnote/domain/sample"
	"obsnote/ports"
)

// Config holds the search backend connection settings
type Config struct {
	BaseURL       string
	Username      string
	Password      string
	Timeout       time.Duration
	FieldCacheTTL time.Duration
}

// Client talks to an Elasticsearch/OpenSearch compatible backend. It
// implements both ports.SearchPort and ports.FieldMetadataPort.
type Client struct {
	config     Config
	httpClient *http.Client
	fields     *cache.Cache
}

var (
	_ ports.SearchPort        = (*Client)(nil)
	_ ports.FieldMetadataPort = (*Client)(nil)
)

// NewClient creates a search client
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.FieldCacheTTL <= 0 {
		config.FieldCacheTTL = 5 * time.Minute
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		fields:     cache.New(config.FieldCacheTTL, 2*config.FieldCacheTTL),
	}
}

// Fetch runs a bool query with a range clause on the time field, every
// valid extra filter clause and the size cap. Invalid filter clauses are
// logged and skipped one by one.
func (c *Client) Fetch(ctx context.Context, req ports.FetchRequest) ([]sample.Document, error) {
	body, err := json.Marshal(buildQuery(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.indexURL(req.Index, "_search"), body)
	if err != nil {
		return nil, err
	}

	hits := gjson.GetBytes(resp, "hits.hits")
	docs := make([]sample.Document, 0, len(hits.Array()))
	var decodeErr error
	hits.ForEach(func(_, hit gjson.Result) bool {
		source := hit.Get("_source")
		if !source.IsObject() {
			return true
		}
		var doc sample.Document
		if err := json.Unmarshal([]byte(source.Raw), &doc); err != nil {
			decodeErr = fmt.Errorf("failed to decode hit %s: %w", hit.Get("_id").String(), err)
			return false
		}
		docs = append(docs, doc)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return docs, nil
}

func buildQuery(req ports.FetchRequest) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				req.TimeField: map[string]interface{}{
					"gte":    req.Window.Start.UTC().Format(time.RFC3339Nano),
					"lt":     req.Window.End.UTC().Format(time.RFC3339Nano),
					"format": "strict_date_optional_time",
				},
			},
		},
	}
	for i, f := range req.Filters {
		if !gjson.ValidBytes(f) || !gjson.ParseBytes(f).IsObject() {
			logrus.WithFields(logrus.Fields{
				"index":  req.Index,
				"clause": i,
			}).Warn("skipping invalid filter clause")
			continue
		}
		filters = append(filters, json.RawMessage(f))
	}

	size := req.Size
	if size <= 0 {
		size = sample.DefaultSampleSize
	}
	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []interface{}{
			map[string]interface{}{req.TimeField: map[string]string{"order": "desc"}},
		},
	}
}

// GetFields reads the index mapping and flattens it into field names with
// their storage types. Multi-fields such as message.keyword are included.
// Results are cached per index for the configured TTL.
func (c *Client) GetFields(ctx context.Context, index core.IndexName) ([]sample.FieldMetadata, error) {
	if cached, ok := c.fields.Get(index.String()); ok {
		return cached.([]sample.FieldMetadata), nil
	}

	resp, err := c.do(ctx, http.MethodGet, c.indexURL(index, "_mapping"), nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var fields []sample.FieldMetadata
	gjson.ParseBytes(resp).ForEach(func(_, idx gjson.Result) bool {
		collectProperties(idx.Get("mappings.properties"), "", func(f sample.FieldMetadata) {
			if !seen[f.Name] {
				seen[f.Name] = true
				fields = append(fields, f)
			}
		})
		return true
	})

	c.fields.SetDefault(index.String(), fields)
	return fields, nil
}

func collectProperties(props gjson.Result, prefix string, emit func(sample.FieldMetadata)) {
	props.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + "." + name
		}
		if nested := value.Get("properties"); nested.Exists() {
			collectProperties(nested, name, emit)
			return true
		}
		emit(sample.FieldMetadata{Name: name, StorageType: value.Get("type").String()})
		value.Get("fields").ForEach(func(sub, subValue gjson.Result) bool {
			emit(sample.FieldMetadata{
				Name:        name + "." + sub.String(),
				StorageType: subValue.Get("type").String(),
			})
			return true
		})
		return true
	})
}

// InvalidateFields drops the cached mapping of an index
func (c *Client) InvalidateFields(index core.IndexName) {
	c.fields.Delete(index.String())
}

func (c *Client) indexURL(index core.IndexName, endpoint string) string {
	return fmt.Sprintf("%s/%s/%s", c.config.BaseURL, url.PathEscape(index.String()), endpoint)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", core.ErrIndexNotFound, errorReason(data))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("search backend returned status %d: %s", resp.StatusCode, errorReason(data))
	}
	return data, nil
}

func errorReason(body []byte) string {
	if reason := gjson.GetBytes(body, "error.reason"); reason.Exists() {
		return reason.String()
	}
	if msg := gjson.GetBytes(body, "message"); msg.Exists() {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}
