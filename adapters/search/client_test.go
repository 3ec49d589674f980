package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"obsnote/domain/core"
	"obsnote/domain/sample"
	"obsnote/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testWindow() sample.TimeWindow {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return sample.TimeWindow{Start: start, End: start.Add(time.Hour)}
}

func TestFetchBuildsBoolQuery(t *testing.T) {
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/logs-*/_search", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "reader", user)
		assert.Equal(t, "secret", pass)
		captured, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"1","_source":{"service":{"name":"cart"},"status":200}},
			{"_id":"2","_source":{"service":{"name":"checkout"},"status":500}}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", Username: "reader", Password: "secret"})
	docs, err := client.Fetch(context.Background(), ports.FetchRequest{
		Index:     "logs-*",
		TimeField: "timestamp",
		Window:    testWindow(),
		Filters: []sample.Filter{
			sample.Filter(`{"term":{"env":"prod"}}`),
			sample.Filter(`{"term":`),
			sample.Filter(`"not a clause"`),
		},
		Size: 50,
	})

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "cart", docs[0]["service"].(map[string]interface{})["name"])
	assert.Equal(t, float64(500), docs[1]["status"])

	query := gjson.ParseBytes(captured)
	assert.Equal(t, int64(50), query.Get("size").Int())
	filters := query.Get("query.bool.filter").Array()
	require.Len(t, filters, 2)
	assert.Equal(t, "2024-03-01T12:00:00Z", filters[0].Get(`range.timestamp.gte`).String())
	assert.Equal(t, "2024-03-01T13:00:00Z", filters[0].Get(`range.timestamp.lt`).String())
	assert.Equal(t, "prod", filters[1].Get("term.env").String())
}

func TestFetchReportsBackendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"reason":"shard failure"}}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Fetch(context.Background(), ports.FetchRequest{
		Index: "logs", TimeField: "ts", Window: testWindow(),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "shard failure")
}

func TestFetchMissingIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"reason":"no such index [nope]"}}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Fetch(context.Background(), ports.FetchRequest{
		Index: "nope", TimeField: "ts", Window: testWindow(),
	})

	assert.ErrorIs(t, err, core.ErrIndexNotFound)
}

const mappingResponse = `{
  "logs-2024.03.01": {"mappings": {"properties": {
    "@timestamp": {"type": "date"},
    "message": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
    "service": {"properties": {"name": {"type": "keyword"}}},
    "status": {"type": "long"}
  }}},
  "logs-2024.03.02": {"mappings": {"properties": {
    "service": {"properties": {"name": {"type": "keyword"}}},
    "user_id": {"type": "keyword"}
  }}}
}`

func TestGetFieldsFlattensAndCaches(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/logs-*/_mapping", r.URL.Path)
		_, _ = w.Write([]byte(mappingResponse))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, FieldCacheTTL: time.Minute})
	fields, err := client.GetFields(context.Background(), "logs-*")
	require.NoError(t, err)

	byName := make(map[string]string)
	for _, f := range fields {
		byName[f.Name] = f.StorageType
	}
	assert.Equal(t, map[string]string{
		"@timestamp":      "date",
		"message":         "text",
		"message.keyword": "keyword",
		"service.name":    "keyword",
		"status":          "long",
		"user_id":         "keyword",
	}, byName)

	_, err = client.GetFields(context.Background(), "logs-*")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	client.InvalidateFields("logs-*")
	_, err = client.GetFields(context.Background(), "logs-*")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
