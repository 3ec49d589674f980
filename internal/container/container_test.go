package container

import (
	"context"
	"testing"
	"time"

	"obsnote/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Port: "8080", GinMode: "test"},
		Database:   config.DatabaseConfig{Driver: config.DriverSQLite, URL: ":memory:"},
		Search:     config.SearchConfig{URL: "http://localhost:9200", Timeout: time.Second},
		LogPattern: config.LogPatternConfig{URL: "http://localhost:8000", Timeout: time.Second},
		Agent:      config.AgentConfig{URL: "http://localhost:9200", PollInterval: time.Second},
		Analysis:   config.AnalysisConfig{SampleSize: 100, MaxResults: 10, GroupCount: 5, FieldWorkers: 2},
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestOpenWiresServices(t *testing.T) {
	c, err := Open(context.Background(), testConfig())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer c.Shutdown(context.Background())

	assert.NotNil(t, c.OutputRepo)
	assert.NotNil(t, c.BubbleUp)
	assert.NotNil(t, c.LogPatterns)
	assert.NotNil(t, c.Paragraphs)
	assert.NotNil(t, c.AgentTraces)
	require.NotNil(t, c.Server())
	assert.NotNil(t, c.Server().Handler())
}
