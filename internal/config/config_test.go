package config

import (
	"testing"
	"time"

	apperrors "obsnote/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "GIN_MODE", "DATABASE_DRIVER", "DATABASE_URL", "SEARCH_URL", "SEARCH_TIMEOUT",
		"FIELD_CACHE_TTL", "LOG_PATTERN_URL", "ML_AGENT_URL", "AGENT_POLL_INTERVAL",
		"AGENT_TRACE_RETENTION", "SAMPLE_SIZE", "MAX_RESULTS", "GROUP_COUNT", "FIELD_WORKERS", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "obsnote.db", cfg.Database.URL)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Analysis.SampleSize)
	assert.Equal(t, 30, cfg.Analysis.MaxResults)
	assert.Equal(t, 5, cfg.Analysis.GroupCount)
	assert.Equal(t, 5*time.Minute, cfg.Search.FieldCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.Agent.TraceRetention)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/obsnote?sslmode=disable")
	t.Setenv("SEARCH_URL", "https://search.internal:9200")
	t.Setenv("SEARCH_TIMEOUT", "5s")
	t.Setenv("SAMPLE_SIZE", "250")
	t.Setenv("AGENT_POLL_INTERVAL", "500ms")
	t.Setenv("AGENT_TRACE_RETENTION", "1h")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://search.internal:9200", cfg.Search.URL)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 250, cfg.Analysis.SampleSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.PollInterval)
	assert.Equal(t, time.Hour, cfg.Agent.TraceRetention)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"relative search url", map[string]string{"DATABASE_DRIVER": "sqlite3", "SEARCH_URL": "localhost"}},
		{"zero sample size", map[string]string{"DATABASE_DRIVER": "sqlite3", "SAMPLE_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			require.Error(t, err)
			assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
		})
	}
}
