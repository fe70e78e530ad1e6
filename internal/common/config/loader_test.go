// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
apis:
  llm:
    base_url: http://llm.local/v1
  web_search:
    base_url: http://search.local
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Research.MaxResultsSimple)
	assert.Equal(t, 10, cfg.Research.MaxResultsPro)
	assert.Equal(t, 10, cfg.Research.MaxContextMessages)
	assert.Equal(t, 4000, cfg.Research.MaxContextTokens)
	assert.Equal(t, 3, cfg.Research.SubqueryConcurrency)
	assert.Equal(t, 512, cfg.Research.RouterCacheSize)
	assert.True(t, cfg.Research.LLMRouterEnabled())
	assert.Equal(t, "gpt-4o-mini", cfg.APIs.LLM.Model)
	assert.Equal(t, 60000, cfg.APIs.LLM.Timeout)
	assert.Equal(t, 15000, cfg.APIs.WebSearch.Timeout)
	assert.Equal(t, 2, cfg.APIs.LLM.MaxRetries)
	assert.False(t, cfg.Database.Postgres.Enabled())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("TEST_LLM_HOST", "llm.internal")
	t.Setenv("LLM_API_KEY", "sk-from-env")
	path := writeConfig(t, `
apis:
  llm:
    base_url: http://${TEST_LLM_HOST}/v1
  web_search:
    base_url: http://search.local
research:
  use_llm_router: false
  max_results_simple: 3
workers:
  run-research-query:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://llm.internal/v1", cfg.APIs.LLM.BaseURL)
	assert.Equal(t, "sk-from-env", cfg.APIs.LLM.APIKey)
	assert.False(t, cfg.Research.LLMRouterEnabled())
	assert.Equal(t, 3, cfg.Research.MaxResultsSimple)

	w := GetWorkerConfig(cfg, "run-research-query")
	assert.True(t, w.Enabled)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 30*time.Second, GetDuration(w.Timeout))
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing llm", "apis:\n  web_search:\n    base_url: http://s\n", "apis.llm.base_url"},
		{"missing search", "apis:\n  llm:\n    base_url: http://l\n", "apis.web_search.base_url"},
		{"cache without redis", "apis:\n  llm:\n    base_url: http://l\n  web_search:\n    base_url: http://s\nsearch_cache:\n  enabled: true\n", "database.redis.address"},
		{"knowledge without es", "apis:\n  llm:\n    base_url: http://l\n  web_search:\n    base_url: http://s\nresearch:\n  knowledge_index: kb\n", "database.elasticsearch"},
		{"postgres without db", "apis:\n  llm:\n    base_url: http://l\n  web_search:\n    base_url: http://s\ndatabase:\n  postgres:\n    host: db\n", "database.postgres.database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateWorkers(t *testing.T) {
	assert.Error(t, ValidateWorkers(&Config{}))
	assert.NoError(t, ValidateWorkers(&Config{Camunda: CamundaConfig{BrokerAddress: "localhost:26500"}}))
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"classify-query": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "classify-query"))
	assert.True(t, IsWorkerEnabled(cfg, "run-research-query"))
}
