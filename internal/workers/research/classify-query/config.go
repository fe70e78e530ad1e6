// internal/workers/research/classify-query/config.go
package classifyquery

import "time"

type Config struct {
	Timeout time.Duration
	// UseLLMRouter applies when the job does not set useLlm.
	UseLLMRouter bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		UseLLMRouter: true,
	}
}
