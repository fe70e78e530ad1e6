// internal/workers/research/run-research-query/config.go
package runresearchquery

import "time"

type Config struct {
	Timeout time.Duration
	// HistoryLimit is the number of stored turns loaded when previousMessages is absent.
	HistoryLimit int
	SaveHistory  bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      120 * time.Second,
		HistoryLimit: 10,
		SaveHistory:  true,
	}
}
