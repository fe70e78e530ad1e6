// internal/research/pro/dedup.go
package pro

import "research-workers/internal/models"

// Dedup keeps the first occurrence of each URL in input order. Results without a URL are dropped.
func Dedup(results []models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
	}
	return out
}
