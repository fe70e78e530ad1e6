// internal/providers/searchcache/fanout_test.go
package searchcache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-workers/internal/common/logger"
	"research-workers/internal/models"
	"research-workers/internal/research"
)

func fixed(prefix string, n int, err error) research.Searcher {
	return research.SearcherFunc(func(ctx context.Context, query string, opts research.SearchOptions) (*models.SearchResponse, error) {
		if err != nil {
			return nil, err
		}
		out := make([]models.SearchResult, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, models.SearchResult{URL: fmt.Sprintf("%s/%d", prefix, i)})
		}
		return &models.SearchResponse{Results: out, Query: query}, nil
	})
}

func urls(resp *models.SearchResponse) []string {
	out := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.URL)
	}
	return out
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		web   int
		kb    int
		limit int
		want  []string
	}{
		{"reserves knowledge slots", 5, 3, 5, []string{"w/0", "w/1", "w/2", "k/0", "k/1"}},
		{"web fills unused slots", 5, 0, 5, []string{"w/0", "w/1", "w/2", "w/3", "w/4"}},
		{"knowledge fills unused slots", 1, 6, 5, []string{"w/0", "k/0", "k/1", "k/2", "k/3"}},
		{"no limit keeps all", 2, 1, 0, []string{"w/0", "w/1", "k/0"}},
		{"limit smaller than slots", 3, 3, 1, []string{"k/0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			web, _ := fixed("w", tt.web, nil).Search(context.Background(), "q", research.SearchOptions{})
			kb, _ := fixed("k", tt.kb, nil).Search(context.Background(), "q", research.SearchOptions{})
			got := merge(web.Results, kb.Results, tt.limit, DefaultKnowledgeSlots)
			assert.Equal(t, tt.want, urls(&models.SearchResponse{Results: got}))
		})
	}
}

func TestFanout_OneSideFailing(t *testing.T) {
	f := NewFanout(fixed("w", 3, research.ErrSearch), fixed("k", 2, nil), 0, logger.NewTestLogger(t))
	resp, err := f.Search(context.Background(), "q", research.SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"k/0", "k/1"}, urls(resp))

	f = NewFanout(fixed("w", 3, nil), fixed("k", 2, research.ErrSearchTimeout), 0, logger.NewTestLogger(t))
	resp, err = f.Search(context.Background(), "q", research.SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"w/0", "w/1", "w/2"}, urls(resp))
}

func TestFanout_BothFailing(t *testing.T) {
	f := NewFanout(fixed("w", 0, research.ErrSearch), fixed("k", 0, research.ErrSearchTimeout), 0, logger.NewTestLogger(t))
	_, err := f.Search(context.Background(), "q", research.SearchOptions{MaxResults: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, research.ErrSearch)

	f = NewFanout(fixed("w", 0, research.ErrSearchTimeout), fixed("k", 0, research.ErrSearchTimeout), 0, logger.NewTestLogger(t))
	_, err = f.Search(context.Background(), "q", research.SearchOptions{MaxResults: 5})
	assert.ErrorIs(t, err, research.ErrSearchTimeout)
}

func TestFanout_NilAndPanickingSidesDegrade(t *testing.T) {
	nilSide := research.SearcherFunc(func(ctx context.Context, query string, opts research.SearchOptions) (*models.SearchResponse, error) {
		return nil, nil
	})
	panicSide := research.SearcherFunc(func(ctx context.Context, query string, opts research.SearchOptions) (*models.SearchResponse, error) {
		panic("boom")
	})

	resp, err := NewFanout(fixed("web", 3, nil), panicSide, 2, logger.NewTestLogger(t)).
		Search(context.Background(), "q", research.SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"web/0", "web/1", "web/2"}, urls(resp))

	_, err = NewFanout(nilSide, panicSide, 2, logger.NewTestLogger(t)).
		Search(context.Background(), "q", research.SearchOptions{MaxResults: 5})
	require.ErrorIs(t, err, research.ErrSearch)
}
