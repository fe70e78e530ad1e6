// internal/research/ports_test.go
package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-workers/internal/models"
)

func TestGuardedSearch(t *testing.T) {
	tests := []struct {
		name    string
		search  SearcherFunc
		wantErr error
		wantMsg string
	}{
		{
			name: "ok",
			search: func(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error) {
				return &models.SearchResponse{Query: query}, nil
			},
		},
		{
			name: "nil response",
			search: func(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error) {
				return nil, nil
			},
			wantErr: ErrSearch,
			wantMsg: "empty response",
		},
		{
			name: "panic",
			search: func(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error) {
				panic("bad index")
			},
			wantErr: ErrSearch,
			wantMsg: "panic: bad index",
		},
		{
			name: "error passes through",
			search: func(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error) {
				return nil, ErrSearchTimeout
			},
			wantErr: ErrSearchTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := GuardedSearch(context.Background(), tt.search, "q", SearchOptions{})
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "q", resp.Query)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Nil(t, resp)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
