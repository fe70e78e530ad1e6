// internal/research/ports.go
package research

import (
	"context"
	"errors"
	"fmt"

	"research-workers/internal/models"
)

var (
	ErrGeneration        = errors.New("GENERATION_FAILED")
	ErrGenerationTimeout = errors.New("GENERATION_TIMEOUT")
	ErrSearch            = errors.New("SEARCH_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message { return Message{Role: "system", Content: content} }
func UserMessage(content string) Message   { return Message{Role: "user", Content: content} }

// Generator produces a free-text completion. Implementations must bound every call
// with a timeout and report failures wrapped in ErrGeneration or ErrGenerationTimeout.
type Generator interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}

type SearchOptions struct {
	MaxResults        int
	Region            string
	IncludeRawContent bool
}

// Searcher returns a bounded, ordered list of documents. An empty result list is not
// an error. Failures are wrapped in ErrSearch or ErrSearchTimeout.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)

func (f GeneratorFunc) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	return f(ctx, messages, temperature, maxTokens)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error)

func (f SearcherFunc) Search(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error) {
	return f(ctx, query, opts)
}

// GuardedSearch calls s and converts a panic or a nil response into an ErrSearch
// failure. Use it wherever a search runs on a goroutine outside the caller's recover.
func GuardedSearch(ctx context.Context, s Searcher, query string, opts SearchOptions) (resp *models.SearchResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%w: panic: %v", ErrSearch, r)
		}
	}()
	resp, err = s.Search(ctx, query, opts)
	if err == nil && resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrSearch)
	}
	return resp, err
}
