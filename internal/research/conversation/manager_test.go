// internal/research/conversation/manager_test.go
package conversation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-workers/internal/models"
)

func turns(n int) []models.ConversationTurn {
	out := make([]models.ConversationTurn, 0, n)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out = append(out, models.ConversationTurn{
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestShouldUseContext(t *testing.T) {
	m := NewManager(Config{})

	tests := []struct {
		name     string
		query    string
		history  []models.ConversationTurn
		expected bool
	}{
		{"no history", "tell me more", nil, false},
		{"one turn", "tell me more", turns(1), false},
		{"tell me more", "tell me more", turns(2), true},
		{"tell me more in a sentence", "Please tell me more about the second option", turns(4), true},
		{"english pronoun", "Is it faster than Java?", turns(2), true},
		{"russian pronoun", "А он поддерживает дженерики?", turns(2), true},
		{"russian phrase", "А как насчет производительности", turns(2), true},
		{"continuation verb", "Продолжи, пожалуйста", turns(2), true},
		{"uppercase marker", "WHAT ABOUT Rust", turns(2), true},
		{"no markers", "What is the capital of France?", turns(6), false},
		{"marker inside a word is ignored", "что нового в Toronto", turns(2), false},
		{"english marker inside a word is ignored", "Explain bitcoin halving", turns(2), false},
		{"contraction", "So it's not thread-safe?", turns(2), true},
		{"curly contraction", "Why is that’s slower", turns(2), true},
		{"contraction without a marker", "Where's the Eiffel tower?", turns(2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.ShouldUseContext(tt.query, tt.history))
		})
	}
}

func TestShouldUseContext_CustomIndicators(t *testing.T) {
	m := NewManager(Config{Indicators: []string{"same thing", "ditto"}})
	assert.True(t, m.ShouldUseContext("ditto for Go", turns(2)))
	assert.True(t, m.ShouldUseContext("and the same thing for Rust", turns(2)))
	assert.False(t, m.ShouldUseContext("tell me more", turns(2)))
}

func TestBuildContext_Format(t *testing.T) {
	m := NewManager(Config{})

	got := m.BuildContext(turns(2))

	assert.Equal(t, "Previous conversation context:\nUser: message 0\nAssistant: message 1", got)
}

func TestBuildContext_Empty(t *testing.T) {
	m := NewManager(Config{})
	assert.Equal(t, "", m.BuildContext(nil))
}

func TestBuildContext_KeepsLastMessages(t *testing.T) {
	m := NewManager(Config{MaxMessages: 3})

	got := m.BuildContext(turns(8))
	lines := strings.Split(got, "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t, "Assistant: message 5", lines[1])
	assert.Equal(t, "User: message 6", lines[2])
	assert.Equal(t, "Assistant: message 7", lines[3])
}

func TestBuildContext_TruncatesFromFront(t *testing.T) {
	// 10 tokens -> 40 characters
	m := NewManager(Config{MaxTokens: 10})
	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: strings.Repeat("a", 30)},
		{Role: models.RoleAssistant, Content: strings.Repeat("b", 10)},
		{Role: models.RoleUser, Content: "short"},
	}

	got := m.BuildContext(history)

	assert.Equal(t, "...\nAssistant: "+strings.Repeat("b", 10)+"\nUser: short", got)
	assert.NotContains(t, got, "aaa")
}

func TestBuildContext_TruncationNeverStartsMidLine(t *testing.T) {
	m := NewManager(Config{MaxTokens: 25})
	history := turns(40)

	got := m.BuildContext(history)
	lines := strings.Split(got, "\n")

	require.Greater(t, len(lines), 1)
	assert.Equal(t, "...", lines[0])
	for _, line := range lines[1:] {
		assert.True(t, strings.HasPrefix(line, "User: ") || strings.HasPrefix(line, "Assistant: "), line)
	}
	assert.True(t, strings.HasSuffix(got, "Assistant: message 39"))
}

func TestBuildContext_SingleOversizedLine(t *testing.T) {
	m := NewManager(Config{MaxTokens: 2})
	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: strings.Repeat("x", 100)},
	}

	// 2 tokens -> 8 characters, all from the oversized newest turn
	assert.Equal(t, "...\n"+strings.Repeat("x", 8), m.BuildContext(history))
}

func TestBuildContext_CountsRunesNotBytes(t *testing.T) {
	m := NewManager(Config{MaxTokens: 100})
	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: strings.Repeat("я", 150)},
		{Role: models.RoleAssistant, Content: strings.Repeat("ю", 150)},
	}

	got := m.BuildContext(history)

	// 400 runes fit the whole text even though it is over 600 bytes.
	assert.True(t, strings.HasPrefix(got, Header))
}
