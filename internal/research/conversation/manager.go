// internal/research/conversation/manager.go
package conversation

import (
	"strings"
	"unicode"

	"research-workers/internal/models"
)

const (
	DefaultMaxMessages = 10
	DefaultMaxTokens   = 4000
	// charsPerToken approximates prompt size without a tokenizer.
	charsPerToken = 4

	Header            = "Previous conversation context:"
	truncationMarker  = "..."
	minTurnsToConsult = 2
)

// DefaultIndicators are anaphoric and continuation markers. Single words are matched
// as whole words, phrases as substrings of the space-normalised query.
var DefaultIndicators = []string{
	// Russian
	"это", "этого", "этом", "этой", "этому",
	"он", "она", "оно", "они",
	"тот", "та", "то", "те",
	"такой", "такая", "такое", "такие",
	"его", "её", "их",
	"также", "еще", "ещё", "тоже",
	"а как", "а что",
	"продолжи", "расскажи больше",
	"подробнее", "детальнее",
	// English
	"it", "its", "this", "that", "these", "those",
	"they", "them", "their", "he", "she", "his", "her",
	"also", "too", "else",
	"tell me more", "more about", "what about", "how about",
	"continue", "go on", "elaborate", "in more detail",
}

type Config struct {
	MaxMessages int
	MaxTokens   int
	Indicators  []string
}

// Manager decides whether prior turns matter for a query and renders them.
type Manager struct {
	maxMessages int
	maxChars    int
	words       map[string]struct{}
	phrases     []string
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Indicators == nil {
		cfg.Indicators = DefaultIndicators
	}

	m := &Manager{
		maxMessages: cfg.MaxMessages,
		maxChars:    cfg.MaxTokens * charsPerToken,
		words:       make(map[string]struct{}),
	}
	for _, ind := range cfg.Indicators {
		ind = strings.ToLower(strings.TrimSpace(ind))
		if ind == "" {
			continue
		}
		if strings.ContainsRune(ind, ' ') {
			m.phrases = append(m.phrases, ind)
		} else {
			m.words[ind] = struct{}{}
		}
	}
	return m
}

// ShouldUseContext is deliberately conservative: it only fires when the query
// explicitly refers back to the conversation.
func (m *Manager) ShouldUseContext(query string, turns []models.ConversationTurn) bool {
	if len(turns) < minTurnsToConsult {
		return false
	}

	// apostrophes split contractions, so "it's" yields "it"
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if _, ok := m.words[tok]; ok {
			return true
		}
	}

	normalised := " " + strings.Join(tokens, " ") + " "
	for _, phrase := range m.phrases {
		if strings.Contains(normalised, " "+phrase+" ") {
			return true
		}
	}
	return false
}

// BuildContext renders the most recent turns under a header. When the text exceeds
// the character budget it is cut from the front and the partial first line dropped.
// If the newest turn alone is over budget, its tail is kept after the marker.
func (m *Manager) BuildContext(turns []models.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > m.maxMessages {
		turns = turns[len(turns)-m.maxMessages:]
	}

	lines := make([]string, 0, len(turns)+1)
	lines = append(lines, Header)
	for _, t := range turns {
		lines = append(lines, t.Label()+": "+t.Content)
	}
	text := strings.Join(lines, "\n")

	runes := []rune(text)
	if len(runes) <= m.maxChars {
		return text
	}

	tail := string(runes[len(runes)-m.maxChars:])
	idx := strings.IndexByte(tail, '\n')
	if idx < 0 {
		return truncationMarker + "\n" + tail
	}
	return truncationMarker + "\n" + tail[idx+1:]
}
