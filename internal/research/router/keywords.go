// internal/research/router/keywords.go
package router

import "strings"

// Keywords holds the phrase sets the heuristic matches against a lowercased query.
// Phrases are matched as substrings, so stems like "сравни" also cover inflections.
type Keywords struct {
	Pro            []string
	Simple         []string
	QuestionWords  []string
	MechanismWords []string
	Conjunctions   []string
}

// DefaultKeywords returns the bilingual (Russian/English) phrase sets.
func DefaultKeywords() *Keywords {
	return &Keywords{
		Pro: []string{
			// comparison
			"сравни", "сравнить", "compare", "отличие", "difference", "versus", "vs",
			"лучше", "хуже", "better", "worse",
			"плюсы и минусы", "преимущества и недостатки", "pros and cons", "advantages", "disadvantages",
			// analysis
			"проанализируй", "analyze", "исследуй", "research", "подробно", "детально", "detailed", "comprehensive",
			// causal
			"почему", "why", "как работает", "how does", "how works",
			// verification
			"правда ли", "is it true", "факт", "fact check", "достоверно", "reliable", "проверь", "verify",
			"по данным", "according to", "исследования показывают", "эксперты", "experts", "мнения", "opinions",
			// explanation
			"объясни", "explain", "расскажи подробно", "tell me more", "каким образом", "how exactly",
			"в чем причина", "what causes",
		},
		Simple: []string{
			"что такое", "what is", "кто такой", "who is", "определение", "definition", "значение", "meaning",
			"когда", "when", "где", "where", "сколько", "how many", "how much", "дата", "date", "год", "year",
			"как сделать", "how to", "инструкция", "instruction",
		},
		QuestionWords: []string{
			"как", "что", "где", "когда", "почему", "зачем",
			"how", "what", "where", "when", "why",
		},
		MechanismWords: []string{"работает", "функционирует", "устроен", "works", "functions"},
		Conjunctions:   []string{" и ", " and "},
	}
}

// CountMatches returns how many phrases of set occur in text.
func CountMatches(text string, set []string) int {
	n := 0
	for _, phrase := range set {
		if strings.Contains(text, phrase) {
			n++
		}
	}
	return n
}

func hasPrefixAny(text string, set []string) bool {
	for _, p := range set {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

func countOccurrences(text string, set []string) int {
	n := 0
	for _, p := range set {
		n += strings.Count(text, p)
	}
	return n
}
