// internal/research/prompt/templates.go
package prompt

import (
	"fmt"
	"strings"
)

const (
	SimpleSystem = "You are a helpful search assistant. Provide a concise and accurate answer " +
		"based on the provided sources. Cite sources using [1], [2] notation."

	ProSystem = "You are a research assistant. Provide a comprehensive answer with analysis, " +
		"comparisons, and reasoning. Cite sources using [1], [2] notation. " +
		"Structure your answer with clear sections if needed."

	ProContextSystem = " Use the conversation context to resolve references in the current question."

	DecomposeSystem = "Break down the query into 2-3 specific search subqueries. " +
		"Format: 1. query\n2. query\n3. query"

	ClassifySystem = `You classify search queries by the depth of research they need.

SIMPLE mode:
- simple factual questions
- definitions and meanings
- dates, numbers, single facts
- short answers from one source
Examples: "What is Python?", "When was Google founded?"

PRO mode:
- comparisons and analysis
- several aspects at once
- fact checking
- questions that need reasoning
- non-trivial "why" and "how does it work"
Examples: "Compare Python and Java", "Why is Bitcoin rising?", "How does a neural network work?"

Answer ONLY in the format: MODE|CONFIDENCE|REASON
where MODE is simple or pro, CONFIDENCE is 0.0-1.0, REASON is a short explanation.

Example: pro|0.85|needs analysis and comparison`
)

func SimpleUser(query, sources string) string {
	return fmt.Sprintf("Question: %s\n\nInformation from sources:\n%s\n\nProvide a clear and accurate answer with citations.", query, sources)
}

func ProUser(query, sources, conversation string) string {
	if strings.TrimSpace(conversation) == "" {
		return fmt.Sprintf("Question: %s\n\nInformation from sources:\n%s\n\nProvide a detailed answer with analysis and citations.", query, sources)
	}
	return fmt.Sprintf("Conversation context:\n%s\n\nCurrent question: %s\n\nInformation from sources:\n%s\n\nProvide a detailed answer with analysis and citations.",
		conversation, query, sources)
}

func DecomposeUser(query, conversation string) string {
	if strings.TrimSpace(conversation) == "" {
		return "Break down this query: " + query
	}
	return fmt.Sprintf("%s\n\nBreak down this query, resolving references against the conversation above: %s", conversation, query)
}

func ClassifyUser(query string, contextExists bool) string {
	hasContext := "no"
	if contextExists {
		hasContext = "yes"
	}
	return fmt.Sprintf("Query: %q\nConversation context exists: %s\n\nClassify the query:", query, hasContext)
}
