// internal/research/prompt/parse.go
package prompt

import (
	"math"
	"strconv"
	"strings"

	"research-workers/internal/models"
)

// MaxSubqueries caps decomposition output.
const MaxSubqueries = 3

// ParseSubqueries splits generated text into at most limit subqueries. Blank lines and
// lines starting with '#' are dropped; list markers such as "1." or "-" are stripped.
// ok is false when nothing usable remains.
func ParseSubqueries(text string, limit int) ([]string, bool) {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = stripListMarker(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out, len(out) > 0
}

func stripListMarker(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') &&
		(i+1 == len(line) || line[i+1] == ' ') {
		return strings.TrimSpace(line[i+1:])
	}
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:])
	}
	return line
}

// ParseClassification reads a "mode|confidence|reason" line. The mode must be simple
// or pro and the confidence a finite number; it is clamped to [0,1]. Any deviation
// yields ok == false.
func ParseClassification(text string) (models.RouterDecision, bool) {
	line := firstNonEmptyLine(text)
	parts := strings.SplitN(line, "|", 3)
	if len(parts) < 3 {
		return models.RouterDecision{}, false
	}

	mode := models.Mode(strings.ToLower(strings.Trim(strings.TrimSpace(parts[0]), "*`\"'")))
	if !mode.Valid() {
		return models.RouterDecision{}, false
	}

	confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return models.RouterDecision{}, false
	}

	return models.RouterDecision{
		Mode:       mode,
		Confidence: math.Max(0, math.Min(1, confidence)),
		Reason:     "LLM: " + strings.TrimSpace(parts[2]),
		Source:     models.SourceLLM,
	}, true
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
