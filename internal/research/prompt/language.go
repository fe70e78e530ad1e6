// internal/research/prompt/language.go
package prompt

import "unicode"

// DetectLanguage returns "ru" when more than 30% of the letters are Cyrillic, "en" otherwise.
func DetectLanguage(text string) string {
	var cyrillic, letters int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return "en"
	}
	if float64(cyrillic)/float64(letters) > 0.3 {
		return "ru"
	}
	return "en"
}

// LanguageInstruction is appended to synthesis system prompts.
func LanguageInstruction(query string) string {
	if DetectLanguage(query) == "ru" {
		return "Answer in Russian."
	}
	return "Answer in the language of the question."
}
