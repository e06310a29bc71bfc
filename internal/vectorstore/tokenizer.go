package vectorstore

import (
	"regexp"
	"strings"
	"unicode"
)

// codeStopWords contains programming keywords filtered out of the lexical
// index and queries.
var codeStopWords = map[string]struct{}{
	"var": {}, "let": {}, "const": {}, "func": {}, "function": {}, "def": {}, "class": {},
	"return": {}, "if": {}, "else": {}, "for": {}, "while": {},
	"data": {}, "result": {}, "value": {}, "item": {}, "key": {}, "err": {}, "ctx": {}, "tmp": {},
}

// tokenRegex matches alphanumeric sequences (underscores included for the
// initial split).
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// TokenizeCode splits text with code-aware rules: camelCase, PascalCase,
// and snake_case identifiers split into sub-words, lowercased, short and
// stop-word tokens dropped. Both FTS writes and queries run through this so
// identifier sub-words match.
func TokenizeCode(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if len(lower) < 2 {
				continue
			}
			if _, stop := codeStopWords[lower]; stop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// splitCodeToken splits camelCase and snake_case identifiers.
func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

// splitCamelCase splits camelCase and PascalCase identifiers, keeping
// acronym runs together ("parseHTTPRequest" -> "parse", "HTTP", "Request").
func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
