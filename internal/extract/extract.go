// Package extract recovers structured JSON from free-form AI replies.
//
// Generation models wrap their JSON in prose, markdown fences, escaped
// string literals and half-valid syntax. Extraction runs a fixed, ordered
// list of independent strategies and returns the first syntactically
// valid object or array. A miss is an expected outcome, not an error:
// callers fall back to their stage default dataset.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy is one independent heuristic for pulling JSON out of text.
// Strategies never fail loudly; a strategy that does not apply simply
// reports ok=false and the next one runs.
type Strategy struct {
	Name  string
	Apply func(text string) (any, bool)
}

// Strategies returns the fixed priority-ordered strategy list.
func Strategies() []Strategy {
	return []Strategy{
		{Name: "direct_parse", Apply: parseDirect},
		{Name: "fenced_json_block", Apply: parseFencedJSON},
		{Name: "fenced_any_block", Apply: parseFencedAny},
		{Name: "brace_span", Apply: parseBraceSpan},
		{Name: "brace_span_quoted_keys", Apply: parseBraceSpanQuotedKeys},
		{Name: "trim_commentary", Apply: parseTrimmedLines},
		{Name: "unwrap_escaped", Apply: parseUnwrapEscaped},
		{Name: "aggressive_key_quoting", Apply: parseAggressiveKeyQuoting},
	}
}

// Extract returns the first structured value any strategy recovers from
// text, or ok=false when nothing parses.
func Extract(text string) (any, bool) {
	for _, s := range Strategies() {
		if value, ok := s.Apply(text); ok {
			return value, true
		}
	}
	return nil, false
}

// ExtractObject is Extract restricted to JSON objects, the shape every
// stage prompt asks for.
func ExtractObject(text string) (map[string]any, bool) {
	value, ok := Extract(text)
	if !ok {
		return nil, false
	}
	obj, ok := value.(map[string]any)
	return obj, ok
}

// parseStructured accepts only objects and arrays. Bare strings and
// numbers parse as JSON too, but they are never a usable stage artifact.
func parseStructured(candidate string) (any, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, false
	}
	switch value.(type) {
	case map[string]any, []any:
		return value, true
	}
	return nil, false
}

// Strategy 1: the whole reply is already JSON.
func parseDirect(text string) (any, bool) {
	return parseStructured(text)
}

// Strategy 2: a fenced block explicitly labeled json.
func parseFencedJSON(text string) (any, bool) {
	start := strings.Index(text, "```json")
	if start < 0 {
		return nil, false
	}
	rest := text[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return nil, false
	}
	return parseStructured(rest[:end])
}

// Strategy 3: any fenced block, label-agnostic. The first line after the
// opening fence may be a language tag and is dropped when it is not JSON.
func parseFencedAny(text string) (any, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return nil, false
	}
	rest := text[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return nil, false
	}
	block := rest[:end]
	if value, ok := parseStructured(block); ok {
		return value, true
	}
	if nl := strings.Index(block, "\n"); nl >= 0 {
		return parseStructured(block[nl+1:])
	}
	return nil, false
}

// braceSpan returns the outermost {...} span, greedily across the text.
func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Strategy 4: parse the outermost brace-delimited span.
func parseBraceSpan(text string) (any, bool) {
	span, ok := braceSpan(text)
	if !ok {
		return nil, false
	}
	return parseStructured(span)
}

// bareKeyPattern matches an unquoted identifier used as an object key,
// anchored to an opening brace or a comma so quoted keys and string
// values are left alone.
var bareKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)(\s*:)`)

func quoteBareKeys(candidate string) string {
	return bareKeyPattern.ReplaceAllString(candidate, `$1"$2"$3`)
}

// Strategy 5: repair bare object keys inside the brace span, then parse.
func parseBraceSpanQuotedKeys(text string) (any, bool) {
	span, ok := braceSpan(text)
	if !ok {
		return nil, false
	}
	return parseStructured(quoteBareKeys(span))
}

// Strategy 6: cut leading and trailing commentary at line boundaries.
// The data is assumed to start on the first line opening a container and
// end on the last line closing one.
func parseTrimmedLines(text string) (any, bool) {
	lines := strings.Split(text, "\n")
	first, last := -1, -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if first < 0 && (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
			first = i
		}
		if strings.HasSuffix(trimmed, "}") || strings.HasSuffix(trimmed, "]") {
			last = i
		}
	}
	if first < 0 || last < first {
		return nil, false
	}
	return parseStructured(strings.Join(lines[first:last+1], "\n"))
}

// Strategy 7: the object arrives as a doubly-escaped string literal,
// e.g. "{\"a\": 1}". Unescape the inner quotes and retry the span parse.
func parseUnwrapEscaped(text string) (any, bool) {
	if !strings.Contains(text, `\"`) {
		return nil, false
	}
	unescaped := strings.ReplaceAll(text, `\"`, `"`)
	unescaped = strings.ReplaceAll(unescaped, `\n`, "\n")
	span, ok := braceSpan(unescaped)
	if !ok {
		return nil, false
	}
	return parseStructured(span)
}

// Strategy 8: last resort. Quote anything that looks like a key before a
// colon across the whole text, then take the brace span.
func parseAggressiveKeyQuoting(text string) (any, bool) {
	repaired := quoteBareKeys(text)
	span, ok := braceSpan(repaired)
	if !ok {
		return nil, false
	}
	return parseStructured(span)
}
