// Package curator implements the Curator (CUR) component of §4.5: it turns
// a natural-language query into an ordered list of track ids by combining an
// LLM oracle's seed picks with the Audio Encoder Service's similarity
// search, and it degrades gracefully when either is unavailable.
package curator

import "strings"

// ExtractFirstJSONObject implements §4.5's LLM oracle contract: walk the
// reply string, skip one optional fenced code block, and return the first
// top-level JSON object found by brace-matching with string-aware escape
// handling. LLM replies are adversarial w.r.t. extra prose and inverted code
// fences, so this never trusts the reply to be bare JSON.
//
// Ported from extract_first_json_object / find_json_object in the original
// curation service: try a ```json fence, then a plain ``` fence, then fall
// through to scanning the raw text.
func ExtractFirstJSONObject(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```json"); start != -1 {
		rest := text[start+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			if obj, ok := findJSONObject(rest[:end]); ok {
				return obj, true
			}
		} else if obj, ok := findJSONObject(rest); ok {
			return obj, true
		}
	}

	if start := strings.Index(text, "```"); start != -1 {
		rest := text[start+len("```"):]
		// Skip an optional language-identifier line (e.g. "json\n").
		if nl := strings.IndexByte(rest, '\n'); nl != -1 && !strings.Contains(rest[:nl], "{") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			if obj, ok := findJSONObject(rest[:end]); ok {
				return obj, true
			}
		} else if obj, ok := findJSONObject(rest); ok {
			return obj, true
		}
	}

	return findJSONObject(text)
}

// findJSONObject returns the substring starting at the first '{' through
// the matching '}' at depth 0, tracking string and escape state so braces
// inside quoted strings never affect depth.
func findJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	runes := []rune(text[start:])

	depth := 0
	inString := false
	escapeNext := false

	for i, ch := range runes {
		if escapeNext {
			escapeNext = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escapeNext = true
		case ch == '"':
			inString = !inString
		case ch == '{' && !inString:
			depth++
		case ch == '}' && !inString:
			depth--
			if depth == 0 {
				return string(runes[:i+1]), true
			}
		}
	}
	return "", false
}
