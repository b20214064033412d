package provider

import "strings"

// StripThinkingTokens removes <think>...</think> reasoning blocks some local
// models emit before their answer. An unterminated block drops the rest of
// the text, since everything after the marker is reasoning.
func StripThinkingTokens(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end < 0 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the first balanced top-level JSON object in s.
// Models frequently wrap JSON answers in prose or code fences; callers decode
// the returned slice and fall back on their own defaults if that fails.
func ExtractJSONObject(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return s
}
