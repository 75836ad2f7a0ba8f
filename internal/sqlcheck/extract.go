package sqlcheck

import "strings"

// Extract pulls a SQL statement out of raw model output: it unwraps markdown
// code fences, drops any preamble before the first statement keyword, and
// cuts after the first top-level semicolon. Returns false when no statement
// keyword is present anywhere in the output.
func Extract(raw string) (string, bool) {
	text := unfence(raw)
	start := firstKeyword(text)
	if start < 0 {
		return "", false
	}
	text = text[start:]
	if end := topLevelSemi(text); end >= 0 {
		text = text[:end+1]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}

// unfence returns the first fenced code block containing a statement keyword,
// or the input unchanged when no such block exists. A fence left unclosed by
// a truncated generation runs to end of input.
func unfence(raw string) string {
	rest := raw
	for {
		i := strings.Index(rest, "```")
		if i < 0 {
			return raw
		}
		body := rest[i+3:]
		// drop the language tag line ("sql", "SQL", ...)
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && nl < 16 && !strings.ContainsAny(body[:nl], " ;") {
			body = body[nl+1:]
		}
		end := strings.Index(body, "```")
		block := body
		if end >= 0 {
			block = body[:end]
		}
		if firstKeyword(block) >= 0 {
			return block
		}
		if end < 0 {
			return raw
		}
		rest = body[end+3:]
	}
}

// firstKeyword returns the byte offset of the first word that can start a
// statement, or -1.
func firstKeyword(s string) int {
	for i := 0; i < len(s); {
		if !isWordStart(s[i]) {
			i++
			continue
		}
		j := i + 1
		for j < len(s) && isWordPart(s[j]) {
			j++
		}
		if statementKeywords[strings.ToUpper(s[i:j])] {
			return i
		}
		i = j
	}
	return -1
}

// topLevelSemi returns the offset of the first semicolon outside string
// literals, or -1.
func topLevelSemi(s string) int {
	var q byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if q != 0 {
			if c == q {
				if i+1 < len(s) && s[i+1] == q {
					i++
					continue
				}
				q = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			q = c
		case ';':
			return i
		}
	}
	return -1
}
