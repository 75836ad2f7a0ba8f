// Package sqlcheck extracts the SQL statement from raw model output, checks
// it against a token-level grammar, and applies a small ordered set of
// deterministic repairs. Repairs never invent identifiers: they only cut
// trailing non-SQL text or close unbalanced quoting/parentheses, and every
// applied repair is recorded for observability.
package sqlcheck

import (
	"strings"
	"unicode"
)

type tokenType int

const (
	tokWord tokenType = iota
	tokNumber
	tokString
	tokPunct
	tokOp
)

// token carries byte offsets into the original text so repairs can cut at
// exact positions.
type token struct {
	typ   tokenType
	text  string
	start int
	end   int
}

// lex tokenizes SQL-ish text. Comments and whitespace are skipped. An
// unterminated string literal is reported as a parse error carrying the
// quote character, which the quote-balancing repair uses.
func lex(input string) ([]token, *ParseError) {
	var toks []token
	i := 0
	n := len(input)
	for i < n {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < n && input[i+1] == '-':
			for i < n && input[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += 2 + end + 2
			}
		case c == '\'' || c == '"' || c == '`':
			start := i
			i++
			closed := false
			for i < n {
				if input[i] == c {
					// Doubled quote is an escape inside the literal.
					if i+1 < n && input[i+1] == c {
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				i++
			}
			if !closed {
				return toks, &ParseError{Kind: KindUnterminatedString, Offset: start, Quote: c,
					Msg: "unterminated string literal"}
			}
			toks = append(toks, token{typ: tokString, text: input[start:i], start: start, end: i})
		case isDigit(c):
			start := i
			for i < n && (isDigit(input[i]) || input[i] == '.' || input[i] == 'e' || input[i] == 'E') {
				i++
			}
			toks = append(toks, token{typ: tokNumber, text: input[start:i], start: start, end: i})
		case isWordStart(c):
			start := i
			for i < n && isWordPart(input[i]) {
				i++
			}
			toks = append(toks, token{typ: tokWord, text: input[start:i], start: start, end: i})
		case strings.ContainsRune("(),;*.", rune(c)):
			toks = append(toks, token{typ: tokPunct, text: string(c), start: i, end: i + 1})
			i++
		case strings.ContainsRune("=<>!+-/%|&", rune(c)):
			start := i
			for i < n && strings.ContainsRune("=<>!+-/%|&", rune(input[i])) {
				i++
			}
			toks = append(toks, token{typ: tokOp, text: input[start:i], start: start, end: i})
		default:
			// Unknown byte (model artifacts, stray unicode). Treat it as a
			// trailing-text boundary rather than silently skipping.
			return toks, &ParseError{Kind: KindTrailing, Offset: i, TrimOffset: i,
				Msg: "unexpected character " + quoteByte(c)}
		}
	}
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || c >= 0x80 || unicode.IsLetter(rune(c))
}

func isWordPart(c byte) bool {
	return isWordStart(c) || isDigit(c) || c == '$'
}

func quoteByte(c byte) string { return "'" + string(c) + "'" }
