package sqlcheck

import (
	"fmt"
	"strings"
)

// ErrKind classifies a parse failure; repairs are keyed on it.
type ErrKind int

const (
	// KindUnexpected has no deterministic repair.
	KindUnexpected ErrKind = iota
	// KindTrailing marks non-SQL text after the statement.
	KindTrailing
	// KindUnterminatedString marks an unclosed quote.
	KindUnterminatedString
	// KindUnbalancedParens marks missing or surplus closing parentheses.
	KindUnbalancedParens
)

// ParseError pinpoints why the text is not a valid statement.
type ParseError struct {
	Kind   ErrKind
	Offset int // byte offset of the offending token
	// TrimOffset is where a trailing-text repair should cut.
	TrimOffset int
	// Quote is the unterminated quote character, when applicable.
	Quote byte
	// Depth is the paren imbalance: >0 missing closers, <0 surplus.
	Depth int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Msg)
}

// statementKeywords are the accepted leading keywords for a statement.
var statementKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "INSERT": true, "UPDATE": true,
	"DELETE": true, "CREATE": true, "DROP": true, "ALTER": true,
	"EXPLAIN": true, "PRAGMA": true, "SHOW": true, "VALUES": true,
}

// clauseKeywords terminate an expression or table reference.
var clauseKeywords = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "HAVING": true,
	"ORDER": true, "LIMIT": true, "OFFSET": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "JOIN": true, "INNER": true,
	"LEFT": true, "RIGHT": true, "FULL": true, "CROSS": true,
	"NATURAL": true, "ON": true, "USING": true, "AS": true, "ASC": true,
	"DESC": true, "BY": true, "NULLS": true, "FIRST": true, "LAST": true,
	"WHEN": true, "THEN": true, "ELSE": true, "END": true, "SET": true,
	"VALUES": true, "RETURNING": true,
}

// binaryKeywords continue an expression after a complete term.
var binaryKeywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true,
	"LIKE": true, "ILIKE": true, "GLOB": true, "BETWEEN": true,
	"ESCAPE": true, "COLLATE": true, "OVER": true,
}

// termKeywords may stand alone as a term.
var termKeywords = map[string]bool{
	"NULL": true, "TRUE": true, "FALSE": true, "DISTINCT": true,
	"ALL": true, "EXISTS": true, "CASE": true, "CAST": true,
	"INTERVAL": true, "CURRENT_DATE": true, "CURRENT_TIME": true,
	"CURRENT_TIMESTAMP": true,
}

// parse checks text against a token-level grammar for the target dialect.
// SELECT statements (including WITH and set operations) get a clause-aware
// walk that pinpoints where trailing prose begins; other statement kinds
// get balance and termination checks only. The parser validates shape, not
// semantics: identifiers are never resolved and never invented.
func parse(text string) *ParseError {
	toks, lerr := lex(text)
	if lerr != nil {
		return lerr
	}
	if len(toks) == 0 {
		return &ParseError{Kind: KindUnexpected, Msg: "empty statement"}
	}
	first := strings.ToUpper(toks[0].text)
	if toks[0].typ != tokWord || !statementKeywords[first] {
		return &ParseError{Kind: KindUnexpected, Offset: toks[0].start,
			Msg: "statement must start with a SQL keyword, got " + toks[0].text}
	}
	p := &parser{text: text, toks: toks, lastAliasStart: -1}
	switch first {
	case "SELECT", "WITH":
		return p.parseSelectStmt()
	default:
		return p.parseLoose()
	}
}

// Check reports whether sql parses under the token-level grammar. Exposed
// for callers that need a validity gate without repairs.
func Check(sql string) error {
	if err := parse(sql); err != nil {
		return err
	}
	return nil
}

type parser struct {
	text string
	toks []token
	pos  int

	// Most recent implicit alias: if trailing prose starts right after it,
	// the word was almost certainly prose, not an alias, so the repair cut
	// moves back to include it.
	lastAliasStart int
	lastAliasEnd   int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) cur() token {
	if p.done() {
		return token{typ: tokPunct, text: "", start: len(p.text), end: len(p.text)}
	}
	return p.toks[p.pos]
}

func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].end
}

func (p *parser) isWord(tk token, upper string) bool {
	return tk.typ == tokWord && strings.ToUpper(tk.text) == upper
}

func (p *parser) unexpected(tk token, msg string) *ParseError {
	return &ParseError{Kind: KindUnexpected, Offset: tk.start, Msg: msg}
}

// trailing builds the trailing-text error with the best cut point: the
// offending token, a newline boundary before it, or the suspicious implicit
// alias immediately preceding it.
func (p *parser) trailing(tk token) *ParseError {
	cut := tk.start
	if p.lastAliasStart >= 0 && p.lastAliasEnd == p.prevEnd() {
		cut = p.lastAliasStart
	} else if nl := strings.LastIndexByte(p.text[:tk.start], '\n'); nl > p.prevEndBefore(tk) {
		cut = nl
	}
	return &ParseError{Kind: KindTrailing, Offset: tk.start, TrimOffset: cut,
		Msg: "trailing text after statement"}
}

// prevEndBefore returns the end offset of the token preceding tk.
func (p *parser) prevEndBefore(tk token) int {
	for i := len(p.toks) - 1; i >= 0; i-- {
		if p.toks[i].end <= tk.start {
			return p.toks[i].end
		}
	}
	return 0
}

// parseSelectStmt handles [WITH ctes] SELECT ... plus set operations and the
// optional terminating semicolon.
func (p *parser) parseSelectStmt() *ParseError {
	if p.isWord(p.cur(), "WITH") {
		if err := p.parseWith(); err != nil {
			return err
		}
	}
	if err := p.parseSelectCore(); err != nil {
		return err
	}
	for !p.done() {
		tk := p.cur()
		switch {
		case tk.typ == tokPunct && tk.text == ";":
			p.pos++
			if !p.done() {
				next := p.cur()
				return &ParseError{Kind: KindTrailing, Offset: next.start, TrimOffset: tk.end,
					Msg: "text after statement terminator"}
			}
			return nil
		case tk.typ == tokWord && (strings.ToUpper(tk.text) == "UNION" ||
			strings.ToUpper(tk.text) == "INTERSECT" || strings.ToUpper(tk.text) == "EXCEPT"):
			p.pos++
			if p.isWord(p.cur(), "ALL") || p.isWord(p.cur(), "DISTINCT") {
				p.pos++
			}
			if !p.isWord(p.cur(), "SELECT") {
				return p.unexpected(p.cur(), "expected SELECT after set operator")
			}
			if err := p.parseSelectCore(); err != nil {
				return err
			}
		case tk.typ == tokPunct && tk.text == ")":
			return &ParseError{Kind: KindUnbalancedParens, Offset: tk.start, Depth: -1,
				Msg: "surplus closing parenthesis"}
		default:
			return p.trailing(tk)
		}
	}
	return nil
}

// parseWith consumes WITH [RECURSIVE] name AS ( ... ) [, name AS ( ... )]*.
func (p *parser) parseWith() *ParseError {
	p.pos++ // WITH
	if p.isWord(p.cur(), "RECURSIVE") {
		p.pos++
	}
	for {
		if p.cur().typ != tokWord {
			return p.unexpected(p.cur(), "expected CTE name")
		}
		p.pos++
		if p.cur().typ == tokPunct && p.cur().text == "(" { // column list
			if err := p.skipBalanced(); err != nil {
				return err
			}
		}
		if !p.isWord(p.cur(), "AS") {
			return p.unexpected(p.cur(), "expected AS in CTE")
		}
		p.pos++
		if p.cur().typ != tokPunct || p.cur().text != "(" {
			return p.unexpected(p.cur(), "expected ( after AS")
		}
		if err := p.skipBalanced(); err != nil {
			return err
		}
		if p.cur().typ == tokPunct && p.cur().text == "," {
			p.pos++
			continue
		}
		return nil
	}
}

// parseSelectCore consumes SELECT ... through the end of its clauses.
func (p *parser) parseSelectCore() *ParseError {
	if !p.isWord(p.cur(), "SELECT") {
		return p.unexpected(p.cur(), "expected SELECT")
	}
	p.pos++
	if p.isWord(p.cur(), "DISTINCT") || p.isWord(p.cur(), "ALL") {
		p.pos++
	}
	if err := p.parseExprList(true); err != nil {
		return err
	}
	for !p.done() {
		tk := p.cur()
		if tk.typ == tokPunct && tk.text == ";" {
			return nil
		}
		if tk.typ == tokPunct && tk.text == ")" {
			// parseSelectCore only ever runs at statement level, so any
			// closer reaching here is surplus.
			return &ParseError{Kind: KindUnbalancedParens, Offset: tk.start, Depth: -1,
				Msg: "surplus closing parenthesis"}
		}
		if tk.typ != tokWord {
			return p.trailing(tk)
		}
		switch strings.ToUpper(tk.text) {
		case "FROM":
			p.pos++
			if err := p.parseTableRefs(); err != nil {
				return err
			}
		case "WHERE", "HAVING":
			p.pos++
			if err := p.parseExpr(false); err != nil {
				return err
			}
		case "GROUP", "ORDER":
			p.pos++
			if !p.isWord(p.cur(), "BY") {
				return p.unexpected(p.cur(), "expected BY")
			}
			p.pos++
			if err := p.parseExprList(false); err != nil {
				return err
			}
		case "LIMIT", "OFFSET":
			p.pos++
			if err := p.parseExpr(false); err != nil {
				return err
			}
		case "UNION", "INTERSECT", "EXCEPT":
			return nil
		default:
			return p.trailing(tk)
		}
	}
	return nil
}

// parseTableRefs consumes table references and join chains.
func (p *parser) parseTableRefs() *ParseError {
	for {
		if err := p.parseTableRef(); err != nil {
			return err
		}
		tk := p.cur()
		if tk.typ == tokPunct && tk.text == "," {
			p.pos++
			continue
		}
		if tk.typ == tokWord {
			switch strings.ToUpper(tk.text) {
			case "JOIN":
				p.pos++
				continue
			case "INNER", "CROSS", "NATURAL":
				p.pos++
				if !p.isWord(p.cur(), "JOIN") {
					return p.unexpected(p.cur(), "expected JOIN")
				}
				p.pos++
				continue
			case "LEFT", "RIGHT", "FULL":
				p.pos++
				if p.isWord(p.cur(), "OUTER") {
					p.pos++
				}
				if !p.isWord(p.cur(), "JOIN") {
					return p.unexpected(p.cur(), "expected JOIN")
				}
				p.pos++
				continue
			case "ON":
				p.pos++
				if err := p.parseExpr(false); err != nil {
					return err
				}
				continue
			case "USING":
				p.pos++
				if p.cur().typ != tokPunct || p.cur().text != "(" {
					return p.unexpected(p.cur(), "expected ( after USING")
				}
				if err := p.skipBalanced(); err != nil {
					return err
				}
				continue
			}
		}
		return nil
	}
}

// parseTableRef consumes one table name or subquery with an optional alias.
func (p *parser) parseTableRef() *ParseError {
	tk := p.cur()
	if tk.typ == tokPunct && tk.text == "(" {
		if err := p.skipBalanced(); err != nil {
			return err
		}
	} else if tk.typ == tokWord && !clauseKeywords[strings.ToUpper(tk.text)] {
		p.pos++
		// qualified name: schema.table
		for p.cur().typ == tokPunct && p.cur().text == "." {
			p.pos++
			if p.cur().typ != tokWord {
				return p.unexpected(p.cur(), "expected name after .")
			}
			p.pos++
		}
	} else if tk.typ == tokString && tk.text[0] == '"' || tk.typ == tokString && tk.text[0] == '`' {
		p.pos++ // quoted identifier
	} else {
		return p.unexpected(tk, "expected table name")
	}
	p.parseAlias()
	return nil
}

// parseAlias consumes AS name or an implicit alias, recording the latter as
// a possible prose boundary.
func (p *parser) parseAlias() {
	if p.isWord(p.cur(), "AS") {
		p.pos++
		if p.cur().typ == tokWord {
			p.pos++
		}
		p.lastAliasStart = -1
		return
	}
	tk := p.cur()
	if tk.typ == tokWord && !clauseKeywords[strings.ToUpper(tk.text)] &&
		!binaryKeywords[strings.ToUpper(tk.text)] && !termKeywords[strings.ToUpper(tk.text)] {
		p.lastAliasStart = tk.start
		p.lastAliasEnd = tk.end
		p.pos++
	}
}

// parseExprList consumes comma-separated expressions. withAlias allows a
// projection alias after each expression.
func (p *parser) parseExprList(withAlias bool) *ParseError {
	for {
		if err := p.parseExpr(withAlias); err != nil {
			return err
		}
		if p.isWord(p.cur(), "ASC") || p.isWord(p.cur(), "DESC") {
			p.pos++
			if p.isWord(p.cur(), "NULLS") {
				p.pos++
				if p.isWord(p.cur(), "FIRST") || p.isWord(p.cur(), "LAST") {
					p.pos++
				}
			}
		}
		if p.cur().typ == tokPunct && p.cur().text == "," {
			p.pos++
			continue
		}
		return nil
	}
}

// parseExpr consumes one expression: terms joined by operators, with
// parenthesized groups and call arguments checked for balance only.
func (p *parser) parseExpr(withAlias bool) *ParseError {
	if err := p.parseTerm(); err != nil {
		return err
	}
	for {
		tk := p.cur()
		switch {
		case tk.typ == tokOp:
			p.pos++
			if err := p.parseTerm(); err != nil {
				return err
			}
		case tk.typ == tokWord && binaryKeywords[strings.ToUpper(tk.text)]:
			p.pos++
			// OVER ( ... ) window
			if strings.ToUpper(tk.text) == "OVER" {
				if p.cur().typ == tokPunct && p.cur().text == "(" {
					if err := p.skipBalanced(); err != nil {
						return err
					}
				}
				continue
			}
			if err := p.parseTerm(); err != nil {
				return err
			}
		default:
			if withAlias {
				p.parseAlias()
			}
			return nil
		}
	}
}

// parseTerm consumes one operand.
func (p *parser) parseTerm() *ParseError {
	tk := p.cur()
	switch {
	case tk.typ == tokOp && (tk.text == "-" || tk.text == "+"):
		p.pos++
		return p.parseTerm()
	case tk.typ == tokWord && strings.ToUpper(tk.text) == "NOT":
		p.pos++
		return p.parseTerm()
	case tk.typ == tokNumber || tk.typ == tokString:
		p.pos++
		return nil
	case tk.typ == tokPunct && tk.text == "*":
		p.pos++
		return nil
	case tk.typ == tokPunct && tk.text == "(":
		return p.skipBalanced()
	case tk.typ == tokWord && strings.ToUpper(tk.text) == "CASE":
		return p.parseCase()
	case tk.typ == tokWord:
		if clauseKeywords[up(tk.text)] && !termKeywords[up(tk.text)] {
			return p.unexpected(tk, "expected expression, got "+tk.text)
		}
		p.pos++
		// qualified name / star: a.b, a.*
		for p.cur().typ == tokPunct && p.cur().text == "." {
			p.pos++
			nx := p.cur()
			if nx.typ == tokWord || (nx.typ == tokPunct && nx.text == "*") {
				p.pos++
				continue
			}
			return p.unexpected(nx, "expected name after .")
		}
		// call arguments, balance-checked only (covers CAST(.. AS t),
		// COUNT(DISTINCT x), nested subqueries)
		if p.cur().typ == tokPunct && p.cur().text == "(" {
			return p.skipBalanced()
		}
		return nil
	default:
		return p.unexpected(tk, "expected expression")
	}
}

// parseCase consumes CASE ... END with expressions between the markers.
func (p *parser) parseCase() *ParseError {
	start := p.cur()
	p.pos++ // CASE
	for !p.done() {
		tk := p.cur()
		if p.isWord(tk, "END") {
			p.pos++
			return nil
		}
		if p.isWord(tk, "WHEN") || p.isWord(tk, "THEN") || p.isWord(tk, "ELSE") {
			p.pos++
			if err := p.parseExpr(false); err != nil {
				return err
			}
			continue
		}
		// Operand form: CASE expr WHEN ...
		if err := p.parseExpr(false); err != nil {
			return err
		}
	}
	return p.unexpected(start, "CASE without END")
}

// skipBalanced consumes a parenthesized group, checking balance only.
func (p *parser) skipBalanced() *ParseError {
	open := p.cur()
	depth := 0
	for !p.done() {
		tk := p.cur()
		if tk.typ == tokPunct {
			switch tk.text {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					p.pos++
					return nil
				}
			}
		}
		p.pos++
	}
	return &ParseError{Kind: KindUnbalancedParens, Offset: open.start, Depth: depth,
		Msg: fmt.Sprintf("%d unclosed parenthesis(es)", depth)}
}

// parseLoose checks non-SELECT statements: balanced parentheses and nothing
// after the terminator. Statement-specific grammar is deliberately not
// enforced for DML/DDL; the dialect accepts more shapes than a bounded
// checker should guess at.
func (p *parser) parseLoose() *ParseError {
	depth := 0
	for !p.done() {
		tk := p.cur()
		if tk.typ == tokPunct {
			switch tk.text {
			case "(":
				depth++
			case ")":
				depth--
				if depth < 0 {
					return &ParseError{Kind: KindUnbalancedParens, Offset: tk.start, Depth: depth,
						Msg: "surplus closing parenthesis"}
				}
			case ";":
				p.pos++
				if !p.done() {
					return &ParseError{Kind: KindTrailing, Offset: p.cur().start, TrimOffset: tk.end,
						Msg: "text after statement terminator"}
				}
				return p.checkDepth(depth)
			}
		}
		p.pos++
	}
	return p.checkDepth(depth)
}

func (p *parser) checkDepth(depth int) *ParseError {
	if depth > 0 {
		return &ParseError{Kind: KindUnbalancedParens, Offset: len(p.text), Depth: depth,
			Msg: fmt.Sprintf("%d unclosed parenthesis(es)", depth)}
	}
	return nil
}

func up(s string) string { return strings.ToUpper(s) }
