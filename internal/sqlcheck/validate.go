package sqlcheck

import (
	"slices"
	"strings"
)

// Correction labels reported to callers. Stable strings: they appear in API
// responses and logs.
const (
	CorrectionTrimmed = "stripped trailing text"
	CorrectionQuotes  = "balanced quotes"
	CorrectionParens  = "balanced parentheses"
	CorrectionCasing  = "normalized keyword casing"
)

// maxRepairs bounds the repair loop. Each distinct defect kind needs at most
// one pass, but trailing prose can surface in stages (lexer boundary first,
// grammar boundary after).
const maxRepairs = 3

// Result is the outcome of validating one piece of model output.
type Result struct {
	Valid bool
	// SQL is the extracted, possibly repaired statement. Set only when Valid.
	SQL string
	// Corrections lists the repairs applied, in order, deduplicated.
	Corrections []string
	// Reason explains the rejection when not Valid.
	Reason string
}

// Validate extracts a statement from raw output and checks it against the
// grammar, applying deterministic repairs for the recoverable defect kinds.
// Repairs never invent identifiers or reorder tokens: they only trim
// trailing text and close unterminated quotes or parentheses. Output that
// still fails after the repair budget is rejected, not patched further.
func Validate(raw string) Result {
	text, ok := Extract(raw)
	if !ok {
		return Result{Reason: "no SQL statement found in model output"}
	}
	var corrections []string
	for i := 0; ; i++ {
		perr := parse(text)
		if perr == nil {
			sql := strings.TrimSpace(text)
			if fixed, changed := normalizeLeadingKeyword(sql); changed {
				sql = fixed
				if !slices.Contains(corrections, CorrectionCasing) {
					corrections = append(corrections, CorrectionCasing)
				}
			}
			return Result{Valid: true, SQL: sql, Corrections: corrections}
		}
		if i == maxRepairs {
			return Result{Reason: perr.Msg, Corrections: corrections}
		}
		fixed, label, ok := repair(text, perr)
		if !ok || fixed == text {
			return Result{Reason: perr.Msg, Corrections: corrections}
		}
		text = fixed
		if !slices.Contains(corrections, label) {
			corrections = append(corrections, label)
		}
	}
}

// normalizeLeadingKeyword uppercases the statement keyword the text starts
// with. Casing is the one normalization applied after a successful parse; it
// cannot change statement semantics.
func normalizeLeadingKeyword(sql string) (string, bool) {
	j := 0
	for j < len(sql) && isWordPart(sql[j]) {
		j++
	}
	word := sql[:j]
	upper := strings.ToUpper(word)
	if word == upper || !statementKeywords[upper] {
		return sql, false
	}
	return upper + sql[j:], true
}

// repair builds the corrected text for a recoverable parse error.
func repair(text string, perr *ParseError) (string, string, bool) {
	switch perr.Kind {
	case KindTrailing:
		cut := perr.TrimOffset
		if cut <= 0 || cut >= len(text) {
			return "", "", false
		}
		return strings.TrimRight(text[:cut], " \t\r\n"), CorrectionTrimmed, true
	case KindUnterminatedString:
		return text + string(perr.Quote), CorrectionQuotes, true
	case KindUnbalancedParens:
		if perr.Depth > 0 {
			return text + strings.Repeat(")", perr.Depth), CorrectionParens, true
		}
		if perr.Offset >= len(text) || text[perr.Offset] != ')' {
			return "", "", false
		}
		return text[:perr.Offset] + text[perr.Offset+1:], CorrectionParens, true
	default:
		return "", "", false
	}
}
