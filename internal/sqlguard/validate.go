// Package sqlguard is the security gate between generated SQL text and the
// execution boundary. Validate classifies an arbitrary string as a single
// read-only statement or rejects it; it is a total, side-effect-free function
// that is safe to call with attacker-controlled input.
package sqlguard

import (
	"strings"
	"unicode"
)

// Reason identifies why a statement was rejected.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonEmptyStatement     Reason = "empty_statement"
	ReasonMultipleStatements Reason = "multiple_statements"
	ReasonCommentMarker      Reason = "comment_marker"
	ReasonForbiddenKeyword   Reason = "forbidden_keyword"
	ReasonNotReadOnly        Reason = "not_read_only"
)

// Verdict is the outcome of validating one SQL string.
type Verdict struct {
	Accepted bool
	Reason   Reason
	Detail   string
}

func reject(reason Reason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// Statements that mutate data or schema, or escape into procedural execution.
// Matched as standalone tokens only, never inside identifiers or literals.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "EXEC", "EXECUTE", "MERGE", "GRANT", "REVOKE",
}

// Validate applies the read-only rules in order, short-circuiting on the
// first failure:
//
//  1. reject empty input
//  2. reject more than one semicolon, or a semicolon that is not the final
//     character (multiple statements are never permitted)
//  3. reject any inline or block comment marker
//  4. reject forbidden keywords as standalone tokens outside string literals
//  5. reject unless the statement starts with SELECT, or with WITH that
//     leads to a SELECT
func Validate(sqlText string) Verdict {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return reject(ReasonEmptyStatement, "statement is empty")
	}

	if n := strings.Count(trimmed, ";"); n > 1 {
		return reject(ReasonMultipleStatements, "more than one semicolon")
	} else if n == 1 && !strings.HasSuffix(trimmed, ";") {
		return reject(ReasonMultipleStatements, "semicolon before end of statement")
	}

	for _, marker := range []string{"--", "/*", "*/"} {
		if strings.Contains(trimmed, marker) {
			return reject(ReasonCommentMarker, "comment marker "+marker)
		}
	}

	stripped := stripQuoted(trimmed)
	tokens := splitTokens(stripped)
	for _, token := range tokens {
		upper := strings.ToUpper(token)
		for _, forbidden := range forbiddenKeywords {
			if upper == forbidden {
				return reject(ReasonForbiddenKeyword, "forbidden keyword "+forbidden)
			}
		}
	}

	if len(tokens) == 0 {
		return reject(ReasonNotReadOnly, "no SQL tokens")
	}
	switch strings.ToUpper(tokens[0]) {
	case "SELECT":
	case "WITH":
		if !containsToken(tokens[1:], "SELECT") {
			return reject(ReasonNotReadOnly, "WITH without a terminating SELECT")
		}
	default:
		return reject(ReasonNotReadOnly, "statement does not start with SELECT or WITH")
	}

	return Verdict{Accepted: true}
}

// stripQuoted blanks out single-quoted string literals and double-quoted
// identifiers so their contents cannot trip keyword matching. SQL escapes a
// quote inside a literal by doubling it, which this scan handles by simply
// re-entering the literal state.
func stripQuoted(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func containsToken(tokens []string, want string) bool {
	for _, token := range tokens {
		if strings.EqualFold(token, want) {
			return true
		}
	}
	return false
}
