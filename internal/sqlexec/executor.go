// Package sqlexec runs generated statements against the target database.
package sqlexec

import (
	"context"
	"strings"

	"github.com/askdb/askdb/internal/errors"
)

// Result holds the rows returned by a successful execution
type Result struct {
	Columns   []string
	Rows      [][]interface{}
	Truncated bool
}

// Executor defines the interface for running and validating statements
type Executor interface {
	// Execute runs the statement and returns its rows
	Execute(ctx context.Context, statement string) (*Result, error)

	// Validate checks the statement against the live database without
	// running it
	Validate(ctx context.Context, statement string) error
}

// EnsureReadOnly rejects statements that are not plain reads. Generated
// SQL is never trusted to be side-effect free, regardless of what the
// prompt asked for.
func EnsureReadOnly(statement string) error {
	trimmed := strings.TrimSpace(statement)

	// Drop leading line comments before inspecting the first keyword.
	for strings.HasPrefix(trimmed, "--") {
		idx := strings.IndexByte(trimmed, '\n')
		if idx < 0 {
			trimmed = ""
			break
		}

		trimmed = strings.TrimSpace(trimmed[idx+1:])
	}

	if trimmed == "" {
		return errors.New(errors.ErrTypeValidation, "statement is empty")
	}

	first := strings.ToUpper(firstWord(trimmed))
	if first != "SELECT" && first != "WITH" {
		return errors.Newf(errors.ErrTypeValidation,
			"only read-only statements are allowed, got %s", first).
			WithSuggestion("Rephrase the question so it asks for data rather than changes")
	}

	// A WITH clause can still end in INSERT/UPDATE/DELETE. String
	// literals are blanked first so their contents cannot trip the scan.
	upper := stripStringLiterals(strings.ToUpper(trimmed))
	for _, keyword := range []string{"INSERT ", "UPDATE ", "DELETE ", "DROP ", "ALTER ", "TRUNCATE ", "CREATE ", "GRANT ", "REVOKE "} {
		if containsKeyword(upper, strings.TrimSpace(keyword)) {
			return errors.Newf(errors.ErrTypeValidation,
				"statement contains forbidden keyword %s", strings.TrimSpace(keyword))
		}
	}

	return nil
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' {
			return s[:i]
		}
	}

	return s
}

// containsKeyword reports whether the keyword appears as a standalone
// word in the statement. A crude tokenizer is enough here: column names
// containing these words appear quoted or with adjoining identifier
// characters, which this check skips.
func containsKeyword(upperStatement, keyword string) bool {
	idx := 0

	for {
		pos := strings.Index(upperStatement[idx:], keyword)
		if pos < 0 {
			return false
		}

		pos += idx

		beforeOK := pos == 0 || !isIdentChar(upperStatement[pos-1])
		afterPos := pos + len(keyword)
		afterOK := afterPos >= len(upperStatement) || !isIdentChar(upperStatement[afterPos])

		if beforeOK && afterOK {
			return true
		}

		idx = pos + len(keyword)
	}
}

// stripStringLiterals replaces the contents of single-quoted literals
// with spaces, honoring the doubled-quote escape
func stripStringLiterals(s string) string {
	out := []byte(s)
	inString := false

	for i := 0; i < len(out); i++ {
		if out[i] == '\'' {
			inString = !inString
			continue
		}

		if inString {
			out[i] = ' '
		}
	}

	return string(out)
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
