package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrUnquotableIdentifier is returned for identifiers that cannot be written
// as a PostgreSQL identifier even when quoted.
var ErrUnquotableIdentifier = errors.New("unquotable identifier")

// PostgreSQL reserved words that need quoting
// Based on PostgreSQL 17 documentation: https://www.postgresql.org/docs/current/sql-keywords-appendix.html
var reservedWords = map[string]bool{
	// A-C
	"all":               true,
	"analyse":           true,
	"analyze":           true,
	"and":               true,
	"any":               true,
	"array":             true,
	"as":                true,
	"asc":               true,
	"asymmetric":        true,
	"authorization":     true,
	"between":           true,
	"bigint":            true,
	"binary":            true,
	"boolean":           true,
	"both":              true,
	"by":                true,
	"case":              true,
	"cast":              true,
	"char":              true,
	"character":         true,
	"check":             true,
	"collate":           true,
	"collation":         true,
	"column":            true,
	"concurrently":      true,
	"constraint":        true,
	"create":            true,
	"cross":             true,
	"current_catalog":   true,
	"current_date":      true,
	"current_role":      true,
	"current_schema":    true,
	"current_time":      true,
	"current_timestamp": true,
	"current_user":      true,
	// D-F
	"default":    true,
	"deferrable": true,
	"delete":     true,
	"desc":       true,
	"distinct":   true,
	"do":         true,
	"else":       true,
	"end":        true,
	"except":     true,
	"exists":     true,
	"false":      true,
	"fetch":      true,
	"filter":     true,
	"for":        true,
	"foreign":    true,
	"freeze":     true,
	"from":       true,
	"full":       true,
	// G-L
	"grant":     true,
	"group":     true,
	"having":    true,
	"ilike":     true,
	"in":        true,
	"initially": true,
	"inner":     true,
	"insert":    true,
	"intersect": true,
	"into":      true,
	"is":        true,
	"isnull":    true,
	"join":      true,
	"lateral":   true,
	"leading":   true,
	"left":      true,
	"like":      true,
	"limit":     true,
	"localtime": true,
	// N-P
	"natural": true,
	"not":     true,
	"notnull": true,
	"null":    true,
	"of":      true,
	"offset":  true,
	"on":      true,
	"only":    true,
	"or":      true,
	"order":   true,
	"outer":   true,
	"placing": true,
	"primary": true,
	// R-S
	"references":   true,
	"returning":    true,
	"right":        true,
	"select":       true,
	"session_user": true,
	"similar":      true,
	"some":         true,
	"symmetric":    true,
	"system_user":  true,
	// T-W
	"table":       true,
	"tablesample": true,
	"then":        true,
	"to":          true,
	"trailing":    true,
	"true":        true,
	"union":       true,
	"unique":      true,
	"update":      true,
	"user":        true,
	"using":       true,
	"variadic":    true,
	"verbose":     true,
	"when":        true,
	"where":       true,
	"window":      true,
	"with":        true,
	"within":      true,
}

// IsReservedWord reports whether word is a reserved PostgreSQL keyword.
func IsReservedWord(word string) bool {
	return reservedWords[strings.ToLower(word)]
}

// NeedsQuoting checks if an identifier needs to be quoted.
// Only plain lowercase ASCII identifiers that are not reserved words may be
// written bare; PostgreSQL folds everything else.
func NeedsQuoting(identifier string) bool {
	if identifier == "" {
		return false
	}

	if reservedWords[identifier] {
		return true
	}

	for i := 0; i < len(identifier); i++ {
		c := identifier[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case (c >= '0' && c <= '9') || c == '$':
			if i == 0 {
				return true
			}
		default:
			return true
		}
	}

	return false
}

// QuoteIdentifier adds quotes to an identifier if needed, doubling any
// embedded double quote.
func QuoteIdentifier(identifier string) string {
	if NeedsQuoting(identifier) {
		return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
	}
	return identifier
}

// QuoteIdentifierStrict is QuoteIdentifier for generated DDL: the empty
// identifier and identifiers containing NUL are rejected.
func QuoteIdentifierStrict(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnquotableIdentifier)
	}
	if strings.IndexByte(identifier, 0) >= 0 {
		return "", fmt.Errorf("%w: %q contains a NUL byte", ErrUnquotableIdentifier, identifier)
	}
	return QuoteIdentifier(identifier), nil
}

// QualifiedName returns schema.name with both parts quoted as needed.
func QualifiedName(schema, name string) string {
	if schema == "" {
		return QuoteIdentifier(name)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(name)
}

// QualifiedNameStrict is QualifiedName that fails on unquotable parts.
func QualifiedNameStrict(schema, name string) (string, error) {
	n, err := QuoteIdentifierStrict(name)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return n, nil
	}
	s, err := QuoteIdentifierStrict(schema)
	if err != nil {
		return "", err
	}
	return s + "." + n, nil
}

// QuoteLiteral renders s as a string literal. Single quotes are doubled;
// text containing backslashes is written in the E'' form.
func QuoteLiteral(s string) string {
	return strings.TrimLeft(pq.QuoteLiteral(s), " ")
}
