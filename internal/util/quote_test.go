package util

import (
	"errors"
	"fmt"
	"testing"
)

func TestNeedsQuoting(t *testing.T) {
	type testCase struct {
		name       string
		identifier string
		expected   bool
	}
	tests := []testCase{
		{"simple lowercase", "users", false},
		{"reserved word", "user", true},
		{"limit keyword", "limit", true},
		{"bigint type", "bigint", true},
		{"returning clause", "returning", true},
		{"camelCase", "firstName", true},
		{"UPPERCASE", "USERS", true},
		{"with underscore", "user_name", false},
		{"starts with underscore", "_private", false},
		{"digits after first", "table2", false},
		{"dollar after first", "a$b", false},
		{"starts with number", "1table", true},
		{"contains dash", "user-table", true},
		{"contains space", "order items", true},
		{"non-ascii letter", "café", true},
		{"non-reserved keyword", "status", false},
		{"empty string", "", false},
	}

	// every reserved word must be quoted
	for reservedWord := range reservedWords {
		tests = append(tests, testCase{
			name:       fmt.Sprintf("reserved word: %q", reservedWord),
			identifier: reservedWord,
			expected:   true,
		})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NeedsQuoting(tt.identifier)
			if result != tt.expected {
				t.Errorf("NeedsQuoting(%q) = %v; want %v", tt.identifier, result, tt.expected)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		expected   string
	}{
		{"simple lowercase", "users", "users"},
		{"reserved word", "user", `"user"`},
		{"camelCase", "firstName", `"firstName"`},
		{"embedded quote", `say"hi`, `"say""hi"`},
		{"embedded dot", "a.b", `"a.b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteIdentifier(tt.identifier); got != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q; want %q", tt.identifier, got, tt.expected)
			}
		})
	}
}

func TestQuoteIdentifierStrict(t *testing.T) {
	for _, bad := range []string{"", "a\x00b"} {
		if _, err := QuoteIdentifierStrict(bad); !errors.Is(err, ErrUnquotableIdentifier) {
			t.Errorf("QuoteIdentifierStrict(%q) error = %v; want ErrUnquotableIdentifier", bad, err)
		}
	}

	got, err := QuoteIdentifierStrict("Order")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `"Order"` {
		t.Errorf("QuoteIdentifierStrict(Order) = %q", got)
	}
}

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		schema, name, expected string
	}{
		{"public", "users", "public.users"},
		{"public", "user", `public."user"`},
		{"Sales", "Orders", `"Sales"."Orders"`},
		{"", "users", "users"},
	}
	for _, tt := range tests {
		if got := QualifiedName(tt.schema, tt.name); got != tt.expected {
			t.Errorf("QualifiedName(%q, %q) = %q; want %q", tt.schema, tt.name, got, tt.expected)
		}
	}

	if _, err := QualifiedNameStrict("", ""); err == nil {
		t.Error("QualifiedNameStrict should reject an empty name")
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"active", "'active'"},
		{"it's", "'it''s'"},
		{"", "''"},
		{`C:\path`, `E'C:\\path'`},
	}
	for _, tt := range tests {
		if got := QuoteLiteral(tt.input); got != tt.expected {
			t.Errorf("QuoteLiteral(%q) = %s; want %s", tt.input, got, tt.expected)
		}
	}
}
