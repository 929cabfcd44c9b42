package ddl

import (
	"fmt"
	"strings"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/version"
)

// Script renders a result as a SQL file: a header, the notes and skipped
// changes as comments, then one statement per paragraph. Disabled
// statements are commented out line by line.
func Script(res *Result) string {
	var b strings.Builder
	b.WriteString("--\n-- pgdiff migration script\n--\n\n")
	b.WriteString(fmt.Sprintf("-- Generated by pgdiff version %s\n", version.App()))
	if s := describeSource(res.From); s != "" {
		b.WriteString("-- From: " + s + "\n")
	}
	if s := describeSource(res.To); s != "" {
		b.WriteString("-- To: " + s + "\n")
	}
	b.WriteString("\n")

	if len(res.Notes) > 0 {
		for _, note := range res.Notes {
			b.WriteString("-- NOTE: " + note + "\n")
		}
		b.WriteString("\n")
	}
	if len(res.Skipped) > 0 {
		for _, s := range res.Skipped {
			b.WriteString(fmt.Sprintf("-- SKIPPED: %s: %s\n", s.Key, s.Reason))
		}
		b.WriteString("\n")
	}

	if len(res.Statements) == 0 {
		b.WriteString("-- No changes detected.\n")
		return b.String()
	}
	for i, st := range res.Statements {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderStatement(st) + "\n")
	}
	return b.String()
}

func renderStatement(st Statement) string {
	if !st.Disabled {
		return st.SQL
	}
	lines := strings.Split(st.SQL, "\n")
	for i, l := range lines {
		lines[i] = "-- " + l
	}
	return strings.Join(lines, "\n")
}

func describeSource(m ir.Metadata) string {
	s := m.Database
	if s == "" {
		s = m.Source
	}
	if m.DatabaseVersion != "" {
		s += " (PostgreSQL " + m.DatabaseVersion + ")"
	}
	return strings.TrimSpace(s)
}
