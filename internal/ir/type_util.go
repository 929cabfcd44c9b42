package ir

import "strings"

// builtinTypes are the type names format_type emits for pg_catalog types
var builtinTypes = map[string]bool{
	"smallint": true, "integer": true, "bigint": true, "real": true,
	"double precision": true, "numeric": true, "boolean": true,
	"text": true, "character varying": true, "character": true, "char": true,
	"bytea": true, "date": true, "interval": true, "uuid": true,
	"json": true, "jsonb": true, "xml": true, "inet": true, "cidr": true,
	"macaddr": true, "macaddr8": true, "money": true, "oid": true,
	"timestamp without time zone": true, "timestamp with time zone": true,
	"time without time zone": true, "time with time zone": true,
	"bit": true, "bit varying": true, "tsvector": true, "tsquery": true,
	"point": true, "line": true, "lseg": true, "box": true, "path": true,
	"polygon": true, "circle": true, "regclass": true, "name": true,
	"int4range": true, "int8range": true, "numrange": true, "daterange": true,
	"tsrange": true, "tstzrange": true, "record": true, "void": true,
	"trigger": true, "event_trigger": true, "anyelement": true, "anyarray": true,
	"cstring": true, "internal": true,
}

// TypeReference splits a rendered data type into the schema and name of the
// underlying type, stripping array brackets, type modifiers and SETOF.
// Built-in types report ok=false. Unqualified names resolve against
// defaultSchema.
func TypeReference(dataType, defaultSchema string) (schema, name string, ok bool) {
	t := strings.TrimSpace(dataType)
	if strings.HasPrefix(strings.ToUpper(t), "SETOF ") {
		t = strings.TrimSpace(t[len("SETOF "):])
	}
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSpace(strings.TrimSuffix(t, "[]"))
	}
	if i := strings.LastIndex(t, "("); i > 0 && strings.HasSuffix(t, ")") && !strings.Contains(t[i:], "\"") {
		t = strings.TrimSpace(t[:i])
	}
	if t == "" || builtinTypes[strings.ToLower(t)] || strings.HasPrefix(t, "pg_catalog.") {
		return "", "", false
	}
	if strings.HasPrefix(strings.ToLower(t), "timestamp") || strings.HasPrefix(strings.ToLower(t), "time ") {
		return "", "", false
	}

	parts := splitQualified(t)
	switch len(parts) {
	case 1:
		return defaultSchema, parts[0], true
	case 2:
		if parts[0] == "pg_catalog" {
			return "", "", false
		}
		return parts[0], parts[1], true
	}
	return "", "", false
}

// splitQualified splits a possibly quoted dotted name into its parts,
// unquoting quoted parts and folding unquoted parts to lowercase.
func splitQualified(name string) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	quoted := false
	flush := func() {
		part := cur.String()
		if !quoted {
			part = strings.ToLower(part)
		}
		parts = append(parts, part)
		cur.Reset()
		quoted = false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '"' && inQuote && i+1 < len(name) && name[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			inQuote = !inQuote
			quoted = true
		case c == '.' && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return parts
}
