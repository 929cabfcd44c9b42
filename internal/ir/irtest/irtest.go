// Package irtest provides snapshot fixtures for tests.
package irtest

import (
	"testing"
	"time"

	"github.com/pgschema/pgdiff/internal/ir"
)

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Snapshot builds a snapshot or fails the test.
func Snapshot(t testing.TB, objects ...ir.Object) *ir.Snapshot {
	t.Helper()
	snap, err := ir.NewSnapshot(ir.Metadata{Source: "test"}, objects...)
	if err != nil {
		t.Fatalf("failed to build snapshot: %v", err)
	}
	return snap
}

// TableKey is the key of public-schema-style table schema.name.
func TableKey(schema, name string) ir.Key {
	return ir.Key{Schema: schema, Name: name, Kind: ir.KindTable}
}

// Everything returns one object of every variant, with routine bodies that
// contain dollar-quote delimiters, quotes and non-ASCII text.
func Everything() []ir.Object {
	users := ir.Key{Schema: "app", Name: "users", Kind: ir.KindTable}
	return []ir.Object{
		&ir.Schema{Name: "app", Owner: "postgres"},
		&ir.Extension{Name: "pgcrypto", Schema: "app", Version: "1.3"},
		&ir.EnumType{Schema: "app", Name: "status_type", Labels: []string{"active", "pending", "closed"}},
		&ir.CompositeType{Schema: "app", Name: "address", Fields: []*ir.CompositeField{
			{Name: "street", DataType: "text", Position: 1},
			{Name: "zip", DataType: "character varying(10)", Position: 2},
		}},
		&ir.DomainType{Schema: "app", Name: "email", BaseType: "text", NotNull: true, Default: Str("'nobody@example.com'::text"),
			Constraints: []*ir.DomainConstraint{{Name: "email_check", Expression: "VALUE ~~ '%@%'::text"}}},
		&ir.Sequence{Schema: "app", Name: "users_id_seq", DataType: "bigint", Start: 1, Increment: 1,
			MinValue: Int64(1), MaxValue: Int64(9223372036854775807), Cache: 1,
			OwnedBy: &ir.ColumnRef{Schema: "app", Table: "users", Column: "id"}},
		&ir.Table{Schema: "app", Name: "users", RLSEnabled: true, Columns: []*ir.Column{
			{Name: "id", Position: 1, DataType: "bigint", NotNull: true, Default: Str("nextval('app.users_id_seq'::regclass)")},
			{Name: "email", Position: 2, DataType: "app.email", Collation: "C"},
			{Name: "status", Position: 3, DataType: "app.status_type", NotNull: true, Default: Str("'active'::app.status_type")},
			{Name: "home", Position: 4, DataType: "app.address"},
			{Name: "email_lower", Position: 5, DataType: "text", Generated: Str("lower((email)::text)")},
		}},
		&ir.Table{Schema: "app", Name: "events", Columns: []*ir.Column{
			{Name: "id", Position: 1, DataType: "integer", NotNull: true, Identity: &ir.Identity{
				Generation: "ALWAYS", Start: Int64(1), Increment: Int64(1), Cycle: false}},
			{Name: "user_id", Position: 2, DataType: "bigint"},
			{Name: "payload", Position: 3, DataType: "jsonb"},
		}},
		&ir.Constraint{Schema: "app", Table: "users", Name: "users_pkey", Type: ir.ConstraintTypePrimaryKey, Columns: []string{"id"}},
		&ir.Constraint{Schema: "app", Table: "events", Name: "events_pkey", Type: ir.ConstraintTypePrimaryKey, Columns: []string{"id"}},
		&ir.Constraint{Schema: "app", Table: "events", Name: "events_user_id_fkey", Type: ir.ConstraintTypeForeignKey,
			Columns: []string{"user_id"}, ReferencedSchema: "app", ReferencedTable: "users", ReferencedColumns: []string{"id"},
			OnDelete: "CASCADE", Deferrable: true, InitiallyDeferred: true},
		&ir.Constraint{Schema: "app", Table: "events", Name: "events_payload_check", Type: ir.ConstraintTypeCheck,
			Expression: "jsonb_typeof(payload) = 'object'::text"},
		&ir.Index{Schema: "app", Table: "events", Name: "events_user_idx", Method: "btree",
			Keys: []*ir.IndexKey{{Column: "user_id"}, {Expression: "(payload ->> 'kind'::text)", Descending: true}},
			Predicate: "user_id IS NOT NULL"},
		&ir.Routine{Schema: "app", Name: "touch", Kind: ir.RoutineFunction, ReturnType: "trigger", Language: "plpgsql",
			Volatility: "VOLATILE",
			Body:       "\nBEGIN\n  RAISE NOTICE $$it's $body$ day: café$$;\n  RETURN NEW;\nEND;\n"},
		&ir.Routine{Schema: "app", Name: "user_count", Kind: ir.RoutineFunction, ReturnType: "bigint", Language: "sql",
			Volatility: "STABLE", Strict: true,
			Parameters: []*ir.Parameter{{Name: "min_id", DataType: "bigint", Default: Str("0")}},
			Body:       "SELECT count(*) FROM app.users WHERE id >= min_id"},
		&ir.Routine{Schema: "app", Name: "purge", Kind: ir.RoutineProcedure, Language: "plpgsql", SecurityDefiner: true,
			Parameters: []*ir.Parameter{{Name: "days", DataType: "integer", Mode: "IN"}},
			Body:       "BEGIN DELETE FROM app.events; END"},
		&ir.Trigger{Schema: "app", Table: "users", Name: "users_touch", Timing: "BEFORE", Events: []string{"INSERT", "UPDATE"},
			UpdateColumns: []string{"email"}, Level: "ROW", FunctionSchema: "app", FunctionName: "touch",
			Arguments: []string{"it's"}, When: "new.email IS NOT NULL"},
		&ir.View{Schema: "app", Name: "active_users", Columns: []string{"id", "email"},
			Definition: " SELECT users.id,\n    users.email\n   FROM app.users\n  WHERE users.status = 'active'::app.status_type;"},
		&ir.Policy{Schema: "app", Table: "users", Name: "users_self", Command: "SELECT", Permissive: true,
			Roles: []string{"public"}, Using: "(id = (current_setting('app.user_id'::text))::bigint)"},
		&ir.Comment{Target: users, Text: "Registered users"},
		&ir.Comment{Target: users, Column: "email", Text: "Login; it's unique"},
	}
}

// Now returns a fixed timestamp for metadata.
func Now() time.Time {
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
}
