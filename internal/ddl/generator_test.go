package ddl

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/ir/irtest"
	"github.com/pgschema/pgdiff/internal/plan"
	"github.com/pgschema/pgdiff/internal/util"
)

func resolve(t *testing.T, from, to []ir.Object) *plan.Plan {
	t.Helper()
	cs, err := diff.Diff(irtest.Snapshot(t, from...), irtest.Snapshot(t, to...))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	p, err := plan.Resolve(cs)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return p
}

func generate(t *testing.T, from, to []ir.Object, opts Options) *Result {
	t.Helper()
	res, err := Generate(resolve(t, from, to), opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.State != Done {
		t.Fatalf("State = %s, want done", res.State)
	}
	return res
}

func sqls(res *Result) []string {
	out := make([]string, len(res.Statements))
	for i, st := range res.Statements {
		out[i] = st.SQL
	}
	return out
}

func table(name string, cols ...*ir.Column) *ir.Table {
	for i, c := range cols {
		c.Position = i + 1
	}
	return &ir.Table{Schema: "public", Name: name, Columns: cols}
}

func col(name, dataType string) *ir.Column {
	return &ir.Column{Name: name, DataType: dataType}
}

func notNull(c *ir.Column) *ir.Column {
	c.NotNull = true
	return c
}

func TestEnumLabelAppended(t *testing.T) {
	from := &ir.EnumType{Schema: "public", Name: "status_type", Labels: []string{"active", "inactive", "pending"}}
	to := &ir.EnumType{Schema: "public", Name: "status_type", Labels: []string{"active", "inactive", "pending", "suspended"}}

	res := generate(t, []ir.Object{from}, []ir.Object{to}, Options{})
	want := []string{"ALTER TYPE public.status_type ADD VALUE 'suspended';"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumLabelInsertedBefore(t *testing.T) {
	from := &ir.EnumType{Schema: "public", Name: "level", Labels: []string{"mid", "high"}}
	to := &ir.EnumType{Schema: "public", Name: "level", Labels: []string{"low", "mid", "high"}}

	res := generate(t, []ir.Object{from}, []ir.Object{to}, Options{})
	want := []string{"ALTER TYPE public.level ADD VALUE 'low' BEFORE 'mid';"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnTypeChange(t *testing.T) {
	from := table("users", notNull(col("id", "integer")), col("email", "character varying(50)"))
	to := table("users", notNull(col("id", "integer")), col("email", "character varying(60)"))

	res := generate(t, []ir.Object{from}, []ir.Object{to}, Options{})
	want := []string{"ALTER TABLE public.users ALTER COLUMN email TYPE character varying(60);"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
	if len(res.Notes) != 1 || !strings.HasPrefix(res.Notes[0], "high risk: ") {
		t.Errorf("Notes = %q, want one high risk note", res.Notes)
	}
}

func TestColumnAttributeChanges(t *testing.T) {
	from := table("users", col("name", "text"), col("score", "integer"))
	to := table("users",
		&ir.Column{Name: "name", DataType: "text", NotNull: true, Default: irtest.Str("''::text")},
		col("score", "integer"),
		&ir.Column{Name: "created_at", DataType: "timestamp with time zone", NotNull: true, Default: irtest.Str("now()")},
	)

	res := generate(t, []ir.Object{from}, []ir.Object{to}, Options{})
	want := []string{
		"ALTER TABLE public.users ALTER COLUMN name SET DEFAULT ''::text;",
		"ALTER TABLE public.users ALTER COLUMN name SET NOT NULL;",
		"ALTER TABLE public.users ADD COLUMN created_at timestamp with time zone DEFAULT now() NOT NULL;",
	}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestRemovedTableHonoursUseDrop(t *testing.T) {
	products := table("products", notNull(col("id", "integer")), col("name", "text"))

	tests := []struct {
		name     string
		useDrop  bool
		disabled bool
		script   string
	}{
		{"disabled", false, true, "-- DROP TABLE IF EXISTS public.products;\n"},
		{"enabled", true, false, "\nDROP TABLE IF EXISTS public.products;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := generate(t, []ir.Object{products}, nil, Options{UseDrop: tt.useDrop})
			if len(res.Statements) != 1 {
				t.Fatalf("statements = %q, want one", sqls(res))
			}
			st := res.Statements[0]
			if st.SQL != "DROP TABLE IF EXISTS public.products;" {
				t.Errorf("SQL = %q", st.SQL)
			}
			if st.Disabled != tt.disabled {
				t.Errorf("Disabled = %v, want %v", st.Disabled, tt.disabled)
			}
			if st.Action != plan.ActionDrop || st.Kind != ir.KindTable {
				t.Errorf("statement context = %s %s", st.Action, st.Kind)
			}
			if got := len(res.Skipped) == 1; got != tt.disabled {
				t.Errorf("Skipped = %v", res.Skipped)
			}
			if script := Script(res); !strings.Contains(script, tt.script) {
				t.Errorf("script does not contain %q:\n%s", tt.script, script)
			}
		})
	}
}

func TestRemovedTableAbsorbsDependents(t *testing.T) {
	products := table("products", notNull(col("id", "integer")), col("name", "text"))
	from := []ir.Object{
		products,
		&ir.Constraint{Schema: "public", Table: "products", Name: "products_pkey",
			Type: ir.ConstraintTypePrimaryKey, Columns: []string{"id"}},
		&ir.Index{Schema: "public", Table: "products", Name: "products_name_idx", Keys: []*ir.IndexKey{{Column: "name"}}},
		&ir.Comment{Target: products.Key(), Text: "catalog"},
	}

	res := generate(t, from, nil, Options{UseDrop: true})
	want := []string{"DROP TABLE IF EXISTS public.products;"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
	if len(res.Skipped) != 3 {
		t.Errorf("Skipped = %v, want the constraint, index and comment", res.Skipped)
	}
}

func TestForeignKeyCycleAddsConstraintsLast(t *testing.T) {
	a := table("a", notNull(col("id", "integer")), col("b_id", "integer"))
	b := table("b", notNull(col("id", "integer")), col("a_id", "integer"))
	fk := func(tbl, column, ref string) *ir.Constraint {
		return &ir.Constraint{Schema: "public", Table: tbl, Name: tbl + "_" + column + "_fkey",
			Type: ir.ConstraintTypeForeignKey, Columns: []string{column},
			ReferencedSchema: "public", ReferencedTable: ref, ReferencedColumns: []string{"id"}}
	}
	pk := func(tbl string) *ir.Constraint {
		return &ir.Constraint{Schema: "public", Table: tbl, Name: tbl + "_pkey",
			Type: ir.ConstraintTypePrimaryKey, Columns: []string{"id"}}
	}

	res := generate(t, nil, []ir.Object{a, b, pk("a"), pk("b"), fk("a", "b_id", "b"), fk("b", "a_id", "a")}, Options{})
	want := []string{
		"CREATE TABLE public.a (\n    id integer NOT NULL,\n    b_id integer,\n    CONSTRAINT a_pkey PRIMARY KEY (id)\n);",
		"CREATE TABLE public.b (\n    id integer NOT NULL,\n    a_id integer,\n    CONSTRAINT b_pkey PRIMARY KEY (id)\n);",
		"ALTER TABLE public.a ADD CONSTRAINT a_b_id_fkey FOREIGN KEY (b_id) REFERENCES public.b (id);",
		"ALTER TABLE public.b ADD CONSTRAINT b_a_id_fkey FOREIGN KEY (a_id) REFERENCES public.a (id);",
	}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumRebuildRenamesOldTypeAside(t *testing.T) {
	mood := func(labels ...string) *ir.EnumType {
		return &ir.EnumType{Schema: "public", Name: "mood", Labels: labels}
	}
	people := table("people", &ir.Column{Name: "m", DataType: "public.mood", Default: irtest.Str("'a'::public.mood")})

	res := generate(t, []ir.Object{mood("a", "b", "c"), people}, []ir.Object{mood("a", "c"), people}, Options{})
	want := []string{
		"ALTER TYPE public.mood RENAME TO mood_old;",
		"CREATE TYPE public.mood AS ENUM ('a', 'c');",
		"ALTER TABLE public.people ALTER COLUMN m DROP DEFAULT;",
		"ALTER TABLE public.people ALTER COLUMN m TYPE public.mood USING m::text::public.mood;",
		"ALTER TABLE public.people ALTER COLUMN m SET DEFAULT 'a'::public.mood;",
		"DROP TYPE public.mood_old;",
	}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnsLetGoBeforeDrop(t *testing.T) {
	status := &ir.EnumType{Schema: "public", Name: "status", Labels: []string{"on", "off"}}
	seq := &ir.Sequence{Schema: "public", Name: "users_id_seq", DataType: "bigint", Start: 1, Increment: 1, Cache: 1}
	genCode := &ir.Routine{Schema: "public", Name: "gen_code", Kind: ir.RoutineFunction, ReturnType: "text",
		Language: "sql", Volatility: "VOLATILE", Body: "SELECT md5(random()::text)"}
	withDefault := func(c *ir.Column, expr string) *ir.Column {
		c.Default = irtest.Str(expr)
		return c
	}

	tests := []struct {
		name string
		from []ir.Object
		to   []ir.Object
		want []string
	}{
		{
			name: "dropped enum",
			from: []ir.Object{status, table("users", col("id", "integer"), col("state", "public.status"))},
			to:   []ir.Object{table("users", col("id", "integer"))},
			want: []string{
				"ALTER TABLE public.users DROP COLUMN IF EXISTS state;",
				"DROP TYPE IF EXISTS public.status;",
			},
		},
		{
			name: "dropped sequence",
			from: []ir.Object{seq, table("users", withDefault(col("id", "bigint"), "nextval('public.users_id_seq'::regclass)"))},
			to:   []ir.Object{table("users", col("id", "bigint"))},
			want: []string{
				"ALTER TABLE public.users ALTER COLUMN id DROP DEFAULT;",
				"DROP SEQUENCE IF EXISTS public.users_id_seq;",
			},
		},
		{
			name: "dropped function",
			from: []ir.Object{genCode, table("items", col("id", "integer"), withDefault(col("code", "text"), "public.gen_code()"))},
			to:   []ir.Object{table("items", col("id", "integer"), col("code", "text"))},
			want: []string{
				"ALTER TABLE public.items ALTER COLUMN code DROP DEFAULT;",
				"DROP FUNCTION IF EXISTS public.gen_code();",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := generate(t, tt.from, tt.to, Options{UseDrop: true})
			if diff := cmp.Diff(tt.want, sqls(res)); diff != "" {
				t.Errorf("statements mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRetypeToReplacementEnumGoesThroughText(t *testing.T) {
	oldType := &ir.EnumType{Schema: "public", Name: "old_status", Labels: []string{"on"}}
	newType := &ir.EnumType{Schema: "public", Name: "new_status", Labels: []string{"on"}}
	from := []ir.Object{oldType, table("users", col("id", "integer"), col("state", "public.old_status"))}
	to := []ir.Object{newType, table("users", col("id", "integer"), col("state", "public.new_status"))}

	res := generate(t, from, to, Options{UseDrop: true})
	want := []string{
		"ALTER TABLE public.users ALTER COLUMN state TYPE text USING state::text;",
		"DROP TYPE IF EXISTS public.old_status;",
		"CREATE TYPE public.new_status AS ENUM ('on');",
		"ALTER TABLE public.users ALTER COLUMN state TYPE public.new_status USING state::text::public.new_status;",
	}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumRebuildMovesCompositeAttributes(t *testing.T) {
	status := func(labels ...string) *ir.EnumType {
		return &ir.EnumType{Schema: "public", Name: "status", Labels: labels}
	}
	pair := &ir.CompositeType{Schema: "public", Name: "pair", Fields: []*ir.CompositeField{
		{Name: "n", DataType: "integer", Position: 1},
		{Name: "s", DataType: "public.status", Position: 2},
	}}

	res := generate(t, []ir.Object{status("a", "b", "c"), pair}, []ir.Object{status("a", "b"), pair}, Options{})
	want := []string{
		"ALTER TYPE public.status RENAME TO status_old;",
		"CREATE TYPE public.status AS ENUM ('a', 'b');",
		"ALTER TYPE public.pair ALTER ATTRIBUTE s TYPE public.status;",
		"DROP TYPE public.status_old;",
	}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumRebuildRejectsDependentsItCannotMove(t *testing.T) {
	status := func(labels ...string) *ir.EnumType {
		return &ir.EnumType{Schema: "public", Name: "status", Labels: labels}
	}
	pair := &ir.CompositeType{Schema: "public", Name: "pair", Fields: []*ir.CompositeField{
		{Name: "s", DataType: "public.status", Position: 1},
	}}

	tests := []struct {
		name       string
		dependents []ir.Object
	}{
		{
			name:       "domain over the enum",
			dependents: []ir.Object{&ir.DomainType{Schema: "public", Name: "state", BaseType: "public.status"}},
		},
		{
			name:       "composite stored in a column",
			dependents: []ir.Object{pair, table("pairs", col("p", "public.pair"))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := append([]ir.Object{status("a", "b", "c")}, tt.dependents...)
			to := append([]ir.Object{status("a", "b")}, tt.dependents...)

			res, err := Generate(resolve(t, from, to), Options{})
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("error = %v, want *GenerationError", err)
			}
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("error = %v, want it to wrap ErrUnsupported", err)
			}
			if genErr.Key != status().Key() {
				t.Errorf("failed at %s, want the enum", genErr.Key)
			}
			for _, sql := range sqls(res) {
				if strings.Contains(sql, "status_old") {
					t.Errorf("no part of the rebuild should be emitted, got %q", sql)
				}
			}
		})
	}
}

func TestConstraintRename(t *testing.T) {
	users := table("users", notNull(col("id", "integer")))
	pk := func(name string) *ir.Constraint {
		return &ir.Constraint{Schema: "public", Table: "users", Name: name,
			Type: ir.ConstraintTypePrimaryKey, Columns: []string{"id"}}
	}

	res := generate(t, []ir.Object{users, pk("users_pkey")}, []ir.Object{users, pk("users_pk")}, Options{})
	want := []string{"ALTER TABLE public.users RENAME CONSTRAINT users_pkey TO users_pk;"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnComment(t *testing.T) {
	users := table("users", col("email", "text"))
	comment := func(text string) *ir.Comment {
		return &ir.Comment{Target: users.Key(), Column: "email", Text: text}
	}

	res := generate(t, []ir.Object{users}, []ir.Object{users, comment("it's the login")}, Options{})
	want := []string{"COMMENT ON COLUMN public.users.email IS 'it''s the login';"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}

	res = generate(t, []ir.Object{users, comment("old")}, []ir.Object{users}, Options{UseDrop: true})
	want = []string{"COMMENT ON COLUMN public.users.email IS NULL;"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestRoutineBodySurvivesQuoting(t *testing.T) {
	body := "\nBEGIN\n  RAISE NOTICE $$ends with $f_body$ and $x$;\n  RETURN 1;\nEND;\n"
	fn := &ir.Routine{Schema: "public", Name: "f", Kind: ir.RoutineFunction, ReturnType: "integer",
		Language: "plpgsql", Volatility: "VOLATILE", Body: body}

	res := generate(t, nil, []ir.Object{fn}, Options{})
	if len(res.Statements) != 1 {
		t.Fatalf("statements = %q, want one", sqls(res))
	}
	sql := res.Statements[0].SQL
	if !strings.HasPrefix(sql, "CREATE OR REPLACE FUNCTION public.f()\nRETURNS integer\nLANGUAGE plpgsql\nVOLATILE\nAS ") {
		t.Fatalf("unexpected header:\n%s", sql)
	}
	at := strings.Index(sql, "\nAS ") + len("\nAS ")
	_, got, end, err := util.ScanDollarQuoted(sql, at)
	if err != nil {
		t.Fatalf("ScanDollarQuoted: %v", err)
	}
	if got != body {
		t.Errorf("body = %q, want %q", got, body)
	}
	if sql[end:] != ";" {
		t.Errorf("trailing text after body = %q", sql[end:])
	}
}

func TestUnquotableIdentifierFails(t *testing.T) {
	good := table("good", col("id", "integer"))
	bad := table("zz\x00", col("id", "integer"))

	res, err := Generate(resolve(t, nil, []ir.Object{good, bad}), Options{})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want *GenerationError", err)
	}
	if !errors.Is(err, util.ErrUnquotableIdentifier) {
		t.Errorf("error = %v, want it to wrap ErrUnquotableIdentifier", err)
	}
	if genErr.State != EmittingCreates || genErr.Key != bad.Key() {
		t.Errorf("failed at %s %s", genErr.State, genErr.Key)
	}
	if res.State != Failed {
		t.Errorf("State = %s, want failed", res.State)
	}
	want := []string{"CREATE TABLE public.good (\n    id integer\n);"}
	if diff := cmp.Diff(want, sqls(res)); diff != "" {
		t.Errorf("partial output mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	first := Script(generate(t, nil, irtest.Everything(), Options{}))
	for i := 0; i < 5; i++ {
		if got := Script(generate(t, nil, irtest.Everything(), Options{})); got != first {
			t.Fatalf("run %d differs:\n%s", i, cmp.Diff(first, got))
		}
	}

	res := generate(t, nil, irtest.Everything(), Options{})
	if got := res.Statements[0].SQL; got != "CREATE SCHEMA IF NOT EXISTS app;" {
		t.Errorf("first statement = %q", got)
	}
	if got := res.Statements[1].SQL; got != "CREATE EXTENSION IF NOT EXISTS pgcrypto WITH SCHEMA app VERSION '1.3';" {
		t.Errorf("second statement = %q", got)
	}
}

func TestNoChanges(t *testing.T) {
	users := table("users", col("id", "integer"))
	res := generate(t, []ir.Object{users}, []ir.Object{users}, Options{})
	if len(res.Statements) != 0 {
		t.Fatalf("statements = %q, want none", sqls(res))
	}
	if script := Script(res); !strings.HasSuffix(script, "-- No changes detected.\n") {
		t.Errorf("script = %q", script)
	}
}
