package inspect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pgschema/pgdiff/internal/ir"
)

func strPtr(s string) *string { return &s }

func TestParseParameters(t *testing.T) {
	tests := []struct {
		name  string
		args  string
		names []string
		modes []string
		want  []*ir.Parameter
	}{
		{
			name: "no arguments",
			args: "",
			want: nil,
		},
		{
			name:  "named with default",
			args:  "user_id integer, reason text DEFAULT 'n/a'::text",
			names: []string{"user_id", "reason"},
			want: []*ir.Parameter{
				{Name: "user_id", DataType: "integer"},
				{Name: "reason", DataType: "text", Default: strPtr("'n/a'::text")},
			},
		},
		{
			name: "unnamed",
			args: "integer, numeric(10,2)",
			want: []*ir.Parameter{
				{DataType: "integer"},
				{DataType: "numeric(10,2)"},
			},
		},
		{
			name:  "modes",
			args:  "a integer, OUT total bigint, INOUT counter integer, VARIADIC rest text[]",
			names: []string{"a", "total", "counter", "rest"},
			modes: []string{"i", "o", "b", "v"},
			want: []*ir.Parameter{
				{Name: "a", DataType: "integer"},
				{Name: "total", DataType: "bigint", Mode: "OUT"},
				{Name: "counter", DataType: "integer", Mode: "INOUT"},
				{Name: "rest", DataType: "text[]", Mode: "VARIADIC"},
			},
		},
		{
			name:  "quoted name",
			args:  `"Order" integer`,
			names: []string{"Order"},
			want: []*ir.Parameter{
				{Name: "Order", DataType: "integer"},
			},
		},
		{
			name:  "table columns are not arguments",
			args:  "since date",
			names: []string{"since", "id", "total"},
			modes: []string{"i", "t", "t"},
			want: []*ir.Parameter{
				{Name: "since", DataType: "date"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseParameters(tt.args, tt.names, tt.modes)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseParameters() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsedSignatureMatchesKey(t *testing.T) {
	r := &ir.Routine{
		Schema:     "public",
		Name:       "total",
		Kind:       ir.RoutineFunction,
		Parameters: parseParameters("a integer, OUT s bigint, VARIADIC xs text[]", []string{"a", "s", "xs"}, []string{"i", "o", "v"}),
	}
	if got, want := r.Signature(), "total(integer, VARIADIC text[])"; got != want {
		t.Errorf("Signature() = %q, want %q", got, want)
	}
}
