package inspect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTriggerArguments(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		n       int
		want    []string
	}{
		{name: "none", encoded: "", n: 0, want: nil},
		{name: "single", encoded: `audit\000`, n: 1, want: []string{"audit"}},
		{name: "several", encoded: `a\000b c\000`, n: 2, want: []string{"a", "b c"}},
		{name: "empty argument", encoded: `\000x\000`, n: 2, want: []string{"", "x"}},
		{name: "backslash", encoded: `C:\\tmp\000`, n: 1, want: []string{`C:\tmp`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := triggerArguments(tt.encoded, tt.n)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("triggerArguments() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTriggerCondition(t *testing.T) {
	tests := []struct {
		def  string
		want string
	}{
		{
			def:  "CREATE TRIGGER t BEFORE UPDATE ON public.orders FOR EACH ROW EXECUTE FUNCTION public.touch()",
			want: "",
		},
		{
			def:  "CREATE TRIGGER t BEFORE UPDATE ON public.orders FOR EACH ROW WHEN ((old.status IS DISTINCT FROM new.status)) EXECUTE FUNCTION public.touch()",
			want: "(old.status IS DISTINCT FROM new.status)",
		},
	}
	for _, tt := range tests {
		if got := triggerCondition(tt.def); got != tt.want {
			t.Errorf("triggerCondition(%q) = %q, want %q", tt.def, got, tt.want)
		}
	}
}

func TestCheckExpression(t *testing.T) {
	tests := map[string]string{
		"CHECK (price > 0)":              "(price > 0)",
		"CHECK ((a < b)) NOT VALID":      "((a < b))",
		"CHECK (VALUE ~ '^\\d+$'::text)": "(VALUE ~ '^\\d+$'::text)",
	}
	for def, want := range tests {
		if got := checkExpression(def); got != want {
			t.Errorf("checkExpression(%q) = %q, want %q", def, got, want)
		}
	}
}

func TestIdentityGeneration(t *testing.T) {
	for code, want := range map[string]string{"a": "ALWAYS", "d": "BY DEFAULT", "": ""} {
		if got := identityGeneration(code); got != want {
			t.Errorf("identityGeneration(%q) = %q, want %q", code, got, want)
		}
	}
}
