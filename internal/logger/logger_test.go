package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetGlobal(t *testing.T) {
	t.Cleanup(func() { SetGlobal(nil, false) })

	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{name: "info", debug: false, wantDebug: false},
		{name: "debug", debug: true, wantDebug: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetGlobal(New(&buf, tt.debug), tt.debug)

			if IsDebug() != tt.wantDebug {
				t.Errorf("IsDebug() = %v, want %v", IsDebug(), tt.wantDebug)
			}
			Get().Debug("catalog query", "rows", 3)
			Get().Info("dump written")

			out := buf.String()
			if got := strings.Contains(out, "catalog query"); got != tt.wantDebug {
				t.Errorf("debug line logged = %v, want %v:\n%s", got, tt.wantDebug, out)
			}
			if !strings.Contains(out, "dump written") {
				t.Errorf("info line missing:\n%s", out)
			}
		})
	}
}

func TestGetFallback(t *testing.T) {
	SetGlobal(nil, false)
	if Get() == nil {
		t.Fatal("Get() returned nil without a global logger")
	}
}
