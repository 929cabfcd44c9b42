package inspect

import (
	"strings"
	"testing"
	"time"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     5433,
		Database: "shop",
		User:     "app",
		Password: "s3cr et",
		Timeout:  30 * time.Second,
	}

	want := "host=db.internal port=5433 dbname=shop user=app password='s3cr et' sslmode=disable connect_timeout=30 application_name=pgdiff"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}

	masked := cfg.MaskedDSN()
	if strings.Contains(masked, "s3cr") {
		t.Errorf("MaskedDSN() leaks the password: %q", masked)
	}
	if !strings.Contains(masked, "password=****") {
		t.Errorf("MaskedDSN() = %q, want masked password", masked)
	}
}

func TestConfigSSLMode(t *testing.T) {
	if got := (Config{SSL: true}).SSLMode(); got != "require" {
		t.Errorf("SSLMode() = %q, want require", got)
	}
	if got := (Config{}).SSLMode(); got != "disable" {
		t.Errorf("SSLMode() = %q, want disable", got)
	}
}

func TestConfigSchemaPattern(t *testing.T) {
	tests := []struct {
		schema string
		want   string
	}{
		{"", "public"},
		{"app", "app"},
		{"*", "%"},
		{"tenant_*", "tenant_%"},
	}
	for _, tt := range tests {
		if got := (Config{Schema: tt.schema}).SchemaPattern(); got != tt.want {
			t.Errorf("SchemaPattern(%q) = %q, want %q", tt.schema, got, tt.want)
		}
	}
}

func TestDSNValue(t *testing.T) {
	tests := map[string]string{
		"plain":       "plain",
		"with space":  "'with space'",
		`it's`:        `'it\'s'`,
		`back\slash`:  `'back\\slash'`,
	}
	for in, want := range tests {
		if got := dsnValue(in); got != want {
			t.Errorf("dsnValue(%q) = %q, want %q", in, got, want)
		}
	}
}
