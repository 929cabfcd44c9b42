package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	text := `
		FROM_HOST=localhost
		FROM_DATABASE=testdb
		FROM_SCHEME=postgres
		FROM_SSL=true
		FROM_DUMP=from.dump
		TO_HOST=remotehost
		TO_PORT=6543
		TO_USER=admin
		TO_PASSWORD=secret
		TO_DATABASE=remotedb
		TO_SCHEME=postgres
		TO_SSL=false
		TO_DUMP=to.dump
		OUTPUT=result.out
	`
	cfg, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, Endpoint{
		Host:     "localhost",
		Port:     DefaultPort,
		Database: "testdb",
		Schema:   "postgres",
		SSL:      true,
		Dump:     "from.dump",
	}, cfg.From)
	assert.Equal(t, Endpoint{
		Host:     "remotehost",
		Port:     6543,
		User:     "admin",
		Password: "secret",
		Database: "remotedb",
		Schema:   "postgres",
		Dump:     "to.dump",
	}, cfg.To)
	assert.Equal(t, "result.out", cfg.Output)
	assert.False(t, cfg.UseDrop)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse("FROM_HOST=a\nTO_HOST=b\n")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.From.Port)
	assert.Equal(t, DefaultPort, cfg.To.Port)
	assert.Equal(t, DefaultFromDump, cfg.From.Dump)
	assert.Equal(t, DefaultToDump, cfg.To.Dump)
	assert.Equal(t, DefaultOutput, cfg.Output)
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	text := "# source database\n\nFROM_HOST=db1\n\n   # target\nTO_HOST=db2\n"
	cfg, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "db1", cfg.From.Host)
	assert.Equal(t, "db2", cfg.To.Host)
}

func TestParseQuotedValues(t *testing.T) {
	cfg, err := Parse("FROM_PASSWORD='p#ss word'\nTO_PASSWORD=\"x=y\"\n")
	require.NoError(t, err)
	assert.Equal(t, "p#ss word", cfg.From.Password)
	assert.Equal(t, "x=y", cfg.To.Password)
}

func TestParseKeysAreCaseInsensitive(t *testing.T) {
	cfg, err := Parse("from_host=db1\nUse_Drop=TRUE\n")
	require.NoError(t, err)
	assert.Equal(t, "db1", cfg.From.Host)
	assert.True(t, cfg.UseDrop)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
		key  string
	}{
		{name: "invalid line", text: "FROM_HOST=localhost\nINVALID_LINE", line: 2},
		{name: "missing key", text: "=value", line: 1},
		{name: "unknown key", text: "FROM_HOST=localhost\nUNKNOWN_KEY=value", line: 2, key: "UNKNOWN_KEY"},
		{name: "unknown endpoint field", text: "FROM_COLOR=blue", line: 1, key: "FROM_COLOR"},
		{name: "invalid ssl", text: "FROM_HOST=localhost\nFROM_SSL=maybe", line: 2, key: "FROM_SSL"},
		{name: "invalid port", text: "TO_PORT=abc", line: 1, key: "TO_PORT"},
		{name: "port out of range", text: "TO_PORT=70000", line: 1, key: "TO_PORT"},
		{name: "invalid use drop", text: "USE_DROP=yes", line: 1, key: "USE_DROP"},
		{name: "empty value", text: "FROM_HOST=", line: 1, key: "FROM_HOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)

			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.line, cfgErr.Line)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgdiff.conf")
	require.NoError(t, os.WriteFile(path, []byte("FROM_HOST=db1\nOUTPUT=migration.sql\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db1", cfg.From.Host)
	assert.Equal(t, "migration.sql", cfg.Output)

	_, err = Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}

func TestEndpointConnection(t *testing.T) {
	ep := Endpoint{Host: "h", Port: 5433, User: "u", Password: "p", Database: "d", Schema: "app", SSL: true, Dump: "x"}
	conn := ep.Connection()

	assert.Equal(t, "h", conn.Host)
	assert.Equal(t, 5433, conn.Port)
	assert.Equal(t, "require", conn.SSLMode())
	assert.Equal(t, "app", conn.SchemaPattern())
}
