package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/dump"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/ir/irtest"
	"github.com/pgschema/pgdiff/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommandHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "pgdiff dumps PostgreSQL schemas")
	assert.Contains(t, out, "--command")
	assert.Contains(t, out, "--use_drop")
}

func TestRootCommandWithoutArgsPrintsHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "pgdiff dumps PostgreSQL schemas")
}

func TestRootCommandUnknownCommand(t *testing.T) {
	_, err := execute(t, "--command", "restore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "restore"`)
}

func TestRootCommandFlagDefaults(t *testing.T) {
	root := NewRootCmd()
	defaults := map[string]string{
		"server":   "localhost",
		"port":     "5432",
		"database": "postgres",
		"scheme":   "public",
		"output":   "data.out",
		"from":     "dump.from",
		"to":       "dump.to",
		"use_ssl":  "false",
		"use_drop": "false",
	}
	for name, want := range defaults {
		flag := root.Flags().Lookup(name)
		require.NotNil(t, flag, "flag --%s", name)
		assert.Equal(t, want, flag.DefValue, "default of --%s", name)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
	assert.True(t, strings.HasPrefix(out, "pgdiff v"))
}

func writeDumps(t *testing.T, from, to []ir.Object) (string, string) {
	t.Helper()
	dir := t.TempDir()
	fromPath := filepath.Join(dir, "dump.from")
	toPath := filepath.Join(dir, "dump.to")
	require.NoError(t, dump.WriteFile(fromPath, irtest.Snapshot(t, from...)))
	require.NoError(t, dump.WriteFile(toPath, irtest.Snapshot(t, to...)))
	return fromPath, toPath
}

func enumWith(labels ...string) *ir.EnumType {
	return &ir.EnumType{Schema: "public", Name: "status_type", Labels: labels}
}

func TestCompareCommand(t *testing.T) {
	fromPath, toPath := writeDumps(t,
		[]ir.Object{enumWith("active", "inactive")},
		[]ir.Object{enumWith("active", "inactive", "suspended")},
	)
	outPath := filepath.Join(t.TempDir(), "data.out")

	out, err := execute(t, "--command", "compare", "--from", fromPath, "--to", toPath, "--output", outPath, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+outPath+": 1 statements")

	script, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(script), "-- pgdiff migration script")
	assert.Contains(t, string(script), "ALTER TYPE public.status_type ADD VALUE 'suspended';")
}

func TestCompareCommandToStdout(t *testing.T) {
	fromPath, toPath := writeDumps(t,
		[]ir.Object{enumWith("active")},
		[]ir.Object{enumWith("active")},
	)

	out, err := execute(t, "--command", "compare", "--from", fromPath, "--to", toPath, "--output", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "-- No changes detected.")
}

func TestCompareCommandUseDrop(t *testing.T) {
	users := &ir.Table{Schema: "public", Name: "users", Columns: []*ir.Column{
		{Name: "id", Position: 1, DataType: "integer"},
	}}

	tests := []struct {
		name    string
		args    []string
		wantSQL string
	}{
		{name: "disabled by default", wantSQL: "-- DROP TABLE IF EXISTS public.users;"},
		{name: "enabled", args: []string{"--use_drop"}, wantSQL: "\nDROP TABLE IF EXISTS public.users;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromPath, toPath := writeDumps(t, []ir.Object{users}, nil)
			args := append([]string{"--command", "compare", "--from", fromPath, "--to", toPath, "--output", "-"}, tt.args...)

			out, err := execute(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantSQL)
		})
	}
}

func TestCompareSkipsDiffForMatchingFingerprints(t *testing.T) {
	// the index has no table, which the diff rejects
	orphan := &ir.Index{Schema: "public", Table: "gone", Name: "gone_idx", Method: "btree",
		Keys: []*ir.IndexKey{{Column: "id"}}}
	snap := irtest.Snapshot(t, orphan)
	outPath := filepath.Join(t.TempDir(), "data.out")

	var buf bytes.Buffer
	require.NoError(t, compareSnapshots(&buf, snap, irtest.Snapshot(t, orphan), outPath, compareOptions{noColor: true}))
	assert.Contains(t, buf.String(), "No changes detected.")
	assert.Contains(t, buf.String(), "Wrote "+outPath+": 0 statements")

	script, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(script), "-- No changes detected.")

	other := irtest.Snapshot(t, orphan, enumWith("active"))
	err = compareSnapshots(&buf, snap, other, outPath, compareOptions{noColor: true})
	assert.ErrorIs(t, err, diff.ErrInconsistentSnapshot)
}

func TestCompareCommandMissingDump(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "--command", "compare",
		"--from", filepath.Join(dir, "missing.from"),
		"--to", filepath.Join(dir, "missing.to"),
		"--output", filepath.Join(dir, "data.out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.from")
}

func TestConfigCommandRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgdiff.conf")
	require.NoError(t, os.WriteFile(path, []byte("FROM_HOST=localhost\nFROM_SSL=maybe\n"), 0644))

	_, err := execute(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FROM_SSL")
}
