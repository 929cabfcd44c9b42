package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgschema/pgdiff/internal/dump"
	"github.com/pgschema/pgdiff/testutil"
)

func TestConfigRunDumpsAndCompares(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	container.Exec(ctx, t, "CREATE DATABASE target")
	container.Exec(ctx, t, `CREATE TABLE users (id integer PRIMARY KEY, email varchar(50) NOT NULL)`)

	dir := t.TempDir()
	conf := fmt.Sprintf(`# source and target live in the same server
FROM_HOST=%[1]s
FROM_PORT=%[2]d
FROM_USER=%[3]s
FROM_PASSWORD=%[4]s
FROM_DATABASE=%[5]s
FROM_DUMP=%[6]s
TO_HOST=%[1]s
TO_PORT=%[2]d
TO_USER=%[3]s
TO_PASSWORD=%[4]s
TO_DATABASE=target
TO_DUMP=%[7]s
OUTPUT=%[8]s
`, container.Host, container.Port, container.User, container.Password, container.Database,
		filepath.Join(dir, "dump.from"), filepath.Join(dir, "dump.to"), filepath.Join(dir, "data.out"))
	confPath := filepath.Join(dir, "pgdiff.conf")
	if err := os.WriteFile(confPath, []byte(conf), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	out, err := execute(t, "--config", confPath, "--no-color")
	if err != nil {
		t.Fatalf("config run failed: %v\n%s", err, out)
	}

	for _, name := range []string{"dump.from", "dump.to"} {
		if _, err := dump.ReadFile(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected readable %s: %v", name, err)
		}
	}

	script, err := os.ReadFile(filepath.Join(dir, "data.out"))
	if err != nil {
		t.Fatalf("Failed to read migration script: %v", err)
	}
	// users exists only in the source, so its drop is written but disabled
	if !strings.Contains(string(script), "-- DROP TABLE IF EXISTS public.users;") {
		t.Errorf("expected a disabled drop of users, got:\n%s", script)
	}
}
