package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pgschema/pgdiff/internal/dump"
	"github.com/pgschema/pgdiff/internal/fingerprint"
	"github.com/pgschema/pgdiff/internal/inspect"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
)

// runDump inspects one database and writes its dump file.
func runDump(ctx context.Context, w io.Writer, conn inspect.Config, path string) error {
	fmt.Fprintf(w, "Dumping database %s (schema %s)...\n", conn.Database, conn.SchemaPattern())

	snap, err := inspect.Inspect(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to inspect database %s: %w", conn.Database, err)
	}
	return writeDump(w, path, snap)
}

// writeDump persists snap and reports its fingerprint.
func writeDump(w io.Writer, path string, snap *ir.Snapshot) error {
	if err := dump.WriteFile(path, snap); err != nil {
		return err
	}

	fp, err := fingerprint.ComputeFingerprint(snap)
	if err != nil {
		return fmt.Errorf("failed to compute fingerprint: %w", err)
	}
	logger.Get().Debug("Wrote dump",
		"path", path,
		"database", snap.Metadata.Database,
		"fingerprint", fp.Hash,
	)

	fmt.Fprintf(w, "Wrote %s: %d objects from %s\n%s\n", path, snap.Len(), describeDatabase(snap.Metadata), fp)
	return nil
}

func describeDatabase(m ir.Metadata) string {
	if m.Database == "" {
		return "database"
	}
	if m.DatabaseVersion != "" {
		return fmt.Sprintf("%s (PostgreSQL %s)", m.Database, m.DatabaseVersion)
	}
	return m.Database
}
