package pgdiff

import (
	"context"
)

// DumpSchema is a convenience function to inspect a database schema.
func DumpSchema(ctx context.Context, dbConfig DatabaseConfig) (*Snapshot, error) {
	return NewClient(dbConfig).Dump(ctx, DumpOptions{})
}

// DumpSchemaToFile is a convenience function to dump a database schema to a file.
func DumpSchemaToFile(ctx context.Context, dbConfig DatabaseConfig, filePath string) error {
	_, err := NewClient(dbConfig).Dump(ctx, DumpOptions{File: filePath})
	return err
}

// CompareDatabases is a convenience function returning the migration
// script from one database's schema to another's.
func CompareDatabases(ctx context.Context, from, to DatabaseConfig) (string, error) {
	m, err := NewClient(from).CompareWith(ctx, to, CompareOptions{})
	if err != nil {
		return "", err
	}
	return m.Script(), nil
}

// CompareDumps is a convenience function returning the migration script
// between two dump files.
func CompareDumps(fromPath, toPath string) (string, error) {
	m, err := CompareFiles(fromPath, toPath, CompareOptions{})
	if err != nil {
		return "", err
	}
	return m.Script(), nil
}
