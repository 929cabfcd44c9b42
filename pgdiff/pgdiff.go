// Package pgdiff provides a programmatic API for dumping PostgreSQL schemas
// and generating the migration script between two of them.
package pgdiff

import (
	"context"
	"fmt"

	"github.com/pgschema/pgdiff/internal/ddl"
	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/dump"
	"github.com/pgschema/pgdiff/internal/inspect"
	"github.com/pgschema/pgdiff/internal/plan"
)

// DatabaseConfig holds connection details for a PostgreSQL database.
type DatabaseConfig struct {
	Host     string // Database server host
	Port     int    // Database server port
	Database string // Database name
	User     string // Database user
	Password string // Database password (optional)
	Schema   string // Schema LIKE pattern, * allowed (default: "public")
	SSL      bool   // Require SSL
}

func (c DatabaseConfig) connection() inspect.Config {
	return inspect.Config{
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		SSL:      c.SSL,
		Schema:   c.Schema,
	}
}

// DumpOptions configures how a schema is dumped.
type DumpOptions struct {
	DatabaseConfig
	File string // Dump file to write (optional)
}

// CompareOptions configures script generation.
type CompareOptions struct {
	UseDrop bool // Emit DROP statements instead of commented-out ones
}

// Migration is the outcome of comparing two snapshots.
type Migration struct {
	Changes *ChangeSet
	Plan    *Plan
	Result  *Result
}

// Script renders the migration as a SQL file.
func (m *Migration) Script() string {
	return ddl.Script(m.Result)
}

// Empty reports whether the two snapshots had no structural differences.
func (m *Migration) Empty() bool {
	return m.Changes.Empty()
}

// Client provides the main interface for pgdiff operations.
type Client struct {
	// Default configuration that can be overridden by individual operations
	defaultDB DatabaseConfig
}

// NewClient creates a new pgdiff client with default database configuration.
func NewClient(dbConfig DatabaseConfig) *Client {
	if dbConfig.Schema == "" {
		dbConfig.Schema = "public"
	}
	return &Client{defaultDB: dbConfig}
}

// Dump inspects the database and returns its snapshot. When opts.File is
// set the snapshot is also written there.
func (c *Client) Dump(ctx context.Context, opts DumpOptions) (*Snapshot, error) {
	if opts.Host == "" {
		opts.DatabaseConfig = c.defaultDB
	}

	snap, err := inspect.Inspect(ctx, opts.connection())
	if err != nil {
		return nil, err
	}
	if opts.File != "" {
		if err := dump.WriteFile(opts.File, snap); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// CompareWith inspects the client's database and target concurrently and
// returns the migration that turns the client's schema into target's.
func (c *Client) CompareWith(ctx context.Context, target DatabaseConfig, opts CompareOptions) (*Migration, error) {
	if target.Schema == "" {
		target.Schema = c.defaultDB.Schema
	}
	pair, err := inspect.InspectPair(ctx, c.defaultDB.connection(), target.connection())
	if err != nil {
		return nil, err
	}
	return Compare(pair.From, pair.To, opts)
}

// Compare diffs two snapshots, orders the changes and generates the
// statements. On a generation failure the partial Migration is returned
// along with the error.
func Compare(from, to *Snapshot, opts CompareOptions) (*Migration, error) {
	cs, err := diff.Diff(from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to diff snapshots: %w", err)
	}
	p, err := plan.Resolve(cs)
	if err != nil {
		return nil, err
	}
	res, err := ddl.Generate(p, ddl.Options{UseDrop: opts.UseDrop})
	return &Migration{Changes: cs, Plan: p, Result: res}, err
}

// CompareFiles reads two dump files and compares them.
func CompareFiles(fromPath, toPath string, opts CompareOptions) (*Migration, error) {
	from, err := dump.ReadFile(fromPath)
	if err != nil {
		return nil, err
	}
	to, err := dump.ReadFile(toPath)
	if err != nil {
		return nil, err
	}
	return Compare(from, to, opts)
}
