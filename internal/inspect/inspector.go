// Package inspect reads a live database's system catalogs into a snapshot.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
)

// Inspector builds snapshots from catalog queries
type Inspector struct {
	db      *sql.DB
	timeout time.Duration
}

// NewInspector creates an inspector over an open connection
func NewInspector(db *sql.DB) *Inspector {
	return &Inspector{db: db, timeout: DefaultTimeout}
}

// WithTimeout sets the deadline applied to one Snapshot call.
func (i *Inspector) WithTimeout(d time.Duration) *Inspector {
	if d > 0 {
		i.timeout = d
	}
	return i
}

// builder reads one family of catalog objects. Builders run concurrently
// and only touch their own result slice.
type builder func(ctx context.Context, pattern string) ([]ir.Object, error)

// queryGroup represents a group of queries that can be executed concurrently
type queryGroup struct {
	name     string
	builders []builder
}

// Snapshot reads every object in the schemas matching pattern (a LIKE
// pattern).
func (i *Inspector) Snapshot(ctx context.Context, pattern string) (*ir.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	meta, err := i.metadata(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	groups := []queryGroup{
		{name: "namespaces", builders: []builder{i.schemas, i.extensions}},
		{name: "types", builders: []builder{i.enums, i.composites, i.domains, i.sequences}},
		{name: "tables", builders: []builder{i.tables, i.constraints, i.indexes}},
		{name: "dependent objects", builders: []builder{i.routines, i.triggers, i.views, i.policies}},
	}

	results := make([][][]ir.Object, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	for gi, group := range groups {
		gi, group := gi, group
		results[gi] = make([][]ir.Object, len(group.builders))
		eg.Go(func() error {
			return i.executeGroup(egCtx, pattern, group, results[gi])
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	b := ir.NewBuilder(meta)
	for _, group := range results {
		for _, objects := range group {
			if err := b.Add(objects...); err != nil {
				return nil, err
			}
		}
	}
	snap := b.Build()

	logger.Get().Debug("Inspected database",
		"database", meta.Database,
		"schema", pattern,
		"objects", snap.Len(),
	)
	return snap, nil
}

// executeGroup runs the builders of one group concurrently, storing each
// result at the builder's index.
func (i *Inspector) executeGroup(ctx context.Context, pattern string, group queryGroup, out [][]ir.Object) error {
	eg, ctx := errgroup.WithContext(ctx)
	for bi, build := range group.builders {
		bi, build := bi, build
		eg.Go(func() error {
			objects, err := build(ctx, pattern)
			if err != nil {
				return err
			}
			out[bi] = objects
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("%s: %w", group.name, err)
	}
	return nil
}

func (i *Inspector) metadata(ctx context.Context, pattern string) (ir.Metadata, error) {
	var version, database string
	if err := i.db.QueryRowContext(ctx, metadataQuery).Scan(&version, &database); err != nil {
		return ir.Metadata{}, err
	}

	// Extract version number from the version string
	if strings.Contains(version, "PostgreSQL") {
		if parts := strings.Fields(version); len(parts) >= 2 {
			version = parts[1]
		}
	}

	return ir.Metadata{
		DatabaseVersion: version,
		Database:        database,
		SchemaFilter:    pattern,
		Source:          "inspect",
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Pair holds the two snapshots read by InspectPair
type Pair struct {
	From *ir.Snapshot
	To   *ir.Snapshot
}

// InspectPair connects to both databases and reads them concurrently.
func InspectPair(ctx context.Context, from, to Config) (*Pair, error) {
	var pair Pair
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		snap, err := Inspect(ctx, from)
		if err != nil {
			return fmt.Errorf("from database: %w", err)
		}
		pair.From = snap
		return nil
	})
	eg.Go(func() error {
		snap, err := Inspect(ctx, to)
		if err != nil {
			return fmt.Errorf("to database: %w", err)
		}
		pair.To = snap
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Inspect connects with cfg and snapshots its schema pattern.
func Inspect(ctx context.Context, cfg Config) (*ir.Snapshot, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return NewInspector(db).WithTimeout(cfg.Timeout).Snapshot(ctx, cfg.SchemaPattern())
}
