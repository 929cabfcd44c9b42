package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pgschema/pgdiff/cmd/util"
	"github.com/pgschema/pgdiff/internal/config"
	"github.com/pgschema/pgdiff/internal/inspect"
)

// runWithConfig dumps both databases of the configuration file concurrently
// and compares them. --use_drop on the command line also enables drops.
func (o *options) runWithConfig(ctx context.Context, w io.Writer) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Using configuration file: %s\n", o.configFile)

	from, to := cfg.From.Connection(), cfg.To.Connection()
	for _, c := range []*inspect.Config{&from, &to} {
		if c.Password == "" {
			c.Password = util.GetEnvWithDefault("PGPASSWORD", "")
		}
	}

	pair, err := inspect.InspectPair(ctx, from, to)
	if err != nil {
		return err
	}
	if err := writeDump(w, cfg.From.Dump, pair.From); err != nil {
		return err
	}
	if err := writeDump(w, cfg.To.Dump, pair.To); err != nil {
		return err
	}

	opts := o.compareOptions()
	opts.ddl.UseDrop = opts.ddl.UseDrop || cfg.UseDrop
	return compareSnapshots(w, pair.From, pair.To, cfg.Output, opts)
}
