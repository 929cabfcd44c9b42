package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pgschema/pgdiff/internal/color"
	"github.com/pgschema/pgdiff/internal/ddl"
	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/dump"
	"github.com/pgschema/pgdiff/internal/fingerprint"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
	"github.com/pgschema/pgdiff/internal/plan"
)

type compareOptions struct {
	ddl     ddl.Options
	noColor bool
}

// runCompare reads two dump files and writes the migration script between
// them.
func runCompare(w io.Writer, fromPath, toPath, outPath string, opts compareOptions) error {
	from, err := dump.ReadFile(fromPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fromPath, err)
	}
	to, err := dump.ReadFile(toPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", toPath, err)
	}
	return compareSnapshots(w, from, to, outPath, opts)
}

func compareSnapshots(w io.Writer, from, to *ir.Snapshot, outPath string, opts compareOptions) error {
	same, err := sameFingerprint(from, to)
	if err != nil {
		return err
	}

	p, res := &plan.Plan{}, &ddl.Result{State: ddl.Done, From: from.Metadata, To: to.Metadata}
	if same {
		logger.Get().Debug("Snapshots share a fingerprint, skipping diff")
	} else {
		p, res, err = migrate(from, to, opts.ddl)
		if err != nil {
			return err
		}
	}

	script := ddl.Script(res)
	if outPath == "-" {
		_, err := io.WriteString(w, script)
		return err
	}

	fmt.Fprint(w, p.Human(color.New(!opts.noColor)))
	if err := os.WriteFile(outPath, []byte(script), 0644); err != nil {
		return fmt.Errorf("failed to write migration script: %w", err)
	}
	fmt.Fprintf(w, "\nWrote %s: %d statements", outPath, len(res.Statements))
	if n := len(res.Skipped); n > 0 {
		fmt.Fprintf(w, ", %d skipped", n)
	}
	fmt.Fprintln(w)
	return nil
}

// migrate diffs, orders and generates the statements between two snapshots.
func migrate(from, to *ir.Snapshot, opts ddl.Options) (*plan.Plan, *ddl.Result, error) {
	cs, err := diff.Diff(from, to)
	if err != nil {
		return nil, nil, err
	}
	p, err := plan.Resolve(cs)
	if err != nil {
		return nil, nil, err
	}
	res, err := ddl.Generate(p, opts)
	if err != nil {
		var genErr *ddl.GenerationError
		if errors.As(err, &genErr) && res != nil {
			logger.Get().Debug("Generation stopped", "state", genErr.State, "statements", len(res.Statements))
		}
		return nil, nil, err
	}
	return p, res, nil
}

func sameFingerprint(from, to *ir.Snapshot) (bool, error) {
	a, err := fingerprint.ComputeFingerprint(from)
	if err != nil {
		return false, err
	}
	b, err := fingerprint.ComputeFingerprint(to)
	if err != nil {
		return false, err
	}
	return fingerprint.Compare(a, b) == nil, nil
}
