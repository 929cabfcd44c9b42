// Package ddl turns a resolved plan into SQL statements.
package ddl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
	"github.com/pgschema/pgdiff/internal/plan"
	"github.com/pgschema/pgdiff/internal/util"
)

// State is the generator's progress through a plan
type State int

const (
	Idle State = iota
	EmittingDrops
	EmittingAlters
	EmittingCreates
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case EmittingDrops:
		return "emitting drops"
	case EmittingAlters:
		return "emitting alters"
	case EmittingCreates:
		return "emitting creates"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrUnsupported reports an object or change the generator cannot express.
var ErrUnsupported = errors.New("unsupported construct")

// GenerationError aborts generation. The Result returned alongside it holds
// the statements generated before the failing step; they are for
// inspection only.
type GenerationError struct {
	State State
	Key   ir.Key
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed while %s at %s: %v", e.State, e.Key, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Options controls statement generation
type Options struct {
	// UseDrop emits drops of removed objects. When false they are written
	// as comments. Drops needed to rebuild an object are always emitted.
	UseDrop bool
}

// Skip records a change that produced no statement, with the reason.
type Skip struct {
	Key    ir.Key
	Reason string
}

// Result is the output of Generate
type Result struct {
	Statements []Statement
	Notes      []string
	Skipped    []Skip
	State      State

	From ir.Metadata
	To   ir.Metadata
}

// Generate renders the statements of a plan phase by phase: drops, alters,
// then creates followed by the deferred pass.
func Generate(p *plan.Plan, opts Options) (*Result, error) {
	g := &generator{plan: p, opts: opts, res: &Result{State: Idle}}
	if p.ChangeSet != nil {
		g.res.From = p.ChangeSet.From.Metadata
		g.res.To = p.ChangeSet.To.Metadata
	}
	g.annotate()

	creates := make([]*plan.Step, 0, len(p.Creates)+len(p.Deferred))
	creates = append(creates, p.Creates...)
	creates = append(creates, p.Deferred...)
	phases := []struct {
		state State
		steps []*plan.Step
	}{
		{EmittingDrops, p.Drops},
		{EmittingAlters, p.Alters},
		{EmittingCreates, creates},
	}

	for _, phase := range phases {
		g.res.State = phase.state
		for _, s := range phase.steps {
			if err := g.step(s); err != nil {
				g.res.Statements = g.out.statements
				g.res.State = Failed
				return g.res, &GenerationError{State: phase.state, Key: s.Key, Err: err}
			}
		}
	}

	g.res.Statements = g.out.statements
	g.res.State = Done
	logger.Get().Debug("Generated migration statements",
		"statements", len(g.res.Statements),
		"notes", len(g.res.Notes),
		"skipped", len(g.res.Skipped),
	)
	return g.res, nil
}

type generator struct {
	plan *plan.Plan
	opts Options
	res  *Result
	out  collector
	cur  stmtContext
	// err is the first quoting failure of the current step
	err error
}

// annotate records the changes that need no statement and the notes a
// reviewer should see before running the script.
func (g *generator) annotate() {
	for _, c := range g.plan.Informational {
		kinds := make([]string, 0, len(c.Deltas))
		for _, d := range c.Deltas {
			kinds = append(kinds, string(d.Kind))
		}
		g.res.Skipped = append(g.res.Skipped, Skip{Key: c.Key,
			Reason: "only " + strings.Join(kinds, ", ") + " differs; physical order cannot be changed in place"})
	}
	for _, a := range g.plan.Absorbed {
		g.res.Skipped = append(g.res.Skipped, Skip{Key: a.Change.Key,
			Reason: "removed together with " + a.Into.String()})
	}
	if g.plan.ChangeSet != nil {
		for _, c := range g.plan.ChangeSet.Changes {
			if c.HighRisk {
				g.res.Notes = append(g.res.Notes, "high risk: "+describeChange(c))
			}
		}
	}
	for _, c := range g.plan.Cascaded {
		g.res.Notes = append(g.res.Notes, "rebuilding "+ir.Describe(c.New)+" because an object it depends on changes")
	}
}

func describeChange(c *diff.Change) string {
	var deltas []string
	for _, d := range c.Deltas {
		if !d.Informational() {
			deltas = append(deltas, d.String())
		}
	}
	s := strings.ToLower(string(c.Type)) + " " + ir.Describe(c.Object())
	if len(deltas) > 0 {
		s += " (" + strings.Join(deltas, "; ") + ")"
	}
	return s
}

func (g *generator) step(s *plan.Step) error {
	mark := g.out.mark()
	g.err = nil
	g.cur = stmtContext{kind: s.Key.Kind, action: s.Action, path: s.Key.String()}

	var err error
	switch s.Action {
	case plan.ActionDrop:
		err = g.drop(s)
	case plan.ActionCreate:
		err = g.create(s)
	case plan.ActionAlter:
		err = g.alter(s)
	case plan.ActionRelease:
		err = g.release(s)
	case plan.ActionAddForeignKey:
		con, ok := s.Change.New.(*ir.Constraint)
		if !ok {
			err = fmt.Errorf("%w: deferred %T", ErrUnsupported, s.Change.New)
			break
		}
		g.addConstraint(con)
	case plan.ActionSetOwner:
		seq, ok := s.Change.New.(*ir.Sequence)
		if !ok {
			err = fmt.Errorf("%w: ownership of %T", ErrUnsupported, s.Change.New)
			break
		}
		g.setOwner(seq)
	default:
		err = fmt.Errorf("%w: step action %q", ErrUnsupported, s.Action)
	}
	if err == nil {
		err = g.err
	}
	if err != nil {
		g.out.truncate(mark)
		return err
	}
	return nil
}

// emit collects one statement of the current step.
func (g *generator) emit(sql string) {
	if !strings.HasSuffix(sql, ";") {
		sql += ";"
	}
	g.out.collect(&g.cur, sql)
}

func (g *generator) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

func (g *generator) ident(name string) string {
	q, err := util.QuoteIdentifierStrict(name)
	if err != nil {
		g.fail(err)
	}
	return q
}

func (g *generator) qualified(schema, name string) string {
	q, err := util.QualifiedNameStrict(schema, name)
	if err != nil {
		g.fail(err)
	}
	return q
}

func (g *generator) identList(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = g.ident(n)
	}
	return strings.Join(parts, ", ")
}
