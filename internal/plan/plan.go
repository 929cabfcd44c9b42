// Package plan orders the changes of a change set into drop, alter, create
// and deferred phases that respect object dependencies.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pgschema/pgdiff/internal/color"
	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/ir"
)

// Action is what a step does to its object
type Action string

const (
	ActionDrop   Action = "drop"
	ActionAlter  Action = "alter"
	ActionCreate Action = "create"
	// ActionAddForeignKey adds a foreign key left out of a table cycle.
	ActionAddForeignKey Action = "add_foreign_key"
	// ActionSetOwner attaches a sequence to its owning column.
	ActionSetOwner Action = "set_owner"
	// ActionRelease runs the column drops, retypes and default removals of
	// an altered table during the drop phase, before the objects those
	// columns use are dropped.
	ActionRelease Action = "release"
)

// Step is one unit of work for the generator.
type Step struct {
	Action Action
	// Key is the identity acted on: the source identity for drops and the
	// target identity otherwise.
	Key    ir.Key
	Change *diff.Change
	// Inline holds constraints created as part of CREATE TABLE.
	Inline []*ir.Constraint
	// Cascade marks a rebuild forced by a dependency.
	Cascade bool
	// Swap marks an enum or domain rebuilt by renaming the old type aside.
	Swap bool
	// Released marks a table alter whose column drops, retypes and default
	// removals already ran in its release step.
	Released bool
	// Bridged lists retyped columns that the release step converts to text
	// because their new type is only created later.
	Bridged []string
}

func (s *Step) String() string {
	return fmt.Sprintf("%s %s", s.Action, s.Key)
}

// Absorbed is a removal that needs no statement because dropping Into
// already removes it.
type Absorbed struct {
	Change *diff.Change
	Into   ir.Key
}

// Plan is the resolved, ordered form of a change set.
type Plan struct {
	ChangeSet *diff.ChangeSet

	Drops    []*Step
	Alters   []*Step
	Creates  []*Step
	Deferred []*Step

	Absorbed []Absorbed
	// Cascaded are the rebuilds of unchanged objects.
	Cascaded []*diff.Change
	// Informational are modifications that need no statement.
	Informational []*diff.Change
}

// Steps returns every step in execution order.
func (p *Plan) Steps() []*Step {
	steps := make([]*Step, 0, len(p.Drops)+len(p.Alters)+len(p.Creates)+len(p.Deferred))
	steps = append(steps, p.Drops...)
	steps = append(steps, p.Alters...)
	steps = append(steps, p.Creates...)
	return append(steps, p.Deferred...)
}

// Empty reports whether the plan has nothing to execute.
func (p *Plan) Empty() bool {
	return len(p.Drops)+len(p.Alters)+len(p.Creates)+len(p.Deferred) == 0
}

// CycleError reports objects whose dependencies form a cycle that no
// deferral can break.
type CycleError struct {
	Members []ir.Key
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Members))
	for i, k := range e.Members {
		names[i] = k.String()
	}
	return "dependency cycle between " + strings.Join(names, ", ")
}

// Summary provides counts of changes by kind
type Summary struct {
	Add     int                     `json:"add"`
	Change  int                     `json:"change"`
	Destroy int                     `json:"destroy"`
	Total   int                     `json:"total"`
	ByKind  map[ir.Kind]KindSummary `json:"by_kind"`
}

// KindSummary provides counts for one object kind
type KindSummary struct {
	Add     int `json:"add"`
	Change  int `json:"change"`
	Destroy int `json:"destroy"`
}

// Summary counts the changes of the underlying change set. Comments and
// informational modifications are not counted.
func (p *Plan) Summary() Summary {
	s := Summary{ByKind: make(map[ir.Kind]KindSummary)}
	if p.ChangeSet == nil {
		return s
	}
	for _, c := range p.ChangeSet.Changes {
		if c.Key.Kind == ir.KindComment || c.Informational() {
			continue
		}
		ks := s.ByKind[c.Key.Kind]
		switch c.Type {
		case diff.Added:
			ks.Add++
			s.Add++
		case diff.Modified:
			ks.Change++
			s.Change++
		case diff.Removed:
			ks.Destroy++
			s.Destroy++
		}
		s.ByKind[c.Key.Kind] = ks
	}
	s.Total = s.Add + s.Change + s.Destroy
	return s
}

// Human renders the summary and the per-object changes in plan style.
func (p *Plan) Human(c *color.Color) string {
	var b strings.Builder
	s := p.Summary()
	if s.Total == 0 {
		b.WriteString("No changes detected.\n")
		return b.String()
	}

	b.WriteString(c.FormatPlanHeader(s.Add, s.Change, s.Destroy) + "\n\n")
	b.WriteString(c.Bold("Summary by kind:") + "\n")
	for _, kind := range ir.Kinds {
		if ks, ok := s.ByKind[kind]; ok {
			b.WriteString(c.FormatSummaryLine(strings.ToLower(string(kind)), ks.Add, ks.Change, ks.Destroy) + "\n")
		}
	}
	b.WriteString("\n")

	changes := append([]*diff.Change(nil), p.ChangeSet.Changes...)
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Key.Less(changes[j].Key) })
	for _, ch := range changes {
		if ch.Key.Kind == ir.KindComment || ch.Informational() {
			continue
		}
		action := map[diff.ChangeType]string{diff.Added: "create", diff.Modified: "update", diff.Removed: "drop"}[ch.Type]
		line := c.FormatPlanLine(ir.Describe(ch.Object()), action)
		if ch.HighRisk {
			line += " " + c.Destroy("(high risk)")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
