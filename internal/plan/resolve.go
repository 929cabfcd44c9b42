package plan

import (
	"sort"

	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
)

// Resolve orders a change set. Objects are dropped dependents first, then
// altered in place, then created dependencies first. Tables whose columns
// still use a dropped type, sequence or function release them in the drop
// phase ahead of that drop. Foreign keys caught in a table cycle and
// sequence ownership are deferred to a final pass. It fails with a *CycleError when a cycle cannot be broken.
func Resolve(cs *diff.ChangeSet) (*Plan, error) {
	r := &resolver{
		cs:      cs,
		from:    Dependencies(cs.From),
		to:      Dependencies(cs.To),
		drops:   make(map[ir.Key]*Step),
		alters:  make(map[ir.Key]*Step),
		creates: make(map[ir.Key]*Step),
		byOld:   make(map[ir.Key]*diff.Change),
		plan:    &Plan{ChangeSet: cs},
	}

	r.classify()
	r.cascade()
	r.absorb()
	r.release()
	r.inline()
	r.deferOwnership()
	if err := r.order(); err != nil {
		return nil, err
	}

	logger.Get().Debug("Resolved change plan",
		"drops", len(r.plan.Drops),
		"alters", len(r.plan.Alters),
		"creates", len(r.plan.Creates),
		"deferred", len(r.plan.Deferred),
		"absorbed", len(r.plan.Absorbed),
		"cascaded", len(r.plan.Cascaded),
	)
	return r.plan, nil
}

type resolver struct {
	cs       *diff.ChangeSet
	from, to *Graph

	drops   map[ir.Key]*Step // by source identity
	alters  map[ir.Key]*Step
	creates map[ir.Key]*Step
	byOld   map[ir.Key]*diff.Change

	deferred []*Step
	plan     *Plan
}

func (r *resolver) classify() {
	for _, c := range r.cs.Changes {
		if c.Old != nil {
			r.byOld[c.OldKey()] = c
		}
		switch c.Type {
		case diff.Added:
			r.creates[c.Key] = &Step{Action: ActionCreate, Key: c.Key, Change: c}
		case diff.Removed:
			r.drops[c.Key] = &Step{Action: ActionDrop, Key: c.Key, Change: c}
		case diff.Modified:
			switch {
			case c.Informational():
				r.plan.Informational = append(r.plan.Informational, c)
			case c.Recreate && (c.Key.Kind == ir.KindEnum || c.Key.Kind == ir.KindDomain):
				r.alters[c.Key] = &Step{Action: ActionAlter, Key: c.Key, Change: c, Swap: true}
			case c.Recreate:
				r.drops[c.OldKey()] = &Step{Action: ActionDrop, Key: c.OldKey(), Change: c}
				r.creates[c.Key] = &Step{Action: ActionCreate, Key: c.Key, Change: c}
			default:
				r.alters[c.Key] = &Step{Action: ActionAlter, Key: c.Key, Change: c}
			}
		}
	}
}

// rebuildable kinds are derived from other objects and can be dropped and
// recreated without losing data.
func rebuildable(kind ir.Kind) bool {
	switch kind {
	case ir.KindView, ir.KindConstraint, ir.KindIndex, ir.KindTrigger,
		ir.KindPolicy, ir.KindComment, ir.KindFunction, ir.KindProcedure:
		return true
	}
	return false
}

// cascade rebuilds the derived dependents of everything that is dropped,
// swapped, or has a column retyped or removed underneath it.
func (r *resolver) cascade() {
	visited := make(map[ir.Key]bool)
	var queue []ir.Key
	push := func(k ir.Key) {
		if !visited[k] {
			visited[k] = true
			queue = append(queue, k)
		}
	}
	viewsOf := func(table ir.Key) {
		for _, e := range r.from.Edges(table) {
			if !e.Weak && e.To.Kind == ir.KindView {
				r.rebuild(e.To)
				push(e.To)
			}
		}
	}

	for _, k := range sortedStepKeys(r.drops) {
		push(k)
	}
	for _, k := range sortedStepKeys(r.alters) {
		s := r.alters[k]
		switch {
		case s.Swap:
			push(s.Change.OldKey())
			for _, tbl := range r.cs.To.Tables() {
				if tableUsesType(tbl, k) {
					viewsOf(tbl.Key())
				}
			}
		case k.Kind == ir.KindTable && (s.Change.HasDelta(diff.DeltaColumnType) || s.Change.HasDelta(diff.DeltaColumnDropped)):
			viewsOf(s.Change.OldKey())
		}
	}

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if k.Kind == ir.KindSchema || k.Kind == ir.KindExtension {
			// their contents are removed explicitly
			continue
		}
		for _, e := range r.from.Edges(k) {
			if e.Weak || !rebuildable(e.To.Kind) {
				continue
			}
			r.rebuild(e.To)
			push(e.To)
		}
	}
}

func tableUsesType(tbl *ir.Table, typ ir.Key) bool {
	for _, col := range tbl.Columns {
		if schema, name, ok := ir.TypeReference(col.DataType, tbl.Schema); ok && schema == typ.Schema && name == typ.Name {
			return true
		}
	}
	return false
}

// rebuild makes sure the object with source identity k is dropped and
// created again.
func (r *resolver) rebuild(k ir.Key) {
	if _, ok := r.drops[k]; ok {
		return
	}
	if c, ok := r.byOld[k]; ok && c.Type == diff.Modified {
		if s, ok := r.alters[c.Key]; ok && !s.Swap {
			delete(r.alters, c.Key)
			r.drops[k] = &Step{Action: ActionDrop, Key: k, Change: c, Cascade: true}
			r.creates[c.Key] = &Step{Action: ActionCreate, Key: c.Key, Change: c, Cascade: true}
		}
		return
	}
	oldObj, ok := r.cs.From.Get(k)
	if !ok {
		return
	}
	newObj, ok := r.cs.To.Get(k)
	if !ok {
		return
	}
	c := &diff.Change{Type: diff.Modified, Key: k, Old: oldObj, New: newObj, Recreate: true}
	r.plan.Cascaded = append(r.plan.Cascaded, c)
	r.drops[k] = &Step{Action: ActionDrop, Key: k, Change: c, Cascade: true}
	r.creates[k] = &Step{Action: ActionCreate, Key: k, Change: c, Cascade: true}
}

// absorb removes drops that happen implicitly: objects on a dropped table
// other than foreign keys, comments on dropped objects, and comments on
// dropped columns.
func (r *resolver) absorb() {
	for _, k := range sortedStepKeys(r.drops) {
		s := r.drops[k]
		into, ok := r.absorber(k, s.Change)
		if !ok {
			continue
		}
		delete(r.drops, k)
		r.plan.Absorbed = append(r.plan.Absorbed, Absorbed{Change: s.Change, Into: into})
	}
}

func (r *resolver) absorber(k ir.Key, c *diff.Change) (ir.Key, bool) {
	if k.Kind.TableScoped() {
		if con, ok := c.Old.(*ir.Constraint); ok && con.Type == ir.ConstraintTypeForeignKey {
			return ir.Key{}, false
		}
		if s, ok := r.drops[k.TableKey()]; ok && s.Change.Type == diff.Removed {
			return k.TableKey(), true
		}
		return ir.Key{}, false
	}
	if k.Kind != ir.KindComment {
		return ir.Key{}, false
	}
	comment := c.Old.(*ir.Comment)
	if _, ok := r.drops[comment.Target]; ok {
		return comment.Target, true
	}
	if comment.Target.Kind.TableScoped() {
		if s, ok := r.drops[comment.Target.TableKey()]; ok && s.Change.Type == diff.Removed {
			return comment.Target.TableKey(), true
		}
	}
	if comment.Column != "" {
		if tc, ok := r.byOld[comment.Target]; ok && tc.Type == diff.Modified {
			for _, d := range tc.Deltas {
				if d.Kind == diff.DeltaColumnDropped && d.Name == comment.Column {
					return comment.Target, true
				}
			}
		}
	}
	return ir.Key{}, false
}

// release splits the alter of a table that still uses an object dropped in
// this run: its column drops, retypes and default removals move to a
// release step ordered in the drop phase, ahead of the dropped object.
func (r *resolver) release() {
	for _, k := range sortedStepKeys(r.alters) {
		s := r.alters[k]
		if k.Kind != ir.KindTable || s.Swap || !releasesColumns(s.Change) {
			continue
		}
		table := s.Change.OldKey()
		if _, ok := r.drops[table]; ok || !r.usesDropped(table) {
			continue
		}
		s.Released = true
		s.Bridged = r.bridged(s.Change)
		r.drops[table] = &Step{Action: ActionRelease, Key: table, Change: s.Change, Bridged: s.Bridged}
	}
}

func releasesColumns(c *diff.Change) bool {
	for _, d := range c.Deltas {
		switch {
		case d.Kind == diff.DeltaColumnDropped, d.Kind == diff.DeltaColumnType:
			return true
		case d.Kind == diff.DeltaColumnDefault && d.Old != "":
			return true
		}
	}
	return false
}

// usesDropped reports whether a dropped object is a hard dependency of the
// table in the source snapshot.
func (r *resolver) usesDropped(table ir.Key) bool {
	for _, k := range sortedStepKeys(r.drops) {
		if r.drops[k].Action != ActionDrop {
			continue
		}
		if e := r.from.Edge(k, table); e != nil && !e.Weak {
			return true
		}
	}
	return false
}

// bridged returns the retyped columns whose new type is created in this run.
func (r *resolver) bridged(c *diff.Change) []string {
	tbl := c.New.(*ir.Table)
	var cols []string
	for _, d := range c.Deltas {
		if d.Kind != diff.DeltaColumnType {
			continue
		}
		col := tbl.Column(d.Name)
		if col == nil {
			continue
		}
		schema, name, ok := ir.TypeReference(col.DataType, tbl.Schema)
		if !ok {
			continue
		}
		for _, kind := range []ir.Kind{ir.KindEnum, ir.KindComposite, ir.KindDomain} {
			if _, created := r.creates[ir.Key{Schema: schema, Name: name, Kind: kind}]; created {
				cols = append(cols, d.Name)
				break
			}
		}
	}
	return cols
}

// inline folds the primary key, unique and check constraints of new tables
// into their CREATE TABLE when nothing else created in this run has to
// come first.
func (r *resolver) inline() {
	for _, k := range sortedStepKeys(r.creates) {
		s := r.creates[k]
		if k.Kind != ir.KindConstraint {
			continue
		}
		con := s.Change.New.(*ir.Constraint)
		if con.Type == ir.ConstraintTypeForeignKey {
			continue
		}
		table, ok := r.creates[k.TableKey()]
		if !ok || table.Change.Type != diff.Added {
			continue
		}
		if !r.onlyNeedsTable(k) {
			continue
		}
		table.Inline = append(table.Inline, con)
		delete(r.creates, k)
	}

	rank := map[ir.ConstraintType]int{
		ir.ConstraintTypePrimaryKey: 0,
		ir.ConstraintTypeUnique:     1,
		ir.ConstraintTypeCheck:      2,
	}
	for _, s := range r.creates {
		sort.SliceStable(s.Inline, func(i, j int) bool {
			a, b := s.Inline[i], s.Inline[j]
			if rank[a.Type] != rank[b.Type] {
				return rank[a.Type] < rank[b.Type]
			}
			return a.Name < b.Name
		})
	}
}

// onlyNeedsTable reports whether every object the constraint depends on is
// its own table, a dependency of that table, or something that exists
// before the create phase.
func (r *resolver) onlyNeedsTable(k ir.Key) bool {
	table := k.TableKey()
	for _, from := range r.to.Nodes() {
		e := r.to.Edge(from, k)
		if e == nil || from == table || r.to.Edge(from, table) != nil {
			continue
		}
		if _, ok := r.creates[from]; ok {
			return false
		}
		if _, ok := r.alters[from]; ok {
			return false
		}
	}
	return true
}

// deferOwnership moves sequence ownership to the final pass, after the
// owning tables exist.
func (r *resolver) deferOwnership() {
	for _, k := range sortedStepKeys(r.creates) {
		s := r.creates[k]
		if seq, ok := s.Change.New.(*ir.Sequence); ok && seq.OwnedBy != nil {
			r.deferred = append(r.deferred, &Step{Action: ActionSetOwner, Key: k, Change: s.Change})
		}
	}
	for _, k := range sortedStepKeys(r.alters) {
		s := r.alters[k]
		if k.Kind != ir.KindSequence {
			continue
		}
		owned, other := false, false
		for _, d := range s.Change.Deltas {
			if d.Kind == diff.DeltaAttribute && d.Name == "owned_by" {
				owned = true
			} else {
				other = true
			}
		}
		if owned {
			r.deferred = append(r.deferred, &Step{Action: ActionSetOwner, Key: k, Change: s.Change})
		}
		if !other {
			delete(r.alters, k)
		}
	}
}

func (r *resolver) order() error {
	from := r.from.Clone()
	from.breakWeakCycles()
	if err := checkCycles(from, r.drops); err != nil {
		return err
	}

	to := r.to.Clone()
	for _, e := range to.breakWeakCycles() {
		for _, fk := range e.Via {
			if s, ok := r.creates[fk]; ok {
				delete(r.creates, fk)
				s.Action = ActionAddForeignKey
				r.deferred = append(r.deferred, s)
			}
		}
	}
	steps := make(map[ir.Key]*Step, len(r.alters)+len(r.creates))
	for k, s := range r.alters {
		steps[k] = s
	}
	for k, s := range r.creates {
		steps[k] = s
	}
	if err := checkCycles(to, steps); err != nil {
		return err
	}

	// alters that need something created first run in the create phase
	late := to.reachable(sortedStepKeys(r.creates))
	for _, k := range sortedStepKeys(r.alters) {
		if late[k] {
			r.creates[k] = r.alters[k]
			delete(r.alters, k)
		}
	}

	var err error
	if r.plan.Drops, err = orderSteps(from, r.drops, true); err != nil {
		return err
	}
	if r.plan.Alters, err = orderSteps(to, r.alters, false); err != nil {
		return err
	}
	if r.plan.Creates, err = orderSteps(to, r.creates, false); err != nil {
		return err
	}

	sort.SliceStable(r.deferred, func(i, j int) bool {
		a, b := r.deferred[i], r.deferred[j]
		if a.Action != b.Action {
			return a.Action == ActionAddForeignKey
		}
		return a.Key.Less(b.Key)
	})
	r.plan.Deferred = r.deferred
	return nil
}

// checkCycles fails when a remaining cycle involves any step.
func checkCycles(g *Graph, steps map[ir.Key]*Step) error {
	for _, comp := range g.Components() {
		for _, k := range comp {
			if _, ok := steps[k]; ok {
				return &CycleError{Members: comp}
			}
		}
	}
	return nil
}

func orderSteps(g *Graph, steps map[ir.Key]*Step, reverse bool) ([]*Step, error) {
	keys := sortedStepKeys(steps)
	set := make(map[ir.Key]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	order, err := topoSort(g.induced(set), keys, reverse)
	if err != nil {
		return nil, err
	}
	out := make([]*Step, len(order))
	for i, k := range order {
		out[i] = steps[k]
	}
	return out, nil
}

func sortedStepKeys(steps map[ir.Key]*Step) []ir.Key {
	keys := make([]ir.Key, 0, len(steps))
	for k := range steps {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}
