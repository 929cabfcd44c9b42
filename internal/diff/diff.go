// Package diff compares two catalog snapshots and reports every added,
// removed and modified object with field-level deltas.
package diff

import (
	"fmt"
	"sort"

	"github.com/pgschema/pgdiff/internal/fingerprint"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
)

// Diff compares two snapshots. It fails with an *Error when either snapshot
// is internally inconsistent.
func Diff(from, to *ir.Snapshot) (*ChangeSet, error) {
	if err := validate("from", from); err != nil {
		return nil, err
	}
	if err := validate("to", to); err != nil {
		return nil, err
	}

	cs := &ChangeSet{From: from, To: to}
	for _, kind := range ir.Kinds {
		var (
			changes []*Change
			err     error
		)
		switch kind {
		case ir.KindConstraint, ir.KindIndex:
			changes, err = diffMatched(from, to, kind)
		default:
			changes, err = diffByKey(from, to, kind)
		}
		if err != nil {
			return nil, err
		}
		cs.Changes = append(cs.Changes, changes...)
	}

	sort.SliceStable(cs.Changes, func(i, j int) bool {
		return cs.Changes[i].Key.Less(cs.Changes[j].Key)
	})

	logger.Get().Debug("Computed schema diff",
		"added", cs.Count(Added),
		"removed", cs.Count(Removed),
		"modified", cs.Count(Modified),
	)
	return cs, nil
}

// validate checks that table-scoped objects and comments point at objects
// present in the same snapshot.
func validate(side string, snap *ir.Snapshot) error {
	for _, obj := range snap.Objects() {
		key := obj.Key()
		if key.Kind.TableScoped() {
			if key.Table == "" {
				return &Error{Side: side, Key: key, Reason: "table-scoped object without a table"}
			}
			if !snap.Has(key.TableKey()) {
				return &Error{Side: side, Key: key, Reason: fmt.Sprintf("table %s.%s is not in the snapshot", key.Schema, key.Table)}
			}
		}

		c, ok := obj.(*ir.Comment)
		if !ok {
			continue
		}
		target, exists := snap.Get(c.Target)
		if !exists {
			return &Error{Side: side, Key: key, Reason: "comment target " + c.Target.String() + " is not in the snapshot"}
		}
		if c.Column == "" {
			continue
		}
		switch t := target.(type) {
		case *ir.Table:
			if t.Column(c.Column) == nil {
				return &Error{Side: side, Key: key, Reason: "column " + c.Column + " does not exist"}
			}
		case *ir.View:
			if !contains(t.Columns, c.Column) {
				return &Error{Side: side, Key: key, Reason: "column " + c.Column + " does not exist"}
			}
		default:
			return &Error{Side: side, Key: key, Reason: "column comment on a " + string(c.Target.Kind)}
		}
	}
	return nil
}

// diffByKey pairs objects of one kind by identity.
func diffByKey(from, to *ir.Snapshot, kind ir.Kind) ([]*Change, error) {
	var changes []*Change
	for _, key := range from.KeysOf(kind) {
		if !to.Has(key) {
			old, _ := from.Get(key)
			changes = append(changes, &Change{Type: Removed, Key: key, Old: old})
		}
	}
	for _, key := range to.KeysOf(kind) {
		newObj, _ := to.Get(key)
		oldObj, ok := from.Get(key)
		if !ok {
			changes = append(changes, &Change{Type: Added, Key: key, New: newObj})
			continue
		}
		change, err := compare(oldObj, newObj)
		if err != nil {
			return nil, err
		}
		if change != nil {
			changes = append(changes, change)
		}
	}
	return changes, nil
}

// diffMatched pairs constraints or indexes by name first and then, per
// table, by structural signature. A signature match with an identical
// definition is a rename; everything else left over is an add and a drop.
func diffMatched(from, to *ir.Snapshot, kind ir.Kind) ([]*Change, error) {
	changes, err := diffByKey(from, to, kind)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		removed []*Change
		added   []*Change
	}
	buckets := make(map[string]*bucket)
	var keep []*Change
	for _, c := range changes {
		if c.Type == Modified {
			keep = append(keep, c)
			continue
		}
		id := c.Key.Schema + "\x00" + c.Key.Table + "\x00" + signature(c.Object())
		b := buckets[id]
		if b == nil {
			b = &bucket{}
			buckets[id] = b
		}
		if c.Type == Removed {
			b.removed = append(b.removed, c)
		} else {
			b.added = append(b.added, c)
		}
	}

	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := buckets[id]
		// positional pairing in name order
		n := min(len(b.removed), len(b.added))
		for i := 0; i < n; i++ {
			oldObj, newObj := b.removed[i].Old, b.added[i].New
			if definition(oldObj) != definition(newObj) {
				keep = append(keep, b.removed[i], b.added[i])
				continue
			}
			keep = append(keep, &Change{
				Type: Modified,
				Key:  newObj.Key(),
				Old:  oldObj,
				New:  newObj,
				Deltas: []Delta{{
					Kind: DeltaRenamed,
					Name: newObj.Key().Name,
					Old:  oldObj.Key().Name,
					New:  newObj.Key().Name,
				}},
			})
		}
		keep = append(keep, b.removed[n:]...)
		keep = append(keep, b.added[n:]...)
	}
	return keep, nil
}

// sameDefinition short-circuits identical objects by content hash.
func sameDefinition(a, b ir.Object) bool {
	ha, err := fingerprint.ObjectHash(a)
	if err != nil {
		return false
	}
	hb, err := fingerprint.ObjectHash(b)
	if err != nil {
		return false
	}
	return ha == hb
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
