package diff

import (
	"errors"
	"fmt"

	"github.com/pgschema/pgdiff/internal/ir"
)

// ChangeType classifies a change between two snapshots
type ChangeType string

const (
	Added    ChangeType = "ADDED"
	Removed  ChangeType = "REMOVED"
	Modified ChangeType = "MODIFIED"
)

// DeltaKind names one field-level difference inside a Modified change
type DeltaKind string

const (
	// DeltaAttribute is a scalar attribute change; Name is the attribute.
	DeltaAttribute DeltaKind = "attribute"
	// DeltaRenamed is a constraint or index matched by structure under a new name.
	DeltaRenamed DeltaKind = "renamed"

	DeltaEnumLabelAdded   DeltaKind = "enum_label_added"
	DeltaEnumLabelRemoved DeltaKind = "enum_label_removed"
	DeltaEnumLabelOrder   DeltaKind = "enum_label_order"

	DeltaColumnAdded     DeltaKind = "column_added"
	DeltaColumnDropped   DeltaKind = "column_dropped"
	DeltaColumnType      DeltaKind = "column_type"
	DeltaColumnNullable  DeltaKind = "column_nullable"
	DeltaColumnDefault   DeltaKind = "column_default"
	DeltaColumnCollation DeltaKind = "column_collation"
	DeltaColumnIdentity  DeltaKind = "column_identity"
	DeltaColumnGenerated DeltaKind = "column_generated"
	DeltaColumnOrder     DeltaKind = "column_order"

	DeltaFieldAdded   DeltaKind = "field_added"
	DeltaFieldDropped DeltaKind = "field_dropped"
	DeltaFieldType    DeltaKind = "field_type"
	DeltaFieldOrder   DeltaKind = "field_order"

	DeltaCheckAdded   DeltaKind = "check_added"
	DeltaCheckDropped DeltaKind = "check_dropped"
)

// Delta is one field-level difference. Before and After anchor an added
// enum label; at most one of them is set.
type Delta struct {
	Kind   DeltaKind
	Name   string
	Old    string
	New    string
	Before string
	After  string
}

// Informational reports whether the delta needs no statement.
func (d Delta) Informational() bool {
	return d.Kind == DeltaColumnOrder || d.Kind == DeltaFieldOrder
}

func (d Delta) String() string {
	switch d.Kind {
	case DeltaColumnAdded, DeltaFieldAdded, DeltaCheckAdded, DeltaEnumLabelAdded,
		DeltaColumnDropped, DeltaFieldDropped, DeltaCheckDropped, DeltaEnumLabelRemoved:
		return fmt.Sprintf("%s %s", d.Kind, d.Name)
	}
	return fmt.Sprintf("%s %s: %q -> %q", d.Kind, d.Name, d.Old, d.New)
}

// Change is one added, removed or modified object. For a rename Key is the
// new identity and Old.Key() the previous one.
type Change struct {
	Type   ChangeType
	Key    ir.Key
	Old    ir.Object
	New    ir.Object
	Deltas []Delta

	// Recreate means the modification cannot be applied in place.
	Recreate bool
	// HighRisk marks changes that rewrite or may lose data.
	HighRisk bool
}

// Object returns the new definition, or the old one for removals.
func (c *Change) Object() ir.Object {
	if c.New != nil {
		return c.New
	}
	return c.Old
}

// OldKey returns the identity of the object in the source snapshot.
func (c *Change) OldKey() ir.Key {
	if c.Old != nil {
		return c.Old.Key()
	}
	return c.Key
}

// Informational reports whether every delta of a modification is
// informational only.
func (c *Change) Informational() bool {
	if c.Type != Modified || c.Recreate {
		return false
	}
	for _, d := range c.Deltas {
		if !d.Informational() {
			return false
		}
	}
	return true
}

// HasDelta reports whether the change carries a delta of the given kind.
func (c *Change) HasDelta(kind DeltaKind) bool {
	for _, d := range c.Deltas {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// ChangeSet is the ordered result of comparing two snapshots.
type ChangeSet struct {
	From    *ir.Snapshot
	To      *ir.Snapshot
	Changes []*Change
}

// Empty reports whether the snapshots are structurally identical.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

// Find returns the change for key, or nil.
func (cs *ChangeSet) Find(key ir.Key) *Change {
	for _, c := range cs.Changes {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// Count returns the number of changes of type t.
func (cs *ChangeSet) Count(t ChangeType) int {
	n := 0
	for _, c := range cs.Changes {
		if c.Type == t {
			n++
		}
	}
	return n
}

// ErrInconsistentSnapshot matches any *Error.
var ErrInconsistentSnapshot = errors.New("inconsistent snapshot")

// Error reports a snapshot that cannot be diffed.
type Error struct {
	Side   string // "from" or "to"
	Key    ir.Key
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("inconsistent %s snapshot: %s: %s", e.Side, e.Key, e.Reason)
}

func (e *Error) Is(target error) bool {
	return target == ErrInconsistentSnapshot
}
