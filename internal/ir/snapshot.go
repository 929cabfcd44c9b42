package ir

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Metadata describes where a snapshot came from
type Metadata struct {
	DatabaseVersion string    `json:"database_version,omitempty"`
	Database        string    `json:"database,omitempty"`
	SchemaFilter    string    `json:"schema_filter,omitempty"` // LIKE pattern used when the snapshot was taken
	Source          string    `json:"source,omitempty"`        // "inspect" or "dump"
	CreatedAt       time.Time `json:"created_at"`
}

// DuplicateObjectError is returned when two objects share an identity.
type DuplicateObjectError struct {
	Key Key
}

func (e *DuplicateObjectError) Error() string {
	return fmt.Sprintf("duplicate object %s", e.Key)
}

// Snapshot is an immutable set of catalog objects with a per-kind index.
// Objects handed out by a snapshot must not be modified.
type Snapshot struct {
	Metadata Metadata

	objects map[Key]Object
	byKind  map[Kind][]Key
	sorted  []Key
}

// Builder accumulates objects for a Snapshot.
type Builder struct {
	metadata Metadata
	objects  map[Key]Object
}

// NewBuilder creates a builder for a snapshot with the given metadata.
func NewBuilder(metadata Metadata) *Builder {
	return &Builder{
		metadata: metadata,
		objects:  make(map[Key]Object),
	}
}

// Add registers objects, rejecting an identity that is already present.
func (b *Builder) Add(objects ...Object) error {
	for _, obj := range objects {
		if obj == nil {
			return fmt.Errorf("nil object")
		}
		key := obj.Key()
		if !key.Kind.Valid() {
			return fmt.Errorf("object %s has unknown kind %q", key, key.Kind)
		}
		if _, exists := b.objects[key]; exists {
			return &DuplicateObjectError{Key: key}
		}
		emptyToNil(reflect.ValueOf(obj))
		b.objects[key] = obj
	}
	return nil
}

// emptyToNil replaces empty slices reachable from v with nil. Snapshots
// then carry a single form of "no elements", the one a dump decodes to.
func emptyToNil(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			emptyToNil(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				emptyToNil(f)
			}
		}
	case reflect.Slice:
		if v.IsNil() {
			return
		}
		if v.Len() == 0 {
			if v.CanSet() {
				v.Set(reflect.Zero(v.Type()))
			}
			return
		}
		for i := 0; i < v.Len(); i++ {
			emptyToNil(v.Index(i))
		}
	}
}

// Build freezes the builder into a Snapshot. The builder must not be used
// afterwards.
func (b *Builder) Build() *Snapshot {
	s := &Snapshot{
		Metadata: b.metadata,
		objects:  b.objects,
		byKind:   make(map[Kind][]Key),
		sorted:   make([]Key, 0, len(b.objects)),
	}
	for key := range b.objects {
		s.sorted = append(s.sorted, key)
	}
	sort.Slice(s.sorted, func(i, j int) bool { return s.sorted[i].Less(s.sorted[j]) })
	for _, key := range s.sorted {
		s.byKind[key.Kind] = append(s.byKind[key.Kind], key)
	}
	b.objects = nil
	return s
}

// NewSnapshot builds a snapshot from a list of objects.
func NewSnapshot(metadata Metadata, objects ...Object) (*Snapshot, error) {
	b := NewBuilder(metadata)
	if err := b.Add(objects...); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Len returns the number of objects.
func (s *Snapshot) Len() int {
	return len(s.sorted)
}

// Get looks up an object by key.
func (s *Snapshot) Get(key Key) (Object, bool) {
	obj, ok := s.objects[key]
	return obj, ok
}

// Has reports whether key is present.
func (s *Snapshot) Has(key Key) bool {
	_, ok := s.objects[key]
	return ok
}

// Keys returns all keys in sorted order.
func (s *Snapshot) Keys() []Key {
	return append([]Key(nil), s.sorted...)
}

// KeysOf returns the sorted keys of one kind.
func (s *Snapshot) KeysOf(kind Kind) []Key {
	return append([]Key(nil), s.byKind[kind]...)
}

// Objects returns all objects in key order.
func (s *Snapshot) Objects() []Object {
	out := make([]Object, 0, len(s.sorted))
	for _, key := range s.sorted {
		out = append(out, s.objects[key])
	}
	return out
}

// ObjectsOf returns the objects of one kind in key order.
func (s *Snapshot) ObjectsOf(kind Kind) []Object {
	keys := s.byKind[kind]
	out := make([]Object, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.objects[key])
	}
	return out
}

// Table returns the table with the given name, if present.
func (s *Snapshot) Table(schema, name string) *Table {
	if obj, ok := s.objects[Key{Schema: schema, Name: name, Kind: KindTable}]; ok {
		return obj.(*Table)
	}
	return nil
}

// Tables returns all tables in key order.
func (s *Snapshot) Tables() []*Table {
	var out []*Table
	for _, obj := range s.ObjectsOf(KindTable) {
		out = append(out, obj.(*Table))
	}
	return out
}

// TableObjects returns the table-scoped objects of one kind that belong to
// the given table.
func (s *Snapshot) TableObjects(table Key, kind Kind) []Object {
	var out []Object
	for _, key := range s.byKind[kind] {
		if key.Schema == table.Schema && key.Table == table.Name {
			out = append(out, s.objects[key])
		}
	}
	return out
}

// Constraints returns the constraints of a table in key order.
func (s *Snapshot) Constraints(table Key) []*Constraint {
	var out []*Constraint
	for _, obj := range s.TableObjects(table, KindConstraint) {
		out = append(out, obj.(*Constraint))
	}
	return out
}

// CommentOn returns the comment attached to target (and column), if any.
func (s *Snapshot) CommentOn(target Key, column string) *Comment {
	lookup := &Comment{Target: target, Column: column}
	if obj, ok := s.objects[lookup.Key()]; ok {
		return obj.(*Comment)
	}
	return nil
}
