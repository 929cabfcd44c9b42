package ir

import (
	"strings"
)

// Kind identifies a catalog object variant
type Kind string

const (
	KindSchema     Kind = "SCHEMA"
	KindExtension  Kind = "EXTENSION"
	KindEnum       Kind = "ENUM"
	KindComposite  Kind = "COMPOSITE"
	KindDomain     Kind = "DOMAIN"
	KindSequence   Kind = "SEQUENCE"
	KindTable      Kind = "TABLE"
	KindConstraint Kind = "CONSTRAINT"
	KindIndex      Kind = "INDEX"
	KindFunction   Kind = "FUNCTION"
	KindProcedure  Kind = "PROCEDURE"
	KindTrigger    Kind = "TRIGGER"
	KindView       Kind = "VIEW"
	KindPolicy     Kind = "POLICY"
	KindComment    Kind = "COMMENT"
)

// Kinds lists every kind in a fixed order.
var Kinds = []Kind{
	KindSchema,
	KindExtension,
	KindEnum,
	KindComposite,
	KindDomain,
	KindSequence,
	KindTable,
	KindConstraint,
	KindIndex,
	KindFunction,
	KindProcedure,
	KindTrigger,
	KindView,
	KindPolicy,
	KindComment,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// TableScoped reports whether objects of this kind live inside a table.
func (k Kind) TableScoped() bool {
	switch k {
	case KindConstraint, KindIndex, KindTrigger, KindPolicy:
		return true
	}
	return false
}

// IsType reports whether k is one of the user-defined type kinds.
func (k Kind) IsType() bool {
	return k == KindEnum || k == KindComposite || k == KindDomain
}

// Key identifies an object within a snapshot.
//
// Table is set only for table-scoped kinds. For routines Name carries the
// input argument types, e.g. "add(integer, integer)", so overloads differ.
type Key struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table,omitempty"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
}

// String renders the key as kind:schema.table.name
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Kind))
	b.WriteByte(':')
	if k.Schema != "" {
		b.WriteString(k.Schema)
		b.WriteByte('.')
	}
	if k.Table != "" {
		b.WriteString(k.Table)
		b.WriteByte('.')
	}
	b.WriteString(k.Name)
	return b.String()
}

// Less orders keys by schema, table, name and kind.
func (k Key) Less(other Key) bool {
	if k.Schema != other.Schema {
		return k.Schema < other.Schema
	}
	if k.Table != other.Table {
		return k.Table < other.Table
	}
	if k.Name != other.Name {
		return k.Name < other.Name
	}
	return k.Kind < other.Kind
}

// TableKey returns the key of the table a table-scoped object belongs to.
func (k Key) TableKey() Key {
	return Key{Schema: k.Schema, Name: k.Table, Kind: KindTable}
}
