package ir

import (
	"fmt"
	"strings"
)

// Object is implemented by every catalog object variant. The set of variants
// is closed: only types in this package satisfy it.
type Object interface {
	Key() Key
	isObject()
}

// Schema represents a database schema (namespace)
type Schema struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

// Extension represents an installed extension
type Extension struct {
	Name    string `json:"name"`
	Schema  string `json:"schema"`
	Version string `json:"version,omitempty"`
}

// EnumType represents an enum with its labels in sort order
type EnumType struct {
	Schema string   `json:"schema"`
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// CompositeField is one attribute of a composite type
type CompositeField struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Position int    `json:"position"`
}

// CompositeType represents a composite (row) type
type CompositeType struct {
	Schema string            `json:"schema"`
	Name   string            `json:"name"`
	Fields []*CompositeField `json:"fields"`
}

// DomainConstraint is a named CHECK on a domain
type DomainConstraint struct {
	Name       string `json:"name"`
	Expression string `json:"expression"` // without the CHECK keyword
}

// DomainType represents a domain over a base type
type DomainType struct {
	Schema      string              `json:"schema"`
	Name        string              `json:"name"`
	BaseType    string              `json:"base_type"`
	Default     *string             `json:"default,omitempty"`
	NotNull     bool                `json:"not_null,omitempty"`
	Collation   string              `json:"collation,omitempty"`
	Constraints []*DomainConstraint `json:"constraints,omitempty"`
}

// ColumnRef names a column of a table
type ColumnRef struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Sequence represents a standalone sequence
type Sequence struct {
	Schema    string     `json:"schema"`
	Name      string     `json:"name"`
	DataType  string     `json:"data_type"`
	Start     int64      `json:"start"`
	Increment int64      `json:"increment"`
	MinValue  *int64     `json:"min_value,omitempty"`
	MaxValue  *int64     `json:"max_value,omitempty"`
	Cache     int64      `json:"cache"`
	Cycle     bool       `json:"cycle,omitempty"`
	OwnedBy   *ColumnRef `json:"owned_by,omitempty"`
}

// Identity describes an identity column
type Identity struct {
	Generation string `json:"generation"` // ALWAYS or BY DEFAULT
	Start      *int64 `json:"start,omitempty"`
	Increment  *int64 `json:"increment,omitempty"`
	MinValue   *int64 `json:"min_value,omitempty"`
	MaxValue   *int64 `json:"max_value,omitempty"`
	Cache      *int64 `json:"cache,omitempty"`
	Cycle      bool   `json:"cycle,omitempty"`
}

// Column represents a table column
type Column struct {
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	DataType  string    `json:"data_type"` // as rendered by format_type, e.g. character varying(50)
	Collation string    `json:"collation,omitempty"`
	NotNull   bool      `json:"not_null,omitempty"`
	Default   *string   `json:"default,omitempty"`
	Identity  *Identity `json:"identity,omitempty"`
	Generated *string   `json:"generated,omitempty"` // GENERATED ALWAYS AS (...) STORED expression
}

// Table represents a base table. Constraints, indexes, triggers and
// policies are separate objects keyed by the table.
type Table struct {
	Schema     string    `json:"schema"`
	Name       string    `json:"name"`
	Columns    []*Column `json:"columns"`
	RLSEnabled bool      `json:"rls_enabled,omitempty"`
	RLSForced  bool      `json:"rls_forced,omitempty"`
}

// Column looks up a column by name.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ConstraintType represents the type of a table constraint
type ConstraintType string

const (
	ConstraintTypePrimaryKey ConstraintType = "PRIMARY KEY"
	ConstraintTypeUnique     ConstraintType = "UNIQUE"
	ConstraintTypeForeignKey ConstraintType = "FOREIGN KEY"
	ConstraintTypeCheck      ConstraintType = "CHECK"
)

// Constraint represents a table constraint
type Constraint struct {
	Schema            string         `json:"schema"`
	Table             string         `json:"table"`
	Name              string         `json:"name"`
	Type              ConstraintType `json:"type"`
	Columns           []string       `json:"columns,omitempty"`
	Expression        string         `json:"expression,omitempty"` // CHECK body without the CHECK keyword
	ReferencedSchema  string         `json:"referenced_schema,omitempty"`
	ReferencedTable   string         `json:"referenced_table,omitempty"`
	ReferencedColumns []string       `json:"referenced_columns,omitempty"`
	OnDelete          string         `json:"on_delete,omitempty"`
	OnUpdate          string         `json:"on_update,omitempty"`
	Deferrable        bool           `json:"deferrable,omitempty"`
	InitiallyDeferred bool           `json:"initially_deferred,omitempty"`
}

// ReferencedKey returns the key of the table a foreign key points at.
func (c *Constraint) ReferencedKey() Key {
	schema := c.ReferencedSchema
	if schema == "" {
		schema = c.Schema
	}
	return Key{Schema: schema, Name: c.ReferencedTable, Kind: KindTable}
}

// IndexKey is one key item of an index: a column or an expression
type IndexKey struct {
	Column     string `json:"column,omitempty"`
	Expression string `json:"expression,omitempty"`
	Descending bool   `json:"descending,omitempty"`
}

// Index represents a standalone (non-constraint) index
type Index struct {
	Schema    string      `json:"schema"`
	Table     string      `json:"table"`
	Name      string      `json:"name"`
	Keys      []*IndexKey `json:"keys"`
	Unique    bool        `json:"unique,omitempty"`
	Method    string      `json:"method,omitempty"`
	Predicate string      `json:"predicate,omitempty"`
}

// RoutineKind distinguishes functions from procedures
type RoutineKind string

const (
	RoutineFunction  RoutineKind = "FUNCTION"
	RoutineProcedure RoutineKind = "PROCEDURE"
)

// Parameter is one routine argument
type Parameter struct {
	Name     string  `json:"name,omitempty"`
	DataType string  `json:"data_type"`
	Mode     string  `json:"mode,omitempty"` // IN, OUT, INOUT, VARIADIC, TABLE
	Default  *string `json:"default,omitempty"`
}

// IsInput reports whether the parameter belongs to the call signature.
func (p *Parameter) IsInput() bool {
	switch p.Mode {
	case "", "IN", "INOUT", "VARIADIC":
		return true
	}
	return false
}

// Routine represents a function or a procedure
type Routine struct {
	Schema          string       `json:"schema"`
	Name            string       `json:"name"`
	Kind            RoutineKind  `json:"kind"`
	Parameters      []*Parameter `json:"parameters,omitempty"`
	ReturnType      string       `json:"return_type,omitempty"` // empty for procedures
	Language        string       `json:"language"`
	Body            string       `json:"body"`
	Volatility      string       `json:"volatility,omitempty"` // IMMUTABLE, STABLE, VOLATILE
	Strict          bool         `json:"strict,omitempty"`
	SecurityDefiner bool         `json:"security_definer,omitempty"`
}

// Signature returns name(type, type) over the input parameters.
func (r *Routine) Signature() string {
	return r.Name + "(" + r.IdentityArguments() + ")"
}

// IdentityArguments returns the comma separated input parameter types.
func (r *Routine) IdentityArguments() string {
	var types []string
	for _, p := range r.Parameters {
		if p.IsInput() {
			if p.Mode == "VARIADIC" {
				types = append(types, "VARIADIC "+p.DataType)
				continue
			}
			types = append(types, p.DataType)
		}
	}
	return strings.Join(types, ", ")
}

// Trigger represents a table trigger
type Trigger struct {
	Schema         string   `json:"schema"`
	Table          string   `json:"table"`
	Name           string   `json:"name"`
	Timing         string   `json:"timing"`           // BEFORE, AFTER, INSTEAD OF
	Events         []string `json:"events"`           // INSERT, UPDATE, DELETE, TRUNCATE
	UpdateColumns  []string `json:"update_columns,omitempty"`
	Level          string   `json:"level"` // ROW or STATEMENT
	FunctionSchema string   `json:"function_schema"`
	FunctionName   string   `json:"function_name"`
	Arguments      []string `json:"arguments,omitempty"`
	When           string   `json:"when,omitempty"`
}

// FunctionKey returns the key of the trigger function. Trigger functions
// take no declared arguments.
func (t *Trigger) FunctionKey() Key {
	return Key{Schema: t.FunctionSchema, Name: t.FunctionName + "()", Kind: KindFunction}
}

// View represents a (non-materialized) view
type View struct {
	Schema     string   `json:"schema"`
	Name       string   `json:"name"`
	Definition string   `json:"definition"`
	Columns    []string `json:"columns,omitempty"`
}

// Policy represents a row-level security policy
type Policy struct {
	Schema     string   `json:"schema"`
	Table      string   `json:"table"`
	Name       string   `json:"name"`
	Command    string   `json:"command"` // ALL, SELECT, INSERT, UPDATE, DELETE
	Permissive bool     `json:"permissive"`
	Roles      []string `json:"roles,omitempty"`
	Using      string   `json:"using,omitempty"`
	WithCheck  string   `json:"with_check,omitempty"`
}

// Comment is the description attached to an object or to a table column
type Comment struct {
	Target Key    `json:"target"`
	Column string `json:"column,omitempty"`
	Text   string `json:"text"`
}

func (*Schema) isObject()        {}
func (*Extension) isObject()     {}
func (*EnumType) isObject()      {}
func (*CompositeType) isObject() {}
func (*DomainType) isObject()    {}
func (*Sequence) isObject()      {}
func (*Table) isObject()         {}
func (*Constraint) isObject()    {}
func (*Index) isObject()         {}
func (*Routine) isObject()       {}
func (*Trigger) isObject()       {}
func (*View) isObject()          {}
func (*Policy) isObject()        {}
func (*Comment) isObject()       {}

func (s *Schema) Key() Key { return Key{Name: s.Name, Kind: KindSchema} }

// Extensions are database-wide, so their key carries no schema.
func (e *Extension) Key() Key { return Key{Name: e.Name, Kind: KindExtension} }

func (e *EnumType) Key() Key      { return Key{Schema: e.Schema, Name: e.Name, Kind: KindEnum} }
func (c *CompositeType) Key() Key { return Key{Schema: c.Schema, Name: c.Name, Kind: KindComposite} }
func (d *DomainType) Key() Key    { return Key{Schema: d.Schema, Name: d.Name, Kind: KindDomain} }
func (s *Sequence) Key() Key      { return Key{Schema: s.Schema, Name: s.Name, Kind: KindSequence} }
func (t *Table) Key() Key         { return Key{Schema: t.Schema, Name: t.Name, Kind: KindTable} }
func (v *View) Key() Key          { return Key{Schema: v.Schema, Name: v.Name, Kind: KindView} }

func (c *Constraint) Key() Key {
	return Key{Schema: c.Schema, Table: c.Table, Name: c.Name, Kind: KindConstraint}
}

func (i *Index) Key() Key {
	return Key{Schema: i.Schema, Table: i.Table, Name: i.Name, Kind: KindIndex}
}

func (t *Trigger) Key() Key {
	return Key{Schema: t.Schema, Table: t.Table, Name: t.Name, Kind: KindTrigger}
}

func (p *Policy) Key() Key {
	return Key{Schema: p.Schema, Table: p.Table, Name: p.Name, Kind: KindPolicy}
}

func (r *Routine) Key() Key {
	kind := KindFunction
	if r.Kind == RoutineProcedure {
		kind = KindProcedure
	}
	return Key{Schema: r.Schema, Name: r.Signature(), Kind: kind}
}

// Comment keys embed the target so a snapshot holds at most one comment per
// object or column.
func (c *Comment) Key() Key {
	name := c.Target.String()
	if c.Column != "" {
		name += "#" + c.Column
	}
	return Key{Schema: c.Target.Schema, Table: c.Target.Table, Name: name, Kind: KindComment}
}

// Describe renders a short human readable label for an object, used in
// notes and log output.
func Describe(o Object) string {
	k := o.Key()
	switch k.Kind {
	case KindComment:
		c := o.(*Comment)
		if c.Column != "" {
			return fmt.Sprintf("comment on column %s.%s.%s", c.Target.Schema, c.Target.Name, c.Column)
		}
		return "comment on " + strings.ToLower(string(c.Target.Kind)) + " " + qualifiedLabel(c.Target)
	default:
		return strings.ToLower(string(k.Kind)) + " " + qualifiedLabel(k)
	}
}

func qualifiedLabel(k Key) string {
	var parts []string
	for _, p := range []string{k.Schema, k.Table, k.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}
