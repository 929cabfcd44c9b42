package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/util"
)

// compare returns the Modified change between two versions of the same
// object, or nil when they are equivalent.
func compare(oldObj, newObj ir.Object) (*Change, error) {
	if sameDefinition(oldObj, newObj) {
		return nil, nil
	}

	c := &Change{Type: Modified, Key: newObj.Key(), Old: oldObj, New: newObj}
	switch o := oldObj.(type) {
	case *ir.Schema:
		// schemas carry no comparable attributes beyond their name
	case *ir.Extension:
		compareExtension(c, o, newObj.(*ir.Extension))
	case *ir.EnumType:
		compareEnum(c, o, newObj.(*ir.EnumType))
	case *ir.CompositeType:
		compareComposite(c, o, newObj.(*ir.CompositeType))
	case *ir.DomainType:
		compareDomain(c, o, newObj.(*ir.DomainType))
	case *ir.Sequence:
		compareSequence(c, o, newObj.(*ir.Sequence))
	case *ir.Table:
		compareTable(c, o, newObj.(*ir.Table))
	case *ir.Constraint, *ir.Index, *ir.Trigger:
		if d1, d2 := definition(oldObj), definition(newObj); d1 != d2 {
			c.Recreate = true
			c.addAttr("definition", d1, d2)
		}
	case *ir.Routine:
		compareRoutine(c, o, newObj.(*ir.Routine))
	case *ir.View:
		compareView(c, o, newObj.(*ir.View))
	case *ir.Policy:
		comparePolicy(c, o, newObj.(*ir.Policy))
	case *ir.Comment:
		c.addAttr("text", o.Text, newObj.(*ir.Comment).Text)
	default:
		return nil, fmt.Errorf("cannot compare unsupported object %T", oldObj)
	}

	if len(c.Deltas) == 0 && !c.Recreate {
		return nil, nil
	}
	return c, nil
}

func (c *Change) addAttr(name, oldValue, newValue string) {
	if oldValue != newValue {
		c.Deltas = append(c.Deltas, Delta{Kind: DeltaAttribute, Name: name, Old: oldValue, New: newValue})
	}
}

func (c *Change) add(kind DeltaKind, name, oldValue, newValue string) {
	c.Deltas = append(c.Deltas, Delta{Kind: kind, Name: name, Old: oldValue, New: newValue})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func compareExtension(c *Change, o, n *ir.Extension) {
	c.addAttr("schema", o.Schema, n.Schema)
	c.addAttr("version", o.Version, n.Version)
}

// compareEnum allows labels to be added anywhere. Removing a label or
// reordering surviving labels needs the type to be rebuilt.
func compareEnum(c *Change, o, n *ir.EnumType) {
	oldSet := make(map[string]bool, len(o.Labels))
	for _, l := range o.Labels {
		oldSet[l] = true
	}
	newSet := make(map[string]bool, len(n.Labels))
	for _, l := range n.Labels {
		newSet[l] = true
	}

	for _, l := range o.Labels {
		if !newSet[l] {
			c.Deltas = append(c.Deltas, Delta{Kind: DeltaEnumLabelRemoved, Name: l, Old: l})
			c.Recreate = true
			c.HighRisk = true
		}
	}

	var oldSurvivors, newSurvivors []string
	for _, l := range o.Labels {
		if newSet[l] {
			oldSurvivors = append(oldSurvivors, l)
		}
	}
	for _, l := range n.Labels {
		if oldSet[l] {
			newSurvivors = append(newSurvivors, l)
		}
	}
	if strings.Join(oldSurvivors, "\x00") != strings.Join(newSurvivors, "\x00") {
		c.Deltas = append(c.Deltas, Delta{
			Kind: DeltaEnumLabelOrder,
			Name: "labels",
			Old:  strings.Join(o.Labels, ", "),
			New:  strings.Join(n.Labels, ", "),
		})
		c.Recreate = true
		c.HighRisk = true
	}

	c.Deltas = append(c.Deltas, enumAdditions(n.Labels, oldSet)...)
}

// enumAdditions orders label additions so every anchor exists when the
// label is added: a leading run is inserted backwards with BEFORE, labels
// in the middle use AFTER their predecessor, and a trailing run is simply
// appended.
func enumAdditions(labels []string, existing map[string]bool) []Delta {
	firstExisting, lastExisting := -1, -1
	for i, l := range labels {
		if existing[l] {
			if firstExisting < 0 {
				firstExisting = i
			}
			lastExisting = i
		}
	}

	var deltas []Delta
	if firstExisting < 0 {
		for _, l := range labels {
			deltas = append(deltas, Delta{Kind: DeltaEnumLabelAdded, Name: l, New: l})
		}
		return deltas
	}

	for i := firstExisting - 1; i >= 0; i-- {
		deltas = append(deltas, Delta{Kind: DeltaEnumLabelAdded, Name: labels[i], New: labels[i], Before: labels[i+1]})
	}
	for i := firstExisting + 1; i <= lastExisting; i++ {
		if !existing[labels[i]] {
			deltas = append(deltas, Delta{Kind: DeltaEnumLabelAdded, Name: labels[i], New: labels[i], After: labels[i-1]})
		}
	}
	for i := lastExisting + 1; i < len(labels); i++ {
		deltas = append(deltas, Delta{Kind: DeltaEnumLabelAdded, Name: labels[i], New: labels[i]})
	}
	return deltas
}

func compareComposite(c *Change, o, n *ir.CompositeType) {
	oldFields := make(map[string]*ir.CompositeField, len(o.Fields))
	for _, f := range o.Fields {
		oldFields[f.Name] = f
	}
	newFields := make(map[string]*ir.CompositeField, len(n.Fields))
	for _, f := range n.Fields {
		newFields[f.Name] = f
	}

	for _, f := range o.Fields {
		if newFields[f.Name] == nil {
			c.add(DeltaFieldDropped, f.Name, f.DataType, "")
		}
	}
	for _, f := range n.Fields {
		old := oldFields[f.Name]
		switch {
		case old == nil:
			c.add(DeltaFieldAdded, f.Name, "", f.DataType)
		case old.DataType != f.DataType:
			c.add(DeltaFieldType, f.Name, old.DataType, f.DataType)
		}
	}

	oldOrder := survivingOrder(fieldNames(o.Fields), newFields)
	newOrder := survivingOrder(fieldNames(n.Fields), oldFields)
	if oldOrder != newOrder {
		c.add(DeltaFieldOrder, "fields", oldOrder, newOrder)
	}
}

func fieldNames(fields []*ir.CompositeField) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

// survivingOrder joins the names that also exist in other.
func survivingOrder[T any](names []string, other map[string]T) string {
	var kept []string
	for _, name := range names {
		if _, ok := other[name]; ok {
			kept = append(kept, name)
		}
	}
	return strings.Join(kept, ", ")
}

func compareDomain(c *Change, o, n *ir.DomainType) {
	if o.BaseType != n.BaseType || o.Collation != n.Collation {
		c.addAttr("base_type", o.BaseType, n.BaseType)
		c.addAttr("collation", o.Collation, n.Collation)
		c.Recreate = true
		c.HighRisk = true
	}
	c.addAttr("default", deref(o.Default), deref(n.Default))
	c.addAttr("not_null", strconv.FormatBool(o.NotNull), strconv.FormatBool(n.NotNull))

	oldChecks := make(map[string]string, len(o.Constraints))
	for _, dc := range o.Constraints {
		oldChecks[dc.Name] = dc.Expression
	}
	newChecks := make(map[string]string, len(n.Constraints))
	for _, dc := range n.Constraints {
		newChecks[dc.Name] = dc.Expression
	}
	for _, dc := range o.Constraints {
		if expr, ok := newChecks[dc.Name]; !ok || expr != dc.Expression {
			c.add(DeltaCheckDropped, dc.Name, dc.Expression, "")
		}
	}
	for _, dc := range n.Constraints {
		if expr, ok := oldChecks[dc.Name]; !ok || expr != dc.Expression {
			c.add(DeltaCheckAdded, dc.Name, "", dc.Expression)
		}
	}
}

func compareSequence(c *Change, o, n *ir.Sequence) {
	c.addAttr("data_type", o.DataType, n.DataType)
	c.addAttr("start", strconv.FormatInt(o.Start, 10), strconv.FormatInt(n.Start, 10))
	c.addAttr("increment", strconv.FormatInt(o.Increment, 10), strconv.FormatInt(n.Increment, 10))
	c.addAttr("min_value", optInt(o.MinValue), optInt(n.MinValue))
	c.addAttr("max_value", optInt(o.MaxValue), optInt(n.MaxValue))
	c.addAttr("cache", strconv.FormatInt(o.Cache, 10), strconv.FormatInt(n.Cache, 10))
	c.addAttr("cycle", strconv.FormatBool(o.Cycle), strconv.FormatBool(n.Cycle))
	c.addAttr("owned_by", ownerString(o.OwnedBy), ownerString(n.OwnedBy))
}

func ownerString(ref *ir.ColumnRef) string {
	if ref == nil {
		return ""
	}
	return ref.Schema + "." + ref.Table + "." + ref.Column
}

func compareTable(c *Change, o, n *ir.Table) {
	oldCols := make(map[string]*ir.Column, len(o.Columns))
	var oldNames []string
	for _, col := range o.Columns {
		oldCols[col.Name] = col
		oldNames = append(oldNames, col.Name)
	}
	newCols := make(map[string]*ir.Column, len(n.Columns))
	var newNames []string
	for _, col := range n.Columns {
		newCols[col.Name] = col
		newNames = append(newNames, col.Name)
	}

	for _, col := range o.Columns {
		if newCols[col.Name] == nil {
			c.add(DeltaColumnDropped, col.Name, col.DataType, "")
			c.HighRisk = true
		}
	}
	for _, col := range n.Columns {
		old := oldCols[col.Name]
		if old == nil {
			c.add(DeltaColumnAdded, col.Name, "", col.DataType)
			continue
		}
		compareColumn(c, old, col)
	}

	if oldOrder, newOrder := survivingOrder(oldNames, newCols), survivingOrder(newNames, oldCols); oldOrder != newOrder {
		c.add(DeltaColumnOrder, "columns", oldOrder, newOrder)
	}

	c.addAttr("rls_enabled", strconv.FormatBool(o.RLSEnabled), strconv.FormatBool(n.RLSEnabled))
	c.addAttr("rls_forced", strconv.FormatBool(o.RLSForced), strconv.FormatBool(n.RLSForced))
}

func compareColumn(c *Change, o, n *ir.Column) {
	if o.DataType != n.DataType {
		c.add(DeltaColumnType, n.Name, o.DataType, n.DataType)
		c.HighRisk = true
	}
	if o.Collation != n.Collation {
		c.add(DeltaColumnCollation, n.Name, o.Collation, n.Collation)
	}
	if deref(o.Default) != deref(n.Default) {
		c.add(DeltaColumnDefault, n.Name, deref(o.Default), deref(n.Default))
	}
	if o.NotNull != n.NotNull {
		c.add(DeltaColumnNullable, n.Name, nullability(o.NotNull), nullability(n.NotNull))
	}
	if identityString(o.Identity) != identityString(n.Identity) {
		c.add(DeltaColumnIdentity, n.Name, identityString(o.Identity), identityString(n.Identity))
	}
	if deref(o.Generated) != deref(n.Generated) {
		c.add(DeltaColumnGenerated, n.Name, deref(o.Generated), deref(n.Generated))
	}
}

func nullability(notNull bool) string {
	if notNull {
		return "NOT NULL"
	}
	return "NULL"
}

func identityString(id *ir.Identity) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("GENERATED %s AS IDENTITY (start=%s increment=%s min=%s max=%s cache=%s cycle=%t)",
		id.Generation, optInt(id.Start), optInt(id.Increment), optInt(id.MinValue), optInt(id.MaxValue), optInt(id.Cache), id.Cycle)
}

// compareRoutine treats changes to the call interface as a rebuild; the
// rest can be applied with CREATE OR REPLACE.
func compareRoutine(c *Change, o, n *ir.Routine) {
	if o.ReturnType != n.ReturnType {
		c.addAttr("return_type", o.ReturnType, n.ReturnType)
		c.Recreate = true
	}
	if p1, p2 := parameterString(o.Parameters), parameterString(n.Parameters); p1 != p2 {
		c.addAttr("parameters", p1, p2)
		c.Recreate = true
	}
	c.addAttr("language", o.Language, n.Language)
	c.addAttr("body", o.Body, n.Body)
	c.addAttr("volatility", o.Volatility, n.Volatility)
	c.addAttr("strict", strconv.FormatBool(o.Strict), strconv.FormatBool(n.Strict))
	c.addAttr("security_definer", strconv.FormatBool(o.SecurityDefiner), strconv.FormatBool(n.SecurityDefiner))
}

func parameterString(params []*ir.Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		s := p.Mode + " " + p.Name + " " + p.DataType
		if p.Default != nil {
			s += " DEFAULT " + *p.Default
		}
		parts = append(parts, strings.TrimSpace(s))
	}
	return strings.Join(parts, ", ")
}

// compareView redefines in place when the old output columns are a prefix
// of the new ones; anything else needs the view dropped first.
func compareView(c *Change, o, n *ir.View) {
	if normalizeSQL(o.Definition) != normalizeSQL(n.Definition) {
		c.addAttr("definition", o.Definition, n.Definition)
	}
	if strings.Join(o.Columns, ", ") != strings.Join(n.Columns, ", ") {
		c.addAttr("columns", strings.Join(o.Columns, ", "), strings.Join(n.Columns, ", "))
		if len(o.Columns) > len(n.Columns) {
			c.Recreate = true
			return
		}
		for i, col := range o.Columns {
			if n.Columns[i] != col {
				c.Recreate = true
				return
			}
		}
	}
}

// normalizeSQL collapses whitespace and trailing semicolons for comparison.
func normalizeSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, "; ")
}

func comparePolicy(c *Change, o, n *ir.Policy) {
	if o.Command != n.Command || o.Permissive != n.Permissive {
		c.addAttr("command", o.Command, n.Command)
		c.addAttr("permissive", strconv.FormatBool(o.Permissive), strconv.FormatBool(n.Permissive))
		c.Recreate = true
	}
	c.addAttr("roles", strings.Join(o.Roles, ", "), strings.Join(n.Roles, ", "))
	c.addAttr("using", o.Using, n.Using)
	c.addAttr("with_check", o.WithCheck, n.WithCheck)
}

// signature is the structural identity used to pair constraints and
// indexes whose names differ.
func signature(obj ir.Object) string {
	switch o := obj.(type) {
	case *ir.Constraint:
		return constraintBody(o, false)
	case *ir.Index:
		unique := ""
		if o.Unique {
			unique = "UNIQUE "
		}
		return unique + "(" + indexKeys(o.Keys) + ")"
	}
	return obj.Key().String()
}

// definition is the full comparable rendering of a constraint, index or
// trigger, excluding its name.
func definition(obj ir.Object) string {
	switch o := obj.(type) {
	case *ir.Constraint:
		return constraintBody(o, true)
	case *ir.Index:
		method := o.Method
		if method == "" {
			method = "btree"
		}
		def := signature(o) + " USING " + method
		if o.Predicate != "" {
			def += " WHERE " + normalizeSQL(o.Predicate)
		}
		return def
	case *ir.Trigger:
		def := o.Timing + " " + strings.Join(o.Events, " OR ")
		if len(o.UpdateColumns) > 0 {
			def += " OF " + strings.Join(o.UpdateColumns, ", ")
		}
		def += " FOR EACH " + o.Level
		if o.When != "" {
			def += " WHEN (" + normalizeSQL(o.When) + ")"
		}
		def += " EXECUTE FUNCTION " + o.FunctionSchema + "." + o.FunctionName + "(" + strings.Join(o.Arguments, ", ") + ")"
		return def
	}
	return obj.Key().String()
}

func constraintBody(c *ir.Constraint, full bool) string {
	var b strings.Builder
	b.WriteString(string(c.Type))
	switch c.Type {
	case ir.ConstraintTypeCheck:
		b.WriteString(" (" + normalizeSQL(c.Expression) + ")")
	default:
		b.WriteString(" (" + strings.Join(c.Columns, ", ") + ")")
	}
	if c.Type == ir.ConstraintTypeForeignKey {
		ref := c.ReferencedKey()
		b.WriteString(" REFERENCES " + util.QualifiedName(ref.Schema, ref.Name))
		b.WriteString(" (" + strings.Join(c.ReferencedColumns, ", ") + ")")
		if full {
			b.WriteString(" ON DELETE " + referentialAction(c.OnDelete))
			b.WriteString(" ON UPDATE " + referentialAction(c.OnUpdate))
		}
	}
	if full && c.Deferrable {
		b.WriteString(" DEFERRABLE")
		if c.InitiallyDeferred {
			b.WriteString(" INITIALLY DEFERRED")
		}
	}
	return b.String()
}

func referentialAction(action string) string {
	if action == "" {
		return "NO ACTION"
	}
	return strings.ToUpper(action)
}

func indexKeys(keys []*ir.IndexKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := k.Column
		if k.Expression != "" {
			s = k.Expression
		}
		if k.Descending {
			s += " DESC"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
