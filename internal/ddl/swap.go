package ddl

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/ir"
)

// swap rebuilds an enum or domain that cannot be altered in place: the old
// type is renamed aside, the new one is created, composite attributes and
// columns are moved to it and the old type is dropped. Dependent views and
// routines were already dropped by the plan and are recreated afterwards.
// Domains over the type and composites stored in columns cannot be moved
// and fail the step.
func (g *generator) swap(c *diff.Change) error {
	keyword := "TYPE"
	switch c.New.(type) {
	case *ir.EnumType:
	case *ir.DomainType:
		keyword = "DOMAIN"
	default:
		return fmt.Errorf("%w: rebuild of %s by renaming", ErrUnsupported, c.Key)
	}
	oldKey := c.OldKey()
	aside := g.asideName(oldKey)
	cs := g.plan.ChangeSet

	composites, err := g.swapDependents(c)
	if err != nil {
		return err
	}

	g.emit(fmt.Sprintf("ALTER %s %s RENAME TO %s", keyword, g.qualified(oldKey.Schema, oldKey.Name), g.ident(aside)))
	if err := g.createObject(c.New); err != nil {
		return err
	}

	for _, comp := range composites {
		g.moveAttributes(comp, c)
	}
	for _, tbl := range cs.To.Tables() {
		old := cs.From.Table(tbl.Schema, tbl.Name)
		if old == nil {
			continue
		}
		name := g.qualified(tbl.Schema, tbl.Name)
		for _, col := range tbl.Columns {
			oldCol := old.Column(col.Name)
			if oldCol == nil || !usesType(col.DataType, tbl.Schema, c.Key) || !usesType(oldCol.DataType, old.Schema, oldKey) {
				continue
			}
			column := g.ident(col.Name)
			if oldCol.Default != nil {
				g.emit(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", name, column))
			}
			g.emit(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::text::%s",
				name, column, col.DataType, column, col.DataType))
			if col.Default != nil {
				g.emit(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", name, column, *col.Default))
			}
		}
	}

	g.emit(fmt.Sprintf("DROP %s %s", keyword, g.qualified(oldKey.Schema, aside)))
	g.res.Notes = append(g.res.Notes, fmt.Sprintf("%s is rebuilt; values that no longer fit make the column conversion fail", ir.Describe(c.New)))
	return nil
}

// swapDependents returns the composites whose attributes follow the type to
// its replacement. Domains based on the type and composites that are
// stored in table columns would keep the renamed type alive and are
// reported as unsupported.
func (g *generator) swapDependents(c *diff.Change) ([]*ir.CompositeType, error) {
	cs := g.plan.ChangeSet
	oldKey := c.OldKey()

	for _, obj := range cs.From.ObjectsOf(ir.KindDomain) {
		d := obj.(*ir.DomainType)
		if d.Key() != oldKey && usesType(d.BaseType, d.Schema, oldKey) && cs.To.Has(d.Key()) {
			return nil, fmt.Errorf("%w: rebuild of %s while domain %s is based on it", ErrUnsupported, oldKey, d.Key())
		}
	}

	var composites []*ir.CompositeType
	for _, obj := range cs.From.ObjectsOf(ir.KindComposite) {
		comp := obj.(*ir.CompositeType)
		if !cs.To.Has(comp.Key()) || !slices.ContainsFunc(comp.Fields, func(f *ir.CompositeField) bool {
			return usesType(f.DataType, comp.Schema, oldKey)
		}) {
			continue
		}
		for _, tbl := range cs.From.Tables() {
			for _, col := range tbl.Columns {
				if usesType(col.DataType, tbl.Schema, comp.Key()) && cs.To.Has(tbl.Key()) {
					return nil, fmt.Errorf("%w: rebuild of %s while composite %s is stored in %s.%s",
						ErrUnsupported, oldKey, comp.Key(), tbl.Key(), col.Name)
				}
			}
		}
		composites = append(composites, comp)
	}
	return composites, nil
}

// moveAttributes points the attributes of comp that use the renamed type at
// their target definition.
func (g *generator) moveAttributes(comp *ir.CompositeType, c *diff.Change) {
	target, _ := g.plan.ChangeSet.To.Get(comp.Key())
	fields := make(map[string]*ir.CompositeField)
	if to, ok := target.(*ir.CompositeType); ok {
		for _, f := range to.Fields {
			fields[f.Name] = f
		}
	}
	name := g.qualified(comp.Schema, comp.Name)
	for _, f := range sortedFields(comp.Fields) {
		if !usesType(f.DataType, comp.Schema, c.OldKey()) {
			continue
		}
		dataType := g.qualified(c.Key.Schema, c.Key.Name)
		if to, ok := fields[f.Name]; ok && usesType(to.DataType, comp.Schema, c.Key) {
			dataType = to.DataType
		}
		g.emit(fmt.Sprintf("ALTER TYPE %s ALTER ATTRIBUTE %s TYPE %s", name, g.ident(f.Name), dataType))
	}
}

// asideName picks a name for the replaced type that collides with nothing
// in either snapshot.
func (g *generator) asideName(k ir.Key) string {
	cs := g.plan.ChangeSet
	taken := func(name string) bool {
		for _, kind := range []ir.Kind{ir.KindEnum, ir.KindComposite, ir.KindDomain, ir.KindTable, ir.KindView, ir.KindSequence} {
			candidate := ir.Key{Schema: k.Schema, Name: name, Kind: kind}
			if cs.From.Has(candidate) || cs.To.Has(candidate) {
				return true
			}
		}
		return false
	}
	name := k.Name + "_old"
	for i := 2; taken(name); i++ {
		name = k.Name + "_old" + strconv.Itoa(i)
	}
	return name
}

func usesType(dataType, schema string, k ir.Key) bool {
	s, n, ok := ir.TypeReference(dataType, schema)
	return ok && s == k.Schema && n == k.Name
}
