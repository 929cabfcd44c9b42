package ddl

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/plan"
	"github.com/pgschema/pgdiff/internal/util"
)

const indent = "    "

func (g *generator) create(s *plan.Step) error {
	switch o := s.Change.New.(type) {
	case *ir.Table:
		g.createTable(o, s.Inline)
	case nil:
		return fmt.Errorf("%w: create step without a target definition", ErrUnsupported)
	default:
		return g.createObject(o)
	}
	return nil
}

func (g *generator) createObject(obj ir.Object) error {
	switch o := obj.(type) {
	case *ir.Schema:
		g.emit("CREATE SCHEMA IF NOT EXISTS " + g.ident(o.Name))
	case *ir.Extension:
		sql := "CREATE EXTENSION IF NOT EXISTS " + g.ident(o.Name)
		if o.Schema != "" {
			sql += " WITH SCHEMA " + g.ident(o.Schema)
		}
		if o.Version != "" {
			sql += " VERSION " + util.QuoteLiteral(o.Version)
		}
		g.emit(sql)
	case *ir.EnumType:
		labels := make([]string, len(o.Labels))
		for i, l := range o.Labels {
			labels[i] = util.QuoteLiteral(l)
		}
		g.emit(fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", g.qualified(o.Schema, o.Name), strings.Join(labels, ", ")))
	case *ir.CompositeType:
		g.createComposite(o)
	case *ir.DomainType:
		g.createDomain(o)
	case *ir.Sequence:
		g.createSequence(o)
	case *ir.Table:
		g.createTable(o, nil)
	case *ir.Constraint:
		g.addConstraint(o)
	case *ir.Index:
		g.createIndex(o)
	case *ir.Routine:
		return g.createRoutine(o)
	case *ir.Trigger:
		g.createTrigger(o)
	case *ir.View:
		g.emit(fmt.Sprintf("CREATE VIEW %s AS\n%s", g.qualified(o.Schema, o.Name), viewQuery(o.Definition)))
	case *ir.Policy:
		g.createPolicy(o)
	case *ir.Comment:
		g.comment(o, &o.Text)
	default:
		return fmt.Errorf("%w: create %T", ErrUnsupported, obj)
	}
	return nil
}

func (g *generator) drop(s *plan.Step) error {
	obj := s.Change.Old
	if obj == nil {
		return fmt.Errorf("%w: drop step without a source definition", ErrUnsupported)
	}
	if !g.opts.UseDrop && s.Change.Type == diff.Removed {
		g.cur.disabled = true
		g.res.Skipped = append(g.res.Skipped, Skip{Key: s.Key, Reason: "drop disabled; rerun with --use_drop to apply it"})
	}

	switch o := obj.(type) {
	case *ir.Schema:
		g.emit("DROP SCHEMA IF EXISTS " + g.ident(o.Name))
	case *ir.Extension:
		g.emit("DROP EXTENSION IF EXISTS " + g.ident(o.Name))
	case *ir.EnumType, *ir.CompositeType:
		k := o.Key()
		g.emit("DROP TYPE IF EXISTS " + g.qualified(k.Schema, k.Name))
	case *ir.DomainType:
		g.emit("DROP DOMAIN IF EXISTS " + g.qualified(o.Schema, o.Name))
	case *ir.Sequence:
		g.emit("DROP SEQUENCE IF EXISTS " + g.qualified(o.Schema, o.Name))
	case *ir.Table:
		g.emit("DROP TABLE IF EXISTS " + g.qualified(o.Schema, o.Name))
	case *ir.Constraint:
		g.emit(fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", g.qualified(o.Schema, o.Table), g.ident(o.Name)))
	case *ir.Index:
		g.emit("DROP INDEX IF EXISTS " + g.qualified(o.Schema, o.Name))
	case *ir.Routine:
		g.emit(fmt.Sprintf("DROP %s IF EXISTS %s", routineKeyword(o), g.routineRef(o)))
	case *ir.Trigger:
		g.emit(fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", g.ident(o.Name), g.qualified(o.Schema, o.Table)))
	case *ir.View:
		g.emit("DROP VIEW IF EXISTS " + g.qualified(o.Schema, o.Name))
	case *ir.Policy:
		g.emit(fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", g.ident(o.Name), g.qualified(o.Schema, o.Table)))
	case *ir.Comment:
		g.comment(o, nil)
	default:
		return fmt.Errorf("%w: drop %T", ErrUnsupported, obj)
	}
	return nil
}

func (g *generator) alter(s *plan.Step) error {
	c := s.Change
	if c.Type != diff.Modified || c.Old == nil || c.New == nil {
		return fmt.Errorf("%w: alter step for a %s change", ErrUnsupported, strings.ToLower(string(c.Type)))
	}
	if s.Swap {
		return g.swap(c)
	}

	for _, d := range c.Deltas {
		if d.Kind == diff.DeltaRenamed {
			return g.rename(c, d)
		}
	}

	switch n := c.New.(type) {
	case *ir.Extension:
		g.alterExtension(c, n)
	case *ir.EnumType:
		g.alterEnum(c, n)
	case *ir.CompositeType:
		g.alterComposite(c, n)
	case *ir.DomainType:
		g.alterDomain(c, n)
	case *ir.Sequence:
		g.alterSequence(c, n)
	case *ir.Table:
		g.alterTable(s, c.Old.(*ir.Table), n)
	case *ir.Routine:
		return g.createRoutine(n)
	case *ir.View:
		g.emit(fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", g.qualified(n.Schema, n.Name), viewQuery(n.Definition)))
	case *ir.Policy:
		g.alterPolicy(c, c.Old.(*ir.Policy), n)
	case *ir.Comment:
		g.comment(n, &n.Text)
	default:
		return fmt.Errorf("%w: alter %s in place", ErrUnsupported, c.Key)
	}
	return nil
}

func (g *generator) rename(c *diff.Change, d diff.Delta) error {
	switch n := c.New.(type) {
	case *ir.Constraint:
		g.emit(fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s",
			g.qualified(n.Schema, n.Table), g.ident(d.Old), g.ident(d.New)))
	case *ir.Index:
		g.emit(fmt.Sprintf("ALTER INDEX %s RENAME TO %s", g.qualified(n.Schema, d.Old), g.ident(d.New)))
	default:
		return fmt.Errorf("%w: rename of %s", ErrUnsupported, c.Key)
	}
	return nil
}

func (g *generator) alterExtension(c *diff.Change, n *ir.Extension) {
	for _, d := range c.Deltas {
		if d.Kind != diff.DeltaAttribute {
			continue
		}
		switch d.Name {
		case "schema":
			g.emit(fmt.Sprintf("ALTER EXTENSION %s SET SCHEMA %s", g.ident(n.Name), g.ident(n.Schema)))
		case "version":
			if n.Version != "" {
				g.emit(fmt.Sprintf("ALTER EXTENSION %s UPDATE TO %s", g.ident(n.Name), util.QuoteLiteral(n.Version)))
			}
		}
	}
}

func (g *generator) alterEnum(c *diff.Change, n *ir.EnumType) {
	name := g.qualified(n.Schema, n.Name)
	for _, d := range c.Deltas {
		if d.Kind != diff.DeltaEnumLabelAdded {
			continue
		}
		sql := fmt.Sprintf("ALTER TYPE %s ADD VALUE %s", name, util.QuoteLiteral(d.New))
		switch {
		case d.Before != "":
			sql += " BEFORE " + util.QuoteLiteral(d.Before)
		case d.After != "":
			sql += " AFTER " + util.QuoteLiteral(d.After)
		}
		g.emit(sql)
	}
}

func sortedFields(fields []*ir.CompositeField) []*ir.CompositeField {
	sorted := append([]*ir.CompositeField(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	return sorted
}

func (g *generator) createComposite(t *ir.CompositeType) {
	fields := sortedFields(t.Fields)
	lines := make([]string, len(fields))
	for i, f := range fields {
		lines[i] = indent + g.ident(f.Name) + " " + f.DataType
	}
	g.emit(fmt.Sprintf("CREATE TYPE %s AS (\n%s\n)", g.qualified(t.Schema, t.Name), strings.Join(lines, ",\n")))
}

func (g *generator) alterComposite(c *diff.Change, n *ir.CompositeType) {
	name := g.qualified(n.Schema, n.Name)
	for _, d := range c.Deltas {
		switch d.Kind {
		case diff.DeltaFieldDropped:
			g.emit(fmt.Sprintf("ALTER TYPE %s DROP ATTRIBUTE IF EXISTS %s", name, g.ident(d.Name)))
		case diff.DeltaFieldAdded:
			g.emit(fmt.Sprintf("ALTER TYPE %s ADD ATTRIBUTE %s %s", name, g.ident(d.Name), d.New))
		case diff.DeltaFieldType:
			g.emit(fmt.Sprintf("ALTER TYPE %s ALTER ATTRIBUTE %s TYPE %s", name, g.ident(d.Name), d.New))
		}
	}
}

func (g *generator) createDomain(d *ir.DomainType) {
	var b strings.Builder
	b.WriteString("CREATE DOMAIN " + g.qualified(d.Schema, d.Name) + " AS " + d.BaseType)
	if d.Collation != "" {
		b.WriteString(" COLLATE " + g.ident(d.Collation))
	}
	if d.Default != nil {
		b.WriteString(" DEFAULT " + *d.Default)
	}
	if d.NotNull {
		b.WriteString(" NOT NULL")
	}
	for _, dc := range d.Constraints {
		b.WriteString("\n" + indent + "CONSTRAINT " + g.ident(dc.Name) + " CHECK " + parenthesize(dc.Expression))
	}
	g.emit(b.String())
}

func (g *generator) alterDomain(c *diff.Change, n *ir.DomainType) {
	name := g.qualified(n.Schema, n.Name)
	for _, d := range c.Deltas {
		switch d.Kind {
		case diff.DeltaAttribute:
			switch d.Name {
			case "default":
				if n.Default != nil {
					g.emit(fmt.Sprintf("ALTER DOMAIN %s SET DEFAULT %s", name, *n.Default))
				} else {
					g.emit(fmt.Sprintf("ALTER DOMAIN %s DROP DEFAULT", name))
				}
			case "not_null":
				if n.NotNull {
					g.emit(fmt.Sprintf("ALTER DOMAIN %s SET NOT NULL", name))
				} else {
					g.emit(fmt.Sprintf("ALTER DOMAIN %s DROP NOT NULL", name))
				}
			}
		case diff.DeltaCheckDropped:
			g.emit(fmt.Sprintf("ALTER DOMAIN %s DROP CONSTRAINT IF EXISTS %s", name, g.ident(d.Name)))
		case diff.DeltaCheckAdded:
			g.emit(fmt.Sprintf("ALTER DOMAIN %s ADD CONSTRAINT %s CHECK %s", name, g.ident(d.Name), parenthesize(d.New)))
		}
	}
}

func (g *generator) createSequence(s *ir.Sequence) {
	var b strings.Builder
	b.WriteString("CREATE SEQUENCE " + g.qualified(s.Schema, s.Name))
	if s.DataType != "" {
		b.WriteString(" AS " + s.DataType)
	}
	b.WriteString(" START WITH " + strconv.FormatInt(s.Start, 10))
	b.WriteString(" INCREMENT BY " + strconv.FormatInt(s.Increment, 10))
	b.WriteString(" " + limit("MINVALUE", s.MinValue))
	b.WriteString(" " + limit("MAXVALUE", s.MaxValue))
	if s.Cache > 0 {
		b.WriteString(" CACHE " + strconv.FormatInt(s.Cache, 10))
	}
	if s.Cycle {
		b.WriteString(" CYCLE")
	}
	g.emit(b.String())
}

func limit(keyword string, v *int64) string {
	if v == nil {
		return "NO " + keyword
	}
	return keyword + " " + strconv.FormatInt(*v, 10)
}

func (g *generator) alterSequence(c *diff.Change, n *ir.Sequence) {
	var opts []string
	for _, d := range c.Deltas {
		if d.Kind != diff.DeltaAttribute {
			continue
		}
		switch d.Name {
		case "data_type":
			opts = append(opts, "AS "+n.DataType)
		case "start":
			opts = append(opts, "START WITH "+strconv.FormatInt(n.Start, 10))
		case "increment":
			opts = append(opts, "INCREMENT BY "+strconv.FormatInt(n.Increment, 10))
		case "min_value":
			opts = append(opts, limit("MINVALUE", n.MinValue))
		case "max_value":
			opts = append(opts, limit("MAXVALUE", n.MaxValue))
		case "cache":
			opts = append(opts, "CACHE "+strconv.FormatInt(n.Cache, 10))
		case "cycle":
			if n.Cycle {
				opts = append(opts, "CYCLE")
			} else {
				opts = append(opts, "NO CYCLE")
			}
		}
	}
	// ownership is applied by the deferred pass
	if len(opts) > 0 {
		g.emit(fmt.Sprintf("ALTER SEQUENCE %s %s", g.qualified(n.Schema, n.Name), strings.Join(opts, " ")))
	}
}

func (g *generator) setOwner(s *ir.Sequence) {
	owner := "NONE"
	if s.OwnedBy != nil {
		owner = g.qualified(s.OwnedBy.Schema, s.OwnedBy.Table) + "." + g.ident(s.OwnedBy.Column)
	}
	g.emit(fmt.Sprintf("ALTER SEQUENCE %s OWNED BY %s", g.qualified(s.Schema, s.Name), owner))
}

func (g *generator) createTable(t *ir.Table, inline []*ir.Constraint) {
	lines := make([]string, 0, len(t.Columns)+len(inline))
	for _, col := range t.Columns {
		lines = append(lines, indent+g.columnDef(col))
	}
	for _, con := range inline {
		lines = append(lines, indent+"CONSTRAINT "+g.ident(con.Name)+" "+g.constraintDef(con))
	}
	name := g.qualified(t.Schema, t.Name)
	g.emit(fmt.Sprintf("CREATE TABLE %s (\n%s\n)", name, strings.Join(lines, ",\n")))
	if t.RLSEnabled {
		g.emit(fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", name))
	}
	if t.RLSForced {
		g.emit(fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", name))
	}
}

func (g *generator) columnDef(col *ir.Column) string {
	var b strings.Builder
	b.WriteString(g.ident(col.Name) + " " + col.DataType)
	if col.Collation != "" {
		b.WriteString(" COLLATE " + g.ident(col.Collation))
	}
	switch {
	case col.Generated != nil:
		b.WriteString(" GENERATED ALWAYS AS " + parenthesize(*col.Generated) + " STORED")
	case col.Identity != nil:
		b.WriteString(" GENERATED " + col.Identity.Generation + " AS IDENTITY")
		if opts := identityOptions(col.Identity, ""); len(opts) > 0 {
			b.WriteString(" (" + strings.Join(opts, " ") + ")")
		}
	case col.Default != nil:
		b.WriteString(" DEFAULT " + *col.Default)
	}
	if col.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// identityOptions renders the sequence options of an identity column, each
// prefixed with prefix ("SET " inside ALTER COLUMN).
func identityOptions(id *ir.Identity, prefix string) []string {
	var opts []string
	if id.Start != nil {
		opts = append(opts, prefix+"START WITH "+strconv.FormatInt(*id.Start, 10))
	}
	if id.Increment != nil {
		opts = append(opts, prefix+"INCREMENT BY "+strconv.FormatInt(*id.Increment, 10))
	}
	if id.MinValue != nil {
		opts = append(opts, prefix+"MINVALUE "+strconv.FormatInt(*id.MinValue, 10))
	}
	if id.MaxValue != nil {
		opts = append(opts, prefix+"MAXVALUE "+strconv.FormatInt(*id.MaxValue, 10))
	}
	if id.Cache != nil {
		opts = append(opts, prefix+"CACHE "+strconv.FormatInt(*id.Cache, 10))
	}
	if id.Cycle {
		opts = append(opts, prefix+"CYCLE")
	} else if prefix != "" {
		opts = append(opts, prefix+"NO CYCLE")
	}
	return opts
}

// release detaches the columns of a table from objects dropped later in the
// drop phase: old defaults are dropped, removed columns are dropped and
// retyped columns get their new type, or text when that type is created
// later.
func (g *generator) release(s *plan.Step) error {
	c := s.Change
	n, ok := c.New.(*ir.Table)
	if !ok {
		return fmt.Errorf("%w: release of %s", ErrUnsupported, c.Key)
	}
	name := g.qualified(n.Schema, n.Name)
	alterColumn := func(col, action string) {
		g.emit(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", name, g.ident(col), action))
	}

	for _, d := range c.Deltas {
		if d.Kind == diff.DeltaColumnDefault && d.Old != "" {
			alterColumn(d.Name, "DROP DEFAULT")
		}
	}
	for _, d := range c.Deltas {
		if d.Kind == diff.DeltaColumnDropped {
			g.emit(fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", name, g.ident(d.Name)))
		}
	}
	for _, d := range c.Deltas {
		if d.Kind != diff.DeltaColumnType {
			continue
		}
		if slices.Contains(s.Bridged, d.Name) {
			alterColumn(d.Name, "TYPE text USING "+g.ident(d.Name)+"::text")
			continue
		}
		alterColumn(d.Name, g.columnType(c, n.Column(d.Name)))
	}
	return nil
}

// columnType is the TYPE clause of a column retype, with the collation when
// it changes too.
func (g *generator) columnType(c *diff.Change, col *ir.Column) string {
	action := "TYPE " + col.DataType
	if hasColumnDelta(c, diff.DeltaColumnCollation, col.Name) && col.Collation != "" {
		action += " COLLATE " + g.ident(col.Collation)
	}
	return action
}

func (g *generator) alterTable(s *plan.Step, o, n *ir.Table) {
	c := s.Change
	name := g.qualified(n.Schema, n.Name)
	alterColumn := func(col, action string) {
		g.emit(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", name, g.ident(col), action))
	}

	for _, d := range c.Deltas {
		col := n.Column(d.Name)
		switch d.Kind {
		case diff.DeltaColumnDropped:
			if s.Released {
				continue
			}
			g.emit(fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", name, g.ident(d.Name)))
		case diff.DeltaColumnAdded:
			g.emit(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", name, g.columnDef(col)))
		case diff.DeltaColumnType:
			switch {
			case !s.Released:
				alterColumn(d.Name, g.columnType(c, col))
			case slices.Contains(s.Bridged, d.Name):
				alterColumn(d.Name, g.columnType(c, col)+" USING "+g.ident(d.Name)+"::text::"+col.DataType)
			}
		case diff.DeltaColumnCollation:
			if hasColumnDelta(c, diff.DeltaColumnType, d.Name) {
				continue
			}
			collation := "pg_catalog.\"default\""
			if col.Collation != "" {
				collation = g.ident(col.Collation)
			}
			alterColumn(d.Name, "TYPE "+col.DataType+" COLLATE "+collation)
		case diff.DeltaColumnDefault:
			switch {
			case col.Default != nil:
				alterColumn(d.Name, "SET DEFAULT "+*col.Default)
			case !s.Released:
				alterColumn(d.Name, "DROP DEFAULT")
			}
		case diff.DeltaColumnNullable:
			if col.NotNull {
				alterColumn(d.Name, "SET NOT NULL")
			} else {
				alterColumn(d.Name, "DROP NOT NULL")
			}
		case diff.DeltaColumnIdentity:
			old := o.Column(d.Name)
			switch {
			case col.Identity == nil:
				alterColumn(d.Name, "DROP IDENTITY IF EXISTS")
			case old == nil || old.Identity == nil:
				action := "ADD GENERATED " + col.Identity.Generation + " AS IDENTITY"
				if opts := identityOptions(col.Identity, ""); len(opts) > 0 {
					action += " (" + strings.Join(opts, " ") + ")"
				}
				alterColumn(d.Name, action)
			default:
				opts := append([]string{"SET GENERATED " + col.Identity.Generation}, identityOptions(col.Identity, "SET ")...)
				alterColumn(d.Name, strings.Join(opts, " "))
			}
		case diff.DeltaColumnGenerated:
			switch {
			case col.Generated == nil:
				alterColumn(d.Name, "DROP EXPRESSION IF EXISTS")
			case d.Old != "":
				alterColumn(d.Name, "SET EXPRESSION AS "+parenthesize(*col.Generated))
			default:
				g.res.Skipped = append(g.res.Skipped, Skip{Key: c.Key,
					Reason: fmt.Sprintf("column %s cannot become a generated column in place", d.Name)})
				g.res.Notes = append(g.res.Notes, fmt.Sprintf("manual step needed: recreate column %s of %s as a generated column", d.Name, ir.Describe(n)))
			}
		case diff.DeltaAttribute:
			switch d.Name {
			case "rls_enabled":
				if n.RLSEnabled {
					g.emit(fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", name))
				} else {
					g.emit(fmt.Sprintf("ALTER TABLE %s DISABLE ROW LEVEL SECURITY", name))
				}
			case "rls_forced":
				if n.RLSForced {
					g.emit(fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", name))
				} else {
					g.emit(fmt.Sprintf("ALTER TABLE %s NO FORCE ROW LEVEL SECURITY", name))
				}
			}
		}
	}
}

func hasColumnDelta(c *diff.Change, kind diff.DeltaKind, column string) bool {
	for _, d := range c.Deltas {
		if d.Kind == kind && d.Name == column {
			return true
		}
	}
	return false
}

func (g *generator) addConstraint(con *ir.Constraint) {
	g.emit(fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
		g.qualified(con.Schema, con.Table), g.ident(con.Name), g.constraintDef(con)))
}

func (g *generator) constraintDef(con *ir.Constraint) string {
	switch con.Type {
	case ir.ConstraintTypePrimaryKey, ir.ConstraintTypeUnique:
		return string(con.Type) + " (" + g.identList(con.Columns) + ")"
	case ir.ConstraintTypeCheck:
		return "CHECK " + parenthesize(con.Expression)
	case ir.ConstraintTypeForeignKey:
		ref := con.ReferencedKey()
		var b strings.Builder
		b.WriteString("FOREIGN KEY (" + g.identList(con.Columns) + ")")
		b.WriteString(" REFERENCES " + g.qualified(ref.Schema, ref.Name) + " (" + g.identList(con.ReferencedColumns) + ")")
		if a := strings.ToUpper(con.OnDelete); a != "" && a != "NO ACTION" {
			b.WriteString(" ON DELETE " + a)
		}
		if a := strings.ToUpper(con.OnUpdate); a != "" && a != "NO ACTION" {
			b.WriteString(" ON UPDATE " + a)
		}
		if con.Deferrable {
			b.WriteString(" DEFERRABLE")
			if con.InitiallyDeferred {
				b.WriteString(" INITIALLY DEFERRED")
			}
		}
		return b.String()
	}
	g.fail(fmt.Errorf("%w: constraint type %q", ErrUnsupported, con.Type))
	return ""
}

func (g *generator) createIndex(idx *ir.Index) {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	method := idx.Method
	if method == "" {
		method = "btree"
	}
	b.WriteString("INDEX " + g.ident(idx.Name) + " ON " + g.qualified(idx.Schema, idx.Table) + " USING " + method)
	keys := make([]string, len(idx.Keys))
	for i, k := range idx.Keys {
		if k.Column != "" {
			keys[i] = g.ident(k.Column)
		} else {
			keys[i] = parenthesize(k.Expression)
		}
		if k.Descending {
			keys[i] += " DESC"
		}
	}
	b.WriteString(" (" + strings.Join(keys, ", ") + ")")
	if idx.Predicate != "" {
		b.WriteString(" WHERE " + parenthesize(idx.Predicate))
	}
	g.emit(b.String())
}

func routineKeyword(r *ir.Routine) string {
	if r.Kind == ir.RoutineProcedure {
		return "PROCEDURE"
	}
	return "FUNCTION"
}

// routineRef renders schema.name(argument types) for DROP and COMMENT.
func (g *generator) routineRef(r *ir.Routine) string {
	return g.qualified(r.Schema, r.Name) + "(" + r.IdentityArguments() + ")"
}

func (g *generator) createRoutine(r *ir.Routine) error {
	var params []string
	for _, p := range r.Parameters {
		if p.Mode == "TABLE" {
			continue
		}
		var parts []string
		if p.Mode != "" && p.Mode != "IN" {
			parts = append(parts, p.Mode)
		}
		if p.Name != "" {
			parts = append(parts, g.ident(p.Name))
		}
		parts = append(parts, p.DataType)
		if p.Default != nil {
			parts = append(parts, "DEFAULT "+*p.Default)
		}
		params = append(params, strings.Join(parts, " "))
	}

	var b strings.Builder
	b.WriteString("CREATE OR REPLACE " + routineKeyword(r) + " " + g.qualified(r.Schema, r.Name) + "(" + strings.Join(params, ", ") + ")")
	if r.Kind != ir.RoutineProcedure && r.ReturnType != "" {
		b.WriteString("\nRETURNS " + r.ReturnType)
	}
	b.WriteString("\nLANGUAGE " + g.ident(strings.ToLower(r.Language)))
	if r.Kind != ir.RoutineProcedure {
		if r.Volatility != "" {
			b.WriteString("\n" + r.Volatility)
		}
		if r.Strict {
			b.WriteString("\nSTRICT")
		}
	}
	if r.SecurityDefiner {
		b.WriteString("\nSECURITY DEFINER")
	}
	b.WriteString("\nAS ")
	bodyAt := b.Len()
	b.WriteString(util.DollarQuote(r.Body, r.Name+"_body"))
	sql := b.String()

	_, body, _, err := util.ScanDollarQuoted(sql, bodyAt)
	if err != nil {
		return fmt.Errorf("quote body of %s: %w", r.Signature(), err)
	}
	if body != r.Body {
		return fmt.Errorf("quote body of %s: delimiter collides with body text", r.Signature())
	}
	g.emit(sql)
	return nil
}

func (g *generator) createTrigger(t *ir.Trigger) {
	events := make([]string, len(t.Events))
	for i, e := range t.Events {
		events[i] = e
		if e == "UPDATE" && len(t.UpdateColumns) > 0 {
			events[i] += " OF " + g.identList(t.UpdateColumns)
		}
	}
	args := make([]string, len(t.Arguments))
	for i, a := range t.Arguments {
		args[i] = util.QuoteLiteral(a)
	}

	var b strings.Builder
	b.WriteString("CREATE TRIGGER " + g.ident(t.Name))
	b.WriteString("\n" + indent + t.Timing + " " + strings.Join(events, " OR "))
	b.WriteString(" ON " + g.qualified(t.Schema, t.Table))
	b.WriteString("\n" + indent + "FOR EACH " + t.Level)
	if t.When != "" {
		b.WriteString("\n" + indent + "WHEN " + parenthesize(t.When))
	}
	b.WriteString("\n" + indent + "EXECUTE FUNCTION " + g.qualified(t.FunctionSchema, t.FunctionName) + "(" + strings.Join(args, ", ") + ")")
	g.emit(b.String())
}

// viewQuery trims the stored definition down to the bare query.
func viewQuery(def string) string {
	return strings.TrimRight(strings.TrimSpace(def), "; \n\t")
}

func (g *generator) policyRoles(roles []string) string {
	if len(roles) == 0 {
		return "PUBLIC"
	}
	out := make([]string, len(roles))
	for i, r := range roles {
		if strings.EqualFold(r, "public") {
			out[i] = "PUBLIC"
			continue
		}
		out[i] = g.ident(r)
	}
	return strings.Join(out, ", ")
}

func (g *generator) createPolicy(p *ir.Policy) {
	mode := "PERMISSIVE"
	if !p.Permissive {
		mode = "RESTRICTIVE"
	}
	command := p.Command
	if command == "" {
		command = "ALL"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE POLICY %s ON %s AS %s FOR %s TO %s",
		g.ident(p.Name), g.qualified(p.Schema, p.Table), mode, command, g.policyRoles(p.Roles)))
	if p.Using != "" {
		b.WriteString(" USING " + parenthesize(p.Using))
	}
	if p.WithCheck != "" {
		b.WriteString(" WITH CHECK " + parenthesize(p.WithCheck))
	}
	g.emit(b.String())
}

func (g *generator) alterPolicy(c *diff.Change, o, n *ir.Policy) {
	// ALTER POLICY cannot remove an expression
	if (o.Using != "" && n.Using == "") || (o.WithCheck != "" && n.WithCheck == "") {
		g.emit(fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", g.ident(o.Name), g.qualified(o.Schema, o.Table)))
		g.createPolicy(n)
		return
	}
	var clauses []string
	for _, d := range c.Deltas {
		if d.Kind != diff.DeltaAttribute {
			continue
		}
		switch d.Name {
		case "roles":
			clauses = append(clauses, "TO "+g.policyRoles(n.Roles))
		case "using":
			clauses = append(clauses, "USING "+parenthesize(n.Using))
		case "with_check":
			clauses = append(clauses, "WITH CHECK "+parenthesize(n.WithCheck))
		}
	}
	if len(clauses) > 0 {
		g.emit(fmt.Sprintf("ALTER POLICY %s ON %s %s", g.ident(n.Name), g.qualified(n.Schema, n.Table), strings.Join(clauses, " ")))
	}
}

// comment sets a comment, or clears it when text is nil.
func (g *generator) comment(c *ir.Comment, text *string) {
	value := "NULL"
	if text != nil {
		value = util.QuoteLiteral(*text)
	}
	target := g.commentTarget(c)
	if target == "" {
		return
	}
	g.emit(fmt.Sprintf("COMMENT ON %s IS %s", target, value))
}

func (g *generator) commentTarget(c *ir.Comment) string {
	t := c.Target
	switch t.Kind {
	case ir.KindSchema:
		return "SCHEMA " + g.ident(t.Name)
	case ir.KindExtension:
		return "EXTENSION " + g.ident(t.Name)
	case ir.KindEnum, ir.KindComposite:
		return "TYPE " + g.qualified(t.Schema, t.Name)
	case ir.KindDomain:
		return "DOMAIN " + g.qualified(t.Schema, t.Name)
	case ir.KindSequence:
		return "SEQUENCE " + g.qualified(t.Schema, t.Name)
	case ir.KindTable, ir.KindView:
		if c.Column != "" {
			return "COLUMN " + g.qualified(t.Schema, t.Name) + "." + g.ident(c.Column)
		}
		return string(t.Kind) + " " + g.qualified(t.Schema, t.Name)
	case ir.KindFunction, ir.KindProcedure:
		name, args, ok := strings.Cut(t.Name, "(")
		if !ok {
			break
		}
		return string(t.Kind) + " " + g.qualified(t.Schema, name) + "(" + args
	case ir.KindIndex:
		return "INDEX " + g.qualified(t.Schema, t.Name)
	case ir.KindConstraint, ir.KindTrigger, ir.KindPolicy:
		return string(t.Kind) + " " + g.ident(t.Name) + " ON " + g.qualified(t.Schema, t.Table)
	}
	g.fail(fmt.Errorf("%w: comment on %s", ErrUnsupported, t))
	return ""
}

// parenthesize wraps an expression in parentheses unless one pair already
// encloses all of it.
func parenthesize(expr string) string {
	expr = strings.TrimSpace(expr)
	if enclosed(expr) {
		return expr
	}
	return "(" + expr + ")"
}

func enclosed(expr string) bool {
	if len(expr) < 2 || expr[0] != '(' || expr[len(expr)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '\'':
			for i++; i < len(expr) && expr[i] != '\''; i++ {
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return false
			}
		}
	}
	return depth == 0
}
