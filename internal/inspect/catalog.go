package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
)

// scanAll runs query with the schema pattern and calls scan for each row.
func (i *Inspector) scanAll(ctx context.Context, what, query, pattern string, scan func(*sql.Rows) error) error {
	isDebug := logger.IsDebug()
	if isDebug {
		logger.Get().Debug("Querying catalog", "objects", what, "schema", pattern)
	}

	rows, err := i.db.QueryContext(ctx, query, pattern)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan %s: %w", what, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", what, err)
	}

	if isDebug {
		logger.Get().Debug("Catalog query finished", "objects", what, "rows", n)
	}
	return nil
}

// withComment appends the comment on target when the catalog has one.
func withComment(objects []ir.Object, target ir.Key, column string, desc sql.NullString) []ir.Object {
	if !desc.Valid {
		return objects
	}
	return append(objects, &ir.Comment{Target: target, Column: column, Text: desc.String})
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func (i *Inspector) schemas(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "schemas", schemasQuery, pattern, func(rows *sql.Rows) error {
		var s ir.Schema
		var desc sql.NullString
		if err := rows.Scan(&s.Name, &s.Owner, &desc); err != nil {
			return err
		}
		objects = withComment(append(objects, &s), s.Key(), "", desc)
		return nil
	})
	return objects, err
}

func (i *Inspector) extensions(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "extensions", extensionsQuery, pattern, func(rows *sql.Rows) error {
		var e ir.Extension
		var desc sql.NullString
		if err := rows.Scan(&e.Name, &e.Schema, &e.Version, &desc); err != nil {
			return err
		}
		objects = withComment(append(objects, &e), e.Key(), "", desc)
		return nil
	})
	return objects, err
}

func (i *Inspector) enums(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "enums", enumsQuery, pattern, func(rows *sql.Rows) error {
		var e ir.EnumType
		var desc sql.NullString
		if err := rows.Scan(&e.Schema, &e.Name, pq.Array(&e.Labels), &desc); err != nil {
			return err
		}
		objects = withComment(append(objects, &e), e.Key(), "", desc)
		return nil
	})
	return objects, err
}

func (i *Inspector) composites(ctx context.Context, pattern string) ([]ir.Object, error) {
	var (
		objects []ir.Object
		current *ir.CompositeType
	)
	err := i.scanAll(ctx, "composite types", compositesQuery, pattern, func(rows *sql.Rows) error {
		var (
			schema, name string
			f            ir.CompositeField
			desc         sql.NullString
		)
		if err := rows.Scan(&schema, &name, &f.Name, &f.DataType, &f.Position, &desc); err != nil {
			return err
		}
		if current == nil || current.Schema != schema || current.Name != name {
			current = &ir.CompositeType{Schema: schema, Name: name}
			objects = withComment(append(objects, current), current.Key(), "", desc)
		}
		current.Fields = append(current.Fields, &f)
		return nil
	})
	return objects, err
}

func (i *Inspector) domains(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "domains", domainsQuery, pattern, func(rows *sql.Rows) error {
		var (
			d                  ir.DomainType
			def, collation     sql.NullString
			checkNames, checks []string
			desc               sql.NullString
		)
		if err := rows.Scan(&d.Schema, &d.Name, &d.BaseType, &def, &d.NotNull, &collation,
			pq.Array(&checkNames), pq.Array(&checks), &desc); err != nil {
			return err
		}
		d.Default = nullString(def)
		d.Collation = collation.String
		for ci, name := range checkNames {
			if ci < len(checks) {
				d.Constraints = append(d.Constraints, &ir.DomainConstraint{Name: name, Expression: checkExpression(checks[ci])})
			}
		}
		objects = withComment(append(objects, &d), d.Key(), "", desc)
		return nil
	})
	return objects, err
}

func (i *Inspector) sequences(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "sequences", sequencesQuery, pattern, func(rows *sql.Rows) error {
		var (
			s                               ir.Sequence
			minValue, maxValue              int64
			ownerSchema, ownerTable, ownCol sql.NullString
			desc                            sql.NullString
		)
		if err := rows.Scan(&s.Schema, &s.Name, &s.DataType, &s.Start, &s.Increment, &minValue, &maxValue,
			&s.Cache, &s.Cycle, &ownerSchema, &ownerTable, &ownCol, &desc); err != nil {
			return err
		}
		s.MinValue, s.MaxValue = &minValue, &maxValue
		if ownerTable.Valid && ownCol.Valid {
			s.OwnedBy = &ir.ColumnRef{Schema: ownerSchema.String, Table: ownerTable.String, Column: ownCol.String}
		}
		objects = withComment(append(objects, &s), s.Key(), "", desc)
		return nil
	})
	return objects, err
}

// tables reads tables and then their columns; both land in one result so
// every table is complete when it reaches the snapshot builder.
func (i *Inspector) tables(ctx context.Context, pattern string) ([]ir.Object, error) {
	var (
		objects  []ir.Object
		comments []ir.Object
	)
	byName := make(map[string]*ir.Table)
	err := i.scanAll(ctx, "tables", tablesQuery, pattern, func(rows *sql.Rows) error {
		var t ir.Table
		var desc sql.NullString
		if err := rows.Scan(&t.Schema, &t.Name, &t.RLSEnabled, &t.RLSForced, &desc); err != nil {
			return err
		}
		byName[t.Schema+"."+t.Name] = &t
		objects = append(objects, &t)
		comments = withComment(comments, t.Key(), "", desc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = i.scanAll(ctx, "columns", columnsQuery, pattern, func(rows *sql.Rows) error {
		var (
			schema, table                     string
			col                               ir.Column
			collation, def                    sql.NullString
			identity, generated               string
			start, incr, minV, maxV, cacheVal sql.NullInt64
			cycle                             sql.NullBool
			desc                              sql.NullString
		)
		if err := rows.Scan(&schema, &table, &col.Name, &col.Position, &col.DataType, &collation, &col.NotNull,
			&def, &identity, &generated, &start, &incr, &minV, &maxV, &cacheVal, &cycle, &desc); err != nil {
			return err
		}
		t := byName[schema+"."+table]
		if t == nil {
			return nil
		}
		col.Collation = collation.String
		if generated == "s" {
			col.Generated = nullString(def)
		} else {
			col.Default = nullString(def)
		}
		if generation := identityGeneration(identity); generation != "" {
			col.Identity = &ir.Identity{
				Generation: generation,
				Start:      nullInt(start),
				Increment:  nullInt(incr),
				MinValue:   nullInt(minV),
				MaxValue:   nullInt(maxV),
				Cache:      nullInt(cacheVal),
				Cycle:      cycle.Valid && cycle.Bool,
			}
		}
		t.Columns = append(t.Columns, &col)
		comments = withComment(comments, t.Key(), col.Name, desc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append(objects, comments...), nil
}

func identityGeneration(code string) string {
	switch code {
	case "a":
		return "ALWAYS"
	case "d":
		return "BY DEFAULT"
	}
	return ""
}

var referentialActions = map[string]string{
	"a": "NO ACTION",
	"r": "RESTRICT",
	"c": "CASCADE",
	"n": "SET NULL",
	"d": "SET DEFAULT",
}

var constraintTypes = map[string]ir.ConstraintType{
	"p": ir.ConstraintTypePrimaryKey,
	"u": ir.ConstraintTypeUnique,
	"f": ir.ConstraintTypeForeignKey,
	"c": ir.ConstraintTypeCheck,
}

func (i *Inspector) constraints(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "constraints", constraintsQuery, pattern, func(rows *sql.Rows) error {
		var (
			c                  ir.Constraint
			contype, def       string
			onDelete, onUpdate string
			desc               sql.NullString
		)
		if err := rows.Scan(&c.Schema, &c.Table, &c.Name, &contype, pq.Array(&c.Columns), &def,
			&c.ReferencedSchema, &c.ReferencedTable, pq.Array(&c.ReferencedColumns),
			&onDelete, &onUpdate, &c.Deferrable, &c.InitiallyDeferred, &desc); err != nil {
			return err
		}
		c.Type = constraintTypes[contype]
		switch c.Type {
		case ir.ConstraintTypeCheck:
			c.Expression = checkExpression(def)
			c.Columns = nil
		case ir.ConstraintTypeForeignKey:
			c.OnDelete = referentialActions[onDelete]
			c.OnUpdate = referentialActions[onUpdate]
		default:
			c.ReferencedSchema, c.ReferencedTable, c.ReferencedColumns = "", "", nil
		}
		objects = withComment(append(objects, &c), c.Key(), "", desc)
		return nil
	})
	return objects, err
}

// checkExpression strips the CHECK keyword and NOT VALID marker from
// pg_get_constraintdef output.
func checkExpression(def string) string {
	def = strings.TrimSpace(def)
	def = strings.TrimPrefix(def, "CHECK ")
	def = strings.TrimSuffix(def, " NOT VALID")
	return strings.TrimSpace(def)
}

func (i *Inspector) indexes(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "indexes", indexesQuery, pattern, func(rows *sql.Rows) error {
		var (
			idx           ir.Index
			predicate     sql.NullString
			columns, defs []string
			descending    []bool
			desc          sql.NullString
		)
		if err := rows.Scan(&idx.Schema, &idx.Table, &idx.Name, &idx.Unique, &idx.Method, &predicate,
			pq.Array(&columns), pq.Array(&defs), pq.Array(&descending), &desc); err != nil {
			return err
		}
		idx.Predicate = predicate.String
		for k := range defs {
			key := &ir.IndexKey{}
			if k < len(columns) && columns[k] != "" {
				key.Column = columns[k]
			} else {
				key.Expression = defs[k]
			}
			key.Descending = k < len(descending) && descending[k]
			idx.Keys = append(idx.Keys, key)
		}
		objects = withComment(append(objects, &idx), idx.Key(), "", desc)
		return nil
	})
	return objects, err
}

var volatilities = map[string]string{
	"i": "IMMUTABLE",
	"s": "STABLE",
	"v": "VOLATILE",
}

func (i *Inspector) routines(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "routines", routinesQuery, pattern, func(rows *sql.Rows) error {
		var (
			r            ir.Routine
			kind, args   string
			names, modes []string
			volatility   string
			desc         sql.NullString
		)
		if err := rows.Scan(&r.Schema, &r.Name, &kind, &args, pq.Array(&names), pq.Array(&modes),
			&r.ReturnType, &r.Language, &r.Body, &volatility, &r.Strict, &r.SecurityDefiner, &desc); err != nil {
			return err
		}
		r.Kind = ir.RoutineFunction
		if kind == "p" {
			r.Kind = ir.RoutineProcedure
			r.ReturnType = ""
		}
		r.Volatility = volatilities[volatility]
		r.Parameters = parseParameters(args, names, modes)
		objects = withComment(append(objects, &r), r.Key(), "", desc)
		return nil
	})
	return objects, err
}

// trigger type bits from pg_trigger.tgtype
const (
	triggerRow      = 1 << 0
	triggerBefore   = 1 << 1
	triggerInsert   = 1 << 2
	triggerDelete   = 1 << 3
	triggerUpdate   = 1 << 4
	triggerTruncate = 1 << 5
	triggerInstead  = 1 << 6
)

func (i *Inspector) triggers(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "triggers", triggersQuery, pattern, func(rows *sql.Rows) error {
		var (
			t      ir.Trigger
			tgtype int
			args   string
			nargs  int
			def    string
			desc   sql.NullString
		)
		if err := rows.Scan(&t.Schema, &t.Table, &t.Name, &tgtype, &t.FunctionSchema, &t.FunctionName,
			&args, &nargs, pq.Array(&t.UpdateColumns), &def, &desc); err != nil {
			return err
		}

		switch {
		case tgtype&triggerInstead != 0:
			t.Timing = "INSTEAD OF"
		case tgtype&triggerBefore != 0:
			t.Timing = "BEFORE"
		default:
			t.Timing = "AFTER"
		}
		for _, ev := range []struct {
			bit  int
			name string
		}{{triggerInsert, "INSERT"}, {triggerDelete, "DELETE"}, {triggerUpdate, "UPDATE"}, {triggerTruncate, "TRUNCATE"}} {
			if tgtype&ev.bit != 0 {
				t.Events = append(t.Events, ev.name)
			}
		}
		t.Level = "STATEMENT"
		if tgtype&triggerRow != 0 {
			t.Level = "ROW"
		}
		t.Arguments = triggerArguments(args, nargs)
		t.When = triggerCondition(def)
		if len(t.UpdateColumns) == 0 {
			t.UpdateColumns = nil
		}
		objects = withComment(append(objects, &t), t.Key(), "", desc)
		return nil
	})
	return objects, err
}

// triggerArguments splits tgargs as rendered by encode(tgargs, 'escape'):
// each argument is terminated by \000 and backslashes are doubled.
func triggerArguments(encoded string, n int) []string {
	if n == 0 {
		return nil
	}
	parts := strings.Split(encoded, `\000`)
	if len(parts) > n {
		parts = parts[:n]
	}
	for k, p := range parts {
		parts[k] = strings.ReplaceAll(p, `\\`, `\`)
	}
	return parts
}

// triggerCondition extracts the WHEN condition from pg_get_triggerdef.
func triggerCondition(def string) string {
	start := strings.Index(def, " WHEN (")
	end := strings.LastIndex(def, ") EXECUTE ")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(def[start+len(" WHEN (") : end])
}

func (i *Inspector) views(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "views", viewsQuery, pattern, func(rows *sql.Rows) error {
		var v ir.View
		var desc sql.NullString
		if err := rows.Scan(&v.Schema, &v.Name, &v.Definition, pq.Array(&v.Columns), &desc); err != nil {
			return err
		}
		objects = withComment(append(objects, &v), v.Key(), "", desc)
		return nil
	})
	return objects, err
}

var policyCommands = map[string]string{
	"r": "SELECT",
	"a": "INSERT",
	"w": "UPDATE",
	"d": "DELETE",
	"*": "ALL",
}

func (i *Inspector) policies(ctx context.Context, pattern string) ([]ir.Object, error) {
	var objects []ir.Object
	err := i.scanAll(ctx, "policies", policiesQuery, pattern, func(rows *sql.Rows) error {
		var (
			p    ir.Policy
			cmd  string
			desc sql.NullString
		)
		if err := rows.Scan(&p.Schema, &p.Table, &p.Name, &p.Permissive, &cmd, pq.Array(&p.Roles),
			&p.Using, &p.WithCheck, &desc); err != nil {
			return err
		}
		p.Command = policyCommands[cmd]
		objects = withComment(append(objects, &p), p.Key(), "", desc)
		return nil
	})
	return objects, err
}
