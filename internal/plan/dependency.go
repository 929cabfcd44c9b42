package plan

import (
	"encoding/json"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/logger"
	"github.com/pgschema/pgdiff/internal/util"
)

// Dependencies builds the dependency graph of a snapshot. Every object is a
// node; an edge A -> B means A has to exist before B can be created.
func Dependencies(snap *ir.Snapshot) *Graph {
	c := newCatalog(snap)
	g := NewGraph()
	for _, k := range snap.Keys() {
		g.AddNode(k)
	}

	extensions := snap.KeysOf(ir.KindExtension)
	for _, obj := range snap.Objects() {
		key := obj.Key()

		if key.Kind != ir.KindSchema && key.Kind != ir.KindExtension {
			if schema := (ir.Key{Name: key.Schema, Kind: ir.KindSchema}); key.Schema != "" && snap.Has(schema) {
				g.AddEdge(Edge{From: schema, To: key})
			}
			for _, ext := range extensions {
				g.AddEdge(Edge{From: ext, To: key})
			}
		}
		if key.Kind.TableScoped() {
			g.AddEdge(Edge{From: key.TableKey(), To: key})
		}

		switch o := obj.(type) {
		case *ir.Extension:
			if schema := (ir.Key{Name: o.Schema, Kind: ir.KindSchema}); snap.Has(schema) {
				g.AddEdge(Edge{From: schema, To: key})
			}
		case *ir.CompositeType:
			for _, f := range o.Fields {
				c.typeEdges(g, f.DataType, o.Schema, key)
			}
		case *ir.DomainType:
			c.typeEdges(g, o.BaseType, o.Schema, key)
			for _, dc := range o.Constraints {
				c.expressionEdges(g, dc.Expression, o.Schema, key)
			}
		case *ir.Table:
			for _, col := range o.Columns {
				c.typeEdges(g, col.DataType, o.Schema, key)
				if col.Default != nil {
					c.expressionEdges(g, *col.Default, o.Schema, key)
				}
				if col.Generated != nil {
					c.expressionEdges(g, *col.Generated, o.Schema, key)
				}
			}
		case *ir.Constraint:
			c.constraintEdges(g, o)
		case *ir.Index:
			for _, k := range o.Keys {
				if k.Expression != "" {
					c.expressionEdges(g, k.Expression, o.Schema, key)
				}
			}
			if o.Predicate != "" {
				c.expressionEdges(g, o.Predicate, o.Schema, key)
			}
		case *ir.Routine:
			c.routineEdges(g, o)
		case *ir.Trigger:
			if fn := o.FunctionKey(); snap.Has(fn) {
				g.AddEdge(Edge{From: fn, To: key})
			}
		case *ir.View:
			c.queryEdges(g, o.Definition, o.Schema, key, false)
		case *ir.Policy:
			for _, expr := range []string{o.Using, o.WithCheck} {
				if expr != "" {
					c.expressionEdges(g, expr, o.Schema, key)
				}
			}
		case *ir.Comment:
			if snap.Has(o.Target) {
				g.AddEdge(Edge{From: o.Target, To: key})
			}
		}
	}
	return g
}

// catalog resolves names found in definitions to snapshot keys.
type catalog struct {
	snap      *ir.Snapshot
	relations map[util.QualifiedReference][]ir.Key
	types     map[util.QualifiedReference]ir.Key
	routines  map[util.QualifiedReference][]ir.Key
}

func newCatalog(snap *ir.Snapshot) *catalog {
	c := &catalog{
		snap:      snap,
		relations: make(map[util.QualifiedReference][]ir.Key),
		types:     make(map[util.QualifiedReference]ir.Key),
		routines:  make(map[util.QualifiedReference][]ir.Key),
	}
	for _, obj := range snap.Objects() {
		key := obj.Key()
		ref := util.QualifiedReference{Schema: key.Schema, Name: key.Name}
		switch key.Kind {
		case ir.KindTable, ir.KindView, ir.KindSequence:
			c.relations[ref] = append(c.relations[ref], key)
		case ir.KindEnum, ir.KindComposite, ir.KindDomain:
			c.types[ref] = key
		case ir.KindFunction, ir.KindProcedure:
			r := obj.(*ir.Routine)
			ref.Name = r.Name
			c.routines[ref] = append(c.routines[ref], key)
		}
	}
	return c
}

// candidates resolves an unqualified name against the owning schema first
// and public second.
func candidates(ref util.QualifiedReference, schema string) []util.QualifiedReference {
	if ref.Schema != "" {
		return []util.QualifiedReference{ref}
	}
	refs := []util.QualifiedReference{{Schema: schema, Name: ref.Name}}
	if schema != "public" {
		refs = append(refs, util.QualifiedReference{Schema: "public", Name: ref.Name})
	}
	return refs
}

func (c *catalog) typeEdges(g *Graph, dataType, schema string, to ir.Key) {
	typeSchema, name, ok := ir.TypeReference(dataType, schema)
	if !ok {
		return
	}
	for _, ref := range candidates(util.QualifiedReference{Name: name}, typeSchema) {
		if k, ok := c.types[ref]; ok {
			g.AddEdge(Edge{From: k, To: to})
			return
		}
	}
}

// expressionEdges links the relations, routines and types named by a SQL
// expression. Expressions are wrapped in a SELECT so the parser sees a
// complete statement.
func (c *catalog) expressionEdges(g *Graph, expr, schema string, to ir.Key) {
	c.queryEdges(g, "SELECT "+expr, schema, to, false)
}

// queryEdges links the objects referenced by SQL text. Text the parser
// rejects falls back to a lexical scan for qualified names.
func (c *catalog) queryEdges(g *Graph, sql, schema string, to ir.Key, weak bool) {
	refs, err := parseReferences(sql)
	if err != nil {
		logger.Get().Debug("Falling back to lexical reference scan", "object", to.String(), "error", err)
		c.lexicalEdges(g, sql, to, weak)
		return
	}
	for _, ref := range refs.relations {
		for _, cand := range candidates(ref, schema) {
			for _, k := range c.relations[cand] {
				g.AddEdge(Edge{From: k, To: to, Weak: weak})
			}
		}
	}
	for _, ref := range refs.functions {
		for _, cand := range candidates(ref, schema) {
			for _, k := range c.routines[cand] {
				g.AddEdge(Edge{From: k, To: to, Weak: weak})
			}
		}
	}
	for _, ref := range refs.types {
		for _, cand := range candidates(ref, schema) {
			if k, ok := c.types[cand]; ok {
				g.AddEdge(Edge{From: k, To: to, Weak: weak})
				break
			}
		}
	}
	// regclass literals such as nextval('app.seq'::regclass) are invisible
	// to the parse tree
	for _, ref := range util.ScanQualifiedNames(sql) {
		for _, k := range c.relations[ref] {
			g.AddEdge(Edge{From: k, To: to, Weak: weak})
		}
	}
}

func (c *catalog) lexicalEdges(g *Graph, text string, to ir.Key, weak bool) {
	for _, ref := range util.ScanQualifiedNames(text) {
		for _, k := range c.relations[ref] {
			g.AddEdge(Edge{From: k, To: to, Weak: weak})
		}
		for _, k := range c.routines[ref] {
			g.AddEdge(Edge{From: k, To: to, Weak: weak})
		}
		if k, ok := c.types[ref]; ok {
			g.AddEdge(Edge{From: k, To: to, Weak: weak})
		}
	}
}

func (c *catalog) constraintEdges(g *Graph, con *ir.Constraint) {
	key := con.Key()
	switch con.Type {
	case ir.ConstraintTypeCheck:
		c.expressionEdges(g, con.Expression, con.Schema, key)
	case ir.ConstraintTypeForeignKey:
		ref := con.ReferencedKey()
		if !c.snap.Has(ref) {
			return
		}
		g.AddEdge(Edge{From: ref, To: key})
		g.AddEdge(Edge{From: ref, To: con.Key().TableKey(), Weak: true, Via: []ir.Key{key}})
		for _, target := range c.snap.Constraints(ref) {
			if (target.Type == ir.ConstraintTypePrimaryKey || target.Type == ir.ConstraintTypeUnique) &&
				sameColumns(target.Columns, con.ReferencedColumns) {
				g.AddEdge(Edge{From: target.Key(), To: key})
			}
		}
		for _, obj := range c.snap.TableObjects(ref, ir.KindIndex) {
			idx := obj.(*ir.Index)
			if idx.Unique && idx.Predicate == "" && sameColumns(indexColumns(idx), con.ReferencedColumns) {
				g.AddEdge(Edge{From: idx.Key(), To: key})
			}
		}
	}
}

func (c *catalog) routineEdges(g *Graph, r *ir.Routine) {
	key := r.Key()
	for _, p := range r.Parameters {
		c.typeEdges(g, p.DataType, r.Schema, key)
	}
	if r.ReturnType != "" {
		c.typeEdges(g, r.ReturnType, r.Schema, key)
	}
	// SQL bodies are validated at creation; other languages resolve names
	// at call time, so their references only order the output
	if strings.EqualFold(r.Language, "sql") {
		c.queryEdges(g, r.Body, r.Schema, key, false)
		return
	}
	c.lexicalEdges(g, r.Body, key, true)
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func indexColumns(idx *ir.Index) []string {
	cols := make([]string, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		if k.Column == "" {
			return nil
		}
		cols = append(cols, k.Column)
	}
	return cols
}

// sqlReferences are the names a parse tree mentions. Schema is empty for
// unqualified names.
type sqlReferences struct {
	relations []util.QualifiedReference
	functions []util.QualifiedReference
	types     []util.QualifiedReference
}

func parseReferences(sql string) (*sqlReferences, error) {
	tree, err := pg_query.ParseToJSON(sql)
	if err != nil {
		return nil, err
	}
	var root any
	if err := json.Unmarshal([]byte(tree), &root); err != nil {
		return nil, err
	}
	refs := &sqlReferences{}
	refs.walk(root)
	return refs, nil
}

func (r *sqlReferences) walk(node any) {
	switch n := node.(type) {
	case map[string]any:
		if rel, ok := n["relname"].(string); ok && rel != "" {
			schema, _ := n["schemaname"].(string)
			r.relations = append(r.relations, util.QualifiedReference{Schema: schema, Name: rel})
		}
		for key, child := range n {
			switch key {
			case "funcname":
				if ref, ok := nameList(child); ok {
					r.functions = append(r.functions, ref)
				}
			case "typeName":
				if m, ok := child.(map[string]any); ok {
					if ref, ok := nameList(m["names"]); ok {
						r.types = append(r.types, ref)
					}
				}
			}
			r.walk(child)
		}
	case []any:
		for _, child := range n {
			r.walk(child)
		}
	}
}

// nameList decodes a list of String nodes such as a function or type name.
func nameList(v any) (util.QualifiedReference, bool) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return util.QualifiedReference{}, false
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		m, _ := item.(map[string]any)
		s, _ := m["String"].(map[string]any)
		sval, _ := s["sval"].(string)
		if sval == "" {
			return util.QualifiedReference{}, false
		}
		parts = append(parts, sval)
	}
	if parts[0] == "pg_catalog" {
		return util.QualifiedReference{}, false
	}
	if len(parts) == 1 {
		return util.QualifiedReference{Name: parts[0]}, true
	}
	return util.QualifiedReference{Schema: parts[len(parts)-2], Name: parts[len(parts)-1]}, true
}
