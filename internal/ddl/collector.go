package ddl

import (
	"strings"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/plan"
)

// Statement is a single SQL statement with the step it came from
type Statement struct {
	SQL    string      `json:"sql"`
	Kind   ir.Kind     `json:"kind"`
	Action plan.Action `json:"action"`
	Path   string      `json:"path"` // Key.String() of the object
	// Disabled statements are rendered as SQL comments.
	Disabled bool `json:"disabled,omitempty"`
}

// stmtContext describes the step currently being emitted
type stmtContext struct {
	kind     ir.Kind
	action   plan.Action
	path     string
	disabled bool
}

// collector collects statements with their context
type collector struct {
	statements []Statement
}

func (c *collector) collect(ctx *stmtContext, sql string) {
	if ctx == nil {
		return
	}
	c.statements = append(c.statements, Statement{
		SQL:      strings.TrimSpace(sql),
		Kind:     ctx.kind,
		Action:   ctx.action,
		Path:     ctx.path,
		Disabled: ctx.disabled,
	})
}

func (c *collector) mark() int {
	return len(c.statements)
}

// truncate discards everything collected after mark.
func (c *collector) truncate(mark int) {
	c.statements = c.statements[:mark]
}
