package pgdiff

import (
	"github.com/pgschema/pgdiff/internal/ddl"
	"github.com/pgschema/pgdiff/internal/diff"
	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/plan"
)

// Re-export important types for external consumption

// Snapshot is an immutable set of catalog objects read from one database.
type Snapshot = ir.Snapshot

// Metadata describes where and when a snapshot was taken.
type Metadata = ir.Metadata

// Key identifies one catalog object.
type Key = ir.Key

// ChangeSet lists every added, removed and modified object.
type ChangeSet = diff.ChangeSet

// Plan is the ordered set of steps that applies a change set.
type Plan = plan.Plan

// CycleError reports objects whose ordering constraints form a cycle.
type CycleError = plan.CycleError

// Result holds the generated statements, notes and skipped changes.
type Result = ddl.Result

// Statement is one generated SQL statement.
type Statement = ddl.Statement

// GenerationError reports the step at which statement generation stopped.
type GenerationError = ddl.GenerationError
