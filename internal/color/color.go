// Package color renders plan summaries with optional ANSI colors.
package color

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Bold   = "\033[1m"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool
}

// New creates a new Color instance. Colors stay off when stdout is not a
// terminal or NO_COLOR is set.
func New(enabled bool) *Color {
	return &Color{enabled: enabled && shouldEnableColor(os.Stdout.Fd())}
}

func shouldEnableColor(fd uintptr) bool {
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" || term == "" {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *Color) paint(code, text string) string {
	if !c.enabled {
		return text
	}
	return code + text + Reset
}

// Add colors additions green
func (c *Color) Add(text string) string { return c.paint(Green, text) }

// Change colors modifications yellow
func (c *Color) Change(text string) string { return c.paint(Yellow, text) }

// Destroy colors drops and warnings red
func (c *Color) Destroy(text string) string { return c.paint(Red, text) }

// Bold makes text bold
func (c *Color) Bold(text string) string { return c.paint(Bold, text) }

// PlanSymbol returns the symbol for a plan action
func (c *Color) PlanSymbol(action string) string {
	switch action {
	case "add", "create":
		return c.Add("+")
	case "change", "modify", "update":
		return c.Change("~")
	case "destroy", "drop", "delete":
		return c.Destroy("-")
	default:
		return " "
	}
}

// FormatPlanLine formats one object line of a plan
func (c *Color) FormatPlanLine(label, action string) string {
	return fmt.Sprintf("  %s %s", c.PlanSymbol(action), label)
}

func (c *Color) counts(added, modified, dropped int) string {
	// all three categories are shown even when zero
	parts := []string{
		c.Add(fmt.Sprintf("%d to add", added)),
		c.Change(fmt.Sprintf("%d to modify", modified)),
		c.Destroy(fmt.Sprintf("%d to drop", dropped)),
	}
	return strings.Join(parts, ", ")
}

// FormatSummaryLine formats the counts of one object kind
func (c *Color) FormatSummaryLine(kind string, added, modified, dropped int) string {
	return fmt.Sprintf("  %s: %s", kind, c.counts(added, modified, dropped))
}

// FormatPlanHeader formats the main plan header
func (c *Color) FormatPlanHeader(added, modified, dropped int) string {
	return fmt.Sprintf("Plan: %s.", c.counts(added, modified, dropped))
}
