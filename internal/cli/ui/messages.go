package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a multi-line status block printed at the end of a command
type Message struct {
	Level Level
	// Context is the upper-cased headline, e.g. "BUILD FAILED"
	Context     string
	Problem     string
	Details     []string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders m.
//
// Example output:
//
//	❌ BUILD FAILED: 1 of 2 packages failed
//	   world.opensemanticworld.package.foo@v1.0.0: generate: exit status 1
//
//	   → Rerun with details: oswgen build --verbose
func Format(m Message) string {
	var b strings.Builder

	var head, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		head = color.New(color.FgYellow, color.Bold)
		body = color.New(color.FgYellow)
		symbol = "⚠️"
	case LevelInfo:
		head = color.New(color.FgCyan, color.Bold)
		body = color.New(color.FgCyan)
		symbol = "ℹ️"
	default:
		head = color.New(color.FgRed, color.Bold)
		body = color.New(color.FgRed)
		symbol = "❌"
	}
	if m.NoColor {
		head.DisableColor()
		body.DisableColor()
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	for _, d := range m.Details {
		body.Fprintf(&b, "   %s\n", d)
	}

	if len(m.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if m.NoColor {
			yellow.DisableColor()
		}
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		cyan := color.New(color.FgCyan)
		if m.NoColor {
			cyan.DisableColor()
		}
		b.WriteString("\n")
		for _, h := range m.Hints {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}

	return b.String()
}

// Write writes the formatted message to w
func Write(w io.Writer, m Message) {
	fmt.Fprint(w, Format(m))
}

// Success renders a one-line success message
func Success(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// Failure renders a one-line failure message
func Failure(message string, noColor bool) string {
	red := color.New(color.FgRed, color.Bold)
	if noColor {
		red.DisableColor()
	}
	return red.Sprintf("✗ %s", message)
}

// BuildFailed summarizes the failed packages of a batch
func BuildFailed(failed, total int, details []string, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "build failed",
		Problem: fmt.Sprintf("%d of %d packages failed", failed, total),
		Details: details,
		Hints: []string{
			"Rerun with details: oswgen build --verbose",
			"Get help: oswgen build --help",
		},
		NoColor: noColor,
	}
}

// NoBuildsFound reports an empty history listing for a package
func NoBuildsFound(pkg string, suggestions []string, noColor bool) Message {
	return Message{
		Level:       LevelWarning,
		Context:     "no builds",
		Problem:     fmt.Sprintf("No recorded builds for '%s'.", pkg),
		Suggestions: suggestions,
		Hints:       []string{"See all builds: oswgen history"},
		NoColor:     noColor,
	}
}

// NoPackages reports that there is nothing to build
func NoPackages(noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "no packages",
		Problem: "No packages given and none configured.",
		Hints: []string{
			"Pass references: oswgen build world.opensemanticworld.package.common@v0.1.0",
			"Or list them under 'packages:' in oswgen.yml",
		},
		NoColor: noColor,
	}
}
