package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(infoColor).
			Bold(true)

	helpNoteStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// HelpGroups orders the flag sections of the help screen. Flags tagged with
// one of these keys are listed under its title; untagged flags come first.
var HelpGroups = []kong.Group{
	{Key: "input", Title: "Input"},
	{Key: "analysis", Title: "Analysis"},
	{Key: "output", Title: "Output"},
	{Key: "diagnostics", Title: "Diagnostics", Description: "Metrics endpoint and log verbosity"},
}

// Example is one line of the help screen's Examples section
type Example struct {
	Args string
	Help string
}

// Examples shown below the flags
var Examples = []Example{
	{"128", "Small buffer for low latency"},
	{"256 --pitch", "Medium buffer with pitch detection"},
	{"512 --no-visual", "Large buffer, no visual feedback"},
	{"--source click:128:30s --no-log", "Thirty seconds of a 128 BPM click track"},
	{"--source song.flac", "Track a decoded audio file"},
	{"--metrics-addr :9090 --no-visual", "Expose Prometheus metrics while tracking"},
}

// helpRow is one aligned line: a styled left column and its description
type helpRow struct {
	left  string
	help  string
	extra string
}

// StyledHelpPrinter renders kong help with lipgloss styling: usage, the
// buffer-size argument, flags grouped by HelpGroups and examples
func StyledHelpPrinter(_ kong.HelpOptions) kong.HelpPrinter {
	return func(_ kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder
		model := ctx.Model

		sb.WriteString(helpTitleStyle.Render("Beat Detector 🎵"))
		sb.WriteString("\n")
		if model.Help != "" {
			sb.WriteString(helpDescStyle.Render(model.Help))
			sb.WriteString("\n")
		}

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(usageLine(model.Name, model.Node))
		sb.WriteString("\n")

		if rows := argumentRows(model.Node); len(rows) > 0 {
			writeSection(&sb, "Arguments:", "", rows, helpArgStyle)
		}

		ungrouped, grouped := flagRows(model.Node)
		if len(ungrouped) > 0 {
			writeSection(&sb, "Flags:", "", ungrouped, helpFlagStyle)
		}
		for _, g := range HelpGroups {
			if rows := grouped[g.Key]; len(rows) > 0 {
				writeSection(&sb, g.Title+":", g.Description, rows, helpFlagStyle)
			}
		}

		examples := make([]helpRow, 0, len(Examples))
		for _, ex := range Examples {
			examples = append(examples, helpRow{left: model.Name + " " + ex.Args, help: "# " + ex.Help})
		}
		writeExamples(&sb, examples)

		sb.WriteString("\n")
		_, err := io.WriteString(ctx.Stdout, sb.String())
		return err
	}
}

// usageLine lists positional arguments as [name] (optional) or <name>
func usageLine(name string, node *kong.Node) string {
	parts := []string{name}
	for _, arg := range node.Positional {
		parts = append(parts, positionalName(arg))
	}
	if len(node.Flags) > 0 {
		parts = append(parts, "[flags]")
	}
	return strings.Join(parts, " ")
}

func positionalName(arg *kong.Positional) string {
	if arg.Required {
		return "<" + arg.Name + ">"
	}
	return "[" + arg.Name + "]"
}

func argumentRows(node *kong.Node) []helpRow {
	rows := make([]helpRow, 0, len(node.Positional))
	for _, arg := range node.Positional {
		rows = append(rows, helpRow{left: positionalName(arg), help: arg.Help})
	}
	return rows
}

// flagRows splits visible flags into the untagged list and one list per
// group key, preserving declaration order
func flagRows(node *kong.Node) ([]helpRow, map[string][]helpRow) {
	var ungrouped []helpRow
	grouped := make(map[string][]helpRow)
	for _, f := range node.Flags {
		if f.Hidden {
			continue
		}
		row := helpRow{left: f.String(), help: f.Help}
		if f.HasDefault && f.Default != "" {
			row.extra = "(default: " + f.Default + ")"
		}
		if f.Group == nil {
			ungrouped = append(ungrouped, row)
			continue
		}
		grouped[f.Group.Key] = append(grouped[f.Group.Key], row)
	}
	return ungrouped, grouped
}

func writeSection(sb *strings.Builder, title, description string, rows []helpRow, style lipgloss.Style) {
	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(title))
	sb.WriteString("\n")
	if description != "" {
		sb.WriteString("  ")
		sb.WriteString(helpNoteStyle.Render(description))
		sb.WriteString("\n")
	}

	width := columnWidth(rows)
	for _, row := range rows {
		sb.WriteString("  ")
		sb.WriteString(style.Render(row.left))
		if row.help != "" || row.extra != "" {
			sb.WriteString(strings.Repeat(" ", width-lipgloss.Width(row.left)+2))
			sb.WriteString(row.help)
		}
		if row.extra != "" {
			sb.WriteString(" ")
			sb.WriteString(helpNoteStyle.Render(row.extra))
		}
		sb.WriteString("\n")
	}
}

func writeExamples(sb *strings.Builder, rows []helpRow) {
	if len(rows) == 0 {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render("Examples:"))
	sb.WriteString("\n")
	width := columnWidth(rows)
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("  %-*s  ", width, row.left))
		sb.WriteString(helpNoteStyle.Render(row.help))
		sb.WriteString("\n")
	}
}

func columnWidth(rows []helpRow) int {
	width := 0
	for _, row := range rows {
		width = max(width, lipgloss.Width(row.left))
	}
	return width
}
