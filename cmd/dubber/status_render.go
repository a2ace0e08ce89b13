package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// statusLevel is the bracketed severity tag on a status line and the colour
// the whole line takes on a terminal.
type statusLevel struct {
	tag   string
	color text.Color
}

var (
	levelInfo  = statusLevel{tag: "INFO", color: text.FgBlue}
	levelOK    = statusLevel{tag: "OK", color: text.FgGreen}
	levelWarn  = statusLevel{tag: "WARN", color: text.FgYellow}
	levelError = statusLevel{tag: "ERROR", color: text.FgRed}
)

const statusLabelWidth = 22

// formatStatus renders one "  Label:   [TAG] message" line.
func formatStatus(label string, level statusLevel, message string, colorize bool) string {
	line := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", level.tag)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return text.Escape(line, level.color.EscapeSeq())
	}
	return line
}

// statusReport collects titled sections of status lines for `dubber status`.
type statusReport struct {
	colorize bool
	lines    []string
}

func newStatusReport(out io.Writer) *statusReport {
	return &statusReport{colorize: shouldColorize(out)}
}

// section starts a new titled block, separated from the previous one by a
// blank line.
func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	header := "== " + strings.TrimSpace(title) + " =="
	if r.colorize {
		header = text.Escape(header, text.FgBlue.EscapeSeq())
	}
	r.lines = append(r.lines, header)
}

func (r *statusReport) add(label string, level statusLevel, message string) {
	r.lines = append(r.lines, formatStatus(label, level, message, r.colorize))
}

func (r *statusReport) String() string {
	return strings.Join(r.lines, "\n")
}

// shouldColorize reports whether out is a terminal and NO_COLOR is unset.
func shouldColorize(out io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
