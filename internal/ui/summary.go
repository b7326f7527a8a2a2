// Package ui renders run summaries and doctor checks for the terminal.
// Output is styled with lipgloss on a TTY and plain otherwise.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/exposer/internal/orchestration"
)

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes summaries, styled or plain.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter creates a printer. Styling is used only when styled is true.
func NewPrinter(w io.Writer, styled bool) *Printer {
	return &Printer{w: w, styled: styled}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) section(title string) {
	if p.styled {
		p.line("%s", sectionStyle.Render(title))
		return
	}
	p.line("")
	p.line("%s", title)
}

// Summary prints the outcome of a fleet run.
func (p *Printer) Summary(res *orchestration.Result) {
	p.line("%s %s", p.render(titleStyle, "exposer"), p.render(subtitleStyle, fmt.Sprintf("fleet %s, run %s", res.Fleet, res.RunID)))

	ok := res.Succeeded()
	p.section(fmt.Sprintf("Workloads (%d exposed, %d failed)", len(ok), len(res.Failures)))
	for _, name := range ok {
		e := res.Exports[name]
		p.line("  %s  %-20s %s", p.render(readyStyle, checkMark), name, p.render(dimStyle, e.Hostname))
	}
	for _, f := range res.Failures {
		p.line("  %s  %-20s %s: %s", p.render(failedStyle, crossMark), f.Workload, f.Kind, f.Message)
	}

	if len(res.Warnings) > 0 {
		p.section("Warnings")
		for _, w := range res.Warnings {
			blocked := ""
			if len(w.Workloads) > 0 {
				blocked = " (blocks " + strings.Join(w.Workloads, ", ") + ")"
			}
			p.line("  %s  %s: %s%s", p.render(warningStyle, warnMark), w.Subsystem, w.Message, blocked)
		}
	}

	if len(res.Advisories) > 0 {
		p.section("Credentials")
		for _, a := range res.Advisories {
			p.line("  %s  %s/%s from %s", p.render(dimStyle, "[..]"), a.Namespace, a.SecretName, a.ProviderID)
		}
	}

	if len(res.Exports) > 0 {
		p.section("Exports")
		names := make([]string, 0, len(res.Exports))
		for name := range res.Exports {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			e := res.Exports[name]
			p.line("  %-20s https://%s -> %s", name, e.Hostname, e.Service)
		}
	}
}

// Check is one doctor finding.
type Check struct {
	Name   string
	OK     bool
	Warn   bool
	Detail string
}

// Checks prints doctor findings under title.
func (p *Printer) Checks(title string, checks []Check) {
	p.section(title)
	p.line("  %s", strings.Repeat("-", 35))
	for _, c := range checks {
		mark := p.render(readyStyle, checkMark)
		switch {
		case c.Warn:
			mark = p.render(warningStyle, warnMark)
		case !c.OK:
			mark = p.render(failedStyle, crossMark)
		}
		if c.Detail != "" {
			p.line("  %s  %-20s %s", mark, c.Name, c.Detail)
		} else {
			p.line("  %s  %s", mark, c.Name)
		}
	}
}
