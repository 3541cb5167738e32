// Package report renders hook results the way users expect from pre-commit:
// one dotted status line per hook followed by details for failures.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/codysoyland/precommit/pkg/hook"
)

// Width is the column the status text ends at
const Width = 79

// ColorMode selects when output is colored
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color value
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("invalid color mode %q: want auto, always or never", s)
	}
}

// Printer writes results to w
type Printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	styles   map[hook.Status]lipgloss.Style
	dim      lipgloss.Style
}

// NewPrinter creates a printer. ColorAuto colors only terminals and honors
// NO_COLOR.
func NewPrinter(w io.Writer, mode ColorMode) *Printer {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	default:
		if os.Getenv("NO_COLOR") != "" {
			r.SetColorProfile(termenv.Ascii)
		}
	}

	return &Printer{
		w:        w,
		renderer: r,
		styles: map[hook.Status]lipgloss.Style{
			hook.StatusPassed:  r.NewStyle().Foreground(lipgloss.Color("2")),
			hook.StatusFailed:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			hook.StatusSkipped: r.NewStyle().Foreground(lipgloss.Color("6")),
		},
		dim: r.NewStyle().Faint(true),
	}
}

// Status renders the dotted status line for a result, without a newline
func (p *Printer) Status(res *hook.Result) string {
	suffix := string(res.Status)
	if res.Reason != "" {
		suffix = res.Reason + suffix
	}
	dots := Width - len(res.Name) - len(suffix)
	if dots < 1 {
		dots = 1
	}

	var b strings.Builder
	b.WriteString(res.Name)
	b.WriteString(strings.Repeat(".", dots))
	if res.Reason != "" {
		b.WriteString(res.Reason)
	}
	b.WriteString(p.styles[res.Status].Render(string(res.Status)))
	return b.String()
}

// Result writes the status line and, for failures or verbose hooks, the
// details block
func (p *Printer) Result(res *hook.Result) {
	fmt.Fprintln(p.w, p.Status(res))
	if res.Status == hook.StatusSkipped {
		return
	}
	if res.Status != hook.StatusFailed && !res.Verbose {
		return
	}

	fmt.Fprintln(p.w, p.dim.Render("- hook id: "+res.ID))
	if res.Verbose {
		fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("- duration: %.2fs", res.Duration.Seconds())))
	}
	if res.ExitCode != 0 {
		fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("- exit code: %d", res.ExitCode)))
	}
	if res.Modified {
		fmt.Fprintln(p.w, p.dim.Render("- files were modified by this hook"))
	}

	out := strings.TrimSpace(string(res.Output))
	if out != "" {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, out)
	}
	fmt.Fprintln(p.w)
}

// Line writes a plain message line
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}
