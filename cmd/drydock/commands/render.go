// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/drydock-dev/drydock/lib/deploy"
)

// theme is the palette for command output, in ANSI 256 colors.
type theme struct {
	Success lipgloss.Color
	Failure lipgloss.Color
	Warning lipgloss.Color
	Faint   lipgloss.Color
	Accent  lipgloss.Color
	Border  lipgloss.Color
}

var defaultTheme = theme{
	Success: lipgloss.Color("42"),
	Failure: lipgloss.Color("196"),
	Warning: lipgloss.Color("214"),
	Faint:   lipgloss.Color("245"),
	Accent:  lipgloss.Color("39"),
	Border:  lipgloss.Color("240"),
}

// printer renders styled output to one writer. Without color every
// style renders as plain text.
type printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	theme    theme
	color    bool
}

func (a *app) printer() *printer {
	color := a.terminal && !a.noColor && a.getenv("NO_COLOR") == ""
	renderer := lipgloss.NewRenderer(a.stdout)
	if color {
		renderer.SetColorProfile(termenv.ANSI256)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &printer{w: a.stdout, renderer: renderer, theme: defaultTheme, color: color}
}

func (p *printer) style(color lipgloss.Color) lipgloss.Style {
	return p.renderer.NewStyle().Foreground(color)
}

func (p *printer) bold(color lipgloss.Color) lipgloss.Style {
	return p.style(color).Bold(true)
}

func (p *printer) println(text string) {
	fmt.Fprintln(p.w, text)
}

func (p *printer) success(format string, args ...any) {
	p.println(p.bold(p.theme.Success).Render("✓ ") + fmt.Sprintf(format, args...))
}

func (p *printer) warn(format string, args ...any) {
	p.println(p.bold(p.theme.Warning).Render("! ") + fmt.Sprintf(format, args...))
}

func (p *printer) faint(format string, args ...any) {
	p.println(p.style(p.theme.Faint).Render(fmt.Sprintf(format, args...)))
}

// table renders rows under headers. highlight marks the rows drawn in
// the accent color.
func (p *printer) table(headers []string, rows [][]string, highlight func(row int) bool) {
	styles := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.style(p.theme.Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			cell := p.renderer.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return cell.Bold(true)
			case highlight != nil && highlight(row):
				return cell.Foreground(p.theme.Accent).Bold(true)
			}
			return cell
		})
	p.println(styles.Render())
}

// deploySummary renders the result of a deploy.
func (p *printer) deploySummary(app, host string, result deploy.Result) {
	label := p.style(p.theme.Faint).Width(11)
	line := func(name, value string) {
		if value != "" {
			p.println("  " + label.Render(name) + value)
		}
	}

	switch result.Outcome {
	case deploy.OutcomeSuccess:
		p.success("deployed %s %s to %s in %s", app, result.Version, host, result.Duration.Round(time.Millisecond))
	case deploy.OutcomeRolledBack:
		p.println(p.bold(p.theme.Warning).Render("✗ ") +
			fmt.Sprintf("deploy of %s %s failed; rolled back to %s", app, result.Version, rollbackTarget(result)))
	default:
		p.println(p.bold(p.theme.Failure).Render("✗ ") +
			fmt.Sprintf("deploy of %s %s failed (%s)", app, result.Version, result.Outcome))
	}

	line("previous", result.Previous)
	if result.Checksum != "" {
		line("bundle", fmt.Sprintf("%s, %s", humanBytes(result.Size), shortChecksum(result.Checksum)))
	}
	if result.UploadAttempts > 0 {
		line("upload", fmt.Sprintf("%s, %d attempt(s)", result.Transfer.Used, result.UploadAttempts))
	}
	line("restarted", strings.Join(result.Restarted, " "))
	line("started", strings.Join(result.Started, " "))
	line("stopped", strings.Join(result.Stopped, " "))
	line("pruned", strings.Join(result.Pruned, " "))

	if result.Err != nil {
		p.println("")
		p.errorBlock("error", result.Err)
	}
	if result.RollbackErr != nil {
		p.errorBlock("rollback", result.RollbackErr)
	}
}

// errorBlock prints err and the hints of any StageError in it.
func (p *printer) errorBlock(title string, err error) {
	p.println(p.bold(p.theme.Failure).Render(title+":") + " " + err.Error())
	var stageErr *deploy.StageError
	if errors.As(err, &stageErr) {
		for _, hint := range stageErr.Hints {
			p.println("  " + p.style(p.theme.Accent).Render("hint:") + " " + hint)
		}
	}
}

func rollbackTarget(result deploy.Result) string {
	if result.Previous == "" || result.Previous == result.Version {
		return "the previous release"
	}
	return result.Previous
}

func shortChecksum(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}

func humanBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	value, exponent := float64(size)/unit, 0
	for value >= unit && exponent < 3 {
		value /= unit
		exponent++
	}
	return fmt.Sprintf("%.1f %ciB", value, "KMGT"[exponent])
}
