// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmModel is a y/N prompt. Enter without an answer declines.
type confirmModel struct {
	question string
	style    lipgloss.Style
	answered bool
	accepted bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := message.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.answered, m.accepted = true, true
	case "n", "enter", "esc", "q", "ctrl+c":
		m.answered, m.accepted = true, false
	default:
		return m, nil
	}
	return m, tea.Quit
}

func (m confirmModel) View() string {
	if m.answered {
		answer := "no"
		if m.accepted {
			answer = "yes"
		}
		return m.style.Render(m.question) + " " + answer + "\n"
	}
	return m.style.Render(m.question) + " [y/N] "
}

// confirm asks question and reports whether the operator accepted. On a
// terminal it runs an interactive prompt; otherwise it reads one line
// from stdin.
func (a *app) confirm(question string) (bool, error) {
	if !a.terminal {
		fmt.Fprintf(a.stderr, "%s [y/N] ", question)
		return readAnswer(a.stdin)
	}
	p := a.printer()
	model := confirmModel{question: question, style: p.bold(p.theme.Warning)}
	final, err := tea.NewProgram(model,
		tea.WithContext(a.ctx),
		tea.WithInput(a.stdin),
		tea.WithOutput(a.stderr),
	).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && a.ctx.Err() != nil {
			return false, a.ctx.Err()
		}
		return false, err
	}
	return final.(confirmModel).accepted, nil
}

func readAnswer(r io.Reader) (bool, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
