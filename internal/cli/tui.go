package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/depfix/pkg/detect"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ReviewModel - Interactive failure selection
// =============================================================================

// ReviewModel is the bubbletea model for choosing which failures to fix.
// Every failure starts selected.
type ReviewModel struct {
	Failures  []detect.Failure
	Checked   []bool
	Cursor    int
	Height    int
	Offset    int
	Confirmed bool
}

// NewReviewModel creates a review model with every failure selected.
func NewReviewModel(failures []detect.Failure) ReviewModel {
	checked := make([]bool, len(failures))
	for i := range checked {
		checked[i] = true
	}
	return ReviewModel{Failures: failures, Checked: checked, Height: 15}
}

func (m ReviewModel) Init() tea.Cmd {
	return nil
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Confirmed = false
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Failures)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Checked) > 0 {
				m.Checked[m.Cursor] = !m.Checked[m.Cursor]
			}
		case "a":
			all := !m.allChecked()
			for i := range m.Checked {
				m.Checked[i] = all
			}
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m ReviewModel) allChecked() bool {
	for _, c := range m.Checked {
		if !c {
			return false
		}
	}
	return true
}

// Selected returns the checked failures in their original order, or nothing
// when the review was aborted.
func (m ReviewModel) Selected() []detect.Failure {
	if !m.Confirmed {
		return nil
	}
	var out []detect.Failure
	for i, f := range m.Failures {
		if m.Checked[i] {
			out = append(out, f)
		}
	}
	return out
}

func (m ReviewModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select failures to fix"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  ⏎ fix selected  q skip all"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Failures))
	for i := m.Offset; i < end; i++ {
		f := m.Failures[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		box := "[ ]"
		if m.Checked[i] {
			box = "[x]"
		}

		line := fmt.Sprintf("%s%s %-40s %s", cursor, box, f.FailingTarget(), listDimStyle.Render(describe(f)))
		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case m.Checked[i]:
			b.WriteString(listNormalStyle.Render(line))
		default:
			b.WriteString(listDimStyle.Render(line))
		}
		b.WriteString("\n")
	}

	n := 0
	for _, c := range m.Checked {
		if c {
			n++
		}
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d of %d selected", n, len(m.Failures))))

	return b.String()
}

// describe summarizes the change a failure asks for.
func describe(f detect.Failure) string {
	switch f := f.(type) {
	case detect.StrictDeps:
		return fmt.Sprintf("add %d dep(s)", len(f.ToAdd))
	case detect.UnusedDeps:
		return fmt.Sprintf("remove %d dep(s)", len(f.ToRemove))
	case detect.UnresolvedReferences:
		return fmt.Sprintf("%d unresolved import(s)", len(f.Imports))
	}
	return f.Kind()
}

// reviewFailures runs the review list on stderr. It implements
// repair.ReviewFunc.
func reviewFailures(ctx context.Context, failures []detect.Failure) ([]detect.Failure, error) {
	if len(failures) == 0 {
		return nil, nil
	}
	p := tea.NewProgram(NewReviewModel(failures), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	return final.(ReviewModel).Selected(), nil
}
