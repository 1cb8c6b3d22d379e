package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/interop-stubs/stubs"
	"github.com/wippyai/interop-stubs/typesys"
)

func newBrowseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse FILE",
		Short: "Browse the emitted stubs interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.load(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			results, err := emitAll(cmd.Context(), d.Methods, cfg, listingJobs)
			if err != nil {
				return err
			}
			p := tea.NewProgram(newBrowseModel(args[0], d.Methods, results), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

type pane int

const (
	paneList pane = iota
	paneBody
)

// listWidth is the width of the method list column.
const listWidth = 40

type browseModel struct {
	viewport viewport.Model
	filename string
	methods  []*typesys.MethodDef
	results  []stubs.Result
	selected int
	focus    pane
	ready    bool
}

func newBrowseModel(filename string, methods []*typesys.MethodDef, results []stubs.Result) *browseModel {
	return &browseModel{
		filename: filename,
		methods:  methods,
		results:  results,
	}
}

func (m *browseModel) Init() tea.Cmd { return nil }

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := max(msg.Width-listWidth-2, 20)
		height := max(msg.Height-4, 5)
		if !m.ready {
			m.viewport = viewport.New(width, height)
			m.ready = true
		} else {
			m.viewport.Width = width
			m.viewport.Height = height
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.focus == paneList {
				m.focus = paneBody
			} else {
				m.focus = paneList
			}
			return m, nil
		}
		if m.focus == paneList {
			switch msg.String() {
			case "up", "k":
				if m.selected > 0 {
					m.selected--
					m.refresh()
				}
			case "down", "j":
				if m.selected < len(m.methods)-1 {
					m.selected++
					m.refresh()
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *browseModel) refresh() {
	if !m.ready || len(m.results) == 0 {
		return
	}
	m.viewport.SetContent(m.detail(m.selected))
	m.viewport.GotoTop()
}

func (m *browseModel) detail(i int) string {
	r := m.results[i]
	var b strings.Builder
	b.WriteString(header(m.methods[i], r, true))
	b.WriteString("\n")
	if r.Reason != nil {
		b.WriteString(errorStyle.Render(r.Reason.Error()))
		b.WriteString("\n")
	}
	if r.NativeMethod != nil {
		fmt.Fprintf(&b, "target %s!%s\n", r.NativeMethod.Module(), r.NativeMethod.EntryPoint())
	}
	if r.FixupField != nil {
		fmt.Fprintf(&b, "cell   %s\n", r.FixupField)
	}
	b.WriteString("\n")
	b.WriteString(r.Body.String())
	return b.String()
}

func (m *browseModel) View() string {
	if len(m.methods) == 0 {
		return "No methods declared.\n\nPress q to quit."
	}
	if !m.ready {
		return "Loading..."
	}

	var list strings.Builder
	for i, meth := range m.methods {
		name := meth.OwningType().Name() + "." + meth.Name()
		if len(name) > listWidth-2 {
			name = name[:listWidth-3] + "…"
		}
		switch {
		case i == m.selected:
			list.WriteString(selectedStyle.Render("> " + name))
		case m.results[i].Kind == stubs.DiagnosticStub:
			list.WriteString("  " + errorStyle.Render(name))
		default:
			list.WriteString("  " + name)
		}
		list.WriteString("\n")
	}

	left := lipgloss.NewStyle().Width(listWidth).Render(list.String())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.viewport.View())

	help := "↑/↓ select • tab scroll stub • q quit"
	if m.focus == paneBody {
		help = "↑/↓ scroll • tab back to list • q quit"
	}
	return titleStyle.Render("Stubs") + " " + m.filename + "\n\n" + body + "\n" + helpStyle.Render(help)
}
