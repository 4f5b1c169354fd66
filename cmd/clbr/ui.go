// # cmd/clbr/ui.go
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	privateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
	private     bool
}

func (i item) Title() string {
	if i.private {
		return privateStyle.Render(i.title)
	}
	return i.title
}
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list       list.Model
	outlines   []*Outline
	lastUpdate time.Time
}

type updateMsg struct {
	outlines []*Outline
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.outlines = mergeOutlines(m.outlines, msg.outlines)
		m.lastUpdate = time.Now()
		m.list.SetItems(outlineItems(m.outlines))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := fmt.Sprintf("%d modules", len(m.outlines))
	if !m.lastUpdate.IsZero() {
		status += " · updated " + m.lastUpdate.Format("15:04:05")
	}
	return docStyle.Render(
		titleStyle("clbr — structure browser") + "\n" +
			m.list.View() + "\n" +
			statusStyle.Render(status),
	)
}

func mergeOutlines(current, updates []*Outline) []*Outline {
	byModule := make(map[string]int, len(current))
	for i, o := range current {
		byModule[o.Module] = i
	}
	for _, o := range updates {
		if i, ok := byModule[o.Module]; ok {
			current[i] = o
		} else {
			byModule[o.Module] = len(current)
			current = append(current, o)
		}
	}
	return current
}

func outlineItems(outlines []*Outline) []list.Item {
	var items []list.Item
	for _, o := range outlines {
		for _, e := range o.Entities {
			items = appendItems(items, o.Module, "", e)
		}
	}
	return items
}

func appendItems(items []list.Item, module, prefix string, e OutlineEntry) []list.Item {
	name := e.Name
	if prefix != "" {
		name = prefix + "." + e.Name
	}
	title := fmt.Sprintf("%s %s", e.Kind, name)
	if e.Signature != "" {
		title += "(" + e.Signature + ")"
	}
	items = append(items, item{
		title:   title,
		desc:    fmt.Sprintf("%s · lines %d-%d · %s", module, e.StartLine, e.EndLine, e.Visibility),
		private: strings.EqualFold(e.Visibility, "private"),
	})
	for _, child := range e.Children {
		items = appendItems(items, module, name, child)
	}
	return items
}

func (a *App) RunUI() error {
	delegate := list.NewDefaultDelegate()
	l := list.New(outlineItems(a.outlines), delegate, 0, 0)
	l.Title = "Entities"
	l.SetShowTitle(true)

	m := model{list: l, outlines: a.outlines}
	a.teaProgram = tea.NewProgram(m, tea.WithAltScreen())
	_, err := a.teaProgram.Run()
	return err
}
