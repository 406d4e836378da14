package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// InspectData is the payload of the inspect view.
type InspectData struct {
	// Title names the inspected file.
	Title string
	Rows  []Row
}

// Row is one client call. Ordering is empty for everything but events.
type Row struct {
	Timeline string
	Kind     string
	Ordering string
	Name     string
	Attrs    []Attr
}

// Attr is a formatted attribute.
type Attr struct {
	Key   string
	Value string
}

// detailHeight is the number of attribute lines visible at once.
const detailHeight = 8

// InspectModel is a Bubble Tea model that lists client calls in a table and
// shows the attributes of the selected call below it.
type InspectModel struct {
	data     InspectData
	table    table.Model
	detail   viewport.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(data InspectData) InspectModel {
	rows := make([]table.Row, len(data.Rows))
	for i, r := range data.Rows {
		rows[i] = table.Row{r.Timeline, r.Kind, r.Ordering, r.Name}
	}

	m := InspectModel{
		data: data,
		table: table.New(
			table.WithColumns(inspectColumns(80)),
			table.WithRows(rows),
			table.WithFocused(true),
			table.WithHeight(10),
		),
		detail: viewport.New(76, detailHeight),
		width:  80,
		height: 24,
	}
	m.refreshDetail()
	return m
}

func inspectColumns(width int) []table.Column {
	const timeline, kind, ordering = 24, 16, 10
	name := max(width-timeline-kind-ordering-8, 10)
	return []table.Column{
		{Title: "Timeline", Width: timeline},
		{Title: "Kind", Width: kind},
		{Title: "Ordering", Width: ordering},
		{Title: "Name", Width: name},
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.DetailDown):
			m.detail.SetYOffset(m.detail.YOffset + 1)
			return m, nil
		case key.Matches(msg, keys.DetailUp):
			m.detail.SetYOffset(m.detail.YOffset - 1)
			return m, nil
		}
	}

	cursor := m.table.Cursor()
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	if m.table.Cursor() != cursor {
		m.refreshDetail()
	}
	return m, cmd
}

func (m *InspectModel) resize(width, height int) {
	m.width, m.height = width, height
	m.table.SetColumns(inspectColumns(width))
	m.table.SetWidth(width)
	// Title, box border and help take seven lines.
	m.table.SetHeight(max(height-detailHeight-7, 3))
	m.detail.Width = max(width-4, 10)
	m.detail.Height = detailHeight
	m.refreshDetail()
}

// Selected returns the row under the cursor.
func (m InspectModel) Selected() (Row, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.data.Rows) {
		return Row{}, false
	}
	return m.data.Rows[i], true
}

func (m *InspectModel) refreshDetail() {
	m.detail.SetContent(detailContent(m.Selected()))
	m.detail.GotoTop()
}

func detailContent(r Row, ok bool) string {
	if !ok {
		return LabelStyle.Render("no calls recorded")
	}

	var b strings.Builder
	b.WriteString(KindStyle(r.Kind).Render(r.Kind))
	if r.Name != "" {
		b.WriteString(" " + ValueStyle.Render(r.Name))
	}
	b.WriteString("\n")
	if len(r.Attrs) == 0 {
		b.WriteString(LabelStyle.Render("no attributes"))
		return b.String()
	}
	for _, a := range r.Attrs {
		b.WriteString(LabelStyle.Render(a.Key+" = ") + ValueStyle.Render(a.Value) + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.data.Title))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(BoxStyle.Render(m.detail.View()))

	help := HelpStyle.Render("up/down select, J/K scroll attributes, q quit")
	return b.String() + "\n" + help
}

// keyMap defines key bindings not handled by the table.
type keyMap struct {
	Quit       key.Binding
	DetailDown key.Binding
	DetailUp   key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	DetailDown: key.NewBinding(
		key.WithKeys("J"),
		key.WithHelp("J", "scroll attributes down"),
	),
	DetailUp: key.NewBinding(
		key.WithKeys("K"),
		key.WithHelp("K", "scroll attributes up"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(data InspectData) error {
	p := tea.NewProgram(NewInspectModel(data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
