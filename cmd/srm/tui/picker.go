package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/srm/pkg/srm/output"
)

// PickerModel lets the user choose which trashed entries to restore.
type PickerModel struct {
	items    []output.Item
	visible  []int // indexes into items matching the filter
	cursor   int   // index into visible
	selected map[int]bool
	offset   int
	width    int
	height   int

	filter    textinput.Model
	filtering bool
	confirmed bool
	quitting  bool
}

// NewPickerModel creates a picker over items.
func NewPickerModel(items []output.Item) PickerModel {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter by name or path"

	m := PickerModel{
		items:    items,
		selected: make(map[int]bool),
		width:    80,
		height:   24,
		filter:   ti,
	}
	m.applyFilter()
	return m
}

// Init implements tea.Model.
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if len(m.selected) == 0 && len(m.visible) > 0 {
				m.selected[m.visible[m.cursor]] = true
			}
			m.confirmed = true
			return m, tea.Quit
		case "/":
			m.filtering = true
			cmd := m.filter.Focus()
			return m, cmd
		default:
			m.HandleKey(msg.String())
		}
	}
	return m, nil
}

// HandleKey applies a navigation or selection key.
func (m *PickerModel) HandleKey(key string) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case " ":
		if len(m.visible) > 0 {
			m.Toggle(m.visible[m.cursor])
		}
	case "a":
		for _, i := range m.visible {
			m.selected[i] = true
		}
	case "n":
		m.selected = make(map[int]bool)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.visible)-1, 0)
	}
	m.ensureVisible()
}

// Toggle flips selection of the item at index.
func (m *PickerModel) Toggle(index int) {
	if index < 0 || index >= len(m.items) {
		return
	}
	if m.selected[index] {
		delete(m.selected, index)
	} else {
		m.selected[index] = true
	}
}

// Selected returns the chosen entry names in list order, or nil if the
// picker was cancelled.
func (m PickerModel) Selected() []string {
	if !m.confirmed {
		return nil
	}
	var names []string
	for i, it := range m.items {
		if m.selected[i] {
			names = append(names, it.Name)
		}
	}
	return names
}

func (m *PickerModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, it := range m.items {
		if q == "" || strings.Contains(strings.ToLower(it.Name), q) ||
			strings.Contains(strings.ToLower(it.OriginalPath), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
	m.ensureVisible()
}

func (m PickerModel) visibleRows() int {
	return max(m.height-10, 3)
}

func (m *PickerModel) ensureVisible() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = max(m.offset, 0)
}

// View implements tea.Model.
func (m PickerModel) View() string {
	if m.quitting || m.confirmed {
		return ""
	}
	width := max(m.width-4, 60)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("  srm restore - %d entries", len(m.items))))
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString("  " + m.filter.View() + "\n")
	}

	if len(m.visible) == 0 {
		b.WriteString(mutedTextStyle.Render("  Nothing to restore") + "\n")
	}
	end := min(m.offset+m.visibleRows(), len(m.visible))
	for row := m.offset; row < end; row++ {
		i := m.visible[row]
		b.WriteString(m.renderLine(m.items[i], m.selected[i], row == m.cursor, width))
		b.WriteString("\n")
	}

	b.WriteString(renderDivider(width))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m PickerModel) renderLine(it output.Item, selected, cursor bool, width int) string {
	box := uncheckedStyle.Render("[ ]")
	if selected {
		box = checkedStyle.Render("[x]")
	}
	pointer := " "
	if cursor {
		pointer = cursorStyle.Render(">")
	}
	expires := it.ExpiresIn
	if it.Due {
		expires = dueStyle.Render(expires)
	}
	line := fmt.Sprintf("  %s %s %s  %s  %s", box, pointer,
		sizeStyle.Render(padLeft(it.SizeHuman, 9)), truncate(it.OriginalPath, width-40), expires)
	if cursor {
		return selectedItemStyle.Render(line)
	}
	return normalItemStyle.Render(line)
}

func (m PickerModel) renderFooter() string {
	var size int64
	for i := range m.selected {
		size += m.items[i].Size
	}
	hints := []struct{ key, desc string }{
		{"Space", "Toggle"}, {"a", "All"}, {"n", "None"}, {"/", "Filter"}, {"Enter", "Restore"}, {"q", "Quit"},
	}
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, keyStyle.Render("["+h.key+"]")+" "+keyDescStyle.Render(h.desc))
	}
	return fmt.Sprintf("  Selected: %d (%s)\n  %s",
		len(m.selected), humanize.IBytes(uint64(max(size, 0))), strings.Join(parts, "  "))
}

func padLeft(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return repeat(" ", gap) + s
	}
	return s
}

func repeat(s string, n int) string {
	return strings.Repeat(s, max(n, 0))
}

func truncate(path string, width int) string {
	width = max(width, 10)
	if len(path) <= width {
		return path
	}
	return "..." + path[len(path)-width+3:]
}

// Run shows the picker and returns the names to restore.
// An empty result means the user cancelled.
func Run(items []output.Item) ([]string, error) {
	final, err := tea.NewProgram(NewPickerModel(items), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	return final.(PickerModel).Selected(), nil
}
