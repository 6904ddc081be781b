package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/engine"
)

// List styles
var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	listHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// MeasureListModel - Interactive measure browser
// =============================================================================

// MeasureListModel is the bubbletea model behind satie inspect. The list
// view shows one row per measure; enter opens the merged elements of the
// measure under the cursor.
type MeasureListModel struct {
	Title   string
	Layouts []*engine.MeasureLayout
	Cursor  int
	Offset  int
	Height  int

	// Open is the index of the measure whose elements are shown, or -1.
	Open      int
	ElemStart int
}

// NewMeasureListModel creates a browser over layouts.
func NewMeasureListModel(title string, layouts []*engine.MeasureLayout) MeasureListModel {
	return MeasureListModel{
		Title:   title,
		Layouts: layouts,
		Height:  15,
		Open:    -1,
	}
}

func (m MeasureListModel) Init() tea.Cmd {
	return nil
}

func (m MeasureListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Open >= 0 {
			return m.updateDetail(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Layouts)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Layouts) > 0 {
				m.Open = m.Cursor
				m.ElemStart = 0
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m MeasureListModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.Layouts[m.Open].Master())
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "backspace", "enter":
		m.Open = -1
	case "up", "k":
		if m.ElemStart > 0 {
			m.ElemStart--
		}
	case "down", "j":
		if m.ElemStart < n-m.Height {
			m.ElemStart++
		}
	case "left", "h":
		if m.Open > 0 {
			m.Open--
			m.Cursor = m.Open
			m.ElemStart = 0
		}
	case "right", "l":
		if m.Open < len(m.Layouts)-1 {
			m.Open++
			m.Cursor = m.Open
			m.ElemStart = 0
		}
	}
	return m, nil
}

func (m MeasureListModel) View() string {
	if m.Open >= 0 {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ elements  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Layouts))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		ml := m.Layouts[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			ml.Number,
			fmt.Sprintf("%.1f", ml.X),
			fmt.Sprintf("%.1f", ml.Width),
			fmt.Sprintf("%d", ml.MaxDivisions),
			fmt.Sprintf("%d", len(ml.Master())),
			fmt.Sprintf("%d", max(len(ml.Elements)-1, 0)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Measure", "X", "Width", "Divisions", "Elements", "Partials").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return listHeaderStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col >= 2 {
				return lipgloss.NewStyle().Foreground(colorGray)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Layouts))))
	return b.String()
}

func (m MeasureListModel) detailView() string {
	ml := m.Layouts[m.Open]
	master := ml.Master()

	var b strings.Builder
	b.WriteString(StyleTitle.Render(fmt.Sprintf("Measure %s", ml.Number)))
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  uuid %d · x %.1f · width %.1f", ml.UUID, ml.X, ml.Width)))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ scroll  ←/→ measure  esc back  q quit"))
	b.WriteString("\n\n")

	end := min(m.ElemStart+m.Height, len(master))
	rows := [][]string{}
	for _, l := range master[m.ElemStart:end] {
		rows = append(rows, []string{
			fmt.Sprintf("%d", l.Division),
			l.RenderClass.String(),
			l.Part,
			fmt.Sprintf("%d", l.Staff),
			fmt.Sprintf("%.1f", l.X-ml.X),
			fmt.Sprintf("%.1f", l.RenderedWidth),
			l.ExpandPolicy.String(),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Div", "Class", "Part", "Staff", "X", "Width", "Expand").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return listHeaderStyle
			}
			if col == 1 {
				return lipgloss.NewStyle().Foreground(colorCyan)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  measure %d/%d · %d elements", m.Open+1, len(m.Layouts), len(master))))
	return b.String()
}
