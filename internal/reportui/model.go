// Package reportui provides the Bubble Tea report viewer.
package reportui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AustinArrington87/membrane/internal/model"
	"github.com/AustinArrington87/membrane/internal/report"
)

const (
	tabSummary = iota
	tabTable
	tabCharts
)

const plotHeight = 8

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea report viewer.
type Model struct {
	report model.Table
	title  string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	rows      table.Model

	width  int
	height int

	filterMode  bool
	filterInput textinput.Model
	filter      string
}

// NewModel constructs a viewer for a finished report table.
func NewModel(t model.Table, title string) *Model {
	m := &Model{
		report: t,
		title:  title,
		tabs:   []string{"Summary", "Table", "Charts"},
	}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Metric filter: "
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.rows = buildTable(t, 80, 10)
	m.renderTabContents()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			m.filterMode = true
			m.filterInput.SetValue(m.filter)
			return m, m.filterInput.Focus()
		case "g", "home":
			if m.activeTab == tabTable {
				m.rows.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabTable {
				m.rows.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabTable {
				m.rows, cmd = m.rows.Update(msg)
				return m, cmd
			}
			m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.filter = strings.TrimSpace(m.filterInput.Value())
		m.filterMode = false
		m.filterInput.Blur()
		m.renderTabContents()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.rows.SetWidth(m.width)
	m.rows.SetHeight(maxInt(1, bodyHeight-1))
	m.filterInput.Width = maxInt(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	m.activeTab = next
	if m.activeTab == tabTable {
		m.rows.Focus()
	} else {
		m.rows.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	summary := fmt.Sprintf("%s  periods=%d  metrics=%d", m.title, len(m.report.Rows), len(m.report.Columns))
	if m.filter != "" {
		summary += "  filter=" + m.filter
	}
	return m.renderTabs() + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.filterInput.View()
	}
	return headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Filter: /  Quit: q")
}

func (m *Model) renderBody(height int) string {
	if len(m.report.Rows) == 0 {
		return fitLines("No periods.", m.width, height)
	}
	if m.activeTab == tabTable {
		return fitLines(tableMutedStyle.Render(m.rows.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabSummary].SetContent(renderSummary(m.report, width))
	m.viewports[tabCharts].SetContent(renderCharts(m.report, m.filter, width))
}

// renderSummary shows the latest period value of every metric and its change
// from the period before.
func renderSummary(t model.Table, width int) string {
	if len(t.Rows) == 0 {
		return "No periods."
	}
	latest := t.Rows[0]
	cards := make([]string, 0, len(t.Columns))
	for i, name := range t.Columns {
		column := t.Column(i)
		value := strconv.Itoa(column[0])
		if len(column) > 1 {
			value += " " + formatDelta(column[0]-column[1])
		}
		cards = append(cards, metricCard(name, value))
	}
	title := headerStyle.Render(fmt.Sprintf("Latest period: %s to %s",
		latest.Period.Start.Format("2006-01-02"), latest.Period.End.Format("2006-01-02")))

	perRow := maxInt(1, width/30)
	var rows []string
	for start := 0; start < len(cards); start += perRow {
		end := minInt(start+perRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[start:end]...))
	}
	return title + "\n" + lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func formatDelta(delta int) string {
	if delta > 0 {
		return fmt.Sprintf("(+%d)", delta)
	}
	return fmt.Sprintf("(%d)", delta)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

// renderCharts plots the metrics whose name contains filter, ignoring case.
func renderCharts(t model.Table, filter string, width int) string {
	if len(t.Rows) == 0 {
		return "No periods."
	}
	needle := strings.ToLower(filter)
	labels := report.EndLabels(t)
	var buf bytes.Buffer
	plotted := 0
	for i, name := range t.Columns {
		if needle != "" && !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		values := make([]float64, 0, len(t.Rows))
		column := t.Column(i)
		for j := len(column) - 1; j >= 0; j-- {
			values = append(values, float64(column[j]))
		}
		plotWidth := report.PlotWidthFor(width, report.AxisLabelWidth(values, plotHeight))
		if err := report.PlotMetric(&buf, name, labels, values, plotWidth, plotHeight, true); err != nil {
			return fmt.Sprintf("Failed to render charts: %v", err)
		}
		plotted++
	}
	if plotted == 0 {
		return fmt.Sprintf("No metric matches %q.", filter)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildTable(t model.Table, width, height int) table.Model {
	headers := report.Header(t)
	cells := report.Cells(t)
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		w := lipgloss.Width(h)
		for _, row := range cells {
			w = maxInt(w, lipgloss.Width(row[i]))
		}
		columns[i] = table.Column{Title: h, Width: w + 1}
	}
	rows := make([]table.Row, len(cells))
	for i, c := range cells {
		rows[i] = table.Row(c)
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	tbl.SetWidth(width)
	tbl.SetStyles(tableStyles())
	return tbl
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
