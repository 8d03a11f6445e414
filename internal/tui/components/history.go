package components

import (
	"fmt"
	"time"

	"github.com/allbin/go-dp700/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
)

const (
	columnKeyTime    = "time"
	columnKeyVoltage = "voltage"
	columnKeyCurrent = "current"
	columnKeyPower   = "power"
	columnKeyOutput  = "output"

	maxHistoryRows = 512
)

// History is a scrollback of polled readings, newest first.
type History struct {
	table table.Model
	rows  []table.Row
}

func NewHistory() *History {
	numeric := lipgloss.NewStyle().Align(lipgloss.Right)

	columns := []table.Column{
		table.NewFlexColumn(columnKeyTime, "Time", 1),
		table.NewColumn(columnKeyVoltage, "Voltage (V)", 13).WithStyle(numeric),
		table.NewColumn(columnKeyCurrent, "Current (A)", 13).WithStyle(numeric),
		table.NewColumn(columnKeyPower, "Power (W)", 13).WithStyle(numeric),
		table.NewColumn(columnKeyOutput, "Output", 8),
	}

	t := table.New(columns).
		WithBaseStyle(lipgloss.NewStyle().
			Foreground(colors.Text).
			BorderForeground(colors.Surface1)).
		HeaderStyle(lipgloss.NewStyle().
			Foreground(colors.Subtext1).
			Bold(true)).
		WithPageSize(10).
		WithFooterVisibility(false)

	return &History{table: t}
}

func (h *History) SetSize(width, height int) {
	if width < 60 {
		width = 60
	}
	// Borders and the header row eat three lines
	pageSize := height - 3
	if pageSize < 1 {
		pageSize = 1
	}
	h.table = h.table.WithTargetWidth(width).WithPageSize(pageSize)
}

func (h *History) Add(ts time.Time, voltage, current, power float64, outputOn bool) {
	output := table.NewStyledCell("OFF", lipgloss.NewStyle().Foreground(colors.Subtext0))
	if outputOn {
		output = table.NewStyledCell("ON", lipgloss.NewStyle().Foreground(colors.Green))
	}

	row := table.NewRow(table.RowData{
		columnKeyTime:    ts.Format("15:04:05.000"),
		columnKeyVoltage: fmt.Sprintf("%.3f", voltage),
		columnKeyCurrent: fmt.Sprintf("%.3f", current),
		columnKeyPower:   fmt.Sprintf("%.3f", power),
		columnKeyOutput:  output,
	})

	// Newest first so the latest reading stays visible without scrolling
	h.rows = append([]table.Row{row}, h.rows...)
	if len(h.rows) > maxHistoryRows {
		h.rows = h.rows[:maxHistoryRows]
	}
	h.table = h.table.WithRows(h.rows)
}

func (h *History) Clear() {
	h.rows = nil
	h.table = h.table.WithRows(nil)
}

func (h *History) View() string {
	return h.table.View()
}
