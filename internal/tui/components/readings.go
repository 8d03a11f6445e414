package components

import (
	"fmt"

	"github.com/allbin/go-dp700/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

// Readings is the large current-value panel at the top of the monitor.
type Readings struct {
	width       int
	voltage     float64
	current     float64
	power       float64
	outputOn    bool
	haveReading bool
}

func NewReadings() *Readings {
	return &Readings{}
}

func (r *Readings) SetWidth(width int) {
	r.width = width
}

func (r *Readings) SetReading(voltage, current, power float64, outputOn bool) {
	r.voltage = voltage
	r.current = current
	r.power = power
	r.outputOn = outputOn
	r.haveReading = true
}

// SetOutput flips the output badge without waiting for the next poll.
func (r *Readings) SetOutput(on bool) {
	r.outputOn = on
}

func renderMetric(label, value string, accent lipgloss.Color) string {
	labelStyle := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Align(lipgloss.Center)

	valueStyle := lipgloss.NewStyle().
		Foreground(accent).
		Bold(true).
		Align(lipgloss.Center).
		Width(14)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.Surface2).
		Padding(0, 2)

	content := lipgloss.JoinVertical(lipgloss.Center,
		labelStyle.Render(label),
		valueStyle.Render(value),
	)
	return boxStyle.Render(content)
}

func (r *Readings) View() string {
	voltage := "--.---"
	current := "--.---"
	power := "--.---"
	if r.haveReading {
		voltage = fmt.Sprintf("%.3f", r.voltage)
		current = fmt.Sprintf("%.3f", r.current)
		power = fmt.Sprintf("%.3f", r.power)
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		renderMetric("Voltage", voltage+" V", colors.Teal),
		renderMetric("Current", current+" A", colors.Peach),
		renderMetric("Power", power+" W", colors.Mauve),
	)

	var badge string
	switch {
	case !r.haveReading:
		badge = lipgloss.NewStyle().
			Foreground(colors.Text).
			Background(colors.Surface2).
			Bold(true).
			Padding(0, 1).
			Render("OUTPUT --")
	case r.outputOn:
		badge = lipgloss.NewStyle().
			Foreground(colors.Base).
			Background(colors.Green).
			Bold(true).
			Padding(0, 1).
			Render("OUTPUT ON")
	default:
		badge = lipgloss.NewStyle().
			Foreground(colors.Text).
			Background(colors.Surface2).
			Bold(true).
			Padding(0, 1).
			Render("OUTPUT OFF")
	}

	panel := lipgloss.JoinVertical(lipgloss.Center, row, badge)

	if r.width > 0 {
		return lipgloss.NewStyle().Width(r.width).Align(lipgloss.Center).Render(panel)
	}
	return panel
}
