package components

import (
	"fmt"
	"time"

	"github.com/allbin/go-dp700/internal/tui/colors"
	"github.com/allbin/go-dp700/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// DeviceInfo carries the instrument details shown on the right-hand side
// of the status bar.
type DeviceInfo struct {
	Model    string
	Serial   string
	BaudRate int
	Interval time.Duration
}

type StatusBar struct {
	portPath   string
	status     string
	err        error
	width      int
	deviceInfo *DeviceInfo
}

func NewStatusBar(portPath string) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		status:   "Initializing...",
	}
}

func (sb *StatusBar) SetStatus(status string, err error) {
	sb.status = status
	sb.err = err
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetDeviceInfo(info *DeviceInfo) {
	sb.deviceInfo = info
}

func (sb *StatusBar) SetConnecting() {
	sb.status = "Connecting..."
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = "Connected"
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	if err != nil {
		sb.status = fmt.Sprintf("Connection failed: %v", err)
		sb.err = err
	} else {
		sb.status = "Disconnected"
		sb.err = nil
	}
}

// View renders the full-width bottom status bar.
func (sb *StatusBar) View(paused, connected bool, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: polling mode indicator
	var modeStyle lipgloss.Style
	var modeText string
	if paused {
		modeStyle = lipgloss.NewStyle().
			Foreground(colors.Base).
			Background(colors.Yellow).
			Bold(true).
			Padding(0, 1)
		modeText = "PAUSED"
	} else {
		modeStyle = lipgloss.NewStyle().
			Foreground(colors.Base).
			Background(colors.Blue).
			Bold(true).
			Padding(0, 1)
		modeText = "LIVE"
	}
	mode := modeStyle.Render(modeText)

	// Section 2: port path
	portStyle := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1)
	port := portStyle.Render(sb.portPath)

	// Section 3: single character connection indicator
	var connIndicator string
	var statusType styles.StatusType
	switch {
	case sb.err != nil:
		statusType = styles.StatusError
		connIndicator = "✗"
	case connected:
		statusType = styles.StatusConnected
		connIndicator = "●"
	default:
		statusType = styles.StatusConnecting
		connIndicator = "○"
	}
	connectionIndicator := styles.GetStatusStyle(statusType).Render(connIndicator)

	// Section 4: instrument details, or the status text while there are none
	var info string
	switch {
	case sb.err != nil:
		info = sb.status
	case sb.deviceInfo != nil:
		info = fmt.Sprintf("%s %s @ %d baud every %s",
			sb.deviceInfo.Model,
			sb.deviceInfo.Serial,
			sb.deviceInfo.BaudRate,
			sb.deviceInfo.Interval)
	default:
		info = sb.status
	}
	infoStyle := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1)
	details := infoStyle.Render(info)

	// Section 5: clock
	timeStyle := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1)
	clock := timeStyle.Render(timestamp)

	// Muted divider
	dividerStyle := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1)
	divider := dividerStyle.Render("│")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, mode, port, connectionIndicator, divider)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, clock)

	// Calculate spacer
	leftWidth := lipgloss.Width(leftSide)
	rightWidth := lipgloss.Width(rightSide)
	spacerWidth := terminalWidth - leftWidth - rightWidth
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	content := lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide)
	return statusBarStyle.Render(content)
}
