/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	dp700 "github.com/allbin/go-dp700"
	"github.com/allbin/go-dp700/internal/tui/components"
	"github.com/allbin/go-dp700/internal/tui/keys"
	"github.com/allbin/go-dp700/internal/tui/models"
	"github.com/allbin/go-dp700/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var monitorInterval time.Duration

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Live dashboard of output readings",
	Long: `Watch output voltage, current and power in a full-screen dashboard.

The dashboard polls the instrument at a fixed interval and keeps a
scrollback of readings. The output can be toggled without leaving the view.

Keys:
  o      toggle output on/off
  p      pause/resume polling
  c      clear the history
  ?      toggle help
  q      quit

Examples:
  dp700ctl monitor /dev/ttyUSB0
  dp700ctl monitor /dev/ttyUSB0 --interval 250ms
  dp700ctl monitor /dev/ttyUSB0 --baud 19200`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		device := args[0]

		if err := runMonitorTUI(device, monitorInterval, sessionOptions()...); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "n", time.Second, "Polling interval")
}

// monitorModel represents the Bubble Tea model for the monitor command
type monitorModel struct {
	*models.MonitorModel
	readings  *components.Readings
	history   *components.History
	statusBar *components.StatusBar
	help      help.Model
	keys      keys.MonitorKeys
	interval  time.Duration
	baudRate  int
}

func runMonitorTUI(device string, interval time.Duration, opts ...dp700.Option) error {
	// Resolve the effective configuration so the status bar can show it
	config := dp700.DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	m := monitorModel{
		MonitorModel: models.NewMonitorModel(device),
		readings:     components.NewReadings(),
		history:      components.NewHistory(),
		statusBar:    components.NewStatusBar(device),
		help:         help.New(),
		keys:         keys.NewMonitorKeys(),
		interval:     interval,
		baudRate:     config.BaudRate,
	}
	m.statusBar.SetConnecting()

	p := tea.NewProgram(&m, tea.WithAltScreen())

	// Open the session in the background so the UI comes up immediately
	go func() {
		sess, err := dp700.Open(device, opts...)
		if err != nil {
			p.Send(models.ConnectionStatusMsg{Connected: false, Error: err})
			return
		}

		m.SetSession(sess)
		p.Send(models.ConnectionStatusMsg{Connected: true, Identity: sess.Identity()})

		// The polling goroutine is the only caller of the session.
		// Toggle requests from the UI are forwarded here instead of
		// touching the session from the Update loop.
		go func() {
			defer sess.Close()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-m.GetContext().Done():
					return
				case <-m.ToggleRequests():
					on, err := sess.OutputEnabled()
					if err == nil {
						on = !on
						err = sess.EnableOutput(on)
					}
					p.Send(models.ToggleResultMsg{On: on, Error: err})
				case <-ticker.C:
					if m.IsPaused() {
						continue
					}
					reading := models.ReadingMsg{Timestamp: time.Now()}
					reading.Voltage, reading.Error = sess.OutputVoltage()
					if reading.Error == nil {
						reading.Current, reading.Error = sess.OutputCurrent()
					}
					if reading.Error == nil {
						reading.Power, reading.Error = sess.OutputPower()
					}
					if reading.Error == nil {
						reading.OutputOn, reading.Error = sess.OutputEnabled()
					}
					p.Send(reading)
				}
			}
		}()
	}()

	_, err := p.Run()

	// Ensure cleanup
	m.Cleanup()
	return err
}

func (m *monitorModel) Init() tea.Cmd {
	return nil
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 1
		readingsHeight := 5
		borderHeight := 1
		helpHeight := 1
		statusBarHeight := 1

		m.readings.SetWidth(msg.Width)
		m.history.SetSize(msg.Width, msg.Height-headerHeight-readingsHeight-borderHeight-helpHeight-statusBarHeight)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.SetReady(true)

	case models.ConnectionStatusMsg:
		m.SetConnected(msg.Connected)
		if msg.Error != nil {
			m.SetError(msg.Error)
			m.statusBar.SetDisconnected(msg.Error)
		} else {
			m.SetIdentity(msg.Identity)
			m.statusBar.SetConnected()
			m.statusBar.SetDeviceInfo(&components.DeviceInfo{
				Model:    msg.Identity.Model,
				Serial:   msg.Identity.Serial,
				BaudRate: m.baudRate,
				Interval: m.interval,
			})
		}

	case models.ReadingMsg:
		if msg.Error != nil {
			m.statusBar.SetStatus(fmt.Sprintf("Poll failed: %v", msg.Error), msg.Error)
		} else {
			m.statusBar.SetConnected()
			m.readings.SetReading(msg.Voltage, msg.Current, msg.Power, msg.OutputOn)
			m.history.Add(msg.Timestamp, msg.Voltage, msg.Current, msg.Power, msg.OutputOn)
		}

	case models.ToggleResultMsg:
		if msg.Error != nil {
			m.statusBar.SetStatus(fmt.Sprintf("Toggle failed: %v", msg.Error), msg.Error)
		} else {
			m.readings.SetOutput(msg.On)
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Cleanup()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, m.keys.Toggle):
			if m.IsConnected() {
				m.RequestToggle()
			}

		case key.Matches(msg, m.keys.Pause):
			m.TogglePaused()

		case key.Matches(msg, m.keys.Clear):
			m.history.Clear()
		}
	}

	return m, nil
}

func (m *monitorModel) View() string {
	if err := m.GetError(); err != nil && !m.IsConnected() {
		return styles.ErrorStyle.Render(fmt.Sprintf("Connection failed: %v\n\nPress q to quit.", err))
	}
	if !m.IsReady() {
		return styles.InfoStyle.Render("Initializing...")
	}

	header := styles.TitleStyle.Render("DP700 Monitor")
	if id := m.GetIdentity(); id.Model != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Left, header, " "+id.Manufacturer+" "+id.Model)
	}

	history := styles.ContentBorderStyle.Render(m.history.View())
	helpView := m.help.View(m.keys)
	statusBar := m.statusBar.View(m.IsPaused(), m.IsConnected(), time.Now().Format("15:04:05"))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.readings.View(),
		history,
		helpView,
		statusBar,
	)
}
