package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"companion/internal/audit"
	"companion/internal/config"
)

// monitorCmd tails the interaction log in a terminal UI, the network
// activity surface for watching the two peers talk.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch this peer's interaction log live",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		m := newMonitorModel(cfg.Logging.AuditPath)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

var (
	monitorTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	monitorBaseStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	monitorHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
)

type monitorTickMsg time.Time

type monitorModel struct {
	path  string
	table table.Model
	count int
	err   error
}

func newMonitorModel(path string) monitorModel {
	columns := []table.Column{
		{Title: "Time", Width: 12},
		{Title: "Sender", Width: 10},
		{Title: "Receiver", Width: 10},
		{Title: "Operation", Width: 20},
		{Title: "Status", Width: 8},
		{Title: "ms", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return monitorModel{path: path, table: t}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTick()
}

func monitorTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 6)
	case monitorTickMsg:
		m.reload()
		return m, monitorTick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *monitorModel) reload() {
	entries, err := audit.ReadFile(m.path)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil

	atBottom := m.table.Cursor() >= m.count-1

	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		ts := e.Timestamp
		if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
			ts = t.Format("15:04:05.000")
		}
		rows = append(rows, table.Row{
			ts, e.Sender, e.Receiver, e.Operation, string(e.Status),
			fmt.Sprintf("%d", e.LatencyMs),
		})
	}
	m.table.SetRows(rows)
	m.count = len(rows)
	if atBottom && m.count > 0 {
		m.table.SetCursor(m.count - 1)
	}
}

func (m monitorModel) View() string {
	header := monitorTitleStyle.Render(fmt.Sprintf("interaction log — %s (%d entries)", m.path, m.count))
	if m.err != nil {
		header += "  " + monitorHelpStyle.Render(fmt.Sprintf("waiting for log: %v", m.err))
	}
	return header + "\n" + monitorBaseStyle.Render(m.table.View()) + "\n" + monitorHelpStyle.Render("q to quit")
}
