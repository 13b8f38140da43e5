package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type operationModel struct {
	title     string
	region    string
	accountID string
	spinner   spinner.Model
	stage     string
	step      string
	completed []string
	cancel    context.CancelFunc
	run       func() error
	startTime time.Time
	err       error
	cancelled bool
	done      bool
}

type progressMsg struct {
	stage string
	msg   string
}

type operationDoneMsg struct {
	err error
}

// runOperation drives work behind a spinner. The first ctrl+c cancels work
// and waits for it to return so partial results are not lost.
func runOperation(ctx context.Context, prov Provisioner, title string, work func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	m := &operationModel{
		title:     title,
		region:    prov.GetRegion(),
		accountID: prov.GetAccountID(),
		spinner:   s,
		step:      "Starting...",
		cancel:    cancel,
		run:       func() error { return work(ctx) },
		startTime: time.Now(),
	}

	p := tea.NewProgram(m)
	prov.OnProgress(func(stage, msg string) {
		p.Send(progressMsg{stage: stage, msg: msg})
	})
	defer prov.OnProgress(nil)

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(*operationModel); ok {
		return fm.err
	}
	return nil
}

func (m *operationModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.execute)
}

func (m *operationModel) execute() tea.Msg {
	return operationDoneMsg{err: m.run()}
}

func (m *operationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.cancelled {
				m.cancelled = true
				m.step = "Cancelling, waiting for the current call to return..."
				m.cancel()
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		if m.stage != "" && msg.stage != m.stage {
			m.completed = append(m.completed, m.stage)
		}
		m.stage = msg.stage
		m.step = msg.msg
		return m, nil

	case operationDoneMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *operationModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Region: %s  |  Account: %s  |  Elapsed: %s",
		m.region, m.accountID, formatDuration(time.Since(m.startTime)))))
	b.WriteString("\n\n")

	for _, stage := range m.completed {
		b.WriteString(stepStyle.Render("✓ " + stage))
		b.WriteString("\n")
	}

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", m.stage, m.err)))
		b.WriteString("\n")
	case m.done:
		if m.stage != "" {
			b.WriteString(stepStyle.Render("✓ " + m.stage))
			b.WriteString("\n")
		}
		b.WriteString(successStyle.Render(fmt.Sprintf("Done in %s", formatDuration(time.Since(m.startTime)))))
		b.WriteString("\n")
	default:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.step))
		b.WriteString(infoStyle.Render("\nPress ctrl+c to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}
