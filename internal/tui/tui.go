// Package tui provides the terminal user interface. It renders the local
// cache and never talks to a backend directly: every mutation goes through
// the runner, and the screen refreshes when the runner reports back.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/internal/runner"
	"github.com/dapp-whisperer/terminalist/internal/storage"
	tasksync "github.com/dapp-whisperer/terminalist/internal/sync"
)

// Focus indicates which pane has focus.
type Focus int

const (
	FocusProjects Focus = iota
	FocusTasks
)

// Mode indicates the current input mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeSearch
	ModeConfirmDelete
	ModeHelp
)

// Model represents the TUI state.
type Model struct {
	run        *runner.Runner
	svc        *tasksync.Service
	instanceID uuid.UUID

	// Data
	view     runner.View
	projects []storage.Project
	tasks    []storage.Task

	// Selection
	projectCursor int
	taskCursor    int
	focus         Focus

	// Mode and input
	mode      Mode
	textInput textinput.Model

	// Status line
	status  string
	syncing bool

	// UI dimensions
	width  int
	height int

	// Styles
	paneStyle      lipgloss.Style
	titleStyle     lipgloss.Style
	selectedStyle  lipgloss.Style
	completedStyle lipgloss.Style
	overdueStyle   lipgloss.Style
	priorityStyles map[int]lipgloss.Style
	helpStyle      lipgloss.Style
	statusBarStyle lipgloss.Style
}

// Message types
type runnerEventMsg struct {
	event runner.Event
}

type runnerClosedMsg struct{}

// New creates the TUI model over a runner and its sync service.
func New(run *runner.Runner, svc *tasksync.Service, instanceID uuid.UUID, initial runner.View) *Model {
	ti := textinput.New()
	ti.CharLimit = 256

	return &Model{
		run:        run,
		svc:        svc,
		instanceID: instanceID,
		view:       initial,
		focus:      FocusTasks,
		mode:       ModeNormal,
		textInput:  ti,
		paneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		completedStyle: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("240")),
		overdueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		priorityStyles: map[int]lipgloss.Style{
			4: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			3: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
			2: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			1: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		},
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}
}

// Init starts the event pump and requests the first load.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForRunner(), m.reload())
}

// waitForRunner blocks on the runner's event channel and converts the next
// event into a tea message.
func (m *Model) waitForRunner() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.run.Events()
		if !ok {
			return runnerClosedMsg{}
		}
		return runnerEventMsg{ev}
	}
}

// reload asks the runner for the current view's data.
func (m *Model) reload() tea.Cmd {
	view := m.view
	projectUUID := uuid.Nil
	if view == runner.ViewProject && m.projectCursor < len(m.projects) {
		projectUUID = m.projects[m.projectCursor].UUID
	}
	return func() tea.Msg {
		m.run.LoadTasks(m.instanceID, view, projectUUID)
		return nil
	}
}

func (m *Model) selectedTask() *storage.Task {
	if len(m.tasks) == 0 || m.taskCursor >= len(m.tasks) {
		return nil
	}
	return &m.tasks[m.taskCursor]
}

func (m *Model) clampCursors() {
	if m.taskCursor >= len(m.tasks) {
		m.taskCursor = len(m.tasks) - 1
	}
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
	if m.projectCursor >= len(m.projects) {
		m.projectCursor = len(m.projects) - 1
	}
	if m.projectCursor < 0 {
		m.projectCursor = 0
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case runnerClosedMsg:
		return m, tea.Quit

	case runnerEventMsg:
		return m.handleRunnerEvent(msg.event)

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd:
			return m.handleAddMode(msg)
		case ModeSearch:
			return m.handleSearchMode(msg)
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalMode(msg)
	}
	return m, nil
}

func (m *Model) handleRunnerEvent(ev runner.Event) (tea.Model, tea.Cmd) {
	switch ev := ev.(type) {
	case runner.DataLoaded:
		m.tasks = ev.Tasks
		m.projects = ev.Projects
		m.clampCursors()
		return m, m.waitForRunner()

	case runner.SearchResultsLoaded:
		m.tasks = ev.Tasks
		m.taskCursor = 0
		m.status = fmt.Sprintf("%d matches for %q", len(ev.Tasks), ev.Query)
		return m, m.waitForRunner()

	case runner.SyncCompleted:
		m.syncing = false
		m.status = fmt.Sprintf("synced: %d projects, %d tasks", ev.Stats.Projects, ev.Stats.Tasks)
		return m, tea.Batch(m.waitForRunner(), m.reload())

	case runner.SyncFailed:
		m.syncing = false
		m.status = "sync failed: " + ev.Err.Error()
		return m, m.waitForRunner()

	case runner.OpCompleted:
		m.status = ev.Desc + " done"
		return m, tea.Batch(m.waitForRunner(), m.reload())

	case runner.OpFailed:
		m.status = ev.Desc + " failed: " + ev.Err.Error()
		return m, tea.Batch(m.waitForRunner(), m.reload())
	}
	return m, m.waitForRunner()
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.mode = ModeHelp
		return m, nil

	case "tab":
		if m.focus == FocusProjects {
			m.focus = FocusTasks
		} else {
			m.focus = FocusProjects
		}
		return m, nil

	case "up", "k":
		if m.focus == FocusProjects {
			if m.projectCursor > 0 {
				m.projectCursor--
			}
		} else if m.taskCursor > 0 {
			m.taskCursor--
		}
		return m, nil

	case "down", "j":
		if m.focus == FocusProjects {
			if m.projectCursor < len(m.projects)-1 {
				m.projectCursor++
			}
		} else if m.taskCursor < len(m.tasks)-1 {
			m.taskCursor++
		}
		return m, nil

	case "enter":
		if m.focus == FocusProjects && len(m.projects) > 0 {
			m.view = runner.ViewProject
			m.focus = FocusTasks
			m.taskCursor = 0
			return m, m.reload()
		}
		return m, nil

	case "1":
		return m.switchView(runner.ViewToday)
	case "2":
		return m.switchView(runner.ViewTomorrow)
	case "3":
		return m.switchView(runner.ViewUpcoming)
	case "4":
		return m.switchView(runner.ViewAll)

	case "s":
		m.syncing = true
		m.status = "syncing..."
		instanceID := m.instanceID
		return m, func() tea.Msg {
			m.run.Sync(instanceID)
			return nil
		}

	case "a":
		m.mode = ModeAdd
		m.textInput.Reset()
		m.textInput.Placeholder = "New task..."
		m.textInput.Focus()
		return m, textinput.Blink

	case "/":
		m.mode = ModeSearch
		m.textInput.Reset()
		m.textInput.Placeholder = "Search tasks..."
		m.textInput.Focus()
		return m, textinput.Blink

	case "c":
		if task := m.selectedTask(); task != nil {
			taskUUID := task.UUID
			svc, instanceID := m.svc, m.instanceID
			m.run.Do("complete", func(ctx context.Context) error {
				return svc.CompleteTask(ctx, instanceID, taskUUID)
			})
		}
		return m, nil

	case "d":
		if m.selectedTask() != nil {
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case "u":
		if task := m.selectedTask(); task != nil {
			taskUUID := task.UUID
			svc, instanceID := m.svc, m.instanceID
			m.run.Do("restore", func(ctx context.Context) error {
				_, err := svc.RestoreTask(ctx, instanceID, taskUUID)
				return err
			})
		}
		return m, nil

	case "p":
		if task := m.selectedTask(); task != nil {
			// Cycle 1 -> 2 -> 3 -> 4 -> 1.
			next := task.Priority%4 + 1
			taskUUID := task.UUID
			svc, instanceID := m.svc, m.instanceID
			m.run.Do(fmt.Sprintf("priority %d", next), func(ctx context.Context) error {
				return svc.UpdateTaskPriority(ctx, instanceID, taskUUID, next)
			})
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) switchView(view runner.View) (tea.Model, tea.Cmd) {
	m.view = view
	m.taskCursor = 0
	return m, m.reload()
}

func (m *Model) handleAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		return m, nil
	case "enter":
		content := strings.TrimSpace(m.textInput.Value())
		m.mode = ModeNormal
		if content == "" {
			return m, nil
		}
		// New tasks land in the selected project when one is focused,
		// otherwise in the inbox.
		var projectUUID *uuid.UUID
		if m.view == runner.ViewProject && m.projectCursor < len(m.projects) {
			id := m.projects[m.projectCursor].UUID
			projectUUID = &id
		}
		svc, instanceID := m.svc, m.instanceID
		m.run.Do("add task", func(ctx context.Context) error {
			_, err := svc.CreateTask(ctx, instanceID, tasksync.CreateTaskInput{
				Content:     content,
				ProjectUUID: projectUUID,
			})
			return err
		})
		return m, nil
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		return m, m.reload()
	case "enter":
		query := strings.TrimSpace(m.textInput.Value())
		m.mode = ModeNormal
		if query == "" {
			return m, m.reload()
		}
		instanceID := m.instanceID
		return m, func() tea.Msg {
			m.run.Search(instanceID, query)
			return nil
		}
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		m.mode = ModeNormal
		if task := m.selectedTask(); task != nil {
			taskUUID := task.UUID
			svc, instanceID := m.svc, m.instanceID
			m.run.Do("delete", func(ctx context.Context) error {
				return svc.DeleteTask(ctx, instanceID, taskUUID)
			})
		}
		return m, nil
	case "n", "esc":
		m.mode = ModeNormal
		return m, nil
	}
	return m, nil
}

// View renders the interface.
func (m *Model) View() string {
	if m.mode == ModeHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.titleStyle.Render("terminalist — " + viewTitle(m.view)))
	b.WriteString("\n\n")

	left := m.renderProjects()
	right := m.renderTasks()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	switch m.mode {
	case ModeAdd, ModeSearch:
		b.WriteString(m.textInput.View())
		b.WriteString("\n")
	case ModeConfirmDelete:
		if task := m.selectedTask(); task != nil {
			b.WriteString(fmt.Sprintf("delete %q? (y/n)\n", task.Content))
		}
	}

	if m.status != "" {
		b.WriteString(m.statusBarStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.helpStyle.Render("1-4 views · a add · c complete · d delete · u restore · p priority · / search · s sync · ? help · q quit"))
	return b.String()
}

func (m *Model) renderProjects() string {
	var b strings.Builder
	b.WriteString("Projects\n")
	for i, p := range m.projects {
		line := p.Name
		if p.IsInboxProject {
			line = "📥 " + line
		}
		if i == m.projectCursor && m.focus == FocusProjects {
			line = m.selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.projects) == 0 {
		b.WriteString(m.helpStyle.Render("  (none synced)"))
	}
	return m.paneStyle.Render(b.String())
}

func (m *Model) renderTasks() string {
	var b strings.Builder
	b.WriteString("Tasks\n")
	for i, task := range m.tasks {
		b.WriteString(m.renderTaskLine(i, task))
		b.WriteString("\n")
	}
	if len(m.tasks) == 0 {
		b.WriteString(m.helpStyle.Render("  nothing here"))
	}
	return m.paneStyle.Render(b.String())
}

func (m *Model) renderTaskLine(i int, task storage.Task) string {
	check := "[ ]"
	if task.IsCompleted {
		check = "[x]"
	}

	prio := m.priorityStyles[task.Priority].Render(fmt.Sprintf("p%d", task.Priority))

	due := ""
	if task.DueDate != nil {
		due = " · " + *task.DueDate
	}

	line := fmt.Sprintf("%s %s %s%s", check, prio, task.Content, due)
	if task.IsCompleted {
		line = m.completedStyle.Render(line)
	}
	if i == m.taskCursor && m.focus == FocusTasks {
		return m.selectedStyle.Render("> " + line)
	}
	return "  " + line
}

func (m *Model) renderHelp() string {
	help := `terminalist keys

  1 / 2 / 3 / 4   today / tomorrow / upcoming / all tasks
  tab             switch pane
  j / k           move
  enter           open selected project
  a               add task
  c               complete task
  d               delete task (kept locally, restorable with u)
  u               restore completed or deleted task
  p               cycle priority
  /               search task content
  s               sync now
  q               quit

press any key to go back`
	return m.paneStyle.Render(help)
}

func viewTitle(v runner.View) string {
	switch v {
	case runner.ViewToday:
		return "Today"
	case runner.ViewTomorrow:
		return "Tomorrow"
	case runner.ViewUpcoming:
		return "Upcoming"
	case runner.ViewProject:
		return "Project"
	default:
		return "All tasks"
	}
}
