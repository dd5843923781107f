// Package tui implements the read-only terminal dashboard: a live view of
// one project's progress through the workflow, refreshed from the status
// store when its files change on disk.
package tui

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/fsnotify/fsnotify"

	"github.com/specflow/specflow/internal/artifact"
	"github.com/specflow/specflow/internal/logging"
	"github.com/specflow/specflow/internal/status"
	"github.com/specflow/specflow/internal/tui/styles"
	"github.com/specflow/specflow/internal/workflow"
)

// previewBytes bounds how much of an artifact the preview pane reads.
const previewBytes = 4 * 1024

// previewLines bounds how many artifact lines the preview pane shows.
const previewLines = 12

// ---- Messages ----

// statusLoadedMsg carries a freshly read status record (or the read error).
type statusLoadedMsg struct {
	st  *workflow.ProjectStatus
	err error
}

// fsEventMsg signals that something changed in the status directory.
type fsEventMsg struct{}

// tickMsg drives the fallback periodic reload.
type tickMsg time.Time

// ---- Model ----

// Model is the dashboard's bubbletea model.
type Model struct {
	store     *status.FileStore
	def       *workflow.Definition
	layout    artifact.Layout
	projectID string
	log       *logging.Logger

	refreshInterval time.Duration
	showHistory     bool
	historyLines    int
	showPreview     bool

	st      *workflow.ProjectStatus
	loadErr error
	spin    spinner.Model
	watcher *fsnotify.Watcher

	width  int
	height int
}

// ModelOption is a functional option for configuring the dashboard model.
type ModelOption func(*Model)

// WithDefinition overrides the built-in workflow definition.
func WithDefinition(def *workflow.Definition) ModelOption {
	return func(m *Model) {
		m.def = def
	}
}

// WithLogger sets the logger used by the dashboard.
func WithLogger(log *logging.Logger) ModelOption {
	return func(m *Model) {
		m.log = log
	}
}

// WithRefreshInterval sets the fallback periodic reload interval.
func WithRefreshInterval(d time.Duration) ModelOption {
	return func(m *Model) {
		m.refreshInterval = d
	}
}

// WithHistory controls the history tail beneath the phase grid.
func WithHistory(show bool, lines int) ModelOption {
	return func(m *Model) {
		m.showHistory = show
		m.historyLines = lines
	}
}

// NewModel creates a dashboard model for one project. projectRoot is the
// directory holding the project's docs/ artifact tree.
func NewModel(store *status.FileStore, projectID, projectRoot string, opts ...ModelOption) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.StatusAIWorking)

	m := Model{
		store:           store,
		def:             workflow.DefaultDefinition(),
		layout:          artifact.NewLayout(projectRoot),
		projectID:       projectID,
		log:             logging.NopLogger(),
		refreshInterval: 2 * time.Second,
		showHistory:     true,
		historyLines:    8,
		spin:            sp,
	}
	for _, opt := range opts {
		opt(&m)
	}

	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(store.BaseDir()); err == nil {
			m.watcher = w
		} else {
			w.Close()
			m.log.Warn("status dir watch unavailable, falling back to polling", "error", err.Error())
		}
	}

	return m
}

// Init starts the spinner, the first load, the filesystem watch, and the
// fallback reload tick.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, m.loadStatus(), m.tick()}
	if m.watcher != nil {
		cmds = append(cmds, m.waitForChange())
	}
	return tea.Batch(cmds...)
}

// loadStatus reads the project's status record.
func (m Model) loadStatus() tea.Cmd {
	return func() tea.Msg {
		st, err := m.store.Read(m.projectID)
		return statusLoadedMsg{st: st, err: err}
	}
}

// waitForChange blocks on the next filesystem event in the status directory.
func (m Model) waitForChange() tea.Cmd {
	w := m.watcher
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					return fsEventMsg{}
				}
			case _, ok := <-w.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

// tick schedules the fallback periodic reload.
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.watcher != nil {
				m.watcher.Close()
			}
			return m, tea.Quit
		case "r":
			return m, m.loadStatus()
		case "h":
			m.showHistory = !m.showHistory
			return m, nil
		case "p":
			m.showPreview = !m.showPreview
			return m, nil
		}
		return m, nil

	case statusLoadedMsg:
		m.st = msg.st
		m.loadErr = msg.err
		return m, nil

	case fsEventMsg:
		return m, tea.Batch(m.loadStatus(), m.waitForChange())

	case tickMsg:
		return m, tea.Batch(m.loadStatus(), m.tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("specflow · " + m.projectID))
	b.WriteString("\n")

	switch {
	case m.loadErr != nil:
		b.WriteString(styles.Error.Render("cannot read status: " + m.loadErr.Error()))
		b.WriteString("\n")
	case m.st == nil:
		b.WriteString(styles.Muted.Render("loading…"))
		b.WriteString("\n")
	default:
		b.WriteString(m.renderGrid())
		if m.showPreview {
			b.WriteString(m.renderPreview())
		}
		if m.showHistory {
			b.WriteString(m.renderHistory())
		}
	}

	b.WriteString(styles.HelpBar.Render("r reload · h history · p preview · q quit"))
	return b.String()
}

// renderGrid renders the agents × phases grid.
func (m Model) renderGrid() string {
	var b strings.Builder

	for _, agent := range m.def.AgentNames() {
		spec, _ := m.def.AgentSpecFor(agent)
		as := m.st.Agents[agent]

		header := styles.AgentHeader
		if agent == m.st.CurrentAgent {
			header = styles.AgentHeaderActive
		}
		b.WriteString(header.Render(string(agent)))
		if as != nil && as.Status == workflow.AgentDone {
			b.WriteString(" " + styles.Secondary.Render("done"))
		}
		b.WriteString("\n")

		for _, ps := range spec.Phases {
			st := workflow.PhaseNotStarted
			if as != nil {
				if rec, ok := as.Phases[ps.Name]; ok {
					st = rec.Status
				}
			}

			marker := "  "
			if as != nil && as.CurrentPhase == ps.Name && agent == m.st.CurrentAgent {
				marker = styles.Primary.Render("▸ ")
			}
			glyph := styles.StatusStyle(st).Render(styles.StatusGlyph(st))
			if st == workflow.PhaseAIWorking {
				glyph = m.spin.View()
			}
			b.WriteString("  " + marker + glyph + " " + ps.Name +
				" " + styles.Muted.Render(string(st)) + "\n")
		}
		b.WriteString("\n")
	}

	if m.st.IsComplete() {
		b.WriteString(styles.Secondary.Render("workflow complete") + "\n\n")
	}

	return b.String()
}

// renderPreview shows the head of the artifact the current phase is about,
// with any ANSI escapes left behind by external editors stripped out.
func (m Model) renderPreview() string {
	path, ok := m.currentArtifactPath()
	if !ok {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return styles.Muted.Render("no artifact yet: "+path) + "\n\n"
	}
	if len(data) > previewBytes {
		data = data[:previewBytes]
	}

	clean := ansi.Strip(string(data))
	lines := strings.Split(clean, "\n")
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}

	return styles.ContentBox.Render(strings.Join(lines, "\n")) + "\n\n"
}

// currentArtifactPath resolves the artifact behind the current phase.
func (m Model) currentArtifactPath() (string, bool) {
	ref := m.st.CurrentRef()
	if ref.Agent == workflow.AgentComplete {
		return "", false
	}
	spec, ok := m.def.PhaseSpecFor(ref.Agent, ref.Phase)
	if !ok {
		return "", false
	}
	if spec.EntryStatus == workflow.PhaseAwaitingUser {
		return m.layout.QuestionsPath(ref.Agent), true
	}
	return m.layout.DocumentPath(ref.Agent)
}

// renderHistory renders the tail of the audit trail.
func (m Model) renderHistory() string {
	if len(m.st.History) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Subtitle.Render("recent transitions") + "\n")

	entries := m.st.History
	if len(entries) > m.historyLines {
		entries = entries[len(entries)-m.historyLines:]
	}
	for _, e := range entries {
		b.WriteString(styles.HistoryLine.Render(
			e.StartedAt.Format("15:04:05")+"  "+e.Phase+" → "+string(e.Status)) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}
