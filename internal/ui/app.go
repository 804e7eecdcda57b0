package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/five82/crossbar/internal/config"
	"github.com/five82/crossbar/internal/logtail"
	"github.com/five82/crossbar/internal/prefs"
	"github.com/five82/crossbar/internal/state"
)

const (
	logPaneLines = 8
	logTailLines = 200
)

// Controller is the slice of the coordinator the TUI drives.
type Controller interface {
	Snapshot() state.Snapshot
	Refresh(ctx context.Context) error
	SetOutputInput(ctx context.Context, output, input int) error
	Inputs() int
	Outputs() int
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Controller Controller
	Ports      config.PortsConfig
	Host       string
	LogFile    string
	PollTick   time.Duration
	Prefs      prefs.Prefs
	PrefsPath  string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	ctl       Controller
	ports     config.PortsConfig
	host      string
	logFile   string
	prefsPath string
	pollTick  time.Duration
	keys      keyMap

	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool
	showLogs bool

	snapshot state.Snapshot
	outputs  []int // visible outputs, in order
	inputs   []int // visible inputs, in order; grid columns
	row      int   // index into outputs
	col      int   // index into inputs
	synced   bool  // cursor column has been aligned with the live route

	pending int
	notice  string
	failed  bool

	logViewport viewport.Model
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	m := Model{
		ctx:       ctx,
		ctl:       opts.Controller,
		ports:     opts.Ports,
		host:      opts.Host,
		logFile:   opts.LogFile,
		prefsPath: prefsPath,
		pollTick:  pollTick,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(opts.Prefs.Theme),
		showLogs:  opts.Prefs.ShowLogs,
		outputs:   visiblePorts(opts.Controller.Outputs(), opts.Ports.OutputHidden),
		inputs:    visiblePorts(opts.Controller.Inputs(), opts.Ports.InputHidden),
	}
	for i, o := range m.outputs {
		if o == opts.Prefs.Output {
			m.row = i
		}
	}
	m.snapshot = opts.Controller.Snapshot()
	m.clampColumn()
	m.syncColumn()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick), snapshotCmd(m.ctl)}
	if m.showLogs {
		cmds = append(cmds, readLogsCmd(m.logFile))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(msg.Width, logPaneLines)
		}
		m.logViewport.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{snapshotCmd(m.ctl), tickCmd(m.pollTick)}
		if m.showLogs {
			cmds = append(cmds, readLogsCmd(m.logFile))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.syncColumn()
		return m, nil

	case routeResultMsg:
		m.pending--
		m.failed = msg.err != nil
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s → %s failed: %v", m.outputName(msg.output), m.inputName(msg.input), msg.err)
		} else {
			m.notice = fmt.Sprintf("%s → %s", m.outputName(msg.output), m.inputName(msg.input))
		}
		return m, snapshotCmd(m.ctl)

	case refreshResultMsg:
		m.pending--
		m.failed = msg.err != nil
		if msg.err != nil {
			m.notice = fmt.Sprintf("refresh failed: %v", msg.err)
		} else {
			m.notice = "refreshed"
		}
		return m, snapshotCmd(m.ctl)

	case logsMsg:
		if msg.err == nil {
			m.setLogContent(msg.entries)
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderGrid())
	b.WriteString("\n")
	if m.showLogs {
		b.WriteString(m.renderLogs())
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.savePrefs()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()

	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		if m.showLogs {
			return m, readLogsCmd(m.logFile)
		}

	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
			m.rowChanged()
		}

	case key.Matches(msg, m.keys.Down):
		if m.row < len(m.outputs)-1 {
			m.row++
			m.rowChanged()
		}

	case key.Matches(msg, m.keys.Top):
		m.row = 0
		m.rowChanged()

	case key.Matches(msg, m.keys.Left):
		m.stepColumn(-1)
		m.synced = true

	case key.Matches(msg, m.keys.Right):
		m.stepColumn(1)
		m.synced = true

	case key.Matches(msg, m.keys.Apply):
		output, input, ok := m.cursor()
		if !ok {
			return m, nil
		}
		m.pending++
		m.notice = fmt.Sprintf("switching %s → %s", m.outputName(output), m.inputName(input))
		m.failed = false
		return m, setRouteCmd(m.ctx, m.ctl, output, input)

	case key.Matches(msg, m.keys.Refresh):
		m.pending++
		m.notice = "refreshing"
		m.failed = false
		return m, refreshCmd(m.ctx, m.ctl)
	}
	return m, nil
}

// cursor returns the output and input under the cursor. ok is false when
// the cell is not a route the output offers.
func (m Model) cursor() (output, input int, ok bool) {
	if len(m.outputs) == 0 || len(m.inputs) == 0 {
		return 0, 0, false
	}
	output, input = m.outputs[m.row], m.inputs[m.col]
	return output, input, m.ports.InputAvailable(output, input)
}

// rowInputs returns the visible inputs offered for output.
func (m Model) rowInputs(output int) []int {
	inputs := make([]int, 0, len(m.inputs))
	for _, in := range m.inputs {
		if m.ports.InputAvailable(output, in) {
			inputs = append(inputs, in)
		}
	}
	return inputs
}

// stepColumn moves the cursor to the next offered input in direction dir.
func (m *Model) stepColumn(dir int) {
	if len(m.outputs) == 0 {
		return
	}
	output := m.outputs[m.row]
	for c := m.col + dir; c >= 0 && c < len(m.inputs); c += dir {
		if m.ports.InputAvailable(output, m.inputs[c]) {
			m.col = c
			return
		}
	}
}

func (m *Model) rowChanged() {
	m.synced = false
	m.clampColumn()
	m.syncColumn()
}

// clampColumn moves the cursor off an input the selected output does not
// offer, onto the first one it does.
func (m *Model) clampColumn() {
	if _, _, ok := m.cursor(); ok || len(m.outputs) == 0 {
		return
	}
	allowed := m.rowInputs(m.outputs[m.row])
	if len(allowed) == 0 {
		return
	}
	for c, in := range m.inputs {
		if in == allowed[0] {
			m.col = c
			return
		}
	}
}

// syncColumn moves the cursor column onto the current route of the selected
// output, once per row change and only when a route is known.
func (m *Model) syncColumn() {
	if m.synced || len(m.outputs) == 0 || !m.snapshot.HasStatus() {
		return
	}
	output := m.outputs[m.row]
	current, ok := m.snapshot.Status.InputFor(output, m.ctl.Inputs())
	if !ok || !m.ports.InputAvailable(output, current) {
		return
	}
	for i, in := range m.inputs {
		if in == current {
			m.col = i
			m.synced = true
			return
		}
	}
}

func (m Model) savePrefs() {
	p := prefs.Prefs{Theme: m.theme.Name, ShowLogs: m.showLogs, Output: 1}
	if len(m.outputs) > 0 {
		p.Output = m.outputs[m.row]
	}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		log.Warn().Err(err).Str("path", m.prefsPath).Msg("save preferences failed")
	}
}

func (m Model) inputName(n int) string {
	return m.ports.InputName(n, m.snapshot.Status.InputNames)
}

func (m Model) outputName(n int) string {
	return m.ports.OutputName(n, m.snapshot.Status.OutputNames)
}

func visiblePorts(count int, hidden func(int) bool) []int {
	ports := make([]int, 0, count)
	for n := 1; n <= count; n++ {
		if !hidden(n) {
			ports = append(ports, n)
		}
	}
	return ports
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type routeResultMsg struct {
	output, input int
	err           error
}

type refreshResultMsg struct{ err error }

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func snapshotCmd(ctl Controller) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(ctl.Snapshot())
	}
}

func setRouteCmd(ctx context.Context, ctl Controller, output, input int) tea.Cmd {
	return func() tea.Msg {
		err := ctl.SetOutputInput(ctx, output, input)
		return routeResultMsg{output: output, input: input, err: err}
	}
}

func refreshCmd(ctx context.Context, ctl Controller) tea.Cmd {
	return func() tea.Msg {
		return refreshResultMsg{err: ctl.Refresh(ctx)}
	}
}

func readLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, logTailLines)
		return logsMsg{entries: entries, err: err}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(opts Options) error {
	m := New(opts)
	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		programOpts = append(programOpts, tea.WithContext(opts.Context))
	}
	_, err := tea.NewProgram(m, programOpts...).Run()
	return err
}
