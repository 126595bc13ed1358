package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/five82/lookout/internal/engine"
	"github.com/five82/lookout/internal/prefs"
	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/state"
	"github.com/five82/lookout/internal/tasks"
)

// Model is the Bubble Tea model of the dashboard.
type Model struct {
	ctx      context.Context
	engine   *engine.Engine
	fetcher  sportarr.Fetcher
	leagueID int64
	pollTick time.Duration
	logger   *log.Logger

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	filter  textinput.Model

	theme     Theme
	prefsPath string
	hideIdle  bool
	filtering bool

	rows    []row
	visible []int
	cursor  int
	offset  int

	snapshot     state.Snapshot
	eventsLoaded time.Time
	eventsErr    error
	loading      bool
	message      string
	messageErr   bool
	now          time.Time

	refreshes <-chan struct{}

	width  int
	height int
}

func newModel(ctx context.Context, opts Options, refreshes <-chan struct{}) Model {
	userPrefs := prefs.Load(opts.PrefsPath)
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = userPrefs.Theme
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter events"
	filter.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := Model{
		ctx:       ctx,
		engine:    opts.Engine,
		fetcher:   opts.Fetcher,
		leagueID:  opts.LeagueID,
		pollTick:  opts.PollTick,
		logger:    componentLogger(opts.Logger),
		keys:      defaultKeys(),
		help:      help.New(),
		spinner:   sp,
		filter:    filter,
		theme:     GetTheme(themeName),
		prefsPath: opts.PrefsPath,
		hideIdle:  userPrefs.HideIdle,
		loading:   true,
		refreshes: refreshes,
		now:       time.Now(),
	}
	if m.engine != nil {
		m.snapshot = m.engine.Snapshot()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(),
		m.spinner.Tick,
		fetchEventsCmd(m.ctx, m.fetcher, m.leagueID),
	}
	if m.refreshes != nil {
		cmds = append(cmds, waitForRefresh(m.ctx, m.refreshes))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.clamp()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		m.syncSnapshot()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		m.logger.Debug("refresh signal received, reloading events")
		m.loading = true
		return m, tea.Batch(
			fetchEventsCmd(m.ctx, m.fetcher, m.leagueID),
			waitForRefresh(m.ctx, m.refreshes),
		)

	case eventsMsg:
		m.loading = false
		if msg.err != nil {
			m.eventsErr = msg.err
			m.logger.Warn("fetch events failed", "league", m.leagueID, "err", msg.err)
			return m, nil
		}
		m.eventsErr = nil
		m.eventsLoaded = time.Now()
		m.setRows(buildRows(msg.events))
		return m, nil

	case searchResultMsg:
		m.syncSnapshot()
		switch {
		case msg.err == nil:
			m.setMessage(fmt.Sprintf("search queued for %s", m.describe(msg.key)), false)
		case errors.Is(msg.err, engine.ErrSearchOutstanding):
			m.setMessage(fmt.Sprintf("%s is already %s", m.describe(msg.key), m.engine.Status(msg.key)), false)
		default:
			m.setMessage(fmt.Sprintf("search failed: %v", msg.err), true)
		}
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyVisible()
		return m, nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor, m.offset = 0, 0
	m.applyVisible()
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.up):
		m.cursor--
		m.clamp()
	case key.Matches(msg, m.keys.down):
		m.cursor++
		m.clamp()
	case key.Matches(msg, m.keys.top):
		m.cursor = 0
		m.clamp()
	case key.Matches(msg, m.keys.bottom):
		m.cursor = len(m.visible) - 1
		m.clamp()
	case key.Matches(msg, m.keys.filter):
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.clear):
		m.filter.SetValue("")
		m.applyVisible()
	case key.Matches(msg, m.keys.hideIdle):
		m.hideIdle = !m.hideIdle
		m.applyVisible()
		m.savePrefs()
	case key.Matches(msg, m.keys.theme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.setMessage("theme: "+m.theme.Name, false)
	case key.Matches(msg, m.keys.reload):
		m.loading = true
		return m, fetchEventsCmd(m.ctx, m.fetcher, m.leagueID)
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		m.clamp()
	case key.Matches(msg, m.keys.search):
		return m.requestSearch()
	}
	return m, nil
}

// requestSearch marks the row queued and applies the status guard inside
// Update; only the send runs as a command. Repeated key presses never reach
// the server.
func (m Model) requestSearch() (tea.Model, tea.Cmd) {
	r, ok := m.selected()
	if !ok || m.engine == nil {
		return m, nil
	}
	if err := m.engine.BeginSearch(r.key); err != nil {
		if errors.Is(err, engine.ErrSearchOutstanding) {
			m.setMessage(fmt.Sprintf("%s is already %s", r.label(), m.engine.Status(r.key)), false)
		} else {
			m.setMessage(fmt.Sprintf("search failed: %v", err), true)
		}
		return m, nil
	}
	m.setMessage("searching "+r.label()+"…", false)
	return m, searchCmd(m.ctx, m.engine, r.key)
}

func (m *Model) setRows(rows []row) {
	var current tasks.Key
	r, hadSelection := m.selected()
	if hadSelection {
		current = r.key
	}
	m.rows = rows
	m.applyVisible()
	if hadSelection {
		for i, idx := range m.visible {
			if m.rows[idx].key == current {
				m.cursor = i
				break
			}
		}
		m.clamp()
	}
}

func (m *Model) applyVisible() {
	idx := filterRows(m.rows, m.filter.Value())
	if m.hideIdle && m.engine != nil {
		idx = dropIdle(m.rows, idx, m.engine.Status)
	}
	m.visible = idx
	m.clamp()
}

func (m *Model) syncSnapshot() {
	if m.engine == nil {
		return
	}
	m.snapshot = m.engine.Snapshot()
	if m.hideIdle {
		m.applyVisible()
	}
}

func (m *Model) clamp() {
	m.cursor, m.offset = clampCursor(m.cursor, m.offset, len(m.visible), m.tableHeight())
}

func (m Model) selected() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return row{}, false
	}
	return m.rows[m.visible[m.cursor]], true
}

func (m Model) describe(k tasks.Key) string {
	for _, r := range m.rows {
		if r.key == k {
			return r.label()
		}
	}
	return k.String()
}

func (m *Model) setMessage(text string, isErr bool) {
	m.message = text
	m.messageErr = isErr
}

func (m Model) savePrefs() {
	p := prefs.Prefs{Theme: m.theme.Name, HideIdle: m.hideIdle}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.Warn("save preferences failed", "err", err)
	}
}
