package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/lookout/internal/engine"
	"github.com/five82/lookout/internal/prefs"
	"github.com/five82/lookout/internal/tasks"
)

type recordingSearcher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *recordingSearcher) IssueSearch(context.Context, tasks.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func newTestModel(t *testing.T, searcher *recordingSearcher) (Model, string) {
	t.Helper()
	prefsPath := filepath.Join(t.TempDir(), "prefs.toml")
	eng := engine.New(engine.Options{Searcher: searcher})
	t.Cleanup(eng.Close)

	m := newModel(context.Background(), Options{Engine: eng, LeagueID: 1, PrefsPath: prefsPath}, nil)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m = update(t, m, eventsMsg{events: sampleEvents()})
	return m, prefsPath
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_SearchThenGuard(t *testing.T) {
	searcher := &recordingSearcher{}
	m, _ := newTestModel(t, searcher)

	r, ok := m.selected()
	if !ok {
		t.Fatalf("no row selected after events loaded")
	}

	m, cmd := press(t, m, "s")
	if cmd == nil {
		t.Fatalf("search key returned no command")
	}
	if got := m.engine.Status(r.key); got != tasks.StatusQueued {
		t.Fatalf("Status before send = %v, want queued", got)
	}
	if searcher.calls != 0 {
		t.Fatalf("searcher calls before command ran = %d, want 0", searcher.calls)
	}
	if view := m.View(); !strings.Contains(view, "queued") {
		t.Fatalf("View right after keypress does not show queued")
	}
	m = update(t, m, cmd())

	if got := m.engine.Status(r.key); got != tasks.StatusQueued {
		t.Fatalf("Status = %v, want queued", got)
	}
	if !strings.Contains(m.message, "search queued") {
		t.Fatalf("message = %q, want search queued", m.message)
	}

	m, cmd = press(t, m, "s")
	if cmd != nil {
		t.Fatalf("second search key returned a command")
	}
	if !strings.Contains(m.message, "already queued") {
		t.Fatalf("message = %q, want already queued", m.message)
	}
	if searcher.calls != 1 {
		t.Fatalf("searcher calls = %d, want 1", searcher.calls)
	}
}

func TestModel_SearchFailureShowsError(t *testing.T) {
	m, _ := newTestModel(t, &recordingSearcher{err: errors.New("connection refused")})
	r, _ := m.selected()

	m, cmd := press(t, m, "s")
	m = update(t, m, cmd())

	if !m.messageErr || !strings.Contains(m.message, "search failed") {
		t.Fatalf("message = %q (err=%v), want search failed", m.message, m.messageErr)
	}
	if got := m.engine.Status(r.key); got != tasks.StatusIdle {
		t.Fatalf("Status = %v, want idle after rollback", got)
	}
}

func TestModel_FilterNarrowsRows(t *testing.T) {
	m, _ := newTestModel(t, &recordingSearcher{})
	total := len(m.visible)

	m, _ = press(t, m, "/")
	if !m.filtering {
		t.Fatalf("filter mode not entered")
	}
	for _, ch := range "monaco" {
		m, _ = press(t, m, string(ch))
	}
	if len(m.visible) != 1 {
		t.Fatalf("visible = %d rows, want 1", len(m.visible))
	}
	m, _ = press(t, m, "enter")
	if m.filtering {
		t.Fatalf("filter mode still active after enter")
	}
	if r, _ := m.selected(); r.key != tasks.EventKey(3) {
		t.Fatalf("selected = %v, want event 3", r.key)
	}

	m, _ = press(t, m, "esc")
	if len(m.visible) != total {
		t.Fatalf("visible = %d rows after clear, want %d", len(m.visible), total)
	}
}

func TestModel_HideIdleAndThemePersist(t *testing.T) {
	m, prefsPath := newTestModel(t, &recordingSearcher{})
	key := m.rows[m.visible[1]].key
	m.engine.OnSearchRequested(key)

	m, _ = press(t, m, "i")
	if len(m.visible) != 1 || m.rows[m.visible[0]].key != key {
		t.Fatalf("visible after hide idle = %v, want only %v", m.visible, key)
	}
	m, _ = press(t, m, "T")

	saved := prefs.Load(prefsPath)
	if !saved.HideIdle || saved.Theme != m.theme.Name || saved.Theme != "Dracula" {
		t.Fatalf("saved prefs = %+v, want hide idle with Dracula", saved)
	}
}

func TestModel_SelectionSurvivesReload(t *testing.T) {
	m, _ := newTestModel(t, &recordingSearcher{})
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j")
	want, _ := m.selected()

	m = update(t, m, eventsMsg{events: sampleEvents()})
	if got, _ := m.selected(); got.key != want.key {
		t.Fatalf("selected after reload = %v, want %v", got.key, want.key)
	}
}

func TestModel_EventsErrorKeepsRows(t *testing.T) {
	m, _ := newTestModel(t, &recordingSearcher{})
	rows := len(m.rows)

	m = update(t, m, eventsMsg{err: errors.New("timeout")})
	if len(m.rows) != rows || m.eventsErr == nil {
		t.Fatalf("rows = %d err = %v, want %d rows with error", len(m.rows), m.eventsErr, rows)
	}
	if view := m.View(); !strings.Contains(view, "lookout") {
		t.Fatalf("View missing header")
	}
}

func TestModel_NoLeague(t *testing.T) {
	msg := fetchEventsCmd(context.Background(), nil, 0)()
	got, ok := msg.(eventsMsg)
	if !ok || !errors.Is(got.err, errNoLeague) {
		t.Fatalf("fetchEventsCmd without league = %#v, want errNoLeague", msg)
	}
}
