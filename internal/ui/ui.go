package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/five82/lookout/internal/engine"
	"github.com/five82/lookout/internal/logging"
	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/tasks"
)

// Options configure the dashboard.
type Options struct {
	Engine    *engine.Engine
	Fetcher   sportarr.Fetcher
	LeagueID  int64
	PollTick  time.Duration // shown in the header; the pollers own the cadence
	ThemeName string
	PrefsPath string
	Logger    *log.Logger
}

const (
	uiTick       = time.Second
	fetchTimeout = 10 * time.Second
)

type (
	tickMsg    time.Time
	refreshMsg struct{}
	eventsMsg  struct {
		events []sportarr.Event
		err    error
	}
	searchResultMsg struct {
		key tasks.Key
		err error
	}
)

// Run starts the dashboard and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Engine == nil {
		return errors.New("ui requires an engine")
	}
	refreshes := make(chan struct{}, 1)
	unsubscribe := opts.Engine.SubscribeToRefresh(func() {
		select {
		case refreshes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	m := newModel(ctx, opts, refreshes)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(uiTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitForRefresh blocks until the engine signals that downloads completed.
func waitForRefresh(ctx context.Context, ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			return refreshMsg{}
		}
	}
}

func fetchEventsCmd(ctx context.Context, fetcher sportarr.Fetcher, leagueID int64) tea.Cmd {
	return func() tea.Msg {
		if fetcher == nil || leagueID <= 0 {
			return eventsMsg{err: errNoLeague}
		}
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		events, err := fetcher.FetchEvents(ctx, leagueID)
		return eventsMsg{events: events, err: err}
	}
}

func searchCmd(ctx context.Context, eng *engine.Engine, key tasks.Key) tea.Cmd {
	return func() tea.Msg {
		return searchResultMsg{key: key, err: eng.SendSearch(ctx, key)}
	}
}

var errNoLeague = errors.New("no league configured (set league_id or --league)")

func componentLogger(l *log.Logger) *log.Logger {
	return logging.Component(l, "ui")
}
