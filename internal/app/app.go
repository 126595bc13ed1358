package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/five82/lookout/internal/config"
	"github.com/five82/lookout/internal/engine"
	"github.com/five82/lookout/internal/logging"
	"github.com/five82/lookout/internal/server"
	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/state"
	"github.com/five82/lookout/internal/tasks"
	"github.com/five82/lookout/internal/ui"
)

// Options configure a lookout session. Non-zero fields override the config file.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/lookout/prefs.toml
	LeagueID   int64
	PollEvery  time.Duration
	Listen     string
}

type session struct {
	cfg     config.Config
	logger  *log.Logger
	closer  io.Closer
	client  *sportarr.Client
	engine  *engine.Engine
	polling PollIntervals
}

func (s *session) Close() {
	s.engine.Close()
	_ = s.closer.Close()
}

// newSession loads config, opens the logger and builds the client and engine.
// The TUI owns the terminal, so only headless sessions log to stderr.
func newSession(opts Options, logToStderr bool) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LeagueID > 0 {
		cfg.LeagueID = opts.LeagueID
	}
	if opts.PollEvery > 0 {
		cfg.Poll.SearchQueue = opts.PollEvery
		cfg.Poll.Downloads = opts.PollEvery
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	logOpts := logging.Options{File: cfg.Log.File, Level: cfg.Log.Level}
	if logToStderr {
		logOpts.File = ""
	}
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	client, err := sportarr.NewClient(cfg.APIURL, sportarr.Options{
		APIKey:    cfg.APIKey,
		RateLimit: cfg.Search.RateLimit,
	})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("init sportarr client: %w", err)
	}

	eng := engine.New(engine.Options{
		Store:         state.NewStore(nil),
		Searcher:      client,
		MaxPendingAge: cfg.Search.MaxPendingAge,
		RefreshSettle: cfg.Search.RefreshSettle,
		Logger:        logger,
	})

	return &session{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		client:  client,
		engine:  eng,
		polling: PollIntervals{SearchQueue: cfg.Poll.SearchQueue, Downloads: cfg.Poll.Downloads, Prune: cfg.Poll.Prune},
	}, nil
}

// Run boots the dashboard until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	s, err := newSession(opts, false)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("starting dashboard", "api", s.client.BaseURL(), "league", s.cfg.LeagueID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return RunPollers(gctx, s.engine, s.client, s.polling, s.logger)
	})
	if s.cfg.Server.Listen != "" {
		g.Go(func() error {
			return server.ListenAndServe(gctx, s.cfg.Server.Listen, server.New(s.engine, s.logger), s.logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return ui.Run(gctx, ui.Options{
			Engine:    s.engine,
			Fetcher:   s.client,
			LeagueID:  s.cfg.LeagueID,
			PollTick:  s.polling.SearchQueue,
			PrefsPath: opts.PrefsPath,
			Logger:    s.logger,
		})
	})
	return g.Wait()
}

// Serve runs the engine headless behind the local API.
func Serve(ctx context.Context, opts Options) error {
	s, err := newSession(opts, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.Server.Listen == "" {
		return errors.New("serve requires a listen address (--listen or server.listen)")
	}
	s.logger.Info("starting headless engine", "api", s.client.BaseURL(), "listen", s.cfg.Server.Listen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return RunPollers(gctx, s.engine, s.client, s.polling, s.logger)
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, s.cfg.Server.Listen, server.New(s.engine, s.logger), s.logger)
	})
	return g.Wait()
}

// Search sends a single search request, refusing when the server already
// has one pending or active for key.
func Search(ctx context.Context, opts Options, key tasks.Key) (tasks.Status, error) {
	s, err := newSession(opts, true)
	if err != nil {
		return tasks.StatusIdle, err
	}
	defer s.Close()

	if err := refreshSearchQueue(ctx, s.engine, s.client); err != nil {
		return tasks.StatusIdle, fmt.Errorf("fetch search queue: %w", err)
	}
	if err := s.engine.RequestSearch(ctx, key); err != nil {
		return s.engine.Status(key), err
	}
	return s.engine.Status(key), nil
}
