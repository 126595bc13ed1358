package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/five82/lookout/internal/app"
	"github.com/five82/lookout/internal/engine"
	"github.com/five82/lookout/internal/tasks"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lookout: %v\n", err)
		return 1
	}
	return 0
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "lookout",
		Usage:   "Track Sportarr event searches and downloads",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "override config path (default ~/.config/lookout/config.toml)",
			},
			&cli.Int64Flag{
				Name:  "league",
				Usage: "league id to list on the dashboard",
			},
			&cli.IntFlag{
				Name:  "poll",
				Usage: "poll interval in seconds for both queues",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return app.Run(ctx, optionsFrom(cmd))
		},
		Commands: []*cli.Command{
			serveCommand(),
			searchCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the engine headless behind the local HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "address of the local API, e.g. 127.0.0.1:7489",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := optionsFrom(cmd)
			opts.Listen = cmd.String("listen")
			return app.Serve(ctx, opts)
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Request a search for an event or one of its parts",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "event",
				Usage:    "event id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "part",
				Usage: "part name, e.g. \"Main Card\"; omit for the whole event",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key := tasks.EventKey(cmd.Int64("event"))
			if cmd.IsSet("part") {
				key = tasks.PartKey(key.EventID, cmd.String("part"))
			}
			status, err := app.Search(ctx, optionsFrom(cmd), key)
			if errors.Is(err, engine.ErrSearchOutstanding) {
				fmt.Printf("%s already %s\n", key, status)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", key, status)
			return nil
		},
	}
}

func optionsFrom(cmd *cli.Command) app.Options {
	opts := app.Options{
		ConfigPath: cmd.String("config"),
		LeagueID:   cmd.Int64("league"),
	}
	if poll := cmd.Int("poll"); poll > 0 {
		opts.PollEvery = time.Duration(poll) * time.Second
	}
	return opts
}
