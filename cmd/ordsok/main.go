// Copyright 2025 The OrdSøk Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the OrdSøk search server, IPC server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

OrdSøk looks Norwegian words up in the Bokmål and Nynorsk dictionaries of the
University of Bergen. Words can be found by free text, with * as a wildcard and
an optional exact length, or by a letter pattern where unknown letters are
left open.

# Usage

Serve the search page and JSON API on :8080:

	ordsok serve

Use a custom config file and enable debug mode:

	ordsok -c ./config.toml -d serve --addr :9000

One-off lookups:

	ordsok lookup fisk
	ordsok lookup --len 5 "bil*"
	ordsok lookup --pattern "f.s_"

Run the interactive REPL for testing:

	ordsok repl --mode pattern

# Configuration

Runtime configuration is managed through a TOML file created with defaults on
first use, in the user config dir:

	[api]
	base_url = "https://ord.uib.no/api/suggest"
	dicts = ["bm", "nn"]
	limit = 50

	[search]
	debounce_ms = 300
	default_mode = "pattern"

	[server]
	addr = ":8080"

The serve command reloads the file when it changes, no restart needed.
Settings can also come from the environment or a .env file:

	ORDSOK_CONFIG   config file path
	ORDSOK_ADDR     listen address for serve
	ORDSOK_DEBUG    enable debug logging

# IPC Protocol

The ipc command speaks MessagePack over stdin/stdout, for editor integrations:

	{"id": "req1", "q": "fisk", "m": "t"}

	{"id": "req1", "s": [{"w": "fisk", "d": ["bm", "nn"], "r": 1}], "c": 1, "t": 145}

See pkg/server for the full message set.
*/
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/bastiangx/ordsok/internal/logger"
	"github.com/bastiangx/ordsok/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const (
	Version = "0.3.0-beta"
	AppName = "ordsok"
	gh      = "https://github.com/bastiangx/ordsok"
)

// app carries what every command needs after flags are parsed
type app struct {
	cfg        *config.Config
	configPath string
}

// main only wires flags to commands; the commands live in commands.go.
func main() {
	// .env is optional; real env vars win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Failed to load .env: %v", err)
	}

	a := &app{}
	cli.VersionPrinter = func(*cli.Context) { printVersion() }

	cliApp := &cli.App{
		Name:                   AppName,
		Usage:                  "Norwegian word search over the Bokmål and Nynorsk dictionaries",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: user config dir)",
				EnvVars: []string{"ORDSOK_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Toggle debug mode",
				EnvVars: []string{"ORDSOK_DEBUG"},
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the search page, JSON API and WebSocket sessions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address (overrides config)",
						EnvVars: []string{"ORDSOK_ADDR"},
					},
					&cli.BoolFlag{
						Name:  "no-watch",
						Usage: "Do not reload the config file when it changes",
					},
				},
				Action: a.serve,
			},
			{
				Name:   "ipc",
				Usage:  "Answer MessagePack lookups on stdin/stdout",
				Flags:  []cli.Flag{noFilterFlag()},
				Action: a.ipc,
			},
			{
				Name:    "repl",
				Aliases: []string{"r"},
				Usage:   "Interactive search -- useful for testing and debugging",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Start in text or pattern mode (default from config)",
					},
					noFilterFlag(),
				},
				Action: a.repl,
			},
			{
				Name:      "lookup",
				Aliases:   []string{"l"},
				Usage:     "Look a word or pattern up once",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "pattern",
						Aliases: []string{"p"},
						Usage:   "Read QUERY as a letter pattern (. _ ? for unknown letters)",
					},
					&cli.IntFlag{
						Name:    "len",
						Aliases: []string{"n"},
						Usage:   "Only words of exactly this many characters (text queries)",
					},
				},
				Action: a.lookup,
			},
			{
				Name:  "config",
				Usage: "Manage the config file",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Create the config file with defaults if it is missing",
						Action: a.configInit,
					},
					{
						Name:   "rebuild",
						Usage:  "Overwrite the config file with defaults",
						Action: a.configRebuild,
					},
					{
						Name:   "path",
						Usage:  "Print the active config file path",
						Action: a.configShowPath,
					},
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func noFilterFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "no-filter",
		Usage: "Disable input filtering (DBG only) - sends digits and symbols to the service",
	}
}

// before sets the log level and loads the config for every command
func (a *app) before(c *cli.Context) error {
	logger.SetDebug(c.Bool("debug"))

	cfg, path, err := config.LoadConfigWithPriority(c.String("config"))
	if err != nil {
		return err
	}
	a.cfg, a.configPath = cfg, path
	log.Debugf("Using config file: (%s)", path)
	return nil
}

// printVersion shows the version banner, styled like the log output.
func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ OrdSøk ] Norwegian word search")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}
