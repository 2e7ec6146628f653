package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/bastiangx/ordsok/internal/cli"
	"github.com/bastiangx/ordsok/internal/utils"
	"github.com/bastiangx/ordsok/pkg/config"
	"github.com/bastiangx/ordsok/pkg/ordbok"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/bastiangx/ordsok/pkg/search"
	"github.com/bastiangx/ordsok/pkg/server"
	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/bastiangx/ordsok/pkg/web"
	"github.com/charmbracelet/log"
	urfave "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func (a *app) client() (*ordbok.Client, error) {
	client, err := ordbok.NewClient(a.cfg.API)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggest client: %w", err)
	}
	return client, nil
}

func (a *app) history() *suggest.History {
	if a.cfg.Search.HistorySize <= 0 {
		return nil
	}
	return suggest.NewHistory(a.cfg.Search.HistorySize)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// serve runs the web server and, unless disabled, the config watcher
func (a *app) serve(c *urfave.Context) error {
	if addr := c.String("addr"); addr != "" {
		a.cfg.Server.Addr = addr
	}
	client, err := a.client()
	if err != nil {
		return err
	}

	var opts []web.Option
	if h := a.history(); h != nil {
		opts = append(opts, web.WithHistory(h))
	}
	opts = append(opts, web.WithLinker(client.DetailURL))
	srv := web.NewServer(client, a.cfg, opts...)

	ctx, stop := signalContext(c.Context)
	defer stop()

	log.Info("OrdSøk", "version", Version, "addr", a.cfg.Server.Addr, "dicts", strings.Join(a.cfg.API.Dicts, ","))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if a.configPath != "" && !c.Bool("no-watch") {
		addr := a.cfg.Server.Addr
		g.Go(func() error {
			return config.Watch(gctx, a.configPath, func(next *config.Config) {
				if err := client.Apply(next.API); err != nil {
					log.Warnf("Ignoring api settings from %s: %v", a.configPath, err)
				}
				// the listener is already bound
				next.Server.Addr = addr
				srv.Apply(next)
				log.Info("Config reloaded", "path", a.configPath)
			})
		})
	}
	return g.Wait()
}

// ipc answers msgpack requests on stdin/stdout until EOF or a signal
func (a *app) ipc(c *urfave.Context) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	opts := []server.Option{server.WithNoFilter(c.Bool("no-filter") || a.cfg.CLI.DefaultNoFilter)}
	if h := a.history(); h != nil {
		opts = append(opts, server.WithHistory(h))
	}
	srv := server.NewServer(client, opts...)

	ctx, stop := signalContext(c.Context)
	defer stop()

	errs := make(chan error, 1)
	go func() { errs <- srv.Start(ctx) }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		// closing a terminal stdin may not end the read; the process exit does
		log.Debug("IPC server stopped")
		return nil
	}
}

// repl starts the interactive search loop on stdin
func (a *app) repl(c *urfave.Context) error {
	client, err := a.client()
	if err != nil {
		return err
	}

	mode := a.cfg.CLI.DefaultMode
	if m := c.String("mode"); m != "" {
		mode = m
	}
	kind, ok := query.ParseKind(mode)
	if !ok {
		return urfave.Exit(fmt.Sprintf("unknown mode %q, use text or pattern", mode), 2)
	}

	h := a.history()
	sc := a.cfg.Search
	opts := []search.Option{
		search.WithDebounce(sc.Debounce()),
		search.WithMode(kind),
		search.WithPatternLen(sc.PatternLen),
		search.WithMaxLetters(sc.MaxLetters),
		search.WithLinker(client.DetailURL),
	}
	if h != nil {
		opts = append(opts, search.WithHistory(h))
	}
	sess := search.NewSession(client, opts...)
	defer sess.Close()

	printer := cli.NewPrinter(os.Stdout, a.cfg.CLI.ShowLinks, client.DetailURL)
	noFilter := c.Bool("no-filter") || a.cfg.CLI.DefaultNoFilter
	return cli.NewInputHandler(sess, h, printer, os.Stdin, noFilter).Start()
}

// lookup runs a single query and prints the list
func (a *app) lookup(c *urfave.Context) error {
	arg := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if arg == "" {
		return urfave.Exit("missing QUERY, see ordsok lookup -h", 2)
	}

	var q query.Query
	if c.Bool("pattern") {
		q = query.FromPattern(query.ParsePattern(arg))
	} else {
		n := c.Int("len")
		if n < 0 || n > query.MaxLength {
			return urfave.Exit(fmt.Sprintf("--len must be between 0 and %d", query.MaxLength), 2)
		}
		q = query.NewFreeText(arg, n)
	}
	if q.IsEmpty() {
		return urfave.Exit("nothing to look up", 2)
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	printer := cli.NewPrinter(os.Stdout, a.cfg.CLI.ShowLinks, client.DetailURL)

	ctx, stop := signalContext(c.Context)
	defer stop()

	list, err := client.Fetch(ctx, q)
	if err != nil {
		log.Debug("Lookup failed", "url", client.RequestURL(q), "err", err)
		msg := ordbok.UserMessage
		var fe *ordbok.FetchError
		if errors.As(err, &fe) {
			msg = fe.UserMessage()
		}
		return urfave.Exit(msg, 1)
	}
	printer.List(list, q.Term())
	return nil
}

func (a *app) configInit(*urfave.Context) error {
	path := config.GetActiveConfigPath(a.configPath)
	if utils.FileExists(path) {
		log.Info("Config file already exists", "path", path)
		return nil
	}
	if _, err := config.InitConfig(path); err != nil {
		return err
	}
	log.Info("Created config file", "path", path)
	return nil
}

func (a *app) configRebuild(*urfave.Context) error {
	path, err := config.RebuildConfigFile(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to rebuild config: %w", err)
	}
	log.Info("Rebuilt config file with defaults", "path", path)
	return nil
}

func (a *app) configShowPath(*urfave.Context) error {
	info := utils.NewPathResolver().GetRuntimeInfo()
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Debug("Runtime", k, info[k])
	}
	fmt.Println(config.GetActiveConfigPath(a.configPath))
	return nil
}
