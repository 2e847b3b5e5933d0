package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"

	"monthgrid/internal/auth"
	"monthgrid/internal/capture"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/loop"
	"monthgrid/internal/tui"
	"monthgrid/internal/web"
)

func parseCommon(name string, args []string, extra func(fs *flag.FlagSet)) (flagConfig, error) {
	var f flagConfig
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f.register(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return f, nil
}

// runTUI is the default command.
func runTUI(ctx context.Context, args []string) error {
	flags, err := parseCommon("monthgrid", args, nil)
	if err != nil {
		return err
	}
	conf, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI; log to a file instead.
	if err := os.MkdirAll(conf.CacheDir, 0o700); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(conf.CacheDir, "monthgrid.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()
	appLog.SetOutput(logFile)
	defer appLog.SetOutput(os.Stderr)

	app, err := newGridApp(conf)
	if err != nil {
		return err
	}
	m := tui.New(ctx, app.ctrl, app.source, tui.NewStyles(app.palette))

	var sched *cron.Cron
	err = tui.Run(ctx, m, func(p *tea.Program) {
		c, err := app.startScheduler(
			func() { p.Send(tui.RefreshMsg{}) },
			func() { p.Send(tui.DayChangedMsg{}) },
		)
		if err != nil {
			appLog.Error("scheduler disabled", err)
			return
		}
		sched = c
	})
	if sched != nil {
		<-sched.Stop().Done()
	}
	return err
}

func runServe(ctx context.Context, args []string) error {
	flags, err := parseCommon("serve", args, nil)
	if err != nil {
		return err
	}
	conf, err := loadConfig(flags)
	if err != nil {
		return err
	}
	app, err := newGridApp(conf)
	if err != nil {
		return err
	}

	ui := loop.New(64)
	loopErr := make(chan error, 1)
	go func() { loopErr <- ui.Run(ctx) }()

	if app.source != nil {
		if err := ui.Do(ctx, func() {
			app.ctrl.LoadEvents(ctx, app.source, ui.PostFunc)
		}); err != nil {
			return err
		}
	}

	sched, err := app.startScheduler(
		func() {
			if !ui.Post(func() { app.ctrl.LoadEvents(ctx, app.source, ui.PostFunc) }) {
				appLog.Warn("event refresh skipped, loop busy")
			}
		},
		// Cron jobs run on their own goroutines; wait for room rather than
		// lose the midnight recompute of today.
		func() { ui.PostFunc(app.ctrl.Reload) },
	)
	if err != nil {
		return err
	}
	defer func() { <-sched.Stop().Done() }()

	srv := web.NewServer(web.Options{
		Listen:      conf.Listen,
		Controller:  app.ctrl,
		Loop:        ui,
		Source:      app.source,
		Palette:     app.palette,
		Auth:        app.credentials(),
		PreviewPath: app.previewPath(),
	})
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	<-loopErr
	appLog.Info("monthgrid exiting")
	return nil
}

func runPrint(args []string) error {
	section := -1
	flags, err := parseCommon("print", args, func(fs *flag.FlagSet) {
		fs.IntVar(&section, "section", -1, "Section to print (default: current month)")
	})
	if err != nil {
		return err
	}
	conf, err := loadConfig(flags)
	if err != nil {
		return err
	}
	app, err := newGridApp(conf)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.loadEventsNow(ctx)

	if section < 0 {
		section = app.ctrl.DisplaySection()
	}
	if app.ctrl.ItemCount(section) == 0 {
		return fmt.Errorf("section %d outside 0..%d", section, app.ctrl.SectionCount()-1)
	}
	_, err = fmt.Fprint(os.Stdout, tui.Render(app.ctrl, section, -1, tui.NewStyles(app.palette)))
	return err
}

func runSnapshot(ctx context.Context, args []string) error {
	var (
		out     string
		section int
		width   int
		height  int
	)
	flags, err := parseCommon("snapshot", args, func(fs *flag.FlagSet) {
		fs.StringVar(&out, "out", "", "PNG output path (default: <cache_dir>/preview.png)")
		fs.IntVar(&section, "section", -1, "Section to render (default: current month)")
		fs.IntVar(&width, "width", capture.DefaultWidth, "Viewport width")
		fs.IntVar(&height, "height", capture.DefaultHeight, "Viewport height")
	})
	if err != nil {
		return err
	}
	conf, err := loadConfig(flags)
	if err != nil {
		return err
	}
	app, err := newGridApp(conf)
	if err != nil {
		return err
	}
	if out == "" {
		out = app.previewPath()
	}
	creds := app.credentials()
	if creds.Enabled() && creds.Password == "" {
		return errors.New("snapshot needs basic_auth.password to reach a protected server")
	}
	app.loadEventsNow(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ui := loop.New(16)
	go ui.Run(ctx)

	srv := web.NewServer(web.Options{
		Listen:      conf.Listen,
		Controller:  app.ctrl,
		Loop:        ui,
		Palette:     app.palette,
		Auth:        creds,
		PreviewPath: out,
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(ctx) }()

	base := "http://" + conf.Listen
	if err := waitHealthy(ctx, base+"/health", srvErr); err != nil {
		return err
	}
	err = capture.CaptureGridPNG(ctx, capture.Options{
		BaseURL:    base,
		Section:    section,
		Username:   creds.Username,
		Password:   creds.Password,
		OutputPath: out,
		Width:      width,
		Height:     height,
	})
	cancel()
	if serveErr := <-srvErr; serveErr != nil && err == nil {
		err = serveErr
	}
	return err
}

// waitHealthy polls url until it answers 200.
func waitHealthy(ctx context.Context, url string, srvErr <-chan error) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-srvErr:
			return fmt.Errorf("server stopped: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server at %s did not become healthy", url)
}

func runHashPassword(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	username := fs.String("username", "admin", "Username to print in the config snippet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	password, err := auth.PromptPassword(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Printf("basic_auth:\n  username: %s\n  password_hash: %q\n", *username, hash)
	return nil
}
