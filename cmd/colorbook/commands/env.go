package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/config"
	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/internal/prompt"
	"github.com/kidcolor/colorbook/pkg/types"
)

var (
	faint   = color.New(color.FgHiBlack)
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

// loadConfig loads configuration and sets up logging for a command.
func loadConfig() (*types.Config, *config.Paths, error) {
	dir, err := GetWorkDir(workDir)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	paths := config.GetPaths().WithDataDir(cfg.DataDir)
	if err := paths.EnsurePaths(); err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.LogToFile = true
	logCfg.LogDir = paths.LogPath()
	if printLogs {
		logCfg.Pretty = true
	} else {
		logCfg.Output = io.Discard
	}
	logging.Init(logCfg)

	return cfg, paths, nil
}

// newApp builds the application for a command.
func newApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, paths, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts.Paths = paths
	if opts.Prompter == nil {
		opts.Prompter = prompt.Select(assumeYes)
	}
	return app.New(ctx, cfg, opts)
}

// openApp is newApp with notifications printed to stderr for as long as the
// app is open. The saved request check runs once printing is in place.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	check := !opts.SkipStartupCheck
	opts.SkipStartupCheck = true
	a, err := newApp(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.Bus.Subscribe(event.NotificationPosted, func(e event.Event) {
		printNotification(os.Stderr, e.Data.(event.Notification))
	})
	if check {
		a.CheckSavedRequests(ctx)
	}
	return a, nil
}

func printNotification(w io.Writer, n event.Notification) {
	var c *color.Color
	switch n.Level {
	case event.LevelError:
		c = failure
	case event.LevelWarn:
		c = warn
	default:
		c = accent
	}
	c.Fprint(w, "● ")
	fmt.Fprintln(w, n.Message)
	if n.Error != "" {
		faint.Fprintf(w, "  %s\n", n.Error)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
