// Package app wires the colorbook components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kidcolor/colorbook/internal/config"
	"github.com/kidcolor/colorbook/internal/connectivity"
	"github.com/kidcolor/colorbook/internal/editor"
	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/internal/offline"
	"github.com/kidcolor/colorbook/internal/project"
	"github.com/kidcolor/colorbook/internal/prompt"
	"github.com/kidcolor/colorbook/internal/search"
	"github.com/kidcolor/colorbook/internal/settings"
	"github.com/kidcolor/colorbook/internal/storage"
	"github.com/kidcolor/colorbook/internal/syncer"
	"github.com/kidcolor/colorbook/internal/vectorize"
	"github.com/kidcolor/colorbook/pkg/types"
)

// ErrEmptyQuery is returned for a blank search.
var ErrEmptyQuery = errors.New("search query is empty")

// Searcher finds and fetches images.
type Searcher interface {
	Search(ctx context.Context, query string) (*types.ImageResult, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Options overrides components built from the config. Nil fields use the
// config-driven default.
type Options struct {
	Paths      *config.Paths
	Store      storage.Store
	Prompter   syncer.Prompter
	Renderer   editor.Renderer
	Searcher   Searcher
	Vectorizer vectorize.Vectorizer
	// Online sets the initial connectivity state.
	Online *bool
	// SkipStartupCheck disables the offline queue check New runs when it
	// starts online.
	SkipStartupCheck bool
}

// App holds the application state and its collaborators.
type App struct {
	Config   *types.Config
	Paths    *config.Paths
	Store    storage.Store
	Bus      *event.Bus
	Projects *project.Repository
	Queue    *offline.Queue
	Settings *settings.Store
	Monitor  *connectivity.Monitor
	Sync     *syncer.Coordinator
	Editor   *editor.Session

	searcher   Searcher
	vectorizer vectorize.Vectorizer
	statusFile string
	signal     *connectivity.FileSignal
	log        zerolog.Logger
}

// New builds an App from cfg and starts the sync coordinator.
func New(ctx context.Context, cfg *types.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = &types.Config{}
	}
	config.ApplyDefaults(cfg)

	paths := opts.Paths
	if paths == nil {
		paths = config.GetPaths().WithDataDir(cfg.DataDir)
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = openStore(ctx, cfg.Storage, paths)
		if err != nil {
			return nil, err
		}
	}

	searcher := opts.Searcher
	if searcher == nil {
		client, err := search.FromConfig(cfg.Search)
		if err != nil {
			store.Close()
			return nil, err
		}
		searcher = client
	}

	vec := opts.Vectorizer
	if vec == nil {
		if ev := vectorize.NewExec(cfg.Vectorizer.Command, cfg.Palette); ev != nil {
			vec = ev
		}
	}

	statusFile := cfg.Connectivity.StatusFile
	if statusFile == "" {
		statusFile = paths.ConnectivityFile()
	}

	bus := event.NewBus()
	traceEvents(bus)
	repo := project.NewRepository(store, bus)
	prefs := settings.New(store)

	prompter := opts.Prompter
	if prompter == nil {
		prompter = prompt.Fixed(false)
	}

	a := &App{
		Config:   cfg,
		Paths:    paths,
		Store:    store,
		Bus:      bus,
		Projects: repo,
		Queue:    offline.NewQueue(store, bus),
		Settings: prefs,
		Monitor:  connectivity.New(bus, initialOnline(opts.Online, cfg.Connectivity, statusFile)),
		Editor: editor.New(editor.Options{
			Projects:     repo,
			Settings:     prefs,
			Renderer:     opts.Renderer,
			Bus:          bus,
			HistoryLimit: cfg.History.Limit,
		}),
		searcher:   searcher,
		vectorizer: vec,
		statusFile: statusFile,
		log:        logging.Component("app"),
	}

	a.Sync = syncer.New(a.Queue, prompter, bus)
	a.Sync.Register(types.RequestSearch, syncer.ReplayFunc(a.replaySearch))
	a.Sync.Start(ctx, a.Monitor)

	a.log.Info().
		Str("backend", cfg.Storage.Backend).
		Bool("online", a.Monitor.Online()).
		Bool("vectorizer", vec != nil).
		Msg("colorbook initialized")

	if !opts.SkipStartupCheck {
		a.CheckSavedRequests(ctx)
	}
	return a, nil
}

// CheckSavedRequests offers requests queued before a restart when the app is
// online. Failures are logged.
func (a *App) CheckSavedRequests(ctx context.Context) {
	if !a.Monitor.Online() {
		return
	}
	_, err := a.Sync.CheckOfflineQueue(ctx)
	switch {
	case errors.Is(err, syncer.ErrBusy):
		a.log.Debug().Msg("saved requests handled elsewhere")
	case err != nil:
		a.log.Warn().Err(err).Msg("startup queue check failed")
	}
}

// traceEvents logs every bus event at debug level.
func traceEvents(bus *event.Bus) {
	log := logging.Component("event")
	bus.SubscribeAll(func(e event.Event) {
		log.Debug().Str("type", string(e.Type)).Interface("data", e.Data).Msg("event")
	})
}

func openStore(ctx context.Context, cfg *types.StorageConfig, paths *config.Paths) (storage.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return storage.New(paths.StoragePath()), nil
	case "redis":
		rs, err := storage.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func initialOnline(override *bool, cfg *types.ConnectivityConfig, statusFile string) bool {
	if override != nil {
		return *override
	}
	if cfg.InitialOnline != nil {
		return *cfg.InitialOnline
	}
	if online, err := connectivity.ReadStatus(statusFile); err == nil {
		return online
	}
	return true
}

// StatusFile returns the connectivity status file the app reads and writes.
func (a *App) StatusFile() string {
	return a.statusFile
}

// SetOnline records the host connectivity state and reports whether it
// changed. Going online starts a queue check in the background; use
// a.Sync.Wait to wait for it.
func (a *App) SetOnline(online bool) (bool, error) {
	if err := connectivity.WriteStatus(a.statusFile, online); err != nil {
		return false, fmt.Errorf("failed to write connectivity status: %w", err)
	}
	return a.Monitor.Set(online), nil
}

// Watch follows the connectivity status file until Close.
func (a *App) Watch() error {
	if a.signal != nil {
		return nil
	}
	sig, err := connectivity.NewFileSignal(a.statusFile, a.Monitor)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.statusFile, err)
	}
	sig.Start()
	a.signal = sig
	return nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	var errs []error
	if a.signal != nil {
		if err := a.signal.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	a.Sync.Stop()
	a.Editor.Close()
	if err := a.Bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) notify(level event.Level, msg string, err error) {
	n := event.Notification{Level: level, Source: "search", Message: msg}
	if err != nil {
		n.Error = err.Error()
	}
	a.Bus.Notify(n)
}
