// Package editor holds the state of the project currently open for coloring.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/history"
	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/internal/settings"
	"github.com/kidcolor/colorbook/internal/snapshot"
	"github.com/kidcolor/colorbook/pkg/types"
)

var (
	ErrNoProject       = errors.New("no project open")
	ErrProjectNotFound = errors.New("project not found")
	ErrColorIndex      = errors.New("palette index out of range")
	ErrUnknownRegion   = errors.New("unknown region")
)

// Projects is the project store used by a Session.
type Projects interface {
	Get(ctx context.Context, id string) (*types.Project, bool, error)
	Save(ctx context.Context, p *types.Project) error
}

// Renderer draws a project in a given coloring. It is called after every
// change and must not keep state of its own.
type Renderer interface {
	Render(p *types.Project, s snapshot.Snapshot)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(p *types.Project, s snapshot.Snapshot)

// Render calls f.
func (f RenderFunc) Render(p *types.Project, s snapshot.Snapshot) { f(p, s) }

// Session is the application state of the editor: the open project, the
// selected palette color and the edit history. The history owns the current
// snapshot; the renderer only projects it.
type Session struct {
	projects Projects
	prefs    *settings.Store
	renderer Renderer
	bus      *event.Bus
	limit    int
	log      zerolog.Logger

	mu       sync.Mutex
	project  *types.Project
	history  *history.Manager
	selected int
	dirty    bool
}

// Options configures a Session. Zero values are fine for every field but Projects.
type Options struct {
	Projects     Projects
	Settings     *settings.Store
	Renderer     Renderer
	Bus          *event.Bus
	HistoryLimit int
}

// New creates a Session with no project open.
func New(opts Options) *Session {
	return &Session{
		projects: opts.Projects,
		prefs:    opts.Settings,
		renderer: opts.Renderer,
		bus:      opts.Bus,
		limit:    opts.HistoryLimit,
		log:      logging.Component("editor"),
	}
}

// Open loads a project and starts a fresh history for it. Any previously
// open project is closed and its history discarded.
func (s *Session) Open(ctx context.Context, id string) error {
	p, found, err := s.projects.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}

	current, err := snapshot.FromProject(p)
	if err != nil {
		s.log.Warn().Err(err).Str("projectID", id).Msg("unreadable progress, starting from template")
		s.notify(event.LevelWarn, "saved progress could not be read; starting over", err)
		current = snapshot.FromTemplate(p.Template)
	}

	h := history.New(s.limit)
	h.Begin(current)

	selected := 0
	if s.prefs != nil {
		var idx int
		if ok, err := s.prefs.Get(ctx, settings.KeySelectedColor, &idx); err == nil && ok {
			if _, valid := p.Template.Color(idx); valid {
				selected = idx
			}
		}
		if err := s.prefs.Set(ctx, settings.KeyLastProject, p.ID); err != nil {
			s.log.Warn().Err(err).Msg("could not remember last project")
		}
	}

	s.mu.Lock()
	s.project = p
	s.history = h
	s.selected = selected
	s.dirty = false
	s.mu.Unlock()

	s.log.Info().Str("projectID", p.ID).Str("name", p.Name).Msg("project opened")
	if s.bus != nil {
		s.bus.PublishSync(event.Event{
			Type: event.ProjectOpened,
			Data: event.ProjectData{ProjectID: p.ID, Name: p.Name},
		})
	}
	s.render()
	return nil
}

// Close drops the open project and its history.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = nil
	s.history = nil
	s.dirty = false
}

// Project returns the open project, or nil.
func (s *Session) Project() *types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// Current returns the current coloring.
func (s *Session) Current() (snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return snapshot.Snapshot{}, ErrNoProject
	}
	return s.history.Current(), nil
}

// Selected returns the selected palette index.
func (s *Session) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectColor selects the palette color used by Paint.
func (s *Session) SelectColor(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return ErrNoProject
	}
	if _, ok := s.project.Template.Color(index); !ok {
		n := len(s.project.Template.Palette)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d (palette has %d colors)", ErrColorIndex, index, n)
	}
	s.selected = index
	s.mu.Unlock()

	if s.prefs != nil {
		if err := s.prefs.Set(ctx, settings.KeySelectedColor, index); err != nil {
			s.log.Warn().Err(err).Msg("could not remember selected color")
		}
	}
	return nil
}

// Paint colors a region with the selected color. Painting a region that
// already has that color changes nothing. changed reports whether an edit
// was recorded; a non-nil error with changed == true means the edit was kept
// in memory but could not be saved.
func (s *Session) Paint(ctx context.Context, regionID string) (changed bool, err error) {
	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return false, ErrNoProject
	}
	if _, ok := s.project.Template.Region(regionID); !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownRegion, regionID)
	}
	color, _ := s.project.Template.Color(s.selected)

	current := s.history.Current()
	if current.Fill(regionID) == color {
		s.mu.Unlock()
		return false, nil
	}
	s.history.RecordAndApply(current.With(regionID, color))
	s.mu.Unlock()

	s.render()
	return true, s.Save(ctx)
}

// Undo reverts the last edit and saves. It reports false when there was
// nothing to undo.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	return s.step(ctx, (*history.Manager).Undo)
}

// Redo re-applies the last undone edit and saves.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	return s.step(ctx, (*history.Manager).Redo)
}

func (s *Session) step(ctx context.Context, move func(*history.Manager) (snapshot.Snapshot, bool)) (bool, error) {
	s.mu.Lock()
	if s.history == nil {
		s.mu.Unlock()
		return false, ErrNoProject
	}
	_, ok := move(s.history)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	s.render()
	return true, s.Save(ctx)
}

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history != nil && s.history.CanUndo()
}

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history != nil && s.history.CanRedo()
}

// History returns the open project's history manager.
func (s *Session) History() *history.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Dirty reports whether the current coloring has not been saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Save persists the current coloring as the project's progress. On failure
// the in-memory state is kept and Dirty reports true until a save succeeds.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return ErrNoProject
	}
	encoded := snapshot.Encode(s.history.Current())
	updated := *s.project
	updated.Progress = &encoded
	s.mu.Unlock()

	if err := s.projects.Save(ctx, &updated); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()

		s.log.Error().Err(err).Str("projectID", updated.ID).Msg("save failed")
		s.notify(event.LevelError, "your progress could not be saved", err)
		return err
	}

	s.mu.Lock()
	if s.project != nil && s.project.ID == updated.ID {
		s.project = &updated
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) render() {
	if s.renderer == nil {
		return
	}
	s.mu.Lock()
	p, h := s.project, s.history
	s.mu.Unlock()
	if p == nil || h == nil {
		return
	}
	s.renderer.Render(p, h.Current())
}

func (s *Session) notify(level event.Level, msg string, err error) {
	if s.bus == nil {
		return
	}
	n := event.Notification{Level: level, Source: "editor", Message: msg}
	if err != nil {
		n.Error = err.Error()
	}
	s.bus.Notify(n)
}
