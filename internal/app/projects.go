package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kidcolor/colorbook/internal/settings"
	"github.com/kidcolor/colorbook/internal/vectorize"
	"github.com/kidcolor/colorbook/pkg/types"
)

// ErrNoVectorizer is returned when an image needs vectorizing and no
// vectorizer command is configured.
var ErrNoVectorizer = errors.New("no vectorizer configured")

// CreateProject creates a project from a file. Template files (.yaml, .yml,
// .json) are used as is; anything else is treated as an image and
// vectorized. name defaults to the file name.
func (a *App) CreateProject(ctx context.Context, path, name string) (*types.Project, error) {
	if name == "" {
		name = filepath.Base(path)
	}

	var (
		tmpl types.Template
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		tmpl, err = vectorize.LoadTemplate(path)
	default:
		tmpl, err = a.vectorizeFile(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	p, err := a.Projects.Create(ctx, name, tmpl)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("projectID", p.ID).Str("source", path).Msg("project created")
	return p, nil
}

func (a *App) vectorizeFile(ctx context.Context, path string) (types.Template, error) {
	if a.vectorizer == nil {
		return types.Template{}, ErrNoVectorizer
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return types.Template{}, err
	}
	tmpl, err := a.vectorizer.Vectorize(ctx, image)
	if err != nil {
		return types.Template{}, fmt.Errorf("failed to process %s: %w", filepath.Base(path), err)
	}
	return tmpl, nil
}

// OpenLast opens the most recently opened project, if it still exists.
func (a *App) OpenLast(ctx context.Context) (bool, error) {
	var id string
	found, err := a.Settings.Get(ctx, settings.KeyLastProject, &id)
	if err != nil || !found || id == "" {
		return false, err
	}
	if _, ok, err := a.Projects.Get(ctx, id); err != nil || !ok {
		return false, err
	}
	return true, a.Editor.Open(ctx, id)
}
