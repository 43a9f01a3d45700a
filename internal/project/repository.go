// Package project provides the durable store of coloring projects.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/internal/storage"
	"github.com/kidcolor/colorbook/pkg/types"
)

// ErrInvalidEntity is returned for writes that cannot be stored, such as a
// project without an id. Nothing is written.
var ErrInvalidEntity = errors.New("invalid project")

// Repository stores projects in the projects partition, keyed by id.
type Repository struct {
	store storage.Store
	bus   *event.Bus
	now   func() time.Time
}

// NewRepository creates a repository. bus may be nil.
func NewRepository(store storage.Store, bus *event.Bus) *Repository {
	return &Repository{store: store, bus: bus, now: time.Now}
}

// NewID returns a fresh project id.
func NewID() string {
	return "proj_" + uuid.NewString()
}

// DisplayName derives a project name from a file name by dropping the
// directory and extension.
func DisplayName(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "Untitled"
	}
	return name
}

// Create assigns an id and creation time to a new project and saves it.
func (r *Repository) Create(ctx context.Context, name string, template types.Template) (*types.Project, error) {
	p := &types.Project{
		ID:        NewID(),
		Name:      DisplayName(name),
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
		Template:  template,
	}
	if err := r.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Save upserts p by id.
func (r *Repository) Save(ctx context.Context, p *types.Project) error {
	if p == nil {
		return fmt.Errorf("%w: nil project", ErrInvalidEntity)
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEntity)
	}

	if err := r.store.Put(ctx, storage.PartitionProjects, p.ID, p); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
		}
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}

	r.publish(event.ProjectSaved, p)
	return nil
}

// Get looks up a project. A missing project is reported with found == false
// and a nil error.
func (r *Repository) Get(ctx context.Context, id string) (p *types.Project, found bool, err error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, nil
	}

	var project types.Project
	if err := r.store.Get(ctx, storage.PartitionProjects, id, &project); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load project %s: %w", id, err)
	}
	return &project, true, nil
}

// List returns every stored project exactly once, oldest first.
// Records that cannot be decoded are skipped and logged.
func (r *Repository) List(ctx context.Context) ([]types.Project, error) {
	projects := []types.Project{}

	err := r.store.Scan(ctx, storage.PartitionProjects, func(key string, data json.RawMessage) error {
		var p types.Project
		if err := json.Unmarshal(data, &p); err != nil {
			logging.Warn().Err(err).Str("projectID", key).Msg("skipping unreadable project")
			return nil
		}
		projects = append(projects, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

// Delete removes a project. Deleting an absent id succeeds.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEntity)
	}

	if err := r.store.Delete(ctx, storage.PartitionProjects, id); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return nil
		}
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}

	r.publish(event.ProjectDeleted, &types.Project{ID: id})
	return nil
}

func (r *Repository) publish(t event.EventType, p *types.Project) {
	if r.bus == nil {
		return
	}
	r.bus.PublishSync(event.Event{
		Type: t,
		Data: event.ProjectData{ProjectID: p.ID, Name: p.Name},
	})
}
