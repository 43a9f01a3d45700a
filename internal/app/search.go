package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/offline"
	"github.com/kidcolor/colorbook/internal/search"
	"github.com/kidcolor/colorbook/pkg/types"
)

// SearchOutcome describes what a search did.
type SearchOutcome struct {
	Query string
	// Queued is set when the search was saved for later; RequestID is the
	// queued request.
	Queued    bool
	RequestID string
	Result    *types.ImageResult
	// Project is the project created from the result, when a vectorizer is
	// configured.
	Project *types.Project
}

// Search runs an image search, or queues it when offline.
func (a *App) Search(ctx context.Context, query string) (*SearchOutcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if !a.Monitor.Online() {
		id, err := a.Queue.Enqueue(ctx, types.RequestSearch, types.SearchPayload{Query: query})
		if err != nil {
			a.notify(event.LevelError, "your search could not be saved", err)
			return nil, err
		}
		a.notify(event.LevelInfo, fmt.Sprintf("You are offline. Your search for %q has been saved and will run when you reconnect.", query), nil)
		return &SearchOutcome{Query: query, Queued: true, RequestID: id}, nil
	}

	out, err := a.runSearch(ctx, query)
	if err != nil && !errors.Is(err, search.ErrNotFound) {
		a.notify(event.LevelError, "Could not fetch image. The service might be down or the key is invalid.", err)
	}
	return out, err
}

func (a *App) runSearch(ctx context.Context, query string) (*SearchOutcome, error) {
	out := &SearchOutcome{Query: query}

	result, err := a.searcher.Search(ctx, query)
	if err != nil {
		if errors.Is(err, search.ErrNotFound) {
			a.notify(event.LevelInfo, fmt.Sprintf("No images found for %q", query), nil)
		}
		return out, err
	}
	out.Result = result

	if a.vectorizer == nil {
		a.log.Info().Str("query", query).Str("url", result.URL).Msg("image found, no vectorizer configured")
		a.notify(event.LevelInfo, fmt.Sprintf("Found an image for %q: %s", query, result.URL), nil)
		return out, nil
	}

	image, err := a.searcher.Download(ctx, result.URL)
	if err != nil {
		return out, err
	}
	tmpl, err := a.vectorizer.Vectorize(ctx, image)
	if err != nil {
		return out, fmt.Errorf("failed to process image: %w", err)
	}
	p, err := a.Projects.Create(ctx, query, tmpl)
	if err != nil {
		return out, err
	}
	out.Project = p

	a.log.Info().Str("query", query).Str("projectID", p.ID).Msg("project created from search")
	a.notify(event.LevelInfo, fmt.Sprintf("Created %q from your search", p.Name), nil)
	return out, nil
}

// replaySearch runs a queued search. A search with no results has been
// reported to the user and is not a replay failure.
func (a *App) replaySearch(ctx context.Context, req types.OfflineRequest) error {
	var payload types.SearchPayload
	if err := offline.DecodePayload(req, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Query) == "" {
		return ErrEmptyQuery
	}
	_, err := a.runSearch(ctx, payload.Query)
	if errors.Is(err, search.ErrNotFound) {
		return nil
	}
	return err
}
