// Package settings stores user preferences in the settings partition.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/kidcolor/colorbook/internal/storage"
)

// Well-known keys.
const (
	KeyLastProject   = "last_project"
	KeySelectedColor = "selected_color"
)

// Store is a key → JSON value store.
type Store struct {
	store storage.Store
}

// New creates a settings store.
func New(store storage.Store) *Store {
	return &Store{store: store}
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if err := s.store.Put(ctx, storage.PartitionSettings, key, value); err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}
	return nil
}

// Get decodes the value under key into dest. found is false when the key is unset.
func (s *Store) Get(ctx context.Context, key string, dest any) (found bool, err error) {
	if err := s.store.Get(ctx, storage.PartitionSettings, key, dest); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load setting %q: %w", key, err)
	}
	return true, nil
}

// Delete unsets key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, storage.PartitionSettings, key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

// Keys returns every set key.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx, storage.PartitionSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return keys, nil
}
