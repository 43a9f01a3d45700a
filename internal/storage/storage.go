// Package storage provides partitioned, durable JSON key-value storage.
//
// Two backends implement Store: a file backend (one JSON file per key, written
// atomically under a lock) and a Redis backend (one hash per partition).
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps every failure of the underlying store.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalidKey is returned for keys that cannot be stored.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrLocked is returned by TryLock while another holder has the lock.
	ErrLocked = errors.New("lock held elsewhere")
)

// Partitions used by colorbook.
const (
	PartitionProjects     = "projects"
	PartitionSettings     = "settings"
	PartitionOfflineQueue = "offline_queue"
)

// Store is a set of independent keyed partitions holding JSON values.
type Store interface {
	// Get decodes the value at partition/key into v, or returns ErrNotFound.
	Get(ctx context.Context, partition, key string, v any) error
	// Put stores v at partition/key, replacing any previous value.
	Put(ctx context.Context, partition, key string, v any) error
	// Delete removes partition/key. Deleting an absent key is not an error.
	Delete(ctx context.Context, partition, key string) error
	// List returns every key in the partition in ascending order.
	List(ctx context.Context, partition string) ([]string, error)
	// Scan calls fn for every entry of the partition in ascending key order.
	// The set of entries is fixed when Scan starts.
	Scan(ctx context.Context, partition string, fn func(key string, data json.RawMessage) error) error
	// Clear removes the whole partition in one step.
	Clear(ctx context.Context, partition string) error
	// DeleteKeys removes exactly the given keys of a partition. Absent keys
	// are ignored; keys written concurrently that are not listed survive.
	DeleteKeys(ctx context.Context, partition string, keys []string) error
	// TryLock takes the named lock without waiting, or returns ErrLocked.
	// The lock is shared with every process using the same backend.
	TryLock(ctx context.Context, name string) (unlock func() error, err error)
	// Close releases backend resources.
	Close() error
}

func validate(partition, key string) error {
	if err := validatePartition(partition); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func validatePartition(partition string) error {
	if partition == "" || strings.ContainsAny(partition, `/\.`) {
		return fmt.Errorf("%w: partition %q", ErrInvalidKey, partition)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
