// Package offline implements the durable queue of requests deferred while
// the device is offline.
package offline

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/internal/storage"
	"github.com/kidcolor/colorbook/pkg/types"
)

// ErrInvalidRequest is returned by Enqueue for requests that cannot be replayed.
var ErrInvalidRequest = errors.New("invalid offline request")

// IDPrefix prefixes every request id.
const IDPrefix = "req_"

// Queue is a FIFO of OfflineRequest kept in the offline_queue partition.
// Request ids sort in enqueue order, so listing by id is listing in FIFO
// order. Entries are never removed one by one: Remove drops a listed batch
// and Clear drops everything.
type Queue struct {
	store storage.Store
	bus   *event.Bus
	ids   *idSource
	now   func() time.Time
}

// NewQueue creates a queue. bus may be nil.
func NewQueue(store storage.Store, bus *event.Bus) *Queue {
	return &Queue{
		store: store,
		bus:   bus,
		ids:   newIDSource(crand.Reader),
		now:   time.Now,
	}
}

// idSource produces strictly increasing ULIDs, even when several are made
// within one millisecond or the wall clock steps backwards.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	lastMS  uint64
}

func newIDSource(r io.Reader) *idSource {
	return &idSource{entropy: ulid.Monotonic(r, 0)}
}

func (s *idSource) next(t time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := ulid.Timestamp(t)
	if ms < s.lastMS {
		ms = s.lastMS
	}
	id, err := ulid.New(ms, s.entropy)
	if err != nil {
		return "", err
	}
	s.lastMS = ms
	return IDPrefix + id.String(), nil
}

// Enqueue records a request of type typ. payload is stored as JSON and must
// carry everything needed to replay the request later.
func (q *Queue) Enqueue(ctx context.Context, typ types.RequestType, payload any) (string, error) {
	if strings.TrimSpace(string(typ)) == "" {
		return "", fmt.Errorf("%w: missing type", ErrInvalidRequest)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := q.now()
	id, err := q.ids.next(now)
	if err != nil {
		return "", fmt.Errorf("failed to generate request id: %w", err)
	}

	req := types.OfflineRequest{
		ID:        id,
		Type:      typ,
		Payload:   raw,
		CreatedAt: now.UTC(),
	}
	if err := q.store.Put(ctx, storage.PartitionOfflineQueue, id, req); err != nil {
		return "", fmt.Errorf("failed to enqueue %s request: %w", typ, err)
	}

	logging.Debug().Str("requestID", id).Str("type", string(typ)).Msg("request queued")
	if q.bus != nil {
		q.bus.PublishSync(event.Event{
			Type: event.RequestQueued,
			Data: event.RequestQueuedData{RequestID: id, Type: string(typ)},
		})
	}
	return id, nil
}

// ListAll returns all pending requests in enqueue order.
func (q *Queue) ListAll(ctx context.Context) ([]types.OfflineRequest, error) {
	requests := []types.OfflineRequest{}

	err := q.store.Scan(ctx, storage.PartitionOfflineQueue, func(key string, data json.RawMessage) error {
		var req types.OfflineRequest
		if err := json.Unmarshal(data, &req); err != nil {
			logging.Warn().Err(err).Str("requestID", key).Msg("skipping unreadable offline request")
			return nil
		}
		if req.ID == "" {
			req.ID = key
		}
		requests = append(requests, req)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offline queue: %w", err)
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].ID < requests[j].ID
	})
	return requests, nil
}

// Len returns the number of pending requests.
func (q *Queue) Len(ctx context.Context) (int, error) {
	keys, err := q.store.List(ctx, storage.PartitionOfflineQueue)
	if err != nil {
		return 0, fmt.Errorf("failed to count offline queue: %w", err)
	}
	return len(keys), nil
}

// Clear removes every pending request in one step.
func (q *Queue) Clear(ctx context.Context) error {
	n, err := q.Len(ctx)
	if err != nil {
		return err
	}

	if err := q.store.Clear(ctx, storage.PartitionOfflineQueue); err != nil {
		return fmt.Errorf("failed to clear offline queue: %w", err)
	}

	logging.Debug().Int("count", n).Msg("offline queue cleared")
	if q.bus != nil {
		q.bus.PublishSync(event.Event{
			Type: event.QueueCleared,
			Data: event.QueueClearedData{Count: n},
		})
	}
	return nil
}

// Remove drops exactly the requests in ids in one step. Requests enqueued
// after ids were listed stay queued.
func (q *Queue) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.store.DeleteKeys(ctx, storage.PartitionOfflineQueue, ids); err != nil {
		return fmt.Errorf("failed to remove replayed requests: %w", err)
	}

	logging.Debug().Int("count", len(ids)).Msg("offline batch removed")
	if q.bus != nil {
		q.bus.PublishSync(event.Event{
			Type: event.QueueCleared,
			Data: event.QueueClearedData{Count: len(ids)},
		})
	}
	return nil
}

// TryLock reserves the queue for one replay batch across every process
// sharing the store. It returns storage.ErrLocked while another batch runs.
func (q *Queue) TryLock(ctx context.Context) (unlock func() error, err error) {
	return q.store.TryLock(ctx, storage.PartitionOfflineQueue)
}

// DecodePayload unmarshals the payload of req into dest.
func DecodePayload(req types.OfflineRequest, dest any) error {
	if len(req.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidRequest)
	}
	if err := json.Unmarshal(req.Payload, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
