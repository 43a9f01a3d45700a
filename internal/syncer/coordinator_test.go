package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidcolor/colorbook/internal/connectivity"
	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/offline"
	"github.com/kidcolor/colorbook/internal/storage"
	"github.com/kidcolor/colorbook/pkg/types"
)

type stubPrompter struct {
	answer bool
	err    error
	calls  []int
	// block, when set, is waited on before answering
	block chan struct{}
	// during, when set, runs while the question is shown
	during func()
}

func (p *stubPrompter) Confirm(ctx context.Context, pending int) (bool, error) {
	p.calls = append(p.calls, pending)
	if p.during != nil {
		p.during()
	}
	if p.block != nil {
		<-p.block
	}
	return p.answer, p.err
}

type recordingReplayer struct {
	mu      sync.Mutex
	queries []string
	failOn  map[string]error
}

func (r *recordingReplayer) Replay(ctx context.Context, req types.OfflineRequest) error {
	var p types.SearchPayload
	if err := offline.DecodePayload(req, &p); err != nil {
		return err
	}
	r.mu.Lock()
	r.queries = append(r.queries, p.Query)
	r.mu.Unlock()
	return r.failOn[p.Query]
}

func newQueue(t *testing.T, bus *event.Bus, queries ...string) *offline.Queue {
	t.Helper()
	q := offline.NewQueue(storage.NewFile(afero.NewMemMapFs(), "/data/storage"), bus)
	for _, query := range queries {
		_, err := q.Enqueue(context.Background(), types.RequestSearch, types.SearchPayload{Query: query})
		require.NoError(t, err)
	}
	return q
}

func pending(t *testing.T, q *offline.Queue) int {
	t.Helper()
	n, err := q.Len(context.Background())
	require.NoError(t, err)
	return n
}

func TestEmptyQueueStaysIdle(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var states []event.SyncStateData
	bus.Subscribe(event.SyncStateChanged, func(e event.Event) {
		states = append(states, e.Data.(event.SyncStateData))
	})

	p := &stubPrompter{answer: true}
	c := New(newQueue(t, bus), p, bus)

	report, err := c.CheckOfflineQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Pending)
	assert.Empty(t, p.calls, "no prompt for an empty queue")
	assert.Empty(t, states)
	assert.Equal(t, Idle, c.State())
}

func TestConfirmedReplayClearsQueue(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var states []string
	bus.Subscribe(event.SyncStateChanged, func(e event.Event) {
		states = append(states, e.Data.(event.SyncStateData).To)
	})

	q := newQueue(t, bus, "dinosaur", "cat")
	p := &stubPrompter{answer: true}
	r := &recordingReplayer{}
	c := New(q, p, bus)
	c.Register(types.RequestSearch, r)

	report, err := c.CheckOfflineQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2}, p.calls)
	assert.Equal(t, []string{"dinosaur", "cat"}, r.queries)
	assert.True(t, report.Confirmed)
	assert.True(t, report.Cleared)
	assert.Len(t, report.Replayed, 2)
	assert.Equal(t, 0, pending(t, q))
	assert.Equal(t, []string{"prompting", "replaying", "idle"}, states)
	assert.Equal(t, Idle, c.State())
}

func TestDeclineLeavesQueue(t *testing.T) {
	q := newQueue(t, nil, "dinosaur")
	r := &recordingReplayer{}
	c := New(q, &stubPrompter{answer: false}, nil)
	c.Register(types.RequestSearch, r)

	report, err := c.CheckOfflineQueue(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Confirmed)
	assert.Empty(t, r.queries)
	assert.Equal(t, 1, pending(t, q))
	assert.Equal(t, Idle, c.State())
}

func TestPromptErrorLeavesQueue(t *testing.T) {
	q := newQueue(t, nil, "dinosaur")
	c := New(q, &stubPrompter{err: errors.New("no terminal")}, nil)

	_, err := c.CheckOfflineQueue(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, pending(t, q))
	assert.Equal(t, Idle, c.State())
}

func TestFailuresReportedAndBatchContinues(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var failed []event.ReplayFailedData
	bus.Subscribe(event.ReplayFailed, func(e event.Event) {
		failed = append(failed, e.Data.(event.ReplayFailedData))
	})
	var notes []event.Notification
	bus.Subscribe(event.NotificationPosted, func(e event.Event) {
		notes = append(notes, e.Data.(event.Notification))
	})

	q := newQueue(t, bus, "a", "b", "c")
	boom := errors.New("network down")
	r := &recordingReplayer{failOn: map[string]error{"a": boom, "c": boom}}
	c := New(q, &stubPrompter{answer: true}, bus)
	c.Register(types.RequestSearch, r)

	report, err := c.CheckOfflineQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, r.queries)
	require.Len(t, report.Failed, 2)
	assert.ErrorIs(t, report.Failed[0].Err, boom)
	assert.Len(t, report.Replayed, 1)
	assert.True(t, report.Cleared)
	assert.Equal(t, 0, pending(t, q), "failed requests are dropped, not re-queued")

	require.Len(t, failed, 2)
	assert.Equal(t, "network down", failed[0].Error)

	var errorNotes int
	for _, n := range notes {
		if n.Level == event.LevelError {
			errorNotes++
		}
	}
	assert.Equal(t, 2, errorNotes)
}

func TestUnknownTypeSkipped(t *testing.T) {
	q := newQueue(t, nil, "owl")
	_, err := q.Enqueue(context.Background(), "export", map[string]string{"format": "png"})
	require.NoError(t, err)

	r := &recordingReplayer{}
	c := New(q, &stubPrompter{answer: true}, nil)
	c.Register(types.RequestSearch, r)

	report, err := c.CheckOfflineQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"owl"}, r.queries)
	assert.Len(t, report.Skipped, 1)
	assert.Equal(t, 0, pending(t, q))
}

func TestBusyWhilePrompting(t *testing.T) {
	q := newQueue(t, nil, "owl")
	p := &stubPrompter{answer: false, block: make(chan struct{})}
	c := New(q, p, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.CheckOfflineQueue(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return c.State() == PromptingUser }, time.Second, 5*time.Millisecond)

	_, err := c.CheckOfflineQueue(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, PromptingUser, c.State())

	close(p.block)
	require.NoError(t, <-done)
	assert.Equal(t, Idle, c.State())
}

func TestReplayIgnoresCancellation(t *testing.T) {
	q := newQueue(t, nil, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())

	var seen []error
	c := New(q, &stubPrompter{answer: true}, nil)
	c.Register(types.RequestSearch, ReplayFunc(func(rctx context.Context, req types.OfflineRequest) error {
		cancel()
		seen = append(seen, rctx.Err())
		return nil
	}))

	report, err := c.CheckOfflineQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []error{nil, nil}, seen)
	assert.Len(t, report.Replayed, 2)
	assert.True(t, report.Cleared)
}

func TestStartTriggersOnReconnect(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	q := newQueue(t, bus, "dinosaur")
	monitor := connectivity.New(bus, false)
	r := &recordingReplayer{}
	c := New(q, &stubPrompter{answer: true}, bus)
	c.Register(types.RequestSearch, r)
	c.Start(context.Background(), monitor)
	defer c.Stop()

	monitor.Set(true)
	c.Wait()

	assert.Equal(t, []string{"dinosaur"}, r.queries)
	assert.Equal(t, 0, pending(t, q))

	// going offline does not trigger a check
	_, err := q.Enqueue(context.Background(), types.RequestSearch, types.SearchPayload{Query: "cat"})
	require.NoError(t, err)
	monitor.Set(false)
	c.Wait()
	assert.Equal(t, 1, pending(t, q))

	c.Stop()
	monitor.Set(true)
	c.Wait()
	assert.Equal(t, 1, pending(t, q), "stopped coordinator no longer reacts")
}

func TestRequestQueuedDuringPromptIsKept(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, nil, "dinosaur")
	r := &recordingReplayer{}
	p := &stubPrompter{answer: true, during: func() {
		_, err := q.Enqueue(ctx, types.RequestSearch, types.SearchPayload{Query: "rocket"})
		require.NoError(t, err)
	}}
	c := New(q, p, nil)
	c.Register(types.RequestSearch, r)

	report, err := c.CheckOfflineQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dinosaur"}, r.queries)
	assert.True(t, report.Cleared)

	left, err := q.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	var payload types.SearchPayload
	require.NoError(t, offline.DecodePayload(left[0], &payload))
	assert.Equal(t, "rocket", payload.Query)

	// the next check picks it up
	_, err = c.CheckOfflineQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dinosaur", "rocket"}, r.queries)
	assert.Equal(t, 0, pending(t, q))
}

// sharedStores returns two stores over the same data, each with its own
// handles, the way two colorbook processes see it.
func sharedStores(t *testing.T) map[string][2]storage.Store {
	dir := t.TempDir()
	mr := miniredis.RunT(t)
	dial := func() storage.Store {
		s := storage.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "colorbook")
		t.Cleanup(func() { s.Close() })
		return s
	}
	return map[string][2]storage.Store{
		"file":  {storage.New(dir), storage.New(dir)},
		"redis": {dial(), dial()},
	}
}

func TestSecondProcessIsBusy(t *testing.T) {
	for name, pair := range sharedStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := offline.NewQueue(pair[0], nil)
			second := offline.NewQueue(pair[1], nil)
			_, err := first.Enqueue(ctx, types.RequestSearch, types.SearchPayload{Query: "dinosaur"})
			require.NoError(t, err)

			r := &recordingReplayer{}
			other := New(second, &stubPrompter{answer: true}, nil)
			other.Register(types.RequestSearch, r)

			var otherErr error
			c := New(first, &stubPrompter{answer: true, during: func() {
				_, otherErr = other.CheckOfflineQueue(ctx)
			}}, nil)
			c.Register(types.RequestSearch, r)

			_, err = c.CheckOfflineQueue(ctx)
			require.NoError(t, err)
			assert.ErrorIs(t, otherErr, ErrBusy)
			assert.Equal(t, Idle, other.State())

			// once the first batch is done the other process finds nothing left
			report, err := other.CheckOfflineQueue(ctx)
			require.NoError(t, err)
			assert.Zero(t, report.Pending)
			assert.Equal(t, []string{"dinosaur"}, r.queries, "replayed exactly once")
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "prompting", PromptingUser.String())
	assert.Equal(t, "replaying", Replaying.String())
	assert.Equal(t, "state(9)", State(9).String())
}
