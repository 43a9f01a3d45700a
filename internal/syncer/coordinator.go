// Package syncer replays requests that were queued while offline once the
// device is back online.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kidcolor/colorbook/internal/connectivity"
	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/internal/storage"
	"github.com/kidcolor/colorbook/pkg/types"
)

// ErrBusy is returned by CheckOfflineQueue while a check is already running,
// in this process or in another one sharing the queue.
var ErrBusy = errors.New("offline queue check already in progress")

// State is the coordinator's position in the replay protocol.
type State int

const (
	Idle State = iota
	PromptingUser
	Replaying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PromptingUser:
		return "prompting"
	case Replaying:
		return "replaying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Queue is the part of the offline queue the coordinator drains.
type Queue interface {
	ListAll(ctx context.Context) ([]types.OfflineRequest, error)
	// Remove drops exactly the listed requests.
	Remove(ctx context.Context, ids []string) error
	// TryLock reserves the queue for one check, or fails with
	// storage.ErrLocked.
	TryLock(ctx context.Context) (unlock func() error, err error)
}

// Prompter asks the user whether pending requests should be replayed.
type Prompter interface {
	Confirm(ctx context.Context, pending int) (bool, error)
}

// Replayer performs the network action of one queued request.
type Replayer interface {
	Replay(ctx context.Context, req types.OfflineRequest) error
}

// ReplayFunc adapts a function to Replayer.
type ReplayFunc func(ctx context.Context, req types.OfflineRequest) error

// Replay calls f.
func (f ReplayFunc) Replay(ctx context.Context, req types.OfflineRequest) error {
	return f(ctx, req)
}

// Failure describes one request whose replay failed.
type Failure struct {
	RequestID string
	Type      types.RequestType
	Err       error
}

// Report summarizes one CheckOfflineQueue call.
type Report struct {
	// Pending is the queue length found at the start of the check.
	Pending int
	// Confirmed is true when the user agreed to replay.
	Confirmed bool
	// Replayed lists ids replayed successfully, in order.
	Replayed []string
	// Failed lists replays that returned an error. They are not re-queued.
	Failed []Failure
	// Skipped lists ids whose type has no registered replayer.
	Skipped []string
	// Cleared is true when the replayed batch was removed from the queue.
	Cleared bool
}

// Coordinator runs the Idle → PromptingUser → Replaying → Idle protocol.
// It never touches edit history.
type Coordinator struct {
	queue    Queue
	prompter Prompter
	bus      *event.Bus
	log      zerolog.Logger

	mu        sync.Mutex
	state     State
	replayers map[types.RequestType]Replayer

	wg    sync.WaitGroup
	unsub func()
}

// New creates a coordinator in the Idle state. bus may be nil.
func New(queue Queue, prompter Prompter, bus *event.Bus) *Coordinator {
	return &Coordinator{
		queue:     queue,
		prompter:  prompter,
		bus:       bus,
		log:       logging.Component("syncer"),
		replayers: make(map[types.RequestType]Replayer),
	}
}

// Register sets the replayer for requests of type typ.
func (c *Coordinator) Register(typ types.RequestType, r Replayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replayers[typ] = r
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transition moves from→to. It fails without side effects when the current
// state is not from.
func (c *Coordinator) transition(from, to State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()

	c.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("sync state")
	if c.bus != nil {
		c.bus.PublishSync(event.Event{
			Type: event.SyncStateChanged,
			Data: event.SyncStateData{From: from.String(), To: to.String()},
		})
	}
	return true
}

// CheckOfflineQueue offers to replay pending requests. With an empty queue it
// does nothing. If the user declines, or the prompt fails, the queue is left
// as it is. Once confirmed, every request is attempted in order; failures are
// reported and do not stop the batch, and the batch is then removed as a
// whole. Requests queued while the check runs wait for the next check. The
// batch runs to completion even if ctx is cancelled.
//
// The queue stays locked for the whole check, so a second check in any
// process sharing the store gets ErrBusy.
func (c *Coordinator) CheckOfflineQueue(ctx context.Context) (Report, error) {
	var report Report

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return report, ErrBusy
	}
	c.mu.Unlock()

	unlock, err := c.queue.TryLock(ctx)
	if errors.Is(err, storage.ErrLocked) {
		return report, ErrBusy
	}
	if err != nil {
		return report, fmt.Errorf("failed to lock offline queue: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			c.log.Warn().Err(err).Msg("failed to unlock offline queue")
		}
	}()

	pending, err := c.queue.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read offline queue: %w", err)
	}
	report.Pending = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	if !c.transition(Idle, PromptingUser) {
		return report, ErrBusy
	}

	confirmed, err := c.prompter.Confirm(ctx, len(pending))
	if err != nil {
		c.transition(PromptingUser, Idle)
		return report, fmt.Errorf("confirmation failed: %w", err)
	}
	if !confirmed {
		c.log.Info().Int("pending", len(pending)).Msg("replay declined")
		c.transition(PromptingUser, Idle)
		return report, nil
	}
	report.Confirmed = true

	c.transition(PromptingUser, Replaying)
	defer c.transition(Replaying, Idle)

	rctx := context.WithoutCancel(ctx)
	ids := make([]string, 0, len(pending))
	for _, req := range pending {
		c.replayOne(rctx, req, &report)
		ids = append(ids, req.ID)
	}

	if err := c.queue.Remove(rctx, ids); err != nil {
		c.notify(event.LevelError, "could not clear the offline queue", err)
		return report, fmt.Errorf("failed to clear offline queue: %w", err)
	}
	report.Cleared = true

	c.log.Info().
		Int("replayed", len(report.Replayed)).
		Int("failed", len(report.Failed)).
		Int("skipped", len(report.Skipped)).
		Msg("offline queue replayed")
	c.notify(event.LevelInfo,
		fmt.Sprintf("replayed %d of %d saved requests", len(report.Replayed), report.Pending), nil)

	return report, nil
}

func (c *Coordinator) replayOne(ctx context.Context, req types.OfflineRequest, report *Report) {
	c.mu.Lock()
	r, ok := c.replayers[req.Type]
	c.mu.Unlock()

	if !ok {
		c.log.Warn().Str("requestID", req.ID).Str("type", string(req.Type)).Msg("no replayer, skipping")
		report.Skipped = append(report.Skipped, req.ID)
		c.notify(event.LevelWarn, fmt.Sprintf("skipped saved %q request", req.Type), nil)
		return
	}

	if err := r.Replay(ctx, req); err != nil {
		c.log.Error().Err(err).Str("requestID", req.ID).Str("type", string(req.Type)).Msg("replay failed")
		report.Failed = append(report.Failed, Failure{RequestID: req.ID, Type: req.Type, Err: err})
		if c.bus != nil {
			c.bus.PublishSync(event.Event{
				Type: event.ReplayFailed,
				Data: event.ReplayFailedData{RequestID: req.ID, Type: string(req.Type), Error: err.Error()},
			})
		}
		c.notify(event.LevelError, fmt.Sprintf("saved %s request failed", req.Type), err)
		return
	}

	report.Replayed = append(report.Replayed, req.ID)
}

func (c *Coordinator) notify(level event.Level, msg string, err error) {
	if c.bus == nil {
		return
	}
	n := event.Notification{Level: level, Source: "sync", Message: msg}
	if err != nil {
		n.Error = err.Error()
	}
	c.bus.Notify(n)
}

// Start checks the queue whenever monitor reports a transition to online.
// Checks run in the background; Wait blocks until they finish.
func (c *Coordinator) Start(ctx context.Context, monitor *connectivity.Monitor) {
	unsub := monitor.OnTransition(func(online bool) {
		if !online {
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if _, err := c.CheckOfflineQueue(ctx); err != nil {
				if errors.Is(err, ErrBusy) {
					c.log.Debug().Msg("queue check already running")
					return
				}
				c.log.Error().Err(err).Msg("offline queue check failed")
				c.notify(event.LevelError, "could not replay saved requests", err)
			}
		}()
	})

	c.mu.Lock()
	prev := c.unsub
	c.unsub = unsub
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Wait blocks until background checks started by Start have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Stop detaches from the monitor and waits for background checks.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	c.wg.Wait()
}
