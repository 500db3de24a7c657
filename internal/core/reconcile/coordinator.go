// Package reconcile merges the private log into the shared log. The shared
// log only supports whole-snapshot replacement, so every push is a
// fetch-merge-replace cycle and passes on one device are serialized.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/penwyp/go-ici-sync/internal/metrics"
	"github.com/penwyp/go-ici-sync/internal/util"
)

// ErrOffline is returned by operations that refuse to write while the monitor is offline.
var ErrOffline = errors.New("offline: shared log writes suspended")

type Status int

const (
	StatusQueued Status = iota
	StatusOffline
	StatusInSync
	StatusPushed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusOffline:
		return "offline"
	case StatusInSync:
		return "in_sync"
	case StatusPushed:
		return "pushed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes the last pass run by a Reconcile call.
type Result struct {
	Status     Status
	Pushed     int // local entries added to the shared log, summed over passes
	RemoteSize int // shared log length after the last pass
	Passes     int
	Err        error
}

// LocalLog is the private log as seen by the coordinator.
type LocalLog interface {
	ReadAll() []model.Message
}

// RemoteLog is the snapshot API of the shared-log service.
type RemoteLog interface {
	FetchSnapshot(ctx context.Context, envID string) ([]model.Message, error)
	PushSnapshot(ctx context.Context, envID string, msgs []model.Message) error
}

// Gate tells whether remote writes are currently allowed.
type Gate interface {
	Online() bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRefreshHook is called with the merged shared log after each successful push.
func WithRefreshHook(fn func(shared []model.Message)) Option {
	return func(c *Coordinator) { c.onRefresh = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator runs reconciliation passes. At most one pass runs at a time;
// calls arriving meanwhile collapse into a single follow-up pass.
type Coordinator struct {
	local    LocalLog
	remote   RemoteLog
	gate     Gate
	envID    string
	identity string

	onRefresh func([]model.Message)
	metrics   *metrics.Metrics

	mu      sync.Mutex // guards busy and pending
	busy    bool
	pending bool

	passMu sync.Mutex // held for the duration of any fetch-modify-push cycle
}

func NewCoordinator(local LocalLog, remote RemoteLog, gate Gate, envID, identity string, opts ...Option) *Coordinator {
	c := &Coordinator{
		local:    local,
		remote:   remote,
		gate:     gate,
		envID:    envID,
		identity: identity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconcile pushes local entries missing from the shared log. When a pass is
// already running the call only marks a follow-up and returns StatusQueued.
// force skips the offline check for the first pass; follow-ups are never forced.
func (c *Coordinator) Reconcile(ctx context.Context, force bool) Result {
	c.mu.Lock()
	if c.busy {
		c.pending = true
		c.mu.Unlock()
		util.LogDebug("reconcile already running, queued follow-up")
		return Result{Status: StatusQueued}
	}
	c.busy = true
	c.mu.Unlock()

	c.passMu.Lock()
	defer c.passMu.Unlock()

	res := c.pass(ctx, force)
	res.Passes = 1
	for {
		c.mu.Lock()
		rerun := c.pending && ctx.Err() == nil
		c.pending = false
		if !rerun {
			c.busy = false
			c.mu.Unlock()
			return res
		}
		c.mu.Unlock()

		next := c.pass(ctx, false)
		next.Pushed += res.Pushed
		next.Passes = res.Passes + 1
		res = next
	}
}

func (c *Coordinator) pass(ctx context.Context, force bool) Result {
	res := c.runPass(ctx, force)
	c.metrics.ObservePass(res.Status.String(), res.Pushed)
	if res.Err != nil {
		util.LogWarn("reconcile pass failed", util.F("env", c.envID), util.F("error", res.Err))
	} else {
		util.LogDebug("reconcile pass", util.F("env", c.envID), util.F("status", res.Status.String()),
			util.F("pushed", res.Pushed), util.F("remote_size", res.RemoteSize))
	}
	return res
}

func (c *Coordinator) runPass(ctx context.Context, force bool) Result {
	if !force && !c.gate.Online() {
		return Result{Status: StatusOffline}
	}

	shared, err := c.remote.FetchSnapshot(ctx, c.envID)
	if err != nil {
		return Result{Status: StatusFailed, Err: fmt.Errorf("fetch shared log: %w", err)}
	}

	missing := model.Missing(c.local.ReadAll(), shared)
	if len(missing) == 0 {
		return Result{Status: StatusInSync, RemoteSize: len(shared)}
	}

	merged := make([]model.Message, 0, len(shared)+len(missing))
	merged = append(merged, shared...)
	merged = append(merged, model.StampAuthors(missing, c.identity)...)

	if err := c.remote.PushSnapshot(ctx, c.envID, merged); err != nil {
		return Result{Status: StatusFailed, RemoteSize: len(shared), Err: fmt.Errorf("push shared log: %w", err)}
	}

	util.LogInfo("merged local messages into shared log", util.F("env", c.envID), util.F("count", len(missing)))
	if c.onRefresh != nil {
		c.onRefresh(merged)
	}
	return Result{Status: StatusPushed, Pushed: len(missing), RemoteSize: len(merged)}
}

// AppendRemote appends msgs to the shared log inside the pass lock. Entries
// whose key is already shared are skipped. It refuses to run while offline.
func (c *Coordinator) AppendRemote(ctx context.Context, msgs ...model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	c.passMu.Lock()
	defer c.passMu.Unlock()

	if !c.gate.Online() {
		return ErrOffline
	}
	shared, err := c.remote.FetchSnapshot(ctx, c.envID)
	if err != nil {
		return fmt.Errorf("fetch shared log: %w", err)
	}
	add := model.Missing(msgs, shared)
	if len(add) == 0 {
		return nil
	}

	merged := make([]model.Message, 0, len(shared)+len(add))
	merged = append(merged, shared...)
	merged = append(merged, model.StampAuthors(add, c.identity)...)
	if err := c.remote.PushSnapshot(ctx, c.envID, merged); err != nil {
		return fmt.Errorf("push shared log: %w", err)
	}
	if c.onRefresh != nil {
		c.onRefresh(merged)
	}
	return nil
}

// Clear replaces the shared log with an empty snapshot inside the pass lock.
// Like AppendRemote it refuses to run while offline.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	if !c.gate.Online() {
		return ErrOffline
	}

	if err := c.remote.PushSnapshot(ctx, c.envID, []model.Message{}); err != nil {
		return fmt.Errorf("clear shared log: %w", err)
	}
	if c.onRefresh != nil {
		c.onRefresh([]model.Message{})
	}
	return nil
}

// Busy reports whether a pass is running.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}
