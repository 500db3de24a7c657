package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocal struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (f *fakeLocal) ReadAll() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.msgs...)
}

func (f *fakeLocal) add(msgs ...model.Message) {
	f.mu.Lock()
	f.msgs = append(f.msgs, msgs...)
	f.mu.Unlock()
}

type fakeRemote struct {
	mu       sync.Mutex
	value    []model.Message
	fetchErr error
	pushErr  error
	fetches  int
	pushes   int
	// gate, when set, blocks FetchSnapshot until it is closed
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeRemote) FetchSnapshot(ctx context.Context, envID string) ([]model.Message, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return []model.Message{}, f.fetchErr
	}
	return append([]model.Message{}, f.value...), nil
}

func (f *fakeRemote) PushSnapshot(ctx context.Context, envID string, msgs []model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes++
	f.value = append([]model.Message{}, msgs...)
	return nil
}

func (f *fakeRemote) snapshot() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message{}, f.value...)
}

type fakeGate struct{ online atomic.Bool }

func newGate(online bool) *fakeGate {
	g := &fakeGate{}
	g.online.Store(online)
	return g
}

func (g *fakeGate) Online() bool { return g.online.Load() }

func msg(author, q string, ts int64) model.Message {
	return model.Message{Author: author, Question: q, Timestamp: ts}
}

func TestReconcile_PushesMissing(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1), {Question: "b", Timestamp: 2}}}
	remote := &fakeRemote{value: []model.Message{msg("u-2", "x", 0)}}
	var refreshed []model.Message
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1",
		WithRefreshHook(func(shared []model.Message) { refreshed = shared }))

	res := c.Reconcile(context.Background(), false)
	require.NoError(t, res.Err)
	assert.Equal(t, StatusPushed, res.Status)
	assert.Equal(t, 2, res.Pushed)
	assert.Equal(t, 3, res.RemoteSize)

	got := remote.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, msg("u-2", "x", 0), got[0], "existing shared entries keep their place")
	assert.Equal(t, "u-1", got[2].Author, "missing author stamped with identity")
	assert.Equal(t, got, refreshed)
}

func TestReconcile_Idempotent(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1), msg("u-1", "b", 2)}}
	remote := &fakeRemote{}
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1")

	first := c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusPushed, first.Status)

	second := c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusInSync, second.Status)
	assert.Zero(t, second.Pushed)
	assert.Equal(t, 1, remote.pushes)
}

func TestReconcile_DedupInvariant(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{
		msg("u-1", "same", 5), msg("u-1", "same", 5), msg("u-1", "other", 5),
	}}
	remote := &fakeRemote{value: []model.Message{msg("u-9", "x", 1)}}
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1")

	c.Reconcile(context.Background(), false)
	c.Reconcile(context.Background(), false)

	keys := map[model.DedupKey]int{}
	for _, m := range remote.snapshot() {
		keys[m.Key()]++
	}
	for _, m := range local.ReadAll() {
		assert.Equal(t, 1, keys[m.Key()], "key %s", m.Key())
	}
}

func TestReconcile_MonotonicMerge(t *testing.T) {
	before := []model.Message{msg("u-2", "x", 1), msg("u-2", "x", 1), msg("AI", "x", 2)}
	remote := &fakeRemote{value: append([]model.Message{}, before...)}
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "y", 3)}}
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1")

	c.Reconcile(context.Background(), false)

	after := remote.snapshot()
	require.GreaterOrEqual(t, len(after), len(before))
	assert.Equal(t, before, after[:len(before)])
}

func TestReconcile_OfflineBuffering(t *testing.T) {
	gate := newGate(false)
	local := &fakeLocal{}
	remote := &fakeRemote{}
	for i := 0; i < 5; i++ {
		remote.value = append(remote.value, msg("u-2", fmt.Sprintf("r%d", i), int64(i)))
	}
	c := NewCoordinator(local, remote, gate, "env", "u-1")

	local.add(model.Message{Question: "l1", Timestamp: 100}, model.Message{Question: "l2", Timestamp: 101})
	res := c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusOffline, res.Status)
	assert.Zero(t, remote.fetches)
	assert.Len(t, remote.snapshot(), 5)

	gate.online.Store(true)
	res = c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusPushed, res.Status)

	got := remote.snapshot()
	require.Len(t, got, 7)
	assert.Equal(t, "u-1", got[5].Author)
	assert.Equal(t, "u-1", got[6].Author)
}

func TestReconcile_ForceIgnoresOffline(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1)}}
	remote := &fakeRemote{}
	c := NewCoordinator(local, remote, newGate(false), "env", "u-1")

	res := c.Reconcile(context.Background(), true)
	assert.Equal(t, StatusPushed, res.Status)
}

func TestReconcile_FetchFailureNeverPushes(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1)}}
	remote := &fakeRemote{fetchErr: errors.New("unreachable")}
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1")

	res := c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
	assert.Zero(t, remote.pushes)
	assert.False(t, c.Busy())
}

func TestReconcile_PushFailure(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1)}}
	remote := &fakeRemote{pushErr: errors.New("rejected")}
	refreshed := false
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1",
		WithRefreshHook(func([]model.Message) { refreshed = true }))

	res := c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorContains(t, res.Err, "rejected")
	assert.False(t, refreshed)

	remote.mu.Lock()
	remote.pushErr = nil
	remote.mu.Unlock()
	res = c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusPushed, res.Status)
}

func TestReconcile_EmptyRemoteReshares(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1)}}
	remote := &fakeRemote{}
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1")

	res := c.Reconcile(context.Background(), false)
	assert.Equal(t, StatusPushed, res.Status)
	assert.Len(t, remote.snapshot(), 1)
}

func TestReconcile_ConcurrentCallsCollapse(t *testing.T) {
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1)}}
	remote := &fakeRemote{gate: make(chan struct{}), entered: make(chan struct{}, 10)}
	c := NewCoordinator(local, remote, newGate(true), "env", "u-1")

	done := make(chan Result, 1)
	go func() { done <- c.Reconcile(context.Background(), false) }()
	<-remote.entered
	assert.True(t, c.Busy())

	for i := 0; i < 5; i++ {
		res := c.Reconcile(context.Background(), false)
		assert.Equal(t, StatusQueued, res.Status)
	}
	local.add(msg("u-1", "b", 2))
	close(remote.gate)

	var res Result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile did not finish")
	}

	assert.Equal(t, 2, res.Passes, "queued calls collapse into one follow-up")
	assert.Equal(t, 2, res.Pushed)
	assert.Equal(t, 2, remote.fetches)
	assert.Len(t, remote.snapshot(), 2)
	assert.False(t, c.Busy())
}

func TestReconcile_FollowUpStopsWhenOffline(t *testing.T) {
	gate := newGate(true)
	local := &fakeLocal{msgs: []model.Message{msg("u-1", "a", 1)}}
	remote := &fakeRemote{gate: make(chan struct{}), entered: make(chan struct{}, 10)}
	c := NewCoordinator(local, remote, gate, "env", "u-1")

	done := make(chan Result, 1)
	go func() { done <- c.Reconcile(context.Background(), false) }()
	<-remote.entered
	c.Reconcile(context.Background(), false)
	gate.online.Store(false)
	close(remote.gate)

	res := <-done
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, StatusOffline, res.Status)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, remote.fetches)
}

func TestAppendRemote(t *testing.T) {
	gate := newGate(true)
	remote := &fakeRemote{value: []model.Message{msg("u-1", "q", 1)}}
	c := NewCoordinator(&fakeLocal{}, remote, gate, "env", "u-1")

	ai := model.Message{Author: model.AuthorAI, Question: "q", Answer: "a", Timestamp: 2}
	require.NoError(t, c.AppendRemote(context.Background(), ai))
	require.NoError(t, c.AppendRemote(context.Background(), ai))
	assert.Equal(t, []model.Message{msg("u-1", "q", 1), ai}, remote.snapshot())

	gate.online.Store(false)
	assert.ErrorIs(t, c.AppendRemote(context.Background(), msg("AI", "z", 3)), ErrOffline)
}

func TestClear(t *testing.T) {
	remote := &fakeRemote{value: []model.Message{msg("u-1", "q", 1)}}
	c := NewCoordinator(&fakeLocal{}, remote, newGate(true), "env", "u-1")

	require.NoError(t, c.Clear(context.Background()))
	assert.Empty(t, remote.snapshot())
}

func TestClear_RefusedOffline(t *testing.T) {
	remote := &fakeRemote{value: []model.Message{msg("u-1", "q", 1)}}
	c := NewCoordinator(&fakeLocal{}, remote, newGate(false), "env", "u-1")

	assert.ErrorIs(t, c.Clear(context.Background()), ErrOffline)
	assert.Equal(t, []model.Message{msg("u-1", "q", 1)}, remote.snapshot())
}
