package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/connectivity"
	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/penwyp/go-ici-sync/internal/core/reconcile"
	"github.com/penwyp/go-ici-sync/internal/data/aggregator"
	"github.com/penwyp/go-ici-sync/internal/data/remote"
	"github.com/penwyp/go-ici-sync/internal/data/store"
	"github.com/penwyp/go-ici-sync/internal/metrics"
	"github.com/penwyp/go-ici-sync/internal/presentation/formatter"
	"github.com/penwyp/go-ici-sync/internal/util"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrOffline       = reconcile.ErrOffline
)

// Answerer produces an answer for a submitted question.
type Answerer interface {
	Ask(ctx context.Context, question, userID string) (string, error)
}

// SubmitResult reports what happened to a submitted question. The question is
// stored locally whenever Submit returns a nil error; answer and sharing
// failures are reported here instead.
type SubmitResult struct {
	Message   model.Message
	Reconcile reconcile.Result
	Answer    string
	AnswerErr error
	ShareErr  error
}

// SessionOption customizes NewSession.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	backend  store.Backend
	answerer Answerer
	metrics  *metrics.Metrics
}

// WithBackend uses backend instead of opening one from the config. The
// session takes ownership and closes it.
func WithBackend(b store.Backend) SessionOption {
	return func(o *sessionOptions) { o.backend = b }
}

// WithAnswerer replaces the HTTP answer client.
func WithAnswerer(a Answerer) SessionOption {
	return func(o *sessionOptions) { o.answerer = a }
}

func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(o *sessionOptions) { o.metrics = m }
}

// Session wires one device's private log to one environment's shared log.
type Session struct {
	cfg      Config
	identity string
	tp       *util.TimeProvider

	backend  store.Backend
	local    *store.LocalLog
	client   *remote.Client
	answerer Answerer
	monitor  *connectivity.Monitor
	coord    *reconcile.Coordinator

	ctx    context.Context
	cancel context.CancelFunc

	hookMu   sync.RWMutex
	onShared []func([]model.Message)
}

// NewSession validates cfg, opens local storage and loads the device identity.
func NewSession(cfg Config, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	tp, err := util.NewTimeProvider(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	backend := o.backend
	if backend == nil {
		backend, err = store.OpenBackend(cfg.Backend, util.ExpandPath(cfg.DataDir))
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
		}
	}
	identity, err := store.LoadOrCreateIdentity(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		identity: identity,
		tp:       tp,
		backend:  backend,
		local:    store.NewLocalLog(backend, model.PrivateNamespace(identity)),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.monitor = connectivity.NewMonitor(
		connectivity.WithRecheckDelay(cfg.RecheckDelay),
		connectivity.WithMetrics(o.metrics),
	)
	remoteOpts := []remote.Option{
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithReporter(s.monitor),
		remote.WithMetrics(o.metrics),
	}
	s.client = remote.NewClient(cfg.Server, identity, remoteOpts...)

	// answer failures say nothing about the shared log, so the asker does not
	// report to the monitor
	s.answerer = o.answerer
	if s.answerer == nil && cfg.Ask {
		s.answerer = remote.NewAsker(cfg.AskServer,
			remote.WithTimeout(cfg.RequestTimeout),
			remote.WithMetrics(o.metrics),
		)
	}

	s.coord = reconcile.NewCoordinator(s.local, s.client, s.monitor, cfg.EnvID, identity,
		reconcile.WithRefreshHook(s.notifyShared),
		reconcile.WithMetrics(o.metrics),
	)
	s.monitor.OnRecovery(func() {
		res := s.coord.Reconcile(s.ctx, false)
		util.LogInfo("recovery reconcile", util.F("status", res.Status.String()), util.F("pushed", res.Pushed))
	})

	util.LogInfo("session ready", util.F("identity", identity), util.F("env", cfg.EnvID),
		util.F("backend", cfg.Backend))
	return s, nil
}

// Identity returns the anonymous device id.
func (s *Session) Identity() string { return s.identity }

// Config returns the validated configuration.
func (s *Session) Config() Config { return s.cfg }

// Monitor exposes the connectivity monitor, e.g. for a prober.
func (s *Session) Monitor() *connectivity.Monitor { return s.monitor }

// Local returns the private log.
func (s *Session) Local() *store.LocalLog { return s.local }

// Backend returns the key-value store behind the private log.
func (s *Session) Backend() store.Backend { return s.backend }

// OnSharedChange registers fn to receive the shared log after each successful write.
func (s *Session) OnSharedChange(fn func([]model.Message)) {
	s.hookMu.Lock()
	s.onShared = append(s.onShared, fn)
	s.hookMu.Unlock()
}

func (s *Session) notifyShared(shared []model.Message) {
	s.hookMu.RLock()
	hooks := append([]func([]model.Message){}, s.onShared...)
	s.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(shared)
	}
}

// Submit stores a question in the private log, shares it, and when an
// answerer is configured attaches the answer locally and posts it to the shared log.
func (s *Session) Submit(ctx context.Context, text string) (SubmitResult, error) {
	q := strings.TrimSpace(text)
	if q == "" {
		return SubmitResult{}, ErrEmptyQuestion
	}

	msg := model.NewMessage(s.identity, q, time.Now())
	if err := s.local.Append(msg); err != nil {
		return SubmitResult{}, fmt.Errorf("store question: %w", err)
	}
	res := SubmitResult{Message: msg}
	res.Reconcile = s.coord.Reconcile(ctx, false)

	if s.answerer == nil {
		return res, nil
	}

	answer, err := s.answerer.Ask(ctx, q, s.identity)
	if err != nil {
		util.LogWarn("answer request failed", util.F("error", err))
		res.AnswerErr = err
		return res, nil
	}
	res.Answer = answer

	if err := s.local.AttachAnswer(answer); err != nil {
		util.LogWarn("attach answer failed", util.F("error", err))
	}
	ai := model.Message{
		Author:    model.AuthorAI,
		Question:  q,
		Answer:    answer,
		Timestamp: answerTimestamp(msg, time.Now()),
	}
	if err := s.coord.AppendRemote(ctx, ai); err != nil {
		util.LogWarn("share answer failed", util.F("error", err))
		res.ShareErr = err
	}
	return res, nil
}

// answerTimestamp stamps the AI entry strictly after its question so both
// share the question text without sharing a dedup key.
func answerTimestamp(question model.Message, now time.Time) int64 {
	return max(now.UnixMilli(), question.Timestamp+1)
}

// Reconcile runs one reconciliation.
func (s *Session) Reconcile(ctx context.Context, force bool) reconcile.Result {
	return s.coord.Reconcile(ctx, force)
}

// Probe fetches the shared log only to let the monitor observe the outcome.
func (s *Session) Probe(ctx context.Context) error {
	_, err := s.client.FetchSnapshot(ctx, s.cfg.EnvID)
	return err
}

// PrivateView groups the private log.
func (s *Session) PrivateView() formatter.View {
	groups := aggregator.NewPrivateAggregator(s.tp).Aggregate(s.local.ReadAll())
	v := formatter.View{Title: "private", Groups: groups, Rendered: time.Now()}
	if err := s.local.LastError(); err != nil {
		v.Degraded = true
		v.LastError = err.Error()
	}
	return v
}

// SharedView fetches and groups the shared log. A failed fetch yields an
// empty, degraded view rather than an error.
func (s *Session) SharedView(ctx context.Context) formatter.View {
	msgs, err := s.client.FetchSnapshot(ctx, s.cfg.EnvID)
	return s.sharedView(msgs, err)
}

// SharedViewOf groups an already fetched shared log.
func (s *Session) SharedViewOf(msgs []model.Message) formatter.View {
	return s.sharedView(msgs, nil)
}

func (s *Session) sharedView(msgs []model.Message, err error) formatter.View {
	v := formatter.View{
		Title:    "shared: " + s.cfg.EnvID,
		Groups:   aggregator.NewSharedAggregator(s.tp).Aggregate(msgs),
		Offline:  !s.monitor.Online(),
		Rendered: time.Now(),
	}
	if err != nil {
		v.Degraded = true
		v.LastError = err.Error()
	}
	return v
}

// Clear removes every message from both logs. It is refused while offline so
// the private log is never emptied without the shared one. The private log is
// cleared first so a concurrent pass cannot re-share it.
func (s *Session) Clear(ctx context.Context) error {
	if !s.monitor.Online() {
		return ErrOffline
	}
	if err := s.local.Clear(); err != nil {
		return err
	}
	return s.coord.Clear(ctx)
}

// Status returns the connectivity snapshot for indicators.
func (s *Session) Status() connectivity.Snapshot {
	return s.monitor.Snapshot()
}

// Close stops background work and releases the store.
func (s *Session) Close() error {
	s.cancel()
	s.monitor.Close()
	return s.backend.Close()
}
