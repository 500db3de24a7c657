package chat

import (
	"context"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/connectivity"
	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/penwyp/go-ici-sync/internal/data/store"
	"github.com/penwyp/go-ici-sync/internal/presentation/formatter"
	"github.com/penwyp/go-ici-sync/internal/util"
)

// Daemon keeps a session reconciled until its context ends: on a timer, on
// changes to the private log made by other processes, and on connectivity recovery.
type Daemon struct {
	session *Session
	render  func(formatter.View)
	probe   bool
}

// DaemonOption customizes a Daemon.
type DaemonOption func(*Daemon)

// WithRender draws the shared log whenever a write succeeds.
func WithRender(fn func(formatter.View)) DaemonOption {
	return func(d *Daemon) { d.render = fn }
}

// WithProber enables the TCP reachability probe of the service host.
func WithProber(enabled bool) DaemonOption {
	return func(d *Daemon) { d.probe = enabled }
}

func NewDaemon(s *Session, opts ...DaemonOption) *Daemon {
	d := &Daemon{session: s, probe: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.session.Config()

	if d.render != nil {
		d.session.OnSharedChange(func(shared []model.Message) {
			d.render(d.session.SharedViewOf(shared))
		})
		d.render(d.session.SharedView(ctx))
	}

	if d.probe {
		prober, err := connectivity.NewProber(d.session.Monitor(), cfg.Server, cfg.ProbeInterval)
		if err != nil {
			return err
		}
		go prober.Run(ctx)
	}

	var changes <-chan store.ChangeEvent
	if fb, ok := d.session.Backend().(*store.FileBackend); ok {
		w, err := store.NewWatcher(fb, d.session.Local().Namespace())
		if err != nil {
			util.LogWarn("store watcher unavailable", util.F("error", err))
		} else {
			defer w.Close()
			changes = w.Events()
		}
	}

	res := d.session.Reconcile(ctx, true)
	util.LogInfo("initial reconcile", util.F("status", res.Status.String()), util.F("pushed", res.Pushed))

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	// armed only by store changes
	debounce := time.NewTimer(cfg.WatchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			util.LogInfo("daemon stopping")
			return nil

		case <-ticker.C:
			if d.session.Monitor().Online() {
				d.session.Reconcile(ctx, false)
				continue
			}
			// a successful fetch flips the monitor online and runs the recovery pass
			if err := d.session.Probe(ctx); err != nil {
				util.LogDebugf("still offline: %v", err)
			}

		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			util.LogDebug("private log changed", util.F("op", ev.Operation))
			debounce.Reset(cfg.WatchDebounce)

		case <-debounce.C:
			d.session.Reconcile(ctx, false)
		}
	}
}
