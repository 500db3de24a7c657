package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/penwyp/go-ici-sync/internal/application/chat"
	"github.com/penwyp/go-ici-sync/internal/metrics"
	"github.com/penwyp/go-ici-sync/internal/presentation/formatter"
	"github.com/penwyp/go-ici-sync/internal/util"
	"github.com/spf13/cobra"
)

var (
	watchRender      bool
	watchMetricsAddr string
	watchNoProbe     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the logs reconciled until interrupted",
	Long: `watch reconciles on start, every --sync-interval, whenever another process
changes the private log, and when the service becomes reachable again.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchRender, "render", false, "Print the shared log after each change")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	watchCmd.Flags().BoolVar(&watchNoProbe, "no-probe", false, "Disable the TCP reachability probe")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	s, err := openSession(chat.WithMetrics(m))
	if err != nil {
		return err
	}
	defer s.Close()

	if watchMetricsAddr != "" {
		go serveMetrics(ctx, watchMetricsAddr, m)
	}

	opts := []chat.DaemonOption{chat.WithProber(!watchNoProbe)}
	if watchRender {
		f := newFormatter("text", -1)
		out := cmd.OutOrStdout()
		opts = append(opts, chat.WithRender(func(v formatter.View) {
			fmt.Fprintf(out, "%s%s", util.ClearScreen, util.MoveCursorHome)
			if err := f.Format(out, v); err != nil {
				util.LogWarn("render failed", util.F("error", err))
			}
		}))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s as %s (Ctrl+C to stop)\n", s.Config().EnvID, s.Identity())
	return chat.NewDaemon(s, opts...).Run(ctx)
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	util.LogInfo("metrics listening", util.F("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		util.LogError("metrics server failed", util.F("error", err))
	}
}
