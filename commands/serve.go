package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/penwyp/go-ici-sync/internal/envbox"
	"github.com/penwyp/go-ici-sync/internal/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference shared-log service",
	Long: `serve exposes GET/POST /env-box, /healthz and /metrics. Environments are kept
in memory unless --redis-url is given.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", ":8787", "Listen address")
	serveCmd.Flags().String("redis-url", "", "Store environments in Redis (e.g., redis://localhost:6379/0)")
	if err := settings.BindPFlags(serveCmd.Flags()); err != nil {
		panic(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var box envbox.Box = envbox.NewMemoryBox()
	if url := settings.GetString("redis-url"); url != "" {
		rb, err := envbox.NewRedisBox(url)
		if err != nil {
			return err
		}
		box = rb
	}
	defer box.Close()

	addr := settings.GetString("listen")
	fmt.Fprintf(cmd.ErrOrStderr(), "envbox listening on %s\n", addr)
	return envbox.NewServer(box, metrics.New()).ListenAndServe(ctx, addr)
}
