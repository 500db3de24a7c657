package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/penwyp/go-ici-sync/internal/application/chat"
	"github.com/penwyp/go-ici-sync/internal/core/constants"
	"github.com/penwyp/go-ici-sync/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "ICI"
	defaultConfigDir  = "~/.go-ici-sync"
	defaultConfigName = "config"
	defaultLogFile    = "~/.go-ici-sync/logs/app.log"
	defaultDataDir    = "~/.go-ici-sync/data"
	defaultServer     = "http://127.0.0.1:8787"
)

var (
	cfgFile string

	// settings resolves flags, ICI_* environment variables and the config file, in that order
	settings = viper.New()

	rootCmd = &cobra.Command{
		Use:   "go-ici-sync",
		Short: "Keep a private question log in sync with a shared environment log",
		Long: `go-ici-sync keeps a device-private message log and a shared per-environment
log consistent. Questions are stored locally first and merged into the shared
log whenever the service is reachable; nothing is lost while offline.

Settings come from flags, ICI_* environment variables (ICI_SERVER, ICI_ENV,
...), a .env file in the working directory, and ~/.go-ici-sync/config.yaml.

Examples:
  go-ici-sync ask "what does the shared log look like?" --env team-a
  go-ici-sync log --shared --env team-a
  go-ici-sync watch --env team-a --render
  go-ici-sync serve --listen :8787 --redis-url redis://localhost:6379/0`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ~/.go-ici-sync/config.yaml)")

	// Service
	pf.String("server", defaultServer, "Shared-log service base URL")
	pf.String("env", "", "Environment id of the shared log")
	pf.String("ask-server", "", "Answer service base URL (defaults to --server)")
	pf.Bool("ask", true, "Request an answer for submitted questions")

	// Storage
	pf.String("data-dir", defaultDataDir, "Directory of the private log")
	pf.String("backend", "file", "Private log backend (file, pebble, memory)")

	// Display
	pf.String("timezone", "Local", "Timezone for minute grouping (e.g., UTC, Asia/Shanghai)")

	// Timing
	pf.Duration("request-timeout", constants.DefaultRequestTimeout, "Timeout of each remote request (0 = client default of 30s)")
	pf.Duration("sync-interval", constants.DefaultSyncInterval, "Reconcile interval of watch")
	pf.Duration("recheck-delay", constants.DefaultRecheckDelay, "Delay of the verification after connectivity returns")
	pf.Duration("probe-interval", constants.DefaultProbeInterval, "Interval of the service reachability probe")

	// Logging
	pf.Bool("debug", false, "Enable debug logging to stderr")
	pf.String("log-file", defaultLogFile, "Log file (rotated)")

	if err := settings.BindPFlags(pf); err != nil {
		panic(err)
	}
}

// setup loads configuration sources and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	if cfgFile != "" {
		settings.SetConfigFile(util.ExpandPath(cfgFile))
	} else {
		settings.SetConfigName(defaultConfigName)
		settings.SetConfigType("yaml")
		settings.AddConfigPath(util.ExpandPath(defaultConfigDir))
	}
	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level := "info"
	debug := settings.GetBool("debug")
	if debug {
		level = "debug"
	}
	logFile := util.ExpandPath(settings.GetString("log-file"))
	if err := util.EnsureDir(filepath.Dir(logFile)); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	if err := util.InitLogger(util.LoggerOptions{Level: level, File: logFile, Console: debug}); err != nil {
		return err
	}
	if err := util.InitializeTimeProvider(settings.GetString("timezone")); err != nil {
		return err
	}
	if used := settings.ConfigFileUsed(); used != "" {
		util.LogDebugf("using config file %s", used)
	}
	return nil
}

// chatConfig builds the session configuration from the resolved settings.
func chatConfig() chat.Config {
	return chat.Config{
		Server:         settings.GetString("server"),
		EnvID:          settings.GetString("env"),
		AskServer:      settings.GetString("ask-server"),
		Ask:            settings.GetBool("ask"),
		DataDir:        settings.GetString("data-dir"),
		Backend:        settings.GetString("backend"),
		Timezone:       settings.GetString("timezone"),
		RequestTimeout: settings.GetDuration("request-timeout"),
		SyncInterval:   settings.GetDuration("sync-interval"),
		RecheckDelay:   settings.GetDuration("recheck-delay"),
		ProbeInterval:  settings.GetDuration("probe-interval"),
	}
}

// openSession creates the session for the current settings.
func openSession(opts ...chat.SessionOption) (*chat.Session, error) {
	return chat.NewSession(chatConfig(), opts...)
}

// Execute runs the CLI and flushes logs.
func Execute() error {
	defer util.CloseLogger()
	return rootCmd.Execute()
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String()
}
