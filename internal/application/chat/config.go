package chat

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/constants"
	"github.com/penwyp/go-ici-sync/internal/data/store"
)

// Config holds everything a Session and Daemon need.
type Config struct {
	// Shared-log service
	Server string
	EnvID  string

	// Answer service. AskServer defaults to Server; Ask enables it.
	AskServer string
	Ask       bool

	// Local persistence
	DataDir string
	Backend string

	// Display
	Timezone string

	// Timing
	RequestTimeout time.Duration
	SyncInterval   time.Duration
	RecheckDelay   time.Duration
	ProbeInterval  time.Duration
	WatchDebounce  time.Duration
}

// Validate fills defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Server == "" {
		return errors.New("server URL is required")
	}
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", c.Server)
	}
	if c.EnvID == "" {
		return errors.New("environment id is required")
	}
	if c.AskServer == "" {
		c.AskServer = c.Server
	}
	if c.DataDir == "" {
		c.DataDir = "~/.go-ici-sync/data"
	}
	switch c.Backend {
	case "":
		c.Backend = store.BackendFile
	case store.BackendFile, store.BackendPebble, store.BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want file, pebble or memory)", c.Backend)
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout must not be negative")
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = constants.DefaultSyncInterval
	}
	if c.RecheckDelay == 0 {
		c.RecheckDelay = constants.DefaultRecheckDelay
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = constants.DefaultProbeInterval
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = constants.DefaultWatchDebounce
	}
	return nil
}
