//go:build !(linux || darwin || freebsd)

package store

import "os"

// Advisory locking is unavailable; writes still replace files atomically.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
