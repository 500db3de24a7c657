package util

import (
	"fmt"
	"sync"
	"time"
)

// MinuteLabelLayout renders a minute bucket without zero padding, e.g. "2024-3-7 9:5".
const MinuteLabelLayout = "2006-1-2 15:4"

// TimeProvider converts instants into the configured display time zone.
type TimeProvider struct {
	location *time.Location
	mu       sync.RWMutex
}

var (
	globalTimeProvider *TimeProvider
	mu                 sync.Mutex
)

// NewTimeProvider returns a provider for the named zone ("" or "Local" means time.Local).
func NewTimeProvider(timezone string) (*TimeProvider, error) {
	tp := &TimeProvider{}
	if err := tp.SetTimezone(timezone); err != nil {
		return nil, err
	}
	return tp, nil
}

// InitializeTimeProvider replaces the process-wide provider. On error the
// previous provider stays in place.
func InitializeTimeProvider(timezone string) error {
	tp, err := NewTimeProvider(timezone)
	if err != nil {
		return err
	}
	mu.Lock()
	globalTimeProvider = tp
	mu.Unlock()
	return nil
}

// GetTimeProvider returns the process-wide provider, defaulting to Local.
func GetTimeProvider() *TimeProvider {
	mu.Lock()
	defer mu.Unlock()
	if globalTimeProvider == nil {
		globalTimeProvider = &TimeProvider{location: time.Local}
	}
	return globalTimeProvider
}

// SetTimezone updates the zone used by the provider.
func (tp *TimeProvider) SetTimezone(timezone string) error {
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w (examples: Local, UTC, Europe/London, Asia/Shanghai)", timezone, err)
		}
		loc = l
	}
	tp.mu.Lock()
	tp.location = loc
	tp.mu.Unlock()
	return nil
}

// Location returns the configured zone.
func (tp *TimeProvider) Location() *time.Location {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.location
}

// Now returns the current time in the configured zone.
func (tp *TimeProvider) Now() time.Time {
	return time.Now().In(tp.Location())
}

// In converts t to the configured zone.
func (tp *TimeProvider) In(t time.Time) time.Time {
	return t.In(tp.Location())
}

// Format formats t in the configured zone.
func (tp *TimeProvider) Format(t time.Time, layout string) string {
	return tp.In(t).Format(layout)
}

// MinuteBucket truncates t to its calendar minute in the configured zone.
// Two instants share a bucket when year, month, day, hour and minute all match.
func (tp *TimeProvider) MinuteBucket(t time.Time) time.Time {
	lt := tp.In(t)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), 0, 0, lt.Location())
}

// MinuteLabel returns the display label of t's minute bucket.
func (tp *TimeProvider) MinuteLabel(t time.Time) string {
	return tp.Format(t, MinuteLabelLayout)
}
