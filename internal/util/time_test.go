package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeProvider(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "local", timezone: "Local"},
		{name: "empty defaults to local", timezone: ""},
		{name: "utc", timezone: "UTC"},
		{name: "named zone", timezone: "Asia/Shanghai"},
		{name: "invalid zone", timezone: "Invalid/Zone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := NewTimeProvider(tt.timezone)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid timezone")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, tp.Location())
		})
	}
}

func TestInitializeTimeProvider_KeepsPreviousOnError(t *testing.T) {
	require.NoError(t, InitializeTimeProvider("UTC"))
	before := GetTimeProvider()

	require.Error(t, InitializeTimeProvider("Nope/Nope"))
	assert.Same(t, before, GetTimeProvider())
	assert.Equal(t, "UTC", GetTimeProvider().Location().String())
}

func TestTimeProvider_MinuteBucket(t *testing.T) {
	tp, err := NewTimeProvider("UTC")
	require.NoError(t, err)

	a := time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)
	b := time.Date(2024, 3, 7, 9, 5, 59, 999, time.UTC)
	c := time.Date(2024, 3, 7, 9, 6, 0, 0, time.UTC)

	assert.Equal(t, tp.MinuteBucket(a), tp.MinuteBucket(b))
	assert.NotEqual(t, tp.MinuteBucket(a), tp.MinuteBucket(c))
	assert.Equal(t, "2024-3-7 9:5", tp.MinuteLabel(a))
	assert.Equal(t, "2024-3-7 9:6", tp.MinuteLabel(c))
}

func TestTimeProvider_MinuteBucketDependsOnZone(t *testing.T) {
	utc, err := NewTimeProvider("UTC")
	require.NoError(t, err)
	tokyo, err := NewTimeProvider("Asia/Tokyo")
	require.NoError(t, err)

	instant := time.Date(2024, 12, 31, 23, 59, 30, 0, time.UTC)
	assert.Equal(t, "2024-12-31 23:59", utc.MinuteLabel(instant))
	assert.Equal(t, "2025-1-1 8:59", tokyo.MinuteLabel(instant))
}

func TestTimeProvider_Concurrency(t *testing.T) {
	tp, err := NewTimeProvider("UTC")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tp.MinuteLabel(time.Now())
		}()
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = tp.SetTimezone("UTC")
			} else {
				_ = tp.SetTimezone("Europe/London")
			}
		}(i)
	}
	wg.Wait()
}
