package store

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity_Format(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	id, err := NewIdentity(now)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^u-[0-9a-z]+$`), id)
	assert.True(t, strings.HasSuffix(id, strconv.FormatInt(now.UnixMilli(), 36)))
	assert.Len(t, id, 2+10+len(strconv.FormatInt(now.UnixMilli(), 36)))
}

func TestLoadOrCreateIdentity_Persists(t *testing.T) {
	backend := NewMemoryBackend()

	first, err := LoadOrCreateIdentity(backend)
	require.NoError(t, err)
	second, err := LoadOrCreateIdentity(backend)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	raw, err := backend.Get(model.IdentityKey)
	require.NoError(t, err)
	assert.Equal(t, first, string(raw))
}

func TestLoadOrCreateIdentity_KeepsExisting(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Put(model.IdentityKey, []byte("u-existing")))

	id, err := LoadOrCreateIdentity(backend)
	require.NoError(t, err)
	assert.Equal(t, "u-existing", id)
}
