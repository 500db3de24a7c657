package commands

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/penwyp/go-ici-sync/internal/envbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func commonArgs(t *testing.T, server string) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"--server", server,
		"--env", "team-a",
		"--backend", "memory",
		"--timezone", "UTC",
		"--data-dir", filepath.Join(dir, "data"),
		"--log-file", filepath.Join(dir, "app.log"),
	}
}

func TestCLI_AskThenSharedLog(t *testing.T) {
	srv := httptest.NewServer(envbox.NewServer(envbox.NewMemoryBox(), nil))
	defer srv.Close()
	base := commonArgs(t, srv.URL)

	out, err := run(t, append([]string{"ask", "--ask=false", "hello", "world"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "sync: pushed")

	out, err = run(t, append([]string{"log", "--shared", "-o", "json"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"hello world"`)

	out, err = run(t, append([]string{"sync"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "pushed 0")
}

func TestCLI_Status(t *testing.T) {
	srv := httptest.NewServer(envbox.NewServer(envbox.NewMemoryBox(), nil))
	defer srv.Close()

	out, err := run(t, append([]string{"status"}, commonArgs(t, srv.URL)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "identity:    u-")
	assert.Contains(t, out, "environment: team-a\n")
	assert.Contains(t, out, "service:     online")
}

func TestCLI_ClearRequiresConfirmation(t *testing.T) {
	srv := httptest.NewServer(envbox.NewServer(envbox.NewMemoryBox(), nil))
	defer srv.Close()

	_, err := run(t, append([]string{"clear"}, commonArgs(t, srv.URL)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestChatConfig_FromEnvironment(t *testing.T) {
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	t.Setenv("ICI_ASK_SERVER", "http://answers.local")
	t.Setenv("ICI_RECHECK_DELAY", "42s")

	cfg := chatConfig()
	assert.Equal(t, "http://answers.local", cfg.AskServer)
	assert.Equal(t, 42*time.Second, cfg.RecheckDelay)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "-", formatAge(time.Time{}))
	assert.Equal(t, "1m0s", formatAge(time.Now().Add(-time.Minute)))
}
