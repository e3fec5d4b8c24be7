package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reload struct {
	cfg *Config
	err error
}

func startWatch(t *testing.T, dir string) <-chan reload {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reloads := make(chan reload, 8)
	done := make(chan error, 1)

	go func() {
		done <- WatchWithDebounce(ctx, dir, 20*time.Millisecond, func(cfg *Config, err error) {
			reloads <- reload{cfg, err}
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	// Give the watcher time to register before the test writes
	time.Sleep(50 * time.Millisecond)
	return reloads
}

func waitReload(t *testing.T, reloads <-chan reload) reload {
	t.Helper()
	select {
	case r := <-reloads:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
		return reload{}
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	reloads := startWatch(t, dir)

	writeFile(t, dir, KDLFileName, "search {\n    after_context 5\n}\n")

	r := waitReload(t, reloads)
	require.NoError(t, r.err)
	assert.Equal(t, 5, r.cfg.Search.AfterContext)
}

func TestWatch_ReportsInvalidSettings(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	reloads := startWatch(t, dir)

	writeFile(t, dir, TOMLFileName, "[search]\nmax_parallel_searches = 99\n")

	r := waitReload(t, reloads)
	require.Error(t, r.err)
	assert.Nil(t, r.cfg)
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	reloads := startWatch(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case r := <-reloads:
		t.Fatalf("unexpected reload: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), func(*Config, error) {})
	require.Error(t, err)
}

func TestIsSettingsFile(t *testing.T) {
	assert.True(t, isSettingsFile("/x/.mbrgrep.kdl"))
	assert.True(t, isSettingsFile(".mbrgrep.toml"))
	assert.False(t, isSettingsFile("/x/.mbrgrep.kdl.swp"))
}
