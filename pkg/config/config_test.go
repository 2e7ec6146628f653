package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/ordsok/pkg/query"
)

func TestInitConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordsok", FileName)

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ord.uib.no/api/suggest", loaded.API.BaseURL)
	assert.Equal(t, []string{"bm", "nn"}, loaded.API.Dicts)
	assert.Equal(t, 50, loaded.API.Limit)
	assert.Equal(t, "ef", loaded.API.Include)
	assert.Equal(t, 300*time.Millisecond, loaded.Search.Debounce())
	assert.Equal(t, query.KindPattern, loaded.Search.Mode())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
[api]
limit = 10
timeout_ms = 2500

[search]
default_mode = "text"
debounce_ms = 150
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.API.Limit)
	assert.Equal(t, 2500*time.Millisecond, cfg.API.Timeout())
	assert.Equal(t, query.KindText, cfg.Search.Mode())
	assert.Equal(t, 150*time.Millisecond, cfg.Search.Debounce())
	assert.Equal(t, ":8080", cfg.Server.Addr, "untouched sections keep defaults")
}

func TestLoadConfigPartialRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	// limit has the wrong type, so strict decoding fails
	content := `
[api]
limit = "many"
include = "e"

[server]
addr = "127.0.0.1:9999"
enable_ws = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.API.Limit)
	assert.Equal(t, "e", cfg.API.Include)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.False(t, cfg.Server.EnableWS)
}

func TestLoadConfigGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("[[[not toml"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{}
	cfg.Search.PatternLen = 99
	cfg.API.TimeoutMs = -5
	cfg.Normalize()

	def := DefaultConfig()
	assert.Equal(t, def.API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, def.API.Limit, cfg.API.Limit)
	assert.Equal(t, 0, cfg.API.TimeoutMs)
	assert.Equal(t, def.Search.PatternLen, cfg.Search.PatternLen)
	assert.Equal(t, query.MaxLength, cfg.Search.MaxLetters)
}

func TestLoadConfigWithPriorityCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nlimit = 7\n"), 0644))

	cfg, used, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 7, cfg.API.Limit)
}

func TestRebuildConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("[api]\nlimit = 3\n"), 0644))

	got, err := RebuildConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.API.Limit)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var reloaded *Config
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			mu.Lock()
			reloaded = c
			mu.Unlock()
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[api]\nlimit = 12\n"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil && reloaded.API.Limit == 12
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
