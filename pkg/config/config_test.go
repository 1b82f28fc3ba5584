package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, DefaultFormat, cfg.Default.Format)
	assert.True(t, cfg.IsPreviewEnabled())
	assert.Equal(t, DefaultTemplates(), cfg.Templates)
	require.NoError(t, cfg.Validate())
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"api_url": "http://analysis.internal:8080",
		"timeout": "5s",
		"store": {"backend": "redis", "redis_addr": "localhost:6379", "ttl": "1h"},
		"templates": {"summary": "%file_name%", "short": "%camera%"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "http://analysis.internal:8080", cfg.APIURL)
	timeout, err := cfg.RequestTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
	ttl, err := cfg.SessionTTL()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, DefaultStorePath(), cfg.Store.Path)

	assert.Equal(t, "%file_name%", cfg.Templates["summary"])
	assert.Equal(t, "%camera%", cfg.Templates["short"])
	assert.Equal(t, DefaultTemplates()["url"], cfg.Templates["url"])
}

func TestLoadFrom_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIURL:    "http://env:3333",
		EnvStore:     BackendMemory,
		EnvRedisAddr: "redis:6379",
		EnvSession:   "tab-7",
		EnvDebug:     "1",
	}
	cfg := Defaults()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://env:3333", cfg.APIURL)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "tab-7", cfg.Session)
	assert.True(t, cfg.Debug)
}

func TestApplyEnv_Debug(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "yes": true, "0": false, "false": false} {
		cfg := Defaults()
		cfg.ApplyEnv(func(k string) string {
			if k == EnvDebug {
				return value
			}
			return ""
		})
		assert.Equal(t, want, cfg.Debug, value)
	}
}

func TestApplyEnv_EmptyLeavesValues(t *testing.T) {
	cfg := Defaults()
	cfg.ApplyEnv(func(string) string { return "" })
	assert.Equal(t, Defaults(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"empty url", func(c *Config) { c.APIURL = " " }, "api_url"},
		{"bad timeout", func(c *Config) { c.Timeout = "soon" }, "timeout"},
		{"negative ttl", func(c *Config) { c.Store.TTL = "-1h" }, "store.ttl"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "unknown store backend"},
		{"redis without addr", func(c *Config) { c.Store.Backend = BackendRedis }, "redis_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSet(t *testing.T) {
	cfg := Defaults()

	require.NoError(t, cfg.Set("api_url", "http://x"))
	require.NoError(t, cfg.Set("preview", "false"))
	require.NoError(t, cfg.Set("store.redis_db", "3"))
	require.NoError(t, cfg.Set("store.ttl", "30m"))
	require.NoError(t, cfg.Set("templates.mine", "%file_name%"))

	assert.Equal(t, "http://x", cfg.APIURL)
	assert.False(t, cfg.IsPreviewEnabled())
	assert.Equal(t, 3, cfg.Store.RedisDB)
	assert.Equal(t, "30m", cfg.Store.TTL)
	assert.Equal(t, "%file_name%", cfg.Templates["mine"])

	assert.Error(t, cfg.Set("store.redis_db", "three"))
	assert.Error(t, cfg.Set("timeout", "0s"))
	assert.Error(t, cfg.Set("flickr.key", "x"))
}

func TestSaveTo_RoundTripsThroughLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Defaults()
	require.NoError(t, cfg.Set("api_url", "http://saved"))
	require.NoError(t, cfg.SaveTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved", loaded.APIURL)
}
