package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
http:
  port: 9090
  timeout: 10s
log:
  level: debug
model:
  path: /srv/model.json
schema:
  numeric: [subcategory_notes]
  defaults:
    closed_year: 0
    lat: "0.0"
  strict: true
export:
  echo: reconciled
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Http.Port)
	assert.Equal(t, 10*time.Second, c.Http.Timeout)
	assert.Equal(t, []string{"*"}, c.Http.AllowedOrigins)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "/srv/model.json", c.Model.Path)
	assert.Equal(t, []string{"subcategory_notes"}, c.Schema.Numeric)
	assert.Equal(t, map[string]string{"closed_year": "0", "lat": "0.0"}, c.Schema.Defaults)
	assert.True(t, c.Schema.Strict)
	assert.Nil(t, c.Schema.CategoricalMarkers)
	assert.Equal(t, "reconciled", c.Export.Echo)
	assert.Equal(t, "predictions.csv", c.Export.FileName)
	assert.Equal(t, DefaultDescriptions()["lat"], c.Schema.Descriptions["lat"])
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeConfig(t, path, "http: [")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 8080, c.Http.Port)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "original", c.Export.Echo)
	assert.Equal(t, 128, c.Export.CacheSize)
	assert.Len(t, c.Schema.Descriptions, 16)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zaptest.NewLogger(t), func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		})
	}()

	// the watcher registers asynchronously and may observe a half-written
	// file; keep rewriting until the new level shows up
	deadline := time.After(5 * time.Second)
	for {
		writeConfig(t, path, "log:\n  level: debug\n")
		select {
		case c := <-changes:
			if c.Log.Level != "debug" {
				continue
			}
			cancel()
			require.NoError(t, <-done)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
