package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linguistSample = `
Go:
  type: programming
  color: "#00ADD8"
  extensions:
  - ".go"
Python:
  type: programming
  color: "#3572A5"
Text:
  type: prose
Broken:
  type: programming
  color: "not a color"
`

func newLinguistServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if _, err := w.Write([]byte(linguistSample)); err != nil {
			t.Error("unable to write linguist sample")
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func TestParseLinguistColors(t *testing.T) {
	colors, err := ParseLinguistColors([]byte(linguistSample))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Go":     "#00add8",
		"Python": "#3572a5",
	}, colors)

	_, err = ParseLinguistColors([]byte("- not\n- a mapping"))
	assert.Error(t, err)
}

func TestColorServiceInitFetchesAndPersists(t *testing.T) {
	var calls atomic.Int32
	server := newLinguistServer(t, &calls)

	cacheFile := filepath.Join(t.TempDir(), "cache", "language_colors.json")
	svc := NewColorService(config.ColorsConfig{CacheFile: cacheFile, SourceURL: server.URL}, server.Client())

	require.NoError(t, svc.Init(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, svc.Len())
	assert.Equal(t, "#00add8", svc.Lookup("Go"))
	assert.Equal(t, DefaultLanguageColor, svc.Lookup("Text"))
	assert.Equal(t, DefaultLanguageColor, svc.Lookup("Unknown"))

	_, err := os.Stat(cacheFile)
	require.NoError(t, err)

	// a second resolver reads the local file only
	other := NewColorService(config.ColorsConfig{CacheFile: cacheFile, SourceURL: server.URL}, server.Client())
	require.NoError(t, other.Init(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "#3572a5", other.Lookup("Python"))
}

func TestColorServiceForceRefresh(t *testing.T) {
	var calls atomic.Int32
	server := newLinguistServer(t, &calls)

	cacheFile := filepath.Join(t.TempDir(), "language_colors.json")
	require.NoError(t, os.WriteFile(cacheFile, []byte(`{"Go":"#000000"}`), 0o644))

	svc := NewColorService(config.ColorsConfig{CacheFile: cacheFile, SourceURL: server.URL}, server.Client())

	require.NoError(t, svc.Init(context.Background()))
	assert.Equal(t, "#000000", svc.Lookup("Go"))
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, svc.ForceRefresh(context.Background()))
	assert.Equal(t, "#00add8", svc.Lookup("Go"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestColorServiceInitErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()

	svc := NewColorService(config.ColorsConfig{CacheFile: filepath.Join(dir, "missing.json"), SourceURL: server.URL}, server.Client())
	assert.Error(t, svc.Init(context.Background()))
	assert.Equal(t, DefaultLanguageColor, svc.Lookup("Go"))

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte("{"), 0o644))

	svc = NewColorService(config.ColorsConfig{CacheFile: invalid, SourceURL: server.URL}, server.Client())
	assert.Error(t, svc.Init(context.Background()))
}
