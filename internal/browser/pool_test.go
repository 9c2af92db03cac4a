package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerSpec(t *testing.T) {
	p := &Pool{region: "eu-central-1", cfg: Config{Image: "ghcr.io/browserless/chromium:v2"}.withDefaults()}

	cfg, host := p.containerSpec(LaunchSpec{LeaseID: "8f0c6d1e-aaaa", SessionID: "checkout", Recording: true})

	assert.Equal(t, "ghcr.io/browserless/chromium:v2", cfg.Image)
	assert.Equal(t, "checkout", cfg.Labels["session-id"])
	assert.Equal(t, "8f0c6d1e-aaaa", cfg.Labels["lease-id"])
	assert.Equal(t, "eu-central-1", cfg.Labels["region"])
	assert.Equal(t, "true", cfg.Labels["recording"])
	assert.Contains(t, cfg.ExposedPorts, cdpPort)
	require.Len(t, host.PortBindings[cdpPort], 1)
	assert.Equal(t, "0", host.PortBindings[cdpPort][0].HostPort)
	assert.Empty(t, host.Mounts)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultImage, cfg.Image)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultReadyTimeout, cfg.ReadyTimeout)
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "browser-8f0c6d1e", containerName("8f0c6d1e-1234-5678"))
	assert.Equal(t, "browser-abc", containerName("abc"))
}

func TestWaitForBrowserReady(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/version", r.URL.Path)
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"Browser":"HeadlessChrome/120.0"}`))
	}))
	defer srv.Close()

	err := waitForBrowserReady(context.Background(), srv.URL, 5*time.Second)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestWaitForBrowserReadyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := waitForBrowserReady(context.Background(), srv.URL, 100*time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not become ready")
}
