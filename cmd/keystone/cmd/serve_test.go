package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/keystone/internal/config"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand(t *testing.T) {
	assert.NotNil(t, serveCmd)
	assert.Equal(t, "serve", serveCmd.Use)
	for _, name := range []string{"host", "port", "cors-origin", "tick-ms", "shutdown-timeout", "mutations-per-minute", "store", "key"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), name)
	}
}

func TestServeCommandInvalidPort(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRunServerLifecycle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.PreviewWidth = 16
	cfg.Server.PreviewHeight = 16
	cfg.Server.ShutdownTimeout = 2
	cfg.Store.Path = filepath.Join(t.TempDir(), "corners.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, &cfg) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	fs, err := store.OpenFileStore(cfg.Store.Path)
	require.NoError(t, err)
	assert.Equal(t, geom.Canonical(), store.LoadCorners(fs, cfg.Store.Key, nil))
}
