package main

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fare-matrix/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRun_MissingRunFileExitsNonZero(t *testing.T) {
	cfg := &config.Config{RunConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}
	assert.Equal(t, 1, run(cfg))
}

func TestRun_SinkErrorReleasesMetricsServer(t *testing.T) {
	addr := freeAddr(t)
	cfg := &config.Config{
		Region:             "WAS",
		MetricsAddr:        addr,
		ResultsDatabaseURL: "postgres://fare@127.0.0.1:1/results?sslmode=disable&connect_timeout=1",
		Workers:            1,
	}
	require.Equal(t, 1, run(cfg))

	// The metrics server is shut down on the way out, so its port is free again.
	l, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
