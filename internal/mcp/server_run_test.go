package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pilot/internal/config"
)

func TestServer_Run_CanceledContext(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServer_Run_ServerMode(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Mode = config.ModeServer
	s := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the context was canceled")
	}
}
