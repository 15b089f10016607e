package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsOnCancel(t *testing.T) {
	cfg, err := parseFlags("bzot", []string{
		"-addr", "127.0.0.1:0",
		"-metrics-addr", "127.0.0.1:0",
	}, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, slog.New(slog.DiscardHandler)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "run did not return")
	}
}

func TestRunListenError(t *testing.T) {
	cfg, err := parseFlags("bzot", []string{"-addr", "not an address"}, io.Discard)
	require.NoError(t, err)

	assert.Error(t, run(context.Background(), cfg, slog.New(slog.DiscardHandler)))
}
