package main

import (
	"context"
	"github.com/jaam8/polls/internal/config"
	"github.com/jaam8/polls/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		HTTPAddr:          "127.0.0.1:0",
		ShutdownTimeout:   time.Second,
		ReadHeaderTimeout: time.Second,
		Storage:           config.StorageSQL,
		IndexLimit:        5,
		Database: database.Config{
			Driver: database.DriverSQLite,
			DSN:    filepath.Join(t.TempDir(), "polls.db"),
		},
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, cancel, testConfig(t), zaptest.NewLogger(t))
	assert.NoError(t, err)
}

func TestRunReturnsStorageError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	err := run(ctx, cancel, cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown driver")
}

func TestRunReturnsListenError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig(t)
	cfg.HTTPAddr = "127.0.0.1:-1"

	err := run(ctx, cancel, cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "http server")
}
