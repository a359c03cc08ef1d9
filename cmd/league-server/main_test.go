package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentdavis/league-gotta-bike/pkg/config"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
	"github.com/vincentdavis/league-gotta-bike/pkg/storage"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := observability.NopLogger()

	t.Run("memory", func(t *testing.T) {
		cfg := storage.DefaultConfig()
		cfg.Driver = "memory"
		store, db, err := openStore(ctx, cfg, true, logger, nil)
		require.NoError(t, err)
		assert.Nil(t, db)
		assert.NoError(t, store.HealthCheck(ctx))
		assert.NoError(t, store.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := storage.DefaultConfig()
		cfg.Driver = "sqlite"
		_, _, err := openStore(ctx, cfg, false, logger, nil)
		assert.ErrorContains(t, err, "unknown storage driver")
	})
}

func TestNewNotifier(t *testing.T) {
	logger := observability.NopLogger()

	n, err := newNotifier(config.WebhookConfig{URL: "https://hooks.example.com", Format: "teams", MaxAttempts: 2}, logger)
	require.NoError(t, err)
	require.NoError(t, n.Close())

	_, err = newNotifier(config.WebhookConfig{URL: "https://hooks.example.com", Format: "discord"}, logger)
	assert.Error(t, err)
}
