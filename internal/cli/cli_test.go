package cli

import (
	"bytes"
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"lichsu-rewards-service/internal/config"
)

func TestCatalogCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"catalog", "--provider", "momo"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "momo-10k")
	require.Contains(t, out.String(), "10.000đ")
	require.Contains(t, out.String(), "100 điểm")
	require.NotContains(t, out.String(), "vnpay")
}

func TestStoreDriverResolution(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "memory", storeDriver(cfg))

	cfg.Postgres.URL = "postgres://localhost/lichsu"
	require.Equal(t, "postgres", storeDriver(cfg))

	cfg.Redis.Addr = "localhost:6379"
	require.Equal(t, "redis", storeDriver(cfg))

	cfg.Store.Driver = "memory"
	require.Equal(t, "memory", storeDriver(cfg))
}

func TestNewStoreRequiresBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "redis"
	_, _, err := newStore(cfg, nil, nil)
	require.Error(t, err)

	cfg.Store.Driver = "postgres"
	_, _, err = newStore(cfg, nil, nil)
	require.Error(t, err)

	cfg.Store.Driver = "etcd"
	_, _, err = newStore(cfg, nil, nil)
	require.ErrorContains(t, err, "unknown store driver")

	cfg.Store.Driver = "memory"
	store, backends, err := newStore(cfg, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Empty(t, backends)
}

func TestDropCachedQuizzes(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("quiz:demo-1:content", `{"id":"demo-1"}`))
	require.NoError(t, mr.Set("quiz:demo-2:content", `{"id":"demo-2"}`))
	require.NoError(t, mr.Set("quiz:demo-3:content", `{"id":"demo-3"}`))

	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	dropCachedQuizzes(context.Background(), cfg, []string{"demo-1", "demo-2"})

	require.False(t, mr.Exists("quiz:demo-1:content"))
	require.False(t, mr.Exists("quiz:demo-2:content"))
	require.True(t, mr.Exists("quiz:demo-3:content"), "quizzes not listed stay cached")

	// Without Redis there is nothing to clear.
	dropCachedQuizzes(context.Background(), config.Default(), []string{"demo-3"})
	require.True(t, mr.Exists("quiz:demo-3:content"))
}

func TestNewRedisClientOnlyWhenConfigured(t *testing.T) {
	require.Nil(t, newRedisClient(config.Default()))

	cfg := config.Default()
	cfg.Redis.Addr = "localhost:6379"
	client := newRedisClient(cfg)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}
