// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/store"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

func seed(t *testing.T, mr *miniredis.Miniredis, prefix, name, host, port, state string) {
	t.Helper()
	_, err := mr.SAdd(prefix+":queries", name)
	require.NoError(t, err)
	mr.HSet(prefix+":query:"+name, "host", host, "port", port, "state", state)
}

func openTestStore(t *testing.T, mr *miniredis.Miniredis, options map[string]interface{}) *Store {
	t.Helper()
	cfg := config.EnterpriseSystemConfig{
		Type:          config.ControllerRedis,
		ConnectionURL: "redis://" + mr.Addr(),
		Options:       options,
	}
	s, err := Open(context.Background(), "prod", cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), "prod", config.EnterpriseSystemConfig{ConnectionURL: "http://nope"}, logger.NewNop())
	assert.Error(t, err)
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), "prod", config.EnterpriseSystemConfig{ConnectionURL: "redis://" + addr, TimeoutMs: 200}, logger.NewNop())
	assert.Error(t, err)
}

func TestStore_ListQueries(t *testing.T) {
	mr := miniredis.RunT(t)
	seed(t, mr, DefaultKeyPrefix, "beta", "worker-2", "10001", store.StateRunning)
	seed(t, mr, DefaultKeyPrefix, "alpha", "worker-1", "10000", store.StateStopped)
	_, err := mr.SAdd(DefaultKeyPrefix+":queries", "orphan")
	require.NoError(t, err)

	s := openTestStore(t, mr, nil)
	queries, err := s.ListQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, store.QueryInfo{Name: "alpha", Host: "worker-1", Port: 10000, State: store.StateStopped}, queries[0])
	assert.Equal(t, store.QueryInfo{Name: "beta", Host: "worker-2", Port: 10001, State: store.StateRunning}, queries[1])
}

func TestStore_ListQueriesEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	s := openTestStore(t, mr, nil)

	queries, err := s.ListQueries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestStore_KeyPrefixOption(t *testing.T) {
	mr := miniredis.RunT(t)
	seed(t, mr, "team-a", "q1", "worker", "10000", store.StateRunning)
	seed(t, mr, DefaultKeyPrefix, "other", "worker", "10000", store.StateRunning)

	s := openTestStore(t, mr, map[string]interface{}{"key_prefix": "team-a"})
	queries, err := s.ListQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "q1", queries[0].Name)
}

func TestStore_GetQuery(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	seed(t, mr, DefaultKeyPrefix, "q1", "worker", "10000", store.StateRunning)
	s := openTestStore(t, mr, nil)

	q, err := s.GetQuery(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "worker", q.Host)
	assert.True(t, q.Running())

	_, err = s.GetQuery(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrQueryNotFound)
}

func TestStore_ThroughClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	seed(t, mr, DefaultKeyPrefix, "q1", "worker", "10000", store.StateRunning)
	seed(t, mr, DefaultKeyPrefix, "q2", "worker", "10001", store.StateStopped)

	s := openTestStore(t, mr, nil)
	c := store.NewClient("prod", s, nil, logger.NewNop())
	names, err := c.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, names)

	ok, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
