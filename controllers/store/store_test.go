// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/sdk"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

type memoryStore struct {
	mu       sync.Mutex
	queries  map[string]QueryInfo
	pingErr  error
	listErr  error
	closeErr error
	closed   int
}

func newMemoryStore(queries ...QueryInfo) *memoryStore {
	s := &memoryStore{queries: make(map[string]QueryInfo)}
	for _, q := range queries {
		s.queries[q.Name] = q
	}
	return s
}

func (s *memoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *memoryStore) ListQueries(ctx context.Context) ([]QueryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]QueryInfo, 0, len(s.queries))
	for _, q := range s.queries {
		out = append(out, q)
	}
	return out, nil
}

func (s *memoryStore) GetQuery(ctx context.Context, name string) (*QueryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[name]
	if !ok {
		return nil, ErrQueryNotFound
	}
	return &q, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

func mockDialer(ctx context.Context, source string, q QueryInfo) (base.Session, error) {
	return sdk.NewMockSession(q.Name), nil
}

func running(name string) QueryInfo {
	return QueryInfo{Name: name, Host: "worker", Port: 10000, State: StateRunning}
}

func TestQueryInfo_Validate(t *testing.T) {
	tests := []struct {
		name    string
		q       QueryInfo
		wantErr bool
	}{
		{"valid", running("q1"), false},
		{"no name", QueryInfo{Host: "h", Port: 1}, true},
		{"no host", QueryInfo{Name: "q", Port: 1}, true},
		{"zero port", QueryInfo{Name: "q", Host: "h"}, true},
		{"port too large", QueryInfo{Name: "q", Host: "h", Port: 70000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueryInfo_RunningIsCaseInsensitive(t *testing.T) {
	assert.True(t, QueryInfo{State: "running"}.Running())
	assert.True(t, QueryInfo{State: StateRunning}.Running())
	assert.False(t, QueryInfo{State: StateStopped}.Running())
}

func TestClient_ListSessionsFiltersAndSorts(t *testing.T) {
	st := newMemoryStore(
		running("zeta"),
		running("alpha"),
		QueryInfo{Name: "stopped", Host: "w", Port: 1, State: StateStopped},
		QueryInfo{Name: "broken", State: StateRunning},
	)
	c := NewClient("prod", st, mockDialer, logger.NewNop())

	names, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestClient_ListSessionsError(t *testing.T) {
	st := newMemoryStore()
	st.listErr = errors.New("backend down")
	c := NewClient("prod", st, mockDialer, logger.NewNop())

	_, err := c.ListSessions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestClient_ConnectSession(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore(running("q1"), QueryInfo{Name: "q2", Host: "w", Port: 1, State: StateFailed})
	c := NewClient("prod", st, mockDialer, logger.NewNop())

	s, err := c.ConnectSession(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, s.IsAlive(ctx))

	_, err = c.ConnectSession(ctx, "missing")
	assert.ErrorIs(t, err, base.ErrNotFound)

	_, err = c.ConnectSession(ctx, "q2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is Failed")
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore(running("q1"))
	c := NewClient("prod", st, mockDialer, logger.NewNop())

	ok, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
	assert.Equal(t, 1, st.closed)

	ok, err = c.Ping(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = c.ListSessions(ctx)
	assert.Error(t, err)
}

func TestFactory_ClientsOwnTheirConnections(t *testing.T) {
	ctx := context.Background()
	control := newMemoryStore()
	var opened []*memoryStore
	open := func(ctx context.Context) (Store, error) {
		st := newMemoryStore(running("q1"))
		opened = append(opened, st)
		return st, nil
	}
	f := NewFactory("prod", control, open, mockDialer, logger.NewNop())
	assert.Equal(t, "prod", f.Source())

	c1, err := f.ControllerClient(ctx)
	require.NoError(t, err)
	c2, err := f.ControllerClient(ctx)
	require.NoError(t, err)
	require.Len(t, opened, 2)

	require.NoError(t, c1.Close(ctx))
	assert.Equal(t, 1, opened[0].closed)
	assert.Equal(t, 0, opened[1].closed)

	names, err := c2.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, names)

	require.NoError(t, f.Close(ctx))
	require.NoError(t, f.Close(ctx))
	assert.Equal(t, 1, control.closed)
	assert.Equal(t, 0, opened[1].closed, "factory close leaves clients open")

	_, err = f.ControllerClient(ctx)
	assert.Error(t, err)
}

func TestFactory_Ping(t *testing.T) {
	ctx := context.Background()
	control := newMemoryStore()
	f := NewFactory("prod", control, nil, mockDialer, logger.NewNop())

	ok, err := f.Ping(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	control.pingErr = errors.New("timeout")
	ok, err = f.Ping(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestFactory_OpenFailure(t *testing.T) {
	open := func(ctx context.Context) (Store, error) {
		return nil, errors.New("connection refused")
	}
	f := NewFactory("prod", newMemoryStore(), open, mockDialer, logger.NewNop())

	_, err := f.ControllerClient(context.Background())
	require.Error(t, err)
	var sessErr *base.SessionError
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, "ControllerClient", sessErr.Operation)
}
