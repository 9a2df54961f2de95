// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/store"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

func newMockStore(t *testing.T, dialect Dialect, table string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New("prod", dialect, db, table, logger.NewNop())
	require.NoError(t, err)
	return s, mock
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor(config.ControllerPostgres)
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = DialectFor(config.ControllerMySQL)
	require.NoError(t, err)
	assert.Equal(t, MySQL, d)

	_, err = DialectFor(config.ControllerRedis)
	assert.Error(t, err)
}

func TestNew_RejectsBadTableNames(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"", "queries; DROP TABLE x", "1abc", "a.b.c"} {
		_, err := New("prod", Postgres, db, table, logger.NewNop())
		assert.Error(t, err, table)
	}
	_, err = New("prod", Postgres, db, "ops.persistent_queries", logger.NewNop())
	assert.NoError(t, err)
}

func TestStore_ListQueries(t *testing.T) {
	s, mock := newMockStore(t, Postgres, DefaultTable)

	rows := sqlmock.NewRows([]string{"name", "host", "port", "state"}).
		AddRow("q1", "worker-1", 10000, store.StateRunning).
		AddRow("q2", "worker-2", 10001, store.StateStopped)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, host, port, state FROM persistent_queries ORDER BY name")).
		WillReturnRows(rows)

	queries, err := s.ListQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, store.QueryInfo{Name: "q1", Host: "worker-1", Port: 10000, State: store.StateRunning}, queries[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListQueriesError(t *testing.T) {
	s, mock := newMockStore(t, MySQL, "catalog")
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog")).WillReturnError(errors.New("table missing"))

	_, err := s.ListQueries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table missing")
}

func TestStore_GetQueryPlaceholders(t *testing.T) {
	tests := []struct {
		dialect Dialect
		query   string
	}{
		{Postgres, "SELECT name, host, port, state FROM persistent_queries WHERE name = $1"},
		{MySQL, "SELECT name, host, port, state FROM persistent_queries WHERE name = ?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			s, mock := newMockStore(t, tt.dialect, DefaultTable)
			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs("q1").
				WillReturnRows(sqlmock.NewRows([]string{"name", "host", "port", "state"}).
					AddRow("q1", "worker", 10000, store.StateRunning))

			q, err := s.GetQuery(context.Background(), "q1")
			require.NoError(t, err)
			assert.Equal(t, "worker", q.Host)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_GetQueryNotFound(t *testing.T) {
	s, mock := newMockStore(t, Postgres, DefaultTable)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE name = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"name", "host", "port", "state"}))

	_, err := s.GetQuery(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrQueryNotFound)
}

func TestStore_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	s, err := New("prod", Postgres, db, DefaultTable, logger.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, s.Ping(context.Background()))
}
