// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package cassandra

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
)

func TestParseConnectionURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantHosts    []string
		wantKeyspace string
		wantErr      bool
	}{
		{"single host", "cassandra://db-1:9042/ops", []string{"db-1:9042"}, "ops", false},
		{"multiple hosts", "cassandra://db-1,db-2:9042/ops", []string{"db-1", "db-2:9042"}, "ops", false},
		{"no keyspace", "cassandra://db-1:9042", nil, "", true},
		{"nested path", "cassandra://db-1/a/b", nil, "", true},
		{"wrong scheme", "postgres://db-1/ops", nil, "", true},
		{"no hosts", "cassandra:///ops", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, keyspace, err := parseConnectionURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHosts, hosts)
			assert.Equal(t, tt.wantKeyspace, keyspace)
		})
	}
}

func TestParseConsistency(t *testing.T) {
	assert.Equal(t, gocql.Quorum, parseConsistency("quorum"))
	assert.Equal(t, gocql.One, parseConsistency("ONE"))
	assert.Equal(t, gocql.LocalOne, parseConsistency("local_one"))
	assert.Equal(t, gocql.LocalQuorum, parseConsistency("bogus"))
}

func TestClusterConfig(t *testing.T) {
	cfg := config.EnterpriseSystemConfig{
		ConnectionURL: "cassandra://db-1,db-2/ops",
		Credentials:   map[string]string{"username": "svc", "password": "secret"},
		Options:       map[string]interface{}{"consistency": "ONE"},
		TimeoutMs:     1500,
	}
	cluster, err := clusterConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"db-1", "db-2"}, cluster.Hosts)
	assert.Equal(t, "ops", cluster.Keyspace)
	assert.Equal(t, gocql.One, cluster.Consistency)
	assert.Equal(t, 1500*time.Millisecond, cluster.Timeout)

	auth, ok := cluster.Authenticator.(gocql.PasswordAuthenticator)
	require.True(t, ok)
	assert.Equal(t, "svc", auth.Username)
}
