// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const communityOnly = `
version: "1.0"
community:
  sessions:
    local:
      host: 127.0.0.1
      port: 10000
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessionhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	v := viper.New()
	newRootCmd(v)

	assert.Equal(t, "sessionhub.yaml", v.GetString("config"))
	assert.Equal(t, "INFO", v.GetString("log-level"))
	assert.Equal(t, ":8080", v.GetString("listen"))
	assert.Equal(t, "table", v.GetString("output"))
}

func TestRootCmd_EnvOverridesFlags(t *testing.T) {
	t.Setenv("SESSIONHUB_LOG_LEVEL", "DEBUG")
	t.Setenv("SESSIONHUB_CONFIG", "s3://bucket/sessionhub.yaml")

	v := viper.New()
	newRootCmd(v)

	assert.Equal(t, "DEBUG", v.GetString("log-level"))
	assert.Equal(t, "s3://bucket/sessionhub.yaml", v.GetString("config"))
}

func TestInitLogging_RejectsUnknownLevel(t *testing.T) {
	v := viper.New()
	v.Set("log-level", "LOUD")
	assert.Error(t, initLogging(v))

	v.Set("log-level", "info")
	assert.NoError(t, initLogging(v))
}

func TestSessionsCmd_JSON(t *testing.T) {
	path := writeConfig(t, communityOnly)

	out, err := execute(t, "sessions", "--config", path, "--output", "json")
	require.NoError(t, err)

	var report sessionsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "completed", report.Phase)
	require.Len(t, report.Sessions, 1)
	assert.Equal(t, sessionRow{
		FullName:   "community:community:local",
		SystemType: "community",
		Source:     "community",
		Name:       "local",
	}, report.Sessions[0])
	assert.Empty(t, report.Errors)
}

func TestSessionsCmd_YAML(t *testing.T) {
	path := writeConfig(t, communityOnly)

	out, err := execute(t, "sessions", "-c", path, "-o", "yaml")
	require.NoError(t, err)

	var report sessionsReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Len(t, report.Sessions, 1)
	assert.Equal(t, "local", report.Sessions[0].Name)
}

func TestSessionsCmd_Table(t *testing.T) {
	path := writeConfig(t, communityOnly)

	out, err := execute(t, "sessions", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "FULL NAME")
	assert.Contains(t, out, "community:community:local")
	assert.Contains(t, out, "phase: completed")
}

func TestSessionsCmd_Errors(t *testing.T) {
	path := writeConfig(t, communityOnly)

	_, err := execute(t, "sessions", "-c", path, "-o", "xml")
	assert.ErrorContains(t, err, "unsupported --output")

	_, err = execute(t, "sessions", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "-o", "json")
	assert.Error(t, err)

	_, err = execute(t, "sessions", "-c", path, "--log-level", "LOUD")
	assert.ErrorContains(t, err, "invalid --log-level")
}

func TestWriteReport_TableListsSourceErrors(t *testing.T) {
	var out bytes.Buffer
	err := writeReport(&out, "table", &sessionsReport{
		Phase:  "completed",
		Errors: map[string]string{"prod": "connection refused", "dev": "timeout"},
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "source dev: timeout\nsource prod: connection refused\n")
}
