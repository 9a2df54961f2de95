// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		uri     string
		want    location
		wantErr bool
	}{
		{uri: "/etc/sessions.yaml", want: location{scheme: "file", key: "/etc/sessions.yaml"}},
		{uri: "relative/sessions.yaml", want: location{scheme: "file", key: "relative/sessions.yaml"}},
		{uri: "file:///etc/sessions.yaml", want: location{scheme: "file", key: "/etc/sessions.yaml"}},
		{uri: "s3://bucket/path/sessions.yaml", want: location{scheme: "s3", bucket: "bucket", key: "path/sessions.yaml"}},
		{uri: "gs://bucket/sessions.yaml", want: location{scheme: "gs", bucket: "bucket", key: "sessions.yaml"}},
		{uri: "azblob://acct/container/dir/sessions.yaml", want: location{scheme: "azblob", account: "acct", bucket: "container", key: "dir/sessions.yaml"}},
		{uri: "", wantErr: true},
		{uri: "s3://bucket", wantErr: true},
		{uri: "azblob://acct/container", wantErr: true},
		{uri: "ftp://host/file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := parseLocation(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenSource_File(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validDoc)
	src, err := OpenSource(context.Background(), path, OpenOptions{})
	require.NoError(t, err)
	defer src.Close()

	cfg, err := src.Config(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cfg.Enterprise.Systems, "prod")
}

func TestOpenSource_UnsupportedScheme(t *testing.T) {
	_, err := OpenSource(context.Background(), "ftp://host/sessions.yaml", OpenOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

type fakeFetcher struct {
	data   string
	err    error
	calls  int
	closed bool
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.data), nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

func TestObjectSource_CachesFetches(t *testing.T) {
	f := &fakeFetcher{data: validDoc}
	src, err := newObjectSource(context.Background(), "mem://sessions.yaml", f, FileSourceOptions{CacheTTL: time.Minute, Logger: logger.NewNop()})
	require.NoError(t, err)

	_, err = src.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	src.Invalidate()
	_, err = src.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)

	require.NoError(t, src.Close())
	assert.True(t, f.closed)
}

func TestObjectSource_FetchErrorClosesFetcher(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	_, err := newObjectSource(context.Background(), "mem://sessions.yaml", f, FileSourceOptions{Logger: logger.NewNop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, f.closed)
}

type fakeS3 struct {
	body string
	in   *s3.GetObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.in = params
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Fetcher(t *testing.T) {
	api := &fakeS3{body: validDoc}
	f := &s3Fetcher{client: api, bucket: "cfg", key: "sessions.yaml"}

	data, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, validDoc, string(data))
	assert.Equal(t, "cfg", aws.ToString(api.in.Bucket))
	assert.Equal(t, "sessions.yaml", aws.ToString(api.in.Key))
}
