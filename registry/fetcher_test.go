// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/types"
)

func TestHTTPFetcher_SendsBrowserUserAgent(t *testing.T) {
	var userAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("document body"))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(nil, zap.NewNop())
	body, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "document body", body)
	assert.True(t, strings.HasPrefix(userAgent, "Mozilla/5.0"), "got user agent %q", userAgent)
}

func TestHTTPFetcher_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	f := NewHTTPFetcher(nil, zap.NewNop())
	_, err := f.Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrFetch))
	assert.True(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "403")
}

func TestHTTPFetcher_TransportFailure(t *testing.T) {
	f := NewHTTPFetcher(nil, zap.NewNop())
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/schema.json")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrFetch))
}

func TestHTTPFetcher_ContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPFetcher(nil, zap.NewNop())
	_, err := f.Fetch(ctx, ts.URL)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrFetch))
}
