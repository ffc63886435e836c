// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/toolhub/internal/tlsutil"
	"github.com/BaSui01/toolhub/types"
)

const (
	// fetchTimeout bounds a single remote schema download.
	fetchTimeout = 10 * time.Second

	// fetchUserAgent mimics a desktop browser. Several schema hosts
	// reject requests carrying a default Go user agent.
	fetchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxSchemaBytes caps the downloaded document size.
	maxSchemaBytes = 4 << 20
)

// Fetcher retrieves a remote document as text. It doubles as the
// resolver the schema compiler uses for plugin manifests.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher downloads schema documents over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPFetcher builds a fetcher with the standard schema download
// timeout. A nil client gets a private one so callers cannot disturb
// http.DefaultClient settings.
func NewHTTPFetcher(client *http.Client, logger *zap.Logger) *HTTPFetcher {
	if client == nil {
		client = tlsutil.SecureHTTPClient(fetchTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPFetcher{client: client, logger: logger}
}

// Fetch downloads url and returns the body as a string. Non-200
// responses and transport failures surface as retryable fetch errors;
// the registry decides how much of that detail reaches callers.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", types.NewFetchError(fmt.Sprintf("build request for %s: %v", url, err))
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("远程 Schema 下载失败", zap.String("url", url), zap.Error(err))
		return "", types.NewFetchError(fmt.Sprintf("fetch %s: %v", url, err)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("远程 Schema 返回非 200 状态码",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return "", types.NewFetchError(fmt.Sprintf("fetch %s: status %d", url, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSchemaBytes))
	if err != nil {
		return "", types.NewFetchError(fmt.Sprintf("read %s: %v", url, err)).WithCause(err)
	}
	return string(body), nil
}
