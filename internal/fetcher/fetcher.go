// Package fetcher downloads feed documents over HTTP with per-host
// throttling and retries.
package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves remote documents.
type Fetcher interface {
	// DownloadIfChanged sends a conditional GET. When the server answers
	// 304 the body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (body io.ReadCloser, newETag string, changed bool, err error)
}
