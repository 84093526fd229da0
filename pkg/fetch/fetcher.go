// Package fetch implements the asynchronous HTTP fetcher spec.md §1 and
// §4.4 treat as an external collaborator: concurrency-limited, per-URI
// downloads to a caller-owned temp file, with total-bytes-transferred
// metering.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
)

// Options configures a Fetcher.
type Options struct {
	// Concurrency bounds the number of in-flight requests. Zero means 8.
	Concurrency int
	// MaxAttempts bounds retryDo's retry budget. Zero means 5.
	MaxAttempts int
	// AcceptZstd, if true, advertises "Accept-Encoding: zstd" and
	// transparently decompresses a "Content-Encoding: zstd" response.
	AcceptZstd bool
}

// Fetcher downloads objects named by URI into unique temp files. The
// caller owns the returned path and must delete it once consumed, per
// spec.md §4.4/§5's temp-file ownership rule.
type Fetcher struct {
	client      *http.Client
	tmpDir      string
	sem         chan struct{}
	maxAttempts int
	acceptZstd  bool
	transferred atomic.Uint64
}

// New returns a Fetcher that places temp files under tmpDir, which must
// already exist.
func New(client *http.Client, tmpDir string, opts Options) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Fetcher{
		client:      client,
		tmpDir:      tmpDir,
		sem:         make(chan struct{}, concurrency),
		maxAttempts: maxAttempts,
		acceptZstd:  opts.AcceptZstd,
	}
}

// BytesTransferred returns the running total of response bytes written to
// disk across every Fetch call so far. Exposed as an atomic counter per
// spec.md §4.4's "must report total bytes transferred"; adapted from
// rocicorp-diff-server's countingreader.Reader, widened to an atomic
// counter since multiple fetches run concurrently.
func (f *Fetcher) BytesTransferred() uint64 {
	return f.transferred.Load()
}

// Fetch downloads uri to a unique temp file under the fetcher's tmpDir and
// returns its path. Blocks (without occupying a goroutine doing useless
// spinning) until a concurrency slot is free or ctx is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (string, error) {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("fetch %s: %w", uri, ctx.Err())
	}
	defer func() { <-f.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: build request: %w", uri, err)
	}
	if f.acceptZstd {
		req.Header.Set("Accept-Encoding", "zstd")
	}

	resp, err := retryDo(f.client, req, f.maxAttempts)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", uri, resp.Status)
	}

	var body io.Reader = resp.Body
	if f.acceptZstd && resp.Header.Get("Content-Encoding") == "zstd" {
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("fetch %s: zstd decoder: %w", uri, err)
		}
		defer dec.Close()
		body = dec
	}

	tmp, err := os.CreateTemp(f.tmpDir, "fetch-*")
	if err != nil {
		return "", fmt.Errorf("fetch %s: create temp: %w", uri, err)
	}
	n, copyErr := io.Copy(tmp, body)
	f.transferred.Add(uint64(n))
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("fetch %s: download body: %w", uri, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("fetch %s: close temp: %w", uri, closeErr)
	}
	return tmp.Name(), nil
}
