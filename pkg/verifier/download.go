package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/cenkalti/backoff/v4"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
)

const defaultMaxRetries = 3

// Downloader fetches remote files into temporary files.
type Downloader struct {
	client     *http.Client
	dir        string
	newBackOff func() backoff.BackOff
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.client = client
	}
}

// WithDir sets the directory downloads are written to. Defaults to os.TempDir.
func WithDir(dir string) DownloaderOption {
	return func(d *Downloader) {
		d.dir = dir
	}
}

// WithBackOff sets the retry policy for transient download failures.
func WithBackOff(newBackOff func() backoff.BackOff) DownloaderOption {
	return func(d *Downloader) {
		d.newBackOff = newBackOff
	}
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: http.DefaultClient,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), defaultMaxRetries)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches url into a new temporary file and returns its path. The
// caller owns the file.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	path, err := backoff.RetryWithData(func() (string, error) {
		return d.fetch(ctx, url)
	}, backoff.WithContext(d.newBackOff(), ctx))
	if err != nil {
		var dlErr *core.DownloadError
		if errors.As(err, &dlErr) {
			return "", err
		}
		return "", &core.DownloadError{URL: url, Err: err}
	}
	return path, nil
}

func (d *Downloader) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		dlErr := &core.DownloadError{URL: url, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", dlErr
		}
		return "", backoff.Permanent(dlErr)
	}

	f, err := os.CreateTemp(d.dir, "download-*")
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("creating download file: %w", err))
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", backoff.Permanent(fmt.Errorf("writing download file: %w", err))
	}

	return f.Name(), nil
}
