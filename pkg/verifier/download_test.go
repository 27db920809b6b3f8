package verifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
)

func testBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("binary content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(WithDir(dir), WithBackOff(testBackOff))

	path, err := d.Download(context.Background(), srv.URL+"/todos")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "binary content", string(data))
}

func TestDownloadRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := NewDownloader(WithDir(t.TempDir()), WithBackOff(testBackOff))

	path, err := d.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "not found", status: http.StatusNotFound, wantCalls: 1},
		{name: "server error", status: http.StatusInternalServerError, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			d := NewDownloader(WithDir(t.TempDir()), WithBackOff(testBackOff))

			_, err := d.Download(context.Background(), srv.URL+"/missing")

			var dlErr *core.DownloadError
			require.True(t, errors.As(err, &dlErr), "Expected DownloadError, got %v", err)
			assert.Equal(t, tt.status, dlErr.StatusCode)
			assert.Equal(t, srv.URL+"/missing", dlErr.URL)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}
