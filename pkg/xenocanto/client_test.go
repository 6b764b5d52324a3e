package xenocanto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xcscraper/pkg/config"
	errs "xcscraper/pkg/errors"
	"xcscraper/pkg/logger"
	"xcscraper/pkg/ratelimit"
	"xcscraper/pkg/retry"
)

func newTestClient(t *testing.T, baseURL string, log logger.Logger) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Provider.Endpoint = baseURL + "/api/2/recordings"

	client := NewClient(cfg, log)
	client.SetLimiter(ratelimit.NewTokenBucket(0, 0))
	client.SetRetryConfig(&retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		Logger:      log,
	})
	return client
}

func TestFetchPageSuccess(t *testing.T) {
	var gotQuery, gotPage, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotPage = r.URL.Query().Get("page")
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "/api/2/recordings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, samplePage)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, logger.NewTestLogger())
	page, err := client.FetchPage(context.Background(), QueryRequest{Query: "Turdus merula", Page: 1})

	require.NoError(t, err)
	assert.Equal(t, "Turdus merula", gotQuery)
	assert.Equal(t, "1", gotPage)
	assert.NotEmpty(t, gotUA)
	assert.Equal(t, Count(3), page.NumPages)
	require.Len(t, page.Recordings, 1)
	assert.Equal(t, "12345", page.Recordings[0].ID())
}

func TestFetchPageSendsAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		_, _ = io.WriteString(w, `{"numPages":0,"recordings":[]}`)
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := newTestClient(t, server.URL, log)
	client.SetAPIKey("s3cret")

	page, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})
	require.NoError(t, err)
	assert.Empty(t, page.Recordings)
	assert.Equal(t, "s3cret", gotKey)

	for _, m := range log.GetMessages() {
		if u, ok := m.Fields["url"].(string); ok {
			assert.NotContains(t, u, "s3cret")
		}
	}
}

func TestFetchPageRetryBound(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, logger.NewNopLogger())
	page, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})

	assert.Nil(t, page)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrFetchFailed))
	assert.Equal(t, errs.KindStatus, errs.KindOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchPageRecoversAfterTransientStatus(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, samplePage)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, logger.NewNopLogger())
	page, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})

	require.NoError(t, err)
	assert.Len(t, page.Recordings, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchPageTerminalErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind errs.Kind
	}{
		{"not found", http.StatusNotFound, "", errs.KindStatus},
		{"bad request", http.StatusBadRequest, `{"error":"bad query"}`, errs.KindStatus},
		{"malformed json", http.StatusOK, `{invalid json`, errs.KindParse},
		{"wrong schema", http.StatusOK, `{"numPages":"many","recordings":[]}`, errs.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, logger.NewNopLogger())
			_, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})

			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrFetchFailed)
			assert.Equal(t, tt.wantKind, errs.KindOf(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "terminal errors are not retried")
		})
	}
}

func TestFetchPageTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := newTestClient(t, baseURL, logger.NewNopLogger())
	_, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrFetchFailed)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
}

func TestFetchPageRetriesClientTimeout(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, logger.NewNopLogger())
	client.SetHTTPClient(&http.Client{Timeout: 50 * time.Millisecond})
	_, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrFetchFailed)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchPageRejectsOversizedBody(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, samplePage)
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := newTestClient(t, server.URL, log)
	client.maxPageBytes = 16
	_, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrFetchFailed)
	assert.Equal(t, errs.KindParse, errs.KindOf(err))
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, log.HasMessage("Search response too large"))
}

func TestFetchPageHonorsRetryAfter(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"numPages":1,"recordings":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, logger.NewNopLogger())
	client.SetRetryConfig(&retry.Config{
		MaxAttempts:   3,
		Backoff:       &retry.ConstantBackoff{Delay: time.Millisecond},
		MaxRetryAfter: 60 * time.Millisecond,
	})

	start := time.Now()
	_, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 1})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchPageCancelled(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, server.URL, logger.NewNopLogger())
	_, err := client.FetchPage(ctx, QueryRequest{Query: "q", Page: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchPageRejectsInvalidPage(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", logger.NewNopLogger())
	_, err := client.FetchPage(context.Background(), QueryRequest{Query: "q", Page: 0})
	assert.ErrorIs(t, err, errs.ErrFetchFailed)
}

func TestOpenAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp3":
			w.Header().Set("Content-Length", "5")
			_, _ = io.WriteString(w, "audio")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, logger.NewNopLogger())

	body, size, err := client.OpenAsset(context.Background(), server.URL+"/ok.mp3")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "audio", string(data))
	assert.Equal(t, int64(5), size)

	_, _, err = client.OpenAsset(context.Background(), server.URL+"/missing.mp3")
	require.Error(t, err)
	var statusErr *errs.Error
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"-3", 0},
		{"soon", 0},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.value), func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value, now))
		})
	}
}
