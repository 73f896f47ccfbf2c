package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podgate/podgate/pkg/backend"
	"github.com/podgate/podgate/pkg/feed"
	"github.com/podgate/podgate/pkg/model"
)

type stubBackend struct {
	channelFn  func(ctx context.Context, channelID string, itemLimit int) (*model.Channel, error)
	redirectFn func(ctx context.Context, file string) (string, error)
}

func (s *stubBackend) Name() string { return "Stub" }

func (s *stubBackend) Channel(ctx context.Context, channelID string, itemLimit int) (*model.Channel, error) {
	return s.channelFn(ctx, channelID, itemLimit)
}

func (s *stubBackend) RedirectURL(ctx context.Context, file string) (string, error) {
	return s.redirectFn(ctx, file)
}

type stubRegistry struct {
	backend backend.Backend
}

func (s *stubRegistry) Get(backendID string) (backend.Backend, error) {
	if backendID != "stub" {
		return nil, errors.Wrap(model.ErrUnsupportedBackend, backendID)
	}
	return s.backend, nil
}

func testServer(t *testing.T, b backend.Backend) *httptest.Server {
	t.Helper()

	s := New(Opts{
		Backends:  &stubRegistry{backend: b},
		Feeds:     feed.NewSynthesizer("https://pods.example.org", "test"),
		PublicURL: "https://pods.example.org",
		Version:   "test",
	})

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	return srv
}

func noFollow() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestServer_Feed(t *testing.T) {
	b := &stubBackend{
		channelFn: func(_ context.Context, channelID string, itemLimit int) (*model.Channel, error) {
			assert.Equal(t, "somebody", channelID)
			assert.Equal(t, 25, itemLimit)
			return &model.Channel{
				Title: "Somebody (via Stub)",
				Link:  "https://example.com/somebody",
				Items: []model.Item{{
					Title:     "Episode",
					GUID:      "ep-1",
					Enclosure: model.Enclosure{File: "somebody/ep-1.m4a", MIMEType: "audio/mpeg", Length: 10},
					UpdatedAt: time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC),
				}},
			}, nil
		},
	}

	srv := testServer(t, b)

	resp, err := http.Get(srv.URL + "/feed/stub/somebody?limit=25")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>Somebody (via Stub)</title>")
	assert.Contains(t, string(body), "https://pods.example.org/download/stub/somebody/ep-1.m4a")
}

func TestServer_FeedNoLimit(t *testing.T) {
	b := &stubBackend{
		channelFn: func(_ context.Context, _ string, itemLimit int) (*model.Channel, error) {
			assert.Equal(t, 0, itemLimit, "absent limit passes zero to the backend")
			return &model.Channel{Title: "T", Link: "https://example.com"}, nil
		},
	}

	srv := testServer(t, b)

	resp, err := http.Get(srv.URL + "/feed/stub/somebody")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_FeedBadLimit(t *testing.T) {
	srv := testServer(t, &stubBackend{})

	for _, limit := range []string{"abc", "-1", "0", "1.5"} {
		resp, err := http.Get(srv.URL + "/feed/stub/somebody?limit=" + limit)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
	}
}

func TestServer_FeedUnsupportedBackend(t *testing.T) {
	srv := testServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/feed/nope/somebody")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_FeedUpstreamFailure(t *testing.T) {
	b := &stubBackend{
		channelFn: func(context.Context, string, int) (*model.Channel, error) {
			return nil, errors.New("provider exploded")
		},
	}

	srv := testServer(t, b)

	resp, err := http.Get(srv.URL + "/feed/stub/somebody")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_Download(t *testing.T) {
	b := &stubBackend{
		redirectFn: func(_ context.Context, file string) (string, error) {
			assert.Equal(t, "somebody/ep-1.m4a", file)
			return "https://cdn.example.com/stream.m4a", nil
		},
	}

	srv := testServer(t, b)

	resp, err := noFollow().Get(srv.URL + "/download/stub/somebody/ep-1.m4a")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://cdn.example.com/stream.m4a", resp.Header.Get("Location"))
}

func TestServer_DownloadNoRedirectFound(t *testing.T) {
	b := &stubBackend{
		redirectFn: func(context.Context, string) (string, error) {
			return "", errors.Wrap(model.ErrNoRedirectFound, "gone")
		},
	}

	srv := testServer(t, b)

	resp, err := noFollow().Get(srv.URL + "/download/stub/somebody/ep-1.m4a")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_DownloadUnsupportedBackend(t *testing.T) {
	srv := testServer(t, &stubBackend{})

	resp, err := noFollow().Get(srv.URL + "/download/nope/somebody/ep-1.m4a")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_RequestBodyLimited(t *testing.T) {
	srv := testServer(t, &stubBackend{})

	body := strings.NewReader(strings.Repeat("a", 128*1024))
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/feed/stub/somebody", body)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestServer_Index(t *testing.T) {
	srv := testServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://pods.example.org/feed/mixcloud/")
}
