package dispatcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobrelay/internal/adapter/dispatcher"
	"jobrelay/internal/domain/job"
	"jobrelay/internal/platform/httpclient"
	"jobrelay/internal/shared"
)

func newDispatcher(opts ...httpclient.Option) *dispatcher.Dispatcher {
	opts = append([]httpclient.Option{httpclient.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return dispatcher.New(httpclient.New(opts...))
}

func TestDispatch_StructuredResponse(t *testing.T) {
	var (
		method, cookie, token, body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		cookie = r.Header.Get("Cookie")
		token = r.Header.Get("X-Token")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := newDispatcher().Dispatch(context.Background(), job.Request{
		URL:     srv.URL,
		Headers: map[string]string{"X-Token": "abc"},
		Cookies: "sid=1",
		Body:    "course=42",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "sid=1", cookie)
	assert.Equal(t, "abc", token)
	assert.Equal(t, "course=42", body)

	sr, ok := resp.(job.StructuredResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, sr.StatusCode())
	assert.JSONEq(t, `{"ok":true}`, string(sr.Data))
}

func TestDispatch_RawResponseKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Error"))
	}))
	defer srv.Close()

	resp, err := newDispatcher().Dispatch(context.Background(), job.Request{URL: srv.URL, Headers: map[string]string{}})
	require.NoError(t, err)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw":"Internal Error","status":500}`, string(b))
}

func TestDispatch_NoCookieHeaderWhenEmpty(t *testing.T) {
	var had bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, had = r.Header["Cookie"]
	}))
	defer srv.Close()

	_, err := newDispatcher().Dispatch(context.Background(), job.Request{URL: srv.URL, Headers: map[string]string{}})
	require.NoError(t, err)
	assert.False(t, had)
}

func TestDispatch_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	resp, err := newDispatcher().Dispatch(context.Background(), job.Request{URL: "http://" + addr + "/x", Headers: map[string]string{}})
	require.Nil(t, resp)

	var de *dispatcher.Error
	require.True(t, errors.As(err, &de))
	assert.NotEmpty(t, de.Cause)
	assert.True(t, shared.IsDependencyFailure(err))
}

func TestDispatch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newDispatcher(httpclient.WithTimeout(50*time.Millisecond)).Dispatch(context.Background(), job.Request{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, shared.KindTimeout, shared.KindOf(err))
}

func TestDispatch_BodyTooLargeIsTruncatedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"items":["` + strings.Repeat("x", 128) + `"]}`))
	}))
	defer srv.Close()

	resp, err := newDispatcher(httpclient.WithMaxBodySize(8)).Dispatch(context.Background(), job.Request{URL: srv.URL})
	require.NoError(t, err)

	raw, ok := resp.(job.RawResponse)
	require.True(t, ok, "a cut JSON body is no longer JSON")
	assert.Equal(t, http.StatusAccepted, raw.StatusCode())
	assert.Equal(t, `{"items"`+dispatcher.TruncatedMarker, raw.Text)
}

func TestDispatch_InvalidInput(t *testing.T) {
	cases := map[string]job.Request{
		"relative url": {URL: "/api/x"},
		"bad scheme":   {URL: "ftp://example.com/"},
		"bad header":   {URL: "http://example.com/", Headers: map[string]string{"Bad Header": "x"}},
		"bad value":    {URL: "http://example.com/", Headers: map[string]string{"X-A": "a\nb"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newDispatcher().Dispatch(context.Background(), req)
			var de *dispatcher.Error
			require.True(t, errors.As(err, &de))
			assert.True(t, shared.IsValidation(err))
		})
	}
}
