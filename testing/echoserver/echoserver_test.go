package echoserver

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, req *nethttp.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	New(nil).Handler().ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestGetEchoesArgsAndHeaders(t *testing.T) {
	req := httptest.NewRequest(nethttp.MethodGet, "/get?x=1&y=two", nil)
	req.Header.Set("X-Request-ID", "abc")

	rec, body := serve(t, req)

	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"x": "1", "y": "two"}, body["args"])
	assert.Equal(t, "abc", body["headers"].(map[string]any)["X-Request-Id"])
	assert.Equal(t, "http://example.com/get?x=1&y=two", body["url"])
}

func TestPostEchoesJSON(t *testing.T) {
	req := httptest.NewRequest(nethttp.MethodPost, "/post", strings.NewReader(`{"name":"alice"}`))
	req.Header.Set("Content-Type", "application/json")

	rec, body := serve(t, req)

	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"name": "alice"}, body["json"])
	assert.Equal(t, `{"name":"alice"}`, body["data"])
}

func TestAnythingEchoesForm(t *testing.T) {
	form := url.Values{"name": {"bob"}, "email": {"b@example.com"}}
	req := httptest.NewRequest(nethttp.MethodPost, "/anything/this/path?x=1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec, body := serve(t, req)

	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "POST", body["method"])
	assert.Equal(t, map[string]any{"name": "bob", "email": "b@example.com"}, body["form"])
	assert.Contains(t, body["url"], "/anything/this/path?x=1")
	assert.Nil(t, body["json"])
}

func TestBytesReturnsExactLength(t *testing.T) {
	rec, _ := serve(t, httptest.NewRequest(nethttp.MethodGet, "/bytes/16", nil))

	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Body.Bytes(), 16)
}

func TestBytesRejectsBadLength(t *testing.T) {
	rec, _ := serve(t, httptest.NewRequest(nethttp.MethodGet, "/bytes/abc", nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestStatusReturnsRequestedCode(t *testing.T) {
	rec, _ := serve(t, httptest.NewRequest(nethttp.MethodGet, "/status/418", nil))
	assert.Equal(t, 418, rec.Code)
}

func TestDelayZero(t *testing.T) {
	rec, body := serve(t, httptest.NewRequest(nethttp.MethodGet, "/delay/0", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.NotNil(t, body["args"])
}

func TestFailNextDropsConnections(t *testing.T) {
	srv := Start(nil)
	defer srv.Close()

	srv.FailNext(1)

	client := &nethttp.Client{Transport: &nethttp.Transport{DisableKeepAlives: true}}

	_, err := client.Get(srv.URL() + "/get")
	require.Error(t, err)

	resp, err := client.Get(srv.URL() + "/get")
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), srv.Hits())
}

func TestRateLimitAnswersTooManyRequests(t *testing.T) {
	h := New(nil, WithRateLimit(1)).Handler()

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/get", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{nethttp.StatusOK, nethttp.StatusOK, nethttp.StatusTooManyRequests}, codes)
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	h := New(nil).Handler()
	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/get", nil))
		require.Equal(t, nethttp.StatusOK, rec.Code)
	}
}
