package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageOne = `{
  "next": "%s/v2/tags?page=2",
  "results": [
    {"name": "nightly-main-aaaa1111-py3", "tag_last_pushed": "2024-06-01T04:30:00Z", "digest": "sha256:a"},
    {"name": "nightly-main-aaaa1111-jmx", "tag_last_pushed": "2024-06-01T04:31:00Z", "digest": "sha256:b"},
    {"name": "nightly-main-bbbb2222-py3", "tag_last_pushed": 12345, "digest": "sha256:c"}
  ]
}`

const pageTwo = `{
  "next": null,
  "results": [
    {"name": "nightly-main-cccc3333-py3", "tag_last_pushed": "2024-05-31T04:30:00Z", "digest": "sha256:d"}
  ]
}`

func TestClient_FetchTagsFollowsCursor(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, pageTwo)
			return
		}
		// First page must carry the configured page size and name filter.
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		assert.Equal(t, "nightly-main-", r.URL.Query().Get("name"))
		fmt.Fprintf(w, pageOne, srv.URL)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/v2/tags", "nightly-main-", 100)
	tags, err := c.FetchTags(context.Background(), 5)
	require.NoError(t, err)

	// The record with a numeric timestamp fails to decode and is dropped.
	require.Len(t, tags, 3)
	assert.Equal(t, "nightly-main-aaaa1111-py3", tags[0].Name)
	assert.Equal(t, "sha256:a", tags[0].Digest)
	assert.Equal(t, "nightly-main-cccc3333-py3", tags[2].Name)
}

func TestClient_FetchTagsStopsAtMaxPages(t *testing.T) {
	var pagesServed atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed.Add(1)
		fmt.Fprintf(w, `{"next": "%s/v2/tags?page=next", "results": []}`, srv.URL)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/v2/tags", "nightly-main-", 100)
	_, err := c.FetchTags(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), pagesServed.Load())
}

func TestClient_FetchTagsStopsWithoutCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pageTwo)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/v2/tags", "nightly-main-", 100)
	tags, err := c.FetchTags(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestClient_FetchTagsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, pageTwo)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/v2/tags", "nightly-main-", 100)
	tags, err := c.FetchTags(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestClient_FetchTagsGivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/v2/tags", "nightly-main-", 100)
	_, err := c.FetchTags(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InvalidBaseURL(t *testing.T) {
	c := NewClient(nil, "://not-a-url", "nightly-main-", 100)
	_, err := c.FetchTags(context.Background(), 1)
	assert.Error(t, err)
}
