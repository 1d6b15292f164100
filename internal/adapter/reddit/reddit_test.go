package reddit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-post-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

const (
	testUserAgent = "quake-post-etl-test/1.0"
	testSubreddit = "Earthquakes"
)

const listingJSON = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {
        "title": "Quake hits Lima",
        "id": "abc123",
        "name": "t3_abc123",
        "url": "https://www.reddit.com/r/Earthquakes/comments/abc123/quake_hits_lima/",
        "permalink": "/r/Earthquakes/comments/abc123/quake_hits_lima/",
        "subreddit": "Earthquakes",
        "author": "seismo_fan",
        "score": 42,
        "upvote_ratio": 0.97,
        "num_comments": 7,
        "created_utc": 1700000000.0,
        "link_flair_text": "Peru",
        "edited": false,
        "media": null,
        "thumbnail": "self",
        "num_crossposts": 0,
        "view_count": null,
        "is_self": true,
        "over_18": false,
        "stickied": false,
        "spoiler": false,
        "locked": false,
        "distinguished": null,
        "selftext": "A magnitude 6.3 earthquake hit Lima, Peru. 2024-03-01 10:15:00 UTC"
      }},
      {"kind": "t3", "data": {
        "title": "Anyone else feel that?",
        "id": "def456",
        "author": "[deleted]",
        "created_utc": 1700000100.5,
        "edited": 1700000500.0,
        "media": {"type": "youtube.com"},
        "view_count": 12,
        "stickied": true
      }}
    ]
  }
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		tokenURL:   baseURL + "/api/v1/access_token",
		userAgent:  testUserAgent,
		subreddit:  testSubreddit,
		limit:      15,
		clock:      clockwork.NewFakeClock(),
		logger:     discardLogger(),
	}
}

func TestClient_Hot_Public(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/r/Earthquakes/hot.json", r.URL.Path)
		assert.Equal(t, "15", r.URL.Query().Get("limit"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, listingJSON)
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).Hot(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "Quake hits Lima", first[domain.ColTitle])
	assert.Equal(t, "abc123", first[domain.ColID])
	assert.Equal(t, "t3_abc123", first["nombre_completo"])
	assert.Equal(t, "seismo_fan", first[domain.ColAuthor])
	assert.Equal(t, "42", first["puntuacion"])
	assert.Equal(t, "0.97", first["ratio_votos_positivos"])
	assert.Equal(t, "1700000000.0", first[domain.ColCreated])
	assert.Equal(t, "Peru", first["link_flair_text"])
	assert.Equal(t, "False", first["editado"])
	assert.Empty(t, first["media"])
	assert.Empty(t, first["view_count"])
	assert.Equal(t, "True", first["es_texto"])
	assert.Equal(t, "False", first["nsfw"])
	assert.Empty(t, first["distinguished"])
	assert.Contains(t, first[domain.ColBody], "magnitude 6.3")

	second := rows[1]
	assert.Empty(t, second[domain.ColAuthor], "deleted authors render empty")
	assert.Equal(t, "1700000100.5", second[domain.ColCreated])
	assert.Equal(t, "1700000500.0", second["editado"])
	assert.JSONEq(t, `{"type": "youtube.com"}`, second["media"])
	assert.Equal(t, "12", second["view_count"])
	assert.Equal(t, "True", second["stickied"])
}

func TestClient_Hot_OAuth(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/access_token":
			tokenCalls.Add(1)
			assert.Equal(t, http.MethodPost, r.Method)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			fmt.Fprint(w, `{"access_token": "tok-1", "token_type": "bearer", "expires_in": 3600}`)
		case "/r/Earthquakes/hot.json":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			fmt.Fprint(w, listingJSON)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.clientID = "client-id"
	c.clientSecret = "client-secret"
	clock := clockwork.NewFakeClock()
	c.clock = clock

	_, err := c.Hot(context.Background())
	require.NoError(t, err)
	_, err = c.Hot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load(), "token is reused while valid")

	clock.Advance(time.Hour)
	_, err = c.Hot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), tokenCalls.Load(), "expired token is refreshed")
}

func TestClient_Hot_TokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.clientID = "client-id"
	c.clientSecret = "wrong"

	_, err := c.Hot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestClient_Hot_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message": "Too Many Requests", "error": 429}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Hot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "Too Many Requests")
}

func TestClient_Hot_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": [`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Hot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode listing")
}

type stubLister struct {
	rows []map[string]string
	err  error
}

func (s stubLister) Hot(context.Context) ([]map[string]string, error) {
	return s.rows, s.err
}

func TestFetcher_FetchPosts_WritesPostFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos_reddit.csv")
	f := &Fetcher{
		client: stubLister{rows: []map[string]string{
			{domain.ColTitle: "Quake hits Lima", domain.ColID: "abc123", domain.ColCreated: "1700000000.0"},
			{domain.ColTitle: "Anyone else feel that?", domain.ColID: "def456", domain.ColCreated: "1700000100.0"},
		}},
		path:   path,
		logger: discardLogger(),
	}

	n, err := f.FetchPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	posts, err := csvfile.NewPostReader(path).LoadPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "abc123", posts[0].ID)
	assert.Equal(t, "Anyone else feel that?", posts[1].Title)
}

func TestFetcher_FetchPosts_FailureKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos_reddit.csv")
	w, err := csvfile.CreatePostFile(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(map[string]string{domain.ColTitle: "older post", domain.ColID: "old1"}))
	require.NoError(t, w.Close())

	f := &Fetcher{client: stubLister{err: errors.New("reddit unavailable")}, path: path, logger: discardLogger()}

	_, err = f.FetchPosts(context.Background())
	require.Error(t, err)

	posts, err := csvfile.NewPostReader(path).LoadPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "old1", posts[0].ID)
}

func TestFetcher_FetchPosts_EmptyListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos_reddit.csv")
	f := &Fetcher{client: stubLister{}, path: path, logger: discardLogger()}

	n, err := f.FetchPosts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	posts, err := csvfile.NewPostReader(path).LoadPosts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}
