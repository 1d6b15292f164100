// Package reddit fetches hot posts from a subreddit through the Reddit JSON API
// and writes them to the post file.
package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-post-etl/internal/config"
	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

const (
	publicBaseURL  = "https://www.reddit.com"
	oauthBaseURL   = "https://oauth.reddit.com"
	accessTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// Client lists subreddit posts. With client credentials it authenticates via
// the application-only OAuth flow; otherwise it uses the public endpoints.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	userAgent    string
	subreddit    string
	limit        int
	clock        clockwork.Clock
	logger       *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Client from the Reddit settings in cfg.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      publicBaseURL,
		tokenURL:     accessTokenURL,
		clientID:     cfg.RedditClientID,
		clientSecret: cfg.RedditClientSecret,
		userAgent:    cfg.RedditUserAgent,
		subreddit:    cfg.RedditSubreddit,
		limit:        cfg.RedditLimit,
		clock:        clockwork.NewRealClock(),
		logger:       logger,
	}
	if c.authenticated() {
		c.baseURL = oauthBaseURL
	}
	return c
}

func (c *Client) authenticated() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// Hot returns the current hot posts of the subreddit as post-file rows.
func (c *Client) Hot(ctx context.Context) ([]map[string]string, error) {
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", c.baseURL, url.PathEscape(c.subreddit), c.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	if c.authenticated() {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("reddit API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	rows := make([]map[string]string, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		rows = append(rows, child.Data.fields())
	}
	c.logger.Debug("subreddit listed", "subreddit", c.subreddit, "posts", len(rows))
	return rows, nil
}

// accessToken returns a cached application token, requesting a new one when
// the cached token is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.clock.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit token error: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("reddit token error: %s", tr.Error)
	}

	// Refresh a minute early so a token never expires mid-request.
	c.token = tr.AccessToken
	c.tokenExpiry = c.clock.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

// Reddit API response types.

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data submission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type submission struct {
	Title         string          `json:"title"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	URL           string          `json:"url"`
	Permalink     string          `json:"permalink"`
	Subreddit     string          `json:"subreddit"`
	Author        string          `json:"author"`
	Score         int             `json:"score"`
	UpvoteRatio   float64         `json:"upvote_ratio"`
	NumComments   int             `json:"num_comments"`
	CreatedUTC    float64         `json:"created_utc"`
	LinkFlairText *string         `json:"link_flair_text"`
	Edited        json.RawMessage `json:"edited"`
	Media         json.RawMessage `json:"media"`
	Thumbnail     string          `json:"thumbnail"`
	NumCrossposts int             `json:"num_crossposts"`
	ViewCount     *int            `json:"view_count"`
	IsSelf        bool            `json:"is_self"`
	Over18        bool            `json:"over_18"`
	Stickied      bool            `json:"stickied"`
	Spoiler       bool            `json:"spoiler"`
	Locked        bool            `json:"locked"`
	Distinguished *string         `json:"distinguished"`
	Selftext      string          `json:"selftext"`
}

// fields maps a submission onto the post-file columns. Missing values render
// empty and booleans render as True or False.
func (s submission) fields() map[string]string {
	author := s.Author
	if author == "[deleted]" {
		author = ""
	}
	viewCount := ""
	if s.ViewCount != nil {
		viewCount = strconv.Itoa(*s.ViewCount)
	}

	return map[string]string{
		domain.ColTitle:         s.Title,
		domain.ColID:            s.ID,
		"nombre_completo":       s.Name,
		"url":                   s.URL,
		"enlace_interno_reddit": s.Permalink,
		"subreddit":             s.Subreddit,
		domain.ColAuthor:        author,
		"puntuacion":            strconv.Itoa(s.Score),
		"ratio_votos_positivos": strconv.FormatFloat(s.UpvoteRatio, 'f', -1, 64),
		"num_comentarios":       strconv.Itoa(s.NumComments),
		domain.ColCreated:       strconv.FormatFloat(s.CreatedUTC, 'f', 1, 64),
		"link_flair_text":       deref(s.LinkFlairText),
		"editado":               edited(s.Edited),
		"media":                 rawOrEmpty(s.Media),
		"thumbnail":             s.Thumbnail,
		"num_crossposts":        strconv.Itoa(s.NumCrossposts),
		"view_count":            viewCount,
		"es_texto":              pyBool(s.IsSelf),
		"nsfw":                  pyBool(s.Over18),
		"stickied":              pyBool(s.Stickied),
		"spoiler":               pyBool(s.Spoiler),
		"locked":                pyBool(s.Locked),
		"distinguished":         deref(s.Distinguished),
		domain.ColBody:          s.Selftext,
	}
}

// edited is false or the epoch seconds of the last edit.
func edited(raw json.RawMessage) string {
	switch v := strings.TrimSpace(string(raw)); v {
	case "", "null", "false":
		return pyBool(false)
	case "true":
		return pyBool(true)
	default:
		return v
	}
}

func rawOrEmpty(raw json.RawMessage) string {
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
