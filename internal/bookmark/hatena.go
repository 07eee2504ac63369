// Package bookmark posts links to a Hatena Bookmark style AtomPub endpoint.
package bookmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/dghubble/oauth1"
)

// DefaultPostTemplate is the AtomPub entry Hatena Bookmark accepts.
const DefaultPostTemplate = `<entry xmlns="http://purl.org/atom/ns#"><title>dummy</title><link rel="related" type="text/html" href="{{.URI | html}}" /><summary type="text">{{.Summary | html}}</summary></entry>`

var ErrNotConfigured = errors.New("bookmark client not configured")

type Credentials struct {
	ClientKey         string
	ClientSecret      string
	AccessToken       string
	AccessTokenSecret string
}

func (c Credentials) complete() bool {
	return strings.TrimSpace(c.ClientKey) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.AccessToken) != "" &&
		strings.TrimSpace(c.AccessTokenSecret) != ""
}

type Options struct {
	PostURI      string
	PostTemplate string
	Credentials  Credentials
	Timeout      time.Duration
}

type postFields struct {
	URI     string
	Summary string
}

// Client signs each post with OAuth1 (HMAC-SHA1, Authorization header).
type Client struct {
	postURI  string
	template *template.Template
	config   *oauth1.Config
	token    *oauth1.Token
	timeout  time.Duration
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.PostURI) == "" || !opts.Credentials.complete() {
		return nil, ErrNotConfigured
	}
	body := opts.PostTemplate
	if strings.TrimSpace(body) == "" {
		body = DefaultPostTemplate
	}
	tmpl, err := template.New("bookmark").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse bookmark post template: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		postURI:  strings.TrimSpace(opts.PostURI),
		template: tmpl,
		config:   oauth1.NewConfig(opts.Credentials.ClientKey, opts.Credentials.ClientSecret),
		token:    oauth1.NewToken(opts.Credentials.AccessToken, opts.Credentials.AccessTokenSecret),
		timeout:  timeout,
	}, nil
}

// Bookmark posts uri with an optional summary comment.
func (c *Client) Bookmark(ctx context.Context, uri, summary string) error {
	var payload bytes.Buffer
	if err := c.template.Execute(&payload, postFields{URI: uri, Summary: summary}); err != nil {
		return fmt.Errorf("render bookmark post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURI, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x.atom+xml")

	clientCtx := context.WithValue(ctx, oauth1.HTTPClient, &http.Client{Timeout: c.timeout})
	res, err := c.config.Client(clientCtx, c.token).Do(req)
	if err != nil {
		return fmt.Errorf("post bookmark: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("bookmark request failed: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(responseBody)))
	}
	return nil
}
