package urihistory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrResolve marks failures to fetch or read a page.
var ErrResolve = errors.New("resolve uri")

const defaultMaxPageBytes = 2 * 1024 * 1024

// Resolution is the canonical form of a URI plus its page title.
type Resolution struct {
	URI   string
	Title string
}

type Resolver interface {
	Resolve(ctx context.Context, rawURI string) (Resolution, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, rawURI string) (Resolution, error)

func (f ResolverFunc) Resolve(ctx context.Context, rawURI string) (Resolution, error) {
	return f(ctx, rawURI)
}

// HTTPResolver follows redirects and scrapes the <title> element.
type HTTPResolver struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewHTTPResolver(timeout time.Duration, userAgent string) *HTTPResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "chat-skills/0.1"
	}
	return &HTTPResolver{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  defaultMaxPageBytes,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, rawURI string) (Resolution, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURI, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrResolve, err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	res, err := r.client.Do(req)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrResolve, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return Resolution{}, fmt.Errorf("%w: status=%d", ErrResolve, res.StatusCode)
	}

	// Titles are compared against UTF-8 chat text, so legacy encodings are
	// decoded using the Content-Type header or the document's meta charset.
	reader, err := charset.NewReader(io.LimitReader(res.Body, r.maxBytes), res.Header.Get("Content-Type"))
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: decode body: %v", ErrResolve, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: read body: %v", ErrResolve, err)
	}
	return Resolution{
		URI:   res.Request.URL.String(),
		Title: ExtractTitle(body),
	}, nil
}

// ExtractTitle returns the trimmed text of the first <title> element, or ""
// when the document has none.
func ExtractTitle(document []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(document))
	inTitle := false
	var title strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" && inTitle {
				return strings.TrimSpace(title.String())
			}
		case html.TextToken:
			if inTitle {
				title.Write(tokenizer.Text())
			}
		}
	}
}
