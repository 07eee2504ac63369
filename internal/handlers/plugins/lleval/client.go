package lleval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Request is one evaluation. An empty Language lets the service pick the
// interpreter from the shebang line in Source.
type Request struct {
	Endpoint string
	Language string
	Source   string
}

// Result mirrors the JSON document returned by the evaluation service.
type Result struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Status int     `json:"status"`
	Time   float64 `json:"time"`
}

type Client struct {
	client *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Evaluate(ctx context.Context, request Request) (Result, error) {
	endpoint := strings.TrimSpace(request.Endpoint)
	if endpoint == "" {
		return Result{}, fmt.Errorf("lleval endpoint is not configured")
	}
	target, err := url.Parse(endpoint)
	if err != nil {
		return Result{}, fmt.Errorf("parse lleval endpoint: %w", err)
	}
	query := target.Query()
	if request.Language != "" {
		query.Set("l", request.Language)
	}
	query.Set("s", request.Source)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Result{}, err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("lleval request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read lleval response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Result{}, fmt.Errorf("lleval request failed: status=%d body=%s", res.StatusCode, truncate(strings.TrimSpace(string(body)), 256))
	}
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("decode lleval response: %w", err)
	}
	return result, nil
}

// FormatResult renders a result for chat. It returns "" when the program
// printed nothing.
func FormatResult(result Result) string {
	switch {
	case result.Stdout != "" && result.Stderr != "":
		return "stdout:\n" + result.Stdout + "\nstderr:\n" + result.Stderr
	case result.Stdout != "":
		return result.Stdout
	default:
		return result.Stderr
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit] + "..."
}
