// Package adminclient talks to the http api of a running chat-skills server.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/heartbeat"
)

type Client struct {
	baseURL string
	http    *http.Client
}

type MessageRequest struct {
	Connector     string `json:"connector"`
	ChatID        string `json:"chat_id"`
	ChatTitle     string `json:"chat_title,omitempty"`
	SenderID      string `json:"sender_id,omitempty"`
	Body          string `json:"body"`
	Status        string `json:"status,omitempty"`
	TimestampUnix int64  `json:"timestamp_unix,omitempty"`
}

type MessageResponse struct {
	Handled bool     `json:"handled"`
	Replies []string `json:"replies"`
}

type Bookmark struct {
	ID            string `json:"id"`
	Connector     string `json:"connector"`
	ChatID        string `json:"chat_id"`
	URI           string `json:"uri"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type ListBookmarksResponse struct {
	Items []Bookmark `json:"items"`
	Count int        `json:"count"`
}

func New(cfg config.Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	timeout := time.Duration(cfg.APITimeoutSec) * time.Second
	if timeout < time.Second {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	if timeout < time.Second {
		return c
	}
	clone := *c
	if c.http == nil {
		clone.http = &http.Client{Timeout: timeout}
		return &clone
	}
	httpClone := *c.http
	httpClone.Timeout = timeout
	clone.http = &httpClone
	return &clone
}

// SendMessage runs a message through the server's handler chain and returns
// whatever the handlers replied.
func (c *Client) SendMessage(ctx context.Context, input MessageRequest) (MessageResponse, error) {
	input.Body = strings.TrimSpace(input.Body)
	input.ChatID = strings.TrimSpace(input.ChatID)
	if input.Body == "" || input.ChatID == "" {
		return MessageResponse{}, fmt.Errorf("chat id and body are required")
	}
	requestBody, err := json.Marshal(input)
	if err != nil {
		return MessageResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/messages", bytes.NewReader(requestBody))
	if err != nil {
		return MessageResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var response MessageResponse
	if err := c.doJSON(req, &response); err != nil {
		return MessageResponse{}, err
	}
	return response, nil
}

func (c *Client) Heartbeat(ctx context.Context) (heartbeat.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return heartbeat.Snapshot{}, err
	}
	var snapshot heartbeat.Snapshot
	if err := c.doJSON(req, &snapshot); err != nil {
		return heartbeat.Snapshot{}, err
	}
	return snapshot, nil
}

func (c *Client) ListBookmarks(ctx context.Context, chatID, status string, limit int) ([]Bookmark, error) {
	query := url.Values{}
	if value := strings.TrimSpace(chatID); value != "" {
		query.Set("chat_id", value)
	}
	if value := strings.TrimSpace(status); value != "" {
		query.Set("status", value)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	endpoint := c.baseURL + "/api/v1/bookmarks"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var response ListBookmarksResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}
