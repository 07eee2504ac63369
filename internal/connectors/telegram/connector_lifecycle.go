package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(component, "starting")
	}
	if c.token == "" {
		if c.reporter != nil {
			c.reporter.Disabled(component, "token missing")
		}
		c.logger.Info("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.dispatcher == nil {
		if c.reporter != nil {
			c.reporter.Disabled(component, "dispatcher missing")
		}
		c.logger.Info("connector disabled, dispatcher missing")
		<-ctx.Done()
		return nil
	}

	if me, err := c.fetchMe(ctx); err == nil {
		c.botID = me.ID
		c.logger.Info("telegram bot identity loaded", "username", me.Username)
	} else {
		c.logger.Warn("telegram bot identity lookup failed", "error", err)
	}
	if c.reporter != nil {
		c.reporter.Beat(component, "polling updates")
	}
	c.logger.Info("connector started", "api_base", c.apiBase)

	for {
		if ctx.Err() != nil {
			return c.stopped()
		}
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			if c.reporter != nil {
				c.reporter.Degrade(component, "poll failed", err)
			}
			c.logger.Error("poll failed", "error", err)
			select {
			case <-ctx.Done():
				return c.stopped()
			case <-time.After(c.retryDelay):
			}
		} else if c.reporter != nil {
			c.reporter.Beat(component, "poll cycle ok")
		}
	}
}

func (c *Connector) stopped() error {
	if c.reporter != nil {
		c.reporter.Stopped(component, "stopped")
	}
	c.logger.Info("connector stopped")
	return nil
}

func (c *Connector) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d", c.apiBase, c.token, c.pollSeconds, c.offset)
	var updates []telegramUpdate
	if err := c.call(ctx, http.MethodGet, url, nil, &updates); err != nil {
		return fmt.Errorf("getUpdates: %w", err)
	}
	for _, update := range updates {
		if update.UpdateID >= c.offset {
			c.offset = update.UpdateID + 1
		}
		message := update.Message
		if message == nil {
			message = update.ChannelPost
		}
		if message == nil {
			continue
		}
		c.handleMessage(ctx, *message)
	}
	return nil
}

func (c *Connector) fetchMe(ctx context.Context) (telegramUser, error) {
	var me telegramUser
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s/bot%s/getMe", c.apiBase, c.token), nil, &me)
	return me, err
}

// call performs one Bot API request and decodes the result field into out.
func (c *Connector) call(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var envelope apiResponse[json.RawMessage]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: status=%d err=%w", res.StatusCode, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram api failed: status=%d error_code=%d description=%s", res.StatusCode, envelope.ErrorCode, envelope.Description)
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
