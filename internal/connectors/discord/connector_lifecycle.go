package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
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

	c.logger.Info("connector started", "mode", "gateway")
	for {
		if ctx.Err() != nil {
			return c.stopped()
		}
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			return c.stopped()
		}
		if c.reporter != nil {
			c.reporter.Degrade(component, "gateway session error", err)
		}
		c.logger.Error("discord session ended, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return c.stopped()
		case <-time.After(c.retryDelay):
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

// runSession holds one gateway connection until it fails or ctx ends.
func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()

	var (
		writeMu  sync.Mutex
		sequence atomic.Int64
	)

	interval, err := readHello(conn)
	if err != nil {
		return err
	}
	if err := c.sendIdentify(conn, &writeMu); err != nil {
		return err
	}
	if c.reporter != nil {
		c.reporter.Beat(component, "gateway session established")
	}
	go c.heartbeatLoop(sessionCtx, conn, &writeMu, &sequence, interval)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Error("decode gateway envelope failed", "error", err)
			continue
		}
		if envelope.S != nil {
			sequence.Store(*envelope.S)
		}

		switch envelope.Op {
		case opDispatch:
			if c.reporter != nil {
				c.reporter.Beat(component, "gateway event received")
			}
			c.handleDispatch(ctx, envelope)
		case opHeartbeat:
			if err := c.sendHeartbeat(conn, &writeMu, sequence.Load()); err != nil {
				return err
			}
		case opHeartbeatAck:
		case opReconnect:
			return fmt.Errorf("gateway requested reconnect")
		case opInvalidSession:
			return fmt.Errorf("gateway invalid session")
		}
	}
}

func (c *Connector) handleDispatch(ctx context.Context, envelope gatewayEnvelope) {
	switch envelope.T {
	case "READY":
		var ready discordReady
		if err := json.Unmarshal(envelope.D, &ready); err != nil {
			c.logger.Error("decode ready failed", "error", err)
			return
		}
		c.botUserID = strings.TrimSpace(ready.User.ID)
		c.logger.Info("discord session ready", "bot_user_id", c.botUserID, "username", ready.User.Username)
	case "MESSAGE_CREATE":
		var message discordMessageCreate
		if err := json.Unmarshal(envelope.D, &message); err != nil {
			c.logger.Error("decode message create failed", "error", err)
			return
		}
		c.handleMessageCreate(ctx, message)
	}
}

func readHello(conn *websocket.Conn) (time.Duration, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read hello: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return 0, fmt.Errorf("decode hello payload: %w", err)
		}
		if envelope.Op != opHello {
			continue
		}
		var hello discordHello
		if err := json.Unmarshal(envelope.D, &hello); err != nil {
			return 0, fmt.Errorf("decode hello body: %w", err)
		}
		return time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond, nil
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, sequence *atomic.Int64, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(conn, writeMu, sequence.Load()); err != nil {
				c.logger.Error("heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Connector) sendIdentify(conn *websocket.Conn, writeMu *sync.Mutex) error {
	payload := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token": c.token,
			"intents": discordIntentGuilds |
				discordIntentGuildMessages |
				discordIntentDirectMessages |
				discordIntentMessageContents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "chat-skills",
				"device":  "chat-skills",
			},
		},
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}

func (c *Connector) sendHeartbeat(conn *websocket.Conn, writeMu *sync.Mutex, sequence int64) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	var last any
	if sequence > 0 {
		last = sequence
	}
	if err := conn.WriteJSON(map[string]any{"op": opHeartbeat, "d": last}); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}
