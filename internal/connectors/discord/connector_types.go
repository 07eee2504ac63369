package discord

import (
	"encoding/json"
	"time"
)

const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

type gatewayEnvelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type discordHello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type discordReady struct {
	User discordAuthor `json:"user"`
}

type discordMessageCreate struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	GuildID   string        `json:"guild_id"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Author    discordAuthor `json:"author"`
}

type discordAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}
