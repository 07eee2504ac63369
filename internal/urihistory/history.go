// Package urihistory remembers, per chat room, which canonical URIs were
// posted recently and decides whether a new mention is just a repost.
package urihistory

import (
	"container/list"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry is what the history keeps for one canonical URI.
type Entry struct {
	URI        string
	Title      string
	RecordedAt time.Time
}

// History is the registry of per-chat histories. All chats share the
// capacity given at construction.
type History struct {
	resolver Resolver
	capacity int
	logger   *slog.Logger

	mu    sync.Mutex
	chats map[string]*chatHistory
}

// New creates an empty registry. A negative capacity is clamped to zero,
// which keeps the history permanently empty.
func New(resolver Resolver, capacity int, logger *slog.Logger) *History {
	if capacity < 0 {
		capacity = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("uri history created", "limit_per_chat", capacity)
	return &History{
		resolver: resolver,
		capacity: capacity,
		logger:   logger,
		chats:    map[string]*chatHistory{},
	}
}

// Capacity returns the per-chat entry limit.
func (h *History) Capacity() int {
	return h.capacity
}

// FindAndAdd resolves rawURI and records it in the chat's history. It returns
// the stored entry only when the URI was already known and the message body
// carries nothing beyond the link and its title.
func (h *History) FindAndAdd(ctx context.Context, chatID, body string, at time.Time, rawURI string) (Entry, bool) {
	if h.resolver == nil {
		return Entry{}, false
	}
	resolved, err := h.resolver.Resolve(ctx, rawURI)
	if err != nil {
		h.logger.Debug("uri resolve failed", "uri", rawURI, "chat_id", chatID, "error", err)
		return Entry{}, false
	}
	h.logger.Debug("uri resolved", "uri", resolved.URI, "title", resolved.Title)
	if resolved.URI == "" {
		return Entry{}, false
	}

	chat := h.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()

	entry, ok := chat.get(resolved.URI)
	if !ok {
		chat.add(Entry{URI: resolved.URI, Title: resolved.Title, RecordedAt: at})
		return Entry{}, false
	}
	if !looksLikeRepost(body, entry.Title, rawURI) {
		return Entry{}, false
	}
	return entry, true
}

// Len reports how many entries the chat currently holds.
func (h *History) Len(chatID string) int {
	h.mu.Lock()
	chat, ok := h.chats[chatID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	chat.mu.Lock()
	defer chat.mu.Unlock()
	return chat.order.Len()
}

// Entries returns the chat's entries from least to most recently inserted.
func (h *History) Entries(chatID string) []Entry {
	h.mu.Lock()
	chat, ok := h.chats[chatID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	chat.mu.Lock()
	defer chat.mu.Unlock()
	out := make([]Entry, 0, chat.order.Len())
	for element := chat.order.Front(); element != nil; element = element.Next() {
		out = append(out, element.Value.(Entry))
	}
	return out
}

func (h *History) chat(chatID string) *chatHistory {
	h.mu.Lock()
	defer h.mu.Unlock()
	chat, ok := h.chats[chatID]
	if !ok {
		chat = newChatHistory(h.capacity)
		h.chats[chatID] = chat
	}
	return chat
}

// chatHistory is an insertion-ordered map; front is the eviction candidate.
type chatHistory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newChatHistory(capacity int) *chatHistory {
	return &chatHistory{
		capacity: capacity,
		order:    list.New(),
		index:    map[string]*list.Element{},
	}
}

// get never changes the recency order.
func (c *chatHistory) get(uri string) (Entry, bool) {
	element, ok := c.index[uri]
	if !ok {
		return Entry{}, false
	}
	return element.Value.(Entry), true
}

func (c *chatHistory) add(entry Entry) {
	if element, ok := c.index[entry.URI]; ok {
		c.order.Remove(element)
	}
	c.index[entry.URI] = c.order.PushBack(entry)
	if c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(Entry).URI)
	}
}

var repostRemainder = regexp.MustCompile(`^["#'()\-=~^|\[\]{}@` + "`" + `;:*,.<>_\s\p{Zs}]{0,10}$`)

func looksLikeRepost(body, title, rawURI string) bool {
	remainder := strings.Replace(body, title, "", 1)
	remainder = strings.Replace(remainder, rawURI, "", 1)
	remainder = strings.TrimSpace(remainder)
	return repostRemainder.MatchString(remainder)
}
