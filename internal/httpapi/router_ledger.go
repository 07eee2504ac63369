package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/chat-skills/internal/store"
)

func (r *router) handleBookmarks(w http.ResponseWriter, req *http.Request) {
	if !r.ledgerReadable(w, req) {
		return
	}
	query := req.URL.Query()
	items, err := r.deps.Store.ListBookmarks(req.Context(), store.ListBookmarksInput{
		ChatID: strings.TrimSpace(query.Get("chat_id")),
		Status: strings.TrimSpace(query.Get("status")),
		Limit:  parseLimit(query.Get("limit")),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"id":              item.ID,
			"connector":       item.Connector,
			"chat_id":         item.ChatID,
			"uri":             item.URI,
			"status":          item.Status,
			"error_message":   item.ErrorMessage,
			"created_at_unix": item.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payload, "count": len(payload)})
}

func (r *router) handleEvaluations(w http.ResponseWriter, req *http.Request) {
	if !r.ledgerReadable(w, req) {
		return
	}
	query := req.URL.Query()
	items, err := r.deps.Store.ListEvaluations(req.Context(), store.ListEvaluationsInput{
		ChatID:  strings.TrimSpace(query.Get("chat_id")),
		Outcome: strings.TrimSpace(query.Get("outcome")),
		Limit:   parseLimit(query.Get("limit")),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"id":              item.ID,
			"connector":       item.Connector,
			"chat_id":         item.ChatID,
			"language":        item.Language,
			"source_bytes":    item.SourceBytes,
			"outcome":         item.Outcome,
			"error_message":   item.ErrorMessage,
			"created_at_unix": item.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payload, "count": len(payload)})
}

func (r *router) ledgerReadable(w http.ResponseWriter, req *http.Request) bool {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ledger store is unavailable"})
		return false
	}
	return true
}

func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return limit
}
