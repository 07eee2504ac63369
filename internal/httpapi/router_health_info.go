package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "ledger store is unavailable"})
		return
	}
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	if r.deps.Heartbeat != nil {
		snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
		if !snapshot.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "components degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	handlerNames := r.deps.HandlerNames
	if handlerNames == nil {
		handlerNames = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "chat-skills",
		"environment": r.deps.Config.Environment,
		"handlers":    handlerNames,
	})
}
