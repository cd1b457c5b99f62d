package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/precisesoft/DocQueryAI/internal/chat"
	"github.com/precisesoft/DocQueryAI/internal/core"
)

type ChatHandler struct {
	service *chat.Service
	logger  *slog.Logger
}

func NewChatHandler(service *chat.Service, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{service: service, logger: logger}
}

// StreamChat relays a model completion as server-sent events. Each data
// frame is a JSON object: incremental fragments as {"delta": ...}, then
// exactly one terminal frame, {"end": true} on success or {"error": ...}
// when the upstream call fails mid-stream.
func (h *ChatHandler) StreamChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.Validationf("body", "invalid request body"))
		return
	}

	events, err := h.service.Stream(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		var frame any
		switch ev.Type {
		case chat.EventData:
			frame = map[string]string{"delta": ev.Delta}
		case chat.EventEnd:
			frame = map[string]bool{"end": true}
		case chat.EventError:
			frame = map[string]string{"error": ev.Err}
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			h.logger.Error("marshal sse frame", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the service goroutine unwinds via context.
			return
		}
		flusher.Flush()
	}
}
