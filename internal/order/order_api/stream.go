package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"seller-portal/internal/auth"
	"seller-portal/internal/sse"
	"seller-portal/internal/utils"
)

const keepAliveInterval = 25 * time.Second

// StreamMyOrders streams workflow events for the caller's own orders.
func (h *Handler) StreamMyOrders(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.UserID(r.Context())
	h.stream(w, r, "merchant:"+merchantID, h.Hub.SubscribeToMerchant(r.Context(), merchantID))
}

// StreamAllOrders streams every workflow event. Admin only.
func (h *Handler) StreamAllOrders(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "admin", h.Hub.SubscribeAll(r.Context()))
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, scope string, events <-chan sse.WorkflowEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.ErrorMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	clients := h.Hub.ClientCount()
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"clients\":%d}\n\n", clients)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to %s stream (%d connected)", scope, clients))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s event: %v", ev.Type, err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from %s stream", scope))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
