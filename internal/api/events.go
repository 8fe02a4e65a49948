package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// streamEvent is the wire shape of one server-sent event's data line.
type streamEvent struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// StreamEvents pushes bus events to the client as server-sent events until
// the client disconnects. The optional ns query parameter narrows the stream
// to one namespace prefix (job., decl., stats.).
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	ch, unsub := h.bus.Subscribe(r.URL.Query().Get("ns"), 64)
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(streamEvent{
				Kind:      evt.Kind,
				Timestamp: evt.Timestamp.UnixMilli(),
				Payload:   evt.Payload,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
			fl.Flush()
		}
	}
}
