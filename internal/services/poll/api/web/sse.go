package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
	"github.com/Lordhacker756/vortex-api/internal/web"
)

// streamResults serves live tallies as server-sent events: a `poll-update`
// event per snapshot with the option list as JSON, `poll-error` events for
// in-band read failures, and periodic keep-alive comments. The stream ends
// when the client disconnects.
func (h *Handler) streamResults(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		web.WriteError(w, apperrors.New(apperrors.CodeUnknown, "streaming is not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	snapshots := h.streamer.Stream(r.Context(), r.PathValue("id"))
	keepAlive := time.NewTicker(h.keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case snapshot, open := <-snapshots:
			if !open {
				return
			}
			if snapshot.Err != nil {
				writeSSEError(w, snapshot.Err)
			} else {
				writeSSEUpdate(w, toPollPayload(snapshot.Poll).Options)
			}
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEUpdate(w http.ResponseWriter, options []optionPayload) {
	data, err := json.Marshal(options)
	if err != nil {
		writeSSEError(w, err)
		return
	}
	fmt.Fprintf(w, "event: poll-update\ndata: %s\n\n", data)
}

func writeSSEError(w http.ResponseWriter, streamErr error) {
	code := apperrors.CodeOf(streamErr)
	message := "snapshot unavailable"
	if code != apperrors.CodeUnknown {
		message = streamErr.Error()
	}
	data, err := json.Marshal(web.ErrorBody{Code: string(code), Message: message})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: poll-error\ndata: %s\n\n", data)
}
