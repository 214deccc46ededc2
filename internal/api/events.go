package api

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/LeventeLantos/order-notifier/internal/consumer"
	"github.com/LeventeLantos/order-notifier/internal/metrics"
)

const maxEventBody = 1 << 20

// Event returns a handler that runs the pipeline for one event type. The
// reply is 202 with the outcomes whatever they are; only unreadable input
// gets a 400.
func (h *Handler) Event(eventType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		if !json.Valid(raw) {
			writeError(w, http.StatusBadRequest, "body is not valid JSON")
			return
		}

		outcomes, err := consumer.Dispatch(r.Context(), h.events, consumer.Envelope{Type: eventType, Event: raw})
		metrics.InboundEvents.WithLabelValues("http", consumer.EventLabel(eventType, err)).Inc()
		if err != nil {
			h.log.Warn("rejected inbound event", zap.String("event_type", eventType), zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{"outcomes": outcomes})
	}
}
