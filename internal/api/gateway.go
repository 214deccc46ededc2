package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/LeventeLantos/order-notifier/internal/gateway"
	"github.com/LeventeLantos/order-notifier/internal/model"
	"github.com/LeventeLantos/order-notifier/internal/phone"
)

type testConnectionRequest struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	AuthStyle string `json:"auth_style"`
}

type testSendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// TestConnection optionally stores new gateway credentials, then runs
// endpoint discovery and reports what it found.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.URL != "" || req.Token != "" || req.AuthStyle != "" {
		current := h.gateway.Profile()

		style := current.AuthStyle
		if req.AuthStyle != "" {
			parsed, err := model.ParseAuthStyle(req.AuthStyle)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			style = parsed
		}

		url := firstNonEmpty(strings.TrimSpace(req.URL), current.BaseURL)
		token := firstNonEmpty(strings.TrimSpace(req.Token), current.Token)

		if err := h.settings.SaveGateway(r.Context(), url, token, style); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := h.gateway.Reload(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	res, err := h.gateway.Discover(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, gateway.ErrNotConfigured) {
			status = http.StatusBadRequest
		}
		h.log.Warn("gateway connection test failed", zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"confirmed":     res.Confirmed,
		"endpoint_url":  res.URL,
		"endpoint_path": res.EndpointPath,
		"fields":        res.Fields,
		"status_code":   res.StatusCode,
		"attempts":      res.Attempts,
		"response":      res.Response,
	})
}

// TestSend posts one message straight to the gateway, outside the rate
// limiter and dedupe.
func (h *Handler) TestSend(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	number, err := phone.Normalize(req.Phone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := h.gateway.Send(r.Context(), number, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, gateway.ErrNotConfigured) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"phone":       number,
		"status_code": resp.StatusCode,
		"response":    resp.Body,
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
