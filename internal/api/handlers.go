package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/LeventeLantos/order-notifier/internal/consumer"
	"github.com/LeventeLantos/order-notifier/internal/gateway"
	"github.com/LeventeLantos/order-notifier/internal/model"
	"github.com/LeventeLantos/order-notifier/internal/repo"
	"github.com/LeventeLantos/order-notifier/internal/scheduler"
)

// GatewayAdmin is the part of the gateway adapter used by the admin routes.
type GatewayAdmin interface {
	Reload(ctx context.Context) error
	Profile() model.GatewayProfile
	Discover(ctx context.Context) (*gateway.DiscoveryResult, error)
	Send(ctx context.Context, number, message string) (*gateway.Response, error)
}

type GatewaySettings interface {
	SaveGateway(ctx context.Context, baseURL, token string, style model.AuthStyle) error
}

type Handler struct {
	sched    *scheduler.Scheduler
	events   consumer.EventHandler
	gateway  GatewayAdmin
	settings GatewaySettings
	repo     repo.OutcomeRepository
	log      *zap.Logger
}

// NewHandler wires the admin API. sched may be nil when no queue is
// configured.
func NewHandler(
	s *scheduler.Scheduler,
	events consumer.EventHandler,
	gw GatewayAdmin,
	settings GatewaySettings,
	r repo.OutcomeRepository,
	log *zap.Logger,
) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sched: s, events: events, gateway: gw, settings: settings, repo: r, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) ConsumerStatus(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "running": false})
		return
	}
	st := h.sched.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":   true,
		"running":   st.Running,
		"interval":  st.Interval,
		"ticks":     st.Ticks,
		"last_tick": st.LastTick,
	})
}

func (h *Handler) ConsumerStart(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeError(w, http.StatusConflict, "queue consumer is not configured")
		return
	}
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) ConsumerStop(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeError(w, http.StatusConflict, "queue consumer is not configured")
		return
	}
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), repo.DefaultListLimit)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.repo.ListRecent(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []model.Outcome{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
