package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeventeLantos/order-notifier/internal/consumer"
)

type RouterOptions struct {
	AdminRatePerSecond int
	AdminBurst         int
}

func Router(h *Handler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/consumer/status", h.ConsumerStatus)
	mux.HandleFunc("POST /v1/consumer/start", h.ConsumerStart)
	mux.HandleFunc("POST /v1/consumer/stop", h.ConsumerStop)

	mux.HandleFunc("POST /v1/events/status-changed", h.Event(consumer.TypeStatusChanged))
	mux.HandleFunc("POST /v1/events/order-created", h.Event(consumer.TypeOrderCreated))
	mux.HandleFunc("POST /v1/events/tracking", h.Event(consumer.TypeTracking))
	mux.HandleFunc("POST /v1/events/note", h.Event(consumer.TypeNote))

	admin := func(next http.HandlerFunc) http.Handler {
		if opts.AdminRatePerSecond <= 0 {
			return next
		}
		return Throttle(opts.AdminRatePerSecond, opts.AdminBurst, next)
	}
	mux.Handle("POST /v1/gateway/test-connection", admin(h.TestConnection))
	mux.Handle("POST /v1/gateway/test-send", admin(h.TestSend))

	mux.HandleFunc("GET /v1/notifications", h.ListNotifications)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("order-notifier"))
	})

	return mux
}
