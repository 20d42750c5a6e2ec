// Package gateway is the HTTP surface: REST order entry, book and ledger
// queries, a websocket trade stream and the Prometheus endpoint. It is an
// external collaborator of the core; all mutations go through the engine.
package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vela/metrics"
	"vela/service"
)

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	Engine *service.Engine
	Hub    *Hub
}

func NewHandler(engine *service.Engine, hub *Hub) *Handler {
	return &Handler{Engine: engine, Hub: hub}
}

// Router assembles the chi routes. m may be nil when metrics are
// disabled.
func (h *Handler) Router(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Post("/orders", h.PlaceOrder)
	r.Get("/orders/{id}", h.OrderStatus)
	r.Put("/orders/{id}", h.ModifyOrder)
	r.Delete("/orders/{id}", h.CancelOrder)
	r.Get("/book", h.Book)
	r.Get("/trades", h.Trades)

	if h.Hub != nil {
		r.Get("/ws", h.Hub.handleWS)
	}
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}
