package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vela/domain/book"
)

// PlaceOrder handles POST /orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Side     string `json:"side"`
		Type     string `json:"type"`
		Price    int64  `json:"price"`
		Quantity int64  `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	var side book.Side
	switch strings.ToUpper(req.Side) {
	case "BUY":
		side = book.Buy
	case "SELL":
		side = book.Sell
	default:
		http.Error(w, `{"error": "side must be BUY or SELL"}`, http.StatusBadRequest)
		return
	}

	var otype book.OrderType
	switch strings.ToUpper(req.Type) {
	case "LIMIT", "":
		otype = book.Limit
	case "MARKET":
		otype = book.Market
	default:
		http.Error(w, `{"error": "type must be LIMIT or MARKET"}`, http.StatusBadRequest)
		return
	}

	id, err := h.Engine.PlaceOrder(side, otype, req.Price, req.Quantity)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_id": id,
			"error":    err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"order_id": id})
}

// CancelOrder handles DELETE /orders/{id}.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "invalid order id"}`, http.StatusBadRequest)
		return
	}

	if err := h.Engine.CancelOrder(id); err != nil {
		if errors.Is(err, book.ErrOrderNotFound) {
			http.Error(w, `{"error": "order not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error": "cancel failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"order_id": id, "state": "CANCELLED"})
}

// ModifyOrder handles PUT /orders/{id}.
func (h *Handler) ModifyOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "invalid order id"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		Price    int64 `json:"price"`
		Quantity int64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.Engine.ModifyOrder(id, req.Quantity, req.Price); err != nil {
		if errors.Is(err, book.ErrOrderNotFound) {
			http.Error(w, `{"error": "order not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"order_id": id, "error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"order_id": id, "state": "MODIFIED"})
}

// OrderStatus handles GET /orders/{id}.
func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "invalid order id"}`, http.StatusBadRequest)
		return
	}

	snap := h.Engine.OrderStatus(id)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"order_id":  snap.OrderID,
		"side":      snap.Side.String(),
		"type":      snap.Type.String(),
		"price":     snap.Price,
		"state":     snap.State.String(),
		"remaining": snap.Remaining,
		"filled":    snap.Filled,
	})
}

// Book handles GET /book: best prices, aggregates and optional depth.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	levels := 0
	if s := r.URL.Query().Get("levels"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, `{"error": "invalid levels"}`, http.StatusBadRequest)
			return
		}
		levels = n
	}

	// a single serialized snapshot keeps the response coherent
	snap := h.Engine.Snapshot(levels)

	resp := map[string]any{}
	if snap.HasBid {
		resp["best_bid"] = snap.BestBid
	} else {
		resp["best_bid"] = nil
	}
	if snap.HasAsk {
		resp["best_ask"] = snap.BestAsk
	} else {
		resp["best_ask"] = nil
	}
	resp["bid_quantity"] = snap.BidQuantity
	resp["ask_quantity"] = snap.AskQuantity

	if levels > 0 {
		resp["bids"] = snap.Depth.Bids
		resp["asks"] = snap.Depth.Asks
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Trades handles GET /trades: the full execution ledger in order.
func (h *Handler) Trades(w http.ResponseWriter, r *http.Request) {
	trades := h.Engine.Trades()
	out := make([]map[string]any, 0, len(trades))
	for _, t := range trades {
		out = append(out, map[string]any{
			"trade_id":       t.ID,
			"taker_order_id": t.TakerOrderID,
			"maker_order_id": t.MakerOrderID,
			"quantity":       t.Quantity,
			"price":          t.Price,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
