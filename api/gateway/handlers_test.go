package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/domain/book"
	"vela/infra/pipeline"
	"vela/metrics"
	"vela/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := service.NewEngine(book.NewOrderBook(), pipeline.New(64), nil, nil, nil, nil)
	srv := httptest.NewServer(NewHandler(engine, nil).Router(metrics.New("vela_test")))
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
	})
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func placeOrder(t *testing.T, srv *httptest.Server, side, otype string, price, qty int64) uint64 {
	t.Helper()
	resp := postJSON(t, srv.URL+"/orders", map[string]any{
		"side": side, "type": otype, "price": price, "quantity": qty,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	return uint64(body["order_id"].(float64))
}

func TestPlaceOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)

	id := placeOrder(t, srv, "BUY", "LIMIT", 100, 5)
	assert.Equal(t, uint64(1), id)

	resp, err := http.Get(fmt.Sprintf("%s/orders/%d", srv.URL, id))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "PROCESSING", body["state"])
	assert.Equal(t, "BUY", body["side"])
	assert.Equal(t, float64(5), body["remaining"])
}

func TestPlaceOrderValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", map[string]any{"side": "HOLD", "price": 100, "quantity": 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/orders", map[string]any{"side": "BUY", "type": "STOP", "price": 100, "quantity": 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// structurally valid but rejected by the order invariants
	resp = postJSON(t, srv.URL+"/orders", map[string]any{"side": "BUY", "price": 100, "quantity": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["error"])
	assert.NotZero(t, body["order_id"])
}

func TestCancelOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := placeOrder(t, srv, "BUY", "LIMIT", 120, 20)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/orders/%d", srv.URL, id), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "CANCELLED", body["state"])

	// cancelling again is a 404, not a repeat cancel
	resp, err = http.DefaultClient.Do(req.Clone(req.Context()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModifyOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := placeOrder(t, srv, "SELL", "LIMIT", 100, 5)

	data, _ := json.Marshal(map[string]any{"price": 101, "quantity": 8})
	req, _ := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/orders/%d", srv.URL, id), bytes.NewReader(data))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "MODIFIED", body["state"])

	resp, err = http.Get(fmt.Sprintf("%s/orders/%d", srv.URL, id))
	require.NoError(t, err)
	status := decodeBody(t, resp)
	assert.Equal(t, float64(101), status["price"])
	assert.Equal(t, float64(8), status["remaining"])
}

func TestModifyUnknownOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)

	data, _ := json.Marshal(map[string]any{"price": 101, "quantity": 8})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/orders/999", bytes.NewReader(data))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBookEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// empty book: best prices are null, aggregates zero
	resp, err := http.Get(srv.URL + "/book")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Nil(t, body["best_bid"])
	assert.Nil(t, body["best_ask"])
	assert.Equal(t, float64(0), body["bid_quantity"])

	placeOrder(t, srv, "BUY", "LIMIT", 99, 5)
	placeOrder(t, srv, "BUY", "LIMIT", 100, 2)
	placeOrder(t, srv, "SELL", "LIMIT", 103, 4)

	resp, err = http.Get(srv.URL + "/book?levels=10")
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(100), body["best_bid"])
	assert.Equal(t, float64(103), body["best_ask"])
	assert.Equal(t, float64(7), body["bid_quantity"])
	assert.Equal(t, float64(4), body["ask_quantity"])
	require.Len(t, body["bids"], 2)
	require.Len(t, body["asks"], 1)
}

func TestTradesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	placeOrder(t, srv, "SELL", "LIMIT", 105, 10)
	placeOrder(t, srv, "BUY", "LIMIT", 105, 10)

	resp, err := http.Get(srv.URL + "/trades")
	require.NoError(t, err)
	defer resp.Body.Close()

	var trades []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trades))
	require.Len(t, trades, 1)
	assert.Equal(t, float64(105), trades[0]["price"])
	assert.Equal(t, float64(10), trades[0]["quantity"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
