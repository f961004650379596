package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStock(t *testing.T, srv *testServer, productID string, qty int) {
	t.Helper()
	w := srv.do(t, "POST", "/api/v1/stock/receive", map[string]interface{}{
		"productId": productID, "variantId": "v-1", "qty": qty,
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCartAddItem_HoldsReservation(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 10)

	w := srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 3,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	lines := resp["lines"].([]interface{})
	require.Len(t, lines, 1)

	w = srv.do(t, "GET", "/api/v1/stock/status?productId=p-1&variantId=v-1", nil)
	status := decode(t, w)
	assert.Equal(t, float64(3), status["reserved"])
	assert.Equal(t, float64(7), status["available"])
}

func TestCartAddItem_OversellConflicts(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 2)

	w := srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 3,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCartChangeQuantity_ReleasesDelta(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 10)

	srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 5,
	})

	w := srv.do(t, "PATCH", "/api/v1/carts/cart-1/items/product:p-1:v-1", map[string]interface{}{"qty": 2})
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, "GET", "/api/v1/stock/status?productId=p-1&variantId=v-1", nil)
	status := decode(t, w)
	assert.Equal(t, float64(2), status["reserved"])
}

func TestCartRemoveItem_ReleasesAll(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 10)

	srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 5,
	})

	w := srv.do(t, "DELETE", "/api/v1/carts/cart-1/items/product:p-1:v-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, "GET", "/api/v1/stock/status?productId=p-1&variantId=v-1", nil)
	status := decode(t, w)
	assert.Equal(t, float64(0), status["reserved"])
}

func TestCartCheckout_CommitsAndCreatesTasks(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 10)
	seedStock(t, srv, "p-2", 10)

	srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 3,
	})
	srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-2", "variantId": "v-1", "qty": 2,
	})

	w := srv.do(t, "POST", "/api/v1/carts/cart-1/checkout", map[string]interface{}{"orderId": "order-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["canceled"])
	assert.Equal(t, float64(2), resp["committed"])

	w = srv.do(t, "GET", "/api/v1/stock/status?productId=p-1&variantId=v-1", nil)
	status := decode(t, w)
	assert.Equal(t, float64(7), status["onHand"])
	assert.Equal(t, float64(0), status["reserved"])

	w = srv.do(t, "GET", "/api/v1/orders/order-1/tasks", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	tasks := decode(t, w)
	assert.Equal(t, float64(2), tasks["count"])
}

func TestCartCheckout_SellerShippedLineSkipsTask(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 10)

	srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 3, "platformFulfilled": false,
	})

	w := srv.do(t, "POST", "/api/v1/carts/cart-1/checkout", map[string]interface{}{"orderId": "order-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, "GET", "/api/v1/orders/order-1/tasks", nil)
	tasks := decode(t, w)
	assert.Equal(t, float64(0), tasks["count"])
}

func TestCartCheckout_EmptyCartRejected(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, "POST", "/api/v1/carts/cart-1/checkout", map[string]interface{}{"orderId": "order-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartClear_ReleasesReservations(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 10)

	srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 4,
	})

	w := srv.do(t, "DELETE", "/api/v1/carts/cart-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, "GET", "/api/v1/stock/status?productId=p-1&variantId=v-1", nil)
	status := decode(t, w)
	assert.Equal(t, float64(0), status["reserved"])
}

func TestAdvanceTask_OverHTTP(t *testing.T) {
	srv := newTestServer(t)
	seedStock(t, srv, "p-1", 10)

	srv.do(t, "POST", "/api/v1/carts/cart-1/items", map[string]interface{}{
		"productId": "p-1", "variantId": "v-1", "qty": 1,
	})
	srv.do(t, "POST", "/api/v1/carts/cart-1/checkout", map[string]interface{}{"orderId": "order-1"})

	w := srv.do(t, "GET", "/api/v1/orders/order-1/tasks", nil)
	tasks := decode(t, w)["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	taskID := tasks[0].(map[string]interface{})["ID"].(string)

	w = srv.do(t, "POST", "/api/v1/tasks/"+taskID+"/status", map[string]interface{}{
		"from": "pending", "to": "in_progress",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Stale transition loses with a conflict
	w = srv.do(t, "POST", "/api/v1/tasks/"+taskID+"/status", map[string]interface{}{
		"from": "pending", "to": "canceled",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdvanceTask_BadID(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, "POST", "/api/v1/tasks/not-a-uuid/status", map[string]interface{}{
		"from": "pending", "to": "in_progress",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
