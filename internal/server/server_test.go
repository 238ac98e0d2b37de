package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terryong/negolah/internal/config"
	"github.com/terryong/negolah/internal/gateway"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testWebhookSecret = "whsec_test"

// testConfig returns a minimal config for testing. No DATABASE_URL or
// REDIS_ADDR, so everything runs in memory.
func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "development",
		LogLevel:            "error",
		StripeAPIKey:        "sk_test_unused",
		StripeWebhookSecret: testWebhookSecret,
		Currency:            "myr",
		LeaseTTL:            72 * time.Hour,
		SweepInterval:       time.Hour,
		DefaultFloorRatio:   0.70,
		RateLimitRPM:        10000,
		AdminSecret:         "test-admin-secret",
	}
}

// newTestServer creates a server with a fake payment gateway.
func newTestServer(t *testing.T) (*Server, *gateway.Fake) {
	t.Helper()
	gw := gateway.NewFake()
	s, err := New(testConfig(), WithGateway(gw))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s, gw
}

func doJSON(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	s.router.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Secret": "test-admin-secret"}
}

// createItem seeds one listing via the admin API and returns its id.
func createItem(t *testing.T, s *Server, name string, listed, floor float64) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"listedPrice":%v,"floorPrice":%v}`, name, listed, floor)
	w := doJSON(s, "POST", "/v1/admin/items", body, adminHeaders())
	if w.Code != http.StatusCreated {
		t.Fatalf("create item: %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse create response: %v", err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatal("create item response missing id")
	}
	return id
}

// signWebhook builds a Stripe-Signature header for payload, matching the
// provider's t=<unix>,v1=<hmac-sha256> scheme.
func signWebhook(payload string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(itemID, buyerID string, amountMinor int64) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"amount_total": %d,
				"metadata": {"item_id": %q, "buyer_id": %q}
			}
		}
	}`, amountMinor, itemID, buyerID)
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", w.Code)
	}

	w = doJSON(s, "GET", "/health/live", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", w.Code)
	}

	// Run() has not been called, so the server is not ready yet.
	w = doJSON(s, "GET", "/health/ready", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness: expected 503, got %d", w.Code)
	}
}

func TestCoreRoutesRegistered(t *testing.T) {
	s, _ := newTestServer(t)

	expected := []string{
		"GET:/health",
		"GET:/metrics",
		"GET:/ws",
		"POST:/webhooks/stripe",
		"GET:/v1/items",
		"GET:/v1/items/:id",
		"POST:/v1/items/resolve",
		"POST:/v1/offers/evaluate",
		"POST:/v1/checkout-links",
		"GET:/v1/buyers/:buyerId/checkout-links",
		"DELETE:/v1/buyers/:buyerId/checkout-links/:itemId",
		"GET:/v1/buyers/:buyerId/orders",
		"GET:/v1/orders/:id",
		"PUT:/v1/orders/:id/shipping",
		"POST:/v1/orders/confirm",
		"POST:/v1/admin/items",
		"GET:/v1/admin/checkout-links",
		"POST:/v1/admin/sweep",
	}

	routeSet := make(map[string]bool)
	for _, route := range s.router.Routes() {
		routeSet[route.Method+":"+route.Path] = true
	}
	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("route %s not registered", e)
		}
	}
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, "POST", "/v1/admin/sweep", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without secret, got %d", w.Code)
	}

	w = doJSON(s, "POST", "/v1/admin/sweep", "", map[string]string{"X-Admin-Secret": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong secret, got %d", w.Code)
	}

	w = doJSON(s, "POST", "/v1/admin/sweep", "", adminHeaders())
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with secret, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPublicItemViewHidesFloorPrice(t *testing.T) {
	s, _ := newTestServer(t)
	itemID := createItem(t, s, "Vintage Watch", 100, 70)

	w := doJSON(s, "GET", "/v1/items/"+itemID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get item: %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "floorPrice") {
		t.Errorf("public item view leaks the floor price: %s", w.Body.String())
	}
}

func TestOfferEvaluationFlow(t *testing.T) {
	s, _ := newTestServer(t)
	itemID := createItem(t, s, "Vintage Watch", 100, 70)

	body := fmt.Sprintf(`{"itemId":%q,"offeredPrice":85}`, itemID)
	w := doJSON(s, "POST", "/v1/offers/evaluate", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate: %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["decision"] != "counter" {
		t.Errorf("decision = %v, want counter", resp["decision"])
	}
	if resp["counterPrice"] != 92.5 {
		t.Errorf("counterPrice = %v, want 92.5", resp["counterPrice"])
	}
}

func TestCheckoutAndWebhookSettlement(t *testing.T) {
	s, gw := newTestServer(t)
	itemID := createItem(t, s, "Vintage Watch", 100, 70)

	// Create the checkout lease.
	body := fmt.Sprintf(`{"buyerId":"buyer-1","itemId":%q,"agreedPrice":85}`, itemID)
	w := doJSON(s, "POST", "/v1/checkout-links", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create checkout link: %d: %s", w.Code, w.Body.String())
	}

	// A repeat returns the same lease with reused=true.
	w = doJSON(s, "POST", "/v1/checkout-links", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat checkout link: %d: %s", w.Code, w.Body.String())
	}
	var leaseResp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &leaseResp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if leaseResp["reused"] != true {
		t.Error("repeat create did not report reused")
	}
	if len(gw.CreateCalls) != 1 {
		t.Errorf("gateway create calls = %d, want 1", len(gw.CreateCalls))
	}

	// Settle via signed webhook.
	payload := checkoutCompletedPayload(itemID, "buyer-1", 8500)
	w = doJSON(s, "POST", "/webhooks/stripe", payload, map[string]string{
		"Stripe-Signature": signWebhook(payload),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: %d: %s", w.Code, w.Body.String())
	}

	// The item is sold now; a second buyer cannot lease it.
	other := fmt.Sprintf(`{"buyerId":"buyer-2","itemId":%q,"agreedPrice":85}`, itemID)
	w = doJSON(s, "POST", "/v1/checkout-links", other, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("lease on sold item: %d, want 409", w.Code)
	}

	// The buyer has exactly one order, pending shipping info.
	w = doJSON(s, "GET", "/v1/buyers/buyer-1/orders", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list orders: %d", w.Code)
	}
	var ordersResp struct {
		Orders []map[string]interface{} `json:"orders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ordersResp); err != nil {
		t.Fatalf("parse orders: %v", err)
	}
	if len(ordersResp.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(ordersResp.Orders))
	}
	order := ordersResp.Orders[0]
	if order["status"] != "pending_shipping_info" {
		t.Errorf("order status = %v, want pending_shipping_info", order["status"])
	}
	if order["amount"] != 85.0 {
		t.Errorf("order amount = %v, want 85", order["amount"])
	}

	// Save shipping details; the order moves to confirmed.
	orderID, _ := order["id"].(string)
	shipping := `{"recipientName":"Siti","phone":"0123456789","address":"1 Jalan Test, KL"}`
	w = doJSON(s, "PUT", "/v1/orders/"+orderID+"/shipping", shipping, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update shipping: %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"confirmed"`) {
		t.Errorf("order not confirmed after shipping info: %s", w.Body.String())
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s, _ := newTestServer(t)
	itemID := createItem(t, s, "Vintage Watch", 100, 70)

	payload := checkoutCompletedPayload(itemID, "buyer-1", 8500)
	w := doJSON(s, "POST", "/webhooks/stripe", payload, map[string]string{
		"Stripe-Signature": "t=123,v1=deadbeef",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("forged webhook: %d, want 400", w.Code)
	}

	// Nothing was finalized.
	w = doJSON(s, "GET", "/v1/buyers/buyer-1/orders", "", nil)
	if !strings.Contains(w.Body.String(), `"count":0`) {
		t.Errorf("forged webhook created state: %s", w.Body.String())
	}
}

func TestWebhookWithRacingManualConfirm(t *testing.T) {
	s, _ := newTestServer(t)
	itemID := createItem(t, s, "Vintage Watch", 100, 70)

	body := fmt.Sprintf(`{"buyerId":"buyer-1","itemId":%q,"agreedPrice":85}`, itemID)
	if w := doJSON(s, "POST", "/v1/checkout-links", body, nil); w.Code != http.StatusCreated {
		t.Fatalf("create checkout link: %d", w.Code)
	}

	payload := checkoutCompletedPayload(itemID, "buyer-1", 8500)
	w := doJSON(s, "POST", "/webhooks/stripe", payload, map[string]string{
		"Stripe-Signature": signWebhook(payload),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: %d", w.Code)
	}

	// The manual confirm arrives late; it must not create a second order.
	confirm := fmt.Sprintf(`{"itemId":%q,"buyerId":"buyer-1","amountPaid":85}`, itemID)
	w = doJSON(s, "POST", "/v1/orders/confirm", confirm, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("manual confirm: %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "already_sold") {
		t.Errorf("late confirm outcome: %s", w.Body.String())
	}

	w = doJSON(s, "GET", "/v1/buyers/buyer-1/orders", "", nil)
	if !strings.Contains(w.Body.String(), `"count":1`) {
		t.Errorf("expected exactly one order: %s", w.Body.String())
	}
}

func TestResolveEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	createItem(t, s, "Vintage Watch", 100, 70)
	createItem(t, s, "Diving Watch", 150, 100)

	w := doJSON(s, "POST", "/v1/items/resolve", `{"reference":"watch"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ambiguous"`) {
		t.Errorf("expected ambiguous resolution: %s", w.Body.String())
	}
}

func TestNotFoundRoute(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, "GET", "/v1/nonexistent", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
