package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abodcard/storefront/internal/middleware"
	"github.com/abodcard/storefront/internal/model"
	"github.com/abodcard/storefront/internal/repository"
	"github.com/abodcard/storefront/internal/service"
)

const testAdminToken = "test-admin-token"

type stubService struct {
	purchaseResult *service.PurchaseResult
	purchaseErr    error

	fulfillOrder *model.Order
	fulfillErr   error

	products []model.Product
	orders   []model.Order
}

func (s *stubService) Purchase(ctx context.Context, telegramID int64, categoryID, additionalInfo string) (*service.PurchaseResult, error) {
	return s.purchaseResult, s.purchaseErr
}

func (s *stubService) AdminFulfill(ctx context.Context, orderID, value string) (*model.Order, error) {
	return s.fulfillOrder, s.fulfillErr
}

func (s *stubService) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	return s.products, nil
}

func (s *stubService) ListCategories(ctx context.Context, productID string, activeOnly bool) ([]model.Category, error) {
	return nil, nil
}

func (s *stubService) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	return nil, nil
}

func (s *stubService) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return s.orders, nil
}

func (s *stubService) ListPendingOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return s.orders, nil
}

func newTestServer(svc *stubService) *httptest.Server {
	h := NewHandler(svc, zap.NewNop(), middleware.NewAdminAuth(testAdminToken))
	return httptest.NewServer(h.SetupRouter([]string{"*"}))
}

func postPurchase(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/purchase", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestPurchase_Success(t *testing.T) {
	svc := &stubService{
		purchaseResult: &service.PurchaseResult{
			Order: &model.Order{
				OrderNumber: "AC-1234567890",
				CodeSent:    "XXXX-YYYY",
				Status:      model.OrderStatusCompleted,
			},
			OrderType: service.OrderTypeInstant,
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postPurchase(t, srv, `{"telegram_id": 100, "category_id": "c1"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body purchaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || body.OrderType != "instant" || body.Code != "XXXX-YYYY" {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestPurchase_MissingFields(t *testing.T) {
	srv := newTestServer(&stubService{})
	defer srv.Close()

	resp := postPurchase(t, srv, `{"category_id": "c1"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing telegram_id, got %d", resp.StatusCode)
	}
}

func TestPurchase_UnknownDeliveryType(t *testing.T) {
	srv := newTestServer(&stubService{})
	defer srv.Close()

	resp := postPurchase(t, srv, `{"telegram_id": 100, "category_id": "c1", "delivery_type": "carrier-pigeon"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown delivery type, got %d", resp.StatusCode)
	}
}

func TestPurchase_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"delivery info required", service.ErrDeliveryInfoRequired, http.StatusBadRequest, "delivery_info_required"},
		{"insufficient funds", repository.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_funds"},
		{"banned user", service.ErrUserBanned, http.StatusForbidden, "forbidden"},
		{"unknown user", repository.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"unknown category", repository.ErrCategoryNotFound, http.StatusNotFound, "not_found"},
		{"inactive category", service.ErrCategoryInactive, http.StatusGone, "inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubService{purchaseErr: tt.err})
			defer srv.Close()

			resp := postPurchase(t, srv, `{"telegram_id": 100, "category_id": "c1"}`)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			var body errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Error != tt.wantKind {
				t.Fatalf("expected error kind %q, got %q", tt.wantKind, body.Error)
			}
		})
	}
}

func adminRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestFulfillOrder_Success(t *testing.T) {
	svc := &stubService{
		fulfillOrder: &model.Order{
			OrderNumber: "AC-1234567890",
			Status:      model.OrderStatusCompleted,
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := adminRequest(t, http.MethodPost, srv.URL+"/api/orders/o1/fulfill", testAdminToken, `{"value": "CODE-1"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body fulfillResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || body.Status != "completed" {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestFulfillOrder_AlreadyProcessed(t *testing.T) {
	srv := newTestServer(&stubService{fulfillErr: repository.ErrOrderAlreadyProcessed})
	defer srv.Close()

	resp := adminRequest(t, http.MethodPost, srv.URL+"/api/orders/o1/fulfill", testAdminToken, `{"value": "CODE-2"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestFulfillOrder_NotFound(t *testing.T) {
	srv := newTestServer(&stubService{fulfillErr: repository.ErrOrderNotFound})
	defer srv.Close()

	resp := adminRequest(t, http.MethodPost, srv.URL+"/api/orders/missing/fulfill", testAdminToken, `{"value": "CODE-1"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(&stubService{})
	defer srv.Close()

	for _, url := range []string{
		srv.URL + "/api/users",
		srv.URL + "/api/orders",
		srv.URL + "/api/orders/pending",
	} {
		resp := adminRequest(t, http.MethodGet, url, "", "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 without token for %s, got %d", url, resp.StatusCode)
		}

		resp = adminRequest(t, http.MethodGet, url, "wrong-token", "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 with wrong token for %s, got %d", url, resp.StatusCode)
		}
	}
}

func TestGetProducts_Public(t *testing.T) {
	svc := &stubService{products: []model.Product{
		{ID: "p1", Name: "Steam Wallet", IsActive: true},
	}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/products")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body []productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 1 || body[0].Name != "Steam Wallet" {
		t.Fatalf("unexpected products: %+v", body)
	}
}

func TestGetPendingOrders_WithToken(t *testing.T) {
	svc := &stubService{orders: []model.Order{
		{ID: "o1", OrderNumber: "AC-1", Price: decimal.RequireFromString("10"), Status: model.OrderStatusPending},
	}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := adminRequest(t, http.MethodGet, srv.URL+"/api/orders/pending", testAdminToken, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body []orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 1 || body[0].Status != "pending" {
		t.Fatalf("unexpected orders: %+v", body)
	}
}
