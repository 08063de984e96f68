// Package handler содержит HTTP-обработчики API магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abodcard/storefront/internal/middleware"
	"github.com/abodcard/storefront/internal/model"
	"github.com/abodcard/storefront/internal/repository"
	"github.com/abodcard/storefront/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Purchase(ctx context.Context, telegramID int64, categoryID, additionalInfo string) (*service.PurchaseResult, error)
	AdminFulfill(ctx context.Context, orderID, value string) (*model.Order, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)
	ListCategories(ctx context.Context, productID string, activeOnly bool) ([]model.Category, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
	ListOrders(ctx context.Context, limit int) ([]model.Order, error)
	ListPendingOrders(ctx context.Context, limit int) ([]model.Order, error)
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service   Service
	logger    *zap.Logger
	adminAuth *middleware.AdminAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, adminAuth *middleware.AdminAuth) *Handler {
	return &Handler{
		service:   s,
		logger:    logger,
		adminAuth: adminAuth,
	}
}

type purchaseRequest struct {
	TelegramID     int64           `json:"telegram_id"`
	CategoryID     string          `json:"category_id"`
	DeliveryType   string          `json:"delivery_type"`
	AdditionalInfo *additionalInfo `json:"additional_info,omitempty"`
}

type additionalInfo struct {
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	AccountID string `json:"id,omitempty"`
}

func (a *additionalInfo) value() string {
	if a == nil {
		return ""
	}
	switch {
	case a.Phone != "":
		return a.Phone
	case a.Email != "":
		return a.Email
	default:
		return a.AccountID
	}
}

type purchaseResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderType   string `json:"order_type"`
	OrderNumber string `json:"order_number"`
	Code        string `json:"code,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

// Purchase принимает заявку на покупку от витрины или чат-адаптера.
// Вид отказа сообщается HTTP-статусом: 400 плохой ввод, 402 нехватка средств,
// 403 блокировка, 404 нет пользователя или категории, 410 категория отключена.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	if req.TelegramID == 0 || req.CategoryID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "telegram_id and category_id are required")
		return
	}
	if req.DeliveryType != "" && !model.DeliveryType(req.DeliveryType).Valid() {
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown delivery type")
		return
	}

	result, err := h.service.Purchase(r.Context(), req.TelegramID, req.CategoryID, req.AdditionalInfo.value())
	if err != nil {
		h.writePurchaseError(w, err)
		return
	}

	resp := purchaseResponse{
		Success:     true,
		OrderType:   string(result.OrderType),
		OrderNumber: result.Order.OrderNumber,
	}
	if result.OrderType == service.OrderTypeInstant {
		resp.Message = "order completed, code delivered"
		resp.Code = result.Order.CodeSent
	} else {
		resp.Message = "order accepted, pending manual fulfillment"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writePurchaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDeliveryInfoRequired):
		writeError(w, http.StatusBadRequest, "delivery_info_required", "additional delivery info must be supplied for this category")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, repository.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient_funds", "wallet balance is below the category price")
	case errors.Is(err, service.ErrUserBanned):
		writeError(w, http.StatusForbidden, "forbidden", "user is banned")
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, repository.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, "not_found", "category not found")
	case errors.Is(err, service.ErrCategoryInactive):
		writeError(w, http.StatusGone, "inactive", "category or product is no longer available")
	default:
		h.logger.Error("purchase error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
	}
}

type fulfillRequest struct {
	Value string `json:"value"`
}

type fulfillResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

// FulfillOrder закрывает ожидающий заказ значением, введённым администратором.
func (h *Handler) FulfillOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req fulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	order, err := h.service.AdminFulfill(r.Context(), orderID, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		case errors.Is(err, repository.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "not_found", "order not found")
		case errors.Is(err, repository.ErrOrderAlreadyProcessed):
			writeError(w, http.StatusConflict, "already_processed", "order is already completed")
		default:
			h.logger.Error("fulfill error", zap.Error(err), zap.String("order_id", orderID))
			writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
		}
		return
	}

	writeJSON(w, http.StatusOK, fulfillResponse{
		Success:     true,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
	})
}

type productResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CategoryType string `json:"category_type"`
	IsActive     bool   `json:"is_active"`
}

// GetProducts возвращает активные продукты каталога.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), true)
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productResponse{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			CategoryType: string(p.CategoryType),
			IsActive:     p.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type categoryResponse struct {
	ID               string `json:"id"`
	ProductID        string `json:"product_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Price            string `json:"price"`
	DeliveryType     string `json:"delivery_type"`
	RedemptionMethod string `json:"redemption_method"`
}

// GetCategories возвращает активные категории продукта.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	categories, err := h.service.ListCategories(r.Context(), productID, true)
	if err != nil {
		h.logger.Error("list categories error", zap.Error(err), zap.String("product_id", productID))
		writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{
			ID:               c.ID,
			ProductID:        c.ProductID,
			Name:             c.Name,
			Description:      c.Description,
			Price:            c.Price.StringFixed(2),
			DeliveryType:     string(c.DeliveryType),
			RedemptionMethod: c.RedemptionMethod,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type userResponse struct {
	TelegramID  int64  `json:"telegram_id"`
	Username    string `json:"username,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	Balance     string `json:"balance"`
	OrdersCount int    `json:"orders_count"`
	IsBanned    bool   `json:"is_banned"`
	JoinDate    string `json:"join_date"`
}

// GetUsers возвращает покупателей (только для администраторов).
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), 1000)
	if err != nil {
		h.logger.Error("list users error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{
			TelegramID:  u.TelegramID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			Balance:     u.Balance.StringFixed(2),
			OrdersCount: u.OrdersCount,
			IsBanned:    u.IsBanned,
			JoinDate:    u.JoinDate.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type orderResponse struct {
	ID             string `json:"id"`
	OrderNumber    string `json:"order_number"`
	TelegramID     int64  `json:"telegram_id"`
	ProductName    string `json:"product_name"`
	CategoryName   string `json:"category_name"`
	Price          string `json:"price"`
	DeliveryType   string `json:"delivery_type"`
	Status         string `json:"status"`
	AdditionalInfo string `json:"additional_info,omitempty"`
	OrderDate      string `json:"order_date"`
	CompletionDate string `json:"completion_date,omitempty"`
}

func toOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		or := orderResponse{
			ID:             o.ID,
			OrderNumber:    o.OrderNumber,
			TelegramID:     o.TelegramID,
			ProductName:    o.ProductName,
			CategoryName:   o.CategoryName,
			Price:          o.Price.StringFixed(2),
			DeliveryType:   string(o.DeliveryType),
			Status:         string(o.Status),
			AdditionalInfo: o.AdditionalInfo,
			OrderDate:      o.OrderDate.Format(time.RFC3339),
		}
		if o.CompletionDate != nil {
			or.CompletionDate = o.CompletionDate.Format(time.RFC3339)
		}
		resp = append(resp, or)
	}
	return resp
}

// GetOrders возвращает последние заказы (только для администраторов).
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), 1000)
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetPendingOrders возвращает заказы в очереди на ручное выполнение.
func (h *Handler) GetPendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListPendingOrders(r.Context(), 100)
	if err != nil {
		h.logger.Error("list pending orders error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}
