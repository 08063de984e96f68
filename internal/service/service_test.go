package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abodcard/storefront/internal/gateway"
	"github.com/abodcard/storefront/internal/model"
	"github.com/abodcard/storefront/internal/repository"
)

type stubRepo struct {
	mu sync.Mutex

	user    *model.User
	userErr error

	category    *model.Category
	product     *model.Product
	categoryErr error

	purchaseOrder *model.Order
	purchaseErr   error
	purchaseCalls []repository.PurchaseParams

	completeOrder *model.Order
	completeErr   error

	creditCalls []decimal.Decimal
	creditErr   error

	insertedCodes int
	insertErr     error

	stock []repository.CategoryStock

	banned     *bool
	banReason  string
	orders     []model.Order
	getOrder   *model.Order
	getOrderErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	if s.user == nil && s.userErr == nil {
		return nil, repository.ErrUserNotFound
	}
	return s.user, s.userErr
}

func (s *stubRepo) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	return nil, nil
}

func (s *stubRepo) CreditBalance(ctx context.Context, telegramID int64, amount decimal.Decimal) error {
	s.creditCalls = append(s.creditCalls, amount)
	return s.creditErr
}

func (s *stubRepo) SetUserBanned(ctx context.Context, telegramID int64, banned bool, reason string) error {
	s.banned = &banned
	s.banReason = reason
	return nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) error { return nil }

func (s *stubRepo) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) DeactivateProduct(ctx context.Context, productID string) error { return nil }

func (s *stubRepo) CreateCategory(ctx context.Context, c *model.Category) error { return nil }

func (s *stubRepo) GetCategoryWithProduct(ctx context.Context, categoryID string) (*model.Category, *model.Product, error) {
	if s.category == nil && s.categoryErr == nil {
		return nil, nil, repository.ErrCategoryNotFound
	}
	return s.category, s.product, s.categoryErr
}

func (s *stubRepo) ListCategoriesByProduct(ctx context.Context, productID string, activeOnly bool) ([]model.Category, error) {
	return nil, nil
}

func (s *stubRepo) InsertCodes(ctx context.Context, codes []model.Code) (int, error) {
	s.insertedCodes += len(codes)
	return len(codes), s.insertErr
}

func (s *stubRepo) CountAvailableCodes(ctx context.Context, categoryID string) (int, error) {
	return 0, nil
}

func (s *stubRepo) ListCodeCategoryStock(ctx context.Context) ([]repository.CategoryStock, error) {
	return s.stock, nil
}

func (s *stubRepo) ExecutePurchase(ctx context.Context, p repository.PurchaseParams) (*model.Order, error) {
	s.mu.Lock()
	s.purchaseCalls = append(s.purchaseCalls, p)
	s.mu.Unlock()
	if s.purchaseErr != nil {
		return nil, s.purchaseErr
	}
	order := *s.purchaseOrder
	order.AdditionalInfo = p.AdditionalInfo
	return &order, nil
}

func (s *stubRepo) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if s.getOrder == nil && s.getOrderErr == nil {
		return nil, repository.ErrOrderNotFound
	}
	return s.getOrder, s.getOrderErr
}

func (s *stubRepo) ListOrdersByTelegramID(ctx context.Context, telegramID int64, limit int) ([]model.Order, error) {
	return s.orders, nil
}

func (s *stubRepo) ListPendingOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return s.orders, nil
}

func (s *stubRepo) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return s.orders, nil
}

func (s *stubRepo) CompleteOrder(ctx context.Context, orderID, value string) (*model.Order, error) {
	return s.completeOrder, s.completeErr
}

func (s *stubRepo) GetSalesStats(ctx context.Context) (*repository.SalesStats, error) {
	return &repository.SalesStats{}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	customer []string
	admins   []string
}

func (n *recordingNotifier) NotifyCustomer(chatID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.customer = append(n.customer, text)
}

func (n *recordingNotifier) NotifyAdmins(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admins = append(n.admins, text)
}

type stubGateway struct {
	tx  *gateway.Transaction
	err error
}

func (g *stubGateway) GetTransaction(ctx context.Context, ref string) (*gateway.Transaction, error) {
	return g.tx, g.err
}

func activeUser(balance string) *model.User {
	return &model.User{
		ID:         "u1",
		TelegramID: 100,
		Balance:    decimal.RequireFromString(balance),
	}
}

func codeCategory(price string) (*model.Category, *model.Product) {
	return &model.Category{
			ID:           "c1",
			ProductID:    "p1",
			Name:         "Steam $10",
			Price:        decimal.RequireFromString(price),
			DeliveryType: model.DeliveryCode,
			IsActive:     true,
		}, &model.Product{
			ID:       "p1",
			Name:     "Steam Wallet",
			IsActive: true,
		}
}

func newTestService(repo *stubRepo, notifier *recordingNotifier) *Service {
	return NewService(repo, notifier, nil, zap.NewNop())
}

func TestPurchase_InsufficientBalanceLeavesNoTrace(t *testing.T) {
	cat, prod := codeCategory("10.00")
	repo := &stubRepo{user: activeUser("9.99"), category: cat, product: prod}
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	_, err := svc.Purchase(context.Background(), 100, "c1", "")
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(repo.purchaseCalls) != 0 {
		t.Fatalf("purchase must not reach the store on insufficient balance")
	}
	if len(notifier.customer) != 0 || len(notifier.admins) != 0 {
		t.Fatalf("no notifications expected on rejected purchase")
	}
}

func TestPurchase_InstantCodeDelivery(t *testing.T) {
	cat, prod := codeCategory("10.00")
	repo := &stubRepo{
		user:     activeUser("25.00"),
		category: cat,
		product:  prod,
		purchaseOrder: &model.Order{
			ID:           "o1",
			OrderNumber:  "AC-AAAA",
			TelegramID:   100,
			ProductName:  prod.Name,
			CategoryName: cat.Name,
			Price:        cat.Price,
			DeliveryType: model.DeliveryCode,
			Status:       model.OrderStatusCompleted,
			CodeSent:     "XXXX-YYYY",
		},
	}
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	result, err := svc.Purchase(context.Background(), 100, "c1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrderType != OrderTypeInstant {
		t.Fatalf("expected instant order, got %s", result.OrderType)
	}
	if result.Order.CodeSent != "XXXX-YYYY" {
		t.Fatalf("expected code in order, got %q", result.Order.CodeSent)
	}
	if len(notifier.customer) != 1 || !strings.Contains(notifier.customer[0], "XXXX-YYYY") {
		t.Fatalf("customer must receive the code, got %v", notifier.customer)
	}
	if len(notifier.admins) != 1 {
		t.Fatalf("admins must be notified of the sale")
	}
}

func TestPurchase_ExhaustedPoolCreatesPendingOrder(t *testing.T) {
	cat, prod := codeCategory("10.00")
	repo := &stubRepo{
		user:     activeUser("25.00"),
		category: cat,
		product:  prod,
		purchaseOrder: &model.Order{
			ID:           "o1",
			OrderNumber:  "AC-BBBB",
			TelegramID:   100,
			DeliveryType: model.DeliveryCode,
			Status:       model.OrderStatusPending,
		},
	}
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	result, err := svc.Purchase(context.Background(), 100, "c1", "")
	if err != nil {
		t.Fatalf("exhausted code pool must not be an error, got %v", err)
	}
	if result.OrderType != OrderTypePending {
		t.Fatalf("expected pending order, got %s", result.OrderType)
	}
	if len(repo.purchaseCalls) != 1 {
		t.Fatalf("expected exactly one purchase execution")
	}
	if len(notifier.admins) != 1 {
		t.Fatalf("admins must be warned about the empty pool")
	}
}

func TestPurchase_DeliveryInfoRequiredBeforePayment(t *testing.T) {
	cat, prod := codeCategory("10.00")
	cat.DeliveryType = model.DeliveryEmail
	repo := &stubRepo{user: activeUser("25.00"), category: cat, product: prod}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.Purchase(context.Background(), 100, "c1", "")
	if !errors.Is(err, ErrDeliveryInfoRequired) {
		t.Fatalf("expected ErrDeliveryInfoRequired, got %v", err)
	}
	if len(repo.purchaseCalls) != 0 {
		t.Fatalf("no order and no debit without delivery info")
	}
}

func TestPurchase_SecondPhaseWithValidEmail(t *testing.T) {
	cat, prod := codeCategory("10.00")
	cat.DeliveryType = model.DeliveryEmail
	repo := &stubRepo{
		user:     activeUser("25.00"),
		category: cat,
		product:  prod,
		purchaseOrder: &model.Order{
			ID:           "o2",
			OrderNumber:  "AC-CCCC",
			TelegramID:   100,
			DeliveryType: model.DeliveryEmail,
			Status:       model.OrderStatusPending,
		},
	}
	svc := newTestService(repo, &recordingNotifier{})

	result, err := svc.Purchase(context.Background(), 100, "c1", "buyer@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrderType != OrderTypePending {
		t.Fatalf("manual delivery must produce a pending order")
	}
	if got := repo.purchaseCalls[0].AdditionalInfo; got != "buyer@example.com" {
		t.Fatalf("delivery info must reach the store, got %q", got)
	}
}

func TestPurchase_RejectsInvalidEmail(t *testing.T) {
	cat, prod := codeCategory("10.00")
	cat.DeliveryType = model.DeliveryEmail
	repo := &stubRepo{user: activeUser("25.00"), category: cat, product: prod}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.Purchase(context.Background(), 100, "c1", "not-an-email")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(repo.purchaseCalls) != 0 {
		t.Fatalf("invalid info must not create an order")
	}
}

func TestPurchase_BannedUser(t *testing.T) {
	cat, prod := codeCategory("10.00")
	user := activeUser("25.00")
	user.IsBanned = true
	repo := &stubRepo{user: user, category: cat, product: prod}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.Purchase(context.Background(), 100, "c1", "")
	if !errors.Is(err, ErrUserBanned) {
		t.Fatalf("expected ErrUserBanned, got %v", err)
	}
}

func TestPurchase_InactiveCategory(t *testing.T) {
	cat, prod := codeCategory("10.00")
	cat.IsActive = false
	repo := &stubRepo{user: activeUser("25.00"), category: cat, product: prod}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.Purchase(context.Background(), 100, "c1", "")
	if !errors.Is(err, ErrCategoryInactive) {
		t.Fatalf("expected ErrCategoryInactive, got %v", err)
	}
}

func TestPurchase_InactiveProductDisablesCategory(t *testing.T) {
	cat, prod := codeCategory("10.00")
	prod.IsActive = false
	repo := &stubRepo{user: activeUser("25.00"), category: cat, product: prod}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.Purchase(context.Background(), 100, "c1", "")
	if !errors.Is(err, ErrCategoryInactive) {
		t.Fatalf("expected ErrCategoryInactive for inactive product, got %v", err)
	}
}

func TestPurchase_UnknownUser(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.Purchase(context.Background(), 100, "c1", "")
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPurchase_ConcurrentCallsAreIndependent(t *testing.T) {
	cat, prod := codeCategory("10.00")
	repo := &stubRepo{
		user:     activeUser("100.00"),
		category: cat,
		product:  prod,
		purchaseOrder: &model.Order{
			OrderNumber:  "AC-EEEE",
			TelegramID:   100,
			DeliveryType: model.DeliveryCode,
			Status:       model.OrderStatusCompleted,
			CodeSent:     "CODE",
		},
	}
	svc := newTestService(repo, &recordingNotifier{})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Purchase(context.Background(), 100, "c1", "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("purchase %d failed: %v", i, err)
		}
	}
	if len(repo.purchaseCalls) != n {
		t.Fatalf("expected %d store executions, got %d", n, len(repo.purchaseCalls))
	}
}

func TestAdminFulfill_EmptyValueRejected(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.AdminFulfill(context.Background(), "o1", "   ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty value, got %v", err)
	}
}

func TestAdminFulfill_SecondAttemptRejected(t *testing.T) {
	repo := &stubRepo{completeErr: repository.ErrOrderAlreadyProcessed}
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	_, err := svc.AdminFulfill(context.Background(), "o1", "CODE-2")
	if !errors.Is(err, repository.ErrOrderAlreadyProcessed) {
		t.Fatalf("expected ErrOrderAlreadyProcessed, got %v", err)
	}
	if len(notifier.customer) != 0 {
		t.Fatalf("repeated fulfillment must not notify the customer")
	}
}

func TestAdminFulfill_NotifiesCustomer(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{
		completeOrder: &model.Order{
			ID:             "o1",
			OrderNumber:    "AC-DDDD",
			TelegramID:     100,
			Status:         model.OrderStatusCompleted,
			CodeSent:       "MANUAL-1",
			CompletionDate: &now,
		},
	}
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	order, err := svc.AdminFulfill(context.Background(), "o1", "MANUAL-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != model.OrderStatusCompleted {
		t.Fatalf("order must be completed")
	}
	if len(notifier.customer) != 1 || !strings.Contains(notifier.customer[0], "MANUAL-1") {
		t.Fatalf("customer must receive the fulfillment value, got %v", notifier.customer)
	}
}

func TestTopUpBalance_RejectsNonPositiveAmount(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &recordingNotifier{})

	err := svc.TopUpBalance(context.Background(), 100, decimal.Zero, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(repo.creditCalls) != 0 {
		t.Fatalf("no credit expected for non-positive amount")
	}
}

func TestTopUpBalance_UnconfirmedTransaction(t *testing.T) {
	repo := &stubRepo{}
	gw := &stubGateway{tx: &gateway.Transaction{Status: "pending", Amount: decimal.RequireFromString("50")}}
	svc := NewService(repo, &recordingNotifier{}, gw, zap.NewNop())

	err := svc.TopUpBalance(context.Background(), 100, decimal.RequireFromString("50"), "tx-1")
	if !errors.Is(err, ErrPaymentUnconfirmed) {
		t.Fatalf("expected ErrPaymentUnconfirmed, got %v", err)
	}
	if len(repo.creditCalls) != 0 {
		t.Fatalf("no credit without gateway confirmation")
	}
}

func TestTopUpBalance_ConfirmedTransactionCredits(t *testing.T) {
	repo := &stubRepo{}
	gw := &stubGateway{tx: &gateway.Transaction{Status: "succeeded", Amount: decimal.RequireFromString("50")}}
	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier, gw, zap.NewNop())

	err := svc.TopUpBalance(context.Background(), 100, decimal.RequireFromString("50"), "tx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.creditCalls) != 1 || !repo.creditCalls[0].Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected one credit of 50, got %v", repo.creditCalls)
	}
	if len(notifier.customer) != 1 {
		t.Fatalf("customer must be notified of the top-up")
	}
}

func TestAddCodes_RejectsManualCategory(t *testing.T) {
	cat, prod := codeCategory("10.00")
	cat.DeliveryType = model.DeliveryManual
	repo := &stubRepo{category: cat, product: prod}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.AddCodes(context.Background(), "c1", model.CodeTypeText, []model.Code{{Code: "A"}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for manual category, got %v", err)
	}
	if repo.insertedCodes != 0 {
		t.Fatalf("codes must not be inserted into a manual category")
	}
}

func TestLowStockReport_FiltersByThreshold(t *testing.T) {
	repo := &stubRepo{stock: []repository.CategoryStock{
		{CategoryID: "c1", CategoryName: "low", Available: LowStockThreshold},
		{CategoryID: "c2", CategoryName: "ok", Available: LowStockThreshold + 1},
		{CategoryID: "c3", CategoryName: "empty", Available: 0},
	}}
	svc := newTestService(repo, &recordingNotifier{})

	low, err := svc.LowStockReport(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("expected 2 low-stock categories, got %d", len(low))
	}
	for _, cs := range low {
		if cs.Available > LowStockThreshold {
			t.Fatalf("category %s is above the threshold", cs.CategoryID)
		}
	}
}

func TestGetOrderForCustomer_HidesForeignOrders(t *testing.T) {
	repo := &stubRepo{getOrder: &model.Order{ID: "o1", TelegramID: 200}}
	svc := newTestService(repo, &recordingNotifier{})

	_, err := svc.GetOrderForCustomer(context.Background(), "o1", 100)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("foreign order must look like not found, got %v", err)
	}
}

func TestNewOrderNumberFormat(t *testing.T) {
	n := newOrderNumber()
	if !strings.HasPrefix(n, "AC-") {
		t.Fatalf("order number must start with AC-, got %q", n)
	}
	if len(n) != len("AC-")+10 {
		t.Fatalf("unexpected order number length: %q", n)
	}
	if n == newOrderNumber() {
		t.Fatalf("order numbers must be unique")
	}
}
