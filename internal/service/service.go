// Package service реализует бизнес-логику магазина: движок покупок,
// закрытие заказов администратором и операции каталога.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abodcard/storefront/internal/gateway"
	"github.com/abodcard/storefront/internal/model"
	"github.com/abodcard/storefront/internal/repository"
	"github.com/abodcard/storefront/internal/validation"
)

// ErrUserBanned возвращается при покупке от заблокированного пользователя.
var (
	ErrUserBanned = errors.New("user is banned")
	// ErrCategoryInactive возвращается, если категория или её продукт отключены.
	ErrCategoryInactive = errors.New("category is inactive")
	// ErrDeliveryInfoRequired сигнализирует, что до оплаты нужно собрать данные покупателя.
	ErrDeliveryInfoRequired = errors.New("delivery info required")
	// ErrInvalidInput возвращается при некорректном пользовательском вводе.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPaymentUnconfirmed возвращается, если шлюз не подтвердил транзакцию пополнения.
	ErrPaymentUnconfirmed = errors.New("payment not confirmed")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*model.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
	CreditBalance(ctx context.Context, telegramID int64, amount decimal.Decimal) error
	SetUserBanned(ctx context.Context, telegramID int64, banned bool, reason string) error

	CreateProduct(ctx context.Context, p *model.Product) error
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)
	DeactivateProduct(ctx context.Context, productID string) error
	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategoryWithProduct(ctx context.Context, categoryID string) (*model.Category, *model.Product, error)
	ListCategoriesByProduct(ctx context.Context, productID string, activeOnly bool) ([]model.Category, error)

	InsertCodes(ctx context.Context, codes []model.Code) (int, error)
	CountAvailableCodes(ctx context.Context, categoryID string) (int, error)
	ListCodeCategoryStock(ctx context.Context) ([]repository.CategoryStock, error)

	ExecutePurchase(ctx context.Context, p repository.PurchaseParams) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ListOrdersByTelegramID(ctx context.Context, telegramID int64, limit int) ([]model.Order, error)
	ListPendingOrders(ctx context.Context, limit int) ([]model.Order, error)
	ListOrders(ctx context.Context, limit int) ([]model.Order, error)
	CompleteOrder(ctx context.Context, orderID, value string) (*model.Order, error)
	GetSalesStats(ctx context.Context) (*repository.SalesStats, error)
}

// Notifier доставляет сообщения покупателям и администраторам.
// Доставка best-effort: сервис не проверяет её успех.
type Notifier interface {
	NotifyCustomer(chatID int64, text string)
	NotifyAdmins(text string)
}

// Gateway проверяет транзакции пополнения во внешнем платёжном шлюзе.
type Gateway interface {
	GetTransaction(ctx context.Context, ref string) (*gateway.Transaction, error)
}

// OrderType различает мгновенную выдачу и отложенное выполнение.
type OrderType string

const (
	// OrderTypeInstant — код выдан сразу из пула.
	OrderTypeInstant OrderType = "instant"
	// OrderTypePending — заказ принят и ждёт ручного выполнения.
	OrderTypePending OrderType = "pending"
)

// PurchaseResult — итог успешной покупки.
type PurchaseResult struct {
	Order     *model.Order
	OrderType OrderType
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo     Repository
	notifier Notifier
	gateway  Gateway
	logger   *zap.Logger
}

// NewService создаёт сервис. Платёжный шлюз опционален.
func NewService(repo Repository, notifier Notifier, gw Gateway, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		gateway:  gw,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func newOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AC-" + strings.ToUpper(raw[:10])
}

// Purchase выполняет покупку категории от имени покупателя.
//
// Порядок проверок фиксирован: существование и блокировка покупателя, активность
// категории и продукта, достаточность баланса, затем полнота дополнительных данных.
// Для типов выдачи phone/email/id вызов без additionalInfo не создаёт ни заказа,
// ни списания — возвращается ErrDeliveryInfoRequired, и вызывающий собирает данные
// и повторяет вызов. Ни одна из проверок не оставляет частичных изменений.
//
// Исчерпание пула кодов не считается ошибкой: покупатель уже заплатил, заказ
// создаётся в статусе pending и выполняется администратором вручную.
func (s *Service) Purchase(ctx context.Context, telegramID int64, categoryID, additionalInfo string) (*PurchaseResult, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrUserBanned
	}

	category, product, err := s.repo.GetCategoryWithProduct(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsActive || !product.IsActive {
		return nil, ErrCategoryInactive
	}

	// Предварительная проверка для быстрого отказа; гарантию от ухода в минус
	// даёт условное списание внутри транзакции покупки.
	if user.Balance.LessThan(category.Price) {
		return nil, repository.ErrInsufficientBalance
	}

	additionalInfo = strings.TrimSpace(additionalInfo)
	if category.DeliveryType.RequiresInput() {
		if additionalInfo == "" {
			return nil, ErrDeliveryInfoRequired
		}
		if !validation.ValidateDeliveryInfo(category.DeliveryType, additionalInfo) {
			return nil, fmt.Errorf("%w: bad %s", ErrInvalidInput, category.DeliveryType)
		}
	}

	order, err := s.repo.ExecutePurchase(ctx, repository.PurchaseParams{
		User:           user,
		Category:       category,
		Product:        product,
		OrderNumber:    newOrderNumber(),
		AdditionalInfo: additionalInfo,
	})
	if err != nil {
		return nil, err
	}

	result := &PurchaseResult{Order: order, OrderType: OrderTypePending}
	if order.Status == model.OrderStatusCompleted {
		result.OrderType = OrderTypeInstant
	}

	s.notifyPurchase(order, category)

	s.logger.Info("purchase executed",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("telegram_id", telegramID),
		zap.String("category_id", categoryID),
		zap.String("order_type", string(result.OrderType)),
	)

	return result, nil
}

func (s *Service) notifyPurchase(order *model.Order, category *model.Category) {
	switch {
	case order.Status == model.OrderStatusCompleted:
		s.notifier.NotifyCustomer(order.TelegramID, msgPurchaseInstant(order, category.RedemptionMethod))
		s.notifier.NotifyAdmins(msgAdminSale(order))
	case order.DeliveryType == model.DeliveryCode:
		// Пул кодов пуст: покупатель предупреждён о задержке, администраторы — о нехватке.
		s.notifier.NotifyCustomer(order.TelegramID, msgPurchaseDelayed(order))
		s.notifier.NotifyAdmins(msgAdminOutOfStock(order))
	default:
		s.notifier.NotifyCustomer(order.TelegramID, msgPurchaseQueued(order))
		s.notifier.NotifyAdmins(msgAdminManualOrder(order))
	}
}

// AdminFulfill закрывает ожидающий заказ вручную введённым значением.
// Повторный вызов по закрытому заказу отклоняется и не меняет выданное значение.
func (s *Service) AdminFulfill(ctx context.Context, orderID, value string) (*model.Order, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty fulfillment value", ErrInvalidInput)
	}

	order, err := s.repo.CompleteOrder(ctx, orderID, value)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCustomer(order.TelegramID, msgOrderFulfilled(order))
	s.notifier.NotifyAdmins(msgAdminFulfilled(order))

	s.logger.Info("order fulfilled",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
	)

	return order, nil
}

// TopUpBalance пополняет кошелёк покупателя. Если указана ссылка на транзакцию
// и настроен платёжный шлюз, пополнение проходит только после его подтверждения.
func (s *Service) TopUpBalance(ctx context.Context, telegramID int64, amount decimal.Decimal, gatewayRef string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	if gatewayRef != "" && s.gateway != nil {
		tx, err := s.gateway.GetTransaction(ctx, gatewayRef)
		if err != nil {
			return fmt.Errorf("verify transaction: %w", err)
		}
		if !tx.Confirmed() || tx.Amount.LessThan(amount) {
			return ErrPaymentUnconfirmed
		}
	}

	if err := s.repo.CreditBalance(ctx, telegramID, amount); err != nil {
		return err
	}

	s.notifier.NotifyCustomer(telegramID, msgTopUp(amount))

	s.logger.Info("balance credited",
		zap.Int64("telegram_id", telegramID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return nil
}

// BanUser блокирует покупателя с указанием причины.
func (s *Service) BanUser(ctx context.Context, telegramID int64, reason string) error {
	return s.repo.SetUserBanned(ctx, telegramID, true, reason)
}

// UnbanUser снимает блокировку.
func (s *Service) UnbanUser(ctx context.Context, telegramID int64) error {
	return s.repo.SetUserBanned(ctx, telegramID, false, "")
}

// EnsureUser регистрирует покупателя при первом контакте.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*model.User, error) {
	return s.repo.EnsureUser(ctx, telegramID, username, firstName)
}

// GetUser возвращает покупателя по telegram_id.
func (s *Service) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.repo.GetUserByTelegramID(ctx, telegramID)
}

// ListUsers возвращает список покупателей.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	return s.repo.ListUsers(ctx, limit)
}

// CreateProduct добавляет продукт в каталог.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty product name", ErrInvalidInput)
	}
	return s.repo.CreateProduct(ctx, p)
}

// ListProducts возвращает продукты каталога.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

// DeactivateProduct мягко удаляет продукт вместе с категориями.
func (s *Service) DeactivateProduct(ctx context.Context, productID string) error {
	return s.repo.DeactivateProduct(ctx, productID)
}

// CreateCategory добавляет категорию под продуктом.
func (s *Service) CreateCategory(ctx context.Context, c *model.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: empty category name", ErrInvalidInput)
	}
	if !c.DeliveryType.Valid() {
		return fmt.Errorf("%w: unknown delivery type %q", ErrInvalidInput, c.DeliveryType)
	}
	if !c.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	return s.repo.CreateCategory(ctx, c)
}

// GetCategory возвращает категорию вместе с родительским продуктом.
func (s *Service) GetCategory(ctx context.Context, categoryID string) (*model.Category, *model.Product, error) {
	return s.repo.GetCategoryWithProduct(ctx, categoryID)
}

// ListCategories возвращает категории продукта.
func (s *Service) ListCategories(ctx context.Context, productID string, activeOnly bool) ([]model.Category, error) {
	return s.repo.ListCategoriesByProduct(ctx, productID, activeOnly)
}

// AddCodes разбирает построчный ввод и пополняет пул кодов категории.
func (s *Service) AddCodes(ctx context.Context, categoryID string, codeType model.CodeType, parsed []model.Code) (int, error) {
	category, _, err := s.repo.GetCategoryWithProduct(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	if category.DeliveryType != model.DeliveryCode {
		return 0, fmt.Errorf("%w: category does not take codes", ErrInvalidInput)
	}
	return s.repo.InsertCodes(ctx, parsed)
}

// CountAvailableCodes возвращает остаток кодов категории.
func (s *Service) CountAvailableCodes(ctx context.Context, categoryID string) (int, error) {
	return s.repo.CountAvailableCodes(ctx, categoryID)
}

// LowStockThreshold — остаток, при котором категория попадает в предупреждения.
const LowStockThreshold = 5

// LowStockReport возвращает категории с остатком не выше порога.
func (s *Service) LowStockReport(ctx context.Context) ([]repository.CategoryStock, error) {
	stock, err := s.repo.ListCodeCategoryStock(ctx)
	if err != nil {
		return nil, err
	}
	var low []repository.CategoryStock
	for _, cs := range stock {
		if cs.Available <= LowStockThreshold {
			low = append(low, cs)
		}
	}
	return low, nil
}

// StockReport возвращает запас кодов по всем категориям.
func (s *Service) StockReport(ctx context.Context) ([]repository.CategoryStock, error) {
	return s.repo.ListCodeCategoryStock(ctx)
}

// SalesReport возвращает сводную статистику магазина.
func (s *Service) SalesReport(ctx context.Context) (*repository.SalesStats, error) {
	return s.repo.GetSalesStats(ctx)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// GetOrderForCustomer возвращает заказ, только если он принадлежит покупателю.
func (s *Service) GetOrderForCustomer(ctx context.Context, orderID string, telegramID int64) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.TelegramID != telegramID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// ListOrdersByUser возвращает заказы покупателя.
func (s *Service) ListOrdersByUser(ctx context.Context, telegramID int64, limit int) ([]model.Order, error) {
	return s.repo.ListOrdersByTelegramID(ctx, telegramID, limit)
}

// ListPendingOrders возвращает заказы в очереди на ручное выполнение.
func (s *Service) ListPendingOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return s.repo.ListPendingOrders(ctx, limit)
}

// ListOrders возвращает последние заказы.
func (s *Service) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, limit)
}
