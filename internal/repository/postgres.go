// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/abodcard/storefront/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound возвращается, если покупатель не найден.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductNotFound возвращается, если продукт не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderAlreadyProcessed возвращается при повторном закрытии уже выполненного заказа.
	ErrOrderAlreadyProcessed = errors.New("order already processed")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure и Deadlock.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// EnsureUser возвращает покупателя по telegram_id, создавая запись при первом обращении.
func (r *PostgresRepository) EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, telegram_id, username, first_name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (telegram_id) DO UPDATE
		 SET username = EXCLUDED.username, first_name = EXCLUDED.first_name
		 RETURNING id, telegram_id, username, first_name, balance, orders_count, is_banned, ban_reason, join_date`,
		uuid.NewString(), telegramID, username, firstName,
	)
	return scanUser(row)
}

// GetUserByTelegramID возвращает покупателя по telegram_id.
func (r *PostgresRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, telegram_id, username, first_name, balance, orders_count, is_banned, ban_reason, join_date
		 FROM users WHERE telegram_id = $1`,
		telegramID,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.Balance, &u.OrdersCount, &u.IsBanned, &u.BanReason, &u.JoinDate)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers возвращает покупателей в порядке регистрации.
func (r *PostgresRepository) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, telegram_id, username, first_name, balance, orders_count, is_banned, ban_reason, join_date
		 FROM users ORDER BY join_date DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

// CreditBalance атомарно увеличивает баланс покупателя.
func (r *PostgresRepository) CreditBalance(ctx context.Context, telegramID int64, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET balance = balance + $2 WHERE telegram_id = $1`,
		telegramID, amount,
	)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserBanned выставляет или снимает блокировку покупателя.
func (r *PostgresRepository) SetUserBanned(ctx context.Context, telegramID int64, banned bool, reason string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_banned = $2, ban_reason = $3 WHERE telegram_id = $1`,
		telegramID, banned, reason,
	)
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateProduct сохраняет новый продукт. Идентификатор назначается здесь.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	p.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (id, name, description, terms, category_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, is_active`,
		p.ID, p.Name, p.Description, p.Terms, string(p.CategoryType),
	).Scan(&p.CreatedAt, &p.IsActive)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// ListProducts возвращает продукты; при activeOnly скрытые не попадают в выдачу.
func (r *PostgresRepository) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	q := `SELECT id, name, description, terms, category_type, is_active, created_at FROM products`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var ct string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Terms, &ct, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.CategoryType = model.CategoryType(ct)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}

// DeactivateProduct мягко удаляет продукт вместе с его категориями.
func (r *PostgresRepository) DeactivateProduct(ctx context.Context, productID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE products SET is_active = FALSE WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE categories SET is_active = FALSE WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("deactivate categories: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateCategory сохраняет новую категорию под существующим продуктом.
func (r *PostgresRepository) CreateCategory(ctx context.Context, c *model.Category) error {
	c.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (id, product_id, name, description, category_type, price, delivery_type, redemption_method, terms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, is_active`,
		c.ID, c.ProductID, c.Name, c.Description, string(c.CategoryType), c.Price, string(c.DeliveryType), c.RedemptionMethod, c.Terms,
	).Scan(&c.CreatedAt, &c.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrProductNotFound
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// GetCategoryWithProduct возвращает категорию вместе с её родительским продуктом.
func (r *PostgresRepository) GetCategoryWithProduct(ctx context.Context, categoryID string) (*model.Category, *model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT c.id, c.product_id, c.name, c.description, c.category_type, c.price, c.delivery_type,
		        c.redemption_method, c.terms, c.is_active, c.created_at,
		        p.id, p.name, p.description, p.terms, p.category_type, p.is_active, p.created_at
		 FROM categories c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.id = $1`,
		categoryID,
	)

	var c model.Category
	var p model.Product
	var cType, pType, dType string
	err := row.Scan(&c.ID, &c.ProductID, &c.Name, &c.Description, &cType, &c.Price, &dType,
		&c.RedemptionMethod, &c.Terms, &c.IsActive, &c.CreatedAt,
		&p.ID, &p.Name, &p.Description, &p.Terms, &pType, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrCategoryNotFound
		}
		return nil, nil, fmt.Errorf("get category: %w", err)
	}
	c.CategoryType = model.CategoryType(cType)
	c.DeliveryType = model.DeliveryType(dType)
	p.CategoryType = model.CategoryType(pType)
	return &c, &p, nil
}

// ListCategoriesByProduct возвращает категории продукта.
func (r *PostgresRepository) ListCategoriesByProduct(ctx context.Context, productID string, activeOnly bool) ([]model.Category, error) {
	q := `SELECT id, product_id, name, description, category_type, price, delivery_type, redemption_method, terms, is_active, created_at
	      FROM categories WHERE product_id = $1`
	if activeOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, q, productID)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		var cType, dType string
		if err := rows.Scan(&c.ID, &c.ProductID, &c.Name, &c.Description, &cType, &c.Price, &dType,
			&c.RedemptionMethod, &c.Terms, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CategoryType = model.CategoryType(cType)
		c.DeliveryType = model.DeliveryType(dType)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return categories, nil
}

// InsertCodes сохраняет пачку кодов одной категории. Возвращает количество добавленных.
func (r *PostgresRepository) InsertCodes(ctx context.Context, codes []model.Code) (int, error) {
	batch := &pgx.Batch{}
	for i := range codes {
		codes[i].ID = uuid.NewString()
		batch.Queue(
			`INSERT INTO codes (id, category_id, code, serial_number, code_type)
			 VALUES ($1, $2, $3, $4, $5)`,
			codes[i].ID, codes[i].CategoryID, codes[i].Code, codes[i].SerialNumber, string(codes[i].CodeType),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range codes {
		if _, err := br.Exec(); err != nil {
			return inserted, fmt.Errorf("insert code: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// CountAvailableCodes возвращает число свободных кодов в категории.
func (r *PostgresRepository) CountAvailableCodes(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM codes WHERE category_id = $1 AND NOT is_used`,
		categoryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count codes: %w", err)
	}
	return count, nil
}

// CategoryStock описывает запас кодов одной категории.
type CategoryStock struct {
	CategoryID   string
	CategoryName string
	Total        int
	Available    int
}

// ListCodeCategoryStock возвращает запас кодов по всем категориям с автоматической выдачей.
func (r *PostgresRepository) ListCodeCategoryStock(ctx context.Context) ([]CategoryStock, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name,
		        COUNT(k.id),
		        COUNT(k.id) FILTER (WHERE NOT k.is_used)
		 FROM categories c
		 LEFT JOIN codes k ON k.category_id = c.id
		 WHERE c.delivery_type = 'code'
		 GROUP BY c.id, c.name
		 ORDER BY c.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select stock: %w", err)
	}
	defer rows.Close()

	var res []CategoryStock
	for rows.Next() {
		var s CategoryStock
		if err := rows.Scan(&s.CategoryID, &s.CategoryName, &s.Total, &s.Available); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// PurchaseParams описывает проверенную заявку на покупку.
type PurchaseParams struct {
	User           *model.User
	Category       *model.Category
	Product        *model.Product
	OrderNumber    string
	AdditionalInfo string
}

// ExecutePurchase выполняет покупку одной транзакцией: условное списание с баланса,
// захват кода (для категорий с автоматической выдачей) и создание заказа.
// Списание идёт с проверкой остатка в самом UPDATE, поэтому баланс не может уйти
// в минус даже при параллельных покупках одного пользователя. Исчерпание пула
// кодов не является ошибкой: заказ создаётся в статусе pending.
func (r *PostgresRepository) ExecutePurchase(ctx context.Context, p PurchaseParams) (*model.Order, error) {
	var order *model.Order
	err := r.withRetry(ctx, func() error {
		var err error
		order, err = r.executePurchaseTx(ctx, p)
		return err
	})
	return order, err
}

func (r *PostgresRepository) executePurchaseTx(ctx context.Context, p PurchaseParams) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE users
		 SET balance = balance - $2, orders_count = orders_count + 1
		 WHERE telegram_id = $1 AND balance >= $2`,
		p.User.TelegramID, p.Category.Price,
	)
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE telegram_id = $1)`, p.User.TelegramID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return nil, ErrUserNotFound
		}
		return nil, ErrInsufficientBalance
	}

	order := &model.Order{
		ID:             uuid.NewString(),
		OrderNumber:    p.OrderNumber,
		UserID:         p.User.ID,
		TelegramID:     p.User.TelegramID,
		ProductName:    p.Product.Name,
		CategoryName:   p.Category.Name,
		CategoryID:     p.Category.ID,
		Price:          p.Category.Price,
		DeliveryType:   p.Category.DeliveryType,
		Status:         model.OrderStatusPending,
		AdditionalInfo: p.AdditionalInfo,
	}

	if p.Category.DeliveryType == model.DeliveryCode {
		// SKIP LOCKED исключает выдачу одного кода двум конкурирующим покупкам.
		var code, serial string
		err := tx.QueryRow(ctx,
			`UPDATE codes
			 SET is_used = TRUE, used_by = $2, used_at = now()
			 WHERE id = (
			     SELECT id FROM codes
			     WHERE category_id = $1 AND NOT is_used
			     ORDER BY created_at
			     LIMIT 1
			     FOR UPDATE SKIP LOCKED
			 )
			 RETURNING code, serial_number`,
			p.Category.ID, p.User.ID,
		).Scan(&code, &serial)
		switch {
		case err == nil:
			order.Status = model.OrderStatusCompleted
			order.CodeSent = code
			if serial != "" {
				order.CodeSent = code + " | SN: " + serial
			}
		case errors.Is(err, pgx.ErrNoRows):
			// Пул пуст: покупка принята, выдача откладывается до ручного выполнения.
		default:
			return nil, fmt.Errorf("claim code: %w", err)
		}
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, telegram_id, product_name, category_name, category_id,
		                     price, delivery_type, status, code_sent, additional_info,
		                     completion_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         CASE WHEN $10 = 'completed' THEN now() END)
		 RETURNING order_date, completion_date`,
		order.ID, order.OrderNumber, order.UserID, order.TelegramID, order.ProductName, order.CategoryName,
		order.CategoryID, order.Price, string(order.DeliveryType), string(order.Status), order.CodeSent, order.AdditionalInfo,
	)
	if err := row.Scan(&order.OrderDate, &order.CompletionDate); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrder+` WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

const selectOrder = `SELECT id, order_number, user_id, telegram_id, product_name, category_name, category_id,
       price, delivery_type, status, code_sent, additional_info, admin_notes, order_date, completion_date
  FROM orders`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var dType, status string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.TelegramID, &o.ProductName, &o.CategoryName,
		&o.CategoryID, &o.Price, &dType, &status, &o.CodeSent, &o.AdditionalInfo, &o.AdminNotes,
		&o.OrderDate, &o.CompletionDate)
	if err != nil {
		return nil, err
	}
	o.DeliveryType = model.DeliveryType(dType)
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func (r *PostgresRepository) listOrders(ctx context.Context, q string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// ListOrdersByTelegramID возвращает заказы покупателя, новые первыми.
func (r *PostgresRepository) ListOrdersByTelegramID(ctx context.Context, telegramID int64, limit int) ([]model.Order, error) {
	return r.listOrders(ctx, selectOrder+` WHERE telegram_id = $1 ORDER BY order_date DESC LIMIT $2`, telegramID, limit)
}

// ListPendingOrders возвращает заказы, ожидающие ручного выполнения.
func (r *PostgresRepository) ListPendingOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return r.listOrders(ctx, selectOrder+` WHERE status = 'pending' ORDER BY order_date LIMIT $1`, limit)
}

// ListOrders возвращает последние заказы для веб-интерфейса.
func (r *PostgresRepository) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return r.listOrders(ctx, selectOrder+` ORDER BY order_date DESC LIMIT $1`, limit)
}

// CompleteOrder переводит заказ из pending в completed и записывает выданное значение.
// Повторный вызов по уже закрытому заказу отклоняется без изменения code_sent.
func (r *PostgresRepository) CompleteOrder(ctx context.Context, orderID, value string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE orders
		 SET status = 'completed', code_sent = $2, completion_date = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING id, order_number, user_id, telegram_id, product_name, category_name, category_id,
		           price, delivery_type, status, code_sent, additional_info, admin_notes, order_date, completion_date`,
		orderID, value,
	)
	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("complete order: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, ErrOrderNotFound
	}
	return nil, ErrOrderAlreadyProcessed
}

// SalesStats агрегирует показатели для админского отчёта.
type SalesStats struct {
	TotalUsers      int
	TotalOrders     int
	CompletedOrders int
	PendingOrders   int
	TotalRevenue    decimal.Decimal
	TodayOrders     int
}

// GetSalesStats возвращает сводную статистику магазина.
func (r *PostgresRepository) GetSalesStats(ctx context.Context) (*SalesStats, error) {
	var s SalesStats
	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM users),
		        COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COALESCE(SUM(price) FILTER (WHERE status = 'completed'), 0),
		        COUNT(*) FILTER (WHERE order_date >= date_trunc('day', now()))
		 FROM orders`,
	).Scan(&s.TotalUsers, &s.TotalOrders, &s.CompletedOrders, &s.PendingOrders, &s.TotalRevenue, &s.TodayOrders)
	if err != nil {
		return nil, fmt.Errorf("sales stats: %w", err)
	}
	return &s, nil
}

// GetSession возвращает активную сессию актора либо nil, если её нет.
func (r *PostgresRepository) GetSession(ctx context.Context, telegramID int64, role model.SessionRole) (*model.Session, error) {
	var s model.Session
	var roleStr string
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT telegram_id, role, state, data, updated_at FROM sessions WHERE telegram_id = $1 AND role = $2`,
		telegramID, string(role),
	).Scan(&s.TelegramID, &roleStr, &s.State, &data, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Role = model.SessionRole(roleStr)
	if err := json.Unmarshal(data, &s.Data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return &s, nil
}

// SaveSession целиком замещает сессию актора (upsert).
func (r *PostgresRepository) SaveSession(ctx context.Context, s *model.Session) error {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	data, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO sessions (telegram_id, role, state, data, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (telegram_id, role) DO UPDATE
		 SET state = EXCLUDED.state, data = EXCLUDED.data, updated_at = now()`,
		s.TelegramID, string(s.Role), s.State, data,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession удаляет сессию актора.
func (r *PostgresRepository) ClearSession(ctx context.Context, telegramID int64, role model.SessionRole) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM sessions WHERE telegram_id = $1 AND role = $2`,
		telegramID, string(role),
	)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// DeleteStaleSessions удаляет сессии, не обновлявшиеся с указанного момента.
func (r *PostgresRepository) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
