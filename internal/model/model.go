// Package model содержит доменные сущности магазина Abod Card.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет покупателя с долларовым кошельком.
type User struct {
	ID          string
	TelegramID  int64
	Username    string
	FirstName   string
	Balance     decimal.Decimal
	OrdersCount int
	IsBanned    bool
	BanReason   string
	JoinDate    time.Time
}

// CategoryType группирует товары по витринам.
type CategoryType string

const (
	CategoryTypeGames         CategoryType = "games"
	CategoryTypeGiftCards     CategoryType = "gift_cards"
	CategoryTypeEcommerce     CategoryType = "ecommerce"
	CategoryTypeSubscriptions CategoryType = "subscriptions"
	CategoryTypeGeneral       CategoryType = "general"
)

// Product — продаваемая линейка (например, "Steam Wallet").
type Product struct {
	ID           string
	Name         string
	Description  string
	Terms        string
	CategoryType CategoryType
	IsActive     bool
	CreatedAt    time.Time
}

// DeliveryType определяет способ выдачи товара после оплаты.
type DeliveryType string

const (
	// DeliveryCode — автоматическая выдача кода из пула.
	DeliveryCode DeliveryType = "code"
	// DeliveryPhone — покупатель указывает номер телефона, выдача вручную.
	DeliveryPhone DeliveryType = "phone"
	// DeliveryEmail — покупатель указывает почту, выдача вручную.
	DeliveryEmail DeliveryType = "email"
	// DeliveryAccountID — покупатель указывает идентификатор аккаунта, выдача вручную.
	DeliveryAccountID DeliveryType = "id"
	// DeliveryManual — всегда ручная обработка без дополнительных данных.
	DeliveryManual DeliveryType = "manual"
)

// RequiresInput сообщает, нужны ли от покупателя дополнительные данные до оплаты.
func (d DeliveryType) RequiresInput() bool {
	return d == DeliveryPhone || d == DeliveryEmail || d == DeliveryAccountID
}

// Valid проверяет, что тип выдачи входит в закрытый набор.
func (d DeliveryType) Valid() bool {
	switch d {
	case DeliveryCode, DeliveryPhone, DeliveryEmail, DeliveryAccountID, DeliveryManual:
		return true
	}
	return false
}

// Category — конкретная покупаемая позиция внутри продукта.
type Category struct {
	ID               string
	ProductID        string
	Name             string
	Description      string
	CategoryType     CategoryType
	Price            decimal.Decimal
	DeliveryType     DeliveryType
	RedemptionMethod string
	Terms            string
	IsActive         bool
	CreatedAt        time.Time
}

// CodeType описывает формат одноразового кода.
type CodeType string

const (
	CodeTypeText   CodeType = "text"
	CodeTypeNumber CodeType = "number"
	// CodeTypeDual — код вместе с серийным номером.
	CodeTypeDual CodeType = "dual"
)

// Code — одноразовый ключ, принадлежащий одной категории.
// Переход is_used false→true происходит ровно один раз и необратим.
type Code struct {
	ID           string
	CategoryID   string
	Code         string
	SerialNumber string
	CodeType     CodeType
	IsUsed       bool
	UsedBy       string
	UsedAt       *time.Time
	CreatedAt    time.Time
}

// OrderStatus описывает состояние заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order — запись о покупке. Названия продукта и категории денормализованы
// на момент покупки, чтобы история оставалась точной после переименований.
type Order struct {
	ID             string
	OrderNumber    string
	UserID         string
	TelegramID     int64
	ProductName    string
	CategoryName   string
	CategoryID     string
	Price          decimal.Decimal
	DeliveryType   DeliveryType
	Status         OrderStatus
	CodeSent       string
	AdditionalInfo string
	AdminNotes     string
	OrderDate      time.Time
	CompletionDate *time.Time
}

// SessionRole разделяет сессии покупателя и администратора.
type SessionRole string

const (
	RoleCustomer SessionRole = "customer"
	RoleAdmin    SessionRole = "admin"
)

// Session хранит состояние одного многошагового диалога актора.
// На пару (telegram_id, role) существует не более одной активной сессии.
type Session struct {
	TelegramID int64
	Role       SessionRole
	State      string
	Data       map[string]string
	UpdatedAt  time.Time
}
