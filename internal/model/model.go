package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Address      string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

type Category struct {
	ID          uuid.UUID
	Name        string
	Description string
	ImageURL    string
	CreatedAt   time.Time
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	CategoryID  *uuid.UUID
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductPatch carries the fields of a partial product update. Nil fields are
// left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	ImageURL    *string
	CategoryID  *uuid.UUID
	IsAvailable *bool
}

func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.ImageURL == nil && p.CategoryID == nil && p.IsAvailable == nil
}

func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.ImageURL != nil {
		product.ImageURL = *p.ImageURL
	}
	if p.CategoryID != nil {
		id := *p.CategoryID
		product.CategoryID = &id
	}
	if p.IsAvailable != nil {
		product.IsAvailable = *p.IsAvailable
	}
}

type ProductFilter struct {
	CategoryID    *uuid.UUID
	AvailableOnly bool
}

type PaymentMethod string

const (
	PaymentMethodGateway PaymentMethod = "gateway"
	PaymentMethodCash    PaymentMethod = "cash"
)

type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusCashOnDelivery PaymentStatus = "cash_on_delivery"
)

// InitialPaymentStatus is the payment status an order starts with.
func (m PaymentMethod) InitialPaymentStatus() PaymentStatus {
	if m == PaymentMethodCash {
		return PaymentStatusCashOnDelivery
	}
	return PaymentStatusPending
}

type Order struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	TotalAmount      decimal.Decimal
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	Status           OrderStatus
	DeliveryAddress  string
	Phone            string
	PaymentSessionID *string
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MaxQuantity bounds a single order line.
const MaxQuantity = 1000

// MaxAmount is the largest value a NUMERIC(10,2) money column holds.
var MaxAmount = decimal.New(9999999999, -2)

// ValidAmount reports whether d is a non-negative amount with at most two
// decimal places that fits a money column.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2)) && d.LessThanOrEqual(MaxAmount)
}

type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderLine is one requested (product, quantity) pair of a new order.
type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

type PaymentTransaction struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	UserID        uuid.UUID
	SessionID     *string
	Amount        decimal.Decimal
	Currency      string
	PaymentStatus PaymentStatus
	Status        string
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const PaymentTransactionInitiated = "initiated"

type ProductSales struct {
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
	Revenue     decimal.Decimal
}

type SalesSummary struct {
	TotalOrders  int
	TotalRevenue decimal.Decimal
	StatusCounts map[OrderStatus]int
	TopProducts  []ProductSales
}
