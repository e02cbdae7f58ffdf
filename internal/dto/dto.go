package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/food-ordering-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID       uuid.UUID  `json:"id"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	Phone    string     `json:"phone"`
	Address  string     `json:"address"`
	Role     model.Role `json:"role"`
}

func ToUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID: user.ID, Email: user.Email, FullName: user.FullName,
		Phone: user.Phone, Address: user.Address, Role: user.Role,
	}
}

// --- Category ---

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type CategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// --- Product ---

type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	ImageURL    string           `json:"image_url"`
	CategoryID  *uuid.UUID       `json:"category_id"`
	IsAvailable *bool            `json:"is_available"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url"`
	CategoryID  *uuid.UUID       `json:"category_id"`
	IsAvailable *bool            `json:"is_available"`
}

func (r UpdateProductRequest) Patch() model.ProductPatch {
	return model.ProductPatch{
		Name: r.Name, Description: r.Description, Price: r.Price,
		ImageURL: r.ImageURL, CategoryID: r.CategoryID, IsAvailable: r.IsAvailable,
	}
}

type ListProductsRequest struct {
	CategoryID string `form:"category_id"`
}

type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	CategoryID  *uuid.UUID      `json:"category_id"`
	IsAvailable bool            `json:"is_available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// --- Order ---

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=1000"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest  `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   model.PaymentMethod `json:"payment_method" binding:"required,oneof=gateway cash"`
	DeliveryAddress string              `json:"delivery_address" binding:"required"`
	Phone           string              `json:"phone" binding:"required"`
}

func (r CreateOrderRequest) Lines() []model.OrderLine {
	lines := make([]model.OrderLine, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, model.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type SalesSummaryRequest struct {
	Period string `form:"period,default=all" binding:"oneof=today week month all"`
}

type OrderResponse struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"user_id"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	PaymentMethod    model.PaymentMethod `json:"payment_method"`
	PaymentStatus    model.PaymentStatus `json:"payment_status"`
	OrderStatus      model.OrderStatus   `json:"order_status"`
	DeliveryAddress  string              `json:"delivery_address"`
	Phone            string              `json:"phone"`
	PaymentSessionID *string             `json:"payment_session_id"`
	Items            []OrderItemResponse `json:"items"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type ProductSalesResponse struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type SalesSummaryResponse struct {
	Period        string                    `json:"period"`
	TotalOrders   int                       `json:"total_orders"`
	TotalRevenue  decimal.Decimal           `json:"total_revenue"`
	AverageTicket decimal.Decimal           `json:"average_ticket"`
	StatusCounts  map[model.OrderStatus]int `json:"status_counts"`
	TopProducts   []ProductSalesResponse    `json:"top_products"`
}
