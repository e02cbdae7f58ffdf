package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/food-ordering-api/internal/dto"
	"github.com/flicky/food-ordering-api/internal/model"
	"github.com/flicky/food-ordering-api/internal/repository"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderAccessDenied       = errors.New("access denied")
	ErrEmptyOrder              = errors.New("order must contain at least one item")
	ErrInvalidQuantity         = errors.New("quantity must be between 1 and 1000")
	ErrOrderTotalTooLarge      = errors.New("order total exceeds 99999999.99")
	ErrProductUnavailable      = errors.New("product unavailable")
	ErrInvalidOrderStatus      = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidPeriod           = errors.New("period must be one of today, week, month, all")
)

const topProductsLimit = 5

// ProductUnavailableError names the product that stopped a checkout.
type ProductUnavailableError struct {
	ProductID uuid.UUID
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

func (e *ProductUnavailableError) Is(target error) bool { return target == ErrProductUnavailable }

// OrderEventPublisher delivers order events to asynchronous consumers.
type OrderEventPublisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	publisher   OrderEventPublisher
	now         func() time.Time
}

// NewOrderService builds the checkout service. publisher may be nil.
func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, publisher OrderEventPublisher) *OrderService {
	return &OrderService{orderRepo: orderRepo, productRepo: productRepo, publisher: publisher, now: time.Now}
}

// CreateOrder prices every line from the current menu and stores the order
// with its item snapshots in a single transaction.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*model.Order, error) {
	lines := req.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	total := decimal.Zero
	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 || line.Quantity > model.MaxQuantity {
			return nil, ErrInvalidQuantity
		}
		product, err := s.productRepo.GetAvailableForOrder(ctx, tx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return nil, &ProductUnavailableError{ProductID: line.ProductID}
		}

		productID := product.ID
		item := model.OrderItem{
			ProductID:   &productID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Price,
		}
		total = total.Add(item.Subtotal())
		if total.GreaterThan(model.MaxAmount) {
			return nil, ErrOrderTotalTooLarge
		}
		items = append(items, item)
	}

	order := &model.Order{
		UserID:          userID,
		TotalAmount:     total,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   req.PaymentMethod.InitialPaymentStatus(),
		Status:          model.OrderStatusPending,
		DeliveryAddress: req.DeliveryAddress,
		Phone:           req.Phone,
	}
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		if errors.Is(err, repository.ErrValueOutOfRange) {
			return nil, ErrOrderTotalTooLarge
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := s.orderRepo.CreateItems(ctx, tx, items); err != nil {
		if errors.Is(err, repository.ErrValueOutOfRange) {
			return nil, ErrOrderTotalTooLarge
		}
		return nil, fmt.Errorf("create order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	order.Items = items
	s.publish(ctx, model.NewOrderEvent(model.OrderEventCreated, order))
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get returns the order if caller owns it or is an admin.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID, caller *model.User) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !caller.IsAdmin() && order.UserID != caller.ID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

// UpdateStatus moves the order to status if the lifecycle allows it.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*model.Order, error) {
	next, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, ErrInvalidOrderStatus
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if current == nil {
		return nil, ErrOrderNotFound
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidStatusTransition, current.Status)
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, next)
	}

	if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, next); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status: %w", err)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	s.publish(ctx, model.NewOrderEvent(model.OrderEventStatusChanged, order))
	return order, nil
}

// Summary reports sales for orders placed within period.
func (s *OrderService) Summary(ctx context.Context, period string) (*dto.SalesSummaryResponse, error) {
	since, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}

	summary, err := s.orderRepo.Summary(ctx, since, topProductsLimit)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}

	counts := make(map[model.OrderStatus]int, len(model.AllOrderStatuses()))
	for _, st := range model.AllOrderStatuses() {
		counts[st] = summary.StatusCounts[st]
	}

	average := decimal.Zero
	if paid := summary.TotalOrders - counts[model.OrderStatusCancelled]; paid > 0 {
		average = summary.TotalRevenue.Div(decimal.NewFromInt(int64(paid))).Round(2)
	}

	top := make([]dto.ProductSalesResponse, 0, len(summary.TopProducts))
	for _, p := range summary.TopProducts {
		top = append(top, dto.ProductSalesResponse{
			ProductID: p.ProductID, ProductName: p.ProductName, Quantity: p.Quantity, Revenue: p.Revenue,
		})
	}

	return &dto.SalesSummaryResponse{
		Period:        period,
		TotalOrders:   summary.TotalOrders,
		TotalRevenue:  summary.TotalRevenue,
		AverageTicket: average,
		StatusCounts:  counts,
		TopProducts:   top,
	}, nil
}

func (s *OrderService) periodStart(period string) (time.Time, error) {
	now := s.now().UTC()
	switch period {
	case "", "all":
		return time.Time{}, nil
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	case "week":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	default:
		return time.Time{}, ErrInvalidPeriod
	}
}

func (s *OrderService) publish(ctx context.Context, event model.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "publish order event",
			"error", err, "event_type", event.Type, "order_id", event.OrderID)
	}
}
