package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flicky/food-ordering-api/internal/model"
)

type OrderRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, order *model.Order) error
	CreateItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// GetForUpdate returns the order header (no items) locked for the rest of tx.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	// Summary aggregates orders created at or after since.
	Summary(ctx context.Context, since time.Time, topN int) (*model.SalesSummary, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, user_id, total_amount, payment_method, payment_status, order_status,
	delivery_address, phone, payment_session_id, created_at, updated_at`

func (r *pgOrderRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *pgOrderRepo) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	order.ID = uuid.New()
	err := tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, total_amount, payment_method, payment_status, order_status,
		                     delivery_address, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.TotalAmount, order.PaymentMethod, order.PaymentStatus,
		order.Status, order.DeliveryAddress, order.Phone,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == pgNumericOutOfRange {
			return ErrValueOutOfRange
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) CreateItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	for i := range items {
		items[i].ID = uuid.New()
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			items[i].ID, items[i].OrderID, items[i].ProductID, items[i].ProductName,
			items[i].Quantity, items[i].Price,
		)
		if err != nil {
			if pgErrorCode(err) == pgNumericOutOfRange {
				return ErrValueOutOfRange
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, nil
	}

	orders := []model.Order{*order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *pgOrderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error {
	ct, err := tx.Exec(ctx,
		`UPDATE orders SET order_status = $2, updated_at = NOW() WHERE id = $1`, id, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
}

func (r *pgOrderRepo) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *pgOrderRepo) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all orders with a single query.
func (r *pgOrderRepo) attachItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID.String()
		index[orders[i].ID] = i
		orders[i].Items = []model.OrderItem{}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, price
		 FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY created_at, id`, ids,
	)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) Summary(ctx context.Context, since time.Time, topN int) (*model.SalesSummary, error) {
	summary := &model.SalesSummary{StatusCounts: make(map[model.OrderStatus]int)}

	rows, err := r.pool.Query(ctx,
		`SELECT order_status, COUNT(*), COALESCE(SUM(total_amount), 0)
		 FROM orders WHERE created_at >= $1 GROUP BY order_status`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status  model.OrderStatus
			count   int
			revenue decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &revenue); err != nil {
			return nil, fmt.Errorf("scan order summary: %w", err)
		}
		summary.StatusCounts[status] = count
		summary.TotalOrders += count
		if status != model.OrderStatusCancelled {
			summary.TotalRevenue = summary.TotalRevenue.Add(revenue)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarize orders: %w", err)
	}

	top, err := r.pool.Query(ctx,
		`SELECT oi.product_id, oi.product_name, SUM(oi.quantity), SUM(oi.price * oi.quantity)
		 FROM order_items oi JOIN orders o ON o.id = oi.order_id
		 WHERE o.created_at >= $1 AND o.order_status <> $2
		 GROUP BY oi.product_id, oi.product_name
		 ORDER BY SUM(oi.quantity) DESC, oi.product_name
		 LIMIT $3`, since, model.OrderStatusCancelled, topN,
	)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer top.Close()

	summary.TopProducts = []model.ProductSales{}
	for top.Next() {
		var ps model.ProductSales
		if err := top.Scan(&ps.ProductID, &ps.ProductName, &ps.Quantity, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		summary.TopProducts = append(summary.TopProducts, ps)
	}
	if err := top.Err(); err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	return summary, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(
		&o.ID, &o.UserID, &o.TotalAmount, &o.PaymentMethod, &o.PaymentStatus, &o.Status,
		&o.DeliveryAddress, &o.Phone, &o.PaymentSessionID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}
