package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/food-ordering-api/internal/model"
)

// PaymentRepository stores the payment ledger kept for gateway orders.
type PaymentRepository interface {
	Create(ctx context.Context, txn *model.PaymentTransaction) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.PaymentTransaction, error)
}

type pgPaymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &pgPaymentRepo{pool: pool}
}

func (r *pgPaymentRepo) Create(ctx context.Context, txn *model.PaymentTransaction) error {
	txn.ID = uuid.New()
	if txn.Metadata == nil {
		txn.Metadata = map[string]string{}
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payment_transactions (id, order_id, user_id, session_id, amount, currency,
		                                   payment_status, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()) RETURNING created_at, updated_at`,
		txn.ID, txn.OrderID, txn.UserID, txn.SessionID, txn.Amount, txn.Currency,
		txn.PaymentStatus, txn.Status, txn.Metadata,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment transaction: %w", err)
	}
	return nil
}

func (r *pgPaymentRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.PaymentTransaction, error) {
	t := &model.PaymentTransaction{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_id, user_id, session_id, amount, currency, payment_status, status, metadata, created_at, updated_at
		 FROM payment_transactions WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID,
	).Scan(
		&t.ID, &t.OrderID, &t.UserID, &t.SessionID, &t.Amount, &t.Currency,
		&t.PaymentStatus, &t.Status, &t.Metadata, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment transaction: %w", err)
	}
	return t, nil
}
