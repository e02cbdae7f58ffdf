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

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	// Update applies patch to the stored product and returns the result, or
	// nil when no product has the given id.
	Update(ctx context.Context, id uuid.UUID, patch model.ProductPatch) (*model.Product, error)
	// Delete removes the product. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
	// GetAvailableForOrder reads an available product inside tx and holds a
	// share lock on it until tx ends.
	GetAvailableForOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Product, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, description, price, image_url, category_id, is_available, created_at, updated_at`

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	query := `INSERT INTO products (id, name, description, price, image_url, category_id, is_available, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING price, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price,
		product.ImageURL, product.CategoryID, product.IsAvailable,
	).Scan(&product.Price, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgForeignKeyViolation:
			return ErrCategoryNotFound
		case pgNumericOutOfRange:
			return ErrValueOutOfRange
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE ($1::uuid IS NULL OR category_id = $1)
		   AND (NOT $2 OR is_available)
		 ORDER BY created_at DESC`,
		filter.CategoryID, filter.AvailableOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *pgProductRepo) Update(ctx context.Context, id uuid.UUID, patch model.ProductPatch) (*model.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock product: %w", err)
	}
	if p == nil {
		return nil, nil
	}

	patch.Apply(p)

	err = tx.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, description = $3, price = $4, image_url = $5, category_id = $6, is_available = $7, updated_at = NOW()
		 WHERE id = $1 RETURNING price, updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.CategoryID, p.IsAvailable,
	).Scan(&p.Price, &p.UpdatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgForeignKeyViolation:
			return nil, ErrCategoryNotFound
		case pgNumericOutOfRange:
			return nil, ErrValueOutOfRange
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit product update: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetAvailableForOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_available FOR SHARE`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get available product: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL,
		&p.CategoryID, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}
