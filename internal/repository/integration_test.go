package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/food-ordering-api/internal/model"
)

func seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "hashed", FullName: "Test", Role: model.RoleCustomer}
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), user))
	return user
}

func seedProduct(t *testing.T, name, price string, available bool) *model.Product {
	t.Helper()
	p := &model.Product{Name: name, Price: decimal.RequireFromString(price), IsAvailable: available}
	require.NoError(t, NewProductRepository(testPool).Create(context.Background(), p))
	return p
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	resetDB(t)
	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "test@example.com")
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := repo.GetByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, model.RoleCustomer, found.Role)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(ctx, &model.User{Email: "test@example.com", PasswordHash: "h", FullName: "Dup", Role: model.RoleCustomer})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepo_EnsureAdmin(t *testing.T) {
	resetDB(t)
	repo := NewUserRepository(testPool)
	ctx := context.Background()

	created, err := repo.EnsureAdmin(ctx, &model.User{Email: "admin@x.com", PasswordHash: "h", FullName: "A", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.EnsureAdmin(ctx, &model.User{Email: "admin@x.com", PasswordHash: "h2", FullName: "B", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestProductRepo_CRUD(t *testing.T) {
	resetDB(t)
	repo := NewProductRepository(testPool)
	categories := NewCategoryRepository(testPool)
	ctx := context.Background()

	drinks := &model.Category{Name: "Drinks"}
	require.NoError(t, categories.Create(ctx, drinks))

	cola := &model.Product{Name: "Cola", Price: decimal.RequireFromString("2.00"), CategoryID: &drinks.ID, IsAvailable: true}
	require.NoError(t, repo.Create(ctx, cola))
	hidden := seedProduct(t, "Hidden", "1.00", false)

	missingCat := uuid.New()
	err := repo.Create(ctx, &model.Product{Name: "X", Price: decimal.NewFromInt(1), CategoryID: &missingCat})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	public, err := repo.List(ctx, model.ProductFilter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, cola.ID, public[0].ID)

	byCat, err := repo.List(ctx, model.ProductFilter{CategoryID: &drinks.ID})
	require.NoError(t, err)
	assert.Len(t, byCat, 1)

	all, err := repo.List(ctx, model.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	name := "Cola Zero"
	newPrice := decimal.RequireFromString("2.50")
	updated, err := repo.Update(ctx, cola.ID, model.ProductPatch{Name: &name, Price: &newPrice})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Cola Zero", updated.Name)
	assert.True(t, newPrice.Equal(updated.Price))
	assert.Equal(t, drinks.ID, *updated.CategoryID)

	none, err := repo.Update(ctx, uuid.New(), model.ProductPatch{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.Delete(ctx, hidden.ID))
	require.NoError(t, repo.Delete(ctx, hidden.ID))
	found, err := repo.GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestOrderRepo_CreateListAndStatus(t *testing.T) {
	resetDB(t)
	orders := NewOrderRepository(testPool)
	products := NewProductRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "alice@x.com")
	cola := seedProduct(t, "Cola", "2.00", true)
	hidden := seedProduct(t, "Hidden", "1.00", false)

	tx, err := orders.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := products.GetAvailableForOrder(ctx, tx, cola.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	unavailable, err := products.GetAvailableForOrder(ctx, tx, hidden.ID)
	require.NoError(t, err)
	assert.Nil(t, unavailable)

	order := &model.Order{
		UserID: user.ID, TotalAmount: decimal.RequireFromString("6.00"),
		PaymentMethod: model.PaymentMethodCash, PaymentStatus: model.PaymentStatusCashOnDelivery,
		Status: model.OrderStatusPending, DeliveryAddress: "1 Main St", Phone: "555",
	}
	require.NoError(t, orders.Create(ctx, tx, order))
	require.NoError(t, orders.CreateItems(ctx, tx, []model.OrderItem{{
		OrderID: order.ID, ProductID: &cola.ID, ProductName: "Cola", Quantity: 3, Price: cola.Price,
	}}))
	require.NoError(t, tx.Commit(ctx))

	got, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.PaymentStatusCashOnDelivery, got.PaymentStatus)
	assert.Nil(t, got.PaymentSessionID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)

	mine, err := orders.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Items, 1)

	tx, err = orders.BeginTx(ctx)
	require.NoError(t, err)
	current, err := orders.GetForUpdate(ctx, tx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, current.Status)
	require.NoError(t, orders.UpdateStatus(ctx, tx, order.ID, model.OrderStatusConfirmed))
	require.NoError(t, tx.Commit(ctx))

	got, err = orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, got.Status)

	summary, err := orders.Summary(ctx, time.Time{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalOrders)
	assert.True(t, decimal.RequireFromString("6.00").Equal(summary.TotalRevenue))
	require.Len(t, summary.TopProducts, 1)
	assert.Equal(t, 3, summary.TopProducts[0].Quantity)

	require.NoError(t, products.Delete(ctx, cola.ID))
	got, err = orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Nil(t, got.Items[0].ProductID)
	assert.Equal(t, "Cola", got.Items[0].ProductName)
}

func TestPaymentRepo_CreateAndGet(t *testing.T) {
	resetDB(t)
	payments := NewPaymentRepository(testPool)
	orders := NewOrderRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "pay@x.com")
	tx, err := orders.BeginTx(ctx)
	require.NoError(t, err)
	order := &model.Order{
		UserID: user.ID, TotalAmount: decimal.NewFromInt(10),
		PaymentMethod: model.PaymentMethodGateway, PaymentStatus: model.PaymentStatusPending,
		Status: model.OrderStatusPending, DeliveryAddress: "x", Phone: "y",
	}
	require.NoError(t, orders.Create(ctx, tx, order))
	require.NoError(t, tx.Commit(ctx))

	none, err := payments.GetByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, payments.Create(ctx, &model.PaymentTransaction{
		OrderID: order.ID, UserID: user.ID, Amount: order.TotalAmount, Currency: "usd",
		PaymentStatus: model.PaymentStatusPending, Status: model.PaymentTransactionInitiated,
		Metadata: map[string]string{"order_id": order.ID.String()},
	}))

	got, err := payments.GetByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.PaymentTransactionInitiated, got.Status)
	assert.Equal(t, order.ID.String(), got.Metadata["order_id"])
}
