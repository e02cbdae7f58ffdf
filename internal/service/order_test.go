package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/food-ordering-api/internal/dto"
	"github.com/flicky/food-ordering-api/internal/model"
	"github.com/flicky/food-ordering-api/internal/repository/repotest"
)

type recordingPublisher struct {
	events []model.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.OrderEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type orderFixture struct {
	store    *repotest.Store
	svc      *OrderService
	products *ProductService
	pub      *recordingPublisher
	customer *model.User
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	store := repotest.New()
	pub := &recordingPublisher{}
	customer := &model.User{Email: "alice@x.com", FullName: "Alice", Role: model.RoleCustomer}
	require.NoError(t, store.Users().Create(context.Background(), customer))
	return &orderFixture{
		store:    store,
		svc:      NewOrderService(store.Orders(), store.Products(), pub),
		products: NewProductService(store.Products(), nil),
		pub:      pub,
		customer: customer,
	}
}

func (f *orderFixture) product(t *testing.T, name, p string) uuid.UUID {
	t.Helper()
	resp, err := f.products.Create(context.Background(), dto.CreateProductRequest{Name: name, Price: price(p)})
	require.NoError(t, err)
	return resp.ID
}

func (f *orderFixture) order(t *testing.T, method model.PaymentMethod, items ...dto.OrderItemRequest) *model.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), f.customer.ID, dto.CreateOrderRequest{
		Items: items, PaymentMethod: method, DeliveryAddress: "1 Main St", Phone: "555",
	})
	require.NoError(t, err)
	return o
}

func TestOrderService_CreateOrder_CashScenario(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")

	o := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 3})

	assert.True(t, decimal.RequireFromString("6.00").Equal(o.TotalAmount))
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, model.PaymentStatusCashOnDelivery, o.PaymentStatus)
	assert.Nil(t, o.PaymentSessionID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Cola", o.Items[0].ProductName)
	assert.Equal(t, 3, o.Items[0].Quantity)

	stored, err := f.store.Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Items, 1)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, model.OrderEventCreated, f.pub.events[0].Type)
	assert.Equal(t, o.ID, f.pub.events[0].OrderID)
}

func TestOrderService_CreateOrder_TotalAcrossLines(t *testing.T) {
	f := newOrderFixture(t)
	wrap := f.product(t, "Wrap", "7.25")
	fries := f.product(t, "Fries", "3.10")

	o := f.order(t, model.PaymentMethodGateway,
		dto.OrderItemRequest{ProductID: wrap, Quantity: 2},
		dto.OrderItemRequest{ProductID: fries, Quantity: 1},
	)

	assert.True(t, decimal.RequireFromString("17.60").Equal(o.TotalAmount))
	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
	assert.Len(t, o.Items, 2)
}

func TestOrderService_CreateOrder_SnapshotSurvivesPriceChange(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")
	o := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 1})

	name := "Cola Max"
	_, err := f.products.Update(context.Background(), cola, dto.UpdateProductRequest{Name: &name, Price: price("9.99")})
	require.NoError(t, err)
	require.NoError(t, f.products.Delete(context.Background(), cola))

	stored, err := f.store.Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Cola", stored.Items[0].ProductName)
	assert.True(t, decimal.RequireFromString("2.00").Equal(stored.Items[0].Price))
	assert.Nil(t, stored.Items[0].ProductID)
}

func TestOrderService_CreateOrder_UnavailableProduct(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")
	hidden, err := f.products.Create(context.Background(), dto.CreateProductRequest{
		Name: "Hidden", Price: price("1"), IsAvailable: boolPtr(false),
	})
	require.NoError(t, err)
	missing := uuid.New()

	for _, bad := range []uuid.UUID{hidden.ID, missing} {
		_, err := f.svc.CreateOrder(context.Background(), f.customer.ID, dto.CreateOrderRequest{
			Items: []dto.OrderItemRequest{
				{ProductID: cola, Quantity: 1},
				{ProductID: bad, Quantity: 1},
			},
			PaymentMethod: model.PaymentMethodCash, DeliveryAddress: "x", Phone: "y",
		})
		require.ErrorIs(t, err, ErrProductUnavailable)
		var unavailable *ProductUnavailableError
		require.True(t, errors.As(err, &unavailable))
		assert.Equal(t, bad, unavailable.ProductID)
		assert.Contains(t, err.Error(), bad.String())
	}

	assert.Zero(t, f.store.OrderCount())
	assert.Zero(t, f.store.ItemCount())
	assert.Empty(t, f.pub.events)
}

func TestOrderService_CreateOrder_ItemFailureRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")
	f.store.FailCreateItems = errors.New("disk full")

	_, err := f.svc.CreateOrder(context.Background(), f.customer.ID, dto.CreateOrderRequest{
		Items:         []dto.OrderItemRequest{{ProductID: cola, Quantity: 1}},
		PaymentMethod: model.PaymentMethodCash, DeliveryAddress: "x", Phone: "y",
	})
	require.Error(t, err)
	assert.Zero(t, f.store.OrderCount())
	assert.Zero(t, f.store.ItemCount())
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")

	_, err := f.svc.CreateOrder(context.Background(), f.customer.ID, dto.CreateOrderRequest{PaymentMethod: model.PaymentMethodCash})
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = f.svc.CreateOrder(context.Background(), f.customer.ID, dto.CreateOrderRequest{
		Items:         []dto.OrderItemRequest{{ProductID: cola, Quantity: 0}},
		PaymentMethod: model.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.CreateOrder(context.Background(), f.customer.ID, dto.CreateOrderRequest{
		Items:         []dto.OrderItemRequest{{ProductID: cola, Quantity: model.MaxQuantity + 1}},
		PaymentMethod: model.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Zero(t, f.store.OrderCount())
}

func TestOrderService_CreateOrder_TotalTooLarge(t *testing.T) {
	f := newOrderFixture(t)
	pricey := f.product(t, "Gold Wrap", "99999999.99")

	_, err := f.svc.CreateOrder(context.Background(), f.customer.ID, dto.CreateOrderRequest{
		Items:         []dto.OrderItemRequest{{ProductID: pricey, Quantity: 2}},
		PaymentMethod: model.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, ErrOrderTotalTooLarge)
	assert.Zero(t, f.store.OrderCount())
	assert.Zero(t, f.store.ItemCount())

	o := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: pricey, Quantity: 1})
	assert.True(t, model.MaxAmount.Equal(o.TotalAmount))
}

func TestOrderService_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.pub.err = errors.New("broker down")
	cola := f.product(t, "Cola", "2.00")

	o := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 1})
	assert.NotEqual(t, uuid.Nil, o.ID)
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestOrderService_Get_Access(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")
	o := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 1})
	ctx := context.Background()

	got, err := f.svc.Get(ctx, o.ID, f.customer)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.Get(ctx, o.ID, &model.User{ID: uuid.New(), Role: model.RoleCustomer})
	assert.ErrorIs(t, err, ErrOrderAccessDenied)

	_, err = f.svc.Get(ctx, o.ID, &model.User{ID: uuid.New(), Role: model.RoleAdmin})
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, uuid.New(), f.customer)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_ListMineAndAll(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")
	first := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 1})
	second := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 2})

	bob := &model.User{Email: "bob@x.com", Role: model.RoleCustomer}
	require.NoError(t, f.store.Users().Create(context.Background(), bob))
	_, err := f.svc.CreateOrder(context.Background(), bob.ID, dto.CreateOrderRequest{
		Items:         []dto.OrderItemRequest{{ProductID: cola, Quantity: 1}},
		PaymentMethod: model.PaymentMethodCash, DeliveryAddress: "x", Phone: "y",
	})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(context.Background(), f.customer.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)
	assert.Len(t, mine[0].Items, 1)

	all, err := f.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")
	o := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 1})
	ctx := context.Background()

	updated, err := f.svc.UpdateStatus(ctx, o.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, updated.Status)
	require.Len(t, f.pub.events, 2)
	assert.Equal(t, model.OrderEventStatusChanged, f.pub.events[1].Type)
	assert.Equal(t, model.OrderStatusConfirmed, f.pub.events[1].Status)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "pending")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "shipped")
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), "confirmed")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "delivered")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, o.ID, "cancelled")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	stored, err := f.store.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, stored.Status)
}

func TestOrderService_Summary(t *testing.T) {
	f := newOrderFixture(t)
	cola := f.product(t, "Cola", "2.00")
	wrap := f.product(t, "Wrap", "7.00")
	ctx := context.Background()

	f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: cola, Quantity: 3})
	f.order(t, model.PaymentMethodGateway, dto.OrderItemRequest{ProductID: wrap, Quantity: 1})
	cancelled := f.order(t, model.PaymentMethodCash, dto.OrderItemRequest{ProductID: wrap, Quantity: 5})
	_, err := f.svc.UpdateStatus(ctx, cancelled.ID, "cancelled")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return f.store.Now() }

	for _, period := range []string{"today", "week", "month", "all"} {
		summary, err := f.svc.Summary(ctx, period)
		require.NoError(t, err, period)
		assert.Equal(t, period, summary.Period)
		assert.Equal(t, 3, summary.TotalOrders)
		assert.True(t, decimal.RequireFromString("13.00").Equal(summary.TotalRevenue), summary.TotalRevenue.String())
		assert.True(t, decimal.RequireFromString("6.50").Equal(summary.AverageTicket))
		assert.Equal(t, 2, summary.StatusCounts[model.OrderStatusPending])
		assert.Equal(t, 1, summary.StatusCounts[model.OrderStatusCancelled])
		assert.Equal(t, 0, summary.StatusCounts[model.OrderStatusDelivered])
		require.Len(t, summary.TopProducts, 2)
		assert.Equal(t, "Cola", summary.TopProducts[0].ProductName)
		assert.Equal(t, 3, summary.TopProducts[0].Quantity)
	}

	f.svc.now = func() time.Time { return f.store.Now().AddDate(0, 2, 0) }
	summary, err := f.svc.Summary(ctx, "month")
	require.NoError(t, err)
	assert.Zero(t, summary.TotalOrders)
	assert.Empty(t, summary.TopProducts)

	_, err = f.svc.Summary(ctx, "decade")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
