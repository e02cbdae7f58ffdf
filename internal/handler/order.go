package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/food-ordering-api/internal/dto"
	"github.com/flicky/food-ordering-api/internal/middleware"
	"github.com/flicky/food-ordering-api/internal/model"
	"github.com/flicky/food-ordering-api/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), middleware.GetUserID(c), req)
	middleware.RecordOrderOperation("create", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) ListMine(c *gin.Context) {
	orders, err := h.orderService.ListMine(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

func (h *OrderHandler) ListAll(c *gin.Context) {
	orders, err := h.orderService.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), id, middleware.GetUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// UpdateStatus takes the new status from ?order_status= or a JSON body.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	status := c.Query("order_status")
	if status == "" {
		var req dto.UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "status is required")
			return
		}
		status = req.Status
	}
	if strings.TrimSpace(status) == "" {
		badRequest(c, "status is required")
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, status)
	middleware.RecordOrderOperation("update_status", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) Stats(c *gin.Context) {
	var req dto.SalesSummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, service.ErrInvalidPeriod)
		return
	}

	resp, err := h.orderService.Summary(c.Request.Context(), req.Period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func orderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

func toOrderResponses(orders []model.Order) []dto.OrderResponse {
	resp := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return resp
}

func toOrderResponse(o *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, dto.OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return dto.OrderResponse{
		ID:               o.ID,
		UserID:           o.UserID,
		TotalAmount:      o.TotalAmount,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		OrderStatus:      o.Status,
		DeliveryAddress:  o.DeliveryAddress,
		Phone:            o.Phone,
		PaymentSessionID: o.PaymentSessionID,
		Items:            items,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}
