package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	orderapp "github.com/pawmarket/backend/internal/application/order"
	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/order"
	"github.com/pawmarket/backend/internal/interfaces/http/dto"
)

// OrderHandler handles order lifecycle API endpoints
type OrderHandler struct {
	BaseHandler
	orderService *orderapp.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService *orderapp.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// Checkout godoc
// @ID           checkout
// @Summary      Convert the cart into an order
// @Description  Revalidates the cart, reserves stock, freezes prices and creates the order atomically
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body orderapp.CheckoutRequest true "Shipping address and payment method"
// @Success      201 {object} APIResponse[orderapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/checkout [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	customerID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req orderapp.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.orderService.Checkout(c.Request.Context(), customerID, req)
	if err != nil {
		var blocked *orderapp.CheckoutBlockedError
		if errors.As(err, &blocked) {
			r := dto.NewErrorResponseWithRequestID(
				dto.ErrCodeCheckoutBlocked,
				"Cart changed since it was last seen",
				getRequestID(c),
			)
			r.Data = orderapp.CheckoutBlockedResponse{Issues: blocked.Issues}
			c.JSON(http.StatusConflict, r)
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Get godoc
// @ID           getOrder
// @Summary      Get an order by ID
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	resp, err := h.orderService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if !h.canView(c, resp) {
		h.Forbidden(c, "Not allowed to view this order")
		return
	}

	h.Success(c, resp)
}

// GetByNumber godoc
// @ID           getOrderByNumber
// @Summary      Get an order by its order number
// @Tags         orders
// @Produce      json
// @Param        orderNumber path string true "Order number"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/number/{orderNumber} [get]
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	orderNumber := c.Param("orderNumber")
	if orderNumber == "" {
		h.BadRequest(c, "Missing order number")
		return
	}

	resp, err := h.orderService.GetByNumber(c.Request.Context(), orderNumber)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if !h.canView(c, resp) {
		h.Forbidden(c, "Not allowed to view this order")
		return
	}

	h.Success(c, resp)
}

// List godoc
// @ID           listOrders
// @Summary      List the caller's orders
// @Description  Customers see their own orders, sellers the orders containing their items, admins everything
// @Tags         orders
// @Produce      json
// @Param        status query string false "Filter by fulfillment status"
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Success      200 {object} APIResponse[[]orderapp.OrderResponse]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var filter orderapp.OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var resp []orderapp.OrderResponse

	switch getRole(c) {
	case identity.RoleAdmin:
		resp, err = h.orderService.List(ctx, filter)
	case identity.RoleSeller:
		resp, err = h.orderService.ListBySeller(ctx, userID, filter)
	default:
		resp, err = h.orderService.ListByCustomer(ctx, userID, filter)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Advance godoc
// @ID           advanceOrder
// @Summary      Advance an order to its next fulfillment stage
// @Description  Moves pending to processing, processing to shipped, shipped to delivered. Sellers with items in the order or admins only.
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/advance [post]
func (h *OrderHandler) Advance(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}
	if !h.requireFulfiller(c, orderID) {
		return
	}

	resp, err := h.orderService.Advance(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Transition godoc
// @ID           transitionOrder
// @Summary      Move an order to an explicit fulfillment status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.TransitionRequest true "Target status"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/transition [post]
func (h *OrderHandler) Transition(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}
	if !h.requireFulfiller(c, orderID) {
		return
	}

	var req orderapp.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.orderService.TransitionTo(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Cancel godoc
// @ID           cancelOrder
// @Summary      Cancel an order
// @Description  Cancels a pending or processing order, releasing its stock and reversing its settlement
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.CancelOrderRequest true "Cancellation reason"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req orderapp.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	// Admins and sellers with items in the order may cancel it in any
	// non-terminal state; a customer may cancel their own order only
	// while it is still pending. Checked before the state machine is
	// touched.
	if getRole(c) != identity.RoleAdmin {
		existing, err := h.orderService.GetByID(c.Request.Context(), orderID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		switch {
		case sellsInOrder(actorID, existing):
		case existing.CustomerID == actorID:
			if existing.Status != order.OrderStatusPending {
				h.Forbidden(c, "Orders can only be cancelled by their customer while pending")
				return
			}
		default:
			h.Forbidden(c, "Not allowed to cancel this order")
			return
		}
	}

	resp, err := h.orderService.Cancel(c.Request.Context(), orderID, actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// UpdatePaymentStatus godoc
// @ID           updateOrderPaymentStatus
// @Summary      Update an order's payment status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.UpdatePaymentStatusRequest true "New payment status"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/payment-status [put]
func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	if !h.requireStaff(c) {
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req orderapp.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.orderService.UpdatePaymentStatus(c.Request.Context(), orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// canView reports whether the caller may read the order: the customer
// who placed it, a seller with items in it, or an admin.
func (h *OrderHandler) canView(c *gin.Context, o *orderapp.OrderResponse) bool {
	userID, err := getUserID(c)
	if err != nil {
		return false
	}

	switch getRole(c) {
	case identity.RoleAdmin:
		return true
	case identity.RoleSeller:
		return sellsInOrder(userID, o)
	default:
		return o.CustomerID == userID
	}
}

// sellsInOrder reports whether the user owns at least one line item
func sellsInOrder(userID uuid.UUID, o *orderapp.OrderResponse) bool {
	for i := range o.Items {
		if o.Items[i].SellerID == userID {
			return true
		}
	}
	return false
}

// requireFulfiller aborts with 403 unless the caller may move the order
// through fulfillment: an admin, or a seller owning at least one of the
// order's line items
func (h *OrderHandler) requireFulfiller(c *gin.Context, orderID uuid.UUID) bool {
	if getRole(c) == identity.RoleAdmin {
		return true
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return false
	}
	existing, err := h.orderService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return false
	}
	if !sellsInOrder(userID, existing) {
		h.Forbidden(c, "Only sellers with items in this order or admins can fulfill it")
		return false
	}
	return true
}

// requireStaff aborts with 403 unless the caller is an admin
func (h *OrderHandler) requireStaff(c *gin.Context) bool {
	if getRole(c) != identity.RoleAdmin {
		h.Forbidden(c, "Admin role required")
		return false
	}
	return true
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.POST("/checkout", h.Checkout)
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.GET("/number/:orderNumber", h.GetByNumber)
		orders.POST("/:id/advance", h.Advance)
		orders.POST("/:id/transition", h.Transition)
		orders.POST("/:id/cancel", h.Cancel)
		orders.PUT("/:id/payment-status", h.UpdatePaymentStatus)
	}
}
