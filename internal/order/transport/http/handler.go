package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/service"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

type OrderHandler struct {
	service service.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(service service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: logger}
}

func (h *OrderHandler) Register(app *fiber.App) {
	app.Post("/orders", h.CreateOrder)
	app.Get("/orders/:id", h.GetOrder)
	app.Patch("/orders/:id/status", h.UpdateOrderStatus)
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.WriteError(c, apperr.Validation("malformed request body"))
	}

	order, err := h.service.CreateOrder(c.UserContext(), &req)
	if err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "Create order failed", zap.Error(err))
		return utils.WriteError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID, err := parseID(c.Params("id"))
	if err != nil {
		return utils.WriteError(c, err)
	}

	order, err := h.service.GetOrder(c.UserContext(), orderID)
	if err != nil {
		return utils.WriteError(c, err)
	}

	return c.JSON(order)
}

func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	orderID, err := parseID(c.Params("id"))
	if err != nil {
		return utils.WriteError(c, err)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.WriteError(c, apperr.Validation("malformed request body"))
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, req.Status)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"Update order status failed",
			zap.Int64("order_id", orderID),
			zap.String("requested", req.Status),
			zap.Error(err),
		)
		return utils.WriteError(c, err)
	}

	return c.JSON(order)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id %q", raw)
	}
	return id, nil
}
