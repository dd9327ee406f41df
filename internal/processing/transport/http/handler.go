package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/service"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

type ProcessingHandler struct {
	service service.ProcessingService
	logger  *zap.Logger
}

func NewProcessingHandler(service service.ProcessingService, logger *zap.Logger) *ProcessingHandler {
	return &ProcessingHandler{service: service, logger: logger}
}

func (h *ProcessingHandler) Register(app *fiber.App) {
	app.Get("/processing-orders/:id", h.GetProcessingOrder)
	app.Patch("/processing-orders/:id/begin-assembly", h.BeginAssembly)
	app.Patch("/processing-orders/begin-delivery", h.BeginDelivery)
}

func (h *ProcessingHandler) GetProcessingOrder(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.WriteError(c, err)
	}

	order, err := h.service.GetProcessingOrder(c.UserContext(), id)
	if err != nil {
		return utils.WriteError(c, err)
	}

	return c.JSON(order)
}

// BeginAssembly answers 202: the work is queued, not finished.
func (h *ProcessingHandler) BeginAssembly(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.WriteError(c, err)
	}

	if err := h.service.BeginAssembly(c.UserContext(), id); err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"Begin assembly failed",
			zap.Int64("processing_order_id", id),
			zap.Error(err),
		)
		return utils.WriteError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *ProcessingHandler) BeginDelivery(c *fiber.Ctx) error {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.WriteError(c, apperr.Validation("malformed request body"))
	}

	if err := h.service.BeginDelivery(c.UserContext(), req.IDs); err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"Begin delivery failed",
			zap.Int("batch_size", len(req.IDs)),
			zap.Error(err),
		)
		return utils.WriteError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id %q", raw)
	}
	return id, nil
}
