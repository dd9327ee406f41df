package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/service"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

type CatalogHandler struct {
	service service.CatalogService
	logger  *zap.Logger
}

func NewCatalogHandler(service service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, logger: logger}
}

func (h *CatalogHandler) Register(app *fiber.App) {
	app.Post("/products", h.CreateProduct)
	app.Get("/products", h.ListProducts)
	app.Get("/products/:id", h.GetProduct)
	app.Post("/products/:id/reserve", h.ReserveProduct)
	app.Post("/products/:id/release", h.ReleaseProduct)
}

func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.WriteError(c, apperr.Validation("malformed request body"))
	}

	product, err := h.service.Create(c.UserContext(), &req)
	if err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "Create product failed", zap.Error(err))
		return utils.WriteError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.WriteError(c, err)
	}

	product, err := h.service.FindByID(c.UserContext(), id)
	if err != nil {
		return utils.WriteError(c, err)
	}

	return c.JSON(product)
}

func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 20))
	offset := int64(c.QueryInt("offset", 0))
	search := c.Query("search")

	products, err := h.service.List(c.UserContext(), limit, offset, search)
	if err != nil {
		return utils.WriteError(c, err)
	}

	return c.JSON(fiber.Map{"products": products})
}

func (h *CatalogHandler) ReserveProduct(c *fiber.Ctx) error {
	id, quantity, err := parseStockRequest(c)
	if err != nil {
		return utils.WriteError(c, err)
	}

	reservation, err := h.service.Reserve(c.UserContext(), id, quantity)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"Reserve failed",
			zap.Int64("product_id", id),
			zap.Int64("quantity", quantity),
			zap.Error(err),
		)
		return utils.WriteError(c, err)
	}

	return c.JSON(reservation)
}

func (h *CatalogHandler) ReleaseProduct(c *fiber.Ctx) error {
	id, quantity, err := parseStockRequest(c)
	if err != nil {
		return utils.WriteError(c, err)
	}

	reservation, err := h.service.Release(c.UserContext(), id, quantity)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"Release failed",
			zap.Int64("product_id", id),
			zap.Int64("quantity", quantity),
			zap.Error(err),
		)
		return utils.WriteError(c, err)
	}

	return c.JSON(reservation)
}

func parseStockRequest(c *fiber.Ctx) (int64, int64, error) {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return 0, 0, err
	}

	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return 0, 0, apperr.Validation("malformed request body")
	}

	return id, req.Quantity, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id %q", raw)
	}
	return id, nil
}
