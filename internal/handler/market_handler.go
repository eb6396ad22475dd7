package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/service"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/validator"
)

type MarketHandler struct {
	market    *service.MarketService
	validator *validator.Validator
	logger    *slog.Logger
}

func NewMarketHandler(market *service.MarketService, validator *validator.Validator, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{market: market, validator: validator, logger: logger}
}

// ListProducts returns a page of listings
// GET /api/products?category=&seller_id=&q=&limit=&offset=
func (h *MarketHandler) ListProducts(c *fiber.Ctx) error {
	var q service.ProductQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validator.Validate(q); err != nil {
		return respondError(c, h.logger, err)
	}

	products, err := h.market.ListProducts(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"products": products})
}

// GET /api/products/:id
func (h *MarketHandler) GetProduct(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid id")
	}
	product, err := h.market.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(product)
}

// CreateProduct lists produce for sale under the caller
// POST /api/products
func (h *MarketHandler) CreateProduct(c *fiber.Ctx) error {
	seller, ok := currentUser(c)
	if !ok {
		return respondError(c, h.logger, errUnauthenticated)
	}
	var in service.ProductInput
	if err := parseBody(c, h.validator, &in); err != nil {
		return respondError(c, h.logger, err)
	}
	product, err := h.market.CreateProduct(c.UserContext(), seller, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// AdjustInventory restocks (positive delta) or sells (negative delta)
// PATCH /api/products/:id/inventory
func (h *MarketHandler) AdjustInventory(c *fiber.Ctx) error {
	seller, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var in service.InventoryInput
	if err := parseBody(c, h.validator, &in); err != nil {
		return respondError(c, h.logger, err)
	}
	product, err := h.market.AdjustInventory(c.UserContext(), seller, id, in.Delta)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(product)
}
