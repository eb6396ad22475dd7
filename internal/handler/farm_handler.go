package handler

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/service"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/validator"
)

type FarmHandler struct {
	farm      *service.FarmService
	validator *validator.Validator
	logger    *slog.Logger
}

func NewFarmHandler(farm *service.FarmService, validator *validator.Validator, logger *slog.Logger) *FarmHandler {
	return &FarmHandler{farm: farm, validator: validator, logger: logger}
}

// ownerAndID resolves the caller and the :id path parameter.
func ownerAndID(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	owner, ok := currentUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, errUnauthenticated
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: invalid id", service.ErrInvalidInput)
	}
	return owner, id, nil
}

// GET /api/fields
func (h *FarmHandler) ListFields(c *fiber.Ctx) error {
	owner, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	fields, err := h.farm.ListFields(c.UserContext(), owner)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"fields": fields})
}

// GET /api/fields/:id
func (h *FarmHandler) GetField(c *fiber.Ctx) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	field, err := h.farm.GetField(c.UserContext(), owner, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(field)
}

// POST /api/fields
func (h *FarmHandler) CreateField(c *fiber.Ctx) error {
	owner, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var in service.FieldInput
	if err := parseBody(c, h.validator, &in); err != nil {
		return respondError(c, h.logger, err)
	}
	field, err := h.farm.CreateField(c.UserContext(), owner, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(field)
}

// PUT /api/fields/:id
func (h *FarmHandler) UpdateField(c *fiber.Ctx) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var in service.FieldInput
	if err := parseBody(c, h.validator, &in); err != nil {
		return respondError(c, h.logger, err)
	}
	field, err := h.farm.UpdateField(c.UserContext(), owner, id, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(field)
}

// DELETE /api/fields/:id
func (h *FarmHandler) DeleteField(c *fiber.Ctx) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.farm.DeleteField(c.UserContext(), owner, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type deviceQuery struct {
	FieldID string `query:"field_id" validate:"omitempty,uuid"`
}

// GET /api/devices?field_id=
func (h *FarmHandler) ListDevices(c *fiber.Ctx) error {
	owner, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var q deviceQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validator.Validate(q); err != nil {
		return respondError(c, h.logger, err)
	}

	var fieldID *uuid.UUID
	if q.FieldID != "" {
		id := uuid.MustParse(q.FieldID)
		fieldID = &id
	}

	devices, err := h.farm.ListDevices(c.UserContext(), owner, fieldID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"devices": devices})
}

// GET /api/devices/:id
func (h *FarmHandler) GetDevice(c *fiber.Ctx) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	device, err := h.farm.GetDevice(c.UserContext(), owner, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(device)
}

// POST /api/devices
func (h *FarmHandler) CreateDevice(c *fiber.Ctx) error {
	owner, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var in service.DeviceInput
	if err := parseBody(c, h.validator, &in); err != nil {
		return respondError(c, h.logger, err)
	}
	device, err := h.farm.CreateDevice(c.UserContext(), owner, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(device)
}

// PUT /api/devices/:id
func (h *FarmHandler) UpdateDevice(c *fiber.Ctx) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var in service.DeviceInput
	in.SerialNumber = "-" // fixed after creation
	if err := parseBody(c, h.validator, &in); err != nil {
		return respondError(c, h.logger, err)
	}
	device, err := h.farm.UpdateDevice(c.UserContext(), owner, id, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(device)
}

// DELETE /api/devices/:id
func (h *FarmHandler) DeleteDevice(c *fiber.Ctx) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.farm.DeleteDevice(c.UserContext(), owner, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/field-data
func (h *FarmHandler) RecordReading(c *fiber.Ctx) error {
	owner, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var in service.ReadingInput
	if err := parseBody(c, h.validator, &in); err != nil {
		return respondError(c, h.logger, err)
	}
	reading, err := h.farm.RecordReading(c.UserContext(), owner, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reading)
}

type readingQuery struct {
	FieldID string `query:"field_id" validate:"required,uuid"`
	Limit   int    `query:"limit" validate:"omitempty,gte=1"`
}

// GET /api/field-data?field_id=&limit=
func (h *FarmHandler) ListReadings(c *fiber.Ctx) error {
	owner, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var q readingQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validator.Validate(q); err != nil {
		return respondError(c, h.logger, err)
	}

	readings, err := h.farm.ListReadings(c.UserContext(), owner, uuid.MustParse(q.FieldID), q.Limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"readings": readings})
}

// GET /api/statistics
func (h *FarmHandler) Statistics(c *fiber.Ctx) error {
	owner, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	stats, err := h.farm.Statistics(c.UserContext(), owner)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(stats)
}
