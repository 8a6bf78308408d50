package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/adboard/backend/internal/http/dto"
	"github.com/adboard/backend/internal/middleware"
	"github.com/adboard/backend/internal/repositories"
	"github.com/adboard/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdvertisementHandler struct {
	adSvc *services.AdvertisementService
	log   *zap.Logger
}

func NewAdvertisementHandler(adSvc *services.AdvertisementService, log *zap.Logger) *AdvertisementHandler {
	return &AdvertisementHandler{adSvc: adSvc, log: log}
}

func (h *AdvertisementHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAdvertisementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	ad, err := h.adSvc.Create(c.Context(), userID, req.Title, req.Description)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: ad})
}

func (h *AdvertisementHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid advertisement id"})
	}

	ad, err := h.adSvc.GetByID(c.Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: ad})
}

func (h *AdvertisementHandler) List(c *fiber.Ctx) error {
	filter := repositories.AdFilter{
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("creator_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid creator_id"})
		}
		filter.CreatorID = &id
	}
	if v := c.Query("created_after"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "created_after must be RFC3339"})
		}
		filter.CreatedAfter = &ts
	}
	if v := c.Query("created_before"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "created_before must be RFC3339"})
		}
		filter.CreatedBefore = &ts
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	ads, err := h.adSvc.List(c.Context(), filter)
	if err != nil {
		h.log.Error("list advertisements failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: ads})
}

func (h *AdvertisementHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid advertisement id"})
	}

	var req dto.UpdateAdvertisementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	ad, err := h.adSvc.Update(c.Context(), id, userID, services.AdPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: ad})
}

func (h *AdvertisementHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid advertisement id"})
	}

	userID := middleware.GetUserID(c)
	if err := h.adSvc.Delete(c.Context(), id, userID, middleware.GetIsAdmin(c)); err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

// serviceError maps the service sentinels onto HTTP statuses: quota and
// field problems are 400, ownership is 403, missing records are 404.
func (h *AdvertisementHandler) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrAdNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNotOwner):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrQuotaExceeded),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrTitleRequired):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		h.log.Error("advertisement request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
}
