package handlers

import (
	"github.com/adboard/backend/internal/http/dto"
	"github.com/adboard/backend/internal/middleware"
	"github.com/adboard/backend/internal/repositories"
	"github.com/adboard/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	userRepo *repositories.UserRepo
	adSvc    *services.AdvertisementService
	log      *zap.Logger
}

func NewUserHandler(userRepo *repositories.UserRepo, adSvc *services.AdvertisementService, log *zap.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, adSvc: adSvc, log: log}
}

// GetMe returns the current user together with their quota usage.
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}

	openAds, quota, err := h.adSvc.OpenCount(c.Context(), userID)
	if err != nil {
		h.log.Error("failed to count open ads", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.MeResponse{
		User:      user,
		OpenAds:   openAds,
		OpenQuota: quota,
	}})
}
