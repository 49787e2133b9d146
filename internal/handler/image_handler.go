package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// ImageHandler accepts question image uploads.
type ImageHandler struct {
	service service.ImageService
	logger  zerolog.Logger
}

// NewImageHandler constructs an image handler.
func NewImageHandler(service service.ImageService, logger zerolog.Logger) *ImageHandler {
	return &ImageHandler{
		service: service,
		logger:  logger.With().Str("component", "image_handler").Logger(),
	}
}

// Register wires image routes.
func (h *ImageHandler) Register(router fiber.Router) {
	router.Post("/images", middleware.RequireStaff(), h.upload)
}

func (h *ImageHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.service.Upload(requestContext(c), file, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "upload failed")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "image uploaded", result)
}
