package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// GradingHandler wires manual grading endpoints for teachers and admins.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the assessments group.
func (h *GradingHandler) Register(router fiber.Router) {
	staff := middleware.RequireStaff()

	router.Get("/:id/submissions/:studentId/grades/history", staff, h.history)
	router.Patch("/:id/submissions/:studentId/grades/:questionId", staff, h.grade)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	questionID := strings.TrimSpace(c.Params("questionId"))
	if questionID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "question id is required")
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.ApplyManualGrade(requestContext(c), assessmentID, studentID, questionID, actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to grade submission")
	}

	message := "grade applied"
	if !result.Changed {
		message = "grade unchanged"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *GradingHandler) history(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	history, err := h.service.History(requestContext(c), assessmentID, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load grade history")
	}

	return utils.SendSuccess(c, "grade history retrieved", history)
}
