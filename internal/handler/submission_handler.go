package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// SubmissionHandler wires the student attempt endpoints and the staff listing.
type SubmissionHandler struct {
	service      service.SubmissionService
	submitLimits fiber.Handler
	logger       zerolog.Logger
}

// NewSubmissionHandler constructs the handler. submitLimits throttles the
// submit route; nil disables throttling.
func NewSubmissionHandler(service service.SubmissionService, submitLimits fiber.Handler, logger zerolog.Logger) *SubmissionHandler {
	if submitLimits == nil {
		submitLimits = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &SubmissionHandler{
		service:      service,
		submitLimits: submitLimits,
		logger:       logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission routes to the assessments group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	student := middleware.RequireStudent()

	router.Post("/:id/start", student, h.start)
	router.Post("/:id/submit", student, h.submitLimits, h.submit)
	router.Get("/:id/my-submission", student, h.mine)
	router.Get("/:id/submissions", middleware.RequireStaff(), h.list)
}

func (h *SubmissionHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.Start(requestContext(c), id, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to start attempt")
	}

	return utils.SendSuccess(c, "attempt started", attempt)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Submit(requestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit assessment")
	}

	requestLogger(h.logger, c).Info().
		Uint("assessment_id", id).
		Uint("submission_id", submission.ID).
		Bool("late", submission.Late).
		Msg("assessment submitted")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment submitted", submission)
}

func (h *SubmissionHandler) mine(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.MySubmission(requestContext(c), id, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListForAssessment(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}
