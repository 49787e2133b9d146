package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// AssessmentHandler exposes authoring, reading and reporting endpoints.
type AssessmentHandler struct {
	assessments service.AssessmentService
	statistics  service.StatisticsService
	activity    service.ActivityService
	logger      zerolog.Logger
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(assessments service.AssessmentService, statistics service.StatisticsService, activity service.ActivityService, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		statistics:  statistics,
		activity:    activity,
		logger:      logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register attaches assessment routes. Static segments are registered before
// the :id routes.
func (h *AssessmentHandler) Register(router fiber.Router) {
	staff := middleware.RequireStaff()
	anyone := middleware.RequireRole(middleware.RoleStudent, middleware.RoleTeacher, middleware.RoleAdmin)

	router.Get("/student/assigned", middleware.RequireStudent(), h.assigned)
	router.Post("/", staff, h.create)
	router.Get("/", staff, h.list)
	router.Get("/:id", anyone, h.get)
	router.Get("/:id/full", anyone, h.full)
	router.Post("/:id/questions", staff, h.appendQuestions)
	router.Get("/:id/statistics", staff, h.statisticsReport)
	router.Get("/:id/activity", staff, h.activityLog)
}

func (h *AssessmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssessmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.assessments.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create assessment")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment created", created)
}

func (h *AssessmentHandler) list(c *fiber.Ctx) error {
	var query dto.AssessmentListRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.assessments.List(requestContext(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assessments")
	}

	return utils.OK(c, result.Items, "assessments retrieved", result.Pagination)
}

func (h *AssessmentHandler) assigned(c *fiber.Ctx) error {
	items, err := h.assessments.ListAssigned(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assigned assessments")
	}

	return utils.SendSuccess(c, "assigned assessments retrieved", items)
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	item, err := h.assessments.Get(requestContext(c), id, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load assessment")
	}

	return utils.SendSuccess(c, "assessment retrieved", item)
}

func (h *AssessmentHandler) full(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	item, err := h.assessments.GetFull(requestContext(c), id, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load assessment")
	}

	return utils.SendSuccess(c, "assessment retrieved", item)
}

func (h *AssessmentHandler) appendQuestions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AppendQuestionsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	updated, err := h.assessments.AppendQuestions(requestContext(c), id, actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to append questions")
	}

	return utils.SendSuccess(c, "questions appended", updated)
}

func (h *AssessmentHandler) statisticsReport(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.statistics.ForAssessment(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute statistics")
	}

	return utils.SendSuccess(c, "statistics computed", report)
}

func (h *AssessmentHandler) activityLog(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var query dto.ActivityListRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	if _, err := h.assessments.Get(requestContext(c), id, actorFromContext(c)); err != nil {
		return respondError(c, h.logger, err, "failed to load assessment")
	}

	result, err := h.activity.ListForAssessment(requestContext(c), id, query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity")
	}

	return utils.OK(c, result.Items, "activity retrieved", result.Pagination)
}
