package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/config"
	"github.com/noah-isme/gema-assessment-api/internal/database"
	"github.com/noah-isme/gema-assessment-api/internal/handler"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/router"
	"github.com/noah-isme/gema-assessment-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

type testApp struct {
	app    *fiber.App
	db     *gorm.DB
	roster repository.RosterRepository
}

// setupApp builds the full API against an in-memory database. Callers pick
// their identity per request through the X-Test-User and X-Test-Role headers.
func setupApp(t *testing.T, cfg config.Config) testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:http_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	assessmentRepo := repository.NewAssessmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)

	clock := service.NewStoredAttemptClock(repository.NewAttemptRepository(db))

	assessmentService := service.NewAssessmentService(assessmentRepo, rosterRepo, clock, activityService, nil, validate, logger)
	submissionService := service.NewSubmissionService(assessmentRepo, submissionRepo, rosterRepo, clock, activityService, nil, validate, service.SubmissionConfig{RejectLate: cfg.RejectLate()}, logger)
	gradingService := service.NewGradingService(assessmentRepo, submissionRepo, activityService, nil, validate, logger)
	statisticsService := service.NewStatisticsService(assessmentRepo, submissionRepo, rosterRepo, logger)
	imageService := service.NewImageService(nil, 0, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssessmentHandler: handler.NewAssessmentHandler(assessmentService, statisticsService, activityService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, nil, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, logger),
		ImageHandler:      handler.NewImageHandler(imageService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64); err == nil {
				c.Locals("user_id", uint(id))
				c.Locals("user_role", c.Get("X-Test-Role"))
			}
			return c.Next()
		},
	})

	return testApp{app: app, db: db, roster: rosterRepo}
}

func (a testApp) do(t *testing.T, method, path string, userID uint, role string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
		req.Header.Set("X-Test-Role", role)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	decodeResponse(t, resp, &env)
	return resp, env
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func quizPayload() map[string]interface{} {
	return map[string]interface{}{
		"title":                 "Go basics",
		"course_id":             1,
		"batch_id":              2,
		"passing_score_percent": 50,
		"questions": []map[string]interface{}{
			{"id": "q-mc", "type": "multiple_choice", "text": "Which keyword declares a constant?", "points": 10, "options": []string{"var", "const", "let"}, "correct_option_index": 1},
			{"id": "q-tf", "type": "true_false", "text": "Go has generics.", "points": 5, "correct_option_index": 0},
			{"id": "q-sa", "type": "short_answer", "text": "Explain goroutines.", "points": 5, "expected_answer": "lightweight threads"},
		},
	}
}
