package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesAssessmentCollectors(t *testing.T) {
	SubmissionsTotal().WithLabelValues("accepted").Inc()
	ManualGradesTotal().WithLabelValues("applied").Inc()
	GradingDuration().Observe(0.002)

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `assessment_submissions_total{outcome="accepted"}`)
	require.Contains(t, string(body), `assessment_manual_grades_total{result="applied"}`)
	require.Contains(t, string(body), "assessment_grading_duration_seconds_count")
}
