package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assessment-api/internal/config"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// HealthResponse reports the service identity and which optional backends are
// configured. Unconfigured backends fall back to in-process behaviour.
type HealthResponse struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Service     string          `json:"service"`
	Environment string          `json:"environment"`
	LatePolicy  string          `json:"late_policy"`
	Backends    map[string]bool `json:"backends"`
}

// HealthCheck returns the liveness handler.
func HealthCheck(cfg config.Config) fiber.Handler {
	backends := map[string]bool{
		"redis":      cfg.RedisURL != "",
		"nats":       cfg.NATSURL != "",
		"cloudinary": cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "",
	}

	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "service healthy", HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			LatePolicy:  cfg.LatePolicy,
			Backends:    backends,
		})
	}
}
