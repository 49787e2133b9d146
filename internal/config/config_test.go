package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, LatePolicyFlag, cfg.LatePolicy)
	require.False(t, cfg.RejectLate())
	require.Equal(t, 24*time.Hour, cfg.AttemptGrace)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "gema.assessments", cfg.EventsSubject)
}

func TestLoadRejectPolicy(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_ASSESSMENT_LATE_POLICY", "Reject")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.RejectLate())
}

func TestLoadValidates(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_ASSESSMENT_LATE_POLICY", "ignore")
	_, err = Load()
	require.Error(t, err)
}
