package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_NAME", "REDIS_DB", "REDIS_CHANNEL_PREFIX", "DISPUTE_NEGOTIATION_WINDOW_HOURS",
		"DISPUTE_RESCHEDULE_CEILING_DAYS", "DISPUTE_EVIDENCE_WINDOW_DAYS",
		"DISPUTE_RESCHEDULE_PENALTY_PERCENT", "DISPUTE_SWEEP_INTERVAL_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "rental-dispute-service", cfg.App.Name)
	assert.Equal(t, "disputes", cfg.Redis.ChannelPrefix)
	assert.Equal(t, 72*time.Hour, cfg.Dispute.NegotiationWindow())
	assert.Equal(t, 7, cfg.Dispute.RescheduleCeilingDays)
	assert.Equal(t, 7*24*time.Hour, cfg.Dispute.EvidenceWindow())
	assert.Equal(t, 10, cfg.Dispute.ReschedulePenaltyPercent)
	assert.Equal(t, time.Minute, cfg.Dispute.SweepInterval())
}

func TestLoadDisputeOverrides(t *testing.T) {
	t.Setenv("DISPUTE_NEGOTIATION_WINDOW_HOURS", "24")
	t.Setenv("DISPUTE_RESCHEDULE_CEILING_DAYS", "-3")
	t.Setenv("DISPUTE_RESCHEDULE_PENALTY_PERCENT", "150")
	t.Setenv("DISPUTE_SWEEP_INTERVAL_SECONDS", "0")
	t.Setenv("DISPUTE_EVIDENCE_WINDOW_DAYS", "abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Dispute.NegotiationWindow())
	assert.Equal(t, 7, cfg.Dispute.RescheduleCeilingDays)
	assert.Equal(t, 10, cfg.Dispute.ReschedulePenaltyPercent)
	assert.Equal(t, 7, cfg.Dispute.EvidenceWindowDays)
	assert.Zero(t, cfg.Dispute.SweepInterval())
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	_, err := Load()
	assert.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, AppConfig{RequestTimeoutSeconds: 30}.RequestTimeout())
	assert.Zero(t, AppConfig{}.RequestTimeout())
	assert.Equal(t, "0.0.0.0:8080", AppConfig{Host: "0.0.0.0", Port: "8080"}.Addr())
}
