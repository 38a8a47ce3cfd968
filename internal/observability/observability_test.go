package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/config"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("ESCALATED_TO_THIRD_PARTY", "IN_NEGOTIATION", "THIRD_PARTY_ESCALATED")
	m.RecordTransition("ESCALATED_TO_THIRD_PARTY", "IN_NEGOTIATION", "THIRD_PARTY_ESCALATED")
	m.RecordRejection("RESPOND", "FORBIDDEN")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap["transitions"]["ESCALATED_TO_THIRD_PARTY|IN_NEGOTIATION|THIRD_PARTY_ESCALATED"])
	assert.Equal(t, int64(1), snap["rejections"]["RESPOND|FORBIDDEN"])

	var nilMetrics *Metrics
	nilMetrics.RecordTransition("x", "y", "z")
	assert.Nil(t, nilMetrics.Snapshot())
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assert.Equal(t, int64(1), m.Snapshot()["requests"]["/ping|GET|204"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "loud"}, config.AppConfig{})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestLoggerCarriesServiceFields(t *testing.T) {
	cfg := loggerConfig(config.LoggerConfig{Level: "debug"}, config.AppConfig{
		Name:    "rental-dispute-service",
		Env:     "production",
		Version: "1.4.0",
	})
	assert.Equal(t, map[string]interface{}{
		"service": "rental-dispute-service",
		"env":     "production",
		"version": "1.4.0",
	}, cfg.InitialFields)
	assert.False(t, cfg.Development)
	assert.Equal(t, zap.DebugLevel, cfg.Level.Level())

	assert.True(t, loggerConfig(config.LoggerConfig{}, config.AppConfig{Env: "development"}).Development)
}
