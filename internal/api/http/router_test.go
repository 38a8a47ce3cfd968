package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/api/http/handlers"
	"github.com/spec-kit/dispute-service/internal/auth"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/events"
	"github.com/spec-kit/dispute-service/internal/observability"
	"github.com/spec-kit/dispute-service/internal/persistence"
	"github.com/spec-kit/dispute-service/internal/repository"
	"github.com/spec-kit/dispute-service/internal/service"
	"github.com/spec-kit/dispute-service/internal/workflow"
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 1, 12, 10, 0, 0, 0, time.UTC)
	svc := service.NewDisputeService(service.DisputeDependencies{
		DisputeRepo: repository.NewMemoryDisputeRepository(),
		OrderLookup: repository.NewMemoryOrderLookup(domain.LineItem{
			SubOrderID:      "so-1",
			RenterID:        "renter-1",
			OwnerID:         "owner-1",
			Deposit:         2_000_000,
			RentalTotal:     700_000,
			ShippingFee:     30_000,
			RentalStartDate: start,
			RentalEndDate:   start.AddDate(0, 0, 7),
		}),
		PartyDirectory: repository.NewMemoryPartyDirectory(),
		Machine:        workflow.NewMachine(workflow.DefaultPolicy()),
		Dispatcher:     events.NewInMemoryDispatcher(),
		Clock:          func() time.Time { return now },
	})

	tokens := auth.NewTokenManager("test-secret", 60)
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("rental-dispute-service", "test", &persistence.Postgres{}, &persistence.Redis{Client: client}),
		Disputes:       handlers.NewDisputesHandler(svc),
		Admin:          handlers.NewAdminDisputesHandler(svc),
		Settlements:    handlers.NewSettlementsHandler(svc),
		Events:         handlers.NewEventsHandler(svc, events.NewRedisBroadcaster(client, "disputes", zap.NewNop()), zap.NewNop()),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, userID string, subject domain.SubjectType) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(userID, subject)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "disabled", body.Dependencies["postgres"])
	assert.Equal(t, "ok", body.Dependencies["redis"])
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/disputes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/disputes", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestDisputeLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	renter := s.token(t, "renter-1", domain.SubjectTypeUser)
	owner := s.token(t, "owner-1", domain.SubjectTypeUser)
	admin := s.token(t, "admin-1", domain.SubjectTypeAdmin)

	status, env := s.do(t, http.MethodPost, "/api/v1/disputes", renter, map[string]any{
		"sub_order_id":  "so-1",
		"product_index": 0,
		"type":          "PRODUCT_DEFECT",
		"shipment_type": "DELIVERY",
		"evidence":      map[string]any{"description": "lens cracked", "media_uris": []string{"s3://a.jpg"}},
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	created := decode[domain.Dispute](t, env.Data)
	assert.Equal(t, domain.DisputeStatusOpen, created.Status)
	base := "/api/v1/disputes/" + created.ID

	status, env = s.do(t, http.MethodGet, base, owner, nil)
	require.Equal(t, http.StatusOK, status)
	detail := decode[struct {
		Dispute          domain.Dispute    `json:"dispute"`
		AvailableActions []workflow.Action `json:"available_actions"`
	}](t, env.Data)
	assert.Contains(t, detail.AvailableActions, workflow.ActionRespond)

	status, env = s.do(t, http.MethodGet, base, s.token(t, "stranger", domain.SubjectTypeUser), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodPost, base+"/response", owner, map[string]any{
		"expected_status": "ADMIN_REVIEWING",
		"decision":        "REJECTED",
		"reason":          "fine when shipped",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, env = s.do(t, http.MethodPost, base+"/response", owner, map[string]any{
		"expected_status": "OPEN",
		"decision":        "REJECTED",
		"reason":          "fine when shipped",
	})
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	assert.Equal(t, domain.DisputeStatusRespondentRejected, decode[domain.Dispute](t, env.Data).Status)

	status, env = s.do(t, http.MethodPost, base+"/admin/review", renter, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = s.do(t, http.MethodPost, base+"/admin/review", admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error.Message)

	status, env = s.do(t, http.MethodPost, base+"/admin/decision", admin, map[string]any{
		"decision":  "COMPLAINANT_RIGHT",
		"reasoning": "video shows the crack",
	})
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	assert.Equal(t, domain.DisputeStatusAdminDecisionMade, decode[domain.Dispute](t, env.Data).Status)

	status, env = s.do(t, http.MethodPost, base+"/admin-decision/response", renter, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "accepted", env.Error.Details["field"])

	status, _ = s.do(t, http.MethodPost, base+"/admin-decision/response", renter, map[string]any{"accepted": true})
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodPost, base+"/admin-decision/response", owner, map[string]any{"accepted": true})
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	resolved := decode[domain.Dispute](t, env.Data)
	assert.Equal(t, domain.DisputeStatusResolved, resolved.Status)
	require.Len(t, resolved.Settlements, 1)
	assert.Equal(t, domain.Money(2_700_000), resolved.Settlements[0].Amounts.TotalRefundToRenter)

	status, env = s.do(t, http.MethodPost, base+"/withdraw", renter, map[string]any{"reason": "too late"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/reputation/owner-1", owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 70, decode[domain.Reputation](t, env.Data).CreditScore)

	status, _ = s.do(t, http.MethodGet, "/api/v1/reputation/owner-1", renter, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/disputes?status=RESOLVED", renter, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]map[string]any](t, env.Data)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0]["id"])
}

func TestSettlementPreview(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "renter-1", domain.SubjectTypeUser)

	status, env := s.do(t, http.MethodPost, "/api/v1/settlements/preview", token, map[string]any{
		"deposit":           2_000_000,
		"rental_total":      700_000,
		"shipping_fee":      30_000,
		"rental_start_date": "2025-01-03T00:00:00Z",
		"rental_end_date":   "2025-01-10T00:00:00Z",
		"ruling":            "RESPONDENT_RIGHT",
	})
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	got := decode[domain.Settlement](t, env.Data)
	assert.Equal(t, domain.Money(2_600_000), got.TotalRefundToRenter)
	assert.Equal(t, domain.Money(100_000), got.Penalty)

	status, env = s.do(t, http.MethodPost, "/api/v1/settlements/preview", token, map[string]any{
		"rental_start_date": "2025-01-03T00:00:00Z",
		"rental_end_date":   "2025-01-10T00:00:00Z",
		"ruling":            "SPLIT",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestEventStreamRequiresParty(t *testing.T) {
	s := newTestServer(t)
	renter := s.token(t, "renter-1", domain.SubjectTypeUser)

	status, env := s.do(t, http.MethodPost, "/api/v1/disputes", renter, map[string]any{
		"sub_order_id":  "so-1",
		"type":          "PRODUCT_DEFECT",
		"shipment_type": "DELIVERY",
		"evidence":      map[string]any{"description": "lens cracked"},
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	created := decode[domain.Dispute](t, env.Data)

	status, env = s.do(t, http.MethodGet, "/api/v1/disputes/"+created.ID+"/events", s.token(t, "stranger", domain.SubjectTypeUser), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}
