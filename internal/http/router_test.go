package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	jwttoken "wrls/internal/jwt_token"
	"wrls/internal/notices/handler"
	"wrls/internal/notices/handler/mocks"
	"wrls/internal/notices/models"
	"wrls/internal/notices/service"
	"wrls/internal/platform/metrics"
	"wrls/pkg/platform/middleware/request"
	"wrls/pkg/testutil"
)

const (
	signingKey = "test-signing-key"
	staffRole  = "bulkReturnNotifications"
)

func newRouter(t *testing.T, svc handler.Service, health map[string]HealthCheck) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := jwttoken.NewJWTService(signingKey, "wrls-idm", "wrls-notices")
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Notices:   handler.New(svc, logger),
		Validator: jwttoken.NewJWTServiceAdapter(jwt),
		StaffRole: staffRole,
		Metrics:   metrics.NewWithRegisterer(reg),
		Gatherer:  reg,
		Health:    health,
		Logger:    logger,
	}), jwt
}

func TestNoticesRequireStaffToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	router, jwt := newRouter(t, svc, nil)

	t.Run("missing token", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/notices/events/"+uuid.NewString()))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
		assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
	})

	t.Run("token without the staff role", func(t *testing.T) {
		token, err := jwt.GenerateAccessToken("clerk@wrls.gov.uk", []string{"billing"}, time.Minute)
		require.NoError(t, err)
		req := testutil.NewRequest(t, http.MethodGet, "/notices/events/"+uuid.NewString())
		req.Header.Set("Authorization", "Bearer "+token)

		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("staff token reaches the handler with the caller in context", func(t *testing.T) {
		token, err := jwt.GenerateAccessToken("officer@wrls.gov.uk", []string{staffRole}, time.Minute)
		require.NoError(t, err)
		svc.EXPECT().CreateSession(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ service.SetupCommand) (*models.Session, error) {
				return &models.Session{CreatedBy: "officer@wrls.gov.uk"}, nil
			})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/notices/setup", map[string]any{"notice_type": "invitations"})
		req.Header.Set("Authorization", "Bearer "+token)

		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "created_by", "officer@wrls.gov.uk")
	})
}

func TestHealth(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("all dependencies up", func(t *testing.T) {
		router, _ := newRouter(t, mocks.NewMockService(ctrl), map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "postgres", "ok")
	})

	t.Run("a failing dependency degrades", func(t *testing.T) {
		router, _ := newRouter(t, mocks.NewMockService(ctrl), map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(t, rr, "status", "degraded")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(t, mocks.NewMockService(gomock.NewController(t)), nil)
	testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "wrls_http_requests_total")
}
