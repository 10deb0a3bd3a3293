package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/email"
	"github.com/ecclesia-cloud/billing-service/internal/kafka"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

type planTestEnv struct {
	router  *gin.Engine
	tenants *repository.InMemoryTenantRepository
}

func newPlanTestEnv(t *testing.T) *planTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.ERROR)

	tenants := repository.NewInMemoryTenantRepository()
	coupons := repository.NewInMemoryCouponRepository()
	couponSvc := service.NewCouponService(coupons, metrics.NoOpMetrics{}, log)
	subscriptions := service.NewSubscriptionService(
		tenants, couponSvc, nil, email.NewRecorderNotifier(), kafka.NoOpProducer{}, metrics.NoOpMetrics{}, 0, log)

	handler := NewPlanHandler(subscriptions, log)
	router := gin.New()
	router.GET("/api/v1/plans", handler.GetPlans)
	router.POST("/api/v1/plans/prorata", handler.ProRataQuote)

	return &planTestEnv{router: router, tenants: tenants}
}

func TestGetPlans(t *testing.T) {
	env := newPlanTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Plans []struct {
			ID           string  `json:"id"`
			MonthlyPrice float64 `json:"monthlyPrice"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Plans, 4)
	assert.Equal(t, "free", body.Plans[0].ID)
	assert.Equal(t, 199.0, body.Plans[3].MonthlyPrice)
}

func TestProRataQuote(t *testing.T) {
	env := newPlanTestEnv(t)

	// Anchored 20 days ago in a 30-day window the credit formula gives
	// price * remaining/cycle days.
	tenant := domain.NewTenant("igreja-central", "Igreja Central", "Maria Souza", "maria@igrejacentral.com.br")
	tenant.Status = domain.TenantStatusActive
	tenant.Plan = domain.PlanPrata
	tenant.CycleAnchorAt = time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -15)
	require.NoError(t, env.tenants.Create(context.Background(), tenant))

	payload, _ := json.Marshal(map[string]string{
		"churchId": tenant.ID.String(),
		"newPlan":  "free",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans/prorata", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success       bool    `json:"success"`
		ProRataCredit float64 `json:"proRataCredit"`
		DaysRemaining int     `json:"daysRemaining"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Greater(t, body.ProRataCredit, 0.0)
	assert.Greater(t, body.DaysRemaining, 0)
}

func TestProRataQuoteValidation(t *testing.T) {
	env := newPlanTestEnv(t)

	payload, _ := json.Marshal(map[string]string{"newPlan": "free"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans/prorata", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "missing churchId fails validation")
}
