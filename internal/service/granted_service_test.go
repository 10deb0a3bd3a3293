package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/email"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
)

func grantedActivation(emailAddr, token string) GrantedActivation {
	return GrantedActivation{
		Email:      emailAddr,
		Token:      token,
		ChurchID:   uuid.New(),
		ChurchName: "Igreja Central",
	}
}

func newGrantedFixture(t *testing.T) (GrantedAccountService, *repository.InMemoryGrantedRepository, *email.RecorderNotifier) {
	t.Helper()
	repo := repository.NewInMemoryGrantedRepository()
	notifier := email.NewRecorderNotifier()
	svc := NewGrantedAccountService(repo, notifier, metrics.NoOpMetrics{}, testLogger())
	return svc, repo, notifier
}

func TestGrantAndCheck(t *testing.T) {
	svc, _, _ := newGrantedFixture(t)

	account, err := svc.Grant(context.Background(), "Pastor@Igreja.com.br", domain.PlanOuro, nil)
	require.NoError(t, err)
	assert.Len(t, account.Token, 32)
	assert.Equal(t, "pastor@igreja.com.br", account.Email, "email stored normalized")

	check, err := svc.Check(context.Background(), "pastor@igreja.com.br")
	require.NoError(t, err)
	assert.True(t, check.Granted)
	assert.Equal(t, domain.PlanOuro, check.Plan)

	// Unknown emails just report not granted.
	check, err = svc.Check(context.Background(), "outro@example.com")
	require.NoError(t, err)
	assert.False(t, check.Granted)
}

func TestCheckReportsExpiry(t *testing.T) {
	svc, _, _ := newGrantedFixture(t)

	expiresAt := time.Now().AddDate(0, 1, 0)
	_, err := svc.Grant(context.Background(), "tesoureiro@igreja.com.br", domain.PlanPrata, &expiresAt)
	require.NoError(t, err)

	check, err := svc.Check(context.Background(), "tesoureiro@igreja.com.br")
	require.NoError(t, err)
	assert.True(t, check.Granted)
	require.NotNil(t, check.ExpiresAt)
	assert.Equal(t, expiresAt, *check.ExpiresAt)
}

func TestGrantRejectsBadInput(t *testing.T) {
	svc, _, _ := newGrantedFixture(t)

	_, err := svc.Grant(context.Background(), "pastor@igreja.com.br", "platina", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)

	_, err = svc.Grant(context.Background(), "  ", domain.PlanOuro, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Grant(context.Background(), "pastor@igreja.com.br", domain.PlanOuro, nil)
	require.NoError(t, err)
	_, err = svc.Grant(context.Background(), "pastor@igreja.com.br", domain.PlanPrata, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestActivateConsumesTokenOnce(t *testing.T) {
	svc, _, notifier := newGrantedFixture(t)

	account, err := svc.Grant(context.Background(), "pastor@igreja.com.br", domain.PlanDiamante, nil)
	require.NoError(t, err)

	plan, err := svc.Activate(context.Background(), grantedActivation(account.Email, account.Token))
	require.NoError(t, err)
	assert.Equal(t, domain.PlanDiamante, plan)
	assert.Len(t, notifier.Sent(), 1)
	assert.Equal(t, email.TypeFreeAccountUsed, notifier.Sent()[0].Type)
	assert.Equal(t, "Igreja Central", notifier.Sent()[0].Data.ChurchName)

	// The token is permanently inert after use.
	_, err = svc.Activate(context.Background(), grantedActivation(account.Email, account.Token))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Len(t, notifier.Sent(), 1)

	check, err := svc.Check(context.Background(), account.Email)
	require.NoError(t, err)
	assert.False(t, check.Granted)
}

func TestActivateWrongToken(t *testing.T) {
	svc, _, _ := newGrantedFixture(t)

	account, err := svc.Grant(context.Background(), "pastor@igreja.com.br", domain.PlanOuro, nil)
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), grantedActivation(account.Email, "deadbeef"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Activate(context.Background(), grantedActivation("desconhecido@example.com", account.Token))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestActivateExpiredToken(t *testing.T) {
	svc, _, _ := newGrantedFixture(t)

	expired := time.Now().Add(-time.Hour)
	account, err := svc.Grant(context.Background(), "pastor@igreja.com.br", domain.PlanOuro, &expired)
	require.NoError(t, err)

	check, err := svc.Check(context.Background(), account.Email)
	require.NoError(t, err)
	assert.False(t, check.Granted, "expired grants are invisible to registration")

	_, err = svc.Activate(context.Background(), grantedActivation(account.Email, account.Token))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Concurrent activations of the same token succeed at most once.
func TestActivateConcurrent(t *testing.T) {
	svc, _, notifier := newGrantedFixture(t)

	account, err := svc.Grant(context.Background(), "pastor@igreja.com.br", domain.PlanOuro, nil)
	require.NoError(t, err)

	const attempts = 10
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Activate(context.Background(), grantedActivation(account.Email, account.Token))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, notifier.Sent(), 1)
}
