package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/email"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// GrantedCheck is the lookup result for a registration email.
type GrantedCheck struct {
	Granted   bool
	Plan      domain.PlanID
	ExpiresAt *time.Time
}

// GrantedActivation identifies the church consuming a grant. The
// church name goes into the notification email.
type GrantedActivation struct {
	Email      string
	Token      string
	ChurchID   uuid.UUID
	ChurchName string
}

// GrantedAccountService manages administrator-provisioned free
// accounts.
type GrantedAccountService interface {
	// Check tells the registration flow whether an email has an
	// unredeemed grant, which plan it carries and when it expires.
	Check(ctx context.Context, emailAddr string) (*GrantedCheck, error)

	// Activate consumes the one-time token and reports the granted
	// plan. The token becomes permanently inert.
	Activate(ctx context.Context, input GrantedActivation) (domain.PlanID, error)

	// Grant provisions a new granted account and returns it with a
	// freshly generated token.
	Grant(ctx context.Context, emailAddr string, plan domain.PlanID, expiresAt *time.Time) (*domain.GrantedFreeAccount, error)
}

type grantedService struct {
	repo     repository.GrantedAccountRepository
	notifier email.Notifier
	metrics  metrics.BillingMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewGrantedAccountService creates the granted account service.
func NewGrantedAccountService(
	repo repository.GrantedAccountRepository,
	notifier email.Notifier,
	m metrics.BillingMetrics,
	log *logger.Logger,
) GrantedAccountService {
	return &grantedService{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Check looks up an email without consuming anything.
func (s *grantedService) Check(ctx context.Context, emailAddr string) (*GrantedCheck, error) {
	account, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &GrantedCheck{}, nil
		}
		return nil, err
	}
	if !account.Redeemable(s.now()) {
		return &GrantedCheck{}, nil
	}
	return &GrantedCheck{Granted: true, Plan: account.Plan, ExpiresAt: account.ExpiresAt}, nil
}

// Activate spends the token. The conditional update in the repository
// makes concurrent activations lose cleanly.
func (s *grantedService) Activate(ctx context.Context, input GrantedActivation) (domain.PlanID, error) {
	now := s.now()
	emailAddr, token := input.Email, input.Token

	account, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.NewNotFoundError("granted account", emailAddr)
		}
		return "", err
	}

	if account.Token != strings.TrimSpace(token) {
		return "", domain.ErrUnauthorized
	}
	if !account.Redeemable(now) {
		return "", fmt.Errorf("%w: token already used or expired", domain.ErrInvalidInput)
	}

	if err := s.repo.Consume(ctx, emailAddr, account.Token, now); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return "", fmt.Errorf("%w: token already used or expired", domain.ErrInvalidInput)
		}
		return "", err
	}

	if _, err := s.notifier.Send(ctx, email.TypeFreeAccountUsed, emailAddr, email.TemplateData{
		ChurchName:   input.ChurchName,
		PlanName:     planName(account.Plan),
		GrantedEmail: emailAddr,
	}); err != nil {
		s.metrics.IncEmail(string(email.TypeFreeAccountUsed), "error")
		s.log.Errorw("Failed to send activation email", "error", err, "email", emailAddr)
	} else {
		s.metrics.IncEmail(string(email.TypeFreeAccountUsed), "ok")
	}

	s.log.Infow("Granted account activated", "email", emailAddr, "plan", account.Plan, "churchID", input.ChurchID)
	return account.Plan, nil
}

// Grant provisions a granted free account with a fresh token.
func (s *grantedService) Grant(ctx context.Context, emailAddr string, plan domain.PlanID, expiresAt *time.Time) (*domain.GrantedFreeAccount, error) {
	if _, err := domain.GetPlan(plan); err != nil {
		return nil, err
	}
	if strings.TrimSpace(emailAddr) == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	account := &domain.GrantedFreeAccount{
		Email:     emailAddr,
		Plan:      plan,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a grant already exists for %s", domain.ErrDuplicate, emailAddr)
		}
		return nil, err
	}

	s.log.Infow("Free account granted", "email", emailAddr, "plan", plan)
	return account, nil
}

// generateToken produces a 32-hex-char one-time credential.
func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
