package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantedAccountRepository is the persistence port for granted free
// accounts. Emails are stored lower case.
type GrantedAccountRepository interface {
	Create(ctx context.Context, account *domain.GrantedFreeAccount) error
	GetByEmail(ctx context.Context, email string) (*domain.GrantedFreeAccount, error)
	// Consume marks the token used, guarded by is_used = false so a
	// token can never be consumed twice. ErrConditionFailed signals a
	// token that was already spent (or does not match).
	Consume(ctx context.Context, email, token string, usedAt time.Time) error
}

// postgresGrantedRepo implements GrantedAccountRepository on PostgreSQL.
type postgresGrantedRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresGrantedRepository creates the PostgreSQL granted-account repository.
func NewPostgresGrantedRepository(pool *pgxpool.Pool, log *logger.Logger) GrantedAccountRepository {
	return &postgresGrantedRepo{pool: pool, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create stores a new granted account.
func (r *postgresGrantedRepo) Create(ctx context.Context, account *domain.GrantedFreeAccount) error {
	account.Email = normalizeEmail(account.Email)
	account.CreatedAt = time.Now()

	query := `
        INSERT INTO granted_free_accounts (email, plan, token, is_used, used_at, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		account.Email, account.Plan, account.Token, account.IsUsed,
		account.UsedAt, account.ExpiresAt, account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		r.log.Errorw("Failed to create granted account in DB", "error", err, "email", account.Email)
		return fmt.Errorf("repository: failed to create granted account: %w", err)
	}
	return nil
}

// GetByEmail returns the granted account for an email.
func (r *postgresGrantedRepo) GetByEmail(ctx context.Context, email string) (*domain.GrantedFreeAccount, error) {
	email = normalizeEmail(email)

	var a domain.GrantedFreeAccount
	query := `
        SELECT email, plan, token, is_used, used_at, expires_at, created_at
        FROM granted_free_accounts WHERE email = $1`
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&a.Email, &a.Plan, &a.Token, &a.IsUsed, &a.UsedAt, &a.ExpiresAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get granted account from DB", "error", err, "email", email)
		return nil, fmt.Errorf("repository: failed to get granted account: %w", err)
	}
	return &a, nil
}

// Consume spends the one-time token.
func (r *postgresGrantedRepo) Consume(ctx context.Context, email, token string, usedAt time.Time) error {
	email = normalizeEmail(email)

	query := `
        UPDATE granted_free_accounts
        SET is_used = TRUE, used_at = $3
        WHERE email = $1 AND token = $2 AND is_used = FALSE
          AND (expires_at IS NULL OR expires_at > $3)`
	tag, err := r.pool.Exec(ctx, query, email, token, usedAt)
	if err != nil {
		r.log.Errorw("Failed to consume granted token in DB", "error", err, "email", email)
		return fmt.Errorf("repository: failed to consume granted token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}

	r.log.Debugw("Granted token consumed", "email", email)
	return nil
}
