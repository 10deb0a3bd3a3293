package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEventRepository stores processor callbacks for idempotency
// and audit. The external event id carries a unique index; inserting a
// replayed event yields ErrDuplicate, which is how at-least-once
// delivery is collapsed to exactly-once processing.
type WebhookEventRepository interface {
	Insert(ctx context.Context, event *domain.WebhookEvent) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.WebhookEvent, error)
	MarkProcessed(ctx context.Context, externalID string, processedAt time.Time) error
	MarkFailed(ctx context.Context, externalID, message string) error
}

// postgresWebhookEventRepo implements WebhookEventRepository on PostgreSQL.
type postgresWebhookEventRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresWebhookEventRepository creates the PostgreSQL webhook event repository.
func NewPostgresWebhookEventRepository(pool *pgxpool.Pool, log *logger.Logger) WebhookEventRepository {
	return &postgresWebhookEventRepo{pool: pool, log: log}
}

// Insert stores a new webhook event in pending state.
func (r *postgresWebhookEventRepo) Insert(ctx context.Context, event *domain.WebhookEvent) error {
	event.CreatedAt = time.Now()
	if event.Status == "" {
		event.Status = domain.WebhookEventStatusPending
	}

	query := `
        INSERT INTO webhook_events (id, external_id, type, status, tenant_id, plan, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		event.ID, event.ExternalID, event.Type, event.Status,
		event.TenantID, event.Plan, event.Payload, event.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		r.log.Errorw("Failed to insert webhook event in DB", "error", err, "externalID", event.ExternalID)
		return fmt.Errorf("repository: failed to insert webhook event: %w", err)
	}
	return nil
}

// GetByExternalID loads a stored event by the processor's event id.
func (r *postgresWebhookEventRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.WebhookEvent, error) {
	query := `
        SELECT id, external_id, type, status, tenant_id, plan, payload,
               created_at, processed_at, error_message
        FROM webhook_events WHERE external_id = $1`
	var event domain.WebhookEvent
	err := r.pool.QueryRow(ctx, query, externalID).Scan(
		&event.ID, &event.ExternalID, &event.Type, &event.Status,
		&event.TenantID, &event.Plan, &event.Payload,
		&event.CreatedAt, &event.ProcessedAt, &event.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get webhook event from DB", "error", err, "externalID", externalID)
		return nil, fmt.Errorf("repository: failed to get webhook event: %w", err)
	}
	return &event, nil
}

// MarkProcessed records successful processing.
func (r *postgresWebhookEventRepo) MarkProcessed(ctx context.Context, externalID string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE webhook_events SET status = $2, processed_at = $3 WHERE external_id = $1`,
		externalID, domain.WebhookEventStatusProcessed, processedAt,
	)
	if err != nil {
		r.log.Errorw("Failed to mark webhook event processed", "error", err, "externalID", externalID)
		return fmt.Errorf("repository: failed to mark webhook event processed: %w", err)
	}
	return nil
}

// MarkFailed records a processing failure with its message.
func (r *postgresWebhookEventRepo) MarkFailed(ctx context.Context, externalID, message string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE webhook_events SET status = $2, error_message = $3 WHERE external_id = $1`,
		externalID, domain.WebhookEventStatusFailed, message,
	)
	if err != nil {
		r.log.Errorw("Failed to mark webhook event failed", "error", err, "externalID", externalID)
		return fmt.Errorf("repository: failed to mark webhook event failed: %w", err)
	}
	return nil
}
