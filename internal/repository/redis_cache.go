package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for the cached entities
	tenantKeyPrefix       = "tenant:"
	checkoutLockKeyPrefix = "checkout_lock:"

	// TTLs
	defaultCacheTTL    = 15 * time.Minute
	checkoutLockTTL    = 2 * time.Minute
	redisConnectPingTO = 5 * time.Second
)

// RedisCacheRepository caches tenants in Redis and hands out the
// short-lived locks used to deduplicate checkout creation.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository creates a new Redis cache repository.
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectPingTO)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{client: client, log: log}, nil
}

// Close closes the Redis connection.
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheTenant stores a tenant in Redis.
func (r *RedisCacheRepository) CacheTenant(ctx context.Context, tenant *domain.Tenant) error {
	key := tenantKeyPrefix + tenant.ID.String()

	data, err := json.Marshal(tenant)
	if err != nil {
		r.log.Errorw("Failed to marshal tenant for caching", "error", err, "tenantID", tenant.ID)
		return fmt.Errorf("failed to marshal tenant: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache tenant in Redis", "error", err, "tenantID", tenant.ID)
		return fmt.Errorf("failed to cache tenant: %w", err)
	}

	r.log.Debugw("Tenant cached", "tenantID", tenant.ID)
	return nil
}

// GetCachedTenant fetches a tenant from the cache. A cache miss
// returns (nil, nil).
func (r *RedisCacheRepository) GetCachedTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	key := tenantKeyPrefix + id.String()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.log.Errorw("Error getting tenant from Redis", "error", err, "tenantID", id)
		return nil, fmt.Errorf("failed to get tenant from cache: %w", err)
	}

	var tenant domain.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		r.log.Errorw("Failed to unmarshal cached tenant", "error", err, "tenantID", id)
		return nil, fmt.Errorf("failed to unmarshal cached tenant: %w", err)
	}
	return &tenant, nil
}

// InvalidateTenant drops a tenant from the cache.
func (r *RedisCacheRepository) InvalidateTenant(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, tenantKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate tenant cache: %w", err)
	}
	return nil
}

// AcquireCheckoutLock takes a short-lived lock for one tenant+plan
// pair. It returns false when another checkout for the same pair is
// already in flight.
func (r *RedisCacheRepository) AcquireCheckoutLock(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID) (bool, error) {
	key := fmt.Sprintf("%s%s:%s", checkoutLockKeyPrefix, tenantID, plan)
	ok, err := r.client.SetNX(ctx, key, 1, checkoutLockTTL).Result()
	if err != nil {
		r.log.Errorw("Failed to acquire checkout lock", "error", err, "tenantID", tenantID, "plan", plan)
		return false, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	return ok, nil
}

// ReleaseCheckoutLock releases the checkout lock early.
func (r *RedisCacheRepository) ReleaseCheckoutLock(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID) {
	key := fmt.Sprintf("%s%s:%s", checkoutLockKeyPrefix, tenantID, plan)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Warnw("Failed to release checkout lock", "error", err, "tenantID", tenantID, "plan", plan)
	}
}
