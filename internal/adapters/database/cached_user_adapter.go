package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/internal/domain/providers"
	"github.com/clinicbook/backend/internal/domain/repositories"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
)

// CachedUserAdapter wraps a UserRepository with read-through caching.
// Cache calls go through a circuit breaker so a failing Redis degrades to
// direct database reads instead of adding latency to every request.
type CachedUserAdapter struct {
	adapter repositories.UserRepository
	cache   providers.CacheProvider
	breaker *gobreaker.CircuitBreaker[[]byte]
	ttl     int
	metrics *observability.Metrics
}

// Default TTL (in seconds) when none is configured
const userCacheTTL = 300

const (
	userCacheWriteTimeout = 2 * time.Second
	userCacheKeyspace     = "user"
)

// Cache key generators
func userByIDCacheKey(id string) string {
	return fmt.Sprintf("user:id:%s", id)
}

func userByEmailCacheKey(email string) string {
	return fmt.Sprintf("user:email:%s", email)
}

// NewCachedUserAdapter creates a new cached user adapter
func NewCachedUserAdapter(adapter repositories.UserRepository, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) repositories.UserRepository {
	if ttlSeconds <= 0 {
		ttlSeconds = userCacheTTL
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "user-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, providers.ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.GetLogger().Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache circuit breaker changed state")
		},
	})

	return &CachedUserAdapter{
		adapter: adapter,
		cache:   cache,
		breaker: breaker,
		ttl:     ttlSeconds,
		metrics: metrics,
	}
}

// GetByID retrieves a user by ID with caching
func (a *CachedUserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return a.readThrough(ctx, userByIDCacheKey(id), func() (*entities.User, error) {
		return a.adapter.GetByID(ctx, id)
	})
}

// GetByEmail retrieves a user by email with caching
func (a *CachedUserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return a.readThrough(ctx, userByEmailCacheKey(email), func() (*entities.User, error) {
		return a.adapter.GetByEmail(ctx, email)
	})
}

func (a *CachedUserAdapter) readThrough(ctx context.Context, key string, load func() (*entities.User, error)) (*entities.User, error) {
	logger := observability.LoggerFromContext(ctx)

	cached, err := a.breaker.Execute(func() ([]byte, error) {
		return a.cache.Get(ctx, key)
	})
	if err == nil {
		var user entities.User
		if err := json.Unmarshal(cached, &user); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, userCacheKeyspace)
			return &user, nil
		}
		logger.Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached user")
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		logger.Debug().Err(err).Str("key", key).Msg("user cache unavailable")
	}
	observability.RecordCacheMiss(ctx, a.metrics, userCacheKeyspace)

	user, err := load()
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	data, err := json.Marshal(user)
	if err != nil {
		return user, nil
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), userCacheWriteTimeout)
		defer cancel()
		_, err := a.breaker.Execute(func() ([]byte, error) {
			return nil, a.cache.Set(bgCtx, key, data, a.ttl)
		})
		if err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("failed to cache user")
		}
	}()

	return user, nil
}
