package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/moabank/ledger-service/internal/domain"
)

// RedisPipeline implements Pipeline on Redis. Both classification stages may
// write to the same account's hash concurrently; HSET makes that safe without
// extra locking.
type RedisPipeline struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPipeline creates a Redis-backed pipeline cache. An empty prefix
// defaults to "ledger".
func NewRedisPipeline(client redis.UniversalClient, prefix string) *RedisPipeline {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "ledger"
	}
	trimmed = strings.TrimSuffix(trimmed, ":")

	return &RedisPipeline{client: client, prefix: trimmed}
}

func (r *RedisPipeline) key(suffix string) string {
	return r.prefix + ":" + suffix
}

// PutCategory records one description → category id mapping in the account hash.
func (r *RedisPipeline) PutCategory(ctx context.Context, accountID uuid.UUID, description string, categoryID int) error {
	key := r.key(categoryKey(accountID))
	if err := r.client.HSet(ctx, key, description, strconv.Itoa(categoryID)).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// GetCategories returns the whole description → id map for the account.
func (r *RedisPipeline) GetCategories(ctx context.Context, accountID uuid.UUID) (map[string]int, error) {
	key := r.key(categoryKey(accountID))
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}

	categories := make(map[string]int, len(raw))
	for field, value := range raw {
		if field == expectedTotalField {
			continue
		}
		id, convErr := strconv.Atoi(value)
		if convErr != nil {
			// A corrupt entry degrades to the default bucket rather than
			// failing the whole lookup.
			id = domain.CategoryOther
		}
		categories[field] = id
	}
	return categories, nil
}

// SetExpectedTotal stores the run's distinct-description count and arms the
// hash TTL so leftovers from an abandoned run cannot accumulate.
func (r *RedisPipeline) SetExpectedTotal(ctx context.Context, accountID uuid.UUID, total int) error {
	key := r.key(categoryKey(accountID))
	if err := r.client.HSet(ctx, key, expectedTotalField, strconv.Itoa(total)).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if err := r.client.Expire(ctx, key, CategoryTTL).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Progress reports how many descriptions have been classified against the
// expected total.
func (r *RedisPipeline) Progress(ctx context.Context, accountID uuid.UUID) (int, int, error) {
	key := r.key(categoryKey(accountID))
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("hgetall %s: %w", key, err)
	}

	expected := 0
	written := 0
	for field, value := range raw {
		if field == expectedTotalField {
			expected, _ = strconv.Atoi(value)
			continue
		}
		written++
	}
	return written, expected, nil
}

// AcquireRunLock claims the account's run by creating the status key only if
// absent. A held lock means a concurrent run is already in flight and the new
// attempt must be skipped, not queued.
func (r *RedisPipeline) AcquireRunLock(ctx context.Context, memberID uuid.UUID, accountNumber string) (bool, error) {
	key := r.key(statusKey(memberID, accountNumber))
	ok, err := r.client.SetNX(ctx, key, string(domain.StatusFetching), StatusTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// SetStatus advances the run's state machine, rejecting illegal transitions.
// The read-validate-write runs under WATCH so a concurrent writer invalidates
// the transaction and the transition is re-validated against the new state.
func (r *RedisPipeline) SetStatus(ctx context.Context, memberID uuid.UUID, accountNumber string, status domain.PipelineStatus) error {
	key := r.key(statusKey(memberID, accountNumber))

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		if err == redis.Nil {
			if status != domain.StatusFetching && status != domain.StatusFailed {
				return &IllegalTransitionError{To: status}
			}
		} else {
			current, parseErr := domain.ParsePipelineStatus(raw)
			if parseErr != nil {
				return parseErr
			}
			if !current.CanTransitionTo(status) {
				return &IllegalTransitionError{From: current, To: status}
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(status), StatusTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("set %s: %w", key, redis.TxFailedErr)
}

// GetStatus returns the run's current state, if any.
func (r *RedisPipeline) GetStatus(ctx context.Context, memberID uuid.UUID, accountNumber string) (domain.PipelineStatus, bool, error) {
	key := r.key(statusKey(memberID, accountNumber))
	raw, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}

	status, parseErr := domain.ParsePipelineStatus(raw)
	if parseErr != nil {
		return "", false, parseErr
	}
	return status, true, nil
}

var _ Pipeline = (*RedisPipeline)(nil)

// Ping verifies connectivity with a bounded deadline, for bootstrap checks.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Ping(pingCtx).Err()
}
