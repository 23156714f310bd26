package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kernfi/kernfi/internal/model"
)

// Cache key prefixes and TTLs.
const (
	summaryKeyPrefix = "summary:"

	// SummaryTTL is the TTL for cached transaction summaries. Kept short
	// so reports stay close to the ledger without per-write invalidation
	// being load-bearing.
	SummaryTTL = 60 * time.Second
)

// Common cache errors.
var ErrCacheMiss = errors.New("cache miss")

// summaryKey builds the cache key for an organization's summary over a
// date range. Times are rendered date-only so equivalent ranges share
// an entry.
func summaryKey(orgID string, dateFrom, dateTo *time.Time) string {
	from, to := "-", "-"
	if dateFrom != nil {
		from = dateFrom.Format("2006-01-02")
	}
	if dateTo != nil {
		to = dateTo.Format("2006-01-02")
	}
	return summaryKeyPrefix + orgID + ":" + from + ":" + to
}

// GetSummary retrieves a cached transaction summary.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetSummary(ctx context.Context, orgID string, dateFrom, dateTo *time.Time) (*model.TransactionSummary, error) {
	key := summaryKey(orgID, dateFrom, dateTo)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var summary model.TransactionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}

	return &summary, nil
}

// SetSummary stores a transaction summary in cache.
func (c *Cache) SetSummary(ctx context.Context, orgID string, dateFrom, dateTo *time.Time, summary *model.TransactionSummary) error {
	key := summaryKey(orgID, dateFrom, dateTo)

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := c.client.SetEx(ctx, key, data, SummaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}

	return nil
}

// InvalidateSummaries drops all cached summaries for an organization.
// Called after transaction writes so reports reflect the change sooner
// than the TTL alone would allow.
func (c *Cache) InvalidateSummaries(ctx context.Context, orgID string) error {
	pattern := summaryKeyPrefix + orgID + ":*"

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan summary keys: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete summary keys: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}
