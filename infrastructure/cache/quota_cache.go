package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"autouploader/domain/model"
	"autouploader/domain/repository"

	"github.com/redis/go-redis/v9"
)

const quotaKeyPrefix = "autouploader:quota:"

type QuotaStateCache struct {
	client redis.Cmdable
}

func NewQuotaStateCache(client redis.Cmdable) repository.IQuotaStateCache {
	return &QuotaStateCache{client: client}
}

func quotaKey(projectID string) string {
	return quotaKeyPrefix + projectID
}

// Save stores the state until its reset instant. States already past reset are not stored.
func (c *QuotaStateCache) Save(ctx context.Context, state model.QuotaState) error {
	ttl := time.Until(state.QuotaResetAt)
	if ttl <= 0 {
		return c.Clear(ctx, state.ProjectID)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal quota state: %w", err)
	}
	if err := c.client.Set(ctx, quotaKey(state.ProjectID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save quota state: %w", err)
	}
	return nil
}

// Load returns nil without error when nothing is cached for the project.
func (c *QuotaStateCache) Load(ctx context.Context, projectID string) (*model.QuotaState, error) {
	raw, err := c.client.Get(ctx, quotaKey(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quota state: %w", err)
	}
	var state model.QuotaState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode quota state: %w", err)
	}
	return &state, nil
}

func (c *QuotaStateCache) Clear(ctx context.Context, projectID string) error {
	if err := c.client.Del(ctx, quotaKey(projectID)).Err(); err != nil {
		return fmt.Errorf("failed to clear quota state: %w", err)
	}
	return nil
}
