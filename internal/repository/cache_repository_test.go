package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "academic")
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "stats:class:subject:2024", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "stats:class:subject:2024", map[string]int{"total": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "stats:class:*"))
	assert.NoError(t, repo.Ping(ctx))
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	assert.Equal(t, "academic:stats:a", NewCacheRepository(nil, "academic").key("stats:a"))
	assert.Equal(t, "stats:a", NewCacheRepository(nil, "").key("stats:a"))
}
