package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	ctx := context.Background()
	repo := NewCacheRepository(nil)

	var dest map[string]int
	err := repo.Get(ctx, "attendance:stats:student:s-1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	require.NoError(t, repo.Set(ctx, "attendance:stats:student:s-1", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "attendance:stats:*"))
	require.NoError(t, repo.Ping(ctx))
}
