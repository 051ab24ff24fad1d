package extract

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoronkov/mediafetch/internal/domain"
)

type countingEngine struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (e *countingEngine) Version(ctx context.Context) (string, error) { return "test", nil }

func (e *countingEngine) Info(ctx context.Context, url string) (*domain.VideoInfo, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.err != nil {
		return nil, e.err
	}
	return &domain.VideoInfo{Title: "video for " + url}, nil
}

func (e *countingEngine) ResolveDirectURL(ctx context.Context, url, formatID string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (e *countingEngine) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func TestInfoCache_CachesWithinTTL(t *testing.T) {
	engine := &countingEngine{}
	cache := NewInfoCache(engine, 10*time.Minute)

	ctx := context.Background()
	first, err := cache.Info(ctx, "https://example.com/v1")
	require.NoError(t, err)

	second, err := cache.Info(ctx, "https://example.com/v1")
	require.NoError(t, err)

	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, int64(1), engine.calls.Load())
}

func TestInfoCache_ExpiresAfterTTL(t *testing.T) {
	engine := &countingEngine{}
	cache := NewInfoCache(engine, 10*time.Minute)

	base := time.Now()
	cache.now = func() time.Time { return base }

	ctx := context.Background()
	_, err := cache.Info(ctx, "https://example.com/v1")
	require.NoError(t, err)

	cache.now = func() time.Time { return base.Add(11 * time.Minute) }

	_, err = cache.Info(ctx, "https://example.com/v1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), engine.calls.Load())
}

func TestInfoCache_ErrorsNotCached(t *testing.T) {
	engine := &countingEngine{err: fmt.Errorf("extraction failed")}
	cache := NewInfoCache(engine, 10*time.Minute)

	ctx := context.Background()
	_, err := cache.Info(ctx, "https://example.com/v1")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestInfoCache_SingleflightDedupe(t *testing.T) {
	engine := &countingEngine{delay: 50 * time.Millisecond}
	cache := NewInfoCache(engine, 10*time.Minute)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Info(ctx, "https://example.com/v1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), engine.calls.Load(), "concurrent lookups for one URL must share a single extraction")
}

func TestInfoCache_Purge(t *testing.T) {
	engine := &countingEngine{}
	cache := NewInfoCache(engine, 10*time.Minute)

	base := time.Now()
	cache.now = func() time.Time { return base }

	ctx := context.Background()
	_, err := cache.Info(ctx, "https://example.com/v1")
	require.NoError(t, err)
	_, err = cache.Info(ctx, "https://example.com/v2")
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	removed := cache.Purge(base.Add(11 * time.Minute))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, cache.Len())
}
