package quotes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/finnhub"
	"github.com/ternarybob/finbot/internal/models"
)

// mockSource implements interfaces.QuoteSource
type mockSource struct {
	mu       sync.Mutex
	calls    int
	snapshot *finnhub.Snapshot
	err      error
	block    bool
}

func (m *mockSource) Snapshot(ctx context.Context, symbol string) (*finnhub.Snapshot, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var nvda = models.TrackedEntity{Ticker: "NVDA", CIK: "0001045810", Currency: "USD", Name: "NVIDIA"}

func TestService_FetchAvailableIsCached(t *testing.T) {
	source := &mockSource{snapshot: fullSnapshot()}
	svc, err := NewService(source, arbor.NewLogger(), time.Second, time.Minute)
	require.NoError(t, err)
	defer svc.Close()

	first := svc.Fetch(context.Background(), nvda)
	require.Equal(t, models.QuoteAvailable, first.Status)

	second := svc.Fetch(context.Background(), nvda)
	require.Equal(t, models.QuoteAvailable, second.Status)
	assert.Same(t, first.Record, second.Record)
	assert.Equal(t, 1, source.callCount())
}

func TestService_NoCacheWhenTTLZero(t *testing.T) {
	source := &mockSource{snapshot: fullSnapshot()}
	svc, err := NewService(source, arbor.NewLogger(), time.Second, 0)
	require.NoError(t, err)
	defer svc.Close()

	svc.Fetch(context.Background(), nvda)
	svc.Fetch(context.Background(), nvda)
	assert.Equal(t, 2, source.callCount())
}

func TestService_FetchFailureIsUnavailable(t *testing.T) {
	source := &mockSource{err: &finnhub.APIError{StatusCode: 429, Message: "limit", Endpoint: "/quote"}}
	svc, err := NewService(source, arbor.NewLogger(), time.Second, time.Minute)
	require.NoError(t, err)
	defer svc.Close()

	result := svc.Fetch(context.Background(), nvda)
	assert.Equal(t, models.QuoteUnavailable, result.Status)
	assert.Nil(t, result.Record)
	assert.True(t, errors.Is(result.Err, common.ErrSourceUnavailable))

	var apiErr *finnhub.APIError
	require.True(t, errors.As(result.Err, &apiErr))
	assert.True(t, apiErr.IsRateLimited())

	// Failures are not cached
	svc.Fetch(context.Background(), nvda)
	assert.Equal(t, 2, source.callCount())
}

func TestService_Timeout(t *testing.T) {
	source := &mockSource{block: true}
	svc, err := NewService(source, arbor.NewLogger(), 20*time.Millisecond, 0)
	require.NoError(t, err)
	defer svc.Close()

	start := time.Now()
	result := svc.Fetch(context.Background(), nvda)
	assert.Equal(t, models.QuoteUnavailable, result.Status)
	assert.True(t, errors.Is(result.Err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestService_NoData(t *testing.T) {
	source := &mockSource{snapshot: &finnhub.Snapshot{Symbol: "ZZZZ", Quote: &finnhub.Quote{}}}
	svc, err := NewService(source, arbor.NewLogger(), time.Second, time.Minute)
	require.NoError(t, err)
	defer svc.Close()

	result := svc.Fetch(context.Background(), models.TrackedEntity{Ticker: "ZZZZ"})
	assert.Equal(t, models.QuoteNoData, result.Status)
	assert.NoError(t, result.Err)
}
