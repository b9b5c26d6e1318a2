package rotation

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
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

var testEntities = []models.TrackedEntity{
	{Ticker: "SPY", Currency: "USD", Name: "SPDR S&P 500 ETF"},
	{Ticker: "NVDA", CIK: "0001045810", Currency: "USD", Name: "NVIDIA"},
	{Ticker: "UBER", CIK: "0001543151", Currency: "USD", Name: "Uber"},
}

type stubPipeline struct {
	mu    sync.Mutex
	runs  []string
	block chan struct{}
}

func (p *stubPipeline) Run(ctx context.Context, entity models.TrackedEntity, runID string) *models.ReportPayload {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.runs = append(p.runs, entity.Ticker)
	p.mu.Unlock()
	return &models.ReportPayload{RunID: runID, Entity: entity}
}

type mockMessenger struct {
	mu        sync.Mutex
	delivered []string
	fail      map[int]bool // call index -> fail
	calls     int
}

func (m *mockMessenger) Deliver(ctx context.Context, payload *models.ReportPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if m.fail[call] {
		return errors.New("discord: 503 Service Unavailable")
	}
	m.delivered = append(m.delivered, payload.Entity.Ticker)
	return nil
}

type mockHistory struct {
	mu   sync.Mutex
	sent []string
	ids  []string
}

func (h *mockHistory) RecordSent(ctx context.Context, ticker string, at time.Time, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, ticker)
	h.ids = append(h.ids, runID)
}

type mockNotifier struct {
	alerts []interfaces.Alert
}

func (n *mockNotifier) Notify(ctx context.Context, alert interfaces.Alert) {
	n.alerts = append(n.alerts, alert)
}

type mockCursorStorage struct {
	saved   *models.RotationCursor
	loadErr error
}

func (c *mockCursorStorage) SaveCursor(ctx context.Context, cursor *models.RotationCursor) error {
	copied := *cursor
	c.saved = &copied
	return nil
}

func (c *mockCursorStorage) LoadCursor(ctx context.Context, key string) (*models.RotationCursor, error) {
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	return c.saved, nil
}

type recordingObserver struct {
	mu    sync.Mutex
	seen  []string
	delay time.Duration
}

func (o *recordingObserver) Observe(payload *models.ReportPayload) {
	time.Sleep(o.delay)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, payload.Entity.Ticker)
}

func (o *recordingObserver) Seen() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seen...)
}

func newTestScheduler(t *testing.T, messenger *mockMessenger, history *mockHistory, opts ...Option) (*Scheduler, *stubPipeline) {
	t.Helper()
	pipeline := &stubPipeline{}
	s, err := New(testEntities, pipeline, messenger, history, arbor.NewLogger(), Config{Interval: time.Hour}, opts...)
	require.NoError(t, err)
	return s, pipeline
}

func TestNew_RequiresEntities(t *testing.T) {
	_, err := New(nil, &stubPipeline{}, &mockMessenger{}, &mockHistory{}, arbor.NewLogger(), Config{})
	assert.Error(t, err)
}

func TestTick_FullCycleVisitsEachEntityOnce(t *testing.T) {
	messenger := &mockMessenger{}
	history := &mockHistory{}
	s, pipeline := newTestScheduler(t, messenger, history)

	for range testEntities {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"SPY", "NVDA", "UBER"}, pipeline.runs)
	assert.Equal(t, []string{"SPY", "NVDA", "UBER"}, messenger.delivered)
	assert.Equal(t, []string{"SPY", "NVDA", "UBER"}, history.sent)
	assert.Equal(t, 0, s.Cursor(), "cursor wraps after a full cycle")

	// Second cycle repeats the same order
	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SPY", messenger.delivered[3])
}

func TestTick_DispatchFailureKeepsCursor(t *testing.T) {
	messenger := &mockMessenger{fail: map[int]bool{1: true}}
	history := &mockHistory{}
	notifier := &mockNotifier{}
	s, pipeline := newTestScheduler(t, messenger, history, WithNotifier(notifier))

	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cursor())

	payload, err := s.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDispatchFailure))
	require.NotNil(t, payload)
	assert.Equal(t, "NVDA", payload.Entity.Ticker)
	assert.Equal(t, 1, s.Cursor(), "failed dispatch must not advance the cursor")
	assert.Equal(t, []string{"SPY"}, history.sent, "failed dispatch must not be recorded")

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, interfaces.AlertError, notifier.alerts[0].Severity)
	assert.Equal(t, "NVDA", notifier.alerts[0].Ticker)
	assert.Equal(t, payload.RunID, notifier.alerts[0].RunID)

	status := s.Status()
	assert.Equal(t, "NVDA", status.LastTicker)
	assert.Contains(t, status.LastError, "NVDA")

	_, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "NVDA", "NVDA"}, pipeline.runs, "next tick retries the same entity")
	assert.Equal(t, []string{"SPY", "NVDA"}, messenger.delivered)
	assert.Equal(t, 2, s.Cursor())
	assert.Empty(t, s.Status().LastError)
}

func TestTick_RunIDsAreUnique(t *testing.T) {
	history := &mockHistory{}
	s, _ := newTestScheduler(t, &mockMessenger{}, history)

	for i := 0; i < 3; i++ {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, history.ids, 3)
	assert.NotEqual(t, history.ids[0], history.ids[1])
	assert.NotEqual(t, history.ids[1], history.ids[2])
	assert.NotEmpty(t, history.ids[0])
}

func TestTick_OverlappingTickIsRejected(t *testing.T) {
	messenger := &mockMessenger{}
	s, pipeline := newTestScheduler(t, messenger, &mockHistory{})
	pipeline.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Tick(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Status().Running }, time.Second, 5*time.Millisecond)

	_, err := s.Tick(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)

	close(pipeline.block)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"SPY"}, messenger.delivered)
	assert.Equal(t, 1, s.Cursor())
	assert.False(t, s.Status().Running)
}

func TestTick_NotifiesObservers(t *testing.T) {
	observer := &recordingObserver{}
	messenger := &mockMessenger{fail: map[int]bool{1: true}}
	s, _ := newTestScheduler(t, messenger, &mockHistory{}, WithObserver(observer))

	_, _ = s.Tick(context.Background())
	require.Eventually(t, func() bool { return len(observer.Seen()) == 1 }, time.Second, 5*time.Millisecond)
	_, _ = s.Tick(context.Background())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"SPY"}, observer.Seen(), "only delivered payloads are observed")
}

func TestTick_SlowObserverDoesNotBlockNextTick(t *testing.T) {
	observer := &recordingObserver{delay: 300 * time.Millisecond}
	messenger := &mockMessenger{}
	s, _ := newTestScheduler(t, messenger, &mockHistory{}, WithObserver(observer))

	_, err := s.Tick(context.Background())
	require.NoError(t, err)

	_, err = s.Tick(context.Background())
	require.NoError(t, err, "observer still running must not hold the tick")

	assert.Equal(t, []string{"SPY", "NVDA"}, messenger.delivered)
	assert.Equal(t, 2, s.Cursor())
	assert.Eventually(t, func() bool { return len(observer.Seen()) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestCursorPersistence(t *testing.T) {
	storage := &mockCursorStorage{}
	pipeline := &stubPipeline{}
	config := Config{Interval: time.Hour, PersistCursor: true}

	s, err := New(testEntities, pipeline, &mockMessenger{}, &mockHistory{}, arbor.NewLogger(), config, WithCursorStorage(storage))
	require.NoError(t, err)

	_, err = s.Tick(context.Background())
	require.NoError(t, err)
	_, err = s.Tick(context.Background())
	require.NoError(t, err)

	require.NotNil(t, storage.saved)
	assert.Equal(t, 2, storage.saved.Position)
	assert.Equal(t, "UBER", storage.saved.Ticker)

	tests := []struct {
		name     string
		saved    *models.RotationCursor
		entities []models.TrackedEntity
		want     int
	}{
		{
			name:     "position and ticker match",
			saved:    &models.RotationCursor{Position: 2, Ticker: "UBER"},
			entities: testEntities,
			want:     2,
		},
		{
			name:     "entity moved",
			saved:    &models.RotationCursor{Position: 2, Ticker: "UBER"},
			entities: []models.TrackedEntity{testEntities[2], testEntities[0], testEntities[1]},
			want:     0,
		},
		{
			name:     "entity removed",
			saved:    &models.RotationCursor{Position: 1, Ticker: "AAPL"},
			entities: testEntities,
			want:     0,
		},
		{
			name:     "position out of range",
			saved:    &models.RotationCursor{Position: 7, Ticker: "NVDA"},
			entities: testEntities,
			want:     1,
		},
		{
			name:     "nothing saved",
			entities: testEntities,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := &mockCursorStorage{saved: tt.saved}
			s, err := New(tt.entities, &stubPipeline{}, &mockMessenger{}, &mockHistory{}, arbor.NewLogger(), config, WithCursorStorage(storage))
			require.NoError(t, err)

			require.NoError(t, s.Start(context.Background()))
			defer s.Stop()

			assert.Equal(t, tt.want, s.Cursor())
		})
	}
}

func TestCursorPersistence_LoadFailureStartsAtZero(t *testing.T) {
	storage := &mockCursorStorage{loadErr: errors.New("badger closed")}
	s, err := New(testEntities, &stubPipeline{}, &mockMessenger{}, &mockHistory{}, arbor.NewLogger(),
		Config{Interval: time.Hour, PersistCursor: true}, WithCursorStorage(storage))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 0, s.Cursor())
}

func TestStatus(t *testing.T) {
	s, _ := newTestScheduler(t, &mockMessenger{}, &mockHistory{})

	status := s.Status()
	assert.False(t, status.Enabled)
	assert.Equal(t, "1h0m0s", status.Interval)
	assert.Equal(t, "SPY", status.NextTicker)
	assert.Nil(t, status.LastRun)
	assert.Nil(t, status.NextRun)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	_, err := s.TriggerNow(context.Background())
	require.NoError(t, err)

	status = s.Status()
	assert.True(t, status.Enabled)
	assert.Equal(t, 1, status.Cursor)
	assert.Equal(t, "NVDA", status.NextTicker)
	assert.Equal(t, "SPY", status.LastTicker)
	require.NotNil(t, status.LastRun)
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now()))

	assert.Error(t, s.Start(context.Background()), "second start is rejected")
}
