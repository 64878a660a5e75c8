package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/feedview/internal/metrics"
	"github.com/hitoshi/feedview/internal/model"
	"github.com/hitoshi/feedview/internal/repository"
	"github.com/hitoshi/feedview/internal/security"
)

// stubProvider は呼び出し回数を記録し、設定された結果を返すProviderのモック。
type stubProvider struct {
	mu    sync.Mutex
	calls int
	raw   *RawFeed
	err   error
}

func (p *stubProvider) Fetch(context.Context) (*RawFeed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.raw, nil
}

func (p *stubProvider) set(raw *RawFeed, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raw, p.err = raw, err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// failingSnapshots は常に失敗するSnapshotRepositoryのモック。
type failingSnapshots struct{}

func (failingSnapshots) Save(context.Context, *model.FilteredFeed) error {
	return errors.New("db down")
}

func (failingSnapshots) Latest(context.Context) (*model.FilteredFeed, error) {
	return nil, errors.New("db down")
}

// fakeClock はテストから進められる時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleRaw() *RawFeed {
	return &RawFeed{
		Title: "Example",
		Link:  "https://example.com",
		Items: []model.FeedItem{
			{Title: "safe", Content: "<p>ok</p>"},
			{Title: "unsafe", Content: "<script>x</script>"},
		},
	}
}

func newTestService(p Provider, snapshots repository.SnapshotRepository, m metrics.MetricsCollector, clock *fakeClock) *feedService {
	assembler := NewAssembler(security.NewSafetyClassifier(), m, newTestLogger(nil), 2)
	s := NewFeedService(p, assembler, snapshots, m, newTestLogger(nil), 10*time.Minute)
	s.now = clock.Now
	return s
}

// TestCurrent_FiltersAndCaches は取得結果がフィルタされ、TTL内はキャッシュが返ることを検証する。
func TestCurrent_FiltersAndCaches(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{raw: sampleRaw()}
	m := newRecordingMetrics()
	s := newTestService(provider, repository.NewMemorySnapshotRepo(), m, clock)

	feed, err := s.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if len(feed.Items) != 1 || feed.Items[0].Title != "safe" {
		t.Fatalf("Items = %#v, want only the safe item", feed.Items)
	}
	if feed.Stale {
		t.Error("新規取得の結果はStaleであってはならない")
	}
	if !feed.FetchedAt.Equal(clock.Now()) {
		t.Errorf("FetchedAt = %v, want %v", feed.FetchedAt, clock.Now())
	}
	if m.served != 1 {
		t.Errorf("items served = %d, want 1", m.served)
	}

	clock.Advance(5 * time.Minute)
	again, err := s.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if again != feed {
		t.Error("TTL内はキャッシュを返すべき")
	}
	if provider.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.callCount())
	}
}

// TestCurrent_RefreshesAfterTTL はTTL経過後に再取得することを検証する。
func TestCurrent_RefreshesAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{raw: sampleRaw()}
	s := newTestService(provider, repository.NewMemorySnapshotRepo(), metrics.Nop{}, clock)

	if _, err := s.Current(context.Background()); err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	clock.Advance(10 * time.Minute)
	if _, err := s.Current(context.Background()); err != nil {
		t.Fatalf("Current() error: %v", err)
	}

	if provider.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.callCount())
	}
}

// TestRefresh_AlwaysFetches はRefreshがキャッシュに関係なく取得することを検証する。
func TestRefresh_AlwaysFetches(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{raw: sampleRaw()}
	snapshots := repository.NewMemorySnapshotRepo()
	s := newTestService(provider, snapshots, metrics.Nop{}, clock)

	for i := 0; i < 2; i++ {
		if _, err := s.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error: %v", err)
		}
	}
	if provider.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.callCount())
	}

	snapshot, err := snapshots.Latest(context.Background())
	if err != nil || snapshot == nil {
		t.Fatalf("Latest() = %v, %v; want saved snapshot", snapshot, err)
	}
	if len(snapshot.Items) != 1 {
		t.Errorf("snapshot items = %d, want 1 (filtered)", len(snapshot.Items))
	}
}

// TestRefresh_ServesStaleCacheOnFailure は取得失敗時に直近の結果をStaleとして返すことを検証する。
func TestRefresh_ServesStaleCacheOnFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{raw: sampleRaw()}
	m := newRecordingMetrics()
	s := newTestService(provider, repository.NewMemorySnapshotRepo(), m, clock)

	fresh, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	provider.set(nil, errors.New("upstream down"))
	clock.Advance(time.Minute)

	stale, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if !stale.Stale {
		t.Error("取得失敗時の結果はStale=trueであるべき")
	}
	if stale.Title != fresh.Title || len(stale.Items) != len(fresh.Items) {
		t.Errorf("stale = %#v, want copy of %#v", stale, fresh)
	}
	if fresh.Stale {
		t.Error("キャッシュ済みの結果自体を変更してはならない")
	}
	if m.staleServes != 1 {
		t.Errorf("stale serves = %d, want 1", m.staleServes)
	}
}

// TestRefresh_FallsBackToSnapshot はキャッシュがない場合に永続化されたスナップショットを返すことを検証する。
func TestRefresh_FallsBackToSnapshot(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	snapshots := repository.NewMemorySnapshotRepo()
	saved := &model.FilteredFeed{
		Title:     "from snapshot",
		Items:     []model.FeedItem{{Title: "persisted"}},
		FetchedAt: clock.Now().Add(-time.Hour),
	}
	if err := snapshots.Save(context.Background(), saved); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	provider := &stubProvider{err: errors.New("upstream down")}
	s := newTestService(provider, snapshots, metrics.Nop{}, clock)

	got, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if got.Title != "from snapshot" || !got.Stale {
		t.Errorf("Refresh() = %#v, want stale snapshot", got)
	}
}

// TestRefresh_UnavailableWithoutFallback は代替がない場合にFEED_UNAVAILABLEを返すことを検証する。
func TestRefresh_UnavailableWithoutFallback(t *testing.T) {
	tests := []struct {
		name      string
		snapshots repository.SnapshotRepository
	}{
		{name: "スナップショットなし", snapshots: repository.NewMemorySnapshotRepo()},
		{name: "スナップショット読み込み失敗", snapshots: failingSnapshots{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
			provider := &stubProvider{err: errors.New("upstream down")}
			s := newTestService(provider, tt.snapshots, metrics.Nop{}, clock)

			got, err := s.Refresh(context.Background())
			if got != nil {
				t.Errorf("Refresh() = %#v, want nil", got)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedUnavailable {
				t.Errorf("error = %v, want FEED_UNAVAILABLE", err)
			}
		})
	}
}

// TestRefresh_SnapshotSaveFailureDoesNotFail はスナップショット保存の失敗が表示を妨げないことを検証する。
func TestRefresh_SnapshotSaveFailureDoesNotFail(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{raw: sampleRaw()}
	s := newTestService(provider, failingSnapshots{}, metrics.Nop{}, clock)

	got, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if len(got.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(got.Items))
	}
}

// TestCurrent_CooldownAfterFailure は取得失敗直後は上流へ再取得しないことを検証する。
func TestCurrent_CooldownAfterFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{raw: sampleRaw()}
	s := newTestService(provider, repository.NewMemorySnapshotRepo(), metrics.Nop{}, clock)

	if _, err := s.Current(context.Background()); err != nil {
		t.Fatalf("Current() error: %v", err)
	}

	provider.set(nil, errors.New("upstream down"))
	clock.Advance(11 * time.Minute)

	// TTL切れのため取得を試みて失敗する
	got, err := s.Current(context.Background())
	if err != nil || !got.Stale {
		t.Fatalf("Current() = %v, %v; want stale feed", got, err)
	}
	if provider.callCount() != 2 {
		t.Fatalf("provider calls = %d, want 2", provider.callCount())
	}

	// クールダウン中は取得しない
	clock.Advance(30 * time.Second)
	got, err = s.Current(context.Background())
	if err != nil || !got.Stale {
		t.Fatalf("Current() = %v, %v; want stale feed", got, err)
	}
	if provider.callCount() != 2 {
		t.Errorf("provider calls during cooldown = %d, want 2", provider.callCount())
	}

	// クールダウン後は再び取得する
	provider.set(sampleRaw(), nil)
	clock.Advance(time.Minute)
	got, err = s.Current(context.Background())
	if err != nil || got.Stale {
		t.Fatalf("Current() = %v, %v; want fresh feed", got, err)
	}
	if provider.callCount() != 3 {
		t.Errorf("provider calls = %d, want 3", provider.callCount())
	}
}

// TestCurrent_ConcurrentCallersShareRefresh は同時に呼び出しても取得が1回にまとまることを検証する。
func TestCurrent_ConcurrentCallersShareRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{raw: sampleRaw()}
	s := newTestService(provider, repository.NewMemorySnapshotRepo(), metrics.Nop{}, clock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Current(context.Background()); err != nil {
				t.Errorf("Current() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if provider.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.callCount())
	}
}

// TestFeedService_ImplementsInterface はFeedServiceインターフェースを満たすことを検証する。
func TestFeedService_ImplementsInterface(t *testing.T) {
	var _ FeedService = NewFeedService(nil, nil, nil, metrics.Nop{}, newTestLogger(nil), time.Minute)
	var _ Provider = (*HTTPProvider)(nil)
	var _ ItemAssembler = (*Assembler)(nil)
}
