package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/feedview/internal/metrics"
	"github.com/hitoshi/feedview/internal/model"
	"github.com/hitoshi/feedview/internal/repository"
)

// failureCooldown は取得失敗後、キャッシュ期限切れでも再取得を控える期間。
// 上流障害中にページ表示のたびにリトライ待ちが発生するのを防ぐ。
const failureCooldown = time.Minute

// ItemAssembler は記事列に安全性フィルタを適用するインターフェース。
type ItemAssembler interface {
	Assemble(raw []model.FeedItem) []model.FeedItem
}

// FeedService はフィルタ済みフィードを提供するサービス層。
// 取得 → 安全性フィルタ → スナップショット保存 → キャッシュのフローを統括する。
type FeedService interface {
	// Current はキャッシュが有効ならそれを返し、期限切れならRefreshする。
	Current(ctx context.Context) (*model.FilteredFeed, error)
	// Refresh はキャッシュの有無に関係なくフィードを再取得する。
	// 取得に失敗した場合は直近の結果をStale=trueで返し、
	// 代替がない場合はFEED_UNAVAILABLEのAPIErrorを返す。
	Refresh(ctx context.Context) (*model.FilteredFeed, error)
}

// feedService はFeedServiceの実装。
type feedService struct {
	provider  Provider
	assembler ItemAssembler
	snapshots repository.SnapshotRepository
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	ttl       time.Duration
	now       func() time.Time

	// refreshMu は上流への取得を直列化する
	refreshMu sync.Mutex

	mu       sync.RWMutex
	cached   *model.FilteredFeed
	failedAt time.Time
}

// NewFeedService はFeedServiceの新しいインスタンスを生成する。
func NewFeedService(
	provider Provider,
	assembler ItemAssembler,
	snapshots repository.SnapshotRepository,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	ttl time.Duration,
) *feedService {
	return &feedService{
		provider:  provider,
		assembler: assembler,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Current はキャッシュが有効ならそれを返し、期限切れならRefreshする。
func (s *feedService) Current(ctx context.Context) (*model.FilteredFeed, error) {
	if feed, ok := s.fresh(); ok {
		return feed, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// 待機中に他のリクエストが更新済みの場合はそれを使う
	if feed, ok := s.fresh(); ok {
		return feed, nil
	}

	s.mu.RLock()
	coolingDown := !s.failedAt.IsZero() && s.now().Sub(s.failedAt) < failureCooldown
	s.mu.RUnlock()
	if coolingDown {
		return s.fallback(ctx)
	}

	return s.refreshLocked(ctx)
}

// Refresh はフィードを再取得してキャッシュを更新する。
func (s *feedService) Refresh(ctx context.Context) (*model.FilteredFeed, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	return s.refreshLocked(ctx)
}

// fresh はTTL内のキャッシュを返す。
func (s *feedService) fresh() (*model.FilteredFeed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cached == nil || s.now().Sub(s.cached.FetchedAt) >= s.ttl {
		return nil, false
	}
	return s.cached, true
}

// refreshLocked はrefreshMuを保持した状態で呼び出す。
func (s *feedService) refreshLocked(ctx context.Context) (*model.FilteredFeed, error) {
	raw, err := s.provider.Fetch(ctx)
	if err != nil {
		s.logger.Error("フィードの更新に失敗しました",
			slog.String("error", err.Error()),
		)
		s.mu.Lock()
		s.failedAt = s.now()
		s.mu.Unlock()
		return s.fallback(ctx)
	}

	feed := &model.FilteredFeed{
		Title:     raw.Title,
		Link:      raw.Link,
		Items:     s.assembler.Assemble(raw.Items),
		FetchedAt: s.now(),
	}

	if err := s.snapshots.Save(ctx, feed); err != nil {
		// 保存に失敗しても表示は継続する
		s.logger.Warn("スナップショットの保存に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.cached = feed
	s.failedAt = time.Time{}
	s.mu.Unlock()

	s.metrics.RecordItemsServed(len(feed.Items))
	s.logger.Info("フィードを更新しました",
		slog.String("title", feed.Title),
		slog.Int("items_served", len(feed.Items)),
		slog.Int("items_fetched", len(raw.Items)),
	)

	return feed, nil
}

// fallback は直近のキャッシュ、なければ永続化されたスナップショットをStale=trueで返す。
func (s *feedService) fallback(ctx context.Context) (*model.FilteredFeed, error) {
	s.mu.RLock()
	previous := s.cached
	s.mu.RUnlock()

	if previous == nil {
		snapshot, err := s.snapshots.Latest(ctx)
		if err != nil {
			s.logger.Error("スナップショットの読み込みに失敗しました",
				slog.String("error", err.Error()),
			)
		}
		previous = snapshot
	}

	if previous == nil {
		return nil, model.NewFeedUnavailableError()
	}

	stale := *previous
	stale.Stale = true
	s.metrics.RecordStaleServe()

	return &stale, nil
}
