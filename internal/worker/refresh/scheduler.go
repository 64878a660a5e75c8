// Package refresh はフィードのバックグラウンド再取得を提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/feedview/internal/model"
)

// Refresher はフィードの再取得を実行するインターフェース。
type Refresher interface {
	Refresh(ctx context.Context) (*model.FilteredFeed, error)
}

// Scheduler は一定間隔でフィードを再取得し、キャッシュとスナップショットを温めておく。
type Scheduler struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(refresher Refresher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		logger:    logger,
	}
}

// Start は起動直後に1回、その後interval間隔でフィードを再取得する。
// コンテキストがキャンセルされるまで実行を継続し、失敗してもループは止めない。
// intervalが0以下の場合は何もせずに戻る。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Info("バックグラウンド更新は無効です")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("更新スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("更新スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

// RunOnce はフィードを1回再取得する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	feed, err := s.refresher.Refresh(ctx)
	if err != nil {
		return err
	}

	if feed.Stale {
		s.logger.Warn("フィードを更新できなかったため直近の結果を保持しています",
			slog.Int("item_count", len(feed.Items)),
			slog.Time("fetched_at", feed.FetchedAt),
		)
		return nil
	}

	s.logger.Info("フィードを更新しました",
		slog.Int("item_count", len(feed.Items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("フィードの更新に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
