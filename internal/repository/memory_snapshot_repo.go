package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/feedview/internal/model"
)

// MemorySnapshotRepo はプロセス内メモリに最新のスナップショットだけを保持するリポジトリ。
// DATABASE_URL未設定時に使用する。
type MemorySnapshotRepo struct {
	mu     sync.RWMutex
	latest *model.FilteredFeed
}

// NewMemorySnapshotRepo はMemorySnapshotRepoを生成する。
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{}
}

// Save はスナップショットのコピーを保持する。
func (r *MemorySnapshotRepo) Save(_ context.Context, feed *model.FilteredFeed) error {
	snapshot := *feed
	snapshot.Items = append([]model.FeedItem(nil), feed.Items...)
	snapshot.Stale = false

	r.mu.Lock()
	r.latest = &snapshot
	r.mu.Unlock()
	return nil
}

// Latest は保持しているスナップショットのコピーを返す。未保存の場合はnilを返す。
func (r *MemorySnapshotRepo) Latest(_ context.Context) (*model.FilteredFeed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.latest == nil {
		return nil, nil
	}
	snapshot := *r.latest
	return &snapshot, nil
}
