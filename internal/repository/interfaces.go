// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/feedview/internal/model"
)

// SnapshotRepository はフィルタ済みフィードのスナップショットの永続化インターフェース。
// 上流フィードが取得できない場合の代替として、最後に成功した結果を保持する。
type SnapshotRepository interface {
	// Save はスナップショットを保存する。
	Save(ctx context.Context, feed *model.FilteredFeed) error

	// Latest は最も新しいスナップショットを返す。保存されていない場合はnilを返す。
	Latest(ctx context.Context) (*model.FilteredFeed, error)
}
