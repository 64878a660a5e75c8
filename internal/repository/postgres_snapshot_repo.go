package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/feedview/internal/model"
)

// defaultSnapshotRetention は保持するスナップショットの既定件数。
const defaultSnapshotRetention = 10

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
// 記事はJSONBとしてfeed_snapshots.itemsに保存する。
type PostgresSnapshotRepo struct {
	db        *sql.DB
	retention int
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
// 保存時には新しい順にretention件を残して古いスナップショットを削除する。
func NewPostgresSnapshotRepo(db *sql.DB, retention int) *PostgresSnapshotRepo {
	if retention < 1 {
		retention = defaultSnapshotRetention
	}
	return &PostgresSnapshotRepo{db: db, retention: retention}
}

// Save はスナップショットを保存し、保持件数を超えた古いものを削除する。
func (r *PostgresSnapshotRepo) Save(ctx context.Context, feed *model.FilteredFeed) error {
	items, err := encodeItems(feed.Items)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO feed_snapshots (id, title, link, items, item_count, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), feed.Title, feed.Link, items, len(feed.Items), feed.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM feed_snapshots
		 WHERE id NOT IN (
		     SELECT id FROM feed_snapshots ORDER BY fetched_at DESC LIMIT $1
		 )`,
		r.retention,
	)
	if err != nil {
		return fmt.Errorf("古いスナップショットの削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Latest は最も新しいスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresSnapshotRepo) Latest(ctx context.Context) (*model.FilteredFeed, error) {
	feed := &model.FilteredFeed{}
	var items []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT title, link, items, fetched_at
		 FROM feed_snapshots
		 ORDER BY fetched_at DESC
		 LIMIT 1`,
	).Scan(&feed.Title, &feed.Link, &items, &feed.FetchedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スナップショットの取得に失敗しました: %w", err)
	}

	feed.Items, err = decodeItems(items)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// encodeItems は記事列をJSONBカラム用にエンコードする。nilは空配列として保存する。
func encodeItems(items []model.FeedItem) ([]byte, error) {
	if items == nil {
		items = []model.FeedItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("記事のエンコードに失敗しました: %w", err)
	}
	return data, nil
}

// decodeItems はJSONBカラムの記事列をデコードする。
func decodeItems(data []byte) ([]model.FeedItem, error) {
	items := []model.FeedItem{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("記事のデコードに失敗しました: %w", err)
	}
	return items, nil
}
