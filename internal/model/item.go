// Package model はドメインモデルを定義する。
package model

import "time"

// FeedItem はフィードプロバイダーから取得した記事を表す。
// 受信後は変更しない値として扱う。欠落したフィールドは空文字列となる。
type FeedItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published"` // 公開日時の文字列（形式はフィードに依存）
	Summary   string `json:"summary"`   // 短い概要（任意）
	Content   string `json:"content"`   // リッチコンテンツのHTML（任意、未サニタイズ）
}

// EffectiveContent は安全性判定の対象となるコンテンツを返す。
// リッチコンテンツがあればそれを、なければ概要を、どちらもなければ空文字列を返す。
func (i FeedItem) EffectiveContent() string {
	if i.Content != "" {
		return i.Content
	}
	return i.Summary
}

// FilteredFeed は安全性判定を通過した記事の列。
// プロバイダーの並び順を保持し、除外された記事は保持しない。
type FilteredFeed struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Items     []FeedItem `json:"items"`
	FetchedAt time.Time  `json:"fetched_at"`
	// Stale は取得に失敗し、以前の結果を返していることを示す。
	Stale bool `json:"stale"`
}
