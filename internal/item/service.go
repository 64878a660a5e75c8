// Package item はフィルタ済みフィードを画面表示・API応答用の記事に変換する。
package item

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/feedview/internal/feed"
	"github.com/hitoshi/feedview/internal/model"
	"github.com/hitoshi/feedview/internal/reltime"
	"github.com/hitoshi/feedview/internal/security"
)

// UntitledLabel はタイトルのない記事に表示する文字列。
const UntitledLabel = "(untitled)"

// defaultExcerptLength はカード表示の抜粋の最大文字数。
const defaultExcerptLength = 200

// anchorNamespace は記事アンカーIDを導出するUUIDv5の名前空間。
var anchorNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hitoshi/feedview/items"))

// FeedSource はフィルタ済みフィードの取得元。
type FeedSource interface {
	Current(ctx context.Context) (*model.FilteredFeed, error)
	Refresh(ctx context.Context) (*model.FilteredFeed, error)
}

// FeedView は画面とAPIが共有する表示用のフィード。
type FeedView struct {
	Title     string        `json:"title"`
	Link      string        `json:"link,omitempty"`
	Items     []DisplayItem `json:"items"`
	FetchedAt time.Time     `json:"fetched_at"`
	Stale     bool          `json:"stale"`
}

// DisplayItem は表示用の記事。
type DisplayItem struct {
	// ID は同じ記事に対して常に同じ値となるアンカーID。
	ID           string `json:"id"`
	Title        string `json:"title"`
	Link         string `json:"link,omitempty"` // http/https以外のリンクは空
	Published    string `json:"published"`
	RelativeTime string `json:"relative_time"`
	AbsoluteTime string `json:"absolute_time"`
	Excerpt      string `json:"excerpt"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	// ContentHTML は安全性判定を通過した本文HTML。
	ContentHTML string `json:"content_html"`
}

// ItemService はフィルタ済みフィードを表示用に変換するサービス。
type ItemService struct {
	source        FeedSource
	excerpts      security.ExcerptService
	location      *time.Location
	excerptLength int
}

// NewItemService はItemServiceの新しいインスタンスを生成する。
// 相対時刻と絶対時刻はlocationのタイムゾーンで表示する。locationがnilの場合はUTC。
func NewItemService(source FeedSource, excerpts security.ExcerptService, location *time.Location) *ItemService {
	if location == nil {
		location = time.UTC
	}
	return &ItemService{
		source:        source,
		excerpts:      excerpts,
		location:      location,
		excerptLength: defaultExcerptLength,
	}
}

// List は現在のフィードをnow時点の表示用に変換して返す。
func (s *ItemService) List(ctx context.Context, now time.Time) (*FeedView, error) {
	filtered, err := s.source.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.present(filtered, now), nil
}

// Refresh はフィードを再取得し、now時点の表示用に変換して返す。
func (s *ItemService) Refresh(ctx context.Context, now time.Time) (*FeedView, error) {
	filtered, err := s.source.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return s.present(filtered, now), nil
}

func (s *ItemService) present(filtered *model.FilteredFeed, now time.Time) *FeedView {
	now = now.In(s.location)

	view := &FeedView{
		Title:     filtered.Title,
		Items:     make([]DisplayItem, 0, len(filtered.Items)),
		FetchedAt: filtered.FetchedAt,
		Stale:     filtered.Stale,
	}
	if link, err := model.ParseLink(filtered.Link); err == nil {
		view.Link = link.String()
	}

	seen := make(map[string]int, len(filtered.Items))
	for _, it := range filtered.Items {
		display := s.presentItem(it, now)

		// 同一内容の記事が重複する場合はアンカーIDに連番を付与する
		if n := seen[display.ID]; n > 0 {
			seen[display.ID] = n + 1
			display.ID += "-" + strconv.Itoa(n+1)
		} else {
			seen[display.ID] = 1
		}

		view.Items = append(view.Items, display)
	}

	return view
}

func (s *ItemService) presentItem(it model.FeedItem, now time.Time) DisplayItem {
	content := it.EffectiveContent()
	ts := reltime.Format(it.Published, now)

	display := DisplayItem{
		ID:           AnchorID(it),
		Title:        strings.TrimSpace(it.Title),
		Published:    it.Published,
		RelativeTime: ts.Relative,
		AbsoluteTime: ts.Absolute,
		Excerpt:      s.excerpts.Excerpt(content, s.excerptLength),
		Thumbnail:    feed.ExtractThumbnail(content),
		ContentHTML:  content,
	}
	if display.Title == "" {
		display.Title = UntitledLabel
	}
	if link, err := model.ParseLink(it.Link); err == nil {
		display.Link = link.String()
	}

	return display
}

// AnchorID は記事のリンク・タイトル・公開日時から決定的なアンカーIDを導出する。
func AnchorID(it model.FeedItem) string {
	name := it.Link + "\x00" + it.Title + "\x00" + it.Published
	return "item-" + uuid.NewSHA1(anchorNamespace, []byte(name)).String()
}
