// Package feed はリモートフィードの取得、安全性によるフィルタリング、
// フィルタ済みフィードのキャッシュを提供する。
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedview/internal/metrics"
	"github.com/hitoshi/feedview/internal/model"
)

// 取得失敗の理由ラベル（feedview_fetch_fail_total の reason）。
const (
	ReasonSSRF     = "ssrf"
	ReasonRequest  = "request"
	ReasonStatus   = "status"
	ReasonRead     = "read"
	ReasonTooLarge = "too_large"
	ReasonParse    = "parse"
)

const (
	userAgent    = "Feedview/1.0 (+https://github.com/hitoshi/feedview)"
	acceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
	// maxRetryDelay はリトライ間隔の上限。
	maxRetryDelay = 30 * time.Second
	// defaultMaxBodySize はMaxBodySize未指定時のレスポンスボディ上限（5MiB）。
	defaultMaxBodySize = 5 * 1024 * 1024
)

// ErrBodyTooLarge はレスポンスボディが上限サイズを超えた場合のエラー。
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// RawFeed は安全性フィルタ適用前のフィード。記事はフィード内の順序を保持する。
type RawFeed struct {
	Title string
	Link  string
	Items []model.FeedItem
}

// Provider はリモートフィードを取得するインターフェース。
// 取得は全件成功か失敗のどちらかで、一部の記事だけを返すことはない。
type Provider interface {
	Fetch(ctx context.Context) (*RawFeed, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewClient(timeout time.Duration) *http.Client
}

// ProviderConfig はHTTPProviderの設定。
type ProviderConfig struct {
	FeedURL     string
	Timeout     time.Duration
	MaxBodySize int64
	MaxAttempts uint
	RetryDelay  time.Duration
}

// HTTPProvider はHTTPでフィードを取得しgofeedでパースするProvider実装。
// ETag/Last-Modifiedによる条件付きGETを行い、304の場合は前回の取得結果を返す。
type HTTPProvider struct {
	feedURL     string
	guard       SSRFValidator
	client      *http.Client
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	maxBodySize int64
	maxAttempts uint
	retryDelay  time.Duration

	mu           sync.Mutex
	etag         string
	lastModified string
	last         *RawFeed
}

// NewHTTPProvider はHTTPProviderの新しいインスタンスを生成する。
func NewHTTPProvider(cfg ProviderConfig, guard SSRFValidator, m metrics.MetricsCollector, logger *slog.Logger) *HTTPProvider {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return &HTTPProvider{
		feedURL:     cfg.FeedURL,
		guard:       guard,
		client:      guard.NewClient(cfg.Timeout),
		metrics:     m,
		logger:      logger,
		maxBodySize: cfg.MaxBodySize,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// Fetch はフィードを取得してRawFeedを返す。
// 429/5xxや通信エラーはリトライし、404/410/401/403やパース失敗は即座に失敗する。
func (p *HTTPProvider) Fetch(ctx context.Context) (*RawFeed, error) {
	if err := p.guard.ValidateURL(p.feedURL); err != nil {
		p.metrics.RecordFetchFailure(ReasonSSRF)
		p.logger.Error("SSRF検証に失敗しました",
			slog.String("feed_url", p.feedURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", model.NewSSRFBlockedError(), err)
	}

	var result *RawFeed
	err := retry.Do(
		func() error {
			raw, err := p.fetchOnce(ctx)
			if err != nil {
				return err
			}
			result = raw
			return nil
		},
		retry.Attempts(p.maxAttempts),
		retry.Delay(p.retryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.MaxJitter(max(p.retryDelay/2, time.Millisecond)),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("フィード取得をリトライします",
				slog.String("feed_url", p.feedURL),
				slog.Int("attempt", int(n)+1),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	return result, nil
}

// fetchOnce は1回分のHTTP取得とパースを行う。
// リトライ不要なエラーはretry.Unrecoverableで包んで返す。
func (p *HTTPProvider) fetchOnce(ctx context.Context) (*RawFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("リクエスト作成に失敗: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	p.mu.Lock()
	if p.last != nil {
		if p.etag != "" {
			req.Header.Set("If-None-Match", p.etag)
		}
		if p.lastModified != "" {
			req.Header.Set("If-Modified-Since", p.lastModified)
		}
	}
	p.mu.Unlock()

	start := time.Now()
	resp, err := p.client.Do(req)
	duration := time.Since(start)
	p.metrics.RecordFetchLatency(duration)
	if err != nil {
		p.metrics.RecordFetchFailure(ReasonRequest)
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	p.metrics.RecordHTTPStatus(resp.StatusCode)

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case StatusOK:
	case StatusNotModified:
		p.mu.Lock()
		last := p.last
		p.mu.Unlock()
		if last == nil {
			p.metrics.RecordFetchFailure(ReasonStatus)
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		p.metrics.RecordFetchSuccess()
		p.logger.Info("フィードは未変更です（304）",
			slog.String("feed_url", p.feedURL),
			slog.Int64("duration_ms", duration.Milliseconds()),
		)
		return last, nil
	case StatusStop:
		p.metrics.RecordFetchFailure(ReasonStatus)
		return nil, retry.Unrecoverable(&StatusError{StatusCode: resp.StatusCode})
	default:
		p.metrics.RecordFetchFailure(ReasonStatus)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	// 上限+1バイトまで読み、超過していれば打ち切りと判定する
	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize+1))
	if err != nil {
		p.metrics.RecordFetchFailure(ReasonRead)
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	if int64(len(body)) > p.maxBodySize {
		p.metrics.RecordFetchFailure(ReasonTooLarge)
		return nil, retry.Unrecoverable(fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, p.maxBodySize))
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		p.metrics.RecordFetchFailure(ReasonParse)
		return nil, retry.Unrecoverable(fmt.Errorf("%w: %v", model.NewParseFailedError(), err))
	}

	raw := &RawFeed{
		Title: parsed.Title,
		Link:  parsed.Link,
		Items: convertItems(parsed.Items),
	}

	p.mu.Lock()
	p.etag = resp.Header.Get("ETag")
	p.lastModified = resp.Header.Get("Last-Modified")
	p.last = raw
	p.mu.Unlock()

	p.metrics.RecordFetchSuccess()
	p.logger.Info("フィード取得が完了しました",
		slog.String("feed_url", p.feedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_total", len(raw.Items)),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)

	return raw, nil
}

// convertItems はgofeedの記事をmodel.FeedItemに変換する。
// 欠損しているフィールドは空文字列のまま渡す。
func convertItems(items []*gofeed.Item) []model.FeedItem {
	converted := make([]model.FeedItem, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		fi := model.FeedItem{
			Title:     item.Title,
			Link:      item.Link,
			Published: publishedText(item),
			Summary:   item.Description,
			Content:   item.Content,
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if fi.Link == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			fi.Link = item.GUID
		}

		converted = append(converted, fi)
	}

	return converted
}

// publishedText は記事の公開日時を文字列で返す。
// gofeedが日時を解釈できた場合はRFC3339に正規化し、できなかった場合はフィードの原文を返す。
func publishedText(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.Format(time.RFC3339)
	case item.Published != "":
		return item.Published
	default:
		return item.Updated
	}
}
