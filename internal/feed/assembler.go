package feed

import (
	"log/slog"
	"sync"

	"github.com/hitoshi/feedview/internal/metrics"
	"github.com/hitoshi/feedview/internal/model"
	"github.com/hitoshi/feedview/internal/security"
)

// defaultMaxConcurrency は安全性判定の同時実行数の既定値。
const defaultMaxConcurrency = 8

// Assembler は取得した記事列に安全性判定を適用し、表示してよい記事だけを残す。
type Assembler struct {
	classifier     security.SafetyClassifierService
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
}

// NewAssembler はAssemblerの新しいインスタンスを生成する。
// maxConcurrencyが1未満の場合は既定値を使用する。
func NewAssembler(
	classifier security.SafetyClassifierService,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Assembler {
	if maxConcurrency < 1 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Assembler{
		classifier:     classifier,
		metrics:        m,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Assemble は安全と判定された記事だけを元の順序で返す。
//
// 判定対象はContent（空ならSummary）。除外はログとメトリクスにのみ記録し、
// 1件の除外が他の記事の処理を止めることはない。出力に再適用しても結果は変わらない。
func (a *Assembler) Assemble(raw []model.FeedItem) []model.FeedItem {
	if len(raw) == 0 {
		return []model.FeedItem{}
	}

	type judgement struct {
		verdict security.Verdict
		rule    security.Rule
	}
	results := make([]judgement, len(raw))

	// セマフォで同時実行数を制限し、結果は入力と同じ添字に書き込む
	sem := make(chan struct{}, a.maxConcurrency)
	var wg sync.WaitGroup

	for i := range raw {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			verdict, rule := a.classifier.Inspect(raw[i].EffectiveContent())
			results[i] = judgement{verdict: verdict, rule: rule}
		}(i)
	}

	wg.Wait()

	kept := make([]model.FeedItem, 0, len(raw))
	for i, item := range raw {
		if results[i].verdict == security.VerdictSafe {
			kept = append(kept, item)
			continue
		}

		a.metrics.RecordItemRejected(string(results[i].rule))
		a.logger.Warn("安全でない記事を除外しました",
			slog.Int("position", i),
			slog.String("title", item.Title),
			slog.String("link", item.Link),
			slog.String("rule", string(results[i].rule)),
		)
	}

	if rejected := len(raw) - len(kept); rejected > 0 {
		a.logger.Info("記事の安全性判定が完了しました",
			slog.Int("items_total", len(raw)),
			slog.Int("items_kept", len(kept)),
			slog.Int("items_rejected", rejected),
		)
	}

	return kept
}
