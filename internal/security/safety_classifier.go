// Package security はアプリケーションのセキュリティ機能を提供する。
//
// SafetyClassifierService はフィード記事のHTMLコンテンツを検査し、
// マークアップを解釈する描画面にそのまま埋め込んでよいかを判定する。
// 判定は拒否リスト方式のヒューリスティックであり、コンテンツの書き換えは行わない。
package security

import (
	"regexp"
	"strings"
)

// Verdict はコンテンツ検査の判定結果を表す。
type Verdict int

const (
	// VerdictSafe はそのまま描画してよいコンテンツ。
	VerdictSafe Verdict = iota
	// VerdictRejected は危険なパターンを含むため除外すべきコンテンツ。
	VerdictRejected
)

// String は判定結果の文字列表現を返す。
func (v Verdict) String() string {
	if v == VerdictRejected {
		return "rejected"
	}
	return "safe"
}

// Rule は拒否判定に使われた検出ルールの名前。
type Rule string

const (
	// RuleNone はどのルールにも一致しなかったことを示す。
	RuleNone Rule = ""
	// RuleScriptTag は <script タグの開始に一致したことを示す。
	RuleScriptTag Rule = "script_tag"
	// RuleJavaScriptScheme は javascript: スキームに一致したことを示す。
	RuleJavaScriptScheme Rule = "javascript_scheme"
	// RuleEventHandler はインラインイベントハンドラ属性に一致したことを示す。
	RuleEventHandler Rule = "event_handler"
	// RuleCodeInvocation は eval / setTimeout / setInterval の呼び出しに一致したことを示す。
	RuleCodeInvocation Rule = "code_invocation"
)

// eventHandlerAttributes は検出対象のインラインイベントハンドラ属性名。
// 列挙外の属性（onanimationstart等）は検出しない。
var eventHandlerAttributes = []string{
	"onclick", "onerror", "onload", "onmouseover", "onmouseout",
	"onfocus", "onblur", "onchange", "onsubmit",
	"onkeydown", "onkeypress", "onkeyup",
	"onabort", "onbeforeunload", "ondblclick",
	"ondrag", "ondragend", "ondragenter", "ondragleave", "ondragover", "ondragstart",
	"ondrop", "oninput", "oninvalid",
	"onmousedown", "onmousemove", "onmouseup",
	"onreset", "onresize", "onscroll", "onselect", "onunload",
}

// detectionRule は1つの検出ルールを表す。
type detectionRule struct {
	name    Rule
	pattern *regexp.Regexp
}

// detectionRules は評価順に並んだ検出ルール。いずれか1つでも一致すれば拒否する。
// 正規表現は不変でありgoroutine間で共有できる。
var detectionRules = []detectionRule{
	{name: RuleScriptTag, pattern: regexp.MustCompile(`(?i)<script[\s>]`)},
	{name: RuleJavaScriptScheme, pattern: regexp.MustCompile(`(?i)javascript:`)},
	{name: RuleEventHandler, pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(eventHandlerAttributes, "|") + `)\s*=`)},
	{name: RuleCodeInvocation, pattern: regexp.MustCompile(`(?i)\b(?:eval|setTimeout|setInterval)\s*\(`)},
}

// SafetyClassifierService はHTMLコンテンツの安全性判定のインターフェースを定義する。
// FeedAssemblerが記事ごとの採否判定に使用する。
type SafetyClassifierService interface {
	// Classify はコンテンツを検査して判定結果を返す。
	// 空文字列はVerdictSafeとなる。エラーは返さない。
	Classify(content string) Verdict

	// Inspect はClassifyと同じ判定を行い、拒否時には一致したルールも返す。
	// 安全な場合のルールはRuleNone。
	Inspect(content string) (Verdict, Rule)
}

// safetyClassifier はSafetyClassifierServiceの実装。
// 状態を持たないため、ゼロ値のまま複数goroutineから同時に利用できる。
type safetyClassifier struct{}

// NewSafetyClassifier はSafetyClassifierServiceの新しいインスタンスを生成する。
func NewSafetyClassifier() *safetyClassifier {
	return &safetyClassifier{}
}

// Classify はコンテンツを検査して判定結果を返す。
func (c *safetyClassifier) Classify(content string) Verdict {
	v, _ := c.Inspect(content)
	return v
}

// Inspect はコンテンツを検査し、判定結果と一致したルールを返す。
func (c *safetyClassifier) Inspect(content string) (Verdict, Rule) {
	if content == "" {
		return VerdictSafe, RuleNone
	}
	for _, r := range detectionRules {
		if r.pattern.MatchString(content) {
			return VerdictRejected, r.name
		}
	}
	return VerdictSafe, RuleNone
}
