package security

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// excerptEllipsis は抜粋を切り詰めた場合に末尾へ付与する記号。
const excerptEllipsis = "…"

// ExcerptService は記事HTMLからカード表示用のプレーンテキスト抜粋を生成する。
type ExcerptService interface {
	// Excerpt はrawHTMLのタグを除去し、連続する空白を1つにまとめたテキストを返す。
	// maxRunesを超える場合はその文字数で切り詰めて「…」を付与する。
	// maxRunesが0以下の場合は切り詰めない。
	Excerpt(rawHTML string, maxRunes int) string
}

// excerptService はExcerptServiceの実装。
type excerptService struct {
	policy *bluemonday.Policy
}

// NewExcerptService はExcerptServiceの新しいインスタンスを生成する。
// bluemondayのStrictPolicyで全タグを除去し、script/styleの中身も出力しない。
func NewExcerptService() *excerptService {
	p := bluemonday.StrictPolicy()
	// <p>a</p><p>b</p> が "ab" に連結されないよう、除去したタグを空白に置き換える
	p.AddSpaceWhenStrippingTag(true)

	return &excerptService{policy: p}
}

// Excerpt はrawHTMLからプレーンテキストの抜粋を生成する。
func (s *excerptService) Excerpt(rawHTML string, maxRunes int) string {
	if rawHTML == "" {
		return ""
	}

	// StrictPolicyの出力はHTMLエスケープ済みのため、テンプレート側で二重エスケープされないよう戻す
	text := html.UnescapeString(s.policy.Sanitize(rawHTML))
	text = strings.Join(strings.Fields(text), " ")

	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimRightFunc(string(runes[:maxRunes]), unicode.IsSpace) + excerptEllipsis
}
