package feed

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractThumbnail は記事HTML内で最初に現れるhttpsの画像URLを返す。
// 該当する画像がない場合は空文字列を返す。
func ExtractThumbnail(content string) string {
	if !strings.Contains(strings.ToLower(content), "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}

	var thumbnail string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		u, err := url.Parse(strings.TrimSpace(src))
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return true
		}
		thumbnail = u.String()
		return false
	})

	return thumbnail
}
