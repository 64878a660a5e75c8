package model

import (
	"fmt"
	"net/url"
	"strings"
)

// Link は検証済みの絶対URL（http/https）を表す。
// 未検証の文字列と取り違えないよう、ParseLink経由でのみ生成する。
type Link struct {
	raw string
}

// ParseLink は文字列を検証してLinkを生成する。
// http/httpsスキームでホストを持つ絶対URLのみ受け付ける。
func ParseLink(raw string) (Link, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Link{}, fmt.Errorf("empty link")
	}

	u, err := url.Parse(s)
	if err != nil {
		return Link{}, fmt.Errorf("invalid link: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Link{}, fmt.Errorf("disallowed scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return Link{}, fmt.Errorf("link has no host: %s", s)
	}

	return Link{raw: u.String()}, nil
}

// String はURL文字列を返す。ゼロ値の場合は空文字列。
func (l Link) String() string {
	return l.raw
}

// IsZero はLinkが未設定かどうかを返す。
func (l Link) IsZero() bool {
	return l.raw == ""
}
