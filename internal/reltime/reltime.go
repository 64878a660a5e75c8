// Package reltime はフィード記事の公開日時を「3 days ago」のような相対表記と、
// ツールチップ用の絶対表記に変換する機能を提供する。
//
// 月数・年数は固定日数での除算ではなく、暦上の応当日（anniversary）で判定する。
// 関数はすべて状態を持たず、複数goroutineから同時に呼び出せる。
package reltime

import (
	"fmt"
	"strings"
	"time"
)

// FutureLabel は公開日時が現在より後の場合の相対表記。
const FutureLabel = "in the future"

// JustNowLabel は経過時間が60秒未満の場合の相対表記。
const JustNowLabel = "Just now"

// absoluteLayout は絶対表記のレイアウト（en-USのロングフォーム）。
const absoluteLayout = "January 2, 2006 at 03:04 PM"

// layouts はタイムスタンプとして受け付けるレイアウト。先頭から順に試行する。
// ゾーン情報を持たないレイアウトはUTCとして解釈される。
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	time.RFC850,
	time.ANSIC,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// zoneOffsets はRFC 822で定義されたタイムゾーン略称とUTCからのオフセット（時間）。
// time.Parseは未知の略称をオフセット0として扱うため、略称付きの結果はこの表で補正する。
var zoneOffsets = map[string]int{
	"UT":  0,
	"UTC": 0,
	"GMT": 0,
	"Z":   0,
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

// Result は相対表記と絶対表記の組。
type Result struct {
	// Relative は「5 minutes ago」などの短い表記。
	Relative string
	// Absolute は「January 2, 2006 at 03:04 PM」形式の完全な表記。
	Absolute string
}

// elapsed は経過時間を各単位で表したもの。
type elapsed struct {
	seconds int64
	minutes int64
	hours   int64
	days    int64
	weeks   int64
	months  int
	years   int
}

// Format はtimestampをnow時点から見た相対表記と絶対表記に変換する。
// 暦計算と絶対表記はnowのロケーションで行う。
// 解釈できないtimestampは両方の表記に元の文字列をそのまま返す。
func Format(timestamp string, now time.Time) Result {
	parsed, ok := parse(timestamp)
	if !ok {
		return Result{Relative: timestamp, Absolute: timestamp}
	}

	parsed = parsed.In(now.Location())
	absolute := parsed.Format(absoluteLayout)

	// 未来日時では経過単位を計算しない（負の値や「0 months ago」を防ぐ）
	if parsed.After(now) {
		return Result{Relative: FutureLabel, Absolute: absolute}
	}

	return Result{
		Relative: label(measure(parsed, now)),
		Absolute: absolute,
	}
}

// parse はtimestampを既知のレイアウトで解釈する。
func parse(timestamp string) (time.Time, bool) {
	s := strings.TrimSpace(timestamp)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "MST") {
			return resolveZone(t)
		}
		return t, true
	}
	return time.Time{}, false
}

// resolveZone はゾーン略称付きのレイアウトで解釈されたtを正しいオフセットに置き直す。
// 表にもローカルゾーンにもない略称は解釈不能として扱う。
func resolveZone(t time.Time) (time.Time, bool) {
	name, _ := t.Zone()
	hours, ok := zoneOffsets[name]
	if !ok {
		// ローカルゾーンが知っている略称には実オフセットが付いている
		if t.Location() == time.Local {
			return t, true
		}
		return time.Time{}, false
	}
	zone := time.FixedZone(name, hours*60*60)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone), true
}

// measure はparsedからnowまでの経過時間を算出する。parsedはnow以前であること。
func measure(parsed, now time.Time) elapsed {
	var e elapsed
	e.seconds = int64(now.Sub(parsed) / time.Second)
	e.minutes = e.seconds / 60
	e.hours = e.minutes / 60
	e.days = e.hours / 24
	e.weeks = e.days / 7
	e.months = monthsBetween(parsed, now)
	e.years = yearsBetween(parsed, now)
	return e
}

// monthsBetween は暦上の月の応当日に基づいて経過月数を算出する。
// 応当日はnowの月にparsedの日を当てはめた日付で、存在しない日は翌月に繰り越す
// （1月31日起点なら2月の応当日は3月3日）。
func monthsBetween(parsed, now time.Time) int {
	loc := now.Location()
	months := (now.Year()-parsed.Year())*12 + int(now.Month()) - int(parsed.Month())

	anniversary := time.Date(now.Year(), now.Month(), parsed.Day(), 0, 0, 0, 0, loc)
	if midnight(now).Before(anniversary) {
		months--
	}
	return max(months, 0)
}

// yearsBetween は暦上の年の応当日に基づいて経過年数を算出する。
// 応当日の日はその月の末日で切り詰める（2月29日起点なら平年は2月28日）。
func yearsBetween(parsed, now time.Time) int {
	loc := now.Location()
	years := now.Year() - parsed.Year()

	lastDay := time.Date(now.Year(), parsed.Month()+1, 0, 0, 0, 0, 0, loc).Day()
	anniversary := time.Date(now.Year(), parsed.Month(), min(parsed.Day(), lastDay), 0, 0, 0, 0, loc)
	if midnight(now).Before(anniversary) {
		years--
	}
	return max(years, 0)
}

// midnight はtの日付部分のみを残した同日0時を返す。
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// label は経過時間から相対表記を選択する。上から順に評価し、最初に満たした閾値を採用する。
func label(e elapsed) string {
	switch {
	case e.seconds < 60:
		return JustNowLabel
	case e.minutes < 60:
		return ago(e.minutes, "minute")
	case e.hours < 24:
		return ago(e.hours, "hour")
	case e.days < 7:
		return ago(e.days, "day")
	case e.weeks < 4:
		return ago(e.weeks, "week")
	case e.months < 12:
		return ago(int64(e.months), "month")
	default:
		return ago(int64(e.years), "year")
	}
}

// ago は「N unit(s) ago」形式の文字列を返す。Nが1以外のときは単位を複数形にする。
func ago(n int64, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}
