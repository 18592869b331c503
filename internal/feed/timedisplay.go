package feed

import "time"

// postTimeLayout は投稿時刻の表示形式（例: "Monday, 1/2/2006 @ 03:04 PM"）。
const postTimeLayout = "Monday, 1/2/2006 @ 03:04 PM"

// FormatPostTime はUnix秒の投稿時刻を表示用文字列に変換する。
// 0の場合は空文字列を返す。locがnilの場合はUTCで表示する。
func FormatPostTime(epochSeconds int64, loc *time.Location) string {
	if epochSeconds == 0 {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(epochSeconds, 0).In(loc).Format(postTimeLayout)
}
