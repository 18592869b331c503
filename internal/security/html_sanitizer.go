// Package security はアプリケーションのセキュリティ機能を提供する。
//
// HTMLSanitizer は外部スキャンから取り込んだ求人HTMLをサニタイズし、
// ドラフトに重ねる前にスクリプトやイベント属性を取り除く。
// bluemondayの許可リストベースのポリシーで、求人票の表示に必要なタグのみを通過させる。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer はHTMLのサニタイズ機能のインターフェースを定義する。
type HTMLSanitizer interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// jdSanitizer はHTMLSanitizerの実装。ポリシーはスレッドセーフに共有できる。
type jdSanitizer struct {
	policy *bluemonday.Policy
}

// NewJDSanitizer は求人HTML向けのサニタイザーを生成する。
// ポリシーの内容:
//   - 許可タグ: 見出し、段落、リスト、表、強調、div/span
//   - 禁止タグ: script, iframe, style, form および全てのon*イベント属性
//   - aタグ: hrefはhttp/httpsのみ。target="_blank" と rel="noopener noreferrer" を自動付与
//   - img: 除去（スキャン元のトラッキング画像を持ち込まない）
func NewJDSanitizer() *jdSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "div", "span",
		"ul", "ol", "li", "dl", "dt", "dd",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u", "small",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool { return true })
	p.AllowURLSchemeWithCustomPolicy("http", func(*url.URL) bool { return true })
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

	return &jdSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
func (s *jdSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}
