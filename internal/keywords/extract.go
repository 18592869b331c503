// Package keywords は求人HTMLから頻出語を抽出する。
package keywords

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/jobdash/internal/model"
)

// DefaultLimit はlimitに0以下が指定された場合の件数。
const DefaultLimit = 20

// Keyword は抽出された語と出現回数。
type Keyword struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Extract はHTMLの本文テキストから頻出語を出現回数の降順で返す。同数の場合は語の昇順。
// script・style・noscriptの内容は対象外。
func Extract(html string, limit int) ([]Keyword, error) {
	if strings.TrimSpace(html) == "" {
		return []Keyword{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTMLの解析に失敗しました: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	collectText(doc.Selection, &b)
	return ExtractText(b.String(), limit), nil
}

// ExtractText はプレーンテキストから頻出語を返す。
func ExtractText(text string, limit int) []Keyword {
	if limit <= 0 {
		limit = DefaultLimit
	}

	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		counts[tok]++
	}

	out := make([]Keyword, 0, len(counts))
	for term, n := range counts {
		out = append(out, Keyword{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FromDraft はドラフトのjd_htmlから頻出語を抽出する。HTMLが空の場合はjd_copyを使う。
func FromDraft(d model.Draft, limit int) ([]Keyword, error) {
	if strings.TrimSpace(d.JDHTML) != "" {
		return Extract(d.JDHTML, limit)
	}
	return ExtractText(d.JDCopy, limit), nil
}

// collectText はテキストノードを空白区切りで連結する。ブロック要素の境界で語が結合しないようにする。
func collectText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			b.WriteString(s.Text())
			b.WriteByte(' ')
			return
		}
		collectText(s, b)
	})
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := symbolTerms[f]; !ok {
			f = strings.Trim(f, "+#")
		}
		if len([]rune(f)) < 2 || isNumeric(f) {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
