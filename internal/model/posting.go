package model

import "time"

// Posting はフィードに表示する求人を表す。
// 取り込み処理が書き込んだフィールドはAttributesにそのまま保持し、
// 振り分け時にアーカイブ先へ欠落なく引き継ぐ。
type Posting struct {
	UUID         string
	Title        string
	Department   string
	Subtitle     string
	Employer     string
	Description  string
	LocationTier int64
	WorkType     string

	JDURL            string
	DataURL          string
	PromoterName     string
	PromoterLink     string
	Proximity        string
	PromoterHeadline string

	Status    string
	Freshness string
	FreshMin  string
	PostTime  int64 // Unix秒

	Attributes map[string]any
}

// PostedAt はpost_timeを時刻として返す。未設定の場合はゼロ値を返す。
func (p *Posting) PostedAt() time.Time {
	if p.PostTime == 0 {
		return time.Time{}
	}
	return time.Unix(p.PostTime, 0)
}

// TriageStatus は求人の振り分け先ステータスを表す。
type TriageStatus string

const (
	// TriageStatusArchived は見送りとしてアーカイブする。
	TriageStatusArchived TriageStatus = "archived"
	// TriageStatusEngaged は応募・接触済みとしてアーカイブする。
	TriageStatusEngaged TriageStatus = "engaged"
)

// IsValid は既知のステータスかどうかを返す。
func (s TriageStatus) IsValid() bool {
	switch s {
	case TriageStatusArchived, TriageStatusEngaged:
		return true
	default:
		return false
	}
}

// FeedTab はフィード画面のタブ名と件数を表す。
type FeedTab struct {
	Name  string
	Count int
}
