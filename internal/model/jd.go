package model

import (
	"time"

	"github.com/hitoshi/jobdash/internal/docstore"
)

// Summary はjd-postings-summaryの1ドキュメントを表す。
// CopyRefとHTMLRefは未設定の場合nil。
type Summary struct {
	UUID        string
	CompanyName string
	RoleTitle   string
	JDURL       string
	Domain      string
	Level       string
	IsPathrise  bool
	IsPro       bool
	Status      string
	Notes       string
	JDCopy      string
	ReqsCopy    string
	CopyRef     *docstore.Ref
	HTMLRef     *docstore.Ref
	CreatedAt   time.Time
}

// CompositeRecord はサマリーと2つのサテライト文書を結合した編集単位。
// JDCopyとJDHTMLは参照が未設定または解決できない場合に空文字列となる。
type CompositeRecord struct {
	UUID    string
	Summary Summary
	JDCopy  string
	JDHTML  string
}

// Draft は編集中のJDレコードのローカルコピー。
type Draft struct {
	UUID        string
	CompanyName string
	RoleTitle   string
	JDURL       string
	Domain      string
	Level       string
	IsPathrise  bool
	IsPro       bool
	Notes       string
	JDCopy      string
	ReqsCopy    string
	JDHTML      string
}

// NewDraft はレコードから編集用のドラフトを生成する。
func NewDraft(rec *CompositeRecord) Draft {
	return Draft{
		UUID:        rec.UUID,
		CompanyName: rec.Summary.CompanyName,
		RoleTitle:   rec.Summary.RoleTitle,
		JDURL:       rec.Summary.JDURL,
		Domain:      rec.Summary.Domain,
		Level:       rec.Summary.Level,
		IsPathrise:  rec.Summary.IsPathrise,
		IsPro:       rec.Summary.IsPro,
		Notes:       rec.Summary.Notes,
		JDCopy:      rec.JDCopy,
		ReqsCopy:    rec.Summary.ReqsCopy,
		JDHTML:      rec.JDHTML,
	}
}

// DraftField は保存対象となるドラフトのフィールドを表す。
type DraftField string

const (
	DraftFieldCompanyName DraftField = "companyName"
	DraftFieldRoleTitle   DraftField = "roleTitle"
	DraftFieldDomain      DraftField = "domain"
	DraftFieldLevel       DraftField = "level"
	DraftFieldIsPathrise  DraftField = "is_pathrise"
	DraftFieldIsPro       DraftField = "is_pro"
	DraftFieldNotes       DraftField = "notes"
	DraftFieldJDCopy      DraftField = "jd_copy"
	DraftFieldReqsCopy    DraftField = "reqs_copy"
)

// SavedFields は保存時にサマリーへ書き戻すフィールドの固定集合。
var SavedFields = []DraftField{
	DraftFieldCompanyName,
	DraftFieldRoleTitle,
	DraftFieldDomain,
	DraftFieldLevel,
	DraftFieldIsPathrise,
	DraftFieldIsPro,
	DraftFieldNotes,
	DraftFieldJDCopy,
	DraftFieldReqsCopy,
}

// Value はフィールドの値を返す。
func (d *Draft) Value(f DraftField) any {
	switch f {
	case DraftFieldCompanyName:
		return d.CompanyName
	case DraftFieldRoleTitle:
		return d.RoleTitle
	case DraftFieldDomain:
		return d.Domain
	case DraftFieldLevel:
		return d.Level
	case DraftFieldIsPathrise:
		return d.IsPathrise
	case DraftFieldIsPro:
		return d.IsPro
	case DraftFieldNotes:
		return d.Notes
	case DraftFieldJDCopy:
		return d.JDCopy
	case DraftFieldReqsCopy:
		return d.ReqsCopy
	default:
		return nil
	}
}

// Changed はbaseと比べて値が異なる保存対象フィールドを返す。
func (d *Draft) Changed(base *Draft) []DraftField {
	var out []DraftField
	for _, f := range SavedFields {
		if d.Value(f) != base.Value(f) {
			out = append(out, f)
		}
	}
	return out
}
