package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
)

// DocstoreSummaryRepo はドキュメントストアを使用したJDサマリーリポジトリ。
type DocstoreSummaryRepo struct {
	store docstore.Store
}

// NewDocstoreSummaryRepo はDocstoreSummaryRepoを生成する。
func NewDocstoreSummaryRepo(store docstore.Store) *DocstoreSummaryRepo {
	return &DocstoreSummaryRepo{store: store}
}

// Watch はjd-postings-summaryをtimestamp降順でライブ購読する。
// 通知ごとにその時点のスナップショット全体をサマリーに変換して渡す。
func (r *DocstoreSummaryRepo) Watch(ctx context.Context, fn func([]*model.Summary)) (docstore.Subscription, error) {
	q := docstore.Query{}.Sort(fieldTimestamp, docstore.Desc)
	sub, err := r.store.Subscribe(ctx, CollectionSummaries, q, func(docs []*docstore.Document) {
		summaries := make([]*model.Summary, 0, len(docs))
		for _, d := range docs {
			summaries = append(summaries, summaryFromDocument(d))
		}
		fn(summaries)
	})
	if err != nil {
		return nil, fmt.Errorf("JDサマリーの購読に失敗しました: %w", err)
	}
	return sub, nil
}

// SaveDraft はドラフトのうちfieldsで指定されたフィールドをサマリーへ部分更新する。
func (r *DocstoreSummaryRepo) SaveDraft(ctx context.Context, draft *model.Draft, fields []model.DraftField) error {
	if len(fields) == 0 {
		return nil
	}

	update := make(docstore.Fields, len(fields))
	for _, f := range fields {
		update[string(f)] = draft.Value(f)
	}

	if err := r.store.Update(ctx, CollectionSummaries, draft.UUID, update); err != nil {
		return fmt.Errorf("JDサマリーの保存に失敗しました: %w", err)
	}
	return nil
}

func summaryFromDocument(d *docstore.Document) *model.Summary {
	uuid := d.String(fieldUUID)
	if uuid == "" {
		uuid = d.ID
	}

	s := &model.Summary{
		UUID:        uuid,
		CompanyName: d.String(fieldCompanyName),
		RoleTitle:   d.String(fieldRoleTitle),
		JDURL:       d.String(fieldJDURL),
		Domain:      d.String(fieldDomain),
		Level:       d.String(fieldLevel),
		IsPathrise:  d.Bool(fieldIsPathrise),
		IsPro:       d.Bool(fieldIsPro),
		Status:      d.String(fieldStatus),
		Notes:       d.String(fieldNotes),
		JDCopy:      d.String(fieldJDCopy),
		ReqsCopy:    d.String(fieldReqsCopy),
		CreatedAt:   d.Time(fieldTimestamp),
	}
	if ref, ok := d.Ref(fieldCopyRef); ok {
		s.CopyRef = &ref
	}
	if ref, ok := d.Ref(fieldHTMLRef); ok {
		s.HTMLRef = &ref
	}
	return s
}
