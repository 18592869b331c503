package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
)

// DocstorePostingRepo はドキュメントストアを使用した求人リポジトリ。
type DocstorePostingRepo struct {
	store docstore.Store
}

// NewDocstorePostingRepo はDocstorePostingRepoを生成する。
func NewDocstorePostingRepo(store docstore.Store) *DocstorePostingRepo {
	return &DocstorePostingRepo{store: store}
}

// ListActive はli-jd-postingsの求人をpost_time降順で取得する。
func (r *DocstorePostingRepo) ListActive(ctx context.Context) ([]*model.Posting, error) {
	docs, err := r.store.Query(ctx, CollectionPostings, docstore.Query{}.Sort(fieldPostTime, docstore.Desc))
	if err != nil {
		return nil, fmt.Errorf("求人一覧の取得に失敗しました: %w", err)
	}

	postings := make([]*model.Posting, 0, len(docs))
	for _, d := range docs {
		postings = append(postings, postingFromDocument(d))
	}
	return postings, nil
}

// DeleteActive はli-jd-postingsから指定UUIDの求人を削除する。
func (r *DocstorePostingRepo) DeleteActive(ctx context.Context, uuid string) error {
	if err := r.store.Delete(ctx, CollectionPostings, uuid); err != nil {
		return fmt.Errorf("求人の削除に失敗しました: %w", err)
	}
	return nil
}

// PutArchived は求人をstatus付きでli-jd-postings-archivedへ全体上書きで書き込む。
func (r *DocstorePostingRepo) PutArchived(ctx context.Context, posting *model.Posting, status model.TriageStatus) error {
	fields := postingToFields(posting)
	fields[fieldStatus] = string(status)

	if err := r.store.Set(ctx, CollectionPostingsArchived, posting.UUID, fields); err != nil {
		return fmt.Errorf("求人のアーカイブに失敗しました: %w", err)
	}
	return nil
}

func postingFromDocument(d *docstore.Document) *model.Posting {
	uuid := d.String(fieldUUID)
	if uuid == "" {
		uuid = d.ID
	}
	return &model.Posting{
		UUID:             uuid,
		Title:            d.String(fieldTitle),
		Department:       d.String(fieldDepartment),
		Subtitle:         d.String(fieldSubtitle),
		Employer:         d.String(fieldEmployer),
		Description:      d.String(fieldDescription),
		LocationTier:     d.Int64(fieldLocationTier),
		WorkType:         d.String(fieldWorkType),
		JDURL:            d.String(fieldJDURL),
		DataURL:          d.String(fieldDataURL),
		PromoterName:     d.String(fieldPromoterName),
		PromoterLink:     d.String(fieldPromoterLink),
		Proximity:        d.String(fieldProximity),
		PromoterHeadline: d.String(fieldPromoterHeadline),
		Status:           d.String(fieldStatus),
		Freshness:        d.String(fieldFreshness),
		FreshMin:         d.String(fieldFreshMin),
		PostTime:         d.Int64(fieldPostTime),
		Attributes:       map[string]any(d.Fields.Clone()),
	}
}

// postingToFields は求人をドキュメントのフィールドに変換する。
// 読み込み時の元フィールドがあればそれを優先し、値を一切書き換えない。
func postingToFields(p *model.Posting) docstore.Fields {
	if p.Attributes != nil {
		fields := docstore.Fields(p.Attributes).Clone()
		if _, ok := fields[fieldUUID]; !ok {
			fields[fieldUUID] = p.UUID
		}
		return fields
	}

	return docstore.Fields{
		fieldUUID:             p.UUID,
		fieldTitle:            p.Title,
		fieldDepartment:       p.Department,
		fieldSubtitle:         p.Subtitle,
		fieldEmployer:         p.Employer,
		fieldDescription:      p.Description,
		fieldLocationTier:     p.LocationTier,
		fieldWorkType:         p.WorkType,
		fieldJDURL:            p.JDURL,
		fieldDataURL:          p.DataURL,
		fieldPromoterName:     p.PromoterName,
		fieldPromoterLink:     p.PromoterLink,
		fieldProximity:        p.Proximity,
		fieldPromoterHeadline: p.PromoterHeadline,
		fieldStatus:           p.Status,
		fieldFreshness:        p.Freshness,
		fieldFreshMin:         p.FreshMin,
		fieldPostTime:         p.PostTime,
	}
}
