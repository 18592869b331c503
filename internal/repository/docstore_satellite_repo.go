package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/jobdash/internal/docstore"
)

// DocstoreSatelliteRepo はドキュメントストアを使用したサテライト文書リポジトリ。
type DocstoreSatelliteRepo struct {
	store docstore.Store
}

// NewDocstoreSatelliteRepo はDocstoreSatelliteRepoを生成する。
func NewDocstoreSatelliteRepo(store docstore.Store) *DocstoreSatelliteRepo {
	return &DocstoreSatelliteRepo{store: store}
}

// ResolveCopy は参照先の本文（copyフィールド）を返す。
func (r *DocstoreSatelliteRepo) ResolveCopy(ctx context.Context, ref docstore.Ref) (string, error) {
	return r.resolve(ctx, ref, fieldSatelliteCopy)
}

// ResolveHTML は参照先のHTML（htmlフィールド）を返す。
func (r *DocstoreSatelliteRepo) ResolveHTML(ctx context.Context, ref docstore.Ref) (string, error) {
	return r.resolve(ctx, ref, fieldSatelliteHTML)
}

// WriteCopy は参照先の本文を部分更新する。
func (r *DocstoreSatelliteRepo) WriteCopy(ctx context.Context, ref docstore.Ref, text string) error {
	if err := r.store.Update(ctx, ref.Collection, ref.ID, docstore.Fields{fieldSatelliteCopy: text}); err != nil {
		return fmt.Errorf("本文の保存に失敗しました（%s）: %w", ref.Path(), err)
	}
	return nil
}

func (r *DocstoreSatelliteRepo) resolve(ctx context.Context, ref docstore.Ref, field string) (string, error) {
	doc, err := r.store.Get(ctx, ref.Collection, ref.ID)
	if err != nil {
		return "", fmt.Errorf("参照先の取得に失敗しました（%s）: %w", ref.Path(), err)
	}
	// 参照先が存在しない場合もnilのDocumentから空文字列が返る
	return doc.String(field), nil
}
