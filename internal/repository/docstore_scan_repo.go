package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/jobdash/internal/docstore"
)

// DocstoreScanRepo はドキュメントストアを使用したスキャン結果リポジトリ。
type DocstoreScanRepo struct {
	store docstore.Store
}

// NewDocstoreScanRepo はDocstoreScanRepoを生成する。
func NewDocstoreScanRepo(store docstore.Store) *DocstoreScanRepo {
	return &DocstoreScanRepo{store: store}
}

// FindHTMLByJobID はjob-scan-htmlからjob-idが一致する最初の1件のhtmlを返す。
func (r *DocstoreScanRepo) FindHTMLByJobID(ctx context.Context, jobID string) (string, bool, error) {
	docs, err := r.store.Query(ctx, CollectionScanHTML, docstore.Query{}.Where(fieldScanJobID, jobID).First())
	if err != nil {
		return "", false, fmt.Errorf("スキャン結果の検索に失敗しました: %w", err)
	}
	if len(docs) == 0 {
		return "", false, nil
	}
	return docs[0].String(fieldScanHTML), true, nil
}
