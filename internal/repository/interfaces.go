// Package repository はドキュメントストア上のコレクションへのアクセスを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
)

// PostingRepository はフィード求人の永続化インターフェース。
type PostingRepository interface {
	// ListActive はli-jd-postingsの求人をpost_time降順で取得する。0件の場合は空スライスを返す。
	ListActive(ctx context.Context) ([]*model.Posting, error)

	// DeleteActive はli-jd-postingsから指定UUIDの求人を削除する。
	DeleteActive(ctx context.Context, uuid string) error

	// PutArchived は求人の元フィールドすべてにstatusを加えてli-jd-postings-archivedへ書き込む。
	PutArchived(ctx context.Context, posting *model.Posting, status model.TriageStatus) error
}

// SummaryRepository はJDサマリーの永続化インターフェース。
type SummaryRepository interface {
	// Watch はjd-postings-summaryをtimestamp降順でライブ購読する。
	Watch(ctx context.Context, fn func([]*model.Summary)) (docstore.Subscription, error)

	// SaveDraft はドラフトのうちfieldsで指定されたフィールドをサマリーへ書き戻す。
	// サマリーが存在しない場合はdocstore.ErrNotFoundを返す。
	SaveDraft(ctx context.Context, draft *model.Draft, fields []model.DraftField) error
}

// SatelliteRepository はサマリーから参照されるサテライト文書へのアクセスインターフェース。
type SatelliteRepository interface {
	// ResolveCopy は参照先の本文を返す。参照先が存在しない場合は空文字列を返す。
	ResolveCopy(ctx context.Context, ref docstore.Ref) (string, error)

	// ResolveHTML は参照先のHTMLを返す。参照先が存在しない場合は空文字列を返す。
	ResolveHTML(ctx context.Context, ref docstore.Ref) (string, error)

	// WriteCopy は参照先の本文を書き換える。参照先が存在しない場合はdocstore.ErrNotFoundを返す。
	WriteCopy(ctx context.Context, ref docstore.Ref, text string) error
}

// OutreachRepository はアウトリーチイベントの永続化インターフェース。
type OutreachRepository interface {
	// Append はイベントを追記し、採番されたIDを返す。
	Append(ctx context.Context, event *model.OutreachEvent) (string, error)
}

// ProfileRepository は連絡先プロフィールの永続化インターフェース。
type ProfileRepository interface {
	// UpsertEmail はli-profile/{target}にemailを書き込む。存在しない場合は作成する。
	UpsertEmail(ctx context.Context, target, email string) error
}

// ScanRepository は外部スキャン結果の参照インターフェース。
type ScanRepository interface {
	// FindHTMLByJobID はjob-idが一致する最初のドキュメントのhtmlを返す。
	// 該当がない場合はfound=falseを返す。複数該当時にどれを返すかはストアの既定順に依存する。
	FindHTMLByJobID(ctx context.Context, jobID string) (html string, found bool, err error)
}
