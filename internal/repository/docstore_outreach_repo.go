package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
)

// DocstoreOutreachRepo はドキュメントストアを使用したアウトリーチイベントリポジトリ。
type DocstoreOutreachRepo struct {
	store docstore.Store
}

// NewDocstoreOutreachRepo はDocstoreOutreachRepoを生成する。
func NewDocstoreOutreachRepo(store docstore.Store) *DocstoreOutreachRepo {
	return &DocstoreOutreachRepo{store: store}
}

// Append はイベントをoutreach-eventsへ追記する。IDはストアが採番する。
func (r *DocstoreOutreachRepo) Append(ctx context.Context, event *model.OutreachEvent) (string, error) {
	id, err := r.store.Add(ctx, CollectionOutreachEvents, docstore.Fields{
		fieldApplicationID: event.ApplicationID,
		fieldTimestamp:     event.Timestamp,
		fieldTarget:        event.Target,
		fieldType:          string(event.Type),
		fieldMessage:       event.Message,
		fieldNote:          event.Note,
	})
	if err != nil {
		return "", fmt.Errorf("アウトリーチの記録に失敗しました: %w", err)
	}
	return id, nil
}

// DocstoreProfileRepo はドキュメントストアを使用した連絡先プロフィールリポジトリ。
type DocstoreProfileRepo struct {
	store docstore.Store
}

// NewDocstoreProfileRepo はDocstoreProfileRepoを生成する。
func NewDocstoreProfileRepo(store docstore.Store) *DocstoreProfileRepo {
	return &DocstoreProfileRepo{store: store}
}

// UpsertEmail はli-profile/{target}のemailをマージする。プロフィールがなければ作成する。
func (r *DocstoreProfileRepo) UpsertEmail(ctx context.Context, target, email string) error {
	if err := r.store.Merge(ctx, CollectionProfiles, target, docstore.Fields{fieldEmail: email}); err != nil {
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return nil
}
