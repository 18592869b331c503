// Package feed は求人フィードの読み込みと振り分け（アーカイブ）を提供する。
package feed

import (
	"context"
	"log/slog"

	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/repository"
)

// TriageRecorder は振り分け結果を記録するメトリクスのインターフェース。
type TriageRecorder interface {
	RecordTriage(status string, success bool)
}

// Service は求人フィードのサービス層。
type Service struct {
	repo     repository.PostingRepository
	recorder TriageRecorder
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(repo repository.PostingRepository, recorder TriageRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, recorder: recorder, logger: logger}
}

// LoadFeed はアクティブな求人をpost_time降順で返す。0件の場合は空スライスを返す。
func (s *Service) LoadFeed(ctx context.Context) ([]*model.Posting, error) {
	postings, err := s.repo.ListActive(ctx)
	if err != nil {
		s.logger.Error("求人フィードの読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return postings, nil
}

// Triage は求人をアクティブ側から削除し、statusを付けてアーカイブ側へ書き込む。
// 2つの書き込みはアトミックではない。削除後にアーカイブが失敗した場合、求人はどちらにも存在しなくなる。
// 同じ求人で再試行すると、削除は存在しなくても成功するためアーカイブの書き込みからやり直せる。
func (s *Service) Triage(ctx context.Context, posting *model.Posting, status model.TriageStatus) error {
	if !status.IsValid() {
		return model.NewInvalidStatusError(string(status))
	}

	logger := s.logger.With(
		slog.String("uuid", posting.UUID),
		slog.String("status", string(status)),
	)

	if err := s.repo.DeleteActive(ctx, posting.UUID); err != nil {
		logger.Error("求人の削除に失敗しました", slog.String("error", err.Error()))
		s.record(status, false)
		return err
	}

	if err := s.repo.PutArchived(ctx, posting, status); err != nil {
		logger.Error("求人のアーカイブに失敗しました（アクティブ側からは削除済み）",
			slog.String("error", err.Error()),
		)
		s.record(status, false)
		return err
	}

	logger.Info("求人を振り分けました")
	s.record(status, true)
	return nil
}

func (s *Service) record(status model.TriageStatus, success bool) {
	if s.recorder != nil {
		s.recorder.RecordTriage(string(status), success)
	}
}
