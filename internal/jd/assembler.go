// Package jd はJDサマリーとサテライト文書を結合した編集用レコードの組み立てを提供する。
package jd

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/repository"
)

// defaultConcurrency はレコード組み立ての既定の並列数。
const defaultConcurrency = 8

// AssemblyRecorder は組み立て結果を記録するメトリクスのインターフェース。
type AssemblyRecorder interface {
	RecordAssembly(records, unresolved int, duration time.Duration)
}

// Assembler はサマリーの購読通知ごとに結合レコード一覧を組み立て直す。
// 通知間で状態を持たず、毎回スナップショットから全件を導出する。
type Assembler struct {
	summaries   repository.SummaryRepository
	satellites  repository.SatelliteRepository
	recorder    AssemblyRecorder
	logger      *slog.Logger
	concurrency int
}

// NewAssembler はAssemblerを生成する。concurrencyが0以下の場合は既定値8を使う。
func NewAssembler(
	summaries repository.SummaryRepository,
	satellites repository.SatelliteRepository,
	recorder AssemblyRecorder,
	logger *slog.Logger,
	concurrency int,
) *Assembler {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		summaries:   summaries,
		satellites:  satellites,
		recorder:    recorder,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Subscribe はサマリーを購読し、変更ごとに組み立てたレコード一覧をonUpdateへ渡す。
// 返されたSubscriptionのCancel、またはctxのキャンセルで購読を終了する。
func (a *Assembler) Subscribe(ctx context.Context, onUpdate func([]*model.CompositeRecord)) (docstore.Subscription, error) {
	return a.summaries.Watch(ctx, func(summaries []*model.Summary) {
		records := a.Assemble(ctx, summaries)
		// 組み立て中にキャンセルされた場合は不完全な一覧を渡さない
		if ctx.Err() != nil {
			return
		}
		onUpdate(records)
	})
}

// Assemble はサマリーごとに本文とHTMLの参照を並行して解決し、結合レコードを返す。
// 参照が未設定または解決できない場合はそのフィールドを空文字列にし、他のレコードには影響させない。
// 返される一覧の順序はsummariesの順序と同じ。
func (a *Assembler) Assemble(ctx context.Context, summaries []*model.Summary) []*model.CompositeRecord {
	start := time.Now()
	records := make([]*model.CompositeRecord, len(summaries))
	unresolved := make([]int, len(summaries))

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for i, s := range summaries {
		g.Go(func() error {
			records[i], unresolved[i] = a.assembleOne(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range unresolved {
		total += n
	}
	if a.recorder != nil {
		a.recorder.RecordAssembly(len(records), total, time.Since(start))
	}
	a.logger.Debug("JDレコードを組み立てました",
		slog.Int("record_count", len(records)),
		slog.Int("unresolved_refs", total),
	)
	return records
}

// assembleOne は1件のサマリーの2つの参照を並行して解決する。
// 解決できなかった参照の数を併せて返す。
func (a *Assembler) assembleOne(ctx context.Context, s *model.Summary) (*model.CompositeRecord, int) {
	rec := &model.CompositeRecord{UUID: s.UUID, Summary: *s}

	var g errgroup.Group
	var copyMissing, htmlMissing bool
	g.Go(func() error {
		rec.JDCopy, copyMissing = a.resolve(ctx, s.UUID, "jd_copy_ref", s.CopyRef, a.satellites.ResolveCopy)
		return nil
	})
	g.Go(func() error {
		rec.JDHTML, htmlMissing = a.resolve(ctx, s.UUID, "jd_html_ref", s.HTMLRef, a.satellites.ResolveHTML)
		return nil
	})
	_ = g.Wait()

	missing := 0
	if copyMissing {
		missing++
	}
	if htmlMissing {
		missing++
	}
	return rec, missing
}

// resolve は参照を解決する。未設定・取得失敗のいずれも空文字列として扱う。
func (a *Assembler) resolve(
	ctx context.Context,
	uuid, field string,
	ref *docstore.Ref,
	fetch func(context.Context, docstore.Ref) (string, error),
) (string, bool) {
	if ref == nil {
		return "", true
	}
	value, err := fetch(ctx, *ref)
	if err != nil {
		a.logger.Warn("参照の解決に失敗しました",
			slog.String("uuid", uuid),
			slog.String("field", field),
			slog.String("ref", ref.Path()),
			slog.String("error", err.Error()),
		)
		return "", true
	}
	return value, false
}
