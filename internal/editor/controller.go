// Package editor はJDレコードの選択・編集・保存を管理する。
package editor

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/repository"
)

// Options は選択式フィールドの選択肢。
type Options struct {
	Domains []string `json:"domains"`
	Levels  []string `json:"levels"`
}

// SaveResult は保存で書き込まれた内容。
type SaveResult struct {
	// SummaryFields はサマリーへ書き戻したフィールド。
	SummaryFields []model.DraftField
	// CopyWritten は参照先の本文を書き換えたかどうか。
	CopyWritten bool
}

// Controller は直近に組み立てられたレコード一覧と、選択中レコードのドラフトを保持する。
// 保存済みの値（ベースライン）は選択時に取り込み、保存成功のたびに更新する。
type Controller struct {
	summaries  repository.SummaryRepository
	satellites repository.SatelliteRepository
	options    Options
	logger     *slog.Logger

	mu       sync.Mutex
	records  []*model.CompositeRecord
	activeID string
	copyRef  *docstore.Ref
	draft    model.Draft
	baseline model.Draft
	// baselineCopy は参照先の本文の保存済みの値。サマリー側のjd_copyとは別に追跡する。
	baselineCopy string
}

// NewController はControllerを生成する。
func NewController(
	summaries repository.SummaryRepository,
	satellites repository.SatelliteRepository,
	options Options,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		summaries:  summaries,
		satellites: satellites,
		options:    options,
		logger:     logger,
	}
}

// Options は選択肢を返す。
func (c *Controller) Options() Options {
	return c.options
}

// Update は組み立て済みのレコード一覧を置き換える。編集中のドラフトは変更しない。
func (c *Controller) Update(records []*model.CompositeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = records
}

// Records は直近のレコード一覧のコピーを返す。
func (c *Controller) Records() []*model.CompositeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.CompositeRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Select は一覧からレコードを選択し、ドラフトを置き換える。未保存の編集は破棄される。
// 本文の参照はこの時点のものを保持し、保存時に使う。
func (c *Controller) Select(id string) (model.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rec *model.CompositeRecord
	for _, r := range c.records {
		if r.UUID == id {
			rec = r
			break
		}
	}
	if rec == nil {
		return model.Draft{}, model.NewRecordNotFoundError(id)
	}

	c.activeID = rec.UUID
	c.draft = model.NewDraft(rec)
	c.baseline = c.draft
	c.baselineCopy = c.draft.JDCopy
	c.copyRef = nil
	if rec.Summary.CopyRef != nil {
		ref := *rec.Summary.CopyRef
		c.copyRef = &ref
	}

	c.logger.Debug("JDレコードを選択しました", slog.String("uuid", id))
	return c.draft, nil
}

// ActiveID は選択中のレコードのUUIDを返す。未選択の場合は空文字列。
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Draft は現在のドラフトを返す。未選択の場合はfalse。
func (c *Controller) Draft() (model.Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" {
		return model.Draft{}, false
	}
	return c.draft, true
}

// Edit はドラフト全体を置き換える。
// UUIDは選択中のレコードと一致し、domainとlevelは空か選択肢のいずれかでなければならない。
func (c *Controller) Edit(d model.Draft) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeID == "" {
		return model.NewNoActiveRecordError()
	}
	if d.UUID != c.activeID {
		return model.NewDraftMismatchError(d.UUID, c.activeID)
	}
	if d.Domain != "" && !slices.Contains(c.options.Domains, d.Domain) {
		return model.NewInvalidOptionError("domain", d.Domain, c.options.Domains)
	}
	if d.Level != "" && !slices.Contains(c.options.Levels, d.Level) {
		return model.NewInvalidOptionError("level", d.Level, c.options.Levels)
	}
	c.draft = d
	return nil
}

// OverlayHTML は選択中のレコードがidの場合にドラフトのjd_htmlを置き換える。
// 置き換えた場合はtrueを返す。
func (c *Controller) OverlayHTML(id, html string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" || c.activeID != id {
		return false
	}
	c.draft.JDHTML = html
	return true
}

// Save はドラフトの変更をストアへ書き込む。
//
// サマリーへは保存対象フィールドのうち変更のあったものだけを書き戻す。
// 選択時のレコードに本文の参照があり、本文が変更されている場合は参照先にも書き込む。
// 2つの書き込みは独立しており、片方が失敗しても他方は実行される。ロールバック・再試行は行わない。
// 成功した書き込みの分だけベースラインを更新するため、失敗した分は次回の保存で再度書き込まれる。
func (c *Controller) Save(ctx context.Context) (SaveResult, error) {
	c.mu.Lock()
	if c.activeID == "" {
		c.mu.Unlock()
		return SaveResult{}, model.NewNoActiveRecordError()
	}
	id := c.activeID
	draft := c.draft
	changed := draft.Changed(&c.baseline)
	var ref *docstore.Ref
	if c.copyRef != nil && draft.JDCopy != c.baselineCopy {
		r := *c.copyRef
		ref = &r
	}
	c.mu.Unlock()

	logger := c.logger.With(slog.String("uuid", id))
	var result SaveResult
	var errs []error

	if len(changed) > 0 {
		if err := c.summaries.SaveDraft(ctx, &draft, changed); err != nil {
			logger.Error("JDサマリーの保存に失敗しました", slog.String("error", err.Error()))
			errs = append(errs, err)
		} else {
			result.SummaryFields = changed
		}
	}

	if ref != nil {
		if err := c.satellites.WriteCopy(ctx, *ref, draft.JDCopy); err != nil {
			logger.Error("本文の保存に失敗しました",
				slog.String("ref", ref.Path()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		} else {
			result.CopyWritten = true
		}
	}

	c.mu.Lock()
	// 保存中に別のレコードが選択された場合はベースラインを更新しない
	if c.activeID == id {
		if result.SummaryFields != nil {
			c.applyBaseline(&draft, result.SummaryFields)
		}
		if result.CopyWritten {
			c.baselineCopy = draft.JDCopy
		}
	}
	c.mu.Unlock()

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	logger.Info("JDレコードを保存しました",
		slog.Int("field_count", len(result.SummaryFields)),
		slog.Bool("copy_written", result.CopyWritten),
	)
	return result, nil
}

// applyBaseline は保存に成功したフィールドの値をベースラインへ反映する。c.muを保持して呼ぶこと。
func (c *Controller) applyBaseline(saved *model.Draft, fields []model.DraftField) {
	for _, f := range fields {
		switch f {
		case model.DraftFieldCompanyName:
			c.baseline.CompanyName = saved.CompanyName
		case model.DraftFieldRoleTitle:
			c.baseline.RoleTitle = saved.RoleTitle
		case model.DraftFieldDomain:
			c.baseline.Domain = saved.Domain
		case model.DraftFieldLevel:
			c.baseline.Level = saved.Level
		case model.DraftFieldIsPathrise:
			c.baseline.IsPathrise = saved.IsPathrise
		case model.DraftFieldIsPro:
			c.baseline.IsPro = saved.IsPro
		case model.DraftFieldNotes:
			c.baseline.Notes = saved.Notes
		case model.DraftFieldJDCopy:
			c.baseline.JDCopy = saved.JDCopy
		case model.DraftFieldReqsCopy:
			c.baseline.ReqsCopy = saved.ReqsCopy
		}
	}
}
