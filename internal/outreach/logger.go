// Package outreach はJDレコードに紐づく連絡記録の登録を提供する。
package outreach

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/repository"
)

// Form はアウトリーチ入力フォームの状態。
type Form struct {
	Target      string             `json:"target"`
	TargetEmail string             `json:"target_email"`
	Type        model.OutreachType `json:"type"`
	Message     string             `json:"message"`
	Note        string             `json:"note"`
}

// Reset は送信後のフォームを初期状態に戻す。TargetEmailは連続入力のため保持する。
func (f *Form) Reset() {
	f.Target = ""
	f.Message = ""
	f.Note = ""
	f.Type = model.DefaultOutreachType
}

// Result は送信結果。
type Result struct {
	Event *model.OutreachEvent
	// ProfileUpdated はプロフィールへのemail書き込みが成功したかどうか。
	ProfileUpdated bool
}

// OutreachRecorder はアウトリーチ記録の結果を計測するインターフェース。
type OutreachRecorder interface {
	RecordOutreach(outreachType string, success bool)
}

// Logger はアウトリーチイベントを追記し、連絡先のemailをプロフィールへ反映する。
type Logger struct {
	events   repository.OutreachRepository
	profiles repository.ProfileRepository
	recorder OutreachRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewLogger はLoggerを生成する。
func NewLogger(
	events repository.OutreachRepository,
	profiles repository.ProfileRepository,
	recorder OutreachRecorder,
	logger *slog.Logger,
) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		events:   events,
		profiles: profiles,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNow はイベントのタイムスタンプに使う時刻関数を差し替える。
func (l *Logger) SetNow(now func() time.Time) {
	l.now = now
}

// Submit はフォームの内容をactiveIDのアウトリーチとして記録する。
//
// activeIDが空の場合はNO_ACTIVE_RECORDを返し、何も書き込まない。
// イベントの追記に成功した時点でフォームをリセットする。
// プロフィールの更新失敗はログに残し、Result.ProfileUpdatedで通知する（エラーにはしない）。
func (l *Logger) Submit(ctx context.Context, activeID string, form *Form) (*Result, error) {
	if activeID == "" {
		return nil, model.NewNoActiveRecordError()
	}

	outreachType := form.Type
	if outreachType == "" {
		outreachType = model.DefaultOutreachType
	}
	if !outreachType.IsValid() {
		return nil, model.NewInvalidOutreachTypeError(string(outreachType))
	}
	target := strings.TrimSpace(form.Target)
	if target == "" {
		return nil, model.NewTargetRequiredError()
	}

	event := &model.OutreachEvent{
		ApplicationID: activeID,
		Timestamp:     l.now().UTC(),
		Target:        target,
		Type:          outreachType,
		Message:       form.Message,
		Note:          form.Note,
	}

	logger := l.logger.With(
		slog.String("application_id", activeID),
		slog.String("target", target),
	)

	id, err := l.events.Append(ctx, event)
	if err != nil {
		logger.Error("アウトリーチの記録に失敗しました", slog.String("error", err.Error()))
		l.record(outreachType, false)
		return nil, err
	}
	event.ID = id
	l.record(outreachType, true)

	result := &Result{Event: event}
	if err := l.profiles.UpsertEmail(ctx, target, form.TargetEmail); err != nil {
		logger.Warn("プロフィールの更新に失敗しました", slog.String("error", err.Error()))
	} else {
		result.ProfileUpdated = true
	}

	form.Reset()
	logger.Info("アウトリーチを記録しました",
		slog.String("event_id", id),
		slog.String("type", string(outreachType)),
	)
	return result, nil
}

func (l *Logger) record(t model.OutreachType, success bool) {
	if l.recorder != nil {
		l.recorder.RecordOutreach(string(t), success)
	}
}
