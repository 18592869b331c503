// Package scan は外部スキャンツールが保存した求人HTMLをドラフトへ取り込む。
package scan

import (
	"context"
	"log/slog"

	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/repository"
	"github.com/hitoshi/jobdash/internal/security"
)

// Target はHTMLの取り込み先となるドラフトの保持者。
type Target interface {
	ActiveID() string
	OverlayHTML(id, html string) bool
}

// ImportResult は取り込み結果。
type ImportResult struct {
	// Found はactiveIDに一致するスキャン結果があったかどうか。
	Found bool
	// Applied はドラフトへ反映されたかどうか。取得中に選択が変わった場合はfalse。
	Applied bool
	HTML    string
}

// Bridge はjob-scan-htmlの検索とドラフトへの反映を行う。
type Bridge struct {
	repo      repository.ScanRepository
	sanitizer security.HTMLSanitizer
	logger    *slog.Logger
}

// NewBridge はBridgeを生成する。
func NewBridge(repo repository.ScanRepository, sanitizer security.HTMLSanitizer, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{repo: repo, sanitizer: sanitizer, logger: logger}
}

// Fetch はjob-idがactiveIDに一致するスキャン結果のHTMLをサニタイズして返す。
// 一致が複数ある場合にどれを返すかはストアの既定順に依存する。
func (b *Bridge) Fetch(ctx context.Context, activeID string) (string, bool, error) {
	if activeID == "" {
		return "", false, model.NewNoActiveRecordError()
	}
	html, found, err := b.repo.FindHTMLByJobID(ctx, activeID)
	if err != nil {
		b.logger.Error("スキャン結果の取得に失敗しました",
			slog.String("uuid", activeID),
			slog.String("error", err.Error()),
		)
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	return b.sanitizer.Sanitize(html), true, nil
}

// Import は選択中のレコードのスキャン結果をドラフトのjd_htmlへ重ねる。
// 一致するスキャン結果がない場合は何もしない。
func (b *Bridge) Import(ctx context.Context, target Target) (*ImportResult, error) {
	id := target.ActiveID()
	html, found, err := b.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	logger := b.logger.With(slog.String("uuid", id))
	if !found {
		logger.Info("一致するスキャン結果がありません")
		return &ImportResult{}, nil
	}

	applied := target.OverlayHTML(id, html)
	if !applied {
		logger.Warn("取り込み中に選択が変更されたためスキャン結果を破棄しました")
	} else {
		logger.Info("スキャン結果をドラフトに取り込みました", slog.Int("html_length", len(html)))
	}
	return &ImportResult{Found: true, Applied: applied, HTML: html}, nil
}
