// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, alert, feed, jd, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePostingNotFound     = "POSTING_NOT_FOUND"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeRecordNotFound      = "RECORD_NOT_FOUND"
	ErrCodeNoActiveRecord      = "NO_ACTIVE_RECORD"
	ErrCodeDraftMismatch       = "DRAFT_MISMATCH"
	ErrCodeInvalidOption       = "INVALID_OPTION"
	ErrCodeInvalidOutreachType = "INVALID_OUTREACH_TYPE"
	ErrCodeTargetRequired      = "TARGET_REQUIRED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewPostingNotFoundError はフィード上に求人が見つからない場合のエラーを生成する。
func NewPostingNotFoundError(uuid string) *APIError {
	return &APIError{
		Code:     ErrCodePostingNotFound,
		Message:  fmt.Sprintf("指定された求人がフィードにありません: %s", uuid),
		Category: "feed",
		Action:   "フィードを再読み込みしてください。",
	}
}

// NewInvalidStatusError は振り分け先のステータスが無効な場合のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには archived または engaged を指定してください。",
	}
}

// NewRecordNotFoundError は選択したJDレコードが一覧に存在しない場合のエラーを生成する。
func NewRecordNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定されたJDレコードが見つかりません: %s", id),
		Category: "jd",
		Action:   "JD一覧を再読み込みしてから選択し直してください。",
	}
}

// NewNoActiveRecordError はJDレコードが選択されていない場合のエラーを生成する。
func NewNoActiveRecordError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveRecord,
		Message:  "JDレコードが選択されていません。",
		Category: "alert",
		Action:   "一覧からJDレコードを選択してから操作してください。",
	}
}

// NewDraftMismatchError は編集内容のUUIDが選択中のレコードと一致しない場合のエラーを生成する。
func NewDraftMismatchError(got, want string) *APIError {
	return &APIError{
		Code:     ErrCodeDraftMismatch,
		Message:  fmt.Sprintf("編集中のレコードと一致しません: %s（選択中: %s）", got, want),
		Category: "validation",
		Action:   "レコードを選択し直してから編集してください。",
	}
}

// NewInvalidOptionError は選択肢にない値が指定された場合のエラーを生成する。
func NewInvalidOptionError(field, value string, options []string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOption,
		Message:  fmt.Sprintf("%s の値が無効です: %s", field, value),
		Category: "validation",
		Action:   fmt.Sprintf("%s には次のいずれかを指定してください: %s", field, strings.Join(options, ", ")),
	}
}

// NewInvalidOutreachTypeError はアウトリーチ種別が無効な場合のエラーを生成する。
func NewInvalidOutreachTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOutreachType,
		Message:  fmt.Sprintf("無効なアウトリーチ種別です: %s", t),
		Category: "validation",
		Action:   "種別には LI-connect、LI-dm、email のいずれかを指定してください。",
	}
}

// NewTargetRequiredError はアウトリーチ先が未入力の場合のエラーを生成する。
func NewTargetRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTargetRequired,
		Message:  "アウトリーチ先が入力されていません。",
		Category: "validation",
		Action:   "連絡先のプロフィールIDを入力してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
