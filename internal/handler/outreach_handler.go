package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/jobdash/internal/outreach"
)

// OutreachSubmitter はアウトリーチ記録の登録を行うインターフェース。
type OutreachSubmitter interface {
	Submit(ctx context.Context, activeID string, form *outreach.Form) (*outreach.Result, error)
}

// ActiveRecordSource は選択中のレコードIDを返すインターフェース。
type ActiveRecordSource interface {
	ActiveID() string
}

// OutreachHandler はアウトリーチ記録のHTTPハンドラー。
type OutreachHandler struct {
	submitter OutreachSubmitter
	active    ActiveRecordSource
}

// NewOutreachHandler はOutreachHandlerを生成する。
func NewOutreachHandler(submitter OutreachSubmitter, active ActiveRecordSource) *OutreachHandler {
	return &OutreachHandler{submitter: submitter, active: active}
}

// outreachEventResponse はアウトリーチイベントのAPIレスポンス。
type outreachEventResponse struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Timestamp     time.Time `json:"timestamp"`
	Target        string    `json:"target"`
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	Note          string    `json:"note"`
}

// submitOutreachResponse は登録結果のAPIレスポンス。
// Formは送信後にリセットされたフォームの状態。
type submitOutreachResponse struct {
	Event          outreachEventResponse `json:"event"`
	ProfileUpdated bool                  `json:"profile_updated"`
	Form           outreach.Form         `json:"form"`
}

// Submit はPOST /api/outreach のハンドラー。
// 記録先は選択中のレコードで、リクエストでは指定しない。
func (h *OutreachHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form outreach.Form
	if err := decodeJSONBody(r, &form); err != nil {
		handleServiceError(w, err)
		return
	}

	res, err := h.submitter.Submit(r.Context(), h.active.ActiveID(), &form)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ev := res.Event
	writeJSON(w, http.StatusCreated, submitOutreachResponse{
		Event: outreachEventResponse{
			ID:            ev.ID,
			ApplicationID: ev.ApplicationID,
			Timestamp:     ev.Timestamp,
			Target:        ev.Target,
			Type:          string(ev.Type),
			Message:       ev.Message,
			Note:          ev.Note,
		},
		ProfileUpdated: res.ProfileUpdated,
		Form:           form,
	})
}
