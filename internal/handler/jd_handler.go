package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jobdash/internal/editor"
	"github.com/hitoshi/jobdash/internal/keywords"
	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/scan"
)

// JDController はJDハンドラーが必要とする編集操作のインターフェース。
// scan.Targetを満たし、スキャン結果の取り込み先にもなる。
type JDController interface {
	Options() editor.Options
	Records() []*model.CompositeRecord
	Select(id string) (model.Draft, error)
	ActiveID() string
	Draft() (model.Draft, bool)
	Edit(d model.Draft) error
	OverlayHTML(id, html string) bool
	Save(ctx context.Context) (editor.SaveResult, error)
}

// ScanImporter はスキャン結果の取り込みを行うインターフェース。
type ScanImporter interface {
	Import(ctx context.Context, target scan.Target) (*scan.ImportResult, error)
}

// JDHandler はJDエディタのHTTPハンドラー。
type JDHandler struct {
	controller JDController
	importer   ScanImporter
}

// NewJDHandler はJDHandlerを生成する。
func NewJDHandler(controller JDController, importer ScanImporter) *JDHandler {
	return &JDHandler{controller: controller, importer: importer}
}

// recordResponse は組み立て済みレコードのAPIレスポンス。
// Labelは一覧の表示名で、jd_urlをそのまま使う。
type recordResponse struct {
	UUID        string `json:"uuid"`
	Label       string `json:"label"`
	CompanyName string `json:"company_name"`
	RoleTitle   string `json:"role_title"`
	JDURL       string `json:"jd_url"`
	Domain      string `json:"domain"`
	Level       string `json:"level"`
	IsPathrise  bool   `json:"is_pathrise"`
	IsPro       bool   `json:"is_pro"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	JDCopy      string `json:"jd_copy"`
	ReqsCopy    string `json:"reqs_copy"`
	JDHTML      string `json:"jd_html"`
}

// draftBody はドラフトのリクエスト・レスポンス共通のボディ。
type draftBody struct {
	UUID        string `json:"uuid"`
	CompanyName string `json:"company_name"`
	RoleTitle   string `json:"role_title"`
	JDURL       string `json:"jd_url"`
	Domain      string `json:"domain"`
	Level       string `json:"level"`
	IsPathrise  bool   `json:"is_pathrise"`
	IsPro       bool   `json:"is_pro"`
	Notes       string `json:"notes"`
	JDCopy      string `json:"jd_copy"`
	ReqsCopy    string `json:"reqs_copy"`
	JDHTML      string `json:"jd_html"`
}

// draftResponse は選択中レコードとドラフトのAPIレスポンス。
type draftResponse struct {
	ActiveID string    `json:"active_id"`
	Draft    draftBody `json:"draft"`
}

// saveResponse は保存結果のAPIレスポンス。
type saveResponse struct {
	SummaryFields []string `json:"summary_fields"`
	CopyWritten   bool     `json:"copy_written"`
}

// importResponse はスキャン結果取り込みのAPIレスポンス。
type importResponse struct {
	Found   bool   `json:"found"`
	Applied bool   `json:"applied"`
	HTML    string `json:"html"`
}

// ListRecords はGET /api/jds のハンドラー。直近に組み立てられた一覧を返す。
func (h *JDHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records := h.controller.Records()
	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = toRecordResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records":   out,
		"active_id": h.controller.ActiveID(),
	})
}

// GetOptions はGET /api/jds/options のハンドラー。
func (h *JDHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Options())
}

// Select はPOST /api/jds/{id}/select のハンドラー。
func (h *JDHandler) Select(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.controller.Select(id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{ActiveID: id, Draft: toDraftBody(d)})
}

// GetDraft はGET /api/jds/draft のハンドラー。
func (h *JDHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.controller.Draft()
	if !ok {
		handleServiceError(w, model.NewNoActiveRecordError())
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{ActiveID: d.UUID, Draft: toDraftBody(d)})
}

// UpdateDraft はPUT /api/jds/draft のハンドラー。ドラフト全体を置き換える。
func (h *JDHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if err := decodeJSONBody(r, &body); err != nil {
		handleServiceError(w, err)
		return
	}

	d := fromDraftBody(body)
	if err := h.controller.Edit(d); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{ActiveID: d.UUID, Draft: toDraftBody(d)})
}

// SaveDraft はPOST /api/jds/draft/save のハンドラー。
func (h *JDHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	res, err := h.controller.Save(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	fields := make([]string, len(res.SummaryFields))
	for i, f := range res.SummaryFields {
		fields[i] = string(f)
	}
	writeJSON(w, http.StatusOK, saveResponse{SummaryFields: fields, CopyWritten: res.CopyWritten})
}

// ImportScan はPOST /api/jds/draft/import-scan のハンドラー。
func (h *JDHandler) ImportScan(w http.ResponseWriter, r *http.Request) {
	res, err := h.importer.Import(r.Context(), h.controller)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Found: res.Found, Applied: res.Applied, HTML: res.HTML})
}

// Keywords はGET /api/jds/draft/keywords のハンドラー。
// クエリパラメータlimitで件数を指定できる。
func (h *JDHandler) Keywords(w http.ResponseWriter, r *http.Request) {
	limit := keywords.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			handleServiceError(w, model.NewInvalidRequestError("limitは正の整数で指定してください"))
			return
		}
		limit = n
	}

	d, ok := h.controller.Draft()
	if !ok {
		handleServiceError(w, model.NewNoActiveRecordError())
		return
	}

	kws, err := keywords.FromDraft(d, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uuid":     d.UUID,
		"keywords": kws,
	})
}

func toRecordResponse(rec *model.CompositeRecord) recordResponse {
	s := rec.Summary
	return recordResponse{
		UUID:        rec.UUID,
		Label:       s.JDURL,
		CompanyName: s.CompanyName,
		RoleTitle:   s.RoleTitle,
		JDURL:       s.JDURL,
		Domain:      s.Domain,
		Level:       s.Level,
		IsPathrise:  s.IsPathrise,
		IsPro:       s.IsPro,
		Status:      s.Status,
		Notes:       s.Notes,
		JDCopy:      rec.JDCopy,
		ReqsCopy:    s.ReqsCopy,
		JDHTML:      rec.JDHTML,
	}
}

func toDraftBody(d model.Draft) draftBody {
	return draftBody{
		UUID:        d.UUID,
		CompanyName: d.CompanyName,
		RoleTitle:   d.RoleTitle,
		JDURL:       d.JDURL,
		Domain:      d.Domain,
		Level:       d.Level,
		IsPathrise:  d.IsPathrise,
		IsPro:       d.IsPro,
		Notes:       d.Notes,
		JDCopy:      d.JDCopy,
		ReqsCopy:    d.ReqsCopy,
		JDHTML:      d.JDHTML,
	}
}

func fromDraftBody(b draftBody) model.Draft {
	return model.Draft{
		UUID:        b.UUID,
		CompanyName: b.CompanyName,
		RoleTitle:   b.RoleTitle,
		JDURL:       b.JDURL,
		Domain:      b.Domain,
		Level:       b.Level,
		IsPathrise:  b.IsPathrise,
		IsPro:       b.IsPro,
		Notes:       b.Notes,
		JDCopy:      b.JDCopy,
		ReqsCopy:    b.ReqsCopy,
		JDHTML:      b.JDHTML,
	}
}
