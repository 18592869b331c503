package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jobdash/internal/feed"
	"github.com/hitoshi/jobdash/internal/model"
)

// FeedBoard はフィードハンドラーが必要とする一覧操作のインターフェース。
type FeedBoard interface {
	// Load はフィードを読み込み直して一覧を返す。
	Load(ctx context.Context) ([]*model.Posting, error)
	// Triage は一覧上の求人を振り分ける。
	Triage(ctx context.Context, uuid string, status model.TriageStatus) error
	// Tabs はタブごとの件数を返す。
	Tabs() []model.FeedTab
}

// FeedHandler はフィード画面のHTTPハンドラー。
type FeedHandler struct {
	board FeedBoard
	loc   *time.Location
}

// NewFeedHandler はFeedHandlerを生成する。locは投稿時刻の表示に使うタイムゾーン。
func NewFeedHandler(board FeedBoard, loc *time.Location) *FeedHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &FeedHandler{board: board, loc: loc}
}

// triageRequest は振り分けリクエストのボディ。
type triageRequest struct {
	Status string `json:"status"`
}

// postingResponse は求人のAPIレスポンス。
type postingResponse struct {
	UUID             string `json:"uuid"`
	Title            string `json:"title"`
	Department       string `json:"department"`
	Subtitle         string `json:"subtitle"`
	Employer         string `json:"employer"`
	Description      string `json:"description"`
	LocationTier     int64  `json:"location_tier"`
	WorkType         string `json:"work_type"`
	JDURL            string `json:"jd_url"`
	DataURL          string `json:"data_url"`
	PromoterName     string `json:"promoter_name"`
	PromoterLink     string `json:"promoter_link"`
	Proximity        string `json:"proximity"`
	PromoterHeadline string `json:"promoter_headline"`
	Status           string `json:"status"`
	Freshness        string `json:"freshness"`
	FreshMin         string `json:"fresh_min"`
	PostTime         int64  `json:"post_time"`
	PostedAtDisplay  string `json:"posted_at_display"`
}

// tabResponse はタブのAPIレスポンス。
type tabResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// feedListResponse はフィード一覧のAPIレスポンス。
type feedListResponse struct {
	Jobs []postingResponse `json:"jobs"`
	Tabs []tabResponse     `json:"tabs"`
}

// ListFeed はGET /api/feed のハンドラー。
// フィードを読み込み直し、一覧とタブの件数を返す。
func (h *FeedHandler) ListFeed(w http.ResponseWriter, r *http.Request) {
	postings, err := h.board.Load(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	jobs := make([]postingResponse, len(postings))
	for i, p := range postings {
		jobs[i] = h.toPostingResponse(p)
	}
	writeJSON(w, http.StatusOK, feedListResponse{
		Jobs: jobs,
		Tabs: toTabResponses(h.board.Tabs()),
	})
}

// ListTabs はGET /api/feed/tabs のハンドラー。
func (h *FeedHandler) ListTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tabs": toTabResponses(h.board.Tabs()),
	})
}

// Triage はPOST /api/feed/{uuid}/triage のハンドラー。
// 成功した場合は振り分け後のタブ件数を返す。
func (h *FeedHandler) Triage(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	var req triageRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.board.Triage(r.Context(), uuid, model.TriageStatus(req.Status)); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uuid":   uuid,
		"status": req.Status,
		"tabs":   toTabResponses(h.board.Tabs()),
	})
}

func (h *FeedHandler) toPostingResponse(p *model.Posting) postingResponse {
	return postingResponse{
		UUID:             p.UUID,
		Title:            p.Title,
		Department:       p.Department,
		Subtitle:         p.Subtitle,
		Employer:         p.Employer,
		Description:      p.Description,
		LocationTier:     p.LocationTier,
		WorkType:         p.WorkType,
		JDURL:            p.JDURL,
		DataURL:          p.DataURL,
		PromoterName:     p.PromoterName,
		PromoterLink:     p.PromoterLink,
		Proximity:        p.Proximity,
		PromoterHeadline: p.PromoterHeadline,
		Status:           p.Status,
		Freshness:        p.Freshness,
		FreshMin:         p.FreshMin,
		PostTime:         p.PostTime,
		PostedAtDisplay:  feed.FormatPostTime(p.PostTime, h.loc),
	}
}

func toTabResponses(tabs []model.FeedTab) []tabResponse {
	out := make([]tabResponse, len(tabs))
	for i, t := range tabs {
		out[i] = tabResponse{Name: t.Name, Count: t.Count}
	}
	return out
}
