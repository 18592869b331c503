package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jobdash/internal/metrics"
	"github.com/hitoshi/jobdash/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// 運用
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer

	// フィード
	FeedBoard       FeedBoard
	DisplayLocation *time.Location

	// JDエディタ
	Controller   JDController
	ScanImporter ScanImporter
	Stream       http.Handler

	// アウトリーチ
	Outreach OutreachSubmitter
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → StatusMetrics → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。書き込み系のルートには書き込み専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	feedHandler := NewFeedHandler(deps.FeedBoard, deps.DisplayLocation)
	jdHandler := NewJDHandler(deps.Controller, deps.ScanImporter)
	outreachHandler := NewOutreachHandler(deps.Outreach, deps.Controller)

	// --- 運用エンドポイント ---
	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- API ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		write := deps.RateLimiter.WriteMiddleware()

		// フィード
		r.Route("/api/feed", func(r chi.Router) {
			r.Get("/", feedHandler.ListFeed)
			r.Get("/tabs", feedHandler.ListTabs)
			r.With(write).Post("/{uuid}/triage", feedHandler.Triage)
		})

		// JDエディタ
		r.Route("/api/jds", func(r chi.Router) {
			r.Get("/", jdHandler.ListRecords)
			r.Get("/options", jdHandler.GetOptions)
			if deps.Stream != nil {
				r.Method(http.MethodGet, "/stream", deps.Stream)
			}
			r.Post("/{id}/select", jdHandler.Select)

			r.Route("/draft", func(r chi.Router) {
				r.Get("/", jdHandler.GetDraft)
				r.Put("/", jdHandler.UpdateDraft)
				r.Get("/keywords", jdHandler.Keywords)
				r.With(write).Post("/save", jdHandler.SaveDraft)
				r.With(write).Post("/import-scan", jdHandler.ImportScan)
			})
		})

		// アウトリーチ
		r.With(write).Post("/api/outreach", outreachHandler.Submit)
	})

	return r
}
