package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/jobdash/internal/model"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

// StreamGauge は接続中のクライアント数を計測するインターフェース。
type StreamGauge interface {
	SetStreamClients(n int)
}

// snapshotMessage はWebSocketで送信する組み立て済み一覧のメッセージ。
type snapshotMessage struct {
	Type    string           `json:"type"`
	Records []recordResponse `json:"records"`
}

// StreamHub はGET /api/jds/stream の接続を管理し、組み立て済みの一覧を配信する。
// クライアントごとに未送信のスナップショットは最新の1件だけを保持する。
type StreamHub struct {
	upgrader websocket.Upgrader
	gauge    StreamGauge
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	latest  []byte
	closed  bool
}

type streamClient struct {
	send chan []byte
	done chan struct{}
}

// NewStreamHub はStreamHubを生成する。
// allowedOriginのほか、Originヘッダーなしと同一ホストからの接続を許可する。
func NewStreamHub(allowedOrigin string, gauge StreamGauge, logger *slog.Logger) *StreamHub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &StreamHub{
		gauge:   gauge,
		logger:  logger.With(slog.String("module", "stream")),
		clients: make(map[*streamClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkStreamOrigin(r, allowedOrigin)
		},
	}
	return h
}

func checkStreamOrigin(r *http.Request, allowedOrigin string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if allowedOrigin != "" && origin == allowedOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Broadcast は一覧を接続中の全クライアントへ配信し、新規接続向けに保持する。
func (h *StreamHub) Broadcast(records []*model.CompositeRecord) {
	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = toRecordResponse(rec)
	}
	msg, err := json.Marshal(snapshotMessage{Type: "snapshot", Records: out})
	if err != nil {
		h.logger.Error("スナップショットのエンコードに失敗しました", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = msg
	for c := range h.clients {
		c.offer(msg)
	}
}

// ClientCount は接続中のクライアント数を返す。
func (h *StreamHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close は全クライアントの接続を終了させ、以降の接続を拒否する。
// http.Server.Shutdownはハイジャック済みの接続を閉じないため、停止時に呼び出す。
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.done)
	}
}

// ServeHTTP はWebSocket接続を確立し、切断されるまでスナップショットを送り続ける。
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Warn("WebSocketへのアップグレードに失敗しました", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	c := &streamClient{send: make(chan []byte, 1), done: make(chan struct{})}
	if !h.register(c) {
		writeClose(conn, websocket.CloseGoingAway)
		return
	}
	defer h.unregister(c)

	readDone := make(chan struct{})
	go h.readLoop(conn, readDone)

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-c.done:
			writeClose(conn, websocket.CloseGoingAway)
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("スナップショットの送信に失敗しました", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// readLoop はクライアントからの切断とpongを検出する。受信したメッセージは読み捨てる。
func (h *StreamHub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket closed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *StreamHub) register(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.offer(h.latest)
	}
	h.setGauge(len(h.clients))
	return true
}

func (h *StreamHub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.setGauge(len(h.clients))
}

func (h *StreamHub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.SetStreamClients(n)
	}
}

// offer は未送信のスナップショットを最新のものに置き換えて送信キューに入れる。
// 呼び出し側はhub.muを保持していること。
func (c *streamClient) offer(msg []byte) {
	select {
	case c.send <- msg:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
}

func writeClose(conn *websocket.Conn, code int) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(streamWriteWait),
	)
}
