// Package docstore はドキュメントストアのクライアント契約とバックエンド実装を提供する。
//
// 全コンポーネントはStoreインターフェースのみに依存し、接続はコンストラクタで注入する。
// バックエンドはPostgreSQL（JSONB + LISTEN/NOTIFY）、Redis（JSON文字列 + Pub/Sub）、
// インメモリ（テスト・ローカル開発用）の3種類を用意している。
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound はUpdate対象のドキュメントが存在しない場合に返される。
var ErrNotFound = errors.New("document not found")

// Fields はドキュメントのフィールド集合を表す。
// 値はstring, float64, bool, nil, []any, map[string]any, Ref, time.Time のいずれかに正規化される。
type Fields map[string]any

// Document はコレクション内の1ドキュメントを表す。
type Document struct {
	ID     string
	Fields Fields
}

// Ref は別ドキュメントへの参照（コレクション名とID）を表す。
type Ref struct {
	Collection string
	ID         string
}

// Path は参照を "collection/id" 形式の文字列で返す。
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// IsZero は参照が未設定かどうかを返す。
func (r Ref) IsZero() bool {
	return r.Collection == "" || r.ID == ""
}

// ParseRef は "collection/id" 形式の文字列をRefに変換する。
func ParseRef(path string) (Ref, error) {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return Ref{}, fmt.Errorf("invalid reference path %q", path)
	}
	return Ref{Collection: path[:i], ID: path[i+1:]}, nil
}

// Direction はソート方向を表す。
type Direction int

const (
	// Asc は昇順。
	Asc Direction = iota
	// Desc は降順。
	Desc
)

// Filter は等価条件（Field == Value）を表す。
type Filter struct {
	Field string
	Value any
}

// Order はソートキーを表す。
type Order struct {
	Field     string
	Direction Direction
}

// Query はコレクションクエリの条件を表す。
// Limitが0以下の場合は件数制限なし。
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// Where はフィルタを追加したQueryを返す。
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Sort はソートキーを追加したQueryを返す。
func (q Query) Sort(field string, dir Direction) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Field: field, Direction: dir})
	return q
}

// First は件数を1件に制限したQueryを返す。
func (q Query) First() Query {
	q.Limit = 1
	return q
}

// Listener はコレクション変更時にその時点のスナップショット全体を受け取るコールバック。
type Listener func(docs []*Document)

// Subscription はライブ購読のハンドル。
// Cancelの戻り後はコールバックが呼ばれないことを保証する。
// Cancelをコールバック内から呼び出してはならない。
type Subscription interface {
	Cancel()
}

// Store はドキュメントストアのクライアント契約。
type Store interface {
	// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Set はドキュメントを全体上書きで書き込む。存在しない場合は作成する。
	Set(ctx context.Context, collection, id string, fields Fields) error

	// Merge はトップレベルのフィールド単位でドキュメントを部分更新する。存在しない場合は作成する。
	Merge(ctx context.Context, collection, id string, fields Fields) error

	// Update はドキュメントを部分更新する。存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Delete はドキュメントを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, collection, id string) error

	// Add はストア生成IDでドキュメントを作成し、そのIDを返す。
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	// Query はコレクションを一括取得する。
	Query(ctx context.Context, collection string, q Query) ([]*Document, error)

	// Subscribe はコレクションのライブ購読を開始する。
	// 開始直後に初回スナップショットを、以降コミットされた変更ごとにスナップショットを通知する。
	// ctxがキャンセルされた場合も購読は解除される。
	Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Subscription, error)

	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error

	// Close はストアの接続を解放する。
	Close() error
}

// String はフィールドを文字列として返す。未設定または型が異なる場合は空文字列を返す。
func (d *Document) String(field string) string {
	if d == nil {
		return ""
	}
	s, _ := d.Fields[field].(string)
	return s
}

// Bool はフィールドを真偽値として返す。未設定または型が異なる場合はfalseを返す。
func (d *Document) Bool(field string) bool {
	if d == nil {
		return false
	}
	b, _ := d.Fields[field].(bool)
	return b
}

// Int64 はフィールドを整数として返す。数値でない場合は0を返す。
func (d *Document) Int64(field string) int64 {
	if d == nil {
		return 0
	}
	switch v := d.Fields[field].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

// Ref はフィールドを参照として返す。参照でない場合はfalseを返す。
func (d *Document) Ref(field string) (Ref, bool) {
	if d == nil {
		return Ref{}, false
	}
	r, ok := d.Fields[field].(Ref)
	if !ok || r.IsZero() {
		return Ref{}, false
	}
	return r, true
}

// Time はフィールドを時刻として返す。時刻でない場合はゼロ値を返す。
func (d *Document) Time(field string) time.Time {
	if d == nil {
		return time.Time{}
	}
	t, _ := d.Fields[field].(time.Time)
	return t
}

// Clone はフィールドのシャローコピーを返す。
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
