package docstore

import (
	"context"
	"time"
)

// Observer はストア操作の計測結果を受け取る。
type Observer interface {
	ObserveStoreOp(op, collection string, duration time.Duration, err error)
}

// Instrumented は各操作の所要時間とエラーをObserverへ報告するStoreのデコレータ。
type Instrumented struct {
	Store
	obs Observer
}

var _ Store = (*Instrumented)(nil)

// NewInstrumented はstoreをObserver付きでラップする。obsがnilの場合はstoreをそのまま返す。
func NewInstrumented(store Store, obs Observer) Store {
	if obs == nil {
		return store
	}
	return &Instrumented{Store: store, obs: obs}
}

func (s *Instrumented) observe(op, collection string, start time.Time, err error) {
	s.obs.ObserveStoreOp(op, collection, time.Since(start), err)
}

func (s *Instrumented) Get(ctx context.Context, collection, id string) (*Document, error) {
	start := time.Now()
	doc, err := s.Store.Get(ctx, collection, id)
	s.observe("get", collection, start, err)
	return doc, err
}

func (s *Instrumented) Set(ctx context.Context, collection, id string, fields Fields) error {
	start := time.Now()
	err := s.Store.Set(ctx, collection, id, fields)
	s.observe("set", collection, start, err)
	return err
}

func (s *Instrumented) Merge(ctx context.Context, collection, id string, fields Fields) error {
	start := time.Now()
	err := s.Store.Merge(ctx, collection, id, fields)
	s.observe("merge", collection, start, err)
	return err
}

func (s *Instrumented) Update(ctx context.Context, collection, id string, fields Fields) error {
	start := time.Now()
	err := s.Store.Update(ctx, collection, id, fields)
	s.observe("update", collection, start, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, collection, id)
	s.observe("delete", collection, start, err)
	return err
}

func (s *Instrumented) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	start := time.Now()
	id, err := s.Store.Add(ctx, collection, fields)
	s.observe("add", collection, start, err)
	return id, err
}

func (s *Instrumented) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	start := time.Now()
	docs, err := s.Store.Query(ctx, collection, q)
	s.observe("query", collection, start, err)
	return docs, err
}

// Subscribe は購読開始の成否のみを計測する。通知ごとの再クエリは各バックエンド内部で行われる。
func (s *Instrumented) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Subscription, error) {
	start := time.Now()
	sub, err := s.Store.Subscribe(ctx, collection, q, fn)
	s.observe("subscribe", collection, start, err)
	return sub, err
}
