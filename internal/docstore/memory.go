package docstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// FaultFunc はMemoryStoreの操作ごとに呼ばれる障害注入フック。
// nil以外を返すと、その操作は書き込みを行わずにエラーで終了する。
type FaultFunc func(op, collection, id string) error

// ErrClosed はクローズ済みのストアを操作した場合に返される。
var ErrClosed = errors.New("docstore: store is closed")

// MemoryStore はプロセス内で完結するStore実装。
// テストとローカル開発用で、保存値は他バックエンドと同じ表現に正規化される。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	closed      bool
	fault       FaultFunc

	listenerMu sync.Mutex
	listeners  map[string]map[*memoryListener]struct{}
}

type memoryListener struct {
	sub    *subscription
	signal chan struct{}
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
		listeners:   make(map[string]map[*memoryListener]struct{}),
	}
}

// SetFault は障害注入フックを設定する。nilで解除。
func (s *MemoryStore) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *MemoryStore) check(ctx context.Context, op, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	if s.fault != nil {
		return s.fault(op, collection, id)
	}
	return nil
}

// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx, "get", collection, id); err != nil {
		return nil, err
	}
	raw, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	fields, err := UnmarshalFields(raw)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Fields: fields}, nil
}

// Set はドキュメントを全体上書きで書き込む。
func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	return s.write(ctx, "set", collection, id, func(_ Fields, _ bool) (Fields, error) {
		return fields, nil
	})
}

// Merge はトップレベルのフィールドをマージする。存在しない場合は作成する。
func (s *MemoryStore) Merge(ctx context.Context, collection, id string, fields Fields) error {
	return s.write(ctx, "merge", collection, id, func(existing Fields, _ bool) (Fields, error) {
		merged := existing.Clone()
		for k, v := range fields {
			merged[k] = v
		}
		return merged, nil
	})
}

// Update は既存ドキュメントを部分更新する。存在しない場合はErrNotFoundを返す。
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	return s.write(ctx, "update", collection, id, func(existing Fields, exists bool) (Fields, error) {
		if !exists {
			return nil, ErrNotFound
		}
		merged := existing.Clone()
		for k, v := range fields {
			merged[k] = v
		}
		return merged, nil
	})
}

// Delete はドキュメントを削除する。
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if err := s.check(ctx, "delete", collection, id); err != nil {
		s.mu.Unlock()
		return err
	}
	_, existed := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if existed {
		s.notify(collection)
	}
	return nil
}

// Add はUUIDを採番してドキュメントを作成する。
func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.New().String()
	if err := s.write(ctx, "add", collection, id, func(_ Fields, _ bool) (Fields, error) {
		return fields, nil
	}); err != nil {
		return "", err
	}
	return id, nil
}

// Query はコレクションをフィルタ・ソートして返す。
func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	s.mu.RLock()
	if err := s.check(ctx, "query", collection, ""); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	docs := make([]*Document, 0, len(s.collections[collection]))
	for id, raw := range s.collections[collection] {
		fields, err := UnmarshalFields(raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		docs = append(docs, &Document{ID: id, Fields: fields})
	}
	s.mu.RUnlock()

	return applyQuery(docs, q)
}

// Subscribe はコレクションのライブ購読を開始する。
// 通知は購読ごとのgoroutineから行い、連続した変更は最新スナップショット1回にまとめられることがある。
func (s *MemoryStore) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Subscription, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	ml := &memoryListener{signal: make(chan struct{}, 1)}
	ml.sub = newSubscription(func() {
		s.listenerMu.Lock()
		delete(s.listeners[collection], ml)
		s.listenerMu.Unlock()
	})

	s.listenerMu.Lock()
	if s.listeners[collection] == nil {
		s.listeners[collection] = make(map[*memoryListener]struct{})
	}
	s.listeners[collection][ml] = struct{}{}
	s.listenerMu.Unlock()

	ml.signal <- struct{}{}
	ml.sub.watch(ctx)

	go func() {
		for {
			select {
			case <-ml.sub.done:
				return
			case <-ml.signal:
				docs, err := s.Query(context.Background(), collection, q)
				if err != nil {
					continue
				}
				ml.sub.deliver(fn, docs)
			}
		}
	}()

	return ml.sub, nil
}

// Ping はストアがクローズされていなければnilを返す。
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close はストアをクローズし、全購読を解除する。
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.listenerMu.Lock()
	var subs []*subscription
	for _, set := range s.listeners {
		for ml := range set {
			subs = append(subs, ml.sub)
		}
	}
	s.listenerMu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	return nil
}

func (s *MemoryStore) write(ctx context.Context, op, collection, id string, fn func(existing Fields, exists bool) (Fields, error)) error {
	s.mu.Lock()
	if err := s.check(ctx, op, collection, id); err != nil {
		s.mu.Unlock()
		return err
	}

	existing := Fields{}
	raw, exists := s.collections[collection][id]
	if exists {
		decoded, err := UnmarshalFields(raw)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		existing = decoded
	}

	next, err := fn(existing, exists)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	encoded, err := MarshalFields(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][id] = encoded
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

// notify はコレクションの購読者へ変更を通知する。通知済みで未処理の購読者には重ねて送らない。
func (s *MemoryStore) notify(collection string) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for ml := range s.listeners[collection] {
		select {
		case ml.signal <- struct{}{}:
		default:
		}
	}
}
