package docstore

import (
	"context"
	"sync"
)

// subscription は全バックエンド共通の購読ハンドル。
// コールバック呼び出しとキャンセルを同一ミューテックスで直列化し、
// Cancelの戻り後にコールバックが走らないことを保証する。
type subscription struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
	once      sync.Once
	release   func()
}

func newSubscription(release func()) *subscription {
	return &subscription{
		done:    make(chan struct{}),
		release: release,
	}
}

// deliver はキャンセルされていなければコールバックを呼び出す。
func (s *subscription) deliver(fn Listener, docs []*Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false
	}
	fn(docs)
	return true
}

// Cancel は購読を解除し、下位のリスナーを解放する。複数回呼び出しても安全。
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.cancelled = true
		s.mu.Unlock()
		close(s.done)
		if s.release != nil {
			s.release()
		}
	})
}

// watch はctxの終了で購読を解除する。
func (s *subscription) watch(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()
}
