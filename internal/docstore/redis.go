package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxMergeRetries は楽観ロック（WATCH）の競合時に再試行する回数の上限。
const maxMergeRetries = 5

// RedisStore はRedisを使用したStore実装。
//
// キー構成:
//
//	<prefix>:<collection>:doc:<id>  ドキュメント本体（JSON文字列）
//	<prefix>:<collection>:ids       ドキュメントIDの集合
//	<prefix>:<collection>:changes   変更通知用のPub/Subチャンネル
//
// フィルタ・ソートはプロセス内で行うため、大規模なコレクションには向かない。
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore はRedisStoreを生成する。prefixが空の場合は"docstore"を使う。
func NewRedisStore(rdb *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "docstore"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *RedisStore) docKey(collection, id string) string {
	return s.prefix + ":" + collection + ":doc:" + id
}

func (s *RedisStore) idsKey(collection string) string {
	return s.prefix + ":" + collection + ":ids"
}

func (s *RedisStore) changesChannel(collection string) string {
	return s.prefix + ":" + collection + ":changes"
}

// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (s *RedisStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	raw, err := s.rdb.Get(ctx, s.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	fields, err := UnmarshalFields(raw)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Fields: fields}, nil
}

// Set はドキュメントを全体上書きで書き込む。
func (s *RedisStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := MarshalFields(fields)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueWrite(ctx, pipe, collection, id, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Merge はトップレベルのフィールドをマージする。存在しない場合は作成する。
func (s *RedisStore) Merge(ctx context.Context, collection, id string, fields Fields) error {
	return s.readModifyWrite(ctx, collection, id, func(existing Fields, _ bool) (Fields, error) {
		for k, v := range fields {
			existing[k] = v
		}
		return existing, nil
	})
}

// Update は既存ドキュメントを部分更新する。存在しない場合はErrNotFoundを返す。
func (s *RedisStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	return s.readModifyWrite(ctx, collection, id, func(existing Fields, exists bool) (Fields, error) {
		if !exists {
			return nil, fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
		}
		for k, v := range fields {
			existing[k] = v
		}
		return existing, nil
	})
}

// Delete はドキュメントを削除する。
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(collection, id))
		pipe.SRem(ctx, s.idsKey(collection), id)
		pipe.Publish(ctx, s.changesChannel(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add はUUIDを採番してドキュメントを作成する。
func (s *RedisStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Query はID集合のドキュメントを一括取得し、プロセス内でフィルタ・ソートする。
func (s *RedisStore) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	ids, err := s.rdb.SMembers(ctx, s.idsKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return []*Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", collection, err)
	}

	docs := make([]*Document, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// ID集合に残っているが本体が消えている
			continue
		}
		fields, err := UnmarshalFields([]byte(str))
		if err != nil {
			return nil, err
		}
		docs = append(docs, &Document{ID: ids[i], Fields: fields})
	}
	return applyQuery(docs, q)
}

// Subscribe はPub/Subチャンネルで変更を受け取り、都度スナップショットを通知する。
func (s *RedisStore) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Subscription, error) {
	logger := s.logger.With(slog.String("collection", collection))

	pubsub := s.rdb.Subscribe(context.Background(), s.changesChannel(collection))
	// 購読の確立を待つ
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe %s: %w", collection, err)
	}

	sub := newSubscription(func() {
		if err := pubsub.Close(); err != nil {
			logger.Warn("failed to close redis pubsub", slog.String("error", err.Error()))
		}
	})
	sub.watch(ctx)

	deliver := func() {
		docs, err := s.Query(context.Background(), collection, q)
		if err != nil {
			logger.Error("failed to refresh subscription snapshot", slog.String("error", err.Error()))
			return
		}
		sub.deliver(fn, docs)
	}

	messages := pubsub.Channel()
	go func() {
		deliver()
		for {
			select {
			case <-sub.done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return sub, nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close はRedisクライアントをクローズする。
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) queueWrite(ctx context.Context, pipe redis.Pipeliner, collection, id string, raw []byte) {
	pipe.Set(ctx, s.docKey(collection, id), raw, 0)
	pipe.SAdd(ctx, s.idsKey(collection), id)
	pipe.Publish(ctx, s.changesChannel(collection), id)
}

// readModifyWrite はWATCHによる楽観ロックでドキュメントを更新する。
func (s *RedisStore) readModifyWrite(ctx context.Context, collection, id string, fn func(existing Fields, exists bool) (Fields, error)) error {
	key := s.docKey(collection, id)

	txf := func(tx *redis.Tx) error {
		existing := Fields{}
		exists := true
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			decoded, err := UnmarshalFields(raw)
			if err != nil {
				return err
			}
			existing = decoded
		}

		next, err := fn(existing, exists)
		if err != nil {
			return err
		}
		encoded, err := MarshalFields(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queueWrite(ctx, pipe, collection, id, encoded)
			return nil
		})
		return err
	}

	for i := 0; i < maxMergeRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("failed to write document %s/%s: %w", collection, id, err)
		}
		return nil
	}
	return fmt.Errorf("failed to write document %s/%s: too many concurrent modifications", collection, id)
}
