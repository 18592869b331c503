package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NotifyChannel はdocumentsテーブルのトリガーがpg_notifyで使うチャンネル名。
// ペイロードは変更されたコレクション名。
const NotifyChannel = "docstore_changes"

// PostgresConfig はPostgresStoreのLISTEN接続に関する設定。
type PostgresConfig struct {
	// DatabaseURL はpq.Listenerが専用接続を張るための接続URL。
	DatabaseURL string
	// MinReconnect はLISTEN接続が切れた際の再接続待ちの最小値。
	MinReconnect time.Duration
	// MaxReconnect はLISTEN接続が切れた際の再接続待ちの最大値。
	MaxReconnect time.Duration
}

// PostgresStore はPostgreSQLのJSONBテーブルを使用したStore実装。
// 購読はLISTEN/NOTIFYで変更を受け取り、都度クエリを再実行してスナップショットを通知する。
type PostgresStore struct {
	db     *sql.DB
	cfg    PostgresConfig
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB, cfg PostgresConfig, logger *slog.Logger) *PostgresStore {
	if cfg.MinReconnect <= 0 {
		cfg.MinReconnect = 10 * time.Second
	}
	if cfg.MaxReconnect < cfg.MinReconnect {
		cfg.MaxReconnect = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, cfg: cfg, logger: logger}
}

// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
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
func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := MarshalFields(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Merge はトップレベルのフィールドをマージする。存在しない場合は作成する。
func (s *PostgresStore) Merge(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := MarshalFields(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE
		 SET data = documents.data || EXCLUDED.data, updated_at = NOW()`,
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to merge document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update は既存ドキュメントを部分更新する。存在しない場合はErrNotFoundを返す。
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := MarshalFields(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// Delete はドキュメントを削除する。
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add はUUIDを採番してドキュメントを作成する。
func (s *PostgresStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	raw, err := MarshalFields(fields)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(raw),
	)
	if err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collection, err)
	}
	return id, nil
}

// Query はコレクションをフィルタ・ソートして返す。
func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	query, args, err := buildSelect(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document in %s: %w", collection, err)
		}
		fields, err := UnmarshalFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, &Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return docs, nil
}

// buildSelect はQueryをSQLに変換する。
// ソートはJSONBの比較規則に従い、フィールド欠落は最小値として扱う（降順なら末尾）。
func buildSelect(collection string, q Query) (string, []any, error) {
	b := sq.Select("id", "data").
		From("documents").
		Where(sq.Eq{"collection": collection}).
		PlaceholderFormat(sq.Dollar)

	for _, f := range q.Filters {
		raw, err := marshalValue(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("filter %q: %w", f.Field, err)
		}
		b = b.Where(sq.Expr("data -> ?::text = ?::jsonb", f.Field, string(raw)))
	}

	for _, o := range q.OrderBy {
		clause := "data -> ?::text ASC NULLS FIRST"
		if o.Direction == Desc {
			clause = "data -> ?::text DESC NULLS LAST"
		}
		b = b.OrderByClause(clause, o.Field)
	}
	b = b.OrderBy("id ASC")

	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	return b.ToSql()
}

// Subscribe はLISTEN/NOTIFYによるライブ購読を開始する。
// 購読ごとに専用のpq.Listenerを持ち、Cancelでクローズする。
// 再接続後は取りこぼしを考慮してスナップショットを再送する。
func (s *PostgresStore) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Subscription, error) {
	logger := s.logger.With(slog.String("collection", collection))

	listener := pq.NewListener(s.cfg.DatabaseURL, s.cfg.MinReconnect, s.cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("docstore listener event",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		},
	)
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	sub := newSubscription(func() {
		if err := listener.Close(); err != nil {
			logger.Warn("failed to close docstore listener", slog.String("error", err.Error()))
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

	go func() {
		deliver()
		ticker := time.NewTicker(90 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sub.done:
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// nilは再接続の合図
				if n == nil || n.Extra == collection {
					deliver()
				}
			case <-ticker.C:
				go listener.Ping()
			}
		}
	}()

	return sub, nil
}

// Ping はデータベースへの疎通を確認する。
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続をクローズする。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
