package feed

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/repository"
)

// --- テスト用モック ---

type mockPostingRepo struct {
	listActiveFn   func(ctx context.Context) ([]*model.Posting, error)
	deleteActiveFn func(ctx context.Context, uuid string) error
	putArchivedFn  func(ctx context.Context, posting *model.Posting, status model.TriageStatus) error
	calls          []string
}

func (m *mockPostingRepo) ListActive(ctx context.Context) ([]*model.Posting, error) {
	m.calls = append(m.calls, "list")
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []*model.Posting{}, nil
}

func (m *mockPostingRepo) DeleteActive(ctx context.Context, uuid string) error {
	m.calls = append(m.calls, "delete:"+uuid)
	if m.deleteActiveFn != nil {
		return m.deleteActiveFn(ctx, uuid)
	}
	return nil
}

func (m *mockPostingRepo) PutArchived(ctx context.Context, posting *model.Posting, status model.TriageStatus) error {
	m.calls = append(m.calls, "archive:"+posting.UUID+":"+string(status))
	if m.putArchivedFn != nil {
		return m.putArchivedFn(ctx, posting, status)
	}
	return nil
}

type mockTriageRecorder struct {
	success, failure int
}

func (m *mockTriageRecorder) RecordTriage(_ string, success bool) {
	if success {
		m.success++
	} else {
		m.failure++
	}
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// --- Service テスト ---

// TestService_Triage_DeletesThenArchives は削除の後にアーカイブが書き込まれることを検証する。
func TestService_Triage_DeletesThenArchives(t *testing.T) {
	repo := &mockPostingRepo{}
	rec := &mockTriageRecorder{}
	svc := NewService(repo, rec, slog.Default())

	if err := svc.Triage(context.Background(), &model.Posting{UUID: "b"}, model.TriageStatusEngaged); err != nil {
		t.Fatalf("Triage returned error: %v", err)
	}

	want := []string{"delete:b", "archive:b:engaged"}
	if len(repo.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", repo.calls, want)
	}
	for i := range want {
		if repo.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, repo.calls[i], want[i])
		}
	}
	if rec.success != 1 || rec.failure != 0 {
		t.Errorf("recorder = %+v", rec)
	}
}

// TestService_Triage_InvalidStatus は無効なステータスで書き込みが行われないことを検証する。
func TestService_Triage_InvalidStatus(t *testing.T) {
	repo := &mockPostingRepo{}
	svc := NewService(repo, nil, nil)

	err := svc.Triage(context.Background(), &model.Posting{UUID: "b"}, "deleted")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidStatus {
		t.Fatalf("err = %v, want INVALID_STATUS", err)
	}
	if len(repo.calls) != 0 {
		t.Errorf("calls = %v, want none", repo.calls)
	}
}

// TestService_Triage_DeleteFails は削除失敗時にアーカイブを行わずエラーを返すことを検証する。
func TestService_Triage_DeleteFails(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockPostingRepo{
		deleteActiveFn: func(context.Context, string) error { return errors.New("unavailable") },
	}
	rec := &mockTriageRecorder{}
	svc := NewService(repo, rec, newTestLogger(&buf))

	if err := svc.Triage(context.Background(), &model.Posting{UUID: "b"}, model.TriageStatusArchived); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.calls) != 1 {
		t.Errorf("calls = %v, want delete only", repo.calls)
	}
	if !strings.Contains(buf.String(), "求人の削除に失敗しました") {
		t.Errorf("log should contain delete failure, got %s", buf.String())
	}
	if rec.failure != 1 {
		t.Errorf("failure = %d, want 1", rec.failure)
	}
}

// TestService_Triage_ArchiveFailsAfterDelete はアーカイブ失敗がログ出力されエラーになることを検証する。
func TestService_Triage_ArchiveFailsAfterDelete(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockPostingRepo{
		putArchivedFn: func(context.Context, *model.Posting, model.TriageStatus) error { return errors.New("write failed") },
	}
	svc := NewService(repo, nil, newTestLogger(&buf))

	if err := svc.Triage(context.Background(), &model.Posting{UUID: "b"}, model.TriageStatusArchived); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), `"uuid":"b"`) {
		t.Errorf("log should contain uuid, got %s", buf.String())
	}
}

func TestService_LoadFeed_Error(t *testing.T) {
	repo := &mockPostingRepo{
		listActiveFn: func(context.Context) ([]*model.Posting, error) { return nil, errors.New("down") },
	}
	if _, err := NewService(repo, nil, nil).LoadFeed(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- ドキュメントストアを使ったシナリオ ---

// TestScenario_LoadTriageReload は読み込み・振り分け・再読み込みの一連の流れを検証する。
func TestScenario_LoadTriageReload(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	_ = store.Set(ctx, repository.CollectionPostings, "a", docstore.Fields{"uuid": "a", "post_time": 100})
	_ = store.Set(ctx, repository.CollectionPostings, "b", docstore.Fields{"uuid": "b", "post_time": 200})

	svc := NewService(repository.NewDocstorePostingRepo(store), nil, nil)

	postings, err := svc.LoadFeed(ctx)
	if err != nil {
		t.Fatalf("LoadFeed returned error: %v", err)
	}
	if len(postings) != 2 || postings[0].UUID != "b" || postings[1].UUID != "a" {
		t.Fatalf("feed = %v, want [b a]", postings)
	}

	if err := svc.Triage(ctx, postings[0], model.TriageStatusEngaged); err != nil {
		t.Fatalf("Triage returned error: %v", err)
	}

	postings, _ = svc.LoadFeed(ctx)
	if len(postings) != 1 || postings[0].UUID != "a" {
		t.Fatalf("feed after triage = %v, want [a]", postings)
	}

	archived, _ := store.Get(ctx, repository.CollectionPostingsArchived, "b")
	if archived == nil {
		t.Fatal("archived document not found")
	}
	if archived.String("status") != "engaged" || archived.Int64("post_time") != 200 || archived.String("uuid") != "b" {
		t.Errorf("archived = %+v", archived.Fields)
	}
}

// TestScenario_LoadFeedOrderedNonIncreasing はpost_timeが非増加順で返ることを検証する。
func TestScenario_LoadFeedOrderedNonIncreasing(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	for i, pt := range []int{5, 300, 42, 300, 7, 0, 99} {
		id := string(rune('a' + i))
		_ = store.Set(ctx, repository.CollectionPostings, id, docstore.Fields{"uuid": id, "post_time": pt})
	}

	postings, err := NewService(repository.NewDocstorePostingRepo(store), nil, nil).LoadFeed(ctx)
	if err != nil {
		t.Fatalf("LoadFeed returned error: %v", err)
	}
	for i := 1; i < len(postings); i++ {
		if postings[i].PostTime > postings[i-1].PostTime {
			t.Errorf("post_time increased at %d: %d > %d", i, postings[i].PostTime, postings[i-1].PostTime)
		}
	}
}

// TestScenario_RetryAfterArchiveFailure はアーカイブ失敗後の再試行で復旧できることを検証する。
func TestScenario_RetryAfterArchiveFailure(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	_ = store.Set(ctx, repository.CollectionPostings, "b", docstore.Fields{"uuid": "b", "post_time": 200})

	svc := NewService(repository.NewDocstorePostingRepo(store), nil, nil)
	postings, _ := svc.LoadFeed(ctx)

	store.SetFault(func(op, collection, _ string) error {
		if op == "set" && collection == repository.CollectionPostingsArchived {
			return errors.New("write failed")
		}
		return nil
	})
	if err := svc.Triage(ctx, postings[0], model.TriageStatusArchived); err == nil {
		t.Fatal("expected archive failure")
	}

	store.SetFault(nil)
	if err := svc.Triage(ctx, postings[0], model.TriageStatusArchived); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	archived, _ := store.Get(ctx, repository.CollectionPostingsArchived, "b")
	if archived == nil || archived.String("status") != "archived" {
		t.Errorf("archived = %v", archived)
	}
}

func TestFormatPostTime(t *testing.T) {
	// 2024-03-04 15:05:00 UTC（月曜日）
	epoch := time.Date(2024, 3, 4, 15, 5, 0, 0, time.UTC).Unix()

	if got := FormatPostTime(epoch, nil); got != "Monday, 3/4/2024 @ 03:05 PM" {
		t.Errorf("FormatPostTime(UTC) = %q", got)
	}

	tokyo := time.FixedZone("JST", 9*3600)
	if got := FormatPostTime(epoch, tokyo); got != "Tuesday, 3/5/2024 @ 12:05 AM" {
		t.Errorf("FormatPostTime(JST) = %q", got)
	}

	if got := FormatPostTime(0, nil); got != "" {
		t.Errorf("FormatPostTime(0) = %q, want empty", got)
	}
}
