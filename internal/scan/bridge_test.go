package scan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/jobdash/internal/docstore"
	"github.com/hitoshi/jobdash/internal/model"
	"github.com/hitoshi/jobdash/internal/repository"
	"github.com/hitoshi/jobdash/internal/security"
)

// --- テスト用モック ---

type mockScanRepo struct {
	findFn  func(ctx context.Context, jobID string) (string, bool, error)
	queries []string
}

func (m *mockScanRepo) FindHTMLByJobID(ctx context.Context, jobID string) (string, bool, error) {
	m.queries = append(m.queries, jobID)
	if m.findFn != nil {
		return m.findFn(ctx, jobID)
	}
	return "", false, nil
}

type mockTarget struct {
	activeID string
	overlaid map[string]string
	refuse   bool
}

func (m *mockTarget) ActiveID() string { return m.activeID }

func (m *mockTarget) OverlayHTML(id, html string) bool {
	if m.refuse || id != m.activeID {
		return false
	}
	if m.overlaid == nil {
		m.overlaid = map[string]string{}
	}
	m.overlaid[id] = html
	return true
}

func TestImport_OverlaysSanitizedHTML(t *testing.T) {
	repo := &mockScanRepo{
		findFn: func(_ context.Context, jobID string) (string, bool, error) {
			return `<p>Role</p><script>alert(1)</script>`, true, nil
		},
	}
	b := NewBridge(repo, security.NewJDSanitizer(), nil)
	target := &mockTarget{activeID: "r1"}

	res, err := b.Import(context.Background(), target)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if !res.Found || !res.Applied {
		t.Errorf("result = %+v", res)
	}
	got := target.overlaid["r1"]
	if got != "<p>Role</p>" {
		t.Errorf("overlaid = %q, want <p>Role</p>", got)
	}
	if len(repo.queries) != 1 || repo.queries[0] != "r1" {
		t.Errorf("queries = %v", repo.queries)
	}
}

func TestImport_NoMatchIsNoop(t *testing.T) {
	b := NewBridge(&mockScanRepo{}, security.NewJDSanitizer(), nil)
	target := &mockTarget{activeID: "r1"}

	res, err := b.Import(context.Background(), target)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.Found || res.Applied || len(target.overlaid) != 0 {
		t.Errorf("一致なしで反映された: %+v", res)
	}
}

func TestImport_NoActiveRecord(t *testing.T) {
	repo := &mockScanRepo{}
	b := NewBridge(repo, security.NewJDSanitizer(), nil)

	_, err := b.Import(context.Background(), &mockTarget{})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNoActiveRecord {
		t.Fatalf("err = %v, want NO_ACTIVE_RECORD", err)
	}
	if len(repo.queries) != 0 {
		t.Error("未選択で検索が実行された")
	}
}

func TestImport_SelectionChanged(t *testing.T) {
	repo := &mockScanRepo{
		findFn: func(context.Context, string) (string, bool, error) { return "<p>x</p>", true, nil },
	}
	b := NewBridge(repo, security.NewJDSanitizer(), nil)

	res, err := b.Import(context.Background(), &mockTarget{activeID: "r1", refuse: true})
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if !res.Found || res.Applied {
		t.Errorf("result = %+v, want found but not applied", res)
	}
}

func TestFetch_StoreError(t *testing.T) {
	repo := &mockScanRepo{
		findFn: func(context.Context, string) (string, bool, error) { return "", false, errors.New("down") },
	}
	b := NewBridge(repo, security.NewJDSanitizer(), nil)

	if _, _, err := b.Fetch(context.Background(), "r1"); err == nil {
		t.Fatal("Fetch returned nil error")
	}
}

// TestImport_MemoryStore は複数一致時にいずれか1件が取り込まれることを検証する。
func TestImport_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	for id, html := range map[string]string{
		"s1": "<p>first</p>",
		"s2": "<p>second</p>",
		"s3": "<p>other</p>",
	} {
		jobID := "r1"
		if id == "s3" {
			jobID = "r2"
		}
		if err := store.Set(ctx, repository.CollectionScanHTML, id, docstore.Fields{"job-id": jobID, "html": html}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	b := NewBridge(repository.NewDocstoreScanRepo(store), security.NewJDSanitizer(), nil)
	target := &mockTarget{activeID: "r1"}
	if _, err := b.Import(ctx, target); err != nil {
		t.Fatalf("Import returned error: %v", err)
	}

	got := target.overlaid["r1"]
	if got != "<p>first</p>" && got != "<p>second</p>" {
		t.Errorf("overlaid = %q, want one of the r1 scans", got)
	}
	if strings.Contains(got, "other") {
		t.Error("別レコードのスキャン結果が取り込まれた")
	}
}
