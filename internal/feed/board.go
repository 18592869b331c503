package feed

import (
	"context"
	"sync"

	"github.com/hitoshi/jobdash/internal/model"
)

// タブ名
const (
	TabJobs           = "Jobs"
	TabPDX            = "PDX"
	TabYC             = "YC"
	TabActiveApps     = "Active Apps"
	TabThoughtLeaders = "Thought Leaders"
)

var tabOrder = []string{TabJobs, TabPDX, TabYC, TabActiveApps, TabThoughtLeaders}

// FeedService はBoardが利用するフィード操作のインターフェース。
type FeedService interface {
	LoadFeed(ctx context.Context) ([]*model.Posting, error)
	Triage(ctx context.Context, posting *model.Posting, status model.TriageStatus) error
}

// Board はフィード画面が保持する求人一覧。
// 一覧はこのBoardだけが変更し、振り分けに成功した求人のみを取り除く。
type Board struct {
	svc FeedService

	mu       sync.Mutex
	postings []*model.Posting
}

// NewBoard は空のBoardを生成する。
func NewBoard(svc FeedService) *Board {
	return &Board{svc: svc, postings: []*model.Posting{}}
}

// Load はフィードを読み込み直して一覧を置き換える。失敗した場合は一覧を変更しない。
func (b *Board) Load(ctx context.Context) ([]*model.Posting, error) {
	postings, err := b.svc.LoadFeed(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.postings = postings
	b.mu.Unlock()

	return b.Jobs(), nil
}

// Jobs は現在の一覧のコピーを返す。
func (b *Board) Jobs() []*model.Posting {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*model.Posting, len(b.postings))
	copy(out, b.postings)
	return out
}

// Triage は一覧上の求人を振り分ける。成功した場合のみ一覧から取り除く。
// 失敗した場合は一覧に残し、再試行できるようにする。
func (b *Board) Triage(ctx context.Context, uuid string, status model.TriageStatus) error {
	if !status.IsValid() {
		return model.NewInvalidStatusError(string(status))
	}

	posting := b.find(uuid)
	if posting == nil {
		return model.NewPostingNotFoundError(uuid)
	}

	if err := b.svc.Triage(ctx, posting, status); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.postings[:0:0]
	for _, p := range b.postings {
		if p.UUID != uuid {
			kept = append(kept, p)
		}
	}
	b.postings = kept
	return nil
}

// Tabs はタブごとの件数を返す。Jobs以外のタブは現時点で常に0件。
func (b *Board) Tabs() []model.FeedTab {
	b.mu.Lock()
	jobs := len(b.postings)
	b.mu.Unlock()

	tabs := make([]model.FeedTab, 0, len(tabOrder))
	for _, name := range tabOrder {
		count := 0
		if name == TabJobs {
			count = jobs
		}
		tabs = append(tabs, model.FeedTab{Name: name, Count: count})
	}
	return tabs
}

func (b *Board) find(uuid string) *model.Posting {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.postings {
		if p.UUID == uuid {
			return p
		}
	}
	return nil
}
