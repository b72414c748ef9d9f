package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ktao87/goofish-agent/internal/domain"
)

func newTestStore(t *testing.T, maxHistory int) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), maxHistory)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAppendAndGetHistory(t *testing.T) {
	repo := newTestStore(t, 100)
	ctx := context.Background()

	msgs := []struct{ role, content string }{
		{domain.RoleUser, "在吗"},
		{domain.RoleAssistant, "在的，亲"},
		{domain.RoleUser, "能便宜点吗"},
	}
	for _, m := range msgs {
		if err := repo.AppendMessage(ctx, "c1", "buyer42", "item9", m.role, m.content, ""); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	turns, err := repo.GetHistory(ctx, "c1")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("history length = %d, want 3", len(turns))
	}
	for i, m := range msgs {
		if turns[i].Role != m.role || turns[i].Content != m.content {
			t.Errorf("turn %d = %s/%q, want %s/%q", i, turns[i].Role, turns[i].Content, m.role, m.content)
		}
	}
}

func TestHistoryTrimmedToCap(t *testing.T) {
	repo := newTestStore(t, 4)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		content := string(rune('a' + i))
		if err := repo.AppendMessage(ctx, "c1", "u", "i", domain.RoleUser, content, ""); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	turns, err := repo.GetHistory(ctx, "c1")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("history length = %d, want 4", len(turns))
	}
	// The newest turns survive.
	if turns[0].Content != "g" || turns[3].Content != "j" {
		t.Errorf("kept wrong turns: %q..%q", turns[0].Content, turns[3].Content)
	}
}

func TestBargainCount(t *testing.T) {
	repo := newTestStore(t, 100)
	ctx := context.Background()

	// Unknown conversation reads as zero.
	if n, err := repo.GetBargainCount(ctx, "nope"); err != nil || n != 0 {
		t.Fatalf("GetBargainCount(unknown) = %d, %v", n, err)
	}

	// Incrementing an unknown conversation is an error, not a silent no-op.
	if err := repo.IncrementBargainCount(ctx, "nope"); err == nil {
		t.Fatal("IncrementBargainCount(unknown) succeeded")
	}

	if err := repo.AppendMessage(ctx, "c1", "u", "i", domain.RoleUser, "价", ""); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := repo.IncrementBargainCount(ctx, "c1"); err != nil {
			t.Fatalf("IncrementBargainCount: %v", err)
		}
	}
	if n, _ := repo.GetBargainCount(ctx, "c1"); n != 3 {
		t.Errorf("bargain count = %d, want 3", n)
	}
}

func TestItemRoundTrip(t *testing.T) {
	repo := newTestStore(t, 100)
	ctx := context.Background()

	if item, err := repo.GetItem(ctx, "missing"); err != nil || item != nil {
		t.Fatalf("GetItem(missing) = %v, %v; want nil, nil", item, err)
	}

	in := &domain.Item{
		ItemID:      "item9",
		Description: "95新 iPhone 13",
		SoldPrice:   "2999",
		Raw:         `{"desc":"95新 iPhone 13","soldPrice":"2999"}`,
	}
	if err := repo.SaveItem(ctx, in); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	got, err := repo.GetItem(ctx, "item9")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Description != in.Description || got.SoldPrice != "2999" {
		t.Errorf("GetItem = %+v", got)
	}

	// Overwrite updates in place.
	in.SoldPrice = "2888"
	if err := repo.SaveItem(ctx, in); err != nil {
		t.Fatalf("SaveItem(update): %v", err)
	}
	got, _ = repo.GetItem(ctx, "item9")
	if got.SoldPrice != "2888" {
		t.Errorf("price after update = %q, want 2888", got.SoldPrice)
	}
}

func TestListItems(t *testing.T) {
	repo := newTestStore(t, 100)
	ctx := context.Background()

	items, err := repo.ListItems(ctx, 10)
	if err != nil || len(items) != 0 {
		t.Fatalf("ListItems(empty) = %v, %v", items, err)
	}

	for _, id := range []string{"a1", "a2", "a3"} {
		if err := repo.SaveItem(ctx, &domain.Item{ItemID: id, Description: "物品" + id, SoldPrice: "10"}); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}

	items, err = repo.ListItems(ctx, 2)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want limit 2", len(items))
	}
	if items[0].Description == "" || items[0].SoldPrice != "10" {
		t.Errorf("item = %+v", items[0])
	}
}

func TestRecentConversationsAndStats(t *testing.T) {
	repo := newTestStore(t, 100)
	ctx := context.Background()

	for _, chat := range []string{"c1", "c2"} {
		if err := repo.AppendMessage(ctx, chat, "u-"+chat, "i-"+chat, domain.RoleUser, "hello", ""); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	if err := repo.IncrementBargainCount(ctx, "c2"); err != nil {
		t.Fatalf("IncrementBargainCount: %v", err)
	}

	convos, err := repo.RecentConversations(ctx, 10)
	if err != nil {
		t.Fatalf("RecentConversations: %v", err)
	}
	if len(convos) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convos))
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConversations != 2 || stats.TotalMessages != 2 || stats.TotalBargains != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}
