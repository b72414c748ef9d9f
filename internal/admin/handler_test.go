package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ktao87/goofish-agent/internal/domain"
	"github.com/ktao87/goofish-agent/internal/session"
)

type stubRepo struct {
	stats    *domain.Stats
	convs    []*domain.ConversationSummary
	turns    map[string][]domain.Turn
	items    []*domain.Item
	pingErr  error
	statsErr error
}

func (s *stubRepo) AppendMessage(ctx context.Context, chatID, userID, itemID, role, content, intent string) error {
	return nil
}
func (s *stubRepo) GetHistory(ctx context.Context, chatID string) ([]domain.Turn, error) {
	return s.turns[chatID], nil
}
func (s *stubRepo) GetBargainCount(ctx context.Context, chatID string) (int, error) { return 0, nil }
func (s *stubRepo) IncrementBargainCount(ctx context.Context, chatID string) error  { return nil }
func (s *stubRepo) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	return nil, nil
}
func (s *stubRepo) SaveItem(ctx context.Context, item *domain.Item) error { return nil }
func (s *stubRepo) ListItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	return s.items, nil
}
func (s *stubRepo) RecentConversations(ctx context.Context, limit int) ([]*domain.ConversationSummary, error) {
	return s.convs, nil
}
func (s *stubRepo) Stats(ctx context.Context) (*domain.Stats, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return s.stats, nil
}
func (s *stubRepo) Ping(ctx context.Context) error { return s.pingErr }
func (s *stubRepo) Close() error                   { return nil }

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
		}
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	h := NewHandler(&stubRepo{}, session.NewStore(time.Hour)).Router()
	w, body := doRequest(t, h, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", w.Code, body)
	}
}

func TestHealthStoreDown(t *testing.T) {
	h := NewHandler(&stubRepo{pingErr: errors.New("locked")}, session.NewStore(time.Hour)).Router()
	w, _ := doRequest(t, h, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	repo := &stubRepo{stats: &domain.Stats{TotalConversations: 3, TotalMessages: 40, TotalItems: 2, TotalBargains: 7}}
	h := NewHandler(repo, session.NewStore(time.Hour)).Router()
	w, body := doRequest(t, h, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["total_conversations"] != float64(3) || body["total_bargains"] != float64(7) {
		t.Fatalf("stats = %v", body)
	}
}

func TestConversationsIncludeManualFlag(t *testing.T) {
	repo := &stubRepo{convs: []*domain.ConversationSummary{
		{ChatID: "chat1", UserID: "u1", ItemID: "i1", BargainCount: 2},
		{ChatID: "chat2", UserID: "u2", ItemID: "i2"},
	}}
	sessions := session.NewStore(time.Hour)
	sessions.SetManual("chat2", true)

	h := NewHandler(repo, sessions).Router()
	w, body := doRequest(t, h, http.MethodGet, "/api/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	convs := body["conversations"].([]any)
	if len(convs) != 2 {
		t.Fatalf("conversations = %v", convs)
	}
	first := convs[0].(map[string]any)
	second := convs[1].(map[string]any)
	if first["manual_mode"] != false || second["manual_mode"] != true {
		t.Fatalf("manual flags = %v / %v", first["manual_mode"], second["manual_mode"])
	}
}

func TestMessages(t *testing.T) {
	repo := &stubRepo{turns: map[string][]domain.Turn{
		"chat1": {
			{Role: domain.RoleUser, Content: "在吗", Timestamp: time.Unix(100, 0)},
			{Role: domain.RoleAssistant, Content: "在的", Intent: "default", Timestamp: time.Unix(101, 0)},
		},
	}}
	h := NewHandler(repo, session.NewStore(time.Hour)).Router()
	w, body := doRequest(t, h, http.MethodGet, "/api/conversations/chat1/messages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	msgs := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", msgs)
	}
	second := msgs[1].(map[string]any)
	if second["role"] != domain.RoleAssistant || second["intent"] != "default" {
		t.Fatalf("message = %v", second)
	}
}

func TestTakeoverToggle(t *testing.T) {
	sessions := session.NewStore(time.Hour)
	h := NewHandler(&stubRepo{}, sessions).Router()

	w, body := doRequest(t, h, http.MethodPost, "/api/conversations/chat1/takeover", "")
	if w.Code != http.StatusOK || body["mode"] != session.ModeManual {
		t.Fatalf("first toggle = %d %v", w.Code, body)
	}
	if !sessions.IsManual("chat1") {
		t.Fatal("session not manual after toggle")
	}

	_, body = doRequest(t, h, http.MethodPost, "/api/conversations/chat1/takeover", "")
	if body["mode"] != session.ModeAuto {
		t.Fatalf("second toggle = %v", body)
	}
}

func TestTakeoverExplicitMode(t *testing.T) {
	sessions := session.NewStore(time.Hour)
	h := NewHandler(&stubRepo{}, sessions).Router()

	_, body := doRequest(t, h, http.MethodPost, "/api/conversations/chat1/takeover", `{"manual": true}`)
	if body["mode"] != session.ModeManual || !sessions.IsManual("chat1") {
		t.Fatalf("explicit manual = %v", body)
	}

	// Forcing manual again is idempotent.
	_, body = doRequest(t, h, http.MethodPost, "/api/conversations/chat1/takeover", `{"manual": true}`)
	if body["mode"] != session.ModeManual || !sessions.IsManual("chat1") {
		t.Fatalf("repeated manual = %v", body)
	}

	_, body = doRequest(t, h, http.MethodPost, "/api/conversations/chat1/takeover", `{"manual": false}`)
	if body["mode"] != session.ModeAuto || sessions.IsManual("chat1") {
		t.Fatalf("explicit auto = %v", body)
	}
}

func TestItems(t *testing.T) {
	repo := &stubRepo{items: []*domain.Item{
		{ItemID: "i1", Description: "键盘", SoldPrice: "120", LastUpdated: time.Unix(500, 0)},
	}}
	h := NewHandler(repo, session.NewStore(time.Hour)).Router()
	w, body := doRequest(t, h, http.MethodGet, "/api/items", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	items := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
	item := items[0].(map[string]any)
	if item["item_id"] != "i1" || item["price"] != "120" {
		t.Fatalf("item = %v", item)
	}
}
