// Package admin provides the REST administration API: store-backed
// dashboards plus the manual-takeover switch for live conversations.
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ktao87/goofish-agent/internal/middleware"
	"github.com/ktao87/goofish-agent/internal/session"
	"github.com/ktao87/goofish-agent/internal/store"
)

// Handler serves the admin endpoints.
type Handler struct {
	repo     store.Repository
	sessions *session.Store
}

// NewHandler creates a Handler over the store and the live session state.
func NewHandler(repo store.Repository, sessions *session.Store) *Handler {
	return &Handler{repo: repo, sessions: sessions}
}

// Router builds the admin HTTP router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	r.Get("/api/health", h.health)
	r.Get("/api/stats", h.stats)
	r.Get("/api/conversations", h.conversations)
	r.Get("/api/conversations/{chatID}/messages", h.messages)
	r.Post("/api/conversations/{chatID}/takeover", h.takeover)
	r.Get("/api/items", h.items)

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"total_conversations": stats.TotalConversations,
		"total_messages":      stats.TotalMessages,
		"total_items":         stats.TotalItems,
		"total_bargains":      stats.TotalBargains,
	})
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	convs, err := h.repo.RecentConversations(r.Context(), limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to query conversations")
		return
	}

	out := make([]map[string]any, 0, len(convs))
	for _, c := range convs {
		out = append(out, map[string]any{
			"chat_id":       c.ChatID,
			"user_id":       c.UserID,
			"item_id":       c.ItemID,
			"bargain_count": c.BargainCount,
			"started_at":    c.StartedAt.Unix(),
			"last_update":   c.LastUpdate.Unix(),
			"manual_mode":   h.sessions.IsManual(c.ChatID),
		})
	}
	JSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if chatID == "" {
		Error(w, http.StatusBadRequest, "missing chat id")
		return
	}

	turns, err := h.repo.GetHistory(r.Context(), chatID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to query messages")
		return
	}

	out := make([]map[string]any, 0, len(turns))
	for _, t := range turns {
		out = append(out, map[string]any{
			"role":      t.Role,
			"content":   t.Content,
			"intent":    t.Intent,
			"timestamp": t.Timestamp.Unix(),
		})
	}
	JSON(w, http.StatusOK, map[string]any{"chat_id": chatID, "messages": out})
}

// takeoverRequest optionally forces a mode instead of toggling.
type takeoverRequest struct {
	Manual *bool `json:"manual"`
}

func (h *Handler) takeover(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if chatID == "" {
		Error(w, http.StatusBadRequest, "missing chat id")
		return
	}

	var req takeoverRequest
	if r.Body != nil {
		// An empty or absent body means plain toggle.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var mode string
	if req.Manual != nil {
		h.sessions.SetManual(chatID, *req.Manual)
		mode = session.ModeAuto
		if *req.Manual {
			mode = session.ModeManual
		}
	} else {
		mode = h.sessions.ToggleManual(chatID)
	}
	JSON(w, http.StatusOK, map[string]string{"chat_id": chatID, "mode": mode})
}

func (h *Handler) items(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	items, err := h.repo.ListItems(r.Context(), limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to query items")
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{
			"item_id":      it.ItemID,
			"description":  it.Description,
			"price":        it.SoldPrice,
			"last_updated": it.LastUpdated.Unix(),
		})
	}
	JSON(w, http.StatusOK, map[string]any{"items": out})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
