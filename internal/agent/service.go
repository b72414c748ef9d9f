// Package agent wires the decoded message stream to the reply engine:
// blacklist screening, seller takeover commands, manual-mode gating,
// item lookup, intent routing, reply generation and bargain tracking.
package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ktao87/goofish-agent/internal/conn"
	"github.com/ktao87/goofish-agent/internal/domain"
	"github.com/ktao87/goofish-agent/internal/intent"
	"github.com/ktao87/goofish-agent/internal/reply"
	"github.com/ktao87/goofish-agent/internal/session"
	"github.com/ktao87/goofish-agent/internal/store"
	"github.com/ktao87/goofish-agent/internal/wire"
)

// ItemSource fetches live item metadata when the store has no cache.
type ItemSource interface {
	ItemInfo(ctx context.Context, itemID string) (*domain.Item, error)
}

// Blacklist screens inbound message text.
type Blacklist interface {
	Match(text string) bool
}

// Replier generates one reply for a routed message.
type Replier interface {
	Generate(ctx context.Context, in reply.Input) (string, error)
}

// IntentRouter assigns an intent label to a message.
type IntentRouter interface {
	Route(ctx context.Context, userMsg, itemDesc, history string) intent.Label
}

// Config carries the pipeline's behavioral switches.
type Config struct {
	// OwnUserID is the seller account id; messages from it are control
	// commands or manual replies, never answered.
	OwnUserID string
	// ToggleKeywords are the comma-separated seller phrases that flip a
	// conversation between manual and automatic mode.
	ToggleKeywords string
	// EnableIntent turns rule/classifier routing on. When off every
	// message takes the default route with bargain count 0.
	EnableIntent bool
	// MaxUserTurns bounds the history window passed to the classifier.
	MaxUserTurns int
}

// Service is the per-message pipeline. It implements conn.Handler.
type Service struct {
	cfg       Config
	keywords  []string
	repo      store.Repository
	sessions  *session.Store
	items     ItemSource
	blacklist Blacklist
	router    IntentRouter
	replier   Replier
}

// NewService assembles the pipeline. blacklist and router may be nil;
// a nil router behaves like EnableIntent=false.
func NewService(cfg Config, repo store.Repository, sessions *session.Store, items ItemSource, bl Blacklist, router IntentRouter, replier Replier) *Service {
	var keywords []string
	for _, kw := range strings.Split(cfg.ToggleKeywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		keywords = []string{"。"}
	}
	if cfg.MaxUserTurns <= 0 {
		cfg.MaxUserTurns = reply.DefaultMaxUserTurns
	}
	return &Service{
		cfg:       cfg,
		keywords:  keywords,
		repo:      repo,
		sessions:  sessions,
		items:     items,
		blacklist: bl,
		router:    router,
		replier:   replier,
	}
}

// HandleChat runs one decoded chat message through the pipeline. It
// never returns an error to the connection layer; every failure is
// logged and the message dropped, keeping the read loop alive.
func (s *Service) HandleChat(ctx context.Context, chat *wire.ChatMessage, sender conn.Sender) {
	if s.blacklist != nil && s.blacklist.Match(chat.Text) {
		slog.Info("Message matched blacklist, ignored", "chat_id", chat.ChatID, "text", chat.Text)
		return
	}
	if chat.ItemID == "" {
		slog.Warn("Chat message without item id", "chat_id", chat.ChatID)
		return
	}

	if chat.SenderID == s.cfg.OwnUserID {
		s.handleSellerMessage(ctx, chat)
		return
	}

	slog.Info("Buyer message",
		"user", chat.SenderName, "user_id", chat.SenderID,
		"item_id", chat.ItemID, "chat_id", chat.ChatID, "text", chat.Text)

	if err := s.repo.AppendMessage(ctx, chat.ChatID, chat.SenderID, chat.ItemID, domain.RoleUser, chat.Text, ""); err != nil {
		slog.Error("Failed to record buyer message", "error", err, "chat_id", chat.ChatID)
	}

	if s.sessions.IsManual(chat.ChatID) {
		slog.Info("Conversation under manual takeover, skipping auto reply", "chat_id", chat.ChatID)
		return
	}
	if chat.NoPush {
		slog.Debug("No-push notice recorded without reply", "chat_id", chat.ChatID)
		return
	}

	item, err := s.lookupItem(ctx, chat.ItemID)
	if err != nil {
		slog.Warn("Failed to resolve item info", "error", err, "item_id", chat.ItemID)
		return
	}
	itemDesc := item.PromptDescription()

	history, err := s.repo.GetHistory(ctx, chat.ChatID)
	if err != nil {
		slog.Error("Failed to load history", "error", err, "chat_id", chat.ChatID)
		return
	}

	label, bargainCount := s.route(ctx, chat, itemDesc, history)

	text, err := s.replier.Generate(ctx, reply.Input{
		Intent:       label,
		UserMsg:      chat.Text,
		ItemDesc:     itemDesc,
		History:      history,
		BargainCount: bargainCount,
	})
	if err != nil {
		slog.Error("Reply generation failed", "error", err, "chat_id", chat.ChatID, "intent", string(label))
		return
	}
	if strings.TrimSpace(text) == "" {
		slog.Info("Empty reply from model, nothing sent", "chat_id", chat.ChatID)
		return
	}

	if label == intent.LabelPrice {
		count := s.sessions.IncrementBargain(chat.ChatID)
		if err := s.repo.IncrementBargainCount(ctx, chat.ChatID); err != nil {
			slog.Warn("Failed to persist bargain count", "error", err, "chat_id", chat.ChatID)
		}
		slog.Info("Bargain round", "chat_id", chat.ChatID, "item_id", chat.ItemID, "count", count)
	}

	if err := s.repo.AppendMessage(ctx, chat.ChatID, s.cfg.OwnUserID, chat.ItemID, domain.RoleAssistant, text, string(label)); err != nil {
		slog.Error("Failed to record reply", "error", err, "chat_id", chat.ChatID)
	}

	slog.Info("Agent reply", "chat_id", chat.ChatID, "intent", string(label), "text", text)
	if err := sender.SendChat(ctx, chat.ChatID, chat.SenderID, text); err != nil {
		slog.Error("Failed to send reply", "error", err, "chat_id", chat.ChatID)
	}
}

// handleSellerMessage processes messages the seller typed themselves:
// either a mode-toggle command or a manual reply worth recording.
func (s *Service) handleSellerMessage(ctx context.Context, chat *wire.ChatMessage) {
	if s.isToggleCommand(chat.Text) {
		mode := s.sessions.ToggleManual(chat.ChatID)
		if mode == session.ModeManual {
			slog.Info("Conversation taken over", "chat_id", chat.ChatID, "item_id", chat.ItemID)
		} else {
			slog.Info("Auto reply restored", "chat_id", chat.ChatID, "item_id", chat.ItemID)
		}
		return
	}

	if err := s.repo.AppendMessage(ctx, chat.ChatID, s.cfg.OwnUserID, chat.ItemID, domain.RoleAssistant, chat.Text, ""); err != nil {
		slog.Error("Failed to record seller reply", "error", err, "chat_id", chat.ChatID)
	}
	slog.Info("Seller manual reply recorded", "chat_id", chat.ChatID, "item_id", chat.ItemID, "text", chat.Text)
}

func (s *Service) isToggleCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, kw := range s.keywords {
		if trimmed == kw {
			return true
		}
	}
	return false
}

// lookupItem serves item metadata from the store, falling back to the
// live API and caching the result.
func (s *Service) lookupItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		slog.Warn("Item cache read failed", "error", err, "item_id", itemID)
	}
	if item != nil {
		return item, nil
	}

	slog.Info("Fetching item info from API", "item_id", itemID)
	item, err = s.items.ItemInfo(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveItem(ctx, item); err != nil {
		slog.Warn("Failed to cache item info", "error", err, "item_id", itemID)
	}
	return item, nil
}

// route picks the intent label and the bargain count fed to the reply
// engine. With intent routing off everything takes the default route.
func (s *Service) route(ctx context.Context, chat *wire.ChatMessage, itemDesc string, history []domain.Turn) (intent.Label, int) {
	if !s.cfg.EnableIntent || s.router == nil {
		return intent.LabelDefault, 0
	}

	label := s.router.Route(ctx, chat.Text, itemDesc, reply.FormatHistory(history, s.cfg.MaxUserTurns))

	// The in-memory bargain counter survives the conversation; seed it
	// once from the store so restarts keep the escalation level.
	if _, ok := s.sessions.BargainCount(chat.ChatID); !ok {
		stored, err := s.repo.GetBargainCount(ctx, chat.ChatID)
		if err != nil {
			slog.Warn("Failed to read bargain count", "error", err, "chat_id", chat.ChatID)
		}
		s.sessions.SeedBargain(chat.ChatID, stored)
	}
	count, _ := s.sessions.BargainCount(chat.ChatID)
	return label, count
}
