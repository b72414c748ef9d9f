// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ktao87/goofish-agent/internal/domain"
)

// Repository persists conversations, messages, and item metadata.
type Repository interface {
	// AppendMessage records one turn in a conversation, creating the
	// conversation on first use and trimming history past the cap.
	AppendMessage(ctx context.Context, chatID, userID, itemID, role, content, intent string) error

	// GetHistory returns a conversation's turns, oldest first, capped at
	// the configured history limit.
	GetHistory(ctx context.Context, chatID string) ([]domain.Turn, error)

	// GetBargainCount returns the stored bargain round counter for a
	// conversation; zero when the conversation is unknown.
	GetBargainCount(ctx context.Context, chatID string) (int, error)

	// IncrementBargainCount bumps the stored bargain round counter.
	IncrementBargainCount(ctx context.Context, chatID string) error

	// GetItem retrieves cached item metadata; nil when not cached.
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)

	// SaveItem caches item metadata fetched from the item-info API.
	SaveItem(ctx context.Context, item *domain.Item) error

	// ListItems lists cached items, most recently updated first.
	ListItems(ctx context.Context, limit int) ([]*domain.Item, error)

	// RecentConversations lists conversations by last activity.
	RecentConversations(ctx context.Context, limit int) ([]*domain.ConversationSummary, error)

	// Stats aggregates store-wide counters for the admin dashboard.
	Stats(ctx context.Context) (*domain.Stats, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
