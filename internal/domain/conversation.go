// Package domain contains core domain types for the marketplace agent.
package domain

import (
	"time"
)

// Turn roles as stored in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is a single entry in a conversation's history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSummary describes one buyer conversation for listing views.
type ConversationSummary struct {
	ChatID       string    `json:"chat_id"`
	UserID       string    `json:"user_id"`
	ItemID       string    `json:"item_id"`
	BargainCount int       `json:"bargain_count"`
	StartedAt    time.Time `json:"started_at"`
	LastUpdate   time.Time `json:"last_update"`
}

// Stats aggregates store-wide counters for the admin dashboard.
type Stats struct {
	TotalConversations int `json:"total_conversations"`
	TotalMessages      int `json:"total_messages"`
	TotalItems         int `json:"total_items"`
	TotalBargains      int `json:"total_bargains"`
}
