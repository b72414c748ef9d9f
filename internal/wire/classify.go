package wire

import (
	"strconv"
	"strings"
	"time"
)

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asMillis reads a millisecond timestamp that may arrive as an integer,
// a float, or a decimal string.
func asMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		ms, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return ms, true
	default:
		return 0, false
	}
}

// probeOrderStatus matches trade-state notifications: field "3" is an
// object whose "redReminder" is one of the known state strings, and
// field "1" carries the scoped user id.
func probeOrderStatus(root map[string]any) (*OrderStatus, bool) {
	three, ok := asMap(root["3"])
	if !ok {
		return nil, false
	}
	reminder, ok := asString(three["redReminder"])
	if !ok {
		return nil, false
	}
	kind := OrderStatusKind(reminder)
	switch kind {
	case OrderWaitingPayment, OrderClosed, OrderWaitingShipment:
	default:
		return nil, false
	}
	scoped, _ := asString(root["1"])
	return &OrderStatus{Kind: kind, UserID: ChatID(scoped)}, true
}

// probeTyping matches typing indicators: field "1" is a non-empty array
// whose first element holds a scoped identifier string.
func probeTyping(root map[string]any) bool {
	arr, ok := root["1"].([]any)
	if !ok || len(arr) == 0 {
		return false
	}
	first, ok := asMap(arr[0])
	if !ok {
		return false
	}
	scoped, ok := asString(first["1"])
	return ok && strings.Contains(scoped, "@goofish")
}

// probeChat matches chat messages: a "1" object with a "10" object that
// carries reminderContent.
func probeChat(root map[string]any) (*ChatMessage, bool) {
	one, ok := asMap(root["1"])
	if !ok {
		return nil, false
	}
	ten, ok := asMap(one["10"])
	if !ok {
		return nil, false
	}
	text, ok := asString(ten["reminderContent"])
	if !ok {
		return nil, false
	}

	chat := &ChatMessage{Text: text}
	if name, ok := asString(ten["reminderTitle"]); ok {
		chat.SenderName = name
	}
	if sender, ok := asString(ten["senderUserId"]); ok {
		chat.SenderID = sender
	}
	if url, ok := asString(ten["reminderUrl"]); ok {
		chat.ReminderURL = url
		chat.ItemID = ItemIDFromURL(url)
	}
	if scoped, ok := asString(one["2"]); ok {
		chat.ChatID = ChatID(scoped)
	}
	if ms, ok := asMillis(one["5"]); ok {
		chat.CreatedAt = time.UnixMilli(ms)
	}
	if three, ok := asMap(root["3"]); ok {
		if noPush, ok := asString(three["needPush"]); ok && noPush == "false" {
			chat.NoPush = true
		}
	}
	return chat, true
}

// probeSystemNotice matches bare no-push notices that are not chat
// shaped: field "3" with needPush == "false".
func probeSystemNotice(root map[string]any) bool {
	three, ok := asMap(root["3"])
	if !ok {
		return false
	}
	noPush, ok := asString(three["needPush"])
	return ok && noPush == "false"
}
