package wire

import (
	"strings"
	"time"
)

// Kind tags the decoded message variant.
type Kind int

// Message variants, in classification priority order.
const (
	KindUnrecognized Kind = iota
	KindDiscard           // plain-JSON body, dropped by protocol design
	KindOrderStatus
	KindTyping
	KindChat
	KindSystemNotice
)

func (k Kind) String() string {
	switch k {
	case KindDiscard:
		return "discard"
	case KindOrderStatus:
		return "order_status"
	case KindTyping:
		return "typing"
	case KindChat:
		return "chat"
	case KindSystemNotice:
		return "system_notice"
	default:
		return "unrecognized"
	}
}

// OrderStatusKind is the trade-state string carried by an order event.
type OrderStatusKind string

// Known trade states. Matched literally against the reminder field.
const (
	OrderWaitingPayment  OrderStatusKind = "等待买家付款"
	OrderClosed          OrderStatusKind = "交易关闭"
	OrderWaitingShipment OrderStatusKind = "等待卖家发货"
)

// OrderStatus is a trade-state change notification. Logged, never routed.
type OrderStatus struct {
	Kind   OrderStatusKind
	UserID string
}

// ChatMessage is one buyer or seller chat message after full decode.
type ChatMessage struct {
	SenderID    string
	SenderName  string
	ChatID      string
	ItemID      string
	Text        string
	ReminderURL string
	CreatedAt   time.Time
	// NoPush marks messages flagged by the service as non-push system
	// notices. They are recorded but never answered.
	NoPush bool
}

// Message is the tagged result of decoding one sync payload.
type Message struct {
	Kind  Kind
	Order *OrderStatus
	Chat  *ChatMessage
	// Raw holds the undecodable input for diagnostics when Kind is
	// KindUnrecognized.
	Raw []byte
	// Err records what broke the decode, if anything did.
	Err error
}

// ChatID derives the stable conversation id from a scoped identifier,
// i.e. the portion before the first '@'.
func ChatID(scoped string) string {
	if i := strings.Index(scoped, "@"); i >= 0 {
		return scoped[:i]
	}
	return scoped
}

// ItemIDFromURL extracts the listing id from a reminder URL: the
// substring between "itemId=" and the next "&". Empty when absent.
func ItemIDFromURL(url string) string {
	const marker = "itemId="
	i := strings.Index(url, marker)
	if i < 0 {
		return ""
	}
	rest := url[i+len(marker):]
	if j := strings.Index(rest, "&"); j >= 0 {
		return rest[:j]
	}
	return rest
}
