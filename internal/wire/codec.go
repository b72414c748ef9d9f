package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ktao87/goofish-agent/internal/msgpack"
)

// Codec unwraps sync payloads: base64 transport coat, then either a
// plain-JSON early exit or the decrypt+binary-decode path, then
// structural classification.
type Codec struct {
	dec Decrypter
}

// NewCodec builds a codec around the given decrypter.
func NewCodec(dec Decrypter) *Codec {
	if dec == nil {
		dec = UnconfiguredDecrypter{}
	}
	return &Codec{dec: dec}
}

// DecodeBody turns one sync payload string into a classified Message.
// It is total: malformed input of any flavor comes back as
// KindUnrecognized with the raw bytes attached, never as a panic.
func (c *Codec) DecodeBody(body string) Message {
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Message{Kind: KindUnrecognized, Raw: []byte(body), Err: fmt.Errorf("wire: base64 decode: %w", err)}
	}

	// Some non-chat payloads arrive as plain JSON under the base64 coat.
	// The protocol exposes this as a deliberate early exit; such frames
	// carry nothing actionable and are discarded without classification.
	if json.Valid(raw) {
		return Message{Kind: KindDiscard}
	}

	plain, err := c.dec.Decrypt(raw)
	if err != nil {
		return Message{Kind: KindUnrecognized, Raw: raw, Err: fmt.Errorf("%w: %v", ErrCipher, err)}
	}

	tree := msgpack.DecodeLenient(plain)
	return classify(tree, plain)
}

// classify probes the decoded object tree for known shapes, in priority
// order. Presence and type of nested fields decide; there is no fixed
// schema to validate against.
func classify(tree any, raw []byte) Message {
	root, ok := tree.(map[string]any)
	if !ok {
		return Message{Kind: KindUnrecognized, Raw: raw}
	}

	if order, ok := probeOrderStatus(root); ok {
		return Message{Kind: KindOrderStatus, Order: order}
	}
	if probeTyping(root) {
		return Message{Kind: KindTyping}
	}
	if chat, ok := probeChat(root); ok {
		return Message{Kind: KindChat, Chat: chat}
	}
	if probeSystemNotice(root) {
		return Message{Kind: KindSystemNotice}
	}
	return Message{Kind: KindUnrecognized, Raw: raw}
}
