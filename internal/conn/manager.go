// Package conn maintains the long-lived websocket session with the
// marketplace messaging service: registration, heartbeats, ack-first
// frame handling and a reconnect-forever outer loop. Decoded chat
// messages are handed to a Handler; everything else is absorbed here.
package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ktao87/goofish-agent/internal/wire"
)

// ErrHeartbeatTimeout reports a connection whose heartbeats stopped
// being acknowledged. The outer loop treats it like any transport
// failure and reconnects.
var ErrHeartbeatTimeout = errors.New("conn: heartbeat ack overdue")

// Defaults matching the service's observed tolerances.
const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultHeartbeatTimeout  = 5 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
	DefaultStalenessWindow   = 5 * time.Minute

	dialUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"
	dialOrigin    = "https://www.goofish.com"
)

// Sender sends a text reply into a conversation over the live socket.
type Sender interface {
	SendChat(ctx context.Context, chatID, toUserID, text string) error
}

// Handler consumes fully decoded chat messages. Calls are dispatched
// on their own goroutine so a slow reply never stalls frame acking.
type Handler interface {
	HandleChat(ctx context.Context, chat *wire.ChatMessage, sender Sender)
}

// TokenSource obtains a fresh access token for socket registration.
type TokenSource interface {
	Token(ctx context.Context, deviceID string) (string, error)
}

// Config carries the per-account connection parameters.
type Config struct {
	URL      string
	Cookies  string
	UserID   string
	DeviceID string

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ReconnectDelay    time.Duration
	StalenessWindow   time.Duration
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = DefaultStalenessWindow
	}
}

// Manager owns one websocket session at a time and reconnects forever.
type Manager struct {
	cfg     Config
	tokens  TokenSource
	codec   *wire.Codec
	handler Handler

	writeMu sync.Mutex
	conn    *websocket.Conn

	hbMu     sync.Mutex
	lastSent time.Time
	lastAck  time.Time

	now func() time.Time
	// settle is the pause between the register and ackDiff frames.
	settle time.Duration
}

// NewManager builds a manager. The handler may be nil, in which case
// chat messages are decoded and dropped.
func NewManager(cfg Config, tokens TokenSource, codec *wire.Codec, handler Handler) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:     cfg,
		tokens:  tokens,
		codec:   codec,
		handler: handler,
		now:     time.Now,
		settle:  time.Second,
	}
}

// Run connects and serves the session until ctx is cancelled. Every
// session failure is logged and followed by a fixed reconnect delay;
// Run never gives up on its own.
func (m *Manager) Run(ctx context.Context) error {
	for {
		err := m.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Connection lost, reconnecting", "error", err, "delay", m.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

// runSession performs one full connect-register-serve cycle.
func (m *Manager) runSession(ctx context.Context) error {
	header := http.Header{}
	header.Set("Cookie", m.cfg.Cookies)
	header.Set("User-Agent", dialUserAgent)
	header.Set("Origin", dialOrigin)

	ws, _, err := websocket.Dial(ctx, m.cfg.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}
	ws.SetReadLimit(1 << 20)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	m.writeMu.Lock()
	m.conn = ws
	m.writeMu.Unlock()

	if err := m.register(ctx); err != nil {
		return err
	}
	slog.Info("Connection registered", "url", m.cfg.URL)

	now := m.now()
	m.hbMu.Lock()
	m.lastSent = now
	m.lastAck = now
	m.hbMu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		errCh <- m.heartbeatLoop(sessionCtx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		errCh <- m.readLoop(sessionCtx)
	}()
	wg.Wait()
	return <-errCh
}

// register sends the /reg frame followed, after a short settle pause,
// by the sync-status ackDiff.
func (m *Manager) register(ctx context.Context) error {
	token, err := m.tokens.Token(ctx, m.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("fetch access token: %w", err)
	}
	if err := m.writeFrame(ctx, registerFrame(token, m.cfg.DeviceID)); err != nil {
		return fmt.Errorf("send register frame: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.settle):
	}
	if err := m.writeFrame(ctx, ackDiffFrame(m.now())); err != nil {
		return fmt.Errorf("send ackDiff frame: %w", err)
	}
	return nil
}

func (m *Manager) readLoop(ctx context.Context) error {
	for {
		_, data, err := m.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("Non-JSON frame dropped", "error", err)
			continue
		}

		if env.IsHeartbeatAck() {
			m.hbMu.Lock()
			m.lastAck = m.now()
			m.hbMu.Unlock()
			continue
		}

		// Ack before any processing so slow handling never makes the
		// server retransmit or drop the session.
		if env.MessageID() != "" {
			if err := m.writeFrame(ctx, ackFrame(&env)); err != nil {
				slog.Warn("Failed to ack frame", "error", err, "mid", env.MessageID())
			}
		}

		m.handleEnvelope(ctx, &env)
	}
}

func (m *Manager) handleEnvelope(ctx context.Context, env *wire.Envelope) {
	payload, ok := env.SyncData()
	if !ok {
		return
	}

	msg := m.codec.DecodeBody(payload)
	switch msg.Kind {
	case wire.KindChat:
		chat := msg.Chat
		if age := m.now().Sub(chat.CreatedAt); age > m.cfg.StalenessWindow {
			slog.Debug("Stale message dropped", "chat_id", chat.ChatID, "age", age)
			return
		}
		if m.handler == nil {
			return
		}
		go m.handler.HandleChat(ctx, chat, m)
	case wire.KindOrderStatus:
		slog.Info("Order status update",
			"status", string(msg.Order.Kind),
			"user_url", "https://www.goofish.com/personal?userId="+msg.Order.UserID)
	case wire.KindTyping:
		// Presence noise.
	case wire.KindDiscard:
		slog.Debug("Plain-JSON payload dropped")
	case wire.KindSystemNotice:
		slog.Debug("System notice skipped")
	default:
		slog.Debug("Unrecognized payload", "error", msg.Err, "size", len(msg.Raw))
	}
}

// heartbeatLoop sends a heartbeat every interval and fails the session
// when an ack has not arrived within interval+timeout of the last one.
func (m *Manager) heartbeatLoop(ctx context.Context) error {
	tick := time.Second
	if m.cfg.HeartbeatInterval < tick {
		tick = m.cfg.HeartbeatInterval / 2
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := m.now()
		m.hbMu.Lock()
		due := now.Sub(m.lastSent) >= m.cfg.HeartbeatInterval
		overdue := now.Sub(m.lastAck) > m.cfg.HeartbeatInterval+m.cfg.HeartbeatTimeout
		m.hbMu.Unlock()

		if overdue {
			return ErrHeartbeatTimeout
		}
		if due {
			if err := m.writeFrame(ctx, heartbeatFrame()); err != nil {
				return fmt.Errorf("send heartbeat: %w", err)
			}
			m.hbMu.Lock()
			m.lastSent = now
			m.hbMu.Unlock()
		}
	}
}

// SendChat implements Sender over the current socket.
func (m *Manager) SendChat(ctx context.Context, chatID, toUserID, text string) error {
	f, err := chatFrame(chatID, toUserID, m.cfg.UserID, text)
	if err != nil {
		return fmt.Errorf("build chat frame: %w", err)
	}
	return m.writeFrame(ctx, f)
}

// writeFrame serializes and sends one frame. A single mutex orders all
// socket writes across the read, heartbeat and handler goroutines.
func (m *Manager) writeFrame(ctx context.Context, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.conn == nil {
		return errors.New("conn: not connected")
	}
	return m.conn.Write(ctx, websocket.MessageText, data)
}
