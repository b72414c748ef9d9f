// Package reply composes outbound replies: it windows conversation
// history, picks sampling parameters per intent, renders the system
// prompt, calls the completion service and applies the safety filter.
package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/ktao87/goofish-agent/internal/domain"
	"github.com/ktao87/goofish-agent/internal/intent"
	"github.com/ktao87/goofish-agent/internal/llm"
)

// SafetyNotice replaces any reply that steers the buyer off-platform.
// The substitution is all-or-nothing, never a partial redaction.
const SafetyNotice = "[安全提醒]请通过平台沟通"

// blockedPhrases are off-platform-contact indicators. A reply containing
// any of them is discarded wholesale in favor of SafetyNotice.
var blockedPhrases = []string{"微信", "QQ", "支付宝", "银行卡", "线下"}

// DefaultMaxUserTurns bounds the history window sent to the completion
// service.
const DefaultMaxUserTurns = 5

// Completer is the completion service seam.
type Completer interface {
	ChatCompletion(ctx context.Context, req llm.Request) (string, error)
}

// Input carries everything needed to compose one reply.
type Input struct {
	Intent       intent.Label
	UserMsg      string
	ItemDesc     string
	History      []domain.Turn
	BargainCount int
}

// Orchestrator builds and dispatches completion calls per intent.
type Orchestrator struct {
	completer    Completer
	prompts      Prompts
	model        string
	maxUserTurns int
}

// NewOrchestrator creates an Orchestrator. maxUserTurns <= 0 falls back
// to DefaultMaxUserTurns.
func NewOrchestrator(completer Completer, prompts Prompts, model string, maxUserTurns int) *Orchestrator {
	if maxUserTurns <= 0 {
		maxUserTurns = DefaultMaxUserTurns
	}
	return &Orchestrator{
		completer:    completer,
		prompts:      prompts,
		model:        model,
		maxUserTurns: maxUserTurns,
	}
}

// FormatHistory renders the bounded context window: the most recent
// maxUserTurns user turns plus, for each, its immediately following
// assistant turn if one exists, in original chronological order. The
// unbounded history never goes to the completion service.
func FormatHistory(turns []domain.Turn, maxUserTurns int) string {
	var filtered []domain.Turn
	for _, t := range turns {
		if t.Role == domain.RoleUser || t.Role == domain.RoleAssistant {
			filtered = append(filtered, t)
		}
	}

	var userIdx []int
	for i, t := range filtered {
		if t.Role == domain.RoleUser {
			userIdx = append(userIdx, i)
		}
	}
	if len(userIdx) > maxUserTurns {
		userIdx = userIdx[len(userIdx)-maxUserTurns:]
	}

	selected := make(map[int]bool)
	for _, i := range userIdx {
		selected[i] = true
		if i+1 < len(filtered) && filtered[i+1].Role == domain.RoleAssistant {
			selected[i+1] = true
		}
	}

	var b strings.Builder
	for i, t := range filtered {
		if !selected[i] {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// PriceTemperature scales sampling aggressiveness with negotiation
// progress, capped at 0.9.
func PriceTemperature(bargainCount int) float64 {
	t := 0.3 + 0.15*float64(bargainCount)
	if t > 0.9 {
		return 0.9
	}
	return t
}

// SafetyFilter replaces replies carrying off-platform-contact phrases
// with the fixed platform notice.
func SafetyFilter(text string) string {
	for _, phrase := range blockedPhrases {
		if strings.Contains(text, phrase) {
			return SafetyNotice
		}
	}
	return text
}

// Generate composes one reply for the given intent. The returned text
// may be empty or whitespace-only, in which case the caller must
// suppress sending entirely.
func (o *Orchestrator) Generate(ctx context.Context, in Input) (string, error) {
	history := FormatHistory(in.History, o.maxUserTurns)

	var systemPrompt string
	req := llm.Request{
		Model:     o.model,
		MaxTokens: 500,
	}

	switch in.Intent {
	case intent.LabelPrice:
		systemPrompt = o.prompts.Price
		req.Temperature = PriceTemperature(in.BargainCount)
		req.TopP = 0.8
	case intent.LabelTech:
		systemPrompt = o.prompts.Tech
		req.Temperature = 0.8
		req.TopP = 1.0
		// Ask the provider to consult external knowledge when supported.
		req.Extra = map[string]any{"enable_search": true}
	default:
		systemPrompt = o.prompts.Default
		req.Temperature = 0.7
		req.TopP = 0.8
	}

	system := fmt.Sprintf("【商品信息】%s\n【你与客户对话历史】%s\n%s", in.ItemDesc, history, systemPrompt)
	if in.Intent == intent.LabelPrice {
		// Ground the negotiation in its progress so the model knows how
		// far the haggling has gone.
		system += fmt.Sprintf("\n▲当前议价轮次：%d", in.BargainCount)
	}

	req.Messages = []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: in.UserMsg},
	}

	text, err := o.completer.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reply: generate %s reply: %w", in.Intent, err)
	}
	return SafetyFilter(text), nil
}

// Classify runs the internal classification agent. Its output is an
// intent label for the router, never shown to the buyer.
func (o *Orchestrator) Classify(ctx context.Context, userMsg, itemDesc, history string) (string, error) {
	system := fmt.Sprintf("【商品信息】%s\n【你与客户对话历史】%s\n%s", itemDesc, history, o.prompts.Classify)
	text, err := o.completer.ChatCompletion(ctx, llm.Request{
		Model:       o.model,
		Temperature: 0.7,
		MaxTokens:   500,
		TopP:        0.8,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: userMsg},
		},
	})
	if err != nil {
		return "", fmt.Errorf("reply: classify: %w", err)
	}
	return text, nil
}
