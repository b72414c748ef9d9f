// Package intent classifies inbound buyer messages into the reply agent
// that should handle them. Fast keyword/regex rules run first; an
// LLM-backed classifier is the fallback of last resort.
package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Label is a routing decision.
type Label string

// Known labels. LabelClassify is internal to the router and must never
// surface as a reply agent.
const (
	LabelTech     Label = "tech"
	LabelPrice    Label = "price"
	LabelDefault  Label = "default"
	LabelClassify Label = "classify"
)

// Classifier resolves messages the rule tiers cannot. Its output is a
// raw label string that Route coerces into a valid reply label.
type Classifier interface {
	Classify(ctx context.Context, userMsg, itemDesc, history string) (string, error)
}

// nonWord strips everything that is neither a word character nor a CJK
// ideograph before keyword matching, so punctuation cannot split a
// keyword.
var nonWord = regexp.MustCompile(`[^\w\x{4e00}-\x{9fa5}]`)

var (
	techKeywords = []string{"参数", "规格", "型号", "连接", "对比"}
	techPatterns = []*regexp.Regexp{
		regexp.MustCompile(`和.+比`),
	}
	priceKeywords = []string{"便宜", "价", "砍价", "少点"}
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+元`),
		regexp.MustCompile(`能少\d+`),
	}
)

// Router picks the reply agent for a message.
type Router struct {
	classifier Classifier
}

// NewRouter builds a Router. classifier may be nil, in which case the
// fallback tier resolves to the default label.
func NewRouter(classifier Classifier) *Router {
	return &Router{classifier: classifier}
}

// Route applies the three-tier, tech-first policy. Technical questions
// about a negotiated item must never land on the pricing agent just
// because they mention numbers, so the tech tier runs before price.
func (r *Router) Route(ctx context.Context, userMsg, itemDesc, history string) Label {
	clean := nonWord.ReplaceAllString(userMsg, "")

	for _, kw := range techKeywords {
		if strings.Contains(clean, kw) {
			return LabelTech
		}
	}
	for _, p := range techPatterns {
		if p.MatchString(clean) {
			return LabelTech
		}
	}

	for _, kw := range priceKeywords {
		if strings.Contains(clean, kw) {
			return LabelPrice
		}
	}
	for _, p := range pricePatterns {
		if p.MatchString(clean) {
			return LabelPrice
		}
	}

	return r.classifyFallback(ctx, userMsg, itemDesc, history)
}

func (r *Router) classifyFallback(ctx context.Context, userMsg, itemDesc, history string) Label {
	if r.classifier == nil {
		return LabelDefault
	}
	raw, err := r.classifier.Classify(ctx, userMsg, itemDesc, history)
	if err != nil {
		slog.Warn("intent classification failed, using default", "error", err)
		return LabelDefault
	}
	return Coerce(raw)
}

// Coerce maps a raw classifier output onto a valid reply label. Unknown
// labels and the internal classify label both collapse to default.
func Coerce(raw string) Label {
	switch Label(strings.TrimSpace(strings.ToLower(raw))) {
	case LabelTech:
		return LabelTech
	case LabelPrice:
		return LabelPrice
	case LabelDefault:
		return LabelDefault
	default:
		return LabelDefault
	}
}
