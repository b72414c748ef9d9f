package reply

import (
	"fmt"
	"os"
	"path/filepath"
)

// Prompts holds the per-agent system prompts.
type Prompts struct {
	Classify string
	Price    string
	Tech     string
	Default  string
}

// Built-in prompts used when the prompt directory has no override file.
const (
	defaultClassifyPrompt = `你是一个意图分类器。根据买家的最新消息判断其意图，只输出以下标签之一：
tech（询问商品参数、规格、型号、连接方式或与其他商品对比）
price（议价、要求优惠或询问价格空间）
default（其他任何情况）
只输出标签本身，不要输出任何其他内容。`

	defaultPricePrompt = `你是二手交易平台上的金牌卖家客服，正在与买家议价。
原则：态度友好但坚持合理底线；小幅让步优于大幅降价；强调商品成色与价值；
引导尽快下单。回复要口语化、简短，不超过两句话。`

	defaultTechPrompt = `你是二手交易平台上的专业卖家客服，负责解答商品的技术问题。
基于商品信息如实回答参数、规格、兼容性问题；不清楚的参数不要编造，
可以建议买家查看官方资料。回复简洁专业，不超过三句话。`

	defaultDefaultPrompt = `你是二手交易平台上的友好卖家客服。
热情回应买家的一般咨询，介绍商品亮点，引导买家下单或继续沟通。
回复口语化、简短，不超过两句话。`
)

// LoadPrompts reads prompt overrides from dir, falling back to the
// built-in prompts for any file that is missing. A present but
// unreadable file is an error; silent fallback there would mask a
// deployment mistake.
func LoadPrompts(dir string) (Prompts, error) {
	read := func(name, def string) (string, error) {
		if dir == "" {
			return def, nil
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return def, nil
		}
		if err != nil {
			return "", fmt.Errorf("reply: read prompt %s: %w", path, err)
		}
		if len(data) == 0 {
			return def, nil
		}
		return string(data), nil
	}

	var p Prompts
	var err error
	if p.Classify, err = read("classify_prompt.txt", defaultClassifyPrompt); err != nil {
		return Prompts{}, err
	}
	if p.Price, err = read("price_prompt.txt", defaultPricePrompt); err != nil {
		return Prompts{}, err
	}
	if p.Tech, err = read("tech_prompt.txt", defaultTechPrompt); err != nil {
		return Prompts{}, err
	}
	if p.Default, err = read("default_prompt.txt", defaultDefaultPrompt); err != nil {
		return Prompts{}, err
	}
	return p, nil
}
