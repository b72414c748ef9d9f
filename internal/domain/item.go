package domain

import (
	"fmt"
	"time"
)

// Item is marketplace listing metadata cached from the item-info API.
type Item struct {
	ItemID      string    `json:"item_id"`
	Description string    `json:"description"`
	SoldPrice   string    `json:"sold_price"`
	Raw         string    `json:"-"` // full API payload as JSON
	LastUpdated time.Time `json:"last_updated"`
}

// PromptDescription renders the item the way the reply prompts expect it:
// free-text description plus the current asking price.
func (i *Item) PromptDescription() string {
	return fmt.Sprintf("%s;当前商品售卖价格为:%s", i.Description, i.SoldPrice)
}
