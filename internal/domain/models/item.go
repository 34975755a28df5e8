package models

import (
	"time"
)

// Source identifies the origin adapter of an item.
type Source string

const (
	BapcSalesCanada      Source = "bapcsalescanada"
	GameDeals            Source = "gamedeals"
	RedFlagDeals         Source = "redflagdeals"
	VideoGameDealsCanada Source = "videogamedealscanada"

	Epic  Source = "epic"
	GOG   Source = "gog"
	Steam Source = "steam"
)

// ItemKind selects the pipeline an item belongs to.
type ItemKind string

const (
	KindDeal     ItemKind = "deal"
	KindFreeDeal ItemKind = "free-deal"
	KindArticle  ItemKind = "article"
)

// Lifecycle states. An empty tag means the item carries no classification.
// Tags outside this set are source categories (e.g. a subreddit flair).
const (
	StateExpired   = "Expired"
	StateSoldOut   = "Sold Out"
	StateUntracked = "Untracked"
	StateDeleted   = "Deleted"
	StateMoved     = "Moved"
)

// IsTerminalState reports whether further absence-driven state changes for the
// tag are suppressed.
func IsTerminalState(tag string) bool {
	switch tag {
	case StateExpired, StateSoldOut, StateUntracked, StateDeleted, StateMoved:
		return true
	default:
		return false
	}
}

// MessageRefs holds the opaque message identities returned by the
// notification transport, used to target later edits.
type MessageRefs struct {
	Primary string `json:"primary,omitempty"`
	Hot     string `json:"hot,omitempty"`
}

// Item is the common shape produced by every source adapter and held in the
// baseline snapshot. Kind-specific fields are optional.
type Item struct {
	ID         string      `json:"id"`
	Source     Source      `json:"source"`
	Kind       ItemKind    `json:"kind"`
	Title      string      `json:"title"`
	DealerName string      `json:"dealerName,omitempty"`
	Tag        string      `json:"tag,omitempty"`
	Score      int         `json:"score"`
	Comments   int         `json:"comments"`
	Link       string      `json:"link,omitempty"`
	SubKind    string      `json:"subKind,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	TouchedAt  time.Time   `json:"touchedAt"`
	IsHot      bool        `json:"isHot"`
	ExpiryAt   *time.Time  `json:"expiryAt,omitempty"`
	Refs       MessageRefs `json:"refs"`
}

// Terminal reports whether the item reached a lifecycle state after which
// absence no longer changes it.
func (i *Item) Terminal() bool {
	return IsTerminalState(i.Tag)
}

// Subscription is a keyword alert registered for one source. Keyword is
// matched case-insensitively against new item titles.
type Subscription struct {
	Source  Source `json:"source"`
	Keyword string `json:"keyword"`
	RoleID  string `json:"roleId"`
}
