// Package notify keeps the short-lived notification feed and raises toast
// events for incoming messages the user is not currently looking at.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperr "jibber/pkg/errors"
)

// Entry is one row of the notification feed.
type Entry struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	Sender    string `json:"sender_name"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // epoch ms
	Read      bool   `json:"read"`
}

// OpenChecker reports which chat the user currently has open.
type OpenChecker interface {
	OpenChat() string
}

// FeedStore persists the feed independently of chat data.
type FeedStore interface {
	SaveFeed([]Entry) error
	LoadFeed() ([]Entry, error)
}

const (
	DefaultCap = 50
	DefaultTTL = 24 * time.Hour
)

type Presenter struct {
	mu   sync.Mutex
	feed []Entry // newest first

	cap   int
	ttl   time.Duration
	open  OpenChecker
	store FeedStore

	onToast func(Entry)
	onClear func(chatID string)

	now func() time.Time
}

// NewPresenter loads the persisted feed, expiring entries older than the
// TTL. Zero cap/ttl take the defaults.
func NewPresenter(open OpenChecker, store FeedStore, cap int, ttl time.Duration) *Presenter {
	if cap <= 0 {
		cap = DefaultCap
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	p := &Presenter{cap: cap, ttl: ttl, open: open, store: store, now: time.Now}

	if store != nil {
		entries, err := store.LoadFeed()
		if err != nil {
			log.Warn().Err(err).Msg("[notify] feed load failed, starting empty")
			entries = nil
		}
		cutoff := p.now().Add(-ttl).UnixMilli()
		for _, e := range entries {
			if e.Timestamp >= cutoff {
				p.feed = append(p.feed, e)
			}
		}
		if len(p.feed) != len(entries) {
			p.save()
		}
	}
	return p
}

// OnToast registers the callback for new visible notifications.
func (p *Presenter) OnToast(fn func(Entry)) { p.onToast = fn }

// OnClear registers the callback fired when a chat's notices are removed.
func (p *Presenter) OnClear(fn func(chatID string)) { p.onClear = fn }

// Notify records and surfaces a new-message notification. Notices for the
// currently-open chat are suppressed entirely.
func (p *Presenter) Notify(chatID, sender, text string) {
	if p.open != nil && p.open.OpenChat() == chatID {
		return
	}

	e := Entry{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Sender:    sender,
		Message:   text,
		Timestamp: p.now().UnixMilli(),
	}

	p.mu.Lock()
	p.feed = append([]Entry{e}, p.feed...)
	if len(p.feed) > p.cap {
		p.feed = p.feed[:p.cap]
	}
	p.save()
	p.mu.Unlock()

	if p.onToast != nil {
		p.onToast(e)
	}
}

// ClearForChat drops all feed entries and visible toasts for a chat.
// Called when the chat is opened.
func (p *Presenter) ClearForChat(chatID string) {
	p.mu.Lock()
	kept := p.feed[:0]
	removed := false
	for _, e := range p.feed {
		if e.ChatID == chatID {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	p.feed = kept
	if removed {
		p.save()
	}
	p.mu.Unlock()

	if p.onClear != nil {
		p.onClear(chatID)
	}
}

// Remove drops a single entry (toast clicked or dismissed). It returns the
// chat id of the removed entry so the caller can open it.
func (p *Presenter) Remove(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.feed {
		if e.ID == id {
			p.feed = append(p.feed[:i], p.feed[i+1:]...)
			p.save()
			return e.ChatID, true
		}
	}
	return "", false
}

// Feed returns a copy of the feed, newest first.
func (p *Presenter) Feed() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Entry(nil), p.feed...)
}

// save persists under p.mu. A failed save is a warning; the in-memory feed
// remains authoritative for the session.
func (p *Presenter) save() {
	if p.store == nil {
		return
	}
	if err := p.store.SaveFeed(append([]Entry(nil), p.feed...)); err != nil {
		log.Warn().Err(apperr.ErrFeedSaveFailed(err)).Msg("[notify] feed save failed")
	}
}
