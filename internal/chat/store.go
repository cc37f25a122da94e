package chat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	apperr "jibber/pkg/errors"
)

// Persister mirrors store state into durable storage. Save failures are the
// adapter's problem to report; the in-memory state stays authoritative.
type Persister interface {
	SaveSnapshot(*Snapshot) error
}

// Store is the in-memory source of truth for chats and messages. All reads
// go through it; the DOM on the other end of the websocket is a rebuildable
// projection, never an owner.
//
// Every mutation persists a snapshot and fires change events before the
// mutating call returns, so callers observe both side effects or neither.
type Store struct {
	mu       sync.Mutex
	chats    map[string]*Chat
	messages map[string][]*Message
	ids      []string // insertion order, stable across snapshots
	open     string   // currently-open chat id, "" when closed
	theme    Theme
	seq      uint64 // bumped per snapshot, still under mu

	emitMu    sync.Mutex
	persister Persister
	listeners []Listener
	savedSeq  uint64 // seq of the newest snapshot handed to the persister

	now func() time.Time
}

func NewStore(p Persister) *Store {
	return &Store{
		chats:     map[string]*Chat{},
		messages:  map[string][]*Message{},
		theme:     ThemeDark,
		persister: p,
		now:       time.Now,
	}
}

// Subscribe registers a change listener. Listeners run synchronously inside
// the mutating call, in registration order.
func (s *Store) Subscribe(l Listener) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) nowMS() int64 {
	return s.now().UnixMilli()
}

// commit persists the snapshot and notifies listeners. A failed save is a
// recoverable warning; memory stays authoritative for the session.
//
// Concurrent mutations may reach commit out of order; the seq guard makes
// sure a stale snapshot is never written over a newer one, so the on-disk
// copy is monotone in mutation order. Listeners re-render from the live
// store, so their relative order does not matter. (Holding mu across the
// emitMu acquire would deadlock instead: listeners read back through mu.)
func (s *Store) commit(snap *Snapshot, events ...Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if snap.seq > s.savedSeq {
		s.savedSeq = snap.seq
		if s.persister != nil {
			if err := s.persister.SaveSnapshot(snap); err != nil {
				log.Warn().Err(apperr.ErrSnapshotSaveFailed(err)).Msg("[store] snapshot save failed")
			}
		}
	}
	for _, ev := range events {
		for _, l := range s.listeners {
			l(ev)
		}
	}
}

// CreateChat adds a new chat and inserts it as most recent.
func (s *Store) CreateChat(name, avatar string, kind Kind) (*Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrEmptyName
	}
	if kind == "" {
		kind = KindPersonal
	}

	s.mu.Lock()
	c := &Chat{
		ID:           uuid.NewString(),
		Name:         name,
		Avatar:       avatar,
		Kind:         kind,
		LastPreview:  EmptyPreview,
		LastActivity: s.nowMS(),
		Online:       kind == KindAssistant,
	}
	s.chats[c.ID] = c
	s.messages[c.ID] = nil
	s.ids = append(s.ids, c.ID)
	out := *c
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventList, ChatID: out.ID})
	return &out, nil
}

// AppendMessage stores a draft in the chat, assigns id and timestamp, and
// updates the owning chat's caches and unread counter.
//
// Unread rule: an incoming message to a chat that is not currently open
// increments the counter; an outgoing message resets it (the user is
// actively chatting). An incoming message also promotes earlier outgoing
// messages in the chat to read.
func (s *Store) AppendMessage(chatID string, d Draft) (*Message, error) {
	if d.Content == "" {
		d.Content = ContentText
	}
	if d.Content == ContentText && strings.TrimSpace(d.Body) == "" {
		return nil, apperr.ErrEmptyMessage
	}

	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return nil, apperr.ErrChatNotFound
	}

	m := &Message{
		ID:        ulid.Make().String(),
		ChatID:    chatID,
		Direction: d.Direction,
		Content:   d.Content,
		Body:      d.Body,
		SentAt:    s.nowMS(),
	}
	if d.Direction == DirOutgoing {
		m.Delivery = DeliverySent
	}
	s.messages[chatID] = append(s.messages[chatID], m)

	c.LastPreview = m.preview()
	c.LastActivity = m.SentAt

	events := []Event{{Kind: EventThread, ChatID: chatID}, {Kind: EventList, ChatID: chatID}}
	switch d.Direction {
	case DirIncoming:
		if s.open != chatID {
			c.Unread++
		}
		for _, prev := range s.messages[chatID] {
			if prev.Direction == DirOutgoing && prev.Delivery != DeliveryRead {
				prev.Delivery = DeliveryRead
			}
		}
		mc := m.clone()
		events = append(events, Event{Kind: EventIncoming, ChatID: chatID, Message: &mc})
	case DirOutgoing:
		c.Unread = 0
	}

	out := m.clone()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, events...)
	return &out, nil
}

// MarkRead zeroes the unread counter. Idempotent; unknown ids are a no-op
// because UI call sites may race chat removal.
func (s *Store) MarkRead(chatID string) {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok || c.Unread == 0 {
		s.mu.Unlock()
		return
	}
	c.Unread = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventList, ChatID: chatID})
}

// SetPinned toggles the pin flag. Pin time is recorded so pinned chats order
// by most recent pin action; the activity timestamp is untouched.
func (s *Store) SetPinned(chatID string, pinned bool) error {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return apperr.ErrChatNotFound
	}
	c.Pinned = pinned
	if pinned {
		c.PinnedAt = s.nowMS()
	} else {
		c.PinnedAt = 0
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventList, ChatID: chatID})
	return nil
}

// EditMessage replaces a message body in place. Editing the most recent
// message refreshes the chat's cached preview.
func (s *Store) EditMessage(chatID, msgID, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return apperr.ErrEmptyMessage
	}

	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return apperr.ErrChatNotFound
	}
	msgs := s.messages[chatID]
	idx := indexOf(msgs, msgID)
	if idx < 0 {
		s.mu.Unlock()
		return apperr.ErrMessageNotFound
	}
	msgs[idx].Body = newText
	if idx == len(msgs)-1 {
		c.LastPreview = msgs[idx].preview()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventThread, ChatID: chatID}, Event{Kind: EventList, ChatID: chatID})
	return nil
}

// DeleteMessage removes a message. Removing the most recent one recomputes
// the cached preview and activity from the new tail, or resets the preview
// to the empty-state text when the list becomes empty.
func (s *Store) DeleteMessage(chatID, msgID string) error {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return apperr.ErrChatNotFound
	}
	msgs := s.messages[chatID]
	idx := indexOf(msgs, msgID)
	if idx < 0 {
		s.mu.Unlock()
		return apperr.ErrMessageNotFound
	}
	wasLast := idx == len(msgs)-1
	s.messages[chatID] = append(msgs[:idx], msgs[idx+1:]...)
	if wasLast {
		if tail := s.messages[chatID]; len(tail) > 0 {
			c.LastPreview = tail[len(tail)-1].preview()
			c.LastActivity = tail[len(tail)-1].SentAt
		} else {
			c.LastPreview = EmptyPreview
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventThread, ChatID: chatID}, Event{Kind: EventList, ChatID: chatID})
	return nil
}

// AddReaction increments the per-symbol reaction count on a message.
func (s *Store) AddReaction(chatID, msgID, symbol string) error {
	if strings.TrimSpace(symbol) == "" {
		return apperr.Validation("reaction symbol cannot be empty")
	}

	s.mu.Lock()
	if _, ok := s.chats[chatID]; !ok {
		s.mu.Unlock()
		return apperr.ErrChatNotFound
	}
	msgs := s.messages[chatID]
	idx := indexOf(msgs, msgID)
	if idx < 0 {
		s.mu.Unlock()
		return apperr.ErrMessageNotFound
	}
	if msgs[idx].Reactions == nil {
		msgs[idx].Reactions = map[string]int{}
	}
	msgs[idx].Reactions[symbol]++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventThread, ChatID: chatID})
	return nil
}

// MarkDelivered advances an outgoing message's tick from sent to delivered.
// Later states are never demoted; unknown ids no-op (the message may have
// been deleted while the delivery timer was pending).
func (s *Store) MarkDelivered(chatID, msgID string) {
	s.mu.Lock()
	if _, ok := s.chats[chatID]; !ok {
		s.mu.Unlock()
		return
	}
	msgs := s.messages[chatID]
	idx := indexOf(msgs, msgID)
	if idx < 0 || msgs[idx].Direction != DirOutgoing || msgs[idx].Delivery != DeliverySent {
		s.mu.Unlock()
		return
	}
	msgs[idx].Delivery = DeliveryDelivered
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventThread, ChatID: chatID})
}

// Open transitions the open-chat state machine to the given chat, closing
// any other open chat and marking the target read.
func (s *Store) Open(chatID string) error {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return apperr.ErrChatNotFound
	}
	s.open = chatID
	c.Unread = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventOpen, ChatID: chatID}, Event{Kind: EventList, ChatID: chatID})
	return nil
}

// Close returns to the list-only view. Unread counts are untouched.
func (s *Store) Close() {
	s.mu.Lock()
	was := s.open
	s.open = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventOpen, ChatID: was})
}

// OpenChat reports the currently-open chat id, or "" when closed.
func (s *Store) OpenChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) SetTheme(t Theme) error {
	if t != ThemeDark && t != ThemeLight {
		return apperr.Validation("unknown theme")
	}
	s.mu.Lock()
	s.theme = t
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventTheme})
	return nil
}

func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// GetChat returns a copy of the chat record.
func (s *Store) GetChat(chatID string) (Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return Chat{}, false
	}
	return *c, true
}

// Messages returns copies of the chat's messages in append order.
func (s *Store) Messages(chatID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.clone())
	}
	return out
}

// Snapshot returns a deep copy of the full store state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *Snapshot {
	s.seq++
	snap := &Snapshot{
		Version:  SnapshotVersion,
		Theme:    s.theme,
		seq:      s.seq,
		Chats:    make([]Chat, 0, len(s.ids)),
		Messages: make(map[string][]Message, len(s.messages)),
	}
	for _, id := range s.ids {
		snap.Chats = append(snap.Chats, *s.chats[id])
		msgs := s.messages[id]
		out := make([]Message, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, m.clone())
		}
		snap.Messages[id] = out
	}
	return snap
}

// Restore replaces store state with a loaded snapshot, applying the
// defaulting the original data may lack.
func (s *Store) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make(map[string]*Chat, len(snap.Chats))
	s.messages = make(map[string][]*Message, len(snap.Chats))
	s.ids = s.ids[:0]
	s.theme = snap.Theme
	if s.theme != ThemeDark && s.theme != ThemeLight {
		s.theme = ThemeDark
	}
	for i := range snap.Chats {
		c := snap.Chats[i]
		if c.ID == "" {
			continue
		}
		if c.Kind == "" {
			c.Kind = KindPersonal
		}
		if c.Unread < 0 {
			c.Unread = 0
		}
		if c.LastActivity == 0 {
			c.LastActivity = s.nowMS()
		}
		msgs := snap.Messages[c.ID]
		out := make([]*Message, 0, len(msgs))
		for j := range msgs {
			m := msgs[j].clone()
			m.ChatID = c.ID
			out = append(out, &m)
		}
		if len(out) > 0 {
			tail := out[len(out)-1]
			c.LastPreview = tail.preview()
			c.LastActivity = tail.SentAt
		} else if c.LastPreview == "" {
			c.LastPreview = EmptyPreview
		}
		s.chats[c.ID] = &c
		s.messages[c.ID] = out
		s.ids = append(s.ids, c.ID)
	}
}

// OrderedChats returns chats in display order: pinned first, most recently
// pinned on top, then unpinned by last activity descending.
func (snap *Snapshot) OrderedChats() []Chat {
	out := append([]Chat(nil), snap.Chats...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.Pinned {
			return a.PinnedAt > b.PinnedAt
		}
		return a.LastActivity > b.LastActivity
	})
	return out
}

func indexOf(msgs []*Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}
