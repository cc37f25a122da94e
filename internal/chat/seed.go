package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type seedChat struct {
	name    string
	avatar  string
	kind    Kind
	online  bool
	seen    string
	unread  int
	history []seedMsg
}

type seedMsg struct {
	dir  Direction
	body string
	ago  time.Duration
}

var seedChats = []seedChat{
	{
		name: "Jibbkol", avatar: "J", online: true, unread: 2,
		history: []seedMsg{
			{DirIncoming, "Hello, how are you?", 5 * time.Minute},
			{DirOutgoing, "I'm good, thanks! How about you?", 4 * time.Minute},
		},
	},
	{
		name: "Sarah Wilson", avatar: "S", seen: "last seen recently", unread: 1,
		history: []seedMsg{
			{DirIncoming, "Hi! Are we still meeting today?", 10 * time.Minute},
			{DirOutgoing, "Yes, 4 PM at the usual place?", 9 * time.Minute},
		},
	},
	{
		name: "Mike Chen", avatar: "M", online: true,
		history: []seedMsg{
			{DirIncoming, "Doing well, just working on a project.", 20 * time.Minute},
			{DirOutgoing, "That's great to hear! Let me know if you need any help.", 18 * time.Minute},
			{DirIncoming, "Will do, thanks!", 16 * time.Minute},
		},
	},
	{
		name: "Jibber AI", avatar: "✨", kind: KindAssistant, online: true,
		history: []seedMsg{
			{DirIncoming, "Hi! I'm your AI assistant. Ask me anything.", 30 * time.Minute},
		},
	},
}

// Seed populates an empty store with the demo contacts. A store restored
// from a snapshot is left alone.
func (s *Store) Seed() {
	s.mu.Lock()
	if len(s.chats) > 0 {
		s.mu.Unlock()
		return
	}
	now := s.now()
	for _, sc := range seedChats {
		kind := sc.kind
		if kind == "" {
			kind = KindPersonal
		}
		c := &Chat{
			ID:          uuid.NewString(),
			Name:        sc.name,
			Avatar:      sc.avatar,
			Kind:        kind,
			LastPreview: EmptyPreview,
			Online:      sc.online,
			LastSeen:    sc.seen,
			Unread:      sc.unread,
		}
		var msgs []*Message
		for _, sm := range sc.history {
			m := &Message{
				ID:        ulid.Make().String(),
				ChatID:    c.ID,
				Direction: sm.dir,
				Content:   ContentText,
				Body:      sm.body,
				SentAt:    now.Add(-sm.ago).UnixMilli(),
			}
			if sm.dir == DirOutgoing {
				m.Delivery = DeliveryRead
			}
			msgs = append(msgs, m)
		}
		if len(msgs) > 0 {
			tail := msgs[len(msgs)-1]
			c.LastPreview = tail.preview()
			c.LastActivity = tail.SentAt
		} else {
			c.LastActivity = now.UnixMilli()
		}
		s.chats[c.ID] = c
		s.messages[c.ID] = msgs
		s.ids = append(s.ids, c.ID)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snap, Event{Kind: EventList})
}
