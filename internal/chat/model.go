package chat

// Kind distinguishes who sits on the other side of a chat.
type Kind string

const (
	KindPersonal  Kind = "personal"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
)

// Direction tells whether a message was written by the user or the counterpart.
type Direction string

const (
	DirOutgoing Direction = "outgoing"
	DirIncoming Direction = "incoming"
	DirSystem   Direction = "system"
)

// ContentType describes the payload of a message.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
	ContentVoice ContentType = "voice-note"
)

// Delivery is the tick state of an outgoing message.
type Delivery string

const (
	DeliverySent      Delivery = "sent"
	DeliveryDelivered Delivery = "delivered"
	DeliveryRead      Delivery = "read"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// EmptyPreview is shown in the list row of a chat with no messages.
const EmptyPreview = "No messages yet"

// Chat is a conversation with one counterpart. LastPreview and LastActivity
// cache the text and timestamp of the most recent message.
type Chat struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	Kind         Kind   `json:"kind"`
	LastPreview  string `json:"last_preview"`
	LastActivity int64  `json:"last_activity"` // epoch ms
	Unread       int    `json:"unread"`
	Pinned       bool   `json:"pinned"`
	PinnedAt     int64  `json:"pinned_at,omitempty"` // epoch ms of the pin action
	Online       bool   `json:"online"`
	LastSeen     string `json:"last_seen,omitempty"`
}

// Message is a single unit of communication within a chat. For image, audio
// and voice-note messages Body holds an opaque media handle.
type Message struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Direction Direction      `json:"direction"`
	Content   ContentType    `json:"content_type"`
	Body      string         `json:"body"`
	SentAt    int64          `json:"sent_at"` // epoch ms
	Delivery  Delivery       `json:"delivery,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
}

// Draft is the caller-supplied part of a message; the store assigns the rest.
type Draft struct {
	Direction Direction
	Content   ContentType
	Body      string
}

// Snapshot is a complete serializable copy of store state.
type Snapshot struct {
	Version  int                  `json:"version"`
	Theme    Theme                `json:"theme"`
	Chats    []Chat               `json:"chats"`
	Messages map[string][]Message `json:"messages"`

	// seq orders snapshots by the mutation that produced them. Process-local,
	// never serialized.
	seq uint64
}

// SnapshotVersion tags persisted snapshots so future schema changes can
// migrate or discard old data instead of misreading it.
const SnapshotVersion = 1

func (m *Message) clone() Message {
	out := *m
	if m.Reactions != nil {
		out.Reactions = make(map[string]int, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	return out
}

// preview returns the list-row text for a message.
func (m *Message) preview() string {
	switch m.Content {
	case ContentImage:
		return "\U0001F4F7 Photo"
	case ContentAudio:
		return "\U0001F3B5 Audio"
	case ContentVoice:
		return "\U0001F3A4 Voice message"
	default:
		return m.Body
	}
}
