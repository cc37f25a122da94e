package view

import (
	"bytes"
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jibber/internal/chat"
	"jibber/internal/notify"
)

func listFixture() *chat.Snapshot {
	return &chat.Snapshot{
		Version: chat.SnapshotVersion,
		Theme:   chat.ThemeDark,
		Chats: []chat.Chat{
			{ID: "b", Name: "Beta", LastPreview: "newest unpinned", LastActivity: 30, Unread: 3},
			{ID: "c", Name: "Gamma", LastPreview: "older unpinned", LastActivity: 20},
			{ID: "a", Name: "Alpha", LastPreview: "old but pinned", LastActivity: 10, Pinned: true, PinnedAt: 5},
		},
	}
}

func TestChatList_PinnedFirstThenRecency(t *testing.T) {
	html, err := ChatList(listFixture(), "")
	require.NoError(t, err)

	ia := strings.Index(html, `data-chat-id="a"`)
	ib := strings.Index(html, `data-chat-id="b"`)
	ic := strings.Index(html, `data-chat-id="c"`)
	require.True(t, ia >= 0 && ib >= 0 && ic >= 0)
	require.Less(t, ia, ib, "pinned chat renders first despite older activity")
	require.Less(t, ib, ic)
}

func TestChatList_ActiveBadgeAndPin(t *testing.T) {
	html, err := ChatList(listFixture(), "b")
	require.NoError(t, err)
	require.Contains(t, html, `class="chat-item active"`)
	require.Contains(t, html, `<span class="badge">3</span>`)
	require.Contains(t, html, "pin-mark")
}

func TestChatList_Deterministic(t *testing.T) {
	snap := listFixture()
	a, err := ChatList(snap, "a")
	require.NoError(t, err)
	b, err := ChatList(snap, "a")
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte(a), []byte(b)), "same snapshot must render byte-identical")
}

func TestChatList_EscapesMarkup(t *testing.T) {
	snap := &chat.Snapshot{Chats: []chat.Chat{{
		ID: "x", Name: "<script>alert(1)</script>", LastPreview: "<img onerror=x>",
	}}}
	html, err := ChatList(snap, "")
	require.NoError(t, err)
	require.NotContains(t, html, "<script>alert")
	require.NotContains(t, html, "<img onerror")
	require.Contains(t, html, "&lt;script&gt;")
}

func TestChatList_Empty(t *testing.T) {
	html, err := ChatList(&chat.Snapshot{}, "")
	require.NoError(t, err)
	require.Contains(t, html, "No conversations yet")
}

func TestThread_TicksAndContentTypes(t *testing.T) {
	c := chat.Chat{ID: "x", Name: "Sarah", Online: true}
	msgs := []chat.Message{
		{ID: "m1", Direction: chat.DirOutgoing, Content: chat.ContentText, Body: "sent one", Delivery: chat.DeliverySent},
		{ID: "m2", Direction: chat.DirOutgoing, Content: chat.ContentText, Body: "read one", Delivery: chat.DeliveryRead},
		{ID: "m3", Direction: chat.DirIncoming, Content: chat.ContentText, Body: "reply"},
		{ID: "m4", Direction: chat.DirOutgoing, Content: chat.ContentImage, Body: "att-123", Delivery: chat.DeliveryRead},
		{ID: "m5", Direction: chat.DirOutgoing, Content: chat.ContentVoice, Body: "att-456", Delivery: chat.DeliverySent},
	}
	html, err := Thread(c, msgs, false)
	require.NoError(t, err)

	require.Contains(t, html, `<span class="tick tick-sent">✓</span>`)
	require.Contains(t, html, `<span class="tick tick-read">✓✓</span>`)
	require.Contains(t, html, `src="/media/att-123"`)
	require.Contains(t, html, `<audio`)
	require.Contains(t, html, `class="avatar online"`)

	// incoming bubble carries no tick
	in := html[strings.Index(html, `data-msg-id="m3"`):]
	in = in[:strings.Index(in, `data-msg-id="m4"`)]
	require.NotContains(t, in, "tick")
}

func TestThread_EmptyAndTyping(t *testing.T) {
	c := chat.Chat{ID: "x", Name: "Sarah", LastSeen: "last seen recently"}
	html, err := Thread(c, nil, true)
	require.NoError(t, err)
	require.Contains(t, html, chat.EmptyPreview)
	require.Contains(t, html, "last seen recently")
	require.Contains(t, html, `class="typing-indicator"`)

	html, err = Thread(c, nil, false)
	require.NoError(t, err)
	require.Contains(t, html, `class="typing-indicator hidden"`)
}

func TestThread_Reactions(t *testing.T) {
	c := chat.Chat{ID: "x", Name: "Sarah"}
	msgs := []chat.Message{{
		ID: "m1", Direction: chat.DirIncoming, Content: chat.ContentText, Body: "hey",
		Reactions: map[string]int{"❤️": 2},
	}}
	html, err := Thread(c, msgs, false)
	require.NoError(t, err)
	require.Contains(t, html, `data-symbol="❤️"`)
	require.Contains(t, html, "❤️ 2")
}

func TestFeedPanel(t *testing.T) {
	now := time.Now().UnixMilli()
	html, err := FeedPanel([]notify.Entry{
		{ID: "n2", ChatID: "x", Sender: "Sarah", Message: "newest", Timestamp: now},
		{ID: "n1", ChatID: "y", Sender: "Mike", Message: "older", Timestamp: now - 1000, Read: true},
	})
	require.NoError(t, err)
	require.Less(t, strings.Index(html, "newest"), strings.Index(html, "older"))
	require.Contains(t, html, `class="feed-entry read"`)

	empty, err := FeedPanel(nil)
	require.NoError(t, err)
	require.Contains(t, empty, "All caught up")
}

func TestShell_ThemeAndSlots(t *testing.T) {
	var buf bytes.Buffer
	err := Shell(&buf, ShellData{Theme: chat.ThemeLight, List: template.HTML(`<div id="chat-list"></div>`), Unseen: 2})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, `data-theme="light"`)
	require.Contains(t, out, `id="bell-badge">2`)
	require.Contains(t, out, "Select a conversation")
}
