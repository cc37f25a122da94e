package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeOpen struct{ id string }

func (f *fakeOpen) OpenChat() string { return f.id }

type memFeed struct {
	saved []Entry
	load  []Entry
}

func (m *memFeed) SaveFeed(e []Entry) error { m.saved = e; return nil }
func (m *memFeed) LoadFeed() ([]Entry, error) { return m.load, nil }

func TestNotify_AppendsAndToasts(t *testing.T) {
	open := &fakeOpen{}
	feed := &memFeed{}
	p := NewPresenter(open, feed, 0, 0)

	var toasts []Entry
	p.OnToast(func(e Entry) { toasts = append(toasts, e) })

	p.Notify("c1", "Alice", "hello")
	p.Notify("c2", "Bob", "hi")

	entries := p.Feed()
	require.Len(t, entries, 2)
	require.Equal(t, "c2", entries[0].ChatID, "newest first")
	require.Len(t, toasts, 2)
	require.Len(t, feed.saved, 2, "feed persisted on notify")
}

func TestNotify_SuppressedForOpenChat(t *testing.T) {
	open := &fakeOpen{id: "c1"}
	p := NewPresenter(open, &memFeed{}, 0, 0)

	var toasted bool
	p.OnToast(func(Entry) { toasted = true })

	p.Notify("c1", "Alice", "you are looking at me")
	require.Empty(t, p.Feed())
	require.False(t, toasted)

	p.Notify("c2", "Bob", "you are not looking at me")
	require.Len(t, p.Feed(), 1)
}

func TestNotify_CapEvictsOldest(t *testing.T) {
	p := NewPresenter(&fakeOpen{}, &memFeed{}, 0, 0)

	for i := 0; i < DefaultCap+5; i++ {
		p.Notify("c1", "Alice", fmt.Sprintf("msg %d", i))
	}

	entries := p.Feed()
	require.Len(t, entries, DefaultCap)
	require.Equal(t, fmt.Sprintf("msg %d", DefaultCap+4), entries[0].Message)
}

func TestLoad_ExpiresOldEntries(t *testing.T) {
	now := time.Now().UnixMilli()
	feed := &memFeed{load: []Entry{
		{ID: "fresh", ChatID: "c1", Timestamp: now - int64(time.Hour/time.Millisecond)},
		{ID: "stale", ChatID: "c1", Timestamp: now - int64(25*time.Hour/time.Millisecond)},
	}}
	p := NewPresenter(&fakeOpen{}, feed, 0, 0)

	entries := p.Feed()
	require.Len(t, entries, 1)
	require.Equal(t, "fresh", entries[0].ID)
	require.Len(t, feed.saved, 1, "pruned feed written back")
}

func TestClearForChat(t *testing.T) {
	p := NewPresenter(&fakeOpen{}, &memFeed{}, 0, 0)
	p.Notify("c1", "Alice", "one")
	p.Notify("c2", "Bob", "two")
	p.Notify("c1", "Alice", "three")

	var cleared string
	p.OnClear(func(chatID string) { cleared = chatID })

	p.ClearForChat("c1")
	entries := p.Feed()
	require.Len(t, entries, 1)
	require.Equal(t, "c2", entries[0].ChatID)
	require.Equal(t, "c1", cleared)
}

func TestRemove(t *testing.T) {
	p := NewPresenter(&fakeOpen{}, &memFeed{}, 0, 0)
	p.Notify("c1", "Alice", "click me")
	id := p.Feed()[0].ID

	chatID, ok := p.Remove(id)
	require.True(t, ok)
	require.Equal(t, "c1", chatID)
	require.Empty(t, p.Feed())

	_, ok = p.Remove("missing")
	require.False(t, ok)
}
