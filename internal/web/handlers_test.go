package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"jibber/internal/chat"
	"jibber/internal/media"
	"jibber/internal/notify"
	"jibber/internal/reply"
	apperr "jibber/pkg/errors"
)

type memFeed struct {
	entries []notify.Entry
}

func (f *memFeed) SaveFeed(entries []notify.Entry) error {
	f.entries = append([]notify.Entry(nil), entries...)
	return nil
}

func (f *memFeed) LoadFeed() ([]notify.Entry, error) { return f.entries, nil }

type memBlobs struct {
	m map[string][]byte
}

func (b *memBlobs) SetRaw(key, val []byte) error {
	b.m[string(key)] = append([]byte(nil), val...)
	return nil
}

func (b *memBlobs) GetRaw(key []byte) ([]byte, bool) {
	v, ok := b.m[string(key)]
	return v, ok
}

type fixture struct {
	store  *chat.Store
	sim    *reply.Simulator
	server *Server
	ts     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := chat.NewStore(nil)
	sim := reply.NewSimulator(store, nil)
	presenter := notify.NewPresenter(store, &memFeed{}, notify.DefaultCap, notify.DefaultTTL)
	att := media.NewStore(&memBlobs{m: map[string][]byte{}})
	srv := NewServer(store, sim, presenter, att)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{store: store, sim: sim, server: srv, ts: ts}
}

func (f *fixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(f.ts.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeErr(t *testing.T, resp *http.Response) errBody {
	t.Helper()
	defer resp.Body.Close()
	var e errBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

func TestIndex_ServesShell(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateChat("Sarah Wilson", "S", chat.KindPersonal)
	require.NoError(t, err)

	resp, err := http.Get(f.ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(body)
	require.Contains(t, html, `data-theme="dark"`)
	require.Contains(t, html, "Sarah Wilson")
	require.Contains(t, html, `id="thread-slot"`)
}

func TestOpen_UnknownChat(t *testing.T) {
	f := newFixture(t)
	resp := f.post(t, "/api/open", map[string]string{"chat_id": "nope"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, apperr.CodeNotFound, decodeErr(t, resp).Code)
}

func TestCreateChat_Validation(t *testing.T) {
	f := newFixture(t)
	resp := f.post(t, "/api/chats", map[string]string{"name": "   "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, apperr.CodeValidation, decodeErr(t, resp).Code)
}

func TestCreateChat_SanitizesName(t *testing.T) {
	f := newFixture(t)
	resp := f.post(t, "/api/chats", map[string]string{"name": "<b>Eve</b>\u0000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c chat.Chat
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
	resp.Body.Close()
	require.Equal(t, "Eve", c.Name)
}

func TestSend_AppendsAndSchedulesReply(t *testing.T) {
	f := newFixture(t)
	f.sim.Tune(time.Millisecond, func(string) time.Duration { return time.Millisecond })
	c, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)

	resp := f.post(t, "/api/chats/"+c.ID+"/messages", map[string]string{"body": "hello there"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	resp.Body.Close()
	require.Equal(t, chat.DirOutgoing, m.Direction)

	require.Eventually(t, func() bool {
		return len(f.store.Messages(c.ID)) == 2
	}, time.Second, 5*time.Millisecond, "simulated reply never arrived")
}

func TestSend_BlankBody(t *testing.T) {
	f := newFixture(t)
	c, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)

	resp := f.post(t, "/api/chats/"+c.ID+"/messages", map[string]string{"body": "  \n "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	require.Empty(t, f.store.Messages(c.ID))
}

func TestPin_Toggles(t *testing.T) {
	f := newFixture(t)
	c, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)

	resp := f.post(t, "/api/chats/"+c.ID+"/pin", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	got, _ := f.store.GetChat(c.ID)
	require.True(t, got.Pinned)

	resp = f.post(t, "/api/chats/"+c.ID+"/pin", struct{}{})
	resp.Body.Close()
	got, _ = f.store.GetChat(c.ID)
	require.False(t, got.Pinned)
}

func TestMarkRead_ClearsCounter(t *testing.T) {
	f := newFixture(t)
	c, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)
	_, err = f.store.AppendMessage(c.ID, chat.Draft{Direction: chat.DirIncoming, Body: "ping"})
	require.NoError(t, err)
	got, _ := f.store.GetChat(c.ID)
	require.Equal(t, 1, got.Unread)

	resp := f.post(t, "/api/chats/"+c.ID+"/read", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	got, _ = f.store.GetChat(c.ID)
	require.Zero(t, got.Unread)
}

func TestEditDeleteReact(t *testing.T) {
	f := newFixture(t)
	c, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)
	m, err := f.store.AppendMessage(c.ID, chat.Draft{Direction: chat.DirOutgoing, Body: "typo"})
	require.NoError(t, err)

	resp := f.post(t, "/api/chats/"+c.ID+"/messages/"+m.ID+"/edit", map[string]string{"body": "fixed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, "fixed", f.store.Messages(c.ID)[0].Body)

	resp = f.post(t, "/api/chats/"+c.ID+"/messages/"+m.ID+"/react", map[string]string{"symbol": "👍"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, 1, f.store.Messages(c.ID)[0].Reactions["👍"])

	resp = f.post(t, "/api/chats/"+c.ID+"/messages/"+m.ID+"/delete", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Empty(t, f.store.Messages(c.ID))

	resp = f.post(t, "/api/chats/"+c.ID+"/messages/"+m.ID+"/delete", struct{}{})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestMediaUpload_RoundTrip(t *testing.T) {
	f := newFixture(t)
	c, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)

	payload := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	resp, err := http.Post(f.ts.URL+"/api/chats/"+c.ID+"/media?kind=image", "image/png", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	resp.Body.Close()
	require.Equal(t, chat.ContentImage, m.Content)
	require.True(t, strings.HasPrefix(m.Body, "att-"))

	got, _ := f.store.GetChat(c.ID)
	require.Equal(t, "📷 Photo", got.LastPreview)

	fetched, err := http.Get(f.ts.URL + "/media/" + m.Body)
	require.NoError(t, err)
	defer fetched.Body.Close()
	require.Equal(t, http.StatusOK, fetched.StatusCode)
	require.Equal(t, "image/png", fetched.Header.Get("Content-Type"))
	data, err := io.ReadAll(fetched.Body)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestMediaUpload_BadType(t *testing.T) {
	f := newFixture(t)
	c, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)

	resp, err := http.Post(f.ts.URL+"/api/chats/"+c.ID+"/media", "application/zip", strings.NewReader("zip"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	require.Empty(t, f.store.Messages(c.ID))
}

func TestMediaGet_Missing(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ts.URL + "/media/att-ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTheme_RoundTripAndValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/api/theme", map[string]string{"theme": "light"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, chat.ThemeLight, f.store.Theme())

	resp = f.post(t, "/api/theme", map[string]string{"theme": "solarized"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMediaError_Accepted(t *testing.T) {
	f := newFixture(t)
	resp := f.post(t, "/api/media/error", map[string]string{"kind": "media-permission"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestWebsocket_BootstrapFrames(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateChat("Sarah", "S", chat.KindPersonal)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	types := map[string]Frame{}
	for i := 0; i < 3; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame Frame
		require.NoError(t, conn.ReadJSON(&frame))
		types[frame.Type] = frame
	}
	require.Contains(t, types, "list")
	require.Contains(t, types, "theme")
	require.Contains(t, types["list"].HTML, "Sarah")
	require.Equal(t, "dark", types["theme"].Theme)
}

func TestWebsocket_ReceivesListAfterMutation(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// drain bootstrap (list + feed + theme for an empty store)
	for i := 0; i < 3; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame Frame
		require.NoError(t, conn.ReadJSON(&frame))
	}

	resp := f.post(t, "/api/chats", map[string]string{"name": "Mike Chen"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "list", frame.Type)
	require.Contains(t, frame.HTML, "Mike Chen")
}
