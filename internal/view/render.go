// Package view renders HTML projections of the chat state. Fragments are
// pure functions of a snapshot: the browser swaps them wholesale instead
// of patching the DOM, so a re-render is always safe.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"jibber/internal/chat"
)

var funcs = template.FuncMap{
	"clock":   clock,
	"ticks":   ticks,
	"initial": initial,
	"ago":     ago,
}

// clock formats an epoch-ms timestamp as wall time in the server zone.
func clock(ms int64) string {
	return time.UnixMilli(ms).Format("15:04")
}

// ticks maps delivery state to the familiar glyphs. Incoming messages
// carry no state and render nothing.
func ticks(d chat.Delivery) string {
	switch d {
	case chat.DeliverySent:
		return "✓"
	case chat.DeliveryDelivered, chat.DeliveryRead:
		return "✓✓"
	default:
		return ""
	}
}

// initial is the avatar fallback when a chat has no emoji avatar.
func initial(c chat.Chat) string {
	if c.Avatar != "" {
		return c.Avatar
	}
	for _, r := range c.Name {
		return string(r)
	}
	return "?"
}

// ago renders a chat-list timestamp: wall time today, weekday within a
// week, date otherwise.
func ago(ms int64) string {
	t := time.UnixMilli(ms)
	now := time.Now()
	switch {
	case t.Year() == now.Year() && t.YearDay() == now.YearDay():
		return t.Format("15:04")
	case now.Sub(t) < 7*24*time.Hour:
		return t.Format("Mon")
	default:
		return t.Format("Jan 2")
	}
}

var listTmpl = template.Must(template.New("list").Funcs(funcs).Parse(`<div class="chat-list" id="chat-list">
{{- range .Chats}}
  <div class="chat-item{{if .Pinned}} pinned{{end}}{{if eq .ID $.OpenID}} active{{end}}" data-chat-id="{{.ID}}">
    <div class="avatar{{if .Online}} online{{end}}">{{initial .}}</div>
    <div class="chat-meta">
      <div class="chat-top">
        <span class="chat-name">{{.Name}}</span>
        <span class="chat-time">{{ago .LastActivity}}</span>
      </div>
      <div class="chat-bottom">
        <span class="chat-preview">{{.LastPreview}}</span>
        {{- if .Pinned}}<span class="pin-mark">📌</span>{{end}}
        {{- if gt .Unread 0}}<span class="badge">{{.Unread}}</span>{{end}}
      </div>
    </div>
  </div>
{{- end}}
{{- if not .Chats}}
  <div class="chat-empty">No conversations yet</div>
{{- end}}
</div>`))

var threadTmpl = template.Must(template.New("thread").Funcs(funcs).Parse(`<div class="thread" id="thread" data-chat-id="{{.Chat.ID}}">
  <div class="thread-header">
    <div class="avatar{{if .Chat.Online}} online{{end}}">{{initial .Chat}}</div>
    <div class="thread-title">
      <span class="thread-name">{{.Chat.Name}}</span>
      <span class="thread-status">{{if .Chat.Online}}online{{else}}{{.Chat.LastSeen}}{{end}}</span>
    </div>
    <div class="thread-actions">
      <button class="icon-btn" data-action="pin" title="Pin chat">{{if .Chat.Pinned}}📌{{else}}📍{{end}}</button>
    </div>
  </div>
  <div class="messages" id="messages">
{{- range .Messages}}
    <div class="bubble {{.Direction}}" data-msg-id="{{.ID}}">
      {{- if eq .Content "image"}}
      <img class="bubble-media" src="/media/{{.Body}}" alt="Photo" loading="lazy" />
      {{- else if or (eq .Content "audio") (eq .Content "voice-note")}}
      <audio class="bubble-media" controls src="/media/{{.Body}}"></audio>
      {{- else}}
      <span class="bubble-text">{{.Body}}</span>
      {{- end}}
      <span class="bubble-meta">{{clock .SentAt}}{{with ticks .Delivery}} <span class="tick {{$.TickClass .}}">{{.}}</span>{{end}}</span>
      {{- if .Reactions}}
      <span class="reactions">
        {{- range $sym, $n := .Reactions}}<button class="reaction" data-action="react" data-symbol="{{$sym}}">{{$sym}}{{if gt $n 1}} {{$n}}{{end}}</button>{{end -}}
      </span>
      {{- end}}
    </div>
{{- end}}
{{- if not .Messages}}
    <div class="thread-empty">{{.EmptyText}}</div>
{{- end}}
    <div class="typing-indicator{{if not .Typing}} hidden{{end}}" id="typing"><span></span><span></span><span></span></div>
  </div>
</div>`))

type threadData struct {
	Chat      chat.Chat
	Messages  []chat.Message
	Typing    bool
	EmptyText string
}

// TickClass distinguishes the read double-tick so CSS can color it.
func (threadData) TickClass(glyphs string) string {
	if glyphs == "✓✓" {
		return "tick-read"
	}
	return "tick-sent"
}

type listData struct {
	Chats  []chat.Chat
	OpenID string
}

// ChatList renders the sidebar. Chats come out pinned-first, then by
// recency, as OrderedChats defines.
func ChatList(snap *chat.Snapshot, openID string) (string, error) {
	var buf bytes.Buffer
	err := listTmpl.Execute(&buf, listData{Chats: snap.OrderedChats(), OpenID: openID})
	if err != nil {
		return "", fmt.Errorf("render chat list: %w", err)
	}
	return buf.String(), nil
}

// Thread renders the open conversation pane.
func Thread(c chat.Chat, msgs []chat.Message, typing bool) (string, error) {
	var buf bytes.Buffer
	err := threadTmpl.Execute(&buf, threadData{
		Chat:      c,
		Messages:  msgs,
		Typing:    typing,
		EmptyText: chat.EmptyPreview,
	})
	if err != nil {
		return "", fmt.Errorf("render thread: %w", err)
	}
	return buf.String(), nil
}
