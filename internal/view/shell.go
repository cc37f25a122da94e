package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"jibber/internal/chat"
	"jibber/internal/notify"
)

var feedTmpl = template.Must(template.New("feed").Funcs(funcs).Parse(`<div class="feed" id="feed">
  <div class="feed-header">
    <span>Notifications</span>
    {{- if .}}<button class="icon-btn" data-action="feed-clear-all" title="Clear all">🗑</button>{{end}}
  </div>
{{- range .}}
  <div class="feed-entry{{if .Read}} read{{end}}" data-entry-id="{{.ID}}" data-chat-id="{{.ChatID}}">
    <div class="feed-body">
      <span class="feed-sender">{{.Sender}}</span>
      <span class="feed-text">{{.Message}}</span>
    </div>
    <span class="feed-time">{{ago .Timestamp}}</span>
    <button class="icon-btn feed-remove" data-action="feed-remove" title="Dismiss">✕</button>
  </div>
{{- end}}
{{- if not .}}
  <div class="feed-empty">All caught up</div>
{{- end}}
</div>`))

// FeedPanel renders the notification drawer, newest first.
func FeedPanel(entries []notify.Entry) (string, error) {
	var buf bytes.Buffer
	if err := feedTmpl.Execute(&buf, entries); err != nil {
		return "", fmt.Errorf("render feed: %w", err)
	}
	return buf.String(), nil
}

type ShellData struct {
	Title  string
	Theme  chat.Theme
	List   template.HTML
	Thread template.HTML
	Feed   template.HTML
	Unseen int
}

// Shell writes the full page. Served once per page load; everything after
// that arrives as fragments over the websocket.
func Shell(w io.Writer, data ShellData) error {
	if data.Title == "" {
		data.Title = "Jibber"
	}
	if data.Theme == "" {
		data.Theme = chat.ThemeDark
	}
	return shellTmpl.Execute(w, data)
}

var shellTmpl = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en" data-theme="{{.Theme}}">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1, viewport-fit=cover" />
  <title>{{.Title}}</title>
  <style>
    :root{
      --bg:#0d1117; --panel:#111827; --border:#1f2937; --fg:#e5e7eb;
      --muted:#9ca3af; --accent:#22c55e; --bubble-out:#065f46; --bubble-in:#1f2937;
      --danger:#ef4444;
    }
    [data-theme="light"]{
      --bg:#f3f4f6; --panel:#ffffff; --border:#d1d5db; --fg:#111827;
      --muted:#6b7280; --accent:#059669; --bubble-out:#d1fae5; --bubble-in:#e5e7eb;
    }
    *{ box-sizing:border-box }
    body{ margin:0; height:100vh; display:flex; background:var(--bg); color:var(--fg);
      font-family:ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial }
    .sidebar{ width:320px; min-width:240px; border-right:1px solid var(--border);
      background:var(--panel); display:flex; flex-direction:column }
    .sidebar-bar{ display:flex; align-items:center; gap:8px; padding:12px; border-bottom:1px solid var(--border) }
    .sidebar-bar h1{ margin:0; font-size:18px; flex:1 }
    .icon-btn{ background:transparent; border:1px solid var(--border); color:var(--fg);
      border-radius:6px; padding:4px 8px; cursor:pointer; font-size:14px }
    .icon-btn:hover{ border-color:var(--accent) }
    .bell{ position:relative }
    .bell .badge{ position:absolute; top:-6px; right:-6px }
    .chat-list{ flex:1; overflow-y:auto }
    .chat-item{ display:flex; gap:10px; padding:10px 12px; cursor:pointer; border-bottom:1px solid var(--border) }
    .chat-item:hover{ background:rgba(128,128,128,.08) }
    .chat-item.active{ background:rgba(34,197,94,.12) }
    .avatar{ width:40px; height:40px; border-radius:50%; background:var(--border);
      display:flex; align-items:center; justify-content:center; font-size:20px; position:relative; flex-shrink:0 }
    .avatar.online::after{ content:''; position:absolute; bottom:0; right:0; width:10px; height:10px;
      border-radius:50%; background:var(--accent); border:2px solid var(--panel) }
    .chat-meta{ flex:1; min-width:0 }
    .chat-top,.chat-bottom{ display:flex; align-items:center; justify-content:space-between; gap:6px }
    .chat-name{ font-weight:600; white-space:nowrap; overflow:hidden; text-overflow:ellipsis }
    .chat-time{ font-size:12px; color:var(--muted); flex-shrink:0 }
    .chat-preview{ font-size:13px; color:var(--muted); white-space:nowrap; overflow:hidden; text-overflow:ellipsis }
    .badge{ background:var(--accent); color:#fff; border-radius:10px; padding:1px 7px; font-size:12px; flex-shrink:0 }
    .chat-empty,.thread-empty,.feed-empty{ padding:24px; text-align:center; color:var(--muted) }
    .main{ flex:1; display:flex; flex-direction:column; min-width:0 }
    .thread{ flex:1; display:flex; flex-direction:column; min-height:0 }
    .thread-header{ display:flex; align-items:center; gap:10px; padding:10px 14px; border-bottom:1px solid var(--border); background:var(--panel) }
    .thread-title{ flex:1; display:flex; flex-direction:column }
    .thread-name{ font-weight:600 }
    .thread-status{ font-size:12px; color:var(--muted) }
    .messages{ flex:1; overflow-y:auto; padding:14px; display:flex; flex-direction:column; gap:8px }
    .bubble{ max-width:70%; padding:8px 12px; border-radius:12px; position:relative }
    .bubble.outgoing{ align-self:flex-end; background:var(--bubble-out) }
    .bubble.incoming{ align-self:flex-start; background:var(--bubble-in) }
    .bubble.system{ align-self:center; background:transparent; color:var(--muted); font-size:13px }
    .bubble-text{ white-space:pre-wrap; word-break:break-word }
    .bubble-media{ max-width:100%; border-radius:8px; display:block }
    .bubble-meta{ display:block; text-align:right; font-size:11px; color:var(--muted); margin-top:2px }
    .tick-read{ color:#38bdf8 }
    .reactions{ display:flex; gap:4px; margin-top:4px }
    .reaction{ background:var(--panel); border:1px solid var(--border); border-radius:10px;
      padding:0 6px; cursor:pointer; font-size:13px; color:var(--fg) }
    .typing-indicator{ align-self:flex-start; display:flex; gap:4px; padding:10px 14px;
      background:var(--bubble-in); border-radius:12px }
    .typing-indicator span{ width:6px; height:6px; border-radius:50%; background:var(--muted);
      animation:blink 1.2s infinite }
    .typing-indicator span:nth-child(2){ animation-delay:.2s }
    .typing-indicator span:nth-child(3){ animation-delay:.4s }
    .typing-indicator.hidden{ display:none }
    @keyframes blink{ 0%,100%{opacity:.2} 50%{opacity:1} }
    .composer{ display:flex; gap:8px; padding:10px 14px; border-top:1px solid var(--border); background:var(--panel) }
    .composer input[type=text]{ flex:1; background:var(--bg); border:1px solid var(--border);
      color:var(--fg); border-radius:8px; padding:10px 12px; font-size:14px }
    .composer button{ background:var(--accent); border:none; color:#fff; border-radius:8px;
      padding:0 16px; cursor:pointer; font-size:14px }
    .composer .icon-btn{ background:transparent; color:var(--fg) }
    .placeholder{ flex:1; display:flex; align-items:center; justify-content:center; color:var(--muted) }
    .feed-wrap{ position:absolute; top:52px; left:12px; width:320px; z-index:20;
      border:1px solid var(--border); border-radius:10px; background:var(--panel);
      box-shadow:0 8px 24px rgba(0,0,0,.4); display:none; max-height:60vh; overflow-y:auto }
    .feed-wrap.open{ display:block }
    .feed-header{ display:flex; justify-content:space-between; align-items:center;
      padding:10px 12px; border-bottom:1px solid var(--border); font-weight:600 }
    .feed-entry{ display:flex; align-items:center; gap:8px; padding:10px 12px;
      border-bottom:1px solid var(--border); cursor:pointer }
    .feed-entry:hover{ background:rgba(128,128,128,.08) }
    .feed-body{ flex:1; min-width:0; display:flex; flex-direction:column }
    .feed-sender{ font-weight:600; font-size:13px }
    .feed-text{ font-size:13px; color:var(--muted); white-space:nowrap; overflow:hidden; text-overflow:ellipsis }
    .feed-time{ font-size:11px; color:var(--muted) }
    .toasts{ position:fixed; top:16px; right:16px; display:flex; flex-direction:column; gap:8px; z-index:50 }
    .toast{ background:var(--panel); border:1px solid var(--border); border-left:3px solid var(--accent);
      border-radius:8px; padding:10px 14px; min-width:220px; cursor:pointer;
      box-shadow:0 4px 16px rgba(0,0,0,.3) }
    .toast .feed-sender{ display:block }
    dialog{ background:var(--panel); color:var(--fg); border:1px solid var(--border); border-radius:10px }
  </style>
</head>
<body>
  <div class="sidebar">
    <div class="sidebar-bar">
      <h1>{{.Title}}</h1>
      <button class="icon-btn bell" id="bell" title="Notifications">🔔{{if gt .Unseen 0}}<span class="badge" id="bell-badge">{{.Unseen}}</span>{{end}}</button>
      <button class="icon-btn" id="theme-toggle" title="Toggle theme">🌓</button>
      <button class="icon-btn" id="new-chat" title="New chat">✚</button>
    </div>
    <div id="list-slot">{{.List}}</div>
    <div class="feed-wrap" id="feed-wrap">{{.Feed}}</div>
  </div>
  <div class="main">
    <div id="thread-slot">{{if .Thread}}{{.Thread}}{{else}}<div class="placeholder">Select a conversation</div>{{end}}</div>
    <div class="composer" id="composer" {{if not .Thread}}style="display:none"{{end}}>
      <button class="icon-btn" id="attach-image" title="Send photo">📷</button>
      <button class="icon-btn" id="record-voice" title="Record voice note">🎤</button>
      <input type="file" id="image-input" accept="image/*" style="display:none" />
      <input type="text" id="draft" placeholder="Type a message" autocomplete="off" />
      <button id="send">Send</button>
    </div>
  </div>
  <div class="toasts" id="toasts"></div>

  <script>
  (function(){
    'use strict';
    var listSlot = document.getElementById('list-slot');
    var threadSlot = document.getElementById('thread-slot');
    var feedWrap = document.getElementById('feed-wrap');
    var composer = document.getElementById('composer');
    var draft = document.getElementById('draft');
    var toasts = document.getElementById('toasts');
    var recorder = null;

    function api(path, body){
      return fetch(path, {
        method: 'POST',
        headers: {'Content-Type': 'application/json'},
        body: body ? JSON.stringify(body) : null
      }).then(function(res){
        if (!res.ok) return res.json().then(function(e){
          showToast('Jibber', e.message || 'Something went wrong');
          throw e;
        });
        return res;
      });
    }

    function openChatID(){
      var t = threadSlot.querySelector('.thread');
      return t ? t.dataset.chatId : '';
    }

    function scrollToBottom(){
      var m = document.getElementById('messages');
      if (m) m.scrollTop = m.scrollHeight;
    }

    // --- websocket fragment stream -----------------------------------
    var ws, retry = 500;
    function connect(){
      var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
      ws = new WebSocket(proto + location.host + '/ws');
      ws.onopen = function(){ retry = 500; };
      ws.onmessage = function(ev){
        var f = JSON.parse(ev.data);
        switch (f.type) {
        case 'list':
          listSlot.innerHTML = f.html;
          break;
        case 'thread':
          if (f.chat_id === openChatID() || !openChatID()) {
            threadSlot.innerHTML = f.html;
            composer.style.display = '';
            scrollToBottom();
          }
          break;
        case 'close':
          threadSlot.innerHTML = '<div class="placeholder">Select a conversation</div>';
          composer.style.display = 'none';
          break;
        case 'typing':
          var ind = document.getElementById('typing');
          if (ind && f.chat_id === openChatID()) {
            ind.classList.toggle('hidden', !f.typing);
            scrollToBottom();
          }
          break;
        case 'theme':
          document.documentElement.dataset.theme = f.theme;
          break;
        case 'feed':
          feedWrap.innerHTML = f.html;
          updateBell(f.unread);
          break;
        case 'toast':
          showToast(f.toast.sender_name, f.toast.message, f.toast.chat_id);
          break;
        }
      };
      ws.onclose = function(){
        setTimeout(connect, retry);
        retry = Math.min(retry * 2, 10000);
      };
    }
    connect();

    function updateBell(n){
      var bell = document.getElementById('bell');
      var badge = document.getElementById('bell-badge');
      if (n > 0) {
        if (!badge) {
          badge = document.createElement('span');
          badge.className = 'badge';
          badge.id = 'bell-badge';
          bell.appendChild(badge);
        }
        badge.textContent = n;
      } else if (badge) {
        badge.remove();
      }
    }

    function showToast(sender, text, chatID){
      var el = document.createElement('div');
      el.className = 'toast';
      var s = document.createElement('span');
      s.className = 'feed-sender';
      s.textContent = sender;
      var b = document.createElement('span');
      b.className = 'feed-text';
      b.textContent = text;
      el.appendChild(s);
      el.appendChild(b);
      if (chatID) el.onclick = function(){ api('/api/open', {chat_id: chatID}); el.remove(); };
      toasts.appendChild(el);
      setTimeout(function(){ el.remove(); }, 5000);
    }

    // --- sidebar -----------------------------------------------------
    listSlot.addEventListener('click', function(ev){
      var item = ev.target.closest('.chat-item');
      if (item) api('/api/open', {chat_id: item.dataset.chatId});
    });

    document.getElementById('bell').addEventListener('click', function(){
      feedWrap.classList.toggle('open');
    });

    feedWrap.addEventListener('click', function(ev){
      var rm = ev.target.closest('[data-action="feed-remove"]');
      if (rm) {
        ev.stopPropagation();
        api('/api/notifications/remove', {id: rm.closest('.feed-entry').dataset.entryId});
        return;
      }
      if (ev.target.closest('[data-action="feed-clear-all"]')) {
        api('/api/notifications/clear', {});
        return;
      }
      var entry = ev.target.closest('.feed-entry');
      if (entry) {
        api('/api/open', {chat_id: entry.dataset.chatId});
        feedWrap.classList.remove('open');
      }
    });

    document.getElementById('theme-toggle').addEventListener('click', function(){
      var next = document.documentElement.dataset.theme === 'dark' ? 'light' : 'dark';
      api('/api/theme', {theme: next});
    });

    document.getElementById('new-chat').addEventListener('click', function(){
      var name = prompt('Contact name');
      if (name === null) return;
      api('/api/chats', {name: name});
    });

    // --- thread ------------------------------------------------------
    threadSlot.addEventListener('click', function(ev){
      var chatID = openChatID();
      if (ev.target.closest('[data-action="pin"]')) {
        api('/api/chats/' + chatID + '/pin', {});
        return;
      }
      var react = ev.target.closest('[data-action="react"]');
      if (react) {
        api('/api/chats/' + chatID + '/messages/' + react.closest('.bubble').dataset.msgId + '/react',
          {symbol: react.dataset.symbol});
        return;
      }
      var bubble = ev.target.closest('.bubble.outgoing');
      if (bubble && ev.detail === 2) {
        editMessage(chatID, bubble);
      }
    });

    threadSlot.addEventListener('contextmenu', function(ev){
      var bubble = ev.target.closest('.bubble');
      if (!bubble) return;
      ev.preventDefault();
      var chatID = openChatID();
      var choice = prompt('Type: react <emoji> | edit <text> | delete');
      if (!choice) return;
      var msgID = bubble.dataset.msgId;
      if (choice === 'delete') {
        api('/api/chats/' + chatID + '/messages/' + msgID + '/delete', {});
      } else if (choice.indexOf('react ') === 0) {
        api('/api/chats/' + chatID + '/messages/' + msgID + '/react', {symbol: choice.slice(6).trim()});
      } else if (choice.indexOf('edit ') === 0) {
        api('/api/chats/' + chatID + '/messages/' + msgID + '/edit', {body: choice.slice(5)});
      }
    });

    function editMessage(chatID, bubble){
      var cur = bubble.querySelector('.bubble-text');
      var next = prompt('Edit message', cur ? cur.textContent : '');
      if (next === null) return;
      api('/api/chats/' + chatID + '/messages/' + bubble.dataset.msgId + '/edit', {body: next});
    }

    // --- composer ----------------------------------------------------
    function send(){
      var text = draft.value;
      if (!text.trim()) return;
      var chatID = openChatID();
      if (!chatID) return;
      draft.value = '';
      api('/api/chats/' + chatID + '/messages', {body: text});
    }
    document.getElementById('send').addEventListener('click', send);
    draft.addEventListener('keydown', function(ev){
      if (ev.key === 'Enter' && !ev.shiftKey) { ev.preventDefault(); send(); }
    });

    // --- media capture -----------------------------------------------
    function mediaError(err){
      var kind = 'media-other';
      if (err && (err.name === 'NotAllowedError' || err.name === 'SecurityError')) kind = 'media-permission';
      else if (err && (err.name === 'NotFoundError' || err.name === 'OverconstrainedError')) kind = 'media-no-device';
      api('/api/media/error', {kind: kind});
    }

    var imageInput = document.getElementById('image-input');
    document.getElementById('attach-image').addEventListener('click', function(){
      imageInput.click();
    });
    imageInput.addEventListener('change', function(){
      var file = imageInput.files[0];
      imageInput.value = '';
      if (!file) return;
      uploadMedia(file, file.type, 'image');
    });

    document.getElementById('record-voice').addEventListener('click', function(){
      if (recorder) { recorder.stop(); return; }
      if (!navigator.mediaDevices) { mediaError({name: 'NotFoundError'}); return; }
      navigator.mediaDevices.getUserMedia({audio: true}).then(function(stream){
        var chunks = [];
        recorder = new MediaRecorder(stream);
        recorder.ondataavailable = function(ev){ chunks.push(ev.data); };
        recorder.onstop = function(){
          stream.getTracks().forEach(function(t){ t.stop(); });
          recorder = null;
          uploadMedia(new Blob(chunks, {type: 'audio/webm'}), 'audio/webm', 'voice-note');
        };
        recorder.start();
        showToast('Jibber', 'Recording… tap 🎤 again to send');
      }).catch(mediaError);
    });

    function uploadMedia(blob, mime, kind){
      var chatID = openChatID();
      if (!chatID) return;
      fetch('/api/chats/' + chatID + '/media?kind=' + kind, {
        method: 'POST',
        headers: {'Content-Type': mime},
        body: blob
      }).then(function(res){
        if (!res.ok) return res.json().then(function(e){
          showToast('Jibber', e.message || 'Upload failed');
        });
      });
    }
  })();
  </script>
</body>
</html>`))
