package web

import (
	"encoding/json"
	htmltmpl "html/template"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"jibber/internal/chat"
	"jibber/internal/media"
	"jibber/internal/view"
	apperr "jibber/pkg/errors"
)

type errBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func writeErr(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeMediaAccess:
		status = http.StatusForbidden
	case apperr.CodeExternalService:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errBody{Code: code, Message: err.Error()})
}

func writeOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		v = map[string]bool{"ok": true}
	}
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("malformed request body")
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := view.ShellData{Title: s.title, Theme: s.store.Theme()}

	if html, err := view.ChatList(s.store.Snapshot(), s.store.OpenChat()); err == nil {
		data.List = htmltmpl.HTML(html)
	}
	if open := s.store.OpenChat(); open != "" {
		if c, ok := s.store.GetChat(open); ok {
			if html, err := view.Thread(c, s.store.Messages(open), false); err == nil {
				data.Thread = htmltmpl.HTML(html)
			}
		}
	}
	if s.presenter != nil {
		entries := s.presenter.Feed()
		if html, err := view.FeedPanel(entries); err == nil {
			data.Feed = htmltmpl.HTML(html)
			data.Unseen = len(entries)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.Shell(w, data); err != nil {
		log.Error().Err(err).Msg("[web] shell render failed")
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.Open(req.ChatID); err != nil {
		writeErr(w, err)
		return
	}
	if s.presenter != nil {
		s.presenter.ClearForChat(req.ChatID)
	}
	writeOK(w, nil)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.store.Close()
	writeOK(w, nil)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme chat.Theme `json:"theme"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.SetTheme(req.Theme); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string    `json:"name"`
		Avatar string    `json:"avatar"`
		Kind   chat.Kind `json:"kind"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	c, err := s.store.CreateChat(cleanName(req.Name), req.Avatar, req.Kind)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, c)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	m, err := s.store.AppendMessage(chatID, chat.Draft{
		Direction: chat.DirOutgoing,
		Content:   chat.ContentText,
		Body:      cleanBody(req.Body),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if s.sim != nil {
		s.sim.Schedule(chatID, m)
	}
	writeOK(w, m)
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	c, ok := s.store.GetChat(chatID)
	if !ok {
		writeErr(w, apperr.ErrChatNotFound)
		return
	}
	if err := s.store.SetPinned(chatID, !c.Pinned); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

// handleMarkRead zeroes the unread counter without opening the chat
// (swipe action in the list). Idempotent like the store op.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	s.store.MarkRead(chatID)
	if s.presenter != nil {
		s.presenter.ClearForChat(chatID)
	}
	writeOK(w, nil)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	err := s.store.EditMessage(chi.URLParam(r, "chatID"), chi.URLParam(r, "msgID"), cleanBody(req.Body))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteMessage(chi.URLParam(r, "chatID"), chi.URLParam(r, "msgID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	err := s.store.AddReaction(chi.URLParam(r, "chatID"), chi.URLParam(r, "msgID"), req.Symbol)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if _, ok := s.store.GetChat(chatID); !ok {
		writeErr(w, apperr.ErrChatNotFound)
		return
	}

	content := chat.ContentImage
	switch r.URL.Query().Get("kind") {
	case "voice-note":
		content = chat.ContentVoice
	case "audio":
		content = chat.ContentAudio
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, media.MaxBytes+1))
	if err != nil {
		writeErr(w, apperr.ErrMediaTooLarge)
		return
	}
	handle, err := s.media.Put(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeErr(w, err)
		return
	}

	m, err := s.store.AppendMessage(chatID, chat.Draft{
		Direction: chat.DirOutgoing,
		Content:   content,
		Body:      handle,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if s.sim != nil {
		s.sim.Schedule(chatID, m)
	}
	writeOK(w, m)
}

func (s *Server) handleMediaGet(w http.ResponseWriter, r *http.Request) {
	data, mime, err := s.media.Get(chi.URLParam(r, "handle"))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = w.Write(data)
}

// handleMediaError receives capture failures from the browser. The
// failure happened client-side; the server's job is to log it and show
// the explanatory toast everywhere.
func (s *Server) handleMediaError(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	var cause error
	switch req.Kind {
	case "media-permission":
		cause = apperr.ErrMediaPermission
	case "media-no-device":
		cause = apperr.ErrMediaNoDevice
	default:
		cause = apperr.ErrMediaOther
	}
	log.Warn().Err(cause).Msg("[web] media capture failed in browser")
	s.hub.broadcast(Frame{Type: "toast", Toast: &Toast{Sender: s.title, Message: cause.Error()}})
	writeOK(w, nil)
}

func (s *Server) handleFeedRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	s.presenter.Remove(req.ID)
	s.pushFeed()
	writeOK(w, nil)
}

func (s *Server) handleFeedClear(w http.ResponseWriter, r *http.Request) {
	seen := map[string]struct{}{}
	for _, e := range s.presenter.Feed() {
		if _, dup := seen[e.ChatID]; dup {
			continue
		}
		seen[e.ChatID] = struct{}{}
		s.presenter.ClearForChat(e.ChatID)
	}
	writeOK(w, nil)
}
