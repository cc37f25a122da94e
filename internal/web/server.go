// Package web serves the messenger UI: one HTML shell, a REST surface
// for mutations, and a websocket pushing re-rendered fragments after
// every state change.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"jibber/internal/chat"
	"jibber/internal/media"
	"jibber/internal/notify"
	"jibber/internal/reply"
	"jibber/internal/view"
)

type Server struct {
	store     *chat.Store
	sim       *reply.Simulator
	presenter *notify.Presenter
	media     *media.Store
	hub       *hub
	title     string
}

func NewServer(store *chat.Store, sim *reply.Simulator, presenter *notify.Presenter, att *media.Store) *Server {
	s := &Server{
		store:     store,
		sim:       sim,
		presenter: presenter,
		media:     att,
		hub:       newHub(),
		title:     "Jibber",
	}
	s.hub.bootstrap = s.bootstrapFrames

	store.Subscribe(s.onStoreEvent)
	if sim != nil {
		sim.OnTyping(func(chatID string, typing bool) {
			s.hub.broadcast(Frame{Type: "typing", ChatID: chatID, Typing: typing})
		})
	}
	if presenter != nil {
		presenter.OnToast(func(e notify.Entry) {
			s.hub.broadcast(Frame{Type: "toast", Toast: &Toast{
				ChatID: e.ChatID, Sender: e.Sender, Message: e.Message,
			}})
			s.pushFeed()
		})
		presenter.OnClear(func(string) { s.pushFeed() })
	}
	return s
}

// onStoreEvent re-renders the affected fragments and fans them out.
// Listeners run inside the mutating call, so frames always reflect the
// state the mutation produced.
func (s *Server) onStoreEvent(ev chat.Event) {
	switch ev.Kind {
	case chat.EventList:
		s.pushList()
	case chat.EventThread:
		if s.store.OpenChat() == ev.ChatID {
			s.pushThread(ev.ChatID, false)
		}
	case chat.EventOpen:
		if open := s.store.OpenChat(); open != "" {
			s.pushThread(open, false)
		} else {
			s.hub.broadcast(Frame{Type: "close", ChatID: ev.ChatID})
		}
		s.pushList()
	case chat.EventTheme:
		s.hub.broadcast(Frame{Type: "theme", Theme: string(s.store.Theme())})
	case chat.EventIncoming:
		if s.presenter != nil && ev.Message != nil {
			if c, ok := s.store.GetChat(ev.ChatID); ok {
				s.presenter.Notify(ev.ChatID, c.Name, snippet(ev.Message))
			}
		}
	}
}

// snippet is the notification body for a message, mirroring chat-list
// previews for non-text content.
func snippet(m *chat.Message) string {
	switch m.Content {
	case chat.ContentImage:
		return "📷 Photo"
	case chat.ContentAudio:
		return "🎵 Audio"
	case chat.ContentVoice:
		return "🎤 Voice message"
	default:
		return m.Body
	}
}

func (s *Server) pushList() {
	html, err := view.ChatList(s.store.Snapshot(), s.store.OpenChat())
	if err != nil {
		log.Error().Err(err).Msg("[web] chat list render failed")
		return
	}
	s.hub.broadcast(Frame{Type: "list", HTML: html})
}

func (s *Server) pushThread(chatID string, typing bool) {
	c, ok := s.store.GetChat(chatID)
	if !ok {
		return
	}
	html, err := view.Thread(c, s.store.Messages(chatID), typing)
	if err != nil {
		log.Error().Err(err).Msg("[web] thread render failed")
		return
	}
	s.hub.broadcast(Frame{Type: "thread", ChatID: chatID, HTML: html})
}

func (s *Server) pushFeed() {
	entries := s.presenter.Feed()
	html, err := view.FeedPanel(entries)
	if err != nil {
		log.Error().Err(err).Msg("[web] feed render failed")
		return
	}
	s.hub.broadcast(Frame{Type: "feed", HTML: html, Unread: len(entries)})
}

// bootstrapFrames catches a fresh websocket connection up to current state.
func (s *Server) bootstrapFrames() []Frame {
	frames := make([]Frame, 0, 4)
	if html, err := view.ChatList(s.store.Snapshot(), s.store.OpenChat()); err == nil {
		frames = append(frames, Frame{Type: "list", HTML: html})
	}
	if open := s.store.OpenChat(); open != "" {
		if c, ok := s.store.GetChat(open); ok {
			if html, err := view.Thread(c, s.store.Messages(open), false); err == nil {
				frames = append(frames, Frame{Type: "thread", ChatID: open, HTML: html})
			}
		}
	}
	if s.presenter != nil {
		entries := s.presenter.Feed()
		if html, err := view.FeedPanel(entries); err == nil {
			frames = append(frames, Frame{Type: "feed", HTML: html, Unread: len(entries)})
		}
	}
	frames = append(frames, Frame{Type: "theme", Theme: string(s.store.Theme())})
	return frames
}

// CloseConns shuts down all websocket connections and waits for their
// handlers. Called during graceful shutdown.
func (s *Server) CloseConns() {
	s.hub.closeAll()
	s.hub.wait()
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/ws", s.hub.handleWS)
	r.Get("/media/{handle}", s.handleMediaGet)

	r.Route("/api", func(r chi.Router) {
		r.Post("/open", s.handleOpen)
		r.Post("/close", s.handleClose)
		r.Post("/theme", s.handleTheme)
		r.Post("/media/error", s.handleMediaError)
		r.Post("/notifications/remove", s.handleFeedRemove)
		r.Post("/notifications/clear", s.handleFeedClear)

		r.Post("/chats", s.handleCreateChat)
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Post("/messages", s.handleSend)
			r.Post("/pin", s.handlePin)
			r.Post("/read", s.handleMarkRead)
			r.Post("/media", s.handleMediaUpload)
			r.Route("/messages/{msgID}", func(r chi.Router) {
				r.Post("/edit", s.handleEdit)
				r.Post("/delete", s.handleDelete)
				r.Post("/react", s.handleReact)
			})
		})
	})
	return r
}
