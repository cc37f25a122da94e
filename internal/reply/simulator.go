// Package reply fakes the other side of a conversation. Every outgoing
// user message schedules exactly one canned (or generated) incoming reply
// after a typing delay proportional to the prompt length.
package reply

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"jibber/internal/assistant"
	"jibber/internal/chat"
)

const (
	// Typing delay: base + jitter + per-rune reading time, capped.
	delayBase    = 800 * time.Millisecond
	delayJitter  = 1200 * time.Millisecond
	delayPerRune = 10 * time.Millisecond
	delayCap     = 3 * time.Second

	// How long a fresh outgoing message stays single-ticked.
	deliverAfter = 500 * time.Millisecond

	// How much recent history the generator sees.
	historyWindow = 10
)

var (
	greetingRe  = regexp.MustCompile(`(?i)\b(hello|hi|hey)\b`)
	howAreYouRe = regexp.MustCompile(`(?i)how are you`)
)

var questionReplies = []string{
	"That's a good question! Let me think...",
	"I'm not sure about that, but I can find out.",
	"Interesting question! What made you ask that?",
	"I'd need to check on that and get back to you.",
	"That depends on a few factors, actually.",
}

var shortReplies = []string{
	"Okay!",
	"Got it!",
	"I see!",
	"Alright!",
	"Sure!",
}

var generalReplies = []string{
	"That's interesting!",
	"I see what you mean",
	"Let me think about that...",
	"Thanks for sharing!",
	"I agree with you",
	"That makes sense",
	"Tell me more about that",
	"I appreciate your perspective",
	"That's a good point",
	"I understand completely",
}

// Generator produces a reply for assistant chats. *assistant.Client
// satisfies this; tests plug in fakes.
type Generator interface {
	Generate(ctx context.Context, turns []assistant.Turn) (string, error)
}

type Simulator struct {
	store   *chat.Store
	gen     Generator // nil means canned replies only
	timeout time.Duration

	// test seams
	delayFn   func(body string) time.Duration
	deliverIn time.Duration
	onTyping  func(chatID string, typing bool)

	mu      sync.Mutex
	// seen holds every trigger message id ever scheduled, in flight or
	// settled, so a trigger can never fire twice. Triggers are bounded by
	// the session's message count, so the map is never pruned.
	seen map[string]struct{}
	rng     *rand.Rand
	wg      sync.WaitGroup
}

func NewSimulator(store *chat.Store, gen Generator) *Simulator {
	return &Simulator{
		store:     store,
		gen:       gen,
		timeout:   assistant.DefaultTimeout,
		delayFn:   Delay,
		deliverIn: deliverAfter,
		seen:      make(map[string]struct{}),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnTyping installs a callback fired when the fake correspondent starts
// and stops typing. Called from the reply goroutine.
func (s *Simulator) OnTyping(fn func(chatID string, typing bool)) {
	s.onTyping = fn
}

// Tune overrides reply pacing. Zero values keep the current settings.
func (s *Simulator) Tune(deliverIn time.Duration, delayFn func(body string) time.Duration) {
	if deliverIn > 0 {
		s.deliverIn = deliverIn
	}
	if delayFn != nil {
		s.delayFn = delayFn
	}
}

// Delay computes the typing time for a prompt.
func Delay(body string) time.Duration {
	d := delayBase + time.Duration(rand.Int63n(int64(delayJitter))) +
		time.Duration(len([]rune(body)))*delayPerRune
	if d > delayCap {
		d = delayCap
	}
	return d
}

// Schedule queues a single incoming reply to the given outgoing message.
// Scheduling the same trigger twice is a no-op, as is a trigger in a chat
// that no longer exists by the time the reply fires.
func (s *Simulator) Schedule(chatID string, trigger *chat.Message) {
	s.mu.Lock()
	if _, dup := s.seen[trigger.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[trigger.ID] = struct{}{}
	s.mu.Unlock()

	body := trigger.Body
	triggerID := trigger.ID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		time.Sleep(s.deliverIn)
		s.store.MarkDelivered(chatID, triggerID)

		if s.onTyping != nil {
			s.onTyping(chatID, true)
		}
		time.Sleep(s.delayFn(body))
		if s.onTyping != nil {
			s.onTyping(chatID, false)
		}

		c, ok := s.store.GetChat(chatID)
		if !ok {
			return
		}

		text := s.compose(c, body)
		if _, err := s.store.AppendMessage(chatID, chat.Draft{
			Direction: chat.DirIncoming,
			Body:      text,
		}); err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("simulated reply dropped")
		}
	}()
}

// Wait blocks until all in-flight replies have landed. Used by shutdown
// and tests.
func (s *Simulator) Wait() {
	s.wg.Wait()
}

func (s *Simulator) compose(c chat.Chat, prompt string) string {
	if c.Kind == chat.KindAssistant && s.gen != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		out, err := s.gen.Generate(ctx, s.history(c.ID))
		if err == nil {
			return out
		}
		log.Warn().Err(err).Str("chat_id", c.ID).Msg("generation failed, using canned reply")
	}
	return s.pick(prompt)
}

// history projects the chat tail into generator turns, oldest first.
func (s *Simulator) history(chatID string) []assistant.Turn {
	msgs := s.store.Messages(chatID)
	if len(msgs) > historyWindow {
		msgs = msgs[len(msgs)-historyWindow:]
	}
	turns := make([]assistant.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Content != chat.ContentText {
			continue
		}
		role := "assistant"
		if m.Direction == chat.DirOutgoing {
			role = "user"
		}
		turns = append(turns, assistant.Turn{Role: role, Content: m.Body})
	}
	return turns
}

func (s *Simulator) pick(prompt string) string {
	switch {
	case howAreYouRe.MatchString(prompt):
		return "Doing well, you?"
	case greetingRe.MatchString(prompt):
		return "Hey! 👋"
	case strings.Contains(prompt, "?"):
		return s.choose(questionReplies)
	case len([]rune(prompt)) < 10:
		return s.choose(shortReplies)
	default:
		return s.choose(generalReplies)
	}
}

func (s *Simulator) choose(pool []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pool[s.rng.Intn(len(pool))]
}
