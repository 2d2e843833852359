// Package services – MessagingService
//
// MessagingService keeps the user's chats with catalog specialists. Sending a
// message is two-phase: the user message is appended and persisted
// synchronously, then a single specialist reply is appended after
// ReplyDelay by a background goroutine. Replies never trigger replies.
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-trademark-backend/internal/catalog"
	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/observability"
	"github.com/tbourn/go-trademark-backend/internal/repo"
)

const (
	// WelcomeText seeds every new chat.
	WelcomeText = "Olá! Recebi sua solicitação. Como posso ajudar com seu processo hoje?"
	// ReplyText is the canned specialist answer.
	ReplyText = "Obrigado pelo contato! Vou analisar seu caso e retorno em instantes."

	DefaultReplyDelay      = 2500 * time.Millisecond
	DefaultMaxMessageRunes = 2000
)

// Responder produces the specialist's reply to a user message.
type Responder interface {
	Reply(ctx context.Context, specialist domain.Specialist, userText string) string
}

// FixedResponder always answers with Text.
type FixedResponder struct{ Text string }

func (r FixedResponder) Reply(context.Context, domain.Specialist, string) string { return r.Text }

// MessagingService owns the chat collections of all users.
type MessagingService struct {
	KV              repo.KVGateway
	Catalog         *catalog.Catalog
	Responder       Responder
	ReplyDelay      time.Duration
	MaxMessageRunes int

	Now   func() time.Time
	NewID func() string

	mu      sync.Mutex
	users   map[string][]domain.Chat
	pending sync.WaitGroup
}

// NewMessagingService returns a service with the canned responder and defaults.
func NewMessagingService(kv repo.KVGateway, cat *catalog.Catalog) *MessagingService {
	return &MessagingService{
		KV:              kv,
		Catalog:         cat,
		Responder:       FixedResponder{Text: ReplyText},
		ReplyDelay:      DefaultReplyDelay,
		MaxMessageRunes: DefaultMaxMessageRunes,
		Now:             time.Now,
	}
}

func (s *MessagingService) tracer() trace.Tracer { return otel.Tracer("services/MessagingService") }

func (s *MessagingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MessagingService) messageID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return ulid.Make().String()
}

func readFlag(v bool) *bool { return &v }

// state returns the user's chats, loading them on first use. Caller holds s.mu.
func (s *MessagingService) state(ctx context.Context, userID string) ([]domain.Chat, error) {
	if cs, ok := s.users[userID]; ok {
		return cs, nil
	}
	raw, err := loadCollection[domain.Chat](ctx, s.KV, repo.UserKey(userID, repo.KeyChats))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	cs := make([]domain.Chat, 0, len(raw))
	for _, c := range raw {
		clean, notes, err := c.Sanitize()
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("dropping stored chat")
			continue
		}
		for _, n := range notes {
			log.Ctx(ctx).Warn().Str("user_id", userID).Msg(n)
		}
		cs = append(cs, clean)
	}
	if s.users == nil {
		s.users = make(map[string][]domain.Chat)
	}
	s.users[userID] = cs
	return cs, nil
}

func (s *MessagingService) commit(ctx context.Context, userID string, cs []domain.Chat) {
	s.users[userID] = cs
	persist(ctx, s.KV, repo.UserKey(userID, repo.KeyChats), repo.KeyChats, cs)
}

func chatIndex(cs []domain.Chat, id string) int {
	for i := range cs {
		if cs[i].ID == id {
			return i
		}
	}
	return -1
}

// StartChat returns the user's chat with specialistID, creating it with a
// welcome message when none exists.
func (s *MessagingService) StartChat(ctx context.Context, userID, specialistID string) (chat domain.Chat, created bool, err error) {
	ctx, span := s.tracer().Start(ctx, "StartChat", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("specialist.id", specialistID),
	))
	defer span.End()

	if _, ok := s.Catalog.Specialist(specialistID); !ok {
		return domain.Chat{}, false, ErrSpecialistNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.state(ctx, userID)
	if err != nil {
		return domain.Chat{}, false, err
	}
	for _, c := range cs {
		if c.SpecialistID == specialistID {
			return c.Clone(), false, nil
		}
	}

	now := s.now()
	c := domain.Chat{
		ID:           uuid.NewString(),
		SpecialistID: specialistID,
		Messages: []domain.Message{{
			ID:        s.messageID(),
			Text:      WelcomeText,
			Sender:    domain.SenderSpecialist,
			Timestamp: now,
			IsRead:    readFlag(false),
		}},
		LastUpdate: now,
	}
	next := append(append(make([]domain.Chat, 0, len(cs)+1), cs...), c)
	s.commit(ctx, userID, next)
	return c.Clone(), true, nil
}

// SendUserMessage appends the user's message and schedules the specialist
// reply. It returns the stored user message.
func (s *MessagingService) SendUserMessage(ctx context.Context, userID, chatID, text string) (domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "SendUserMessage", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("chat.id", chatID),
	))
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return domain.Message{}, ErrTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.state(ctx, userID)
	if err != nil {
		return domain.Message{}, err
	}
	i := chatIndex(cs, chatID)
	if i < 0 {
		return domain.Message{}, ErrChatNotFound
	}

	m := domain.Message{
		ID:        s.messageID(),
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: s.now(),
		IsRead:    readFlag(true),
	}
	s.appendLocked(ctx, userID, cs, i, m)

	spec, _ := s.Catalog.Specialist(cs[i].SpecialistID)
	s.pending.Add(1)
	go s.reply(context.WithoutCancel(ctx), userID, chatID, spec, text)
	return m, nil
}

// appendLocked adds m to chat i and persists. Caller holds s.mu.
func (s *MessagingService) appendLocked(ctx context.Context, userID string, cs []domain.Chat, i int, m domain.Message) {
	next := append([]domain.Chat(nil), cs...)
	c := next[i].Clone()
	c.Messages = append(c.Messages, m)
	c.LastUpdate = m.Timestamp
	next[i] = c
	s.commit(ctx, userID, next)
}

func (s *MessagingService) reply(ctx context.Context, userID, chatID string, spec domain.Specialist, userText string) {
	defer s.pending.Done()
	if s.ReplyDelay > 0 {
		time.Sleep(s.ReplyDelay)
	}
	text := s.Responder.Reply(ctx, spec, userText)

	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.state(ctx, userID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("chat_id", chatID).Msg("specialist reply dropped")
		return
	}
	i := chatIndex(cs, chatID)
	if i < 0 {
		return
	}
	s.appendLocked(ctx, userID, cs, i, domain.Message{
		ID:        s.messageID(),
		Text:      text,
		Sender:    domain.SenderSpecialist,
		Timestamp: s.now(),
		IsRead:    readFlag(false),
	})
	observability.SpecialistReplies.Inc()
}

// Wait blocks until every scheduled reply has been appended.
func (s *MessagingService) Wait() { s.pending.Wait() }

// UnreadCount returns how many chats hold at least one unread specialist message.
func (s *MessagingService) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.state(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range cs {
		if c.HasUnread() {
			n++
		}
	}
	return n, nil
}

// ListChats returns the user's chats, most recently updated first.
func (s *MessagingService) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	s.mu.Lock()
	cs, err := s.state(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := make([]domain.Chat, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Clone())
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].LastUpdate.After(out[j].LastUpdate) })
	return out, nil
}

// GetChat returns one chat.
func (s *MessagingService) GetChat(ctx context.Context, userID, chatID string) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.state(ctx, userID)
	if err != nil {
		return domain.Chat{}, err
	}
	i := chatIndex(cs, chatID)
	if i < 0 {
		return domain.Chat{}, ErrChatNotFound
	}
	return cs[i].Clone(), nil
}
