package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-trademark-backend/internal/catalog"
	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/repo"
)

func newMessagingService(kv repo.KVGateway) *MessagingService {
	s := NewMessagingService(kv, catalog.Default())
	s.ReplyDelay = 0
	clock := refNow
	s.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestMessagingService_StartChat(t *testing.T) {
	ctx := context.Background()
	s := newMessagingService(newMemKV())

	c, created, err := s.StartChat(ctx, "u1", "s1")
	if err != nil || !created {
		t.Fatalf("StartChat: created=%v err=%v", created, err)
	}
	if len(c.Messages) != 1 || c.Messages[0].Text != WelcomeText || !c.Messages[0].Unread() {
		t.Fatalf("new chat must hold one unread welcome: %+v", c.Messages)
	}

	again, created, err := s.StartChat(ctx, "u1", "s1")
	if err != nil || created || again.ID != c.ID || len(again.Messages) != 1 {
		t.Fatalf("StartChat must reuse the existing chat: %+v %v", again, err)
	}
	if _, _, err := s.StartChat(ctx, "u1", "s99"); !errors.Is(err, ErrSpecialistNotFound) {
		t.Fatalf("want ErrSpecialistNotFound, got %v", err)
	}
}

func TestMessagingService_SendUserMessage_Reply(t *testing.T) {
	ctx := context.Background()
	s := newMessagingService(newMemKV())
	c, _, _ := s.StartChat(ctx, "u1", "s2")

	m, err := s.SendUserMessage(ctx, "u1", c.ID, "Tenho uma exigência")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Sender != domain.SenderUser || m.IsRead == nil || !*m.IsRead {
		t.Fatalf("user message must be stored as read: %+v", m)
	}
	s.Wait()

	got, _ := s.GetChat(ctx, "u1", c.ID)
	if len(got.Messages) != 3 {
		t.Fatalf("want welcome+user+reply, got %d", len(got.Messages))
	}
	if got.Messages[1].ID != m.ID || got.Messages[2].Sender != domain.SenderSpecialist || got.Messages[2].Text != ReplyText {
		t.Fatalf("unexpected order: %+v", got.Messages)
	}
	if !got.LastUpdate.Equal(got.Messages[2].Timestamp) {
		t.Fatalf("last_update must follow the reply")
	}
}

func TestMessagingService_SendUserMessage_Validation(t *testing.T) {
	ctx := context.Background()
	s := newMessagingService(newMemKV())
	s.MaxMessageRunes = 5
	c, _, _ := s.StartChat(ctx, "u1", "s1")

	cases := []struct {
		name, chat, text string
		want             error
	}{
		{"blank", c.ID, " \n\t", ErrEmptyMessage},
		{"too long", c.ID, strings.Repeat("é", 6), ErrTooLong},
		{"missing chat", "nope", "oi", ErrChatNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.SendUserMessage(ctx, "u1", tc.chat, tc.text); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	s.Wait()
	got, _ := s.GetChat(ctx, "u1", c.ID)
	if len(got.Messages) != 1 {
		t.Fatalf("rejected messages must not append: %d", len(got.Messages))
	}
}

func TestMessagingService_UnreadCountsChats(t *testing.T) {
	ctx := context.Background()
	s := newMessagingService(newMemKV())
	c, _, _ := s.StartChat(ctx, "u1", "s1")
	_, _ = s.SendUserMessage(ctx, "u1", c.ID, "oi")
	s.Wait()

	n, err := s.UnreadCount(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("two unread messages in one chat count once: n=%d err=%v", n, err)
	}
	_, _, _ = s.StartChat(ctx, "u1", "s3")
	if n, _ = s.UnreadCount(ctx, "u1"); n != 2 {
		t.Fatalf("want 2 chats unread, got %d", n)
	}
}

func TestMessagingService_MissingReadFlagIsUnread(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	stored := []domain.Chat{{
		ID: "c1", SpecialistID: "s1",
		Messages: []domain.Message{{ID: "m1", Text: "x", Sender: domain.SenderSpecialist}},
	}}
	if err := repo.Save(ctx, kv, repo.UserKey("u1", repo.KeyChats), stored); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := newMessagingService(kv)
	if n, _ := s.UnreadCount(ctx, "u1"); n != 1 {
		t.Fatalf("want 1, got %d", n)
	}
}

func TestMessagingService_ListChats_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newMessagingService(newMemKV())
	a, _, _ := s.StartChat(ctx, "u1", "s1")
	b, _, _ := s.StartChat(ctx, "u1", "s2")
	_, _ = s.SendUserMessage(ctx, "u1", a.ID, "oi")
	s.Wait()

	list, err := s.ListChats(ctx, "u1")
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %+v %v", list, err)
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("want %s before %s, got %s,%s", a.ID, b.ID, list[0].ID, list[1].ID)
	}
}

func TestMessagingService_Persisted(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s1 := newMessagingService(kv)
	c, _, _ := s1.StartChat(ctx, "u1", "s1")
	_, _ = s1.SendUserMessage(ctx, "u1", c.ID, "oi")
	s1.Wait()

	s2 := newMessagingService(kv)
	got, err := s2.GetChat(ctx, "u1", c.ID)
	if err != nil || len(got.Messages) != 3 {
		t.Fatalf("reload: %+v %v", got, err)
	}
}
