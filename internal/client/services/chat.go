package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sportmatch/internal/client/client"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/realtime"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

var ErrEmptyMessage = errors.New("message is empty")

const defaultHistorySize = 50

// Publisher is the part of realtime.Transport the chat service needs.
type Publisher interface {
	IsConnected() bool
	Publish(ctx context.Context, destination string, payload any) error
}

// ChatService reads history over HTTP and sends over the realtime
// connection when it is up. Nothing is queued while it is down.
type ChatService struct {
	client client.Client
	rt     Publisher
	log    logging.Logger
}

func NewChatService(c client.Client, rt Publisher, log logging.Logger) *ChatService {
	if log == nil {
		log = logging.Discard()
	}
	return &ChatService{client: c, rt: rt, log: log}
}

func (s *ChatService) Conversations(ctx context.Context) ([]models.Conversation, error) {
	return s.client.Conversations(ctx)
}

// History returns one page of a conversation, newest page first as the
// server orders it. size <= 0 selects the default.
func (s *ChatService) History(ctx context.Context, conversationID int64, page, size int) (*models.MessagePage, error) {
	if size <= 0 {
		size = defaultHistorySize
	}
	if page < 0 {
		page = 0
	}
	return s.client.Messages(ctx, conversationID, page, size)
}

// Open returns the conversation with otherUserID, creating it if needed.
func (s *ChatService) Open(ctx context.Context, otherUserID int64, matchID *int64) (*models.Conversation, error) {
	return s.client.OpenConversation(ctx, otherUserID, matchID)
}

func (s *ChatService) MarkRead(ctx context.Context, conversationID int64) error {
	return s.client.MarkRead(ctx, conversationID)
}

func (s *ChatService) UnreadCount(ctx context.Context) (int, error) {
	return s.client.UnreadCount(ctx)
}

// Send delivers content to a conversation. Over the realtime connection the
// server echoes the stored message on the messages topic, so the returned
// message is nil; over HTTP it is the stored message.
func (s *ChatService) Send(ctx context.Context, conversationID int64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	req := models.SendMessageRequest{ConversationID: conversationID, Content: content, MessageType: models.MessageTypeText}

	if s.rt != nil && s.rt.IsConnected() {
		err := s.rt.Publish(ctx, realtime.DestinationChatSend, req)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, realtime.ErrNotConnected) {
			return nil, fmt.Errorf("publish message: %w", err)
		}
		s.log.Debug(ctx, "realtime dropped, sending over http", "conversation_id", conversationID)
	}

	msg, err := s.client.SendMessage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// Join announces the user in a conversation. It needs the realtime
// connection and returns realtime.ErrNotConnected without it.
func (s *ChatService) Join(ctx context.Context, conversationID int64) error {
	if s.rt == nil || !s.rt.IsConnected() {
		return realtime.ErrNotConnected
	}
	return s.rt.Publish(ctx, realtime.DestinationChatJoin, conversationID)
}
