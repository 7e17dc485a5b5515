package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/reseich/reseich-api/internal/auth"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/storage/pg"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/reseich/reseich-api/internal/workflow"
)

var (
	ErrMessageNotFound = errors.New("chat message not found")
	ErrNotUserMessage  = errors.New("replies can only answer user messages")
	ErrReplyExists     = errors.New("message already has a reply")
)

type Dispatcher interface {
	Dispatch(ctx context.Context, payload workflow.Payload) error
}

type CallbackBuilder interface {
	Chat(messageID string) (string, error)
}

type Metrics interface {
	SideEffectFailed(kind string)
}

type Service struct {
	store      pg.Store
	dispatcher Dispatcher
	callbacks  CallbackBuilder
	metrics    Metrics
	logger     *logger.Logger
}

func NewService(store pg.Store, dispatcher Dispatcher, callbacks CallbackBuilder, metrics Metrics, logger *logger.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		callbacks:  callbacks,
		metrics:    metrics,
		logger:     logger.WithComponent("chat"),
	}
}

// Send stores a user message and asks the workflow engine for a reply.
// An empty sessionID starts a new session.
func (s *Service) Send(ctx context.Context, sessionID, content string, caller auth.Identity) (pgdb.ChatMessage, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	params := pgdb.CreateChatMessageParams{
		SessionID: sessionID,
		Content:   content,
		IsUser:    true,
	}
	if caller.IsDemo() {
		params.DemoIp = sql.NullString{String: caller.IP, Valid: true}
	} else {
		user, err := s.store.UpsertUserByWallet(ctx, caller.Wallet)
		if err != nil {
			return pgdb.ChatMessage{}, fmt.Errorf("failed to upsert user: %w", err)
		}
		params.UserID = uuid.NullUUID{UUID: user.ID, Valid: true}
	}

	msg, err := s.store.CreateChatMessage(ctx, params)
	if err != nil {
		return pgdb.ChatMessage{}, fmt.Errorf("failed to store chat message: %w", err)
	}

	s.dispatch(ctx, msg, caller)
	return msg, nil
}

func (s *Service) dispatch(ctx context.Context, msg pgdb.ChatMessage, caller auth.Identity) {
	log := s.logger.WithContext(ctx)

	callbackURL, err := s.callbacks.Chat(msg.ID.String())
	if err != nil {
		log.Error("failed to build chat callback url", slog.String("error", err.Error()))
		s.metrics.SideEffectFailed("chat_dispatch")
		return
	}

	payload := workflow.NewChatPayload(workflow.ChatPayload{
		MessageID:     msg.ID.String(),
		SessionID:     msg.SessionID,
		Message:       msg.Content,
		WalletAddress: caller.Wallet,
		IsDemo:        caller.IsDemo(),
		CallbackURL:   callbackURL,
	})
	if err := s.dispatcher.Dispatch(ctx, payload); err != nil {
		log.Error("failed to queue chat workflow",
			slog.String("message_id", msg.ID.String()),
			slog.String("error", err.Error()))
		s.metrics.SideEffectFailed("chat_dispatch")
	}
}

// StoreReply records the AI reply to a user message. Each message gets at most one reply.
func (s *Service) StoreReply(ctx context.Context, messageID, content string) (pgdb.ChatMessage, error) {
	parent, err := s.getMessage(ctx, messageID)
	if err != nil {
		return pgdb.ChatMessage{}, err
	}
	if !parent.IsUser {
		return pgdb.ChatMessage{}, ErrNotUserMessage
	}

	reply, err := s.store.CreateChatMessage(ctx, pgdb.CreateChatMessageParams{
		SessionID: parent.SessionID,
		Content:   content,
		IsUser:    false,
		ReplyTo:   uuid.NullUUID{UUID: parent.ID, Valid: true},
	})
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return pgdb.ChatMessage{}, ErrReplyExists
		}
		return pgdb.ChatMessage{}, fmt.Errorf("failed to store chat reply: %w", err)
	}
	return reply, nil
}

// Reply returns the AI reply to messageID, or nil while it is still pending.
func (s *Service) Reply(ctx context.Context, messageID string) (*pgdb.ChatMessage, error) {
	parent, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	reply, err := s.store.GetChatReply(ctx, uuid.NullUUID{UUID: parent.ID, Valid: true})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat reply: %w", err)
	}
	return &reply, nil
}

func (s *Service) History(ctx context.Context, sessionID string, limit int32) ([]pgdb.ChatMessage, error) {
	msgs, err := s.store.ListChatMessagesBySession(ctx, pgdb.ListChatMessagesBySessionParams{
		SessionID: sessionID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return msgs, nil
}

func (s *Service) getMessage(ctx context.Context, messageID string) (pgdb.ChatMessage, error) {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return pgdb.ChatMessage{}, ErrMessageNotFound
	}
	msg, err := s.store.GetChatMessage(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return pgdb.ChatMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return pgdb.ChatMessage{}, fmt.Errorf("failed to load chat message: %w", err)
	}
	return msg, nil
}
