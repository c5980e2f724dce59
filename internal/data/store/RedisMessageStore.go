package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/data/redisStore"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/pkg/logger_i"
)

// keeps more than any history window asks for
const maxStoredMessages = 100

var ErrUnknownChat = errors.New("unknown chat id")

type RedisMessageStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisMessageStore(ctx context.Context, opts redisStore.Options) (*RedisMessageStore, bool) {
	s := redisStore.GetRedisStore(ctx, opts, config.RedisMessageStore)
	if s == nil {
		return nil, false
	}
	return NewRedisMessageStore(s), true
}

func NewRedisMessageStore(s *redisStore.Store) *RedisMessageStore {
	return &RedisMessageStore{
		store:  s,
		logger: logger_i.NewLogger("MessageStore"),
	}
}

func chatKey(id string) string     { return "chat:" + id }
func messagesKey(id string) string { return "chat:" + id + ":messages" }

func (s *RedisMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	isFound, err := s.store.Exists(ctx, chatKey(chatId))
	if err != nil {
		s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Failed to check if chatId exists", "chatId", chatId, "err", err)
		return false
	}
	return isFound
}

func (s *RedisMessageStore) InitNewChat(ctx context.Context, id string) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chatId", id)
	log.Debug("Initializing new chat")
	if err := s.store.Del(ctx, messagesKey(id)); err != nil {
		return err
	}
	return s.store.Set(ctx, chatKey(id), time.Now().UTC().Format(time.RFC3339), config.RedisMessageStoreTTL)
}

func (s *RedisMessageStore) AppendTurn(ctx context.Context, id string, question string, answer string) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chatId", id)
	if !s.ValidateChatId(ctx, id) {
		log.Error("Failed Validation before saving", "err", ErrUnknownChat)
		return ErrUnknownChat
	}

	user, err := json.Marshal(commonModels.ConversationMessage{Role: commonModels.RoleUser, Content: question})
	if err != nil {
		return err
	}
	model, err := json.Marshal(commonModels.ConversationMessage{Role: commonModels.RoleModel, Content: answer})
	if err != nil {
		return err
	}

	if err := s.store.ListAppend(ctx, messagesKey(id), maxStoredMessages, config.RedisMessageStoreTTL, user, model); err != nil {
		log.Error("error saving chat", "error", err)
		return err
	}
	// keep the marker alive as long as the messages
	if err := s.store.Set(ctx, chatKey(id), time.Now().UTC().Format(time.RFC3339), config.RedisMessageStoreTTL); err != nil {
		return err
	}
	log.Debug("Saved chat successfully")
	return nil
}

// GetMessageHistory returns the newest window messages in chronological order.
func (s *RedisMessageStore) GetMessageHistory(ctx context.Context, chatId string, window int) ([]commonModels.ConversationMessage, error) {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chatId", chatId)

	raw, err := s.store.ListTail(ctx, messagesKey(chatId), int64(window))
	if err != nil {
		log.Error("Error getting history", "error", err)
		return nil, err
	}

	history := make([]commonModels.ConversationMessage, 0, len(raw))
	for _, entry := range raw {
		var msg commonModels.ConversationMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			log.Warn("Skipping malformed history entry", "error", err)
			continue
		}
		history = append(history, msg)
	}
	return history, nil
}
