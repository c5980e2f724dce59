package store

import (
	"context"
	"sync"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
)

type InMemoryMessageStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]commonModels.ConversationMessage
}

func InitMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]commonModels.ConversationMessage),
	}
}

func (store *InMemoryMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	_, ok := store.chatMap[chatId]
	return ok
}

func (store *InMemoryMessageStore) InitNewChat(ctx context.Context, id string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = make([]commonModels.ConversationMessage, 0)
	return nil
}

func (store *InMemoryMessageStore) AppendTurn(ctx context.Context, id string, question string, answer string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	messages, ok := store.chatMap[id]
	if !ok {
		return ErrUnknownChat
	}
	messages = append(messages,
		commonModels.ConversationMessage{Role: commonModels.RoleUser, Content: question},
		commonModels.ConversationMessage{Role: commonModels.RoleModel, Content: answer},
	)
	if len(messages) > maxStoredMessages {
		messages = messages[len(messages)-maxStoredMessages:]
	}
	store.chatMap[id] = messages
	return nil
}

func (store *InMemoryMessageStore) GetMessageHistory(ctx context.Context, chatId string, window int) ([]commonModels.ConversationMessage, error) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	messages := store.chatMap[chatId]
	if window > 0 && len(messages) > window {
		messages = messages[len(messages)-window:]
	}
	out := make([]commonModels.ConversationMessage, len(messages))
	copy(out, messages)
	return out, nil
}
