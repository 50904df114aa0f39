package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"xuanji-chat-go/internal/model"
)

type memoryContextRepository struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	now      func() time.Time
}

// NewMemoryContextRepository 创建进程内的 ContextRepository，用于测试和单机部署。
// now 为 nil 时使用当前 UTC 时间。
func NewMemoryContextRepository(now func() time.Time) ContextRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &memoryContextRepository{sessions: make(map[string][]byte), now: now}
}

func (r *memoryContextRepository) Load(ctx context.Context, sessionID, userID string) (*model.ConversationSessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistenceError("load session", err)
	}
	r.mu.RLock()
	data, ok := r.sessions[SessionKey(userID, sessionID)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var state model.ConversationSessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, persistenceError("unmarshal session", err)
	}
	return &state, nil
}

func (r *memoryContextRepository) Persist(ctx context.Context, state *model.ConversationSessionState) error {
	if err := ctx.Err(); err != nil {
		return persistenceError("persist session", err)
	}
	if state == nil {
		return persistenceError("persist session", errors.New("state is nil"))
	}
	state.UpdatedAt = r.now()
	data, err := json.Marshal(state)
	if err != nil {
		return persistenceError("marshal session", err)
	}
	r.mu.Lock()
	r.sessions[SessionKey(state.UserID, state.SessionID)] = data
	r.mu.Unlock()
	return nil
}

func (r *memoryContextRepository) Reset(ctx context.Context, sessionID, userID string) error {
	if err := ctx.Err(); err != nil {
		return persistenceError("reset session", err)
	}
	r.mu.Lock()
	delete(r.sessions, SessionKey(userID, sessionID))
	r.mu.Unlock()
	return nil
}
