// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"xuanji-chat-go/internal/model"
)

// ErrPersistence 表示会话存储失败，所有存储错误都以 %w 包装它。
var ErrPersistence = errors.New("会话存储失败")

// ContextRepository 定义了会话状态的读写接口。
// Load 未命中时返回 (nil, nil)；返回值与存储中的数据互不影响。
type ContextRepository interface {
	Load(ctx context.Context, sessionID, userID string) (*model.ConversationSessionState, error)
	Persist(ctx context.Context, state *model.ConversationSessionState) error
	Reset(ctx context.Context, sessionID, userID string) error
}

// SessionKey 返回会话在存储中的键。
func SessionKey(userID, sessionID string) string {
	return fmt.Sprintf("chat:session:%s:%s", userID, sessionID)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

type redisContextRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
	now         func() time.Time
}

// NewRedisContextRepository 创建基于 Redis 的 ContextRepository，ttl 为 0 时不过期。
func NewRedisContextRepository(redisClient *redis.Client, ttl time.Duration) ContextRepository {
	return &redisContextRepository{
		redisClient: redisClient,
		ttl:         ttl,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Load 从 Redis 读取会话状态。
func (r *redisContextRepository) Load(ctx context.Context, sessionID, userID string) (*model.ConversationSessionState, error) {
	jsonData, err := r.redisClient.Get(ctx, SessionKey(userID, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("load session", err)
	}
	var state model.ConversationSessionState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return nil, persistenceError("unmarshal session", err)
	}
	return &state, nil
}

// Persist 整体覆盖写入会话状态，并刷新 UpdatedAt 与过期时间。
func (r *redisContextRepository) Persist(ctx context.Context, state *model.ConversationSessionState) error {
	if state == nil {
		return persistenceError("persist session", errors.New("state is nil"))
	}
	state.UpdatedAt = r.now()
	jsonData, err := json.Marshal(state)
	if err != nil {
		return persistenceError("marshal session", err)
	}
	if err := r.redisClient.Set(ctx, SessionKey(state.UserID, state.SessionID), jsonData, r.ttl).Err(); err != nil {
		return persistenceError("persist session", err)
	}
	return nil
}

// Reset 删除会话，会话不存在时不报错。
func (r *redisContextRepository) Reset(ctx context.Context, sessionID, userID string) error {
	if err := r.redisClient.Del(ctx, SessionKey(userID, sessionID)).Err(); err != nil {
		return persistenceError("reset session", err)
	}
	return nil
}
