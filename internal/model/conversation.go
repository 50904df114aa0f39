// Package model 包含了应用的数据模型定义。
package model

import (
	"time"
)

// MessageRole 表示消息的发送方。
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageMetadata 是附着在单条消息上的可选信息。
type MessageMetadata struct {
	AnalysisType AnalysisType `json:"analysisType,omitempty"`
	TraceID      string       `json:"traceId,omitempty"`
}

// ConversationMessage 代表会话中的单条消息，追加后不再修改。
type ConversationMessage struct {
	ID        string           `json:"id"`
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"` // UTC，JSON 中为 ISO-8601
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// ConversationMetadata 汇总会话统计信息。
type ConversationMetadata struct {
	TotalMessages          int       `json:"totalMessages"`
	SessionDurationSeconds int64     `json:"sessionDurationSeconds"`
	LastActivity           time.Time `json:"lastActivityTimestamp"`
	AnalysisCount          int       `json:"analysisCount"`
}

// BaziData 是从对话中累积得到的八字分析所需信息。
type BaziData struct {
	BirthDate     string       `json:"birthDate,omitempty"`
	BirthTime     string       `json:"birthTime,omitempty"`
	Gender        string       `json:"gender,omitempty"`
	BirthLocation string       `json:"birthLocation,omitempty"`
	Pillars       *BaziPillars `json:"pillars,omitempty"` // 用户手动输入的四柱
}

// BaziPillars 年、月、日、时四柱。
type BaziPillars struct {
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
	Hour  string `json:"hour"`
}

// FengshuiData 是从对话中累积得到的风水分析所需信息。
type FengshuiData struct {
	Facing        string `json:"facing,omitempty"` // 朝向方位，如 "南"、"东南"
	FacingDegrees *int   `json:"facingDegrees,omitempty"`
	Layout        string `json:"layout,omitempty"`
}

// UserProfile 是跨轮次合并的用户画像。
type UserProfile struct {
	ExpertiseLevel string            `json:"expertiseLevel"`
	Preferences    map[string]string `json:"preferences,omitempty"`
	BaziData       *BaziData         `json:"baziData,omitempty"`
	FengshuiData   *FengshuiData     `json:"fengshuiData,omitempty"`
}

// HasAnyData 表示画像中是否已有任何八字或房屋信息。
func (p UserProfile) HasAnyData() bool {
	return p.BaziData != nil || p.FengshuiData != nil
}

// TopicFrame 是话题栈中的一帧，话题切换时压栈，回到原话题时出栈。
type TopicFrame struct {
	Topic    AnalysisType `json:"topic"`
	State    StateType    `json:"state"`
	PushedAt time.Time    `json:"pushedAt"`
	Reason   string       `json:"reason,omitempty"`
}

// DomainSnapshot 保存最近一次分析的结果快照，供后续追问引用。
type DomainSnapshot struct {
	AnalysisType AnalysisType           `json:"analysisType"`
	Confidence   float64                `json:"confidence"`
	Level        ConfidenceLevel        `json:"level"`
	Manual       bool                   `json:"manual,omitempty"`
	Summary      string                 `json:"summary,omitempty"`
	Results      map[string]interface{} `json:"results,omitempty"`
	CapturedAt   time.Time              `json:"capturedAt"`
}

// ConversationContext 是一个会话的完整上下文：只追加的消息日志加可变的领域快照。
type ConversationContext struct {
	SessionID       string                `json:"sessionId"`
	UserID          string                `json:"userId"`
	Messages        []ConversationMessage `json:"messages"`
	CurrentTopic    AnalysisType          `json:"currentTopic"`
	UserProfile     UserProfile           `json:"userProfile"`
	ContextStack    []TopicFrame          `json:"contextStack"`
	Metadata        ConversationMetadata  `json:"metadata"`
	DomainSnapshot  *DomainSnapshot       `json:"domainSnapshot,omitempty"`
	TopicTags       []string              `json:"topicTags,omitempty"`
	PendingAnalysis AnalysisType          `json:"pendingAnalysis,omitempty"` // 已确认但信息不全的分析请求
}

// NewConversationContext 创建一个空的会话上下文。
func NewConversationContext(sessionID, userID string) ConversationContext {
	return ConversationContext{
		SessionID:    sessionID,
		UserID:       userID,
		Messages:     []ConversationMessage{},
		CurrentTopic: AnalysisNone,
		UserProfile:  UserProfile{ExpertiseLevel: "beginner"},
		ContextStack: []TopicFrame{},
	}
}

// IsEmpty 表示上下文中是否没有任何消息与画像数据。
func (c *ConversationContext) IsEmpty() bool {
	return len(c.Messages) == 0 && !c.UserProfile.HasAnyData()
}

// AppendMessage 追加一条消息并维护统计信息。
// 会话时长取旧值与“首条消息至今”两者的较大值，保证单调不减；
// 仅当消息的 analysisType 为 bazi 或 fengshui 时累加分析次数。
func (c *ConversationContext) AppendMessage(msg ConversationMessage) {
	c.Messages = append(c.Messages, msg)
	c.Metadata.TotalMessages++
	c.Metadata.LastActivity = msg.Timestamp

	first := c.Messages[0].Timestamp
	if elapsed := int64(msg.Timestamp.Sub(first) / time.Second); elapsed > c.Metadata.SessionDurationSeconds {
		c.Metadata.SessionDurationSeconds = elapsed
	}

	if msg.Metadata != nil && msg.Metadata.AnalysisType.Counted() {
		c.Metadata.AnalysisCount++
	}
}

// TrimMessages 仅保留最近 max 条消息，统计信息不受影响。
func (c *ConversationContext) TrimMessages(max int) int {
	if max <= 0 || len(c.Messages) <= max {
		return 0
	}
	dropped := len(c.Messages) - max
	kept := make([]ConversationMessage, max)
	copy(kept, c.Messages[dropped:])
	c.Messages = kept
	return dropped
}

// PushTopic 将当前话题压入话题栈。
func (c *ConversationContext) PushTopic(frame TopicFrame) {
	c.ContextStack = append(c.ContextStack, frame)
}

// PeekTopic 返回栈顶话题帧。
func (c *ConversationContext) PeekTopic() (TopicFrame, bool) {
	if len(c.ContextStack) == 0 {
		return TopicFrame{}, false
	}
	return c.ContextStack[len(c.ContextStack)-1], true
}

// PopTopic 弹出栈顶话题帧。
func (c *ConversationContext) PopTopic() (TopicFrame, bool) {
	frame, ok := c.PeekTopic()
	if !ok {
		return frame, false
	}
	c.ContextStack = c.ContextStack[:len(c.ContextStack)-1]
	return frame, true
}

// MergeTopicTags 以集合并集方式合并话题标签，保持首次出现的顺序。
func (c *ConversationContext) MergeTopicTags(tags ...string) {
	seen := make(map[string]struct{}, len(c.TopicTags)+len(tags))
	for _, t := range c.TopicTags {
		seen[t] = struct{}{}
	}
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		c.TopicTags = append(c.TopicTags, t)
	}
}

// ConversationSessionState 是持久化的会话状态。
type ConversationSessionState struct {
	SessionID    string              `json:"sessionId"`
	UserID       string              `json:"userId"`
	Locale       string              `json:"locale"`
	CurrentState StateType           `json:"currentState"`
	ResumeState  StateType           `json:"resumeState,omitempty"` // 空闲前的状态，仅在重新激活的回合内使用
	Context      ConversationContext `json:"context"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// NewSessionState 创建处于 greeting 状态的新会话。
func NewSessionState(sessionID, userID, locale string, now time.Time) *ConversationSessionState {
	return &ConversationSessionState{
		SessionID:    sessionID,
		UserID:       userID,
		Locale:       locale,
		CurrentState: StateGreeting,
		Context:      NewConversationContext(sessionID, userID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
