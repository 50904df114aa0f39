// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"xuanji-chat-go/internal/degradation"
	"xuanji-chat-go/internal/intent"
	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/internal/repository"
	"xuanji-chat-go/pkg/events"
	"xuanji-chat-go/pkg/log"
)

var (
	// ErrInvalidRequest 表示请求缺少必要字段。
	ErrInvalidRequest = errors.New("无效的请求")
	// ErrSessionNotFound 表示会话不存在或已被重置。
	ErrSessionNotFound = errors.New("会话不存在")
)

const publishTimeout = 3 * time.Second

// UserMessageRequest 是一条用户消息。
type UserMessageRequest struct {
	SessionID   string            `json:"sessionId"`
	UserID      string            `json:"userId"`
	Message     string            `json:"message"`
	Locale      string            `json:"locale,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	TraceID     string            `json:"-"`
}

// ManualInputRequest 是一次手动输入提交。
type ManualInputRequest struct {
	SessionID string                    `json:"sessionId"`
	UserID    string                    `json:"userId"`
	Input     model.ManualInputEnvelope `json:"input"`
	TraceID   string                    `json:"-"`
}

// NormalizedResponse 是便于前端直接渲染的建议、追问与可执行项。
type NormalizedResponse struct {
	Suggestions       []string `json:"suggestions"`
	FollowUpQuestions []string `json:"followUpQuestions"`
	ActionItems       []string `json:"actionItems"`
}

// IntegratedResponse 汇总本轮分析的评估结果、降级决策与解读。
type IntegratedResponse struct {
	AnalysisType model.AnalysisType         `json:"analysisType"`
	Evaluations  []degradation.Evaluation   `json:"evaluations,omitempty"`
	Decision     *model.DegradationDecision `json:"decision,omitempty"`
	Manual       *degradation.ManualResult  `json:"manual,omitempty"`
	Explanation  string                     `json:"explanation,omitempty"`
}

// UserMessageResponse 是处理一轮对话后的返回。
type UserMessageResponse struct {
	Reply              model.ConversationMessage       `json:"reply"`
	IntegratedResponse *IntegratedResponse             `json:"integratedResponse,omitempty"`
	SessionState       *model.ConversationSessionState `json:"sessionState"`
	Normalized         NormalizedResponse              `json:"normalized"`
	Intent             *intent.Result                  `json:"intent,omitempty"`
}

// SessionService 定义了会话相关的业务操作。
type SessionService interface {
	HandleUserMessage(ctx context.Context, req UserMessageRequest) (*UserMessageResponse, error)
	SubmitManualInput(ctx context.Context, req ManualInputRequest) (*UserMessageResponse, error)
	GetSession(ctx context.Context, sessionID, userID string) (*model.ConversationSessionState, error)
	ResetSession(ctx context.Context, sessionID, userID string) error
}

// SessionOptions 是会话服务的可调参数。
type SessionOptions struct {
	MaxMessages int
	IdleTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
}

type sessionService struct {
	contextRepo  repository.ContextRepository
	detector     *intent.Detector
	orchestrator *degradation.Orchestrator
	runner       *AnalysisRunner
	explainer    Explainer
	publisher    EventPublisher
	maxMessages  int
	idleTimeout  time.Duration
	now          func() time.Time
	newID        func() string
}

// NewSessionService 创建一个新的 SessionService 实例。publisher 可以为 nil。
func NewSessionService(
	contextRepo repository.ContextRepository,
	detector *intent.Detector,
	orchestrator *degradation.Orchestrator,
	runner *AnalysisRunner,
	explainer Explainer,
	publisher EventPublisher,
	opts SessionOptions,
) SessionService {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &sessionService{
		contextRepo:  contextRepo,
		detector:     detector,
		orchestrator: orchestrator,
		runner:       runner,
		explainer:    explainer,
		publisher:    publisher,
		maxMessages:  opts.MaxMessages,
		idleTimeout:  opts.IdleTimeout,
		now:          opts.Now,
		newID:        opts.NewID,
	}
}

// turn 是一轮处理得到的回复内容。
type turn struct {
	next         model.StateType
	content      string
	analysisType model.AnalysisType
	integrated   *IntegratedResponse
	normalized   NormalizedResponse
}

// HandleUserMessage 处理一条用户消息：加载会话、识别意图、合并画像、迁移状态，
// 必要时执行分析与降级评估，最后持久化并返回回复。存储失败时返回包装了 ErrPersistence 的错误。
func (s *sessionService) HandleUserMessage(ctx context.Context, req UserMessageRequest) (*UserMessageResponse, error) {
	message := strings.TrimSpace(req.Message)
	if req.SessionID == "" || req.UserID == "" || message == "" {
		return nil, fmt.Errorf("%w: sessionId、userId 与 message 均不能为空", ErrInvalidRequest)
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = s.newID()
	}
	now := s.now()

	state, err := s.loadOrCreate(ctx, req.SessionID, req.UserID, req.Locale, now)
	if err != nil {
		return nil, err
	}
	if req.Locale != "" {
		state.Locale = req.Locale
	}

	// 1. 意图识别与画像合并是两个独立步骤
	contextEmpty := state.Context.IsEmpty()
	detected := s.detector.Detect(message)
	state.Context.AppendMessage(model.ConversationMessage{
		ID:        s.newID(),
		Role:      model.RoleUser,
		Content:   message,
		Timestamp: now,
		Metadata:  &model.MessageMetadata{TraceID: traceID},
	})
	state.Context.UserProfile = MergeProfile(state.Context.UserProfile, detected.ExtractedInfo)

	// 2. 状态迁移
	var top *model.TopicFrame
	if f, ok := state.Context.PeekTopic(); ok {
		top = &f
	}
	tr := NextState(TransitionInput{
		Current:      state.CurrentState,
		CurrentTopic: state.Context.CurrentTopic,
		Pending:      state.Context.PendingAnalysis,
		StackTop:     top,
		Profile:      state.Context.UserProfile,
		Intent:       detected,
		ContextEmpty: contextEmpty,
		ResumeFrom:   state.ResumeState,
	})
	applyTransition(state, tr, now)
	state.ResumeState = ""

	log.Infow("处理用户消息",
		"sessionId", state.SessionID, "userId", state.UserID, "traceId", traceID,
		"from", state.CurrentState, "to", tr.Next, "topic", tr.Topic,
		"intent", detected.AnalysisType, "confidence", detected.Confidence)

	// 3. 生成回复
	var t turn
	switch tr.Next {
	case model.StateAnalyzing:
		state.CurrentState = model.StateAnalyzing
		t, err = s.analyze(ctx, state, tr.Topic, traceID)
		if err != nil {
			return nil, err
		}
	case model.StateExplaining:
		t = s.followUp(ctx, state, message)
	default:
		t = collectReply(tr, detected, contextEmpty)
	}
	state.CurrentState = t.next

	reply := s.appendReply(state, t, traceID)
	if err := s.persist(ctx, state); err != nil {
		return nil, err
	}

	return &UserMessageResponse{
		Reply:              reply,
		IntegratedResponse: t.integrated,
		SessionState:       state,
		Normalized:         t.normalized,
		Intent:             &detected,
	}, nil
}

// SubmitManualInput 校验手动输入并以固定的较高置信度完成分析。
// 校验失败时返回 *degradation.ValidationError，会话状态保持不变。
func (s *sessionService) SubmitManualInput(ctx context.Context, req ManualInputRequest) (*UserMessageResponse, error) {
	if req.SessionID == "" || req.UserID == "" {
		return nil, fmt.Errorf("%w: sessionId 与 userId 不能为空", ErrInvalidRequest)
	}
	manual, err := req.Input.Unwrap()
	if err != nil {
		return nil, &degradation.ValidationError{Field: "domain", Reason: err.Error()}
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = s.newID()
	}

	state, err := s.contextRepo.Load(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("加载会话失败: %w", err)
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}

	domain := manual.Domain()
	original := BuildAnalysisInput(domain, state.Context.UserProfile)
	result, err := s.orchestrator.SubmitManualInput(domain, manual, original)
	if err != nil {
		return nil, err
	}

	now := s.now()
	analysisType := analysisTypeFor(domain)
	payload, err := json.Marshal(manual)
	if err != nil {
		return nil, fmt.Errorf("序列化手动输入失败: %w", err)
	}
	state.Context.AppendMessage(model.ConversationMessage{
		ID:        s.newID(),
		Role:      model.RoleUser,
		Content:   fmt.Sprintf("手动输入%s数据：%s", domainLabel(domain), payload),
		Timestamp: now,
		Metadata:  &model.MessageMetadata{TraceID: traceID},
	})
	applyManualInput(&state.Context.UserProfile, manual)

	state.Context.CurrentTopic = analysisType
	state.Context.PendingAnalysis = model.AnalysisNone
	state.Context.MergeTopicTags(string(analysisType), string(domain))

	level := s.orchestrator.Classifier().Classify(result.Confidence)
	state.Context.DomainSnapshot = &model.DomainSnapshot{
		AnalysisType: analysisType,
		Confidence:   result.Confidence,
		Level:        level,
		Manual:       true,
		Results:      result.Result,
		CapturedAt:   now,
	}
	explanation := s.explainer.Explain(ctx, ExplainRequest{
		AnalysisType: analysisType,
		Profile:      state.Context.UserProfile,
		Snapshot:     state.Context.DomainSnapshot,
		Locale:       state.Locale,
	})
	state.Context.DomainSnapshot.Summary = explanation

	s.publish(state, analysisType, events.AnalysisEvent{
		TraceID:    traceID,
		Domain:     string(domain),
		Confidence: result.Confidence,
		Level:      string(level),
		Manual:     true,
	})

	t := turn{
		next:         model.StateExplaining,
		content:      explanation,
		analysisType: analysisType,
		integrated: &IntegratedResponse{
			AnalysisType: analysisType,
			Manual:       result,
			Explanation:  explanation,
		},
		normalized: NormalizedResponse{
			Suggestions:       []string{},
			FollowUpQuestions: followUpsFor(analysisType),
			ActionItems:       []string{},
		},
	}
	state.CurrentState = t.next
	reply := s.appendReply(state, t, traceID)
	if err := s.persist(ctx, state); err != nil {
		return nil, err
	}
	log.Infow("手动输入已完成分析", "sessionId", state.SessionID, "domain", domain, "confidence", result.Confidence)

	return &UserMessageResponse{
		Reply:              reply,
		IntegratedResponse: t.integrated,
		SessionState:       state,
		Normalized:         t.normalized,
	}, nil
}

// GetSession 返回会话当前状态。
func (s *sessionService) GetSession(ctx context.Context, sessionID, userID string) (*model.ConversationSessionState, error) {
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("%w: sessionId 与 userId 不能为空", ErrInvalidRequest)
	}
	state, err := s.contextRepo.Load(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("加载会话失败: %w", err)
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

// ResetSession 删除会话，之后同一 ID 的消息按全新会话处理。
func (s *sessionService) ResetSession(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" || userID == "" {
		return fmt.Errorf("%w: sessionId 与 userId 不能为空", ErrInvalidRequest)
	}
	if err := s.contextRepo.Reset(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("重置会话失败: %w", err)
	}
	log.Infow("会话已重置", "sessionId", sessionID, "userId", userID)
	return nil
}

func (s *sessionService) loadOrCreate(ctx context.Context, sessionID, userID, locale string, now time.Time) (*model.ConversationSessionState, error) {
	state, err := s.contextRepo.Load(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("加载会话失败: %w", err)
	}
	if state == nil {
		return model.NewSessionState(sessionID, userID, locale, now), nil
	}

	last := state.Context.Metadata.LastActivity
	if s.idleTimeout > 0 && !last.IsZero() && now.Sub(last) > s.idleTimeout &&
		state.CurrentState != model.StateIdle && state.CurrentState != model.StateClosed {
		log.Infow("会话空闲超时", "sessionId", sessionID, "lastActivity", last, "state", state.CurrentState)
		state.ResumeState = state.CurrentState
		state.CurrentState = model.StateIdle
	}
	return state, nil
}

func applyTransition(state *model.ConversationSessionState, tr Transition, now time.Time) {
	c := &state.Context
	if tr.PushTopic && c.CurrentTopic.OrNone() != model.AnalysisNone {
		c.PushTopic(model.TopicFrame{
			Topic:    c.CurrentTopic,
			State:    state.CurrentState,
			PushedAt: now,
			Reason:   "切换到" + tr.Topic.Label(),
		})
	}
	if tr.PopTopic {
		c.PopTopic()
	}
	if tr.Topic != model.AnalysisNone {
		c.CurrentTopic = tr.Topic
		c.MergeTopicTags(string(tr.Topic))
	}
	c.PendingAnalysis = tr.Pending
}

func (s *sessionService) analyze(ctx context.Context, state *model.ConversationSessionState, topic model.AnalysisType, traceID string) (turn, error) {
	evals, err := s.runner.Run(ctx, topic, state.Context.UserProfile)
	if err != nil {
		return turn{}, fmt.Errorf("执行%s分析失败: %w", topic.Label(), err)
	}
	decision := mergeDecisions(evals)

	for _, ev := range evals {
		e := events.AnalysisEvent{
			TraceID:    traceID,
			Domain:     string(ev.Domain),
			Confidence: ev.Score,
			Level:      string(ev.Level),
			Rejected:   ev.Decision.ShouldReject,
		}
		if ev.Decision.Reason != nil {
			e.ReasonCode = ev.Decision.Reason.Code
		}
		s.publish(state, topic, e)
	}

	integrated := &IntegratedResponse{AnalysisType: topic, Evaluations: evals}
	if decision.ShouldReject {
		state.Context.PendingAnalysis = topic
		integrated.Decision = &decision
		log.Infow("分析结果被降级", "sessionId", state.SessionID, "topic", topic, "reason", decision.Reason.Code)
		return turn{
			next:       AfterAnalysis(decision),
			content:    degradationMessage(decision),
			integrated: integrated,
			normalized: NormalizedResponse{
				Suggestions:       append([]string{}, decision.Reason.Suggestions...),
				FollowUpQuestions: missingPrompts(ProfileMissing(topic, state.Context.UserProfile)),
				ActionItems:       optionItems(decision.FallbackOptions),
			},
		}, nil
	}

	explanation := s.explainer.Explain(ctx, ExplainRequest{
		AnalysisType: topic,
		Profile:      state.Context.UserProfile,
		Evaluations:  evals,
		Locale:       state.Locale,
	})
	state.Context.DomainSnapshot = snapshotOf(topic, evals, explanation, s.now())
	state.Context.PendingAnalysis = model.AnalysisNone
	integrated.Explanation = explanation
	return turn{
		next:         AfterAnalysis(decision),
		content:      explanation,
		analysisType: topic,
		integrated:   integrated,
		normalized: NormalizedResponse{
			Suggestions:       []string{},
			FollowUpQuestions: followUpsFor(topic),
			ActionItems:       []string{},
		},
	}, nil
}

func (s *sessionService) followUp(ctx context.Context, state *model.ConversationSessionState, question string) turn {
	answer := s.explainer.Explain(ctx, ExplainRequest{
		AnalysisType: state.Context.CurrentTopic,
		Profile:      state.Context.UserProfile,
		Snapshot:     state.Context.DomainSnapshot,
		Question:     question,
		Locale:       state.Locale,
	})
	return turn{
		next:    model.StateExplaining,
		content: answer,
		normalized: NormalizedResponse{
			Suggestions:       []string{},
			FollowUpQuestions: followUpsFor(state.Context.CurrentTopic),
			ActionItems:       []string{},
		},
	}
}

func collectReply(tr Transition, detected intent.Result, contextEmpty bool) turn {
	t := turn{
		next: tr.Next,
		normalized: NormalizedResponse{
			Suggestions:       []string{},
			FollowUpQuestions: []string{},
			ActionItems:       []string{},
		},
	}
	if tr.Topic == model.AnalysisNone {
		if contextEmpty || detected.Excluded {
			t.content = "您好，我可以为您分析八字命理，也可以结合房屋朝向分析住宅风水。请告诉我您想了解哪方面。"
		} else {
			t.content = "想进行八字分析请告诉我出生日期、时间与性别；想看住宅风水请描述房屋朝向或户型布局。"
		}
		t.normalized.FollowUpQuestions = []string{
			"想分析八字命理吗？请提供出生日期、时间与性别",
			"想看住宅风水吗？请描述房屋朝向或户型布局",
		}
		return t
	}

	if len(tr.Missing) == 0 {
		t.content = fmt.Sprintf("您的%s分析所需信息已齐全，需要我现在为您分析吗？", tr.Topic.Label())
		t.normalized.ActionItems = append(t.normalized.ActionItems, "开始"+tr.Topic.Label()+"分析")
		return t
	}
	t.content = fmt.Sprintf("好的，为了进行%s分析，还需要您提供：%s。", tr.Topic.Label(), strings.Join(tr.Missing, "、"))
	t.normalized.FollowUpQuestions = missingPrompts(tr.Missing)
	if tr.Topic == model.AnalysisBazi || tr.Topic == model.AnalysisCombined {
		t.normalized.ActionItems = append(t.normalized.ActionItems, "如已知四柱，也可以直接手动输入")
	}
	return t
}

func (s *sessionService) appendReply(state *model.ConversationSessionState, t turn, traceID string) model.ConversationMessage {
	reply := model.ConversationMessage{
		ID:        s.newID(),
		Role:      model.RoleAssistant,
		Content:   t.content,
		Timestamp: s.now(),
		Metadata:  &model.MessageMetadata{AnalysisType: t.analysisType, TraceID: traceID},
	}
	state.Context.AppendMessage(reply)
	return reply
}

func (s *sessionService) persist(ctx context.Context, state *model.ConversationSessionState) error {
	if dropped := state.Context.TrimMessages(s.maxMessages); dropped > 0 {
		log.Debugw("裁剪历史消息", "sessionId", state.SessionID, "dropped", dropped)
	}
	if err := s.contextRepo.Persist(ctx, state); err != nil {
		log.Error("保存会话失败", err)
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

// publish 投递分析事件；失败只记录日志，不影响本轮对话。
func (s *sessionService) publish(state *model.ConversationSessionState, topic model.AnalysisType, e events.AnalysisEvent) {
	if s.publisher == nil {
		return
	}
	e.EventID = s.newID()
	e.SessionID = state.SessionID
	e.UserID = state.UserID
	e.AnalysisType = string(topic)
	e.OccurredAt = s.now()

	// 使用独立的上下文，即使原始请求被取消也尽量投递
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishAnalysisEvent(ctx, e); err != nil {
		log.Warnw("投递分析事件失败", "sessionId", e.SessionID, "domain", e.Domain, "error", err)
	}
}

// mergeDecisions 合并多个领域的决策：任一领域被拒绝则整体拒绝，取最严重的原因，严重程度相同时取先出现者。
func mergeDecisions(evals []degradation.Evaluation) model.DegradationDecision {
	var chosen *model.DegradationDecision
	for i := range evals {
		d := &evals[i].Decision
		if !d.ShouldReject {
			continue
		}
		if chosen == nil || d.Reason.Severity.Rank() > chosen.Reason.Severity.Rank() {
			chosen = d
		}
	}
	if chosen == nil {
		return model.DegradationDecision{FallbackOptions: []model.FallbackOption{}}
	}
	return *chosen
}

func snapshotOf(topic model.AnalysisType, evals []degradation.Evaluation, summary string, now time.Time) *model.DomainSnapshot {
	snap := &model.DomainSnapshot{
		AnalysisType: topic,
		Confidence:   1,
		Level:        model.LevelHigh,
		Summary:      summary,
		CapturedAt:   now,
	}
	if len(evals) == 1 {
		snap.Results = evals[0].Result
	} else {
		snap.Results = make(map[string]interface{}, len(evals))
	}
	for _, ev := range evals {
		snap.Confidence = math.Min(snap.Confidence, ev.Score)
		if ev.Level.Rank() < snap.Level.Rank() {
			snap.Level = ev.Level
		}
		if len(evals) > 1 {
			snap.Results[string(ev.Domain)] = ev.Result
		}
	}
	return snap
}

func degradationMessage(d model.DegradationDecision) string {
	var b strings.Builder
	b.WriteString(d.Reason.Message)
	b.WriteString("。您可以：")
	for i, opt := range d.FallbackOptions {
		fmt.Fprintf(&b, "\n%d. %s：%s", i+1, opt.Name, opt.Description)
	}
	return b.String()
}

func optionItems(options []model.FallbackOption) []string {
	items := make([]string, 0, len(options))
	for _, opt := range options {
		items = append(items, opt.Name)
	}
	return items
}

var missingQuestion = map[string]string{
	intent.MissingBirthDate: "请问您的出生日期和时间是？（例如 1990年3月15日下午3点）",
	intent.MissingGender:    "请问您的性别是？",
	intent.MissingHouseInfo: "请问房屋的朝向或户型布局是怎样的？（例如 坐北朝南、三室两厅）",
}

func missingPrompts(missing []string) []string {
	prompts := make([]string, 0, len(missing))
	for _, m := range missing {
		if q, ok := missingQuestion[m]; ok {
			prompts = append(prompts, q)
		}
	}
	return prompts
}

func followUpsFor(t model.AnalysisType) []string {
	switch t {
	case model.AnalysisBazi:
		return []string{"想了解今年的流年运势吗？", "想看看事业或感情方面的分析吗？"}
	case model.AnalysisFengshui:
		return []string{"想了解卧室或大门的布局建议吗？", "想知道今年的飞星方位吉凶吗？"}
	case model.AnalysisCombined:
		return []string{"想了解住宅布局如何配合您的喜用神吗？"}
	}
	return []string{}
}

func analysisTypeFor(d model.Domain) model.AnalysisType {
	if d == model.DomainBazi {
		return model.AnalysisBazi
	}
	return model.AnalysisFengshui
}

// applyManualInput 把通过校验的手动输入写回画像，供后续分析复用。
func applyManualInput(p *model.UserProfile, manual model.ManualInput) {
	switch in := manual.(type) {
	case model.BaziManualInput:
		bazi := model.BaziData{}
		if p.BaziData != nil {
			bazi = *p.BaziData
		}
		bazi.Pillars = &model.BaziPillars{
			Year:  strings.TrimSpace(in.YearPillar),
			Month: strings.TrimSpace(in.MonthPillar),
			Day:   strings.TrimSpace(in.DayPillar),
			Hour:  strings.TrimSpace(in.HourPillar),
		}
		p.BaziData = &bazi
	case model.FengshuiManualInput:
		setFacing(p, in.Facing)
	case model.CompassManualInput:
		setFacing(p, int(math.Round(in.TrueNorth))%360)
	}
}

func setFacing(p *model.UserProfile, degrees int) {
	fengshui := model.FengshuiData{}
	if p.FengshuiData != nil {
		fengshui = *p.FengshuiData
	}
	fengshui.Facing = model.DirectionName(float64(degrees))
	fengshui.FacingDegrees = &degrees
	p.FengshuiData = &fengshui
}
