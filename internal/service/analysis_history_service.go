package service

import (
	"context"

	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/internal/repository"
	"xuanji-chat-go/pkg/events"
)

// EventPublisher 投递分析事件。pkg/kafka.Producer 满足该接口。
type EventPublisher interface {
	PublishAnalysisEvent(ctx context.Context, event events.AnalysisEvent) error
}

// EventPublisherFunc 让普通函数满足 EventPublisher。
type EventPublisherFunc func(ctx context.Context, event events.AnalysisEvent) error

// PublishAnalysisEvent 调用 f 本身。
func (f EventPublisherFunc) PublishAnalysisEvent(ctx context.Context, event events.AnalysisEvent) error {
	return f(ctx, event)
}

// AnalysisListResponse 是分页的分析历史。
type AnalysisListResponse struct {
	Content       []model.AnalysisRecordDTO `json:"content"`
	TotalElements int64                     `json:"totalElements"`
	TotalPages    int                       `json:"totalPages"`
	Size          int                       `json:"size"`
	Number        int                       `json:"number"`
}

// AnalysisHistoryService 负责分析记录的落库与查询。
type AnalysisHistoryService interface {
	HandleAnalysisEvent(ctx context.Context, event events.AnalysisEvent) error
	ListByUser(userID string, page, size int) (*AnalysisListResponse, error)
	ListBySession(userID, sessionID string) ([]model.AnalysisRecordDTO, error)
}

type analysisHistoryService struct {
	recordRepo repository.AnalysisRecordRepository
}

// NewAnalysisHistoryService 创建一个新的 AnalysisHistoryService 实例。
func NewAnalysisHistoryService(recordRepo repository.AnalysisRecordRepository) AnalysisHistoryService {
	return &analysisHistoryService{recordRepo: recordRepo}
}

// HandleAnalysisEvent 将一条分析事件写入 analysis_records 表。
// 既被 Kafka 消费者调用，也可在未启用 Kafka 时直接作为 EventPublisher 使用。
func (s *analysisHistoryService) HandleAnalysisEvent(_ context.Context, event events.AnalysisEvent) error {
	record := &model.AnalysisRecord{
		SessionID:    event.SessionID,
		UserID:       event.UserID,
		AnalysisType: model.AnalysisType(event.AnalysisType),
		Domain:       model.Domain(event.Domain),
		Confidence:   event.Confidence,
		Level:        model.ConfidenceLevel(event.Level),
		Rejected:     event.Rejected,
		ReasonCode:   event.ReasonCode,
		Manual:       event.Manual,
		TraceID:      event.TraceID,
		CreatedAt:    event.OccurredAt,
	}
	return s.recordRepo.Create(record)
}

// ListByUser 以分页的形式返回用户的分析历史，page 从 1 开始。
func (s *analysisHistoryService) ListByUser(userID string, page, size int) (*AnalysisListResponse, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size
	records, total, err := s.recordRepo.FindByUser(userID, offset, size)
	if err != nil {
		return nil, err
	}

	content := toDTOs(records)

	totalPages := 0
	if total > 0 {
		totalPages = (int(total) + size - 1) / size
	}
	return &AnalysisListResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}

// ListBySession 按时间顺序返回用户某个会话内的全部分析记录。
func (s *analysisHistoryService) ListBySession(userID, sessionID string) ([]model.AnalysisRecordDTO, error) {
	records, err := s.recordRepo.FindBySession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return toDTOs(records), nil
}

func toDTOs(records []model.AnalysisRecord) []model.AnalysisRecordDTO {
	content := make([]model.AnalysisRecordDTO, 0, len(records))
	for _, r := range records {
		content = append(content, model.AnalysisRecordDTO{AnalysisRecord: r, CreatedAt: model.LocalTime(r.CreatedAt)})
	}
	return content
}
