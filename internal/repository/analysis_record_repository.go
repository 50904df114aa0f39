package repository

import (
	"gorm.io/gorm"

	"xuanji-chat-go/internal/model"
)

// AnalysisRecordRepository 接口定义了分析历史的持久化操作。
type AnalysisRecordRepository interface {
	Create(record *model.AnalysisRecord) error
	FindByUser(userID string, offset, limit int) ([]model.AnalysisRecord, int64, error)
	FindBySession(userID, sessionID string) ([]model.AnalysisRecord, error)
}

// analysisRecordRepository 是 AnalysisRecordRepository 接口的 GORM 实现。
type analysisRecordRepository struct {
	db *gorm.DB
}

// NewAnalysisRecordRepository 创建一个新的 AnalysisRecordRepository 实例。
func NewAnalysisRecordRepository(db *gorm.DB) AnalysisRecordRepository {
	return &analysisRecordRepository{db: db}
}

// Create 写入一条分析记录。
func (r *analysisRecordRepository) Create(record *model.AnalysisRecord) error {
	return r.db.Create(record).Error
}

// FindByUser 按时间倒序分页检索用户的分析记录。
// 它返回记录列表、总记录数和可能发生的错误。
func (r *analysisRecordRepository) FindByUser(userID string, offset, limit int) ([]model.AnalysisRecord, int64, error) {
	var records []model.AnalysisRecord
	var total int64

	db := r.db.Model(&model.AnalysisRecord{}).Where("user_id = ?", userID)

	// 首先计算总记录数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FindBySession 返回某个会话的全部分析记录。
func (r *analysisRecordRepository) FindBySession(userID, sessionID string) ([]model.AnalysisRecord, error) {
	var records []model.AnalysisRecord
	err := r.db.Where("user_id = ? AND session_id = ?", userID, sessionID).Order("id ASC").Find(&records).Error
	return records, err
}
