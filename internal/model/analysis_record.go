package model

import "time"

// AnalysisRecord 对应数据库中的 'analysis_records' 表，每次分析尝试记录一行。
type AnalysisRecord struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SessionID    string          `gorm:"type:varchar(64);index;not null" json:"sessionId"`
	UserID       string          `gorm:"type:varchar(64);index;not null" json:"userId"`
	AnalysisType AnalysisType    `gorm:"type:varchar(16);not null" json:"analysisType"`
	Domain       Domain          `gorm:"type:varchar(16);not null" json:"domain"`
	Confidence   float64         `gorm:"not null" json:"confidence"`
	Level        ConfidenceLevel `gorm:"type:varchar(16);not null" json:"level"`
	Rejected     bool            `gorm:"not null" json:"rejected"`
	ReasonCode   string          `gorm:"type:varchar(64)" json:"reasonCode,omitempty"`
	Manual       bool            `gorm:"not null;default:false" json:"manual"`
	TraceID      string          `gorm:"type:varchar(64)" json:"traceId,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"-"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_records"
}

// AnalysisRecordDTO 是返回给前端的分析历史条目。
type AnalysisRecordDTO struct {
	AnalysisRecord
	CreatedAt LocalTime `json:"createdAt"`
}
