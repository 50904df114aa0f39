// Package events defines the messages published to Kafka.
package events

import "time"

// AnalysisEvent 记录一次分析尝试（自动分析或手动输入），每个领域一条。
type AnalysisEvent struct {
	EventID      string    `json:"event_id"`
	TraceID      string    `json:"trace_id,omitempty"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	AnalysisType string    `json:"analysis_type"`
	Domain       string    `json:"domain"`
	Confidence   float64   `json:"confidence"`
	Level        string    `json:"level"`
	Rejected     bool      `json:"rejected"`
	ReasonCode   string    `json:"reason_code,omitempty"`
	Manual       bool      `json:"manual"`
	OccurredAt   time.Time `json:"occurred_at"`
}
