package model

// DegradationReason 描述一次分析被拒绝的原因。
type DegradationReason struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
	Severity    Severity `json:"severity"`
}

// FallbackOption 是分析被拒绝后可供用户选择的替代方案，每次决策都重新构造。
type FallbackOption struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	EstimatedConfidence float64 `json:"estimatedConfidence"`
	RequiresManualInput bool    `json:"requiresManualInput"`
}

// DegradationDecision 是降级编排器的输出。
// 不变式：ShouldReject 为 false 当且仅当 Reason 为 nil 当且仅当 FallbackOptions 为空。
type DegradationDecision struct {
	ShouldReject        bool               `json:"shouldReject"`
	Reason              *DegradationReason `json:"reason,omitempty"`
	FallbackOptions     []FallbackOption   `json:"fallbackOptions"`
	ManualInputRequired bool               `json:"manualInputRequired"`
}
