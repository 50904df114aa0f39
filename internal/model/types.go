package model

// AnalysisType 是意图识别得到的分析类型。
type AnalysisType string

const (
	AnalysisNone     AnalysisType = "none"
	AnalysisBazi     AnalysisType = "bazi"
	AnalysisFengshui AnalysisType = "fengshui"
	AnalysisCombined AnalysisType = "combined"
)

// OrNone 将空值视为 none。
func (t AnalysisType) OrNone() AnalysisType {
	if t == "" {
		return AnalysisNone
	}
	return t
}

// Counted 表示该类型的消息是否计入 analysisCount。
func (t AnalysisType) Counted() bool {
	return t == AnalysisBazi || t == AnalysisFengshui
}

// Domains 返回执行该类分析需要调用的分析器领域。
func (t AnalysisType) Domains() []Domain {
	switch t {
	case AnalysisBazi:
		return []Domain{DomainBazi}
	case AnalysisFengshui:
		return []Domain{DomainFengshui}
	case AnalysisCombined:
		return []Domain{DomainBazi, DomainFengshui}
	default:
		return nil
	}
}

// Label 返回分析类型的中文名称。
func (t AnalysisType) Label() string {
	switch t {
	case AnalysisBazi:
		return "八字"
	case AnalysisFengshui:
		return "风水"
	case AnalysisCombined:
		return "八字与风水综合"
	default:
		return "闲聊"
	}
}

// Domain 是外部分析器的领域。
type Domain string

const (
	DomainBazi     Domain = "bazi"
	DomainFengshui Domain = "fengshui" // 玄空飞星
	DomainCompass  Domain = "compass"
)

// Valid 表示领域是否受支持。
func (d Domain) Valid() bool {
	return d == DomainBazi || d == DomainFengshui || d == DomainCompass
}

// Remote 表示该领域由外部分析器完成。罗盘数据只来自手动输入。
func (d Domain) Remote() bool {
	return d == DomainBazi || d == DomainFengshui
}

// StateType 是会话状态机的状态。
type StateType string

const (
	StateGreeting       StateType = "greeting"
	StateCollectingInfo StateType = "collecting_info"
	StateAnalyzing      StateType = "analyzing"
	StateExplaining     StateType = "explaining"
	StateIdle           StateType = "idle"
	StateClosed         StateType = "closed"
)

// ConfidenceLevel 是由置信度分数映射得到的离散等级。
type ConfidenceLevel string

const (
	LevelReject     ConfidenceLevel = "reject"
	LevelDegraded   ConfidenceLevel = "degraded"
	LevelAcceptable ConfidenceLevel = "acceptable"
	LevelHigh       ConfidenceLevel = "high"
)

// Rank 返回等级的序数，便于比较单调性。
func (l ConfidenceLevel) Rank() int {
	switch l {
	case LevelReject:
		return 0
	case LevelDegraded:
		return 1
	case LevelAcceptable:
		return 2
	case LevelHigh:
		return 3
	}
	return -1
}

// Severity 是降级原因的严重程度。
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank 返回严重程度的序数：high > medium > low。
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}
