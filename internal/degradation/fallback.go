package degradation

import "xuanji-chat-go/internal/model"

// 替代方案 ID。
const (
	OptionManualPillars     = "manual_pillars"
	OptionBirthTimeWizard   = "birth_time_wizard"
	OptionManualFacing      = "manual_facing"
	OptionCompassTool       = "compass_tool"
	OptionManualReading     = "manual_reading"
	OptionCalibrationWizard = "calibration_wizard"
	OptionRetry             = "retry"
)

func retryOption() model.FallbackOption {
	return model.FallbackOption{
		ID:                  OptionRetry,
		Name:                "重新分析",
		Description:         "补充或修正信息后再次发起自动分析",
		EstimatedConfidence: 0.7,
	}
}

// FallbacksFor 返回领域的全部替代方案。当前策略与具体原因无关，reason 仅为后续按原因筛选预留。
// 每次调用都构造新的切片，调用方可以随意修改。
func FallbacksFor(domain model.Domain, _ model.DegradationReason) []model.FallbackOption {
	switch domain {
	case model.DomainBazi:
		return []model.FallbackOption{
			{
				ID:                  OptionManualPillars,
				Name:                "手动输入四柱",
				Description:         "直接输入年柱、月柱、日柱、时柱（如 庚午、己卯、甲子、壬申）",
				EstimatedConfidence: 0.8,
				RequiresManualInput: true,
			},
			{
				ID:                  OptionBirthTimeWizard,
				Name:                "出生时间校准向导",
				Description:         "通过几个问题帮助推定准确的出生时辰",
				EstimatedConfidence: 0.9,
			},
			retryOption(),
		}
	case model.DomainFengshui:
		return []model.FallbackOption{
			{
				ID:                  OptionManualFacing,
				Name:                "手动输入朝向",
				Description:         "输入大门朝向的罗盘度数（0-359）",
				EstimatedConfidence: 0.8,
				RequiresManualInput: true,
			},
			{
				ID:                  OptionCompassTool,
				Name:                "罗盘测量工具",
				Description:         "使用手机罗盘在大门处引导测量朝向",
				EstimatedConfidence: 0.9,
			},
			retryOption(),
		}
	case model.DomainCompass:
		return []model.FallbackOption{
			{
				ID:                  OptionManualReading,
				Name:                "手动输入罗盘读数",
				Description:         "输入磁北与真北读数（0-360）",
				EstimatedConfidence: 0.8,
				RequiresManualInput: true,
			},
			{
				ID:                  OptionCalibrationWizard,
				Name:                "罗盘校准向导",
				Description:         "按步骤校准手机传感器后重新读取",
				EstimatedConfidence: 0.9,
			},
			retryOption(),
		}
	}
	return []model.FallbackOption{retryOption()}
}
