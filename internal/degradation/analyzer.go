package degradation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"xuanji-chat-go/internal/model"
)

// 降级原因代码。
const (
	CodeMissingBirthDatetime = "MISSING_BIRTH_DATETIME"
	CodeMissingGender        = "MISSING_GENDER"
	CodeInvalidFacing        = "INVALID_FACING"
	CodeMissingSensorData    = "MISSING_SENSOR_DATA"
	CodeProcessingErrors     = "PROCESSING_ERRORS"
	CodeLowConfidence        = "LOW_CONFIDENCE"
	CodeUnknown              = "UNKNOWN"
)

// 分析器输入中使用的字段名。
const (
	FieldBirthDate     = "birthDate"
	FieldBirthTime     = "birthTime"
	FieldGender        = "gender"
	FieldBirthLocation = "birthLocation"
	FieldFacing        = "facing"
	FieldFacingDegrees = "facingDegrees"
	FieldLayout        = "layout"
	FieldAccelerometer = "accelerometer"
	FieldMagnetometer  = "magnetometer"
	FieldGyroscope     = "gyroscope"
)

type ruleInput struct {
	score       float64
	rejectBelow float64
	domain      model.Domain
	input       map[string]interface{}
	errs        []string
}

// rule 是一条降级规则。domain 为空表示对所有领域生效。
type rule struct {
	code     string
	severity model.Severity
	domain   model.Domain
	applies  func(in ruleInput) bool
	build    func(in ruleInput) model.DegradationReason
}

// Analyzer 按声明顺序评估规则，选出最严重的降级原因；严重程度相同时先声明者优先。
type Analyzer struct {
	rules       []rule
	rejectBelow float64
}

// NewAnalyzer 创建使用默认规则集的分析器，rejectBelow 与分级器的拒绝阈值一致。
func NewAnalyzer(rejectBelow float64) *Analyzer {
	return &Analyzer{rules: defaultRules(), rejectBelow: rejectBelow}
}

// 规则顺序：领域字段检查在前，其次是处理错误，最后是通用的低置信度。
// 被拒绝的结果一定满足低置信度条件，因此它放在最后才能让更具体的原因浮现。
func defaultRules() []rule {
	return []rule{
		{
			code:     CodeMissingBirthDatetime,
			severity: model.SeverityHigh,
			domain:   model.DomainBazi,
			applies:  func(in ruleInput) bool { return !present(in.input, FieldBirthDate) },
			build: func(in ruleInput) model.DegradationReason {
				return model.DegradationReason{
					Message: "缺少出生日期与时间，无法准确排出八字",
					Suggestions: []string{
						"请提供完整的公历或农历出生日期，例如 1990年3月15日",
						"如果知道出生时辰，请一并提供，例如 下午3点",
						"如已知四柱，可直接手动输入年柱、月柱、日柱、时柱",
					},
				}
			},
		},
		{
			code:     CodeMissingGender,
			severity: model.SeverityMedium,
			domain:   model.DomainBazi,
			applies:  func(in ruleInput) bool { return !present(in.input, FieldGender) },
			build: func(in ruleInput) model.DegradationReason {
				return model.DegradationReason{
					Message:     "缺少性别信息，大运顺逆排法无法确定",
					Suggestions: []string{"请告诉我您的性别（男/女）"},
				}
			},
		},
		{
			code:     CodeInvalidFacing,
			severity: model.SeverityHigh,
			domain:   model.DomainFengshui,
			applies: func(in ruleInput) bool {
				deg, ok := number(in.input, FieldFacingDegrees)
				return !ok || deg < 0 || deg >= 360
			},
			build: func(in ruleInput) model.DegradationReason {
				return model.DegradationReason{
					Message: "房屋朝向缺失或超出 0-360 度范围，无法排出玄空飞星盘",
					Suggestions: []string{
						"请使用罗盘或手机指南针在大门处测量朝向度数",
						"也可以描述为“坐北朝南”等方位",
						"可上传户型图并标注大门方向",
					},
				}
			},
		},
		{
			code:     CodeMissingSensorData,
			severity: model.SeverityHigh,
			domain:   model.DomainCompass,
			applies: func(in ruleInput) bool {
				return !present(in.input, FieldAccelerometer) ||
					!present(in.input, FieldMagnetometer) ||
					!present(in.input, FieldGyroscope)
			},
			build: func(in ruleInput) model.DegradationReason {
				var missing []string
				for _, f := range []string{FieldAccelerometer, FieldMagnetometer, FieldGyroscope} {
					if !present(in.input, f) {
						missing = append(missing, f)
					}
				}
				return model.DegradationReason{
					Message: fmt.Sprintf("传感器数据不完整（缺少 %s），罗盘读数不可靠", strings.Join(missing, ", ")),
					Suggestions: []string{
						"请允许浏览器访问设备方向与运动传感器",
						"远离金属物体与电器后按“8”字形校准手机",
						"也可以手动输入罗盘读数",
					},
				}
			},
		},
		{
			code:     CodeProcessingErrors,
			severity: model.SeverityHigh,
			applies:  func(in ruleInput) bool { return len(in.errs) > 0 },
			build: func(in ruleInput) model.DegradationReason {
				return model.DegradationReason{
					Message: "分析过程中出现错误：" + strings.Join(in.errs, "；"),
					Suggestions: []string{
						"请稍后重试",
						"检查输入信息是否完整、格式是否正确",
					},
				}
			},
		},
		{
			code:     CodeLowConfidence,
			severity: model.SeverityHigh,
			applies:  func(in ruleInput) bool { return in.score < in.rejectBelow },
			build: func(in ruleInput) model.DegradationReason {
				return model.DegradationReason{
					Message: fmt.Sprintf("分析结果置信度过低（%.0f%%），暂不展示自动分析结果", in.score*100),
					Suggestions: []string{
						"补充更完整、更准确的信息后重新分析",
						"使用手动输入方式提供关键数据",
					},
				}
			},
		},
	}
}

// Analyze 返回应当展示给用户的唯一降级原因。
func (a *Analyzer) Analyze(score float64, domain model.Domain, input map[string]interface{}, errs []string) model.DegradationReason {
	in := ruleInput{score: score, rejectBelow: a.rejectBelow, domain: domain, input: input, errs: errs}

	candidates := a.candidates(in)
	if len(candidates) == 0 {
		return model.DegradationReason{
			Code:        CodeUnknown,
			Message:     "分析结果暂不可用，原因未知",
			Suggestions: []string{"请稍后重试，或选择其他方式提供信息"},
			Severity:    model.SeverityMedium,
		}
	}
	return candidates[0]
}

// candidates 返回所有命中的降级原因，按严重程度降序、声明顺序稳定排列。
func (a *Analyzer) candidates(in ruleInput) []model.DegradationReason {
	var candidates []model.DegradationReason
	for _, r := range a.rules {
		if r.domain != "" && r.domain != in.domain {
			continue
		}
		if !r.applies(in) {
			continue
		}
		reason := r.build(in)
		reason.Code = r.code
		reason.Severity = r.severity
		candidates = append(candidates, reason)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Severity.Rank() > candidates[j].Severity.Rank()
	})
	return candidates
}

// present 判断字段存在且不是空值。
func present(input map[string]interface{}, key string) bool {
	v, ok := input[key]
	if !ok || v == nil {
		return false
	}
	switch tv := v.(type) {
	case string:
		return strings.TrimSpace(tv) != ""
	case []interface{}:
		return len(tv) > 0
	case map[string]interface{}:
		return len(tv) > 0
	}
	return true
}

// number 从输入中读取数值字段，兼容 JSON 解码得到的 float64 与 json.Number。
func number(input map[string]interface{}, key string) (float64, bool) {
	switch v := input[key].(type) {
	case int:
		return float64(v), true
	case *int:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
