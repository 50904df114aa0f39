package degradation

import (
	"fmt"

	"xuanji-chat-go/internal/model"
)

// Evaluation 是 Evaluate 的结果。未被拒绝时 Result 原样透传给调用方。
type Evaluation struct {
	Domain   model.Domain              `json:"domain"`
	Score    float64                   `json:"score"`
	Level    model.ConfidenceLevel     `json:"level"`
	Decision model.DegradationDecision `json:"decision"`
	Result   map[string]interface{}    `json:"result,omitempty"`
}

// Orchestrator 是降级流程的入口：分级、分析原因、组装替代方案，并处理手动输入。
// 它不访问任何持久化存储。
type Orchestrator struct {
	classifier *Classifier
	analyzer   *Analyzer
	manual     ManualConfidence
}

// NewOrchestrator 创建降级编排器。
func NewOrchestrator(classifier *Classifier, manual ManualConfidence) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		analyzer:   NewAnalyzer(classifier.Thresholds().Reject),
		manual:     manual,
	}
}

// Classifier 返回编排器使用的分级器。
func (o *Orchestrator) Classifier() *Classifier {
	return o.classifier
}

// Evaluate 判断一次自动分析是否可信。
// 分级不为 reject 时返回空决策并透传 result；否则给出原因、替代方案和是否需要手动输入。
func (o *Orchestrator) Evaluate(domain model.Domain, score float64, input map[string]interface{}, result map[string]interface{}, errs []string) Evaluation {
	level := o.classifier.Classify(score)
	eval := Evaluation{Domain: domain, Score: score, Level: level}

	if level != model.LevelReject {
		eval.Decision = model.DegradationDecision{FallbackOptions: []model.FallbackOption{}}
		eval.Result = result
		return eval
	}

	reason := o.analyzer.Analyze(score, domain, input, errs)
	options := FallbacksFor(domain, reason)
	manualRequired := false
	for _, opt := range options {
		if opt.RequiresManualInput {
			manualRequired = true
			break
		}
	}
	eval.Decision = model.DegradationDecision{
		ShouldReject:        true,
		Reason:              &reason,
		FallbackOptions:     options,
		ManualInputRequired: manualRequired,
	}
	return eval
}

// SubmitManualInput 校验手动输入并返回固定的较高置信度与规范化结果。
// 校验失败时返回 *ValidationError，由调用方提示用户修正。
func (o *Orchestrator) SubmitManualInput(domain model.Domain, manual model.ManualInput, originalInput map[string]interface{}) (*ManualResult, error) {
	if manual == nil {
		return nil, &ValidationError{Reason: "未提供手动输入数据"}
	}
	if manual.Domain() != domain {
		return nil, &ValidationError{
			Field:  "domain",
			Reason: fmt.Sprintf("手动输入类型 %s 与分析领域 %s 不匹配", manual.Domain(), domain),
		}
	}

	var normalized map[string]interface{}
	switch in := manual.(type) {
	case model.BaziManualInput:
		if err := validateBazi(in); err != nil {
			return nil, err
		}
		normalized = normalizeBazi(in)
	case model.FengshuiManualInput:
		if err := validateFengshui(in); err != nil {
			return nil, err
		}
		normalized = normalizeFengshui(in)
	case model.CompassManualInput:
		if err := validateCompass(in); err != nil {
			return nil, err
		}
		normalized = normalizeCompass(in)
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("不支持的手动输入类型 %T", manual)}
	}

	normalized["source"] = "manual"
	if len(originalInput) > 0 {
		normalized["originalInput"] = originalInput
	}
	return &ManualResult{
		Domain:     domain,
		Confidence: o.manual.forDomain(domain),
		Result:     normalized,
	}, nil
}
