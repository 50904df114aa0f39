// Package degradation 实现置信度分级、降级原因分析、替代方案目录与降级编排。
// 包内所有类型均无可变状态，可被多个请求并发调用。
package degradation

import (
	"fmt"
	"math"

	"xuanji-chat-go/internal/config"
	"xuanji-chat-go/internal/model"
)

// Thresholds 是置信度分级的边界，必须严格递增。
type Thresholds struct {
	Reject     float64
	Degraded   float64
	Acceptable float64
}

// DefaultThresholds 返回默认阈值 0.4 / 0.6 / 0.8。
func DefaultThresholds() Thresholds {
	return Thresholds{Reject: 0.4, Degraded: 0.6, Acceptable: 0.8}
}

// ThresholdsFromConfig 将配置转换为阈值。
func ThresholdsFromConfig(cfg config.ConfidenceConfig) Thresholds {
	return Thresholds{Reject: cfg.Reject, Degraded: cfg.Degraded, Acceptable: cfg.Acceptable}
}

// Classifier 将置信度分数映射为离散等级。
type Classifier struct {
	t Thresholds
}

// NewClassifier 校验阈值并创建分级器。
func NewClassifier(t Thresholds) (*Classifier, error) {
	if !(t.Reject > 0 && t.Reject < t.Degraded && t.Degraded < t.Acceptable && t.Acceptable <= 1) {
		return nil, &config.ConfigurationError{
			Key:    "confidence",
			Reason: fmt.Sprintf("invalid thresholds %.2f/%.2f/%.2f", t.Reject, t.Degraded, t.Acceptable),
		}
	}
	return &Classifier{t: t}, nil
}

// Thresholds 返回分级器使用的阈值。
func (c *Classifier) Thresholds() Thresholds {
	return c.t
}

// Classify 返回分数所属的等级。超出 [0,1] 的分数被截断到边界，NaN 视为拒绝。
func (c *Classifier) Classify(score float64) model.ConfidenceLevel {
	if math.IsNaN(score) {
		return model.LevelReject
	}
	score = Clamp(score)
	switch {
	case score < c.t.Reject:
		return model.LevelReject
	case score < c.t.Degraded:
		return model.LevelDegraded
	case score < c.t.Acceptable:
		return model.LevelAcceptable
	default:
		return model.LevelHigh
	}
}

// Clamp 将分数截断到 [0,1]。
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
