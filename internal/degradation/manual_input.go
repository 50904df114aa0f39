package degradation

import (
	"fmt"
	"math"
	"strings"

	"xuanji-chat-go/internal/model"
)

// 十天干与十二地支。
const (
	heavenlyStems   = "甲乙丙丁戊己庚辛壬癸"
	earthlyBranches = "子丑寅卯辰巳午未申酉戌亥"
)

// 天干对应的五行。
var stemElements = map[rune]string{
	'甲': "木", '乙': "木",
	'丙': "火", '丁': "火",
	'戊': "土", '己': "土",
	'庚': "金", '辛': "金",
	'壬': "水", '癸': "水",
}

// ValidationError 表示手动输入未通过结构校验，Reason 可直接展示给用户。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ManualResult 是手动输入通过校验后的结果。
type ManualResult struct {
	Domain     model.Domain           `json:"domain"`
	Confidence float64                `json:"confidence"`
	Result     map[string]interface{} `json:"normalizedResult"`
}

// ManualConfidence 是手动输入通过校验后赋予的固定置信度。
type ManualConfidence struct {
	Bazi     float64
	Fengshui float64
	Compass  float64
}

// DefaultManualConfidence 返回默认值：八字 0.85，风水 0.90，罗盘 0.90。
func DefaultManualConfidence() ManualConfidence {
	return ManualConfidence{Bazi: 0.85, Fengshui: 0.90, Compass: 0.90}
}

func (m ManualConfidence) forDomain(d model.Domain) float64 {
	switch d {
	case model.DomainBazi:
		return m.Bazi
	case model.DomainFengshui:
		return m.Fengshui
	default:
		return m.Compass
	}
}

// ValidatePillar 校验单柱：两个字符，首字为天干，次字为地支。
func ValidatePillar(field, pillar string) error {
	runes := []rune(strings.TrimSpace(pillar))
	if len(runes) != 2 {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("“%s”应为两个汉字，如“甲子”", pillar)}
	}
	if !strings.ContainsRune(heavenlyStems, runes[0]) {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("“%c”不是天干（%s）", runes[0], heavenlyStems)}
	}
	if !strings.ContainsRune(earthlyBranches, runes[1]) {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("“%c”不是地支（%s）", runes[1], earthlyBranches)}
	}
	return nil
}

func validateBazi(in model.BaziManualInput) error {
	for _, p := range []struct{ field, value string }{
		{"yearPillar", in.YearPillar},
		{"monthPillar", in.MonthPillar},
		{"dayPillar", in.DayPillar},
		{"hourPillar", in.HourPillar},
	} {
		if err := ValidatePillar(p.field, p.value); err != nil {
			return err
		}
	}
	return nil
}

func validateFengshui(in model.FengshuiManualInput) error {
	if in.Facing < 0 || in.Facing >= 360 {
		return &ValidationError{Field: "facing", Reason: fmt.Sprintf("朝向度数 %d 超出范围，应为 0-359 的整数", in.Facing)}
	}
	return nil
}

func validateCompass(in model.CompassManualInput) error {
	if math.IsNaN(in.Magnetic) || in.Magnetic < 0 || in.Magnetic > 360 {
		return &ValidationError{Field: "magnetic", Reason: "磁北读数应在 0-360 之间"}
	}
	if math.IsNaN(in.TrueNorth) || in.TrueNorth < 0 || in.TrueNorth > 360 {
		return &ValidationError{Field: "trueNorth", Reason: "真北读数应在 0-360 之间"}
	}
	return nil
}

func normalizeBazi(in model.BaziManualInput) map[string]interface{} {
	day := []rune(strings.TrimSpace(in.DayPillar))
	return map[string]interface{}{
		"pillars": map[string]interface{}{
			"year":  strings.TrimSpace(in.YearPillar),
			"month": strings.TrimSpace(in.MonthPillar),
			"day":   strings.TrimSpace(in.DayPillar),
			"hour":  strings.TrimSpace(in.HourPillar),
		},
		"dayMaster":        string(day[0]),
		"dayMasterElement": stemElements[day[0]],
	}
}

func normalizeFengshui(in model.FengshuiManualInput) map[string]interface{} {
	sitting := (in.Facing + 180) % 360
	return map[string]interface{}{
		"facing":           in.Facing,
		"facingDirection":  model.DirectionName(float64(in.Facing)),
		"sitting":          sitting,
		"sittingDirection": model.DirectionName(float64(sitting)),
	}
}

func normalizeCompass(in model.CompassManualInput) map[string]interface{} {
	// 磁偏角归一化到 (-180, 180]
	declination := math.Mod(in.TrueNorth-in.Magnetic, 360)
	if declination > 180 {
		declination -= 360
	} else if declination <= -180 {
		declination += 360
	}
	return map[string]interface{}{
		"magnetic":    in.Magnetic,
		"trueNorth":   in.TrueNorth,
		"declination": declination,
		"direction":   model.DirectionName(in.TrueNorth),
	}
}
