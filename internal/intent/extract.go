package intent

import (
	"fmt"
	"strconv"
	"strings"

	"xuanji-chat-go/internal/model"
)

// ExtractedInfo 是从单条消息中抽取的结构化字段，字段为空表示本条消息未提及。
type ExtractedInfo struct {
	BirthDate     string   `json:"birthDate,omitempty"`
	BirthTime     string   `json:"birthTime,omitempty"`
	Gender        string   `json:"gender,omitempty"` // "男" 或 "女"
	BirthLocation string   `json:"birthLocation,omitempty"`
	Facing        string   `json:"facing,omitempty"`
	FacingDegrees *int     `json:"facingDegrees,omitempty"`
	Layout        string   `json:"layout,omitempty"`
	Pillars       []string `json:"pillars,omitempty"`
}

// HasBirthDate 表示是否抽取到出生日期。
func (e ExtractedInfo) HasBirthDate() bool { return e.BirthDate != "" }

// HasGender 表示是否抽取到性别。
func (e ExtractedInfo) HasGender() bool { return e.Gender != "" }

// HasHouseInfo 表示是否抽取到房屋朝向或布局。
func (e ExtractedInfo) HasHouseInfo() bool {
	return e.Facing != "" || e.FacingDegrees != nil || e.Layout != ""
}

// Empty 表示没有抽取到任何字段。
func (e ExtractedInfo) Empty() bool {
	return !e.HasBirthDate() && e.BirthTime == "" && !e.HasGender() && e.BirthLocation == "" && !e.HasHouseInfo()
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func matchWords(text string, words []string) []string {
	var hits []string
	for _, w := range words {
		if strings.Contains(text, w) {
			hits = append(hits, w)
		}
	}
	return hits
}

// extractDate 依次尝试完整公历日期、中文数字日期与年月。
func extractDate(text string) string {
	if m := fullDatePattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
		}
	}
	if m := chineseDatePattern.FindString(text); m != "" {
		return m
	}
	if m := yearMonthPattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return fmt.Sprintf("%s-%02d", m[1], month)
		}
	}
	return ""
}

// extractTime 返回 24 小时制的 "HH:MM"，或“申时”这类时辰。
func extractTime(text string) string {
	// 先移除日期部分，避免“15日”之类被误判
	stripped := fullDatePattern.ReplaceAllString(text, " ")
	if m := clockPattern.FindStringSubmatch(stripped); m != nil {
		hour, _ := strconv.Atoi(m[2])
		minute := 0
		if m[3] != "" {
			minute, _ = strconv.Atoi(m[3])
		}
		switch m[1] {
		case "下午", "傍晚", "晚上", "夜里":
			if hour < 12 {
				hour += 12
			}
		case "中午":
			if hour < 11 {
				hour += 12
			}
		}
		if hour <= 24 && minute < 60 {
			return fmt.Sprintf("%02d:%02d", hour%24, minute)
		}
	}
	if m := shichenPattern.FindStringSubmatch(text); m != nil {
		return m[1] + "时"
	}
	return ""
}

func extractGender(text string) string {
	male := malePattern.FindStringIndex(text)
	female := femalePattern.FindStringIndex(text)
	switch {
	case male != nil && female != nil:
		if male[0] <= female[0] {
			return "男"
		}
		return "女"
	case male != nil:
		return "男"
	case female != nil:
		return "女"
	}
	return ""
}

func extractBirthPlace(text string) string {
	for _, p := range birthPlacePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// normalizeDirection 将“南东”之类的组合规范为已知方位，无法识别时退回首字。
func normalizeDirection(dir string) string {
	if _, ok := model.DirectionDegrees(dir); ok {
		return dir
	}
	runes := []rune(dir)
	if len(runes) == 2 {
		swapped := string([]rune{runes[1], runes[0]})
		if _, ok := model.DirectionDegrees(swapped); ok {
			return swapped
		}
	}
	return string(runes[0])
}

// extractHouse 抽取朝向与布局。orientationAllowed 为 false 时只抽取布局描述。
func extractHouse(text string, orientationAllowed bool, info *ExtractedInfo) {
	if m := layoutPattern.FindString(text); m != "" {
		info.Layout = m
	}
	if !orientationAllowed {
		return
	}

	if m := sittingFacingPattern.FindStringSubmatch(text); m != nil {
		info.Facing = normalizeDirection(m[2])
	} else if m := facingPattern.FindStringSubmatch(text); m != nil {
		info.Facing = normalizeDirection(m[1])
	} else if m := facingSuffixPattern.FindStringSubmatch(text); m != nil {
		info.Facing = normalizeDirection(m[1])
	}

	if m := degreePattern.FindStringSubmatch(text); m != nil {
		if deg, err := strconv.Atoi(m[1]); err == nil && deg >= 0 && deg < 360 {
			info.FacingDegrees = &deg
		}
	}
	if info.FacingDegrees == nil && info.Facing != "" {
		if deg, ok := model.DirectionDegrees(info.Facing); ok {
			info.FacingDegrees = &deg
		}
	}
}
