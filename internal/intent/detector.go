// Package intent 识别用户消息是否为命理/风水分析请求，并抽取出生信息与房屋朝向。
// Detector 无状态，可被并发调用。
package intent

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"xuanji-chat-go/internal/model"
)

// 缺失信息的展示文本。
const (
	MissingBirthDate = "出生日期"
	MissingGender    = "性别"
	MissingHouseInfo = "房屋朝向或布局信息"
)

const (
	minMessageRunes      = 2
	defaultMinConfidence = 0.3
	keywordWeight        = 0.1
	maxKeywordScore      = 0.5
	dateWeight           = 0.2
	intentPatternWeight  = 0.2
	lengthWeight         = 0.1
	lengthBandRunes      = 10
)

// Result 是一次意图识别的结果。
type Result struct {
	IsAnalysisRequest bool               `json:"isAnalysisRequest"`
	AnalysisType      model.AnalysisType `json:"analysisType"`
	Confidence        float64            `json:"confidence"`
	ExtractedInfo     ExtractedInfo      `json:"extractedInfo"`
	Reason            string             `json:"reason"`
	IsIncomplete      bool               `json:"isIncomplete"`
	MissingInfo       []string           `json:"missingInfo"`
	Keywords          []string           `json:"keywords,omitempty"`
	Excluded          bool               `json:"excluded,omitempty"`    // 命中问候/闲聊/定义类排除模式
	Affirmative       bool               `json:"affirmative,omitempty"` // 好的、可以、开始吧等肯定答复
}

// Detector 识别分析请求。
type Detector struct {
	minConfidence float64
}

// NewDetector 创建使用默认最低置信度 0.3 的识别器。
func NewDetector() *Detector {
	return &Detector{minConfidence: defaultMinConfidence}
}

var defaultDetector = NewDetector()

// DetectAnalysisRequest 使用默认识别器识别消息。
func DetectAnalysisRequest(message string) Result {
	return defaultDetector.Detect(message)
}

// signals 汇总一条消息中命中的全部信号。
type signals struct {
	baziCore     []string
	baziWeak     []string
	fengshuiCore []string
	fengshuiWeak []string
	pillars      []string
	hasBirthWord bool
	hasHouseWord bool
	intentMatch  bool
}

func (s signals) keywords() []string {
	var all []string
	all = append(all, s.baziCore...)
	all = append(all, s.fengshuiCore...)
	all = append(all, s.baziWeak...)
	all = append(all, s.fengshuiWeak...)
	all = append(all, s.pillars...)
	return all
}

// Detect 识别消息。缺少必要信息时 IsAnalysisRequest 一定为 false，与置信度无关。
// 过短消息与肯定答复不构成分析请求，但仍会抽取其中的字段（如单独回复“男”）。
func (d *Detector) Detect(message string) Result {
	text := strings.TrimSpace(message)
	affirmative := affirmationPattern.MatchString(text)

	// (1) 空消息或过短消息
	if utf8.RuneCountInString(text) < minMessageRunes {
		return Result{
			AnalysisType:  model.AnalysisNone,
			ExtractedInfo: extractInfo(text, collectSignals(text)),
			Reason:        "消息为空或过短",
			MissingInfo:   []string{},
			Affirmative:   affirmative,
		}
	}
	if affirmative {
		return Result{AnalysisType: model.AnalysisNone, Reason: "肯定答复", MissingInfo: []string{}, Affirmative: true}
	}

	// (2) 问候、闲聊与定义类提问
	for _, p := range exclusionPatterns {
		if p.MatchString(text) {
			return Result{
				AnalysisType: model.AnalysisNone,
				Reason:       "问候、闲聊或概念性提问，不是分析请求",
				MissingInfo:  []string{},
				Excluded:     true,
			}
		}
	}

	// (3) 关键词
	sig := collectSignals(text)

	// (4) 结构化字段
	info := extractInfo(text, sig)

	// (5) 置信度
	confidence := math.Min(float64(len(sig.keywords()))*keywordWeight, maxKeywordScore)
	if info.HasBirthDate() {
		confidence += dateWeight
	}
	if sig.intentMatch {
		confidence += intentPatternWeight
	}
	if utf8.RuneCountInString(text) >= lengthBandRunes {
		confidence += lengthWeight
	}
	confidence = math.Round(math.Min(confidence, 1)*100) / 100

	// (6) 分析类型
	analysisType := classify(sig, info)

	// (7) 完整性
	missing := MissingFor(analysisType, info.HasBirthDate(), info.HasGender(), info.HasHouseInfo())
	incomplete := len(missing) > 0

	result := Result{
		AnalysisType:  analysisType,
		Confidence:    confidence,
		ExtractedInfo: info,
		IsIncomplete:  incomplete,
		MissingInfo:   missing,
		Keywords:      sig.keywords(),
	}
	result.IsAnalysisRequest = analysisType != model.AnalysisNone && !incomplete && confidence >= d.minConfidence

	// (8) 原因说明
	result.Reason = buildReason(result, sig)
	return result
}

func extractInfo(text string, sig signals) ExtractedInfo {
	info := ExtractedInfo{
		BirthDate: extractDate(text),
		BirthTime: extractTime(text),
		Gender:    extractGender(text),
		Pillars:   sig.pillars,
	}
	if sig.hasBirthWord {
		info.BirthLocation = extractBirthPlace(text)
	}
	// 出生词汇与方位同时出现时，方位默认描述的是出生地而非房屋，除非明确提到房屋
	extractHouse(text, !sig.hasBirthWord || sig.hasHouseWord, &info)
	return info
}

func collectSignals(text string) signals {
	sig := signals{
		baziCore:     matchWords(text, baziCoreKeywords),
		fengshuiCore: matchWords(text, fengshuiCoreKeywords),
		hasBirthWord: containsAny(text, birthVocabulary),
		hasHouseWord: containsAny(text, houseVocabulary),
		pillars:      pillarPattern.FindAllString(text, -1),
	}
	for _, g := range baziWeakKeywords {
		sig.baziWeak = append(sig.baziWeak, matchWords(text, g.words)...)
	}
	for _, g := range fengshuiWeakKeywords {
		sig.fengshuiWeak = append(sig.fengshuiWeak, matchWords(text, g.words)...)
	}
	for _, p := range intentPatterns {
		if p.MatchString(text) {
			sig.intentMatch = true
			break
		}
	}
	return sig
}

// classify 按优先级判定分析类型：
// 单侧命中核心词取该侧；两侧都命中核心词才是综合分析；
// 都未命中核心词时比较辅助信号，有出生日期时偏向八字。
func classify(sig signals, info ExtractedInfo) model.AnalysisType {
	baziCore := len(sig.baziCore) > 0
	fengshuiCore := len(sig.fengshuiCore) > 0
	switch {
	case baziCore && fengshuiCore:
		return model.AnalysisCombined
	case baziCore:
		return model.AnalysisBazi
	case fengshuiCore:
		return model.AnalysisFengshui
	}

	baziScore := len(sig.baziWeak) + len(sig.pillars)
	if info.HasBirthDate() {
		baziScore++
	}
	if info.HasGender() {
		baziScore++
	}
	fengshuiScore := len(sig.fengshuiWeak)
	if info.HasHouseInfo() {
		fengshuiScore++
	}

	switch {
	case baziScore > 0 && fengshuiScore > 0:
		if info.HasBirthDate() || baziScore >= fengshuiScore {
			return model.AnalysisBazi
		}
		return model.AnalysisFengshui
	case baziScore > 0:
		return model.AnalysisBazi
	case fengshuiScore > 0:
		return model.AnalysisFengshui
	}
	return model.AnalysisNone
}

// MissingFor 返回指定分析类型仍缺失的信息。
// 八字需要出生日期与性别，风水需要房屋朝向或布局，综合分析需要出生日期与房屋信息。
func MissingFor(t model.AnalysisType, hasBirthDate, hasGender, hasHouse bool) []string {
	missing := []string{}
	switch t {
	case model.AnalysisBazi:
		if !hasBirthDate {
			missing = append(missing, MissingBirthDate)
		}
		if !hasGender {
			missing = append(missing, MissingGender)
		}
	case model.AnalysisFengshui:
		if !hasHouse {
			missing = append(missing, MissingHouseInfo)
		}
	case model.AnalysisCombined:
		if !hasBirthDate {
			missing = append(missing, MissingBirthDate)
		}
		if !hasHouse {
			missing = append(missing, MissingHouseInfo)
		}
	}
	return missing
}

func buildReason(r Result, sig signals) string {
	if r.AnalysisType == model.AnalysisNone {
		return "未检测到八字或风水相关信号"
	}
	if r.IsIncomplete {
		return fmt.Sprintf("检测到%s分析意图，但缺少：%s", r.AnalysisType.Label(), strings.Join(r.MissingInfo, "、"))
	}

	var parts []string
	if kw := sig.keywords(); len(kw) > 0 {
		parts = append(parts, "关键词："+strings.Join(kw, "、"))
	}
	if r.ExtractedInfo.HasBirthDate() {
		parts = append(parts, "包含日期信息")
	}
	if r.ExtractedInfo.HasHouseInfo() {
		parts = append(parts, "包含房屋朝向信息")
	}
	if sig.intentMatch {
		parts = append(parts, "匹配分析请求句式")
	}
	if !r.IsAnalysisRequest {
		return fmt.Sprintf("%s分析信号较弱（置信度 %.2f）：%s", r.AnalysisType.Label(), r.Confidence, strings.Join(parts, "；"))
	}
	return fmt.Sprintf("检测到%s分析请求（置信度 %.2f）：%s", r.AnalysisType.Label(), r.Confidence, strings.Join(parts, "；"))
}
