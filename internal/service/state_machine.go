package service

import (
	"xuanji-chat-go/internal/intent"
	"xuanji-chat-go/internal/model"
)

// MergeProfile 将本轮抽取到的字段合并进用户画像，返回新画像，不修改 old。
// 新值覆盖旧值，本轮未提及的字段保留原值。
func MergeProfile(old model.UserProfile, info intent.ExtractedInfo) model.UserProfile {
	merged := model.UserProfile{ExpertiseLevel: old.ExpertiseLevel}
	if len(old.Preferences) > 0 {
		merged.Preferences = make(map[string]string, len(old.Preferences))
		for k, v := range old.Preferences {
			merged.Preferences[k] = v
		}
	}

	var bazi model.BaziData
	if old.BaziData != nil {
		bazi = *old.BaziData
		if old.BaziData.Pillars != nil {
			p := *old.BaziData.Pillars
			bazi.Pillars = &p
		}
	}
	bazi.BirthDate = override(bazi.BirthDate, info.BirthDate)
	bazi.BirthTime = override(bazi.BirthTime, info.BirthTime)
	bazi.Gender = override(bazi.Gender, info.Gender)
	bazi.BirthLocation = override(bazi.BirthLocation, info.BirthLocation)
	if len(info.Pillars) == 4 {
		bazi.Pillars = &model.BaziPillars{Year: info.Pillars[0], Month: info.Pillars[1], Day: info.Pillars[2], Hour: info.Pillars[3]}
	}
	if bazi != (model.BaziData{}) {
		merged.BaziData = &bazi
	}

	var fengshui model.FengshuiData
	if old.FengshuiData != nil {
		fengshui = *old.FengshuiData
		if old.FengshuiData.FacingDegrees != nil {
			d := *old.FengshuiData.FacingDegrees
			fengshui.FacingDegrees = &d
		}
	}
	if info.Facing != "" || info.FacingDegrees != nil {
		// 朝向整体替换，避免新方位与旧度数不一致
		fengshui.Facing = info.Facing
		fengshui.FacingDegrees = nil
		if info.FacingDegrees != nil {
			d := *info.FacingDegrees
			fengshui.FacingDegrees = &d
		}
	}
	fengshui.Layout = override(fengshui.Layout, info.Layout)
	if fengshui.Facing != "" || fengshui.FacingDegrees != nil || fengshui.Layout != "" {
		merged.FengshuiData = &fengshui
	}
	return merged
}

func override(old, v string) string {
	if v != "" {
		return v
	}
	return old
}

// ProfileMissing 返回画像距离完成指定分析仍缺少的信息。已有四柱视为具备出生日期。
func ProfileMissing(t model.AnalysisType, p model.UserProfile) []string {
	hasDate, hasGender, hasHouse := false, false, false
	if b := p.BaziData; b != nil {
		hasDate = b.BirthDate != "" || b.Pillars != nil
		hasGender = b.Gender != ""
	}
	if f := p.FengshuiData; f != nil {
		hasHouse = f.Facing != "" || f.FacingDegrees != nil || f.Layout != ""
	}
	return intent.MissingFor(t, hasDate, hasGender, hasHouse)
}

// TransitionInput 是计算下一状态所需的全部输入。
type TransitionInput struct {
	Current      model.StateType
	CurrentTopic model.AnalysisType
	Pending      model.AnalysisType
	StackTop     *model.TopicFrame
	Profile      model.UserProfile // 已合并本轮信息
	Intent       intent.Result
	ContextEmpty bool            // 本轮消息之前上下文是否为空
	ResumeFrom   model.StateType // 进入空闲前的状态
}

// Transition 是 NextState 的结果。Topic 为本轮所针对的分析类型。
type Transition struct {
	Next      model.StateType    `json:"next"`
	Topic     model.AnalysisType `json:"topic"`
	Pending   model.AnalysisType `json:"pending"`
	Missing   []string           `json:"missing"`
	PushTopic bool               `json:"pushTopic,omitempty"`
	PopTopic  bool               `json:"popTopic,omitempty"`
}

// NextState 根据当前状态、合并后的画像与意图识别结果计算下一状态。它是纯函数。
//
// Next 为 analyzing 时，调用方执行分析后再用 AfterAnalysis 得到最终状态。
func NextState(in TransitionInput) Transition {
	current := in.Current
	switch current {
	case model.StateIdle, model.StateClosed:
		// 重新打开：上下文为空时按新会话处理，否则从进入空闲前的状态继续
		switch {
		case in.ContextEmpty:
			current = model.StateGreeting
		case in.ResumeFrom == model.StateExplaining && in.CurrentTopic.OrNone() != model.AnalysisNone:
			current = model.StateExplaining
		default:
			current = model.StateCollectingInfo
		}
	case model.StateAnalyzing:
		// analyzing 只存在于单轮处理内部，持久化中出现时按收集信息处理
		current = model.StateCollectingInfo
	}

	requested := in.Intent.AnalysisType.OrNone()
	currentTopic := in.CurrentTopic.OrNone()
	pending := in.Pending.OrNone()

	if current == model.StateExplaining {
		if requested == model.AnalysisNone || requested == currentTopic {
			if requested != model.AnalysisNone && in.Intent.IsAnalysisRequest {
				// 同一话题下的新分析请求
				return collect(in, requested, false, false, true)
			}
			return Transition{Next: model.StateExplaining, Topic: currentTopic, Missing: []string{}}
		}
		// 回到栈顶话题时出栈，否则把当前话题压栈后切换
		if in.StackTop != nil && in.StackTop.Topic == requested {
			return collect(in, requested, false, true, true)
		}
		return collect(in, requested, true, false, true)
	}

	topic := requested
	if topic == model.AnalysisNone {
		topic = pending
	}
	if topic == model.AnalysisNone {
		topic = currentTopic
	}
	confirmed := requested != model.AnalysisNone || (pending != model.AnalysisNone && confirmsPending(in.Intent))
	return collect(in, topic, false, false, confirmed)
}

// confirmsPending 判断一条未指明分析类型的消息能否确认挂起的分析：
// 需要是肯定答复或带来了新的画像字段，问候与闲聊不算。
func confirmsPending(r intent.Result) bool {
	if r.Excluded {
		return false
	}
	return r.Affirmative || !r.ExtractedInfo.Empty() || len(r.ExtractedInfo.Pillars) > 0
}

func collect(in TransitionInput, topic model.AnalysisType, push, pop, confirmed bool) Transition {
	t := Transition{Next: model.StateCollectingInfo, Topic: topic, PushTopic: push, PopTopic: pop, Missing: []string{}}
	if topic == model.AnalysisNone {
		return t
	}
	t.Missing = ProfileMissing(topic, in.Profile)
	if len(t.Missing) == 0 && confirmed {
		t.Next = model.StateAnalyzing
		return t
	}
	// 信息齐全但未确认时同样挂起，等待肯定答复或补充信息
	t.Pending = topic
	return t
}

// AfterAnalysis 返回分析结束后的状态：结果被接受进入 explaining，被拒绝则回到 collecting_info。
func AfterAnalysis(decision model.DegradationDecision) model.StateType {
	if decision.ShouldReject {
		return model.StateCollectingInfo
	}
	return model.StateExplaining
}
