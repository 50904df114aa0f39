package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xuanji-chat-go/internal/intent"
	"xuanji-chat-go/internal/model"
)

func intPtr(v int) *int { return &v }

func TestMergeProfile_DoesNotMutateOld(t *testing.T) {
	old := model.UserProfile{
		ExpertiseLevel: "beginner",
		Preferences:    map[string]string{"school": "xuankong"},
		BaziData:       &model.BaziData{BirthDate: "1990-03-15", Gender: "男"},
		FengshuiData:   &model.FengshuiData{Facing: "南", FacingDegrees: intPtr(180)},
	}

	merged := MergeProfile(old, intent.ExtractedInfo{BirthTime: "15:00", Facing: "东", FacingDegrees: intPtr(90)})

	assert.Equal(t, "1990-03-15", merged.BaziData.BirthDate)
	assert.Equal(t, "15:00", merged.BaziData.BirthTime)
	assert.Equal(t, "男", merged.BaziData.Gender)
	assert.Equal(t, "东", merged.FengshuiData.Facing)
	assert.Equal(t, 90, *merged.FengshuiData.FacingDegrees)

	assert.Empty(t, old.BaziData.BirthTime)
	assert.Equal(t, 180, *old.FengshuiData.FacingDegrees)

	merged.Preferences["school"] = "bazhai"
	assert.Equal(t, "xuankong", old.Preferences["school"])
}

func TestMergeProfile_EmptyInfoKeepsProfileEmpty(t *testing.T) {
	merged := MergeProfile(model.UserProfile{ExpertiseLevel: "beginner"}, intent.ExtractedInfo{})
	assert.Nil(t, merged.BaziData)
	assert.Nil(t, merged.FengshuiData)
	assert.False(t, merged.HasAnyData())
}

func TestMergeProfile_Pillars(t *testing.T) {
	merged := MergeProfile(model.UserProfile{}, intent.ExtractedInfo{Pillars: []string{"庚午", "己卯", "甲子", "壬申"}})
	require.NotNil(t, merged.BaziData)
	require.NotNil(t, merged.BaziData.Pillars)
	assert.Equal(t, "甲子", merged.BaziData.Pillars.Day)
	assert.Equal(t, []string{intent.MissingGender}, ProfileMissing(model.AnalysisBazi, merged))
}

func completeBazi() model.UserProfile {
	return model.UserProfile{BaziData: &model.BaziData{BirthDate: "1990-03-15", Gender: "男"}}
}

func TestNextState(t *testing.T) {
	frame := model.TopicFrame{Topic: model.AnalysisBazi, State: model.StateExplaining}

	tests := []struct {
		name string
		in   TransitionInput
		want Transition
	}{
		{
			name: "greeting without data collects info",
			in:   TransitionInput{Current: model.StateGreeting, Intent: intent.Result{AnalysisType: model.AnalysisNone}, ContextEmpty: true},
			want: Transition{Next: model.StateCollectingInfo, Topic: model.AnalysisNone, Missing: []string{}},
		},
		{
			name: "greeting with complete request analyzes",
			in: TransitionInput{
				Current: model.StateGreeting, Profile: completeBazi(), ContextEmpty: true,
				Intent: intent.Result{AnalysisType: model.AnalysisBazi, IsAnalysisRequest: true},
			},
			want: Transition{Next: model.StateAnalyzing, Topic: model.AnalysisBazi, Missing: []string{}},
		},
		{
			name: "incomplete request stays collecting with pending",
			in: TransitionInput{
				Current: model.StateCollectingInfo,
				Intent:  intent.Result{AnalysisType: model.AnalysisBazi, IsIncomplete: true},
			},
			want: Transition{
				Next: model.StateCollectingInfo, Topic: model.AnalysisBazi, Pending: model.AnalysisBazi,
				Missing: []string{intent.MissingBirthDate, intent.MissingGender},
			},
		},
		{
			name: "pending request confirmed by affirmation",
			in: TransitionInput{
				Current: model.StateCollectingInfo, Pending: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisNone, Affirmative: true},
			},
			want: Transition{Next: model.StateAnalyzing, Topic: model.AnalysisBazi, Missing: []string{}},
		},
		{
			name: "pending request confirmed by new field",
			in: TransitionInput{
				Current: model.StateCollectingInfo, Pending: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisNone, ExtractedInfo: intent.ExtractedInfo{Gender: "男"}},
			},
			want: Transition{Next: model.StateAnalyzing, Topic: model.AnalysisBazi, Missing: []string{}},
		},
		{
			name: "pending request not confirmed by small talk",
			in: TransitionInput{
				Current: model.StateCollectingInfo, Pending: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisNone, Excluded: true},
			},
			want: Transition{Next: model.StateCollectingInfo, Topic: model.AnalysisBazi, Pending: model.AnalysisBazi, Missing: []string{}},
		},
		{
			name: "pending request not confirmed by unrelated message",
			in: TransitionInput{
				Current: model.StateCollectingInfo, Pending: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisNone},
			},
			want: Transition{Next: model.StateCollectingInfo, Topic: model.AnalysisBazi, Pending: model.AnalysisBazi, Missing: []string{}},
		},
		{
			name: "complete profile without request keeps collecting",
			in: TransitionInput{
				Current: model.StateCollectingInfo, CurrentTopic: model.AnalysisNone, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisNone},
			},
			want: Transition{Next: model.StateCollectingInfo, Topic: model.AnalysisNone, Missing: []string{}},
		},
		{
			name: "explaining follow-up stays",
			in: TransitionInput{
				Current: model.StateExplaining, CurrentTopic: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisNone},
			},
			want: Transition{Next: model.StateExplaining, Topic: model.AnalysisBazi, Missing: []string{}},
		},
		{
			name: "explaining new topic pushes",
			in: TransitionInput{
				Current: model.StateExplaining, CurrentTopic: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisFengshui, IsIncomplete: true},
			},
			want: Transition{
				Next: model.StateCollectingInfo, Topic: model.AnalysisFengshui, Pending: model.AnalysisFengshui,
				Missing: []string{intent.MissingHouseInfo}, PushTopic: true,
			},
		},
		{
			name: "explaining back to stacked topic pops",
			in: TransitionInput{
				Current: model.StateExplaining, CurrentTopic: model.AnalysisFengshui, StackTop: &frame, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisBazi},
			},
			want: Transition{Next: model.StateAnalyzing, Topic: model.AnalysisBazi, Missing: []string{}, PopTopic: true},
		},
		{
			name: "idle with empty context restarts as greeting",
			in:   TransitionInput{Current: model.StateIdle, ContextEmpty: true, Intent: intent.Result{AnalysisType: model.AnalysisNone}},
			want: Transition{Next: model.StateCollectingInfo, Topic: model.AnalysisNone, Missing: []string{}},
		},
		{
			name: "idle resumes explaining",
			in: TransitionInput{
				Current: model.StateIdle, ResumeFrom: model.StateExplaining, CurrentTopic: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisNone},
			},
			want: Transition{Next: model.StateExplaining, Topic: model.AnalysisBazi, Missing: []string{}},
		},
		{
			name: "idle resumes collecting",
			in: TransitionInput{
				Current: model.StateIdle, ResumeFrom: model.StateCollectingInfo, CurrentTopic: model.AnalysisBazi,
				Pending: model.AnalysisBazi, Intent: intent.Result{AnalysisType: model.AnalysisNone},
			},
			want: Transition{
				Next: model.StateCollectingInfo, Topic: model.AnalysisBazi, Pending: model.AnalysisBazi,
				Missing: []string{intent.MissingBirthDate, intent.MissingGender},
			},
		},
		{
			name: "closed with context resumes collecting",
			in: TransitionInput{
				Current: model.StateClosed, CurrentTopic: model.AnalysisBazi, Profile: completeBazi(),
				Intent: intent.Result{AnalysisType: model.AnalysisBazi, IsAnalysisRequest: true},
			},
			want: Transition{Next: model.StateAnalyzing, Topic: model.AnalysisBazi, Missing: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextState(tt.in))
		})
	}
}

func TestAfterAnalysis(t *testing.T) {
	assert.Equal(t, model.StateExplaining, AfterAnalysis(model.DegradationDecision{}))
	assert.Equal(t, model.StateCollectingInfo, AfterAnalysis(model.DegradationDecision{ShouldReject: true, ManualInputRequired: true}))
}
