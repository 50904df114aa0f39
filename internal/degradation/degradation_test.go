package degradation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xuanji-chat-go/internal/config"
	"xuanji-chat-go/internal/model"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	c, err := NewClassifier(DefaultThresholds())
	require.NoError(t, err)
	return NewOrchestrator(c, DefaultManualConfidence())
}

func TestClassify_Bands(t *testing.T) {
	c, err := NewClassifier(DefaultThresholds())
	require.NoError(t, err)

	cases := []struct {
		score float64
		want  model.ConfidenceLevel
	}{
		{0, model.LevelReject},
		{0.39, model.LevelReject},
		{0.4, model.LevelDegraded},
		{0.59, model.LevelDegraded},
		{0.6, model.LevelAcceptable},
		{0.79, model.LevelAcceptable},
		{0.8, model.LevelHigh},
		{1, model.LevelHigh},
		{-3, model.LevelReject},
		{7, model.LevelHigh},
		{math.NaN(), model.LevelReject},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.score), "score=%v", tc.score)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	c, err := NewClassifier(DefaultThresholds())
	require.NoError(t, err)

	prev := -1
	for i := 0; i <= 1000; i++ {
		level := c.Classify(float64(i) / 1000)
		require.GreaterOrEqual(t, level.Rank(), 0)
		require.GreaterOrEqual(t, level.Rank(), prev, "score=%v", float64(i)/1000)
		prev = level.Rank()
	}
}

func TestNewClassifier_RejectsBadThresholds(t *testing.T) {
	_, err := NewClassifier(Thresholds{Reject: 0.5, Degraded: 0.5, Acceptable: 0.8})
	var cerr *config.ConfigurationError
	assert.True(t, errors.As(err, &cerr))

	c, err := NewClassifier(Thresholds{Reject: 0.2, Degraded: 0.3, Acceptable: 0.9})
	require.NoError(t, err)
	assert.Equal(t, model.LevelDegraded, c.Classify(0.25))
}

func TestAnalyze_SeverityOrdering(t *testing.T) {
	a := NewAnalyzer(0.4)

	t.Run("domain check outranks low confidence", func(t *testing.T) {
		r := a.Analyze(0.1, model.DomainBazi, map[string]interface{}{"gender": "男"}, nil)
		assert.Equal(t, CodeMissingBirthDatetime, r.Code)
		assert.Equal(t, model.SeverityHigh, r.Severity)
	})

	t.Run("missing both birth date and gender picks high severity", func(t *testing.T) {
		r := a.Analyze(0.1, model.DomainBazi, map[string]interface{}{}, nil)
		assert.Equal(t, CodeMissingBirthDatetime, r.Code)
	})

	t.Run("medium severity loses to low confidence", func(t *testing.T) {
		r := a.Analyze(0.1, model.DomainBazi, map[string]interface{}{"birthDate": "1990-03-15"}, nil)
		assert.Equal(t, CodeLowConfidence, r.Code)
	})

	t.Run("medium severity surfaces when nothing else applies", func(t *testing.T) {
		r := a.Analyze(0.5, model.DomainBazi, map[string]interface{}{"birthDate": "1990-03-15"}, nil)
		assert.Equal(t, CodeMissingGender, r.Code)
		assert.Equal(t, model.SeverityMedium, r.Severity)
	})

	t.Run("processing errors outrank low confidence", func(t *testing.T) {
		input := map[string]interface{}{"birthDate": "1990-03-15", "gender": "男"}
		r := a.Analyze(0, model.DomainBazi, input, []string{"分析服务超时"})
		assert.Equal(t, CodeProcessingErrors, r.Code)
		assert.Contains(t, r.Message, "分析服务超时")
	})

	t.Run("fengshui facing out of range", func(t *testing.T) {
		r := a.Analyze(0.2, model.DomainFengshui, map[string]interface{}{"facingDegrees": 360}, nil)
		assert.Equal(t, CodeInvalidFacing, r.Code)

		r = a.Analyze(0.2, model.DomainFengshui, map[string]interface{}{"facingDegrees": 180.0}, nil)
		assert.Equal(t, CodeLowConfidence, r.Code)
	})

	t.Run("compass sensor data", func(t *testing.T) {
		r := a.Analyze(0.2, model.DomainCompass, map[string]interface{}{
			"accelerometer": []interface{}{0.1, 0.2, 9.8},
			"magnetometer":  []interface{}{},
		}, nil)
		assert.Equal(t, CodeMissingSensorData, r.Code)
		assert.Contains(t, r.Message, "magnetometer")
		assert.Contains(t, r.Message, "gyroscope")
		assert.NotContains(t, r.Message, "accelerometer")
	})

	t.Run("domain rules do not leak across domains", func(t *testing.T) {
		r := a.Analyze(0.2, model.DomainFengshui, map[string]interface{}{"facingDegrees": 90}, nil)
		assert.Equal(t, CodeLowConfidence, r.Code)
	})

	t.Run("unknown when nothing triggers", func(t *testing.T) {
		r := a.Analyze(0.9, model.DomainFengshui, map[string]interface{}{"facingDegrees": 90}, nil)
		assert.Equal(t, CodeUnknown, r.Code)
		assert.Equal(t, model.SeverityMedium, r.Severity)
	})
}

func TestAnalyzer_CandidatesAreStable(t *testing.T) {
	a := NewAnalyzer(0.4)
	got := a.candidates(ruleInput{score: 0.1, rejectBelow: 0.4, domain: model.DomainBazi, input: nil, errs: []string{"x"}})

	codes := make([]string, 0, len(got))
	for _, r := range got {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{CodeMissingBirthDatetime, CodeProcessingErrors, CodeLowConfidence, CodeMissingGender}, codes)
}

func TestFallbacksFor(t *testing.T) {
	for _, d := range []model.Domain{model.DomainBazi, model.DomainFengshui, model.DomainCompass} {
		opts := FallbacksFor(d, model.DegradationReason{})
		require.Len(t, opts, 3, "domain=%s", d)

		manual := 0
		for _, o := range opts {
			if o.RequiresManualInput {
				manual++
				assert.InDelta(t, 0.8, o.EstimatedConfidence, 1e-9)
			}
		}
		assert.Equal(t, 1, manual)
		assert.InDelta(t, 0.9, opts[1].EstimatedConfidence, 1e-9)
		assert.Equal(t, OptionRetry, opts[2].ID)
	}

	// 每次返回新切片
	a := FallbacksFor(model.DomainBazi, model.DegradationReason{})
	a[0].Name = "changed"
	b := FallbacksFor(model.DomainBazi, model.DegradationReason{})
	assert.NotEqual(t, "changed", b[0].Name)
}

func TestEvaluate_DecisionInvariant(t *testing.T) {
	o := newTestOrchestrator(t)
	inputs := []map[string]interface{}{
		nil,
		{"birthDate": "1990-03-15", "gender": "男"},
		{"facingDegrees": 180},
	}
	for _, d := range []model.Domain{model.DomainBazi, model.DomainFengshui, model.DomainCompass} {
		for i := 0; i <= 20; i++ {
			score := float64(i) / 20
			for _, in := range inputs {
				eval := o.Evaluate(d, score, in, map[string]interface{}{"ok": true}, nil)
				dec := eval.Decision

				assert.Equal(t, !dec.ShouldReject, dec.Reason == nil)
				assert.Equal(t, !dec.ShouldReject, len(dec.FallbackOptions) == 0)

				anyManual := false
				for _, opt := range dec.FallbackOptions {
					anyManual = anyManual || opt.RequiresManualInput
				}
				assert.Equal(t, anyManual, dec.ManualInputRequired)

				if dec.ShouldReject {
					assert.Nil(t, eval.Result)
				} else {
					assert.Equal(t, map[string]interface{}{"ok": true}, eval.Result)
				}
			}
		}
	}
}

func TestEvaluate_Rejected(t *testing.T) {
	o := newTestOrchestrator(t)
	eval := o.Evaluate(model.DomainBazi, 0.2, map[string]interface{}{"gender": "女"}, nil, nil)

	require.True(t, eval.Decision.ShouldReject)
	assert.Equal(t, model.LevelReject, eval.Level)
	assert.Equal(t, CodeMissingBirthDatetime, eval.Decision.Reason.Code)
	assert.True(t, eval.Decision.ManualInputRequired)
	assert.Len(t, eval.Decision.FallbackOptions, 3)
}

func TestSubmitManualInput_Bazi(t *testing.T) {
	o := newTestOrchestrator(t)

	valid := model.BaziManualInput{YearPillar: "庚午", MonthPillar: "己卯", DayPillar: "甲子", HourPillar: "壬申"}
	res, err := o.SubmitManualInput(model.DomainBazi, valid, map[string]interface{}{"birthDate": "1990-03-15"})
	require.NoError(t, err)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, "甲", res.Result["dayMaster"])
	assert.Equal(t, "木", res.Result["dayMasterElement"])
	assert.Equal(t, "manual", res.Result["source"])
	assert.NotNil(t, res.Result["originalInput"])

	// 所有天干地支组合在结构上都合法
	stems := []rune(heavenlyStems)
	branches := []rune(earthlyBranches)
	for i, s := range stems {
		p := string(s) + string(branches[i%len(branches)])
		_, err := o.SubmitManualInput(model.DomainBazi, model.BaziManualInput{YearPillar: p, MonthPillar: p, DayPillar: p, HourPillar: p}, nil)
		require.NoError(t, err, p)
	}

	invalid := []model.BaziManualInput{
		{YearPillar: "甲甲", MonthPillar: "己卯", DayPillar: "甲子", HourPillar: "壬申"},
		{YearPillar: "庚午", MonthPillar: "子卯", DayPillar: "甲子", HourPillar: "壬申"},
		{YearPillar: "庚午", MonthPillar: "己卯", DayPillar: "甲", HourPillar: "壬申"},
		{YearPillar: "庚午", MonthPillar: "己卯", DayPillar: "甲子", HourPillar: "壬申酉"},
		{YearPillar: "庚午", MonthPillar: "己卯", DayPillar: "甲子", HourPillar: ""},
	}
	for _, in := range invalid {
		_, err := o.SubmitManualInput(model.DomainBazi, in, nil)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "%+v", in)
		assert.NotEmpty(t, verr.Reason)
	}
}

func TestSubmitManualInput_Fengshui(t *testing.T) {
	o := newTestOrchestrator(t)

	res, err := o.SubmitManualInput(model.DomainFengshui, model.FengshuiManualInput{Facing: 180}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.90, res.Confidence)
	assert.Equal(t, 180, res.Result["facing"])
	assert.Equal(t, "南", res.Result["facingDirection"])
	assert.Equal(t, 0, res.Result["sitting"])
	assert.Equal(t, "北", res.Result["sittingDirection"])
	assert.NotContains(t, res.Result, "originalInput")

	for _, bad := range []int{-1, 360, 720} {
		_, err := o.SubmitManualInput(model.DomainFengshui, model.FengshuiManualInput{Facing: bad}, nil)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "facing=%d", bad)
	}
}

func TestSubmitManualInput_Compass(t *testing.T) {
	o := newTestOrchestrator(t)

	res, err := o.SubmitManualInput(model.DomainCompass, model.CompassManualInput{Magnetic: 355, TrueNorth: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.90, res.Confidence)
	assert.InDelta(t, 7.0, res.Result["declination"].(float64), 1e-9)

	res, err = o.SubmitManualInput(model.DomainCompass, model.CompassManualInput{Magnetic: 360, TrueNorth: 0}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.Result["declination"].(float64), 1e-9)

	for _, bad := range []model.CompassManualInput{
		{Magnetic: -1, TrueNorth: 10},
		{Magnetic: 10, TrueNorth: 361},
		{Magnetic: math.NaN(), TrueNorth: 10},
	} {
		_, err := o.SubmitManualInput(model.DomainCompass, bad, nil)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "%+v", bad)
	}
}

func TestSubmitManualInput_DomainMismatch(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.SubmitManualInput(model.DomainBazi, model.FengshuiManualInput{Facing: 90}, nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "domain", verr.Field)

	_, err = o.SubmitManualInput(model.DomainBazi, nil, nil)
	assert.True(t, errors.As(err, &verr))
}
