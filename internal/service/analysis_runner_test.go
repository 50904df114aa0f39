package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xuanji-chat-go/internal/degradation"
	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/pkg/analyzer"
)

func newRunner(t *testing.T, analyzers map[model.Domain]analyzer.Analyzer) *AnalysisRunner {
	t.Helper()
	classifier, err := degradation.NewClassifier(degradation.DefaultThresholds())
	require.NoError(t, err)
	return NewAnalysisRunner(analyzers, degradation.NewOrchestrator(classifier, degradation.DefaultManualConfidence()), 50*time.Millisecond)
}

func fullProfile() model.UserProfile {
	facing := 180
	return model.UserProfile{
		BaziData:     &model.BaziData{BirthDate: "1990-03-15", BirthTime: "15:00", Gender: "男"},
		FengshuiData: &model.FengshuiData{Facing: "南", FacingDegrees: &facing},
	}
}

func TestAnalysisRunner_CombinedKeepsDomainOrder(t *testing.T) {
	r := newRunner(t, map[model.Domain]analyzer.Analyzer{
		model.DomainBazi: analyzer.Func(func(context.Context, map[string]interface{}) (*analyzer.Result, error) {
			time.Sleep(10 * time.Millisecond)
			return &analyzer.Result{Result: map[string]interface{}{"dayMaster": "甲"}, Confidence: 0.85}, nil
		}),
		model.DomainFengshui: fixedAnalyzer(0.9, map[string]interface{}{"period": 9}),
	})

	evals, err := r.Run(context.Background(), model.AnalysisCombined, fullProfile())
	require.NoError(t, err)
	require.Len(t, evals, 2)
	assert.Equal(t, model.DomainBazi, evals[0].Domain)
	assert.Equal(t, model.DomainFengshui, evals[1].Domain)
	assert.False(t, evals[0].Decision.ShouldReject)
	assert.False(t, evals[1].Decision.ShouldReject)
}

func TestAnalysisRunner_AnalyzerErrorBecomesEvaluation(t *testing.T) {
	r := newRunner(t, map[model.Domain]analyzer.Analyzer{
		model.DomainBazi: analyzer.Func(func(context.Context, map[string]interface{}) (*analyzer.Result, error) {
			return nil, errors.New("upstream 502")
		}),
	})

	evals, err := r.Run(context.Background(), model.AnalysisBazi, fullProfile())
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.True(t, evals[0].Decision.ShouldReject)
	assert.Equal(t, degradation.CodeProcessingErrors, evals[0].Decision.Reason.Code)
}

func TestAnalysisRunner_CallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRunner(t, map[model.Domain]analyzer.Analyzer{
		model.DomainBazi: analyzer.Func(func(ctx context.Context, _ map[string]interface{}) (*analyzer.Result, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		model.DomainFengshui: fixedAnalyzer(0.9, nil),
	})

	evals, err := r.Run(ctx, model.AnalysisCombined, fullProfile())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, evals)
}
