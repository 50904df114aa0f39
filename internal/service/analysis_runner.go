package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"xuanji-chat-go/internal/degradation"
	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/pkg/analyzer"
	"xuanji-chat-go/pkg/log"
)

// AnalysisRunner 调用外部分析器并把结果交给降级编排器评估。
// 分析器的错误与超时不会向上传播，而是作为 errs 交给编排器。
type AnalysisRunner struct {
	analyzers    map[model.Domain]analyzer.Analyzer
	orchestrator *degradation.Orchestrator
	timeout      time.Duration
}

// NewAnalysisRunner 创建分析执行器。timeout 为单个分析器调用的超时时间。
func NewAnalysisRunner(analyzers map[model.Domain]analyzer.Analyzer, orchestrator *degradation.Orchestrator, timeout time.Duration) *AnalysisRunner {
	return &AnalysisRunner{analyzers: analyzers, orchestrator: orchestrator, timeout: timeout}
}

// BuildAnalysisInput 根据用户画像构造某个领域分析器的输入。
func BuildAnalysisInput(domain model.Domain, p model.UserProfile) map[string]interface{} {
	input := map[string]interface{}{}
	switch domain {
	case model.DomainBazi:
		if b := p.BaziData; b != nil {
			putString(input, degradation.FieldBirthDate, b.BirthDate)
			putString(input, degradation.FieldBirthTime, b.BirthTime)
			putString(input, degradation.FieldGender, b.Gender)
			putString(input, degradation.FieldBirthLocation, b.BirthLocation)
			if b.Pillars != nil {
				input["pillars"] = map[string]interface{}{
					"year": b.Pillars.Year, "month": b.Pillars.Month, "day": b.Pillars.Day, "hour": b.Pillars.Hour,
				}
			}
		}
	case model.DomainFengshui:
		if f := p.FengshuiData; f != nil {
			putString(input, degradation.FieldFacing, f.Facing)
			putString(input, degradation.FieldLayout, f.Layout)
			if f.FacingDegrees != nil {
				input[degradation.FieldFacingDegrees] = *f.FacingDegrees
			}
		}
	}
	return input
}

func putString(m map[string]interface{}, key, v string) {
	if v != "" {
		m[key] = v
	}
}

// Run 执行一次分析。综合分析时各领域并发执行，结果顺序与 t.Domains() 一致。
// 单个分析器失败只影响其评估结果；只有调用方的 ctx 被取消或超时才返回错误。
func (r *AnalysisRunner) Run(ctx context.Context, t model.AnalysisType, profile model.UserProfile) ([]degradation.Evaluation, error) {
	domains := t.Domains()
	evals := make([]degradation.Evaluation, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	for i, domain := range domains {
		i, domain := i, domain
		g.Go(func() error {
			evals[i] = r.runDomain(gctx, domain, BuildAnalysisInput(domain, profile))
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%s 分析被取消: %w", domain, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

func (r *AnalysisRunner) runDomain(ctx context.Context, domain model.Domain, input map[string]interface{}) degradation.Evaluation {
	a, ok := r.analyzers[domain]
	if !ok {
		return r.orchestrator.Evaluate(domain, 0, input, nil, []string{fmt.Sprintf("未配置 %s 分析服务", domain)})
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res, err := a.Run(callCtx, input)
	if err != nil {
		log.Warnw("分析服务调用失败", "domain", domain, "elapsed", time.Since(start), "error", err)
		msg := err.Error()
		if callCtx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("%s 分析服务超时（%s）", domain, r.timeout)
		}
		return r.orchestrator.Evaluate(domain, 0, input, nil, []string{msg})
	}
	if res == nil {
		return r.orchestrator.Evaluate(domain, 0, input, nil, []string{fmt.Sprintf("%s 分析服务返回空结果", domain)})
	}

	log.Infow("分析完成", "domain", domain, "confidence", res.Confidence, "elapsed", time.Since(start))
	return r.orchestrator.Evaluate(domain, res.Confidence, input, res.Result, res.Errors)
}
