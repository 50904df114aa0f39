package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"xuanji-chat-go/internal/degradation"
	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/pkg/llm"
	"xuanji-chat-go/pkg/log"
)

// ExplainRequest 是生成解读所需的输入。Question 非空时表示针对已有结果的追问。
type ExplainRequest struct {
	AnalysisType model.AnalysisType
	Profile      model.UserProfile
	Evaluations  []degradation.Evaluation
	Snapshot     *model.DomainSnapshot
	Question     string
	Locale       string
}

// Explainer 将分析结果解读为面向用户的文字。
type Explainer interface {
	Explain(ctx context.Context, req ExplainRequest) string
}

type explainer struct {
	llmClient llm.Client
	rules     string
	gen       *llm.GenerationParams
}

// NewExplainer 创建解读器。llmClient 为 nil 时只使用模板解读；LLM 调用失败时同样回退到模板。
func NewExplainer(llmClient llm.Client, rules string, gen *llm.GenerationParams) Explainer {
	return &explainer{llmClient: llmClient, rules: rules, gen: gen}
}

func (e *explainer) Explain(ctx context.Context, req ExplainRequest) string {
	if e.llmClient != nil {
		answer, err := e.llmClient.Complete(ctx, e.composeMessages(req), e.gen)
		if err == nil {
			return answer
		}
		log.Warnw("LLM 解读失败，使用模板解读", "analysisType", req.AnalysisType, "error", err)
	}
	return TemplateExplanation(req)
}

func (e *explainer) composeMessages(req ExplainRequest) []llm.Message {
	var sys strings.Builder
	if e.rules != "" {
		sys.WriteString(e.rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString("<<RESULT>>\n")
	payload := map[string]interface{}{"analysisType": req.AnalysisType, "profile": req.Profile}
	if len(req.Evaluations) > 0 {
		payload["evaluations"] = req.Evaluations
	} else if req.Snapshot != nil {
		payload["snapshot"] = req.Snapshot
	}
	b, _ := json.Marshal(payload)
	sys.Write(b)
	sys.WriteString("\n<<END>>")

	question := req.Question
	if question == "" {
		question = fmt.Sprintf("请解读这次%s分析的结果。", req.AnalysisType.Label())
	}
	return []llm.Message{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: question},
	}
}

var levelLabels = map[model.ConfidenceLevel]string{
	model.LevelHigh:       "高",
	model.LevelAcceptable: "可接受",
	model.LevelDegraded:   "偏低，仅供参考",
	model.LevelReject:     "不足",
}

// TemplateExplanation 在没有 LLM 时生成确定性的解读文字。
func TemplateExplanation(req ExplainRequest) string {
	var b strings.Builder
	if req.Question != "" && req.Snapshot != nil {
		fmt.Fprintf(&b, "关于您的问题“%s”，参考上一次%s分析：", req.Question, req.Snapshot.AnalysisType.Label())
		writeResults(&b, req.Snapshot.Results)
		b.WriteString("如需更深入的解读，可以补充更多信息后重新分析。")
		return b.String()
	}

	fmt.Fprintf(&b, "您的%s分析已完成。", req.AnalysisType.Label())
	for _, ev := range req.Evaluations {
		fmt.Fprintf(&b, "\n【%s】置信度 %.0f%%（%s）。", domainLabel(ev.Domain), ev.Score*100, levelLabels[ev.Level])
		writeResults(&b, ev.Result)
		if ev.Level == model.LevelDegraded {
			b.WriteString("该结果可信度一般，建议补充信息后复核。")
		}
	}
	if req.Snapshot != nil && req.Snapshot.Manual {
		fmt.Fprintf(&b, "\n已根据您手动输入的数据完成分析（置信度 %.0f%%）。", req.Snapshot.Confidence*100)
		writeResults(&b, req.Snapshot.Results)
	}
	return b.String()
}

func writeResults(b *strings.Builder, results map[string]interface{}) {
	if len(results) == 0 {
		return
	}
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s：%v", k, results[k]))
	}
	b.WriteString(strings.Join(parts, "；"))
	b.WriteString("。")
}

func domainLabel(d model.Domain) string {
	switch d {
	case model.DomainBazi:
		return "八字"
	case model.DomainFengshui:
		return "玄空风水"
	case model.DomainCompass:
		return "罗盘"
	}
	return string(d)
}
