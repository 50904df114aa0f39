// Package analyzer provides clients for the external domain analyzers (bazi / xuankong / compass).
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"xuanji-chat-go/internal/config"
	"xuanji-chat-go/pkg/log"
)

// Result 是外部分析器的返回。Confidence 位于 [0,1]，Errors 为分析器自身报告的处理错误。
type Result struct {
	Result     map[string]interface{} `json:"result"`
	Confidence float64                `json:"confidence"`
	Errors     []string               `json:"errors,omitempty"`
}

// Analyzer defines the interface for a domain analyzer.
type Analyzer interface {
	Run(ctx context.Context, input map[string]interface{}) (*Result, error)
}

// Func 让普通函数满足 Analyzer 接口，便于测试与本地桩实现。
type Func func(ctx context.Context, input map[string]interface{}) (*Result, error)

// Run 调用 f 本身。
func (f Func) Run(ctx context.Context, input map[string]interface{}) (*Result, error) {
	return f(ctx, input)
}

type httpClient struct {
	name   string
	cfg    config.AnalyzerConfig
	client *http.Client
}

// NewClient creates an HTTP analyzer posting JSON to {base_url}/analyze.
// 超时由调用方通过 ctx 控制。
func NewClient(name string, cfg config.AnalyzerConfig) Analyzer {
	return &httpClient{
		name:   name,
		cfg:    cfg,
		client: &http.Client{},
	}
}

type analyzeRequest struct {
	Input map[string]interface{} `json:"input"`
}

// Run calls the analyzer API.
func (c *httpClient) Run(ctx context.Context, input map[string]interface{}) (*Result, error) {
	log.Debugw("[AnalyzerClient] 调用分析服务", "analyzer", c.name, "fields", len(input))

	reqBytes, err := json.Marshal(analyzeRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/analyze", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[AnalyzerClient] 调用 %s 分析服务失败, error: %v", c.name, err)
		return nil, fmt.Errorf("failed to call %s analyzer: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Errorf("[AnalyzerClient] %s 分析服务返回非 200 状态码: %s", c.name, resp.Status)
		return nil, fmt.Errorf("%s analyzer returned non-200 status: %s, body: %s", c.name, resp.Status, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s analyzer response: %w", c.name, err)
	}
	return &result, nil
}
