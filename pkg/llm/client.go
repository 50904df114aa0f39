// Package llm provides a client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"xuanji-chat-go/internal/config"
)

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 以流式方式调用聊天接口，返回拼接后的完整回答。gen 为 nil 时使用配置中的生成参数。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

// ErrEmptyCompletion 表示接口正常返回但没有任何内容。
var ErrEmptyCompletion = errors.New("llm returned empty completion")

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client from the config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ParamsFromConfig 将配置中的非零值转换为生成参数，全部为零时返回 nil。
func ParamsFromConfig(cfg config.LLMGenerationConfig) *GenerationParams {
	var gp GenerationParams
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		gp.Temperature = &t
	}
	if cfg.TopP != 0 {
		p := cfg.TopP
		gp.TopP = &p
	}
	if cfg.MaxTokens != 0 {
		m := cfg.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

func (c *openAICompatibleClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	req, err := c.newChatRequest(ctx, messages, gen)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 chat 接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat 接口返回非 200 状态: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var out strings.Builder
	if err := readStream(resp.Body, func(content string) error {
		out.WriteString(content)
		return nil
	}); err != nil {
		return "", err
	}
	answer := strings.TrimSpace(out.String())
	if answer == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

// newChatRequest 组装流式请求。gen 为 nil 时使用配置中的生成参数。
func (c *openAICompatibleClient) newChatRequest(ctx context.Context, messages []Message, gen *GenerationParams) (*http.Request, error) {
	body := chatRequest{Model: c.cfg.Model, Messages: messages, Stream: true}
	if gen == nil {
		gen = ParamsFromConfig(c.cfg.Generation)
	}
	if gen != nil {
		body.Temperature, body.TopP, body.MaxTokens = gen.Temperature, gen.TopP, gen.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化 chat 请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建 chat 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}

// readStream 逐行解析 SSE，把每个非空 delta 交给 onChunk，遇到 [DONE] 或 EOF 结束。
// 无法解析的行直接跳过。
func readStream(r io.Reader, onChunk func(string) error) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("读取流式响应失败: %w", err)
		}
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return nil
			}
			var chunk chatResponse
			if json.Unmarshal([]byte(data), &chunk) == nil && len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if cerr := onChunk(chunk.Choices[0].Delta.Content); cerr != nil {
					return cerr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
	}
}
