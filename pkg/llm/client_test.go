package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xuanji-chat-go/internal/config"
)

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotNil(t, req.Temperature)
		assert.InDelta(t, 0.3, *req.Temperature, 1e-9)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			b, _ := json.Marshal(map[string]interface{}{
				"choices": []map[string]interface{}{{"delta": map[string]string{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestComplete_CollectsStream(t *testing.T) {
	srv := sseServer(t, []string{"日主", "甲木，", "喜水"})
	defer srv.Close()

	c := NewClient(config.LLMConfig{
		APIKey: "k", BaseURL: srv.URL, Model: "m",
		Generation: config.LLMGenerationConfig{Temperature: 0.3},
	})
	answer, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "解读"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "日主甲木，喜水", answer)
}

func TestComplete_Empty(t *testing.T) {
	srv := sseServer(t, nil)
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Generation: config.LLMGenerationConfig{Temperature: 0.3}})
	_, err := c.Complete(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestParamsFromConfig(t *testing.T) {
	assert.Nil(t, ParamsFromConfig(config.LLMGenerationConfig{}))

	gp := ParamsFromConfig(config.LLMGenerationConfig{MaxTokens: 256})
	require.NotNil(t, gp)
	assert.Nil(t, gp.Temperature)
	assert.Equal(t, 256, *gp.MaxTokens)
}

func TestReadStream_SkipsNoise(t *testing.T) {
	body := ": keep-alive\n\ndata: not-json\n\ndata:{\"choices\":[{\"delta\":{\"content\":\"甲\"}}]}\n\ndata: [DONE]\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"乙\"}}]}\n"
	var got []string
	err := readStream(strings.NewReader(body), func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"甲"}, got)
}

func TestComplete_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL + "/"})
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "解读"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}
