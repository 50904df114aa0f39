package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xuanji-chat-go/internal/config"
)

func TestClient_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bazi/analyze", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1990-03-15", req.Input["birthDate"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result":     map[string]interface{}{"dayMaster": "甲"},
			"confidence": 0.72,
		})
	}))
	defer srv.Close()

	c := NewClient("bazi", config.AnalyzerConfig{BaseURL: srv.URL + "/bazi", APIKey: "secret"})
	res, err := c.Run(context.Background(), map[string]interface{}{"birthDate": "1990-03-15"})
	require.NoError(t, err)
	assert.InDelta(t, 0.72, res.Confidence, 1e-9)
	assert.Equal(t, "甲", res.Result["dayMaster"])
	assert.Empty(t, res.Errors)
}

func TestClient_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("compass", config.AnalyzerConfig{BaseURL: srv.URL})
	_, err := c.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient("fengshui", config.AnalyzerConfig{BaseURL: srv.URL})
	_, err := c.Run(ctx, map[string]interface{}{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
