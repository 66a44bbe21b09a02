package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itassist/internal/adapter/ollama"
)

func TestEmbedder_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Equal(t, "wifi drops", req["prompt"])

		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.5, -0.25}})
	}))
	defer ts.Close()

	e := ollama.NewEmbedder(ollama.Config{BaseURL: ts.URL + "/"})
	assert.Equal(t, ollama.DefaultModel, e.Model())

	vec, err := e.Embed(context.Background(), "wifi drops")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)
}

func TestEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"Server Error", http.StatusNotFound, `{"error":"model not found"}`, "ollama error (status 404)"},
		{"Bad JSON", http.StatusOK, `{`, "decode response"},
		{"Empty Vector", http.StatusOK, `{"embedding":[]}`, "empty embedding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := ollama.NewEmbedder(ollama.Config{BaseURL: ts.URL, Model: "mxbai"}).Embed(context.Background(), "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
