package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/personacards/backend/internal/config"
	"github.com/personacards/backend/internal/platform/logger"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testRouter(t *testing.T, cfg config.Config, rt roundTripperFunc) http.Handler {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatal(err)
	}
	var client *http.Client
	if rt != nil {
		client = &http.Client{Transport: rt}
	}
	return NewRouter(cfg, log, NewHandler(cfg, log, client))
}

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env: "dev",
		Generation: config.GenerationConfig{
			BaseURL:  "https://openrouter.ai/api/v1",
			APIKey:   "sk-or-test",
			Model:    "openai/gpt-5.1",
			AppTitle: "AI Persona Cards",
		},
		Pipeline: config.PipelineConfig{
			CardsOutputPath: filepath.Join(t.TempDir(), "cards_output.json"),
		},
		Proxy: config.ProxyConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

func TestHealthReportsKeyState(t *testing.T) {
	r := testRouter(t, baseConfig(t), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["api_key_configured"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestHealthWithoutKey(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Generation.APIKey = ""
	r := testRouter(t, cfg, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["api_key_configured"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestChatRelaysStream(t *testing.T) {
	var upstreamReq *http.Request
	var upstreamBody map[string]any
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		upstreamReq = req
		if err := json.NewDecoder(req.Body).Decode(&upstreamBody); err != nil {
			t.Fatalf("decode upstream body: %v", err)
		}
		sse := "data: {\"choices\":[{\"delta\":{\"content\":\"Namaste\"}}]}\n\ndata: [DONE]\n\n"
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(strings.NewReader(sse)),
		}, nil
	})
	r := testRouter(t, baseConfig(t), rt)

	reqBody := `{"messages":[{"role":"user","content":"namaste"}]}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Namaste") || !strings.Contains(w.Body.String(), "[DONE]") {
		t.Fatalf("stream not relayed:\n%s", w.Body.String())
	}
	if got := upstreamReq.Header.Get("Authorization"); got != "Bearer sk-or-test" {
		t.Fatalf("auth = %q", got)
	}
	if got := upstreamReq.Header.Get("HTTP-Referer"); got != "http://localhost:3000" {
		t.Fatalf("referer = %q", got)
	}
	if upstreamBody["stream"] != true {
		t.Fatal("stream not forced upstream")
	}
	if upstreamBody["model"] != "openai/gpt-5.1" {
		t.Fatalf("model = %v, want config default", upstreamBody["model"])
	}
}

func TestChatUpstreamErrorPassesStatus(t *testing.T) {
	rt := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 429,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{"error":"rate limited"}`)),
		}, nil
	})
	r := testRouter(t, baseConfig(t), rt)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 429 {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rate limited") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestChatRequiresMessages(t *testing.T) {
	r := testRouter(t, baseConfig(t), func(*http.Request) (*http.Response, error) {
		t.Fatal("no upstream call expected")
		return nil, nil
	})
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChatWithoutKeyIsUnavailable(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Generation.APIKey = ""
	r := testRouter(t, cfg, nil)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 503 {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestCardsNotFoundBeforeGeneration(t *testing.T) {
	r := testRouter(t, baseConfig(t), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/cards", nil))

	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCardsServesArtifact(t *testing.T) {
	cfg := baseConfig(t)
	deck := `{"cards": [{"type": "money", "title": "T", "body": "B"}]}`
	if err := os.WriteFile(cfg.Pipeline.CardsOutputPath, []byte(deck), 0o644); err != nil {
		t.Fatal(err)
	}
	r := testRouter(t, cfg, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/cards", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["cards"]; !ok {
		t.Fatalf("body = %s", w.Body.String())
	}
}
