package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:11434", "test-key", "test-model", time.Minute)
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:11434" {
		t.Errorf("NewClient() BaseURL = %v, want http://localhost:11434", client.BaseURL)
	}
	if client.APIKey != "test-key" {
		t.Errorf("NewClient() APIKey = %v, want test-key", client.APIKey)
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
	if client.Timeout != time.Minute {
		t.Errorf("NewClient() Timeout = %v, want 1m", client.Timeout)
	}
	if client.client == nil {
		t.Error("NewClient() client should not be nil")
	}
}

func TestClient_Chat(t *testing.T) {
	tests := []struct {
		name       string
		system     string
		user       string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantErr    bool
	}{
		{
			name:   "successful chat",
			system: "Answer from context.",
			user:   "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if !strings.Contains(r.Header.Get("Authorization"), "Bearer") {
					t.Error("missing Authorization header")
				}

				var req ChatRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("failed to decode request: %v", err)
				}
				if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "Hello" {
					t.Errorf("unexpected messages: %+v", req.Messages)
				}

				resp := ChatResponse{
					ID:     "test-id",
					Object: "chat.completion",
					Choices: []ChatChoice{
						{Message: Message{Role: "assistant", Content: "Hi there!"}, FinishReason: "stop"},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantReply: "Hi there!",
		},
		{
			name: "no system prompt",
			user: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
					t.Errorf("unexpected messages: %+v", req.Messages)
				}
				_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "ok"}}}})
			},
			wantReply: "ok",
		},
		{
			name: "server error",
			user: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			},
			wantErr: true,
		},
		{
			name: "no choices",
			user: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ChatResponse{ID: "test-id"})
			},
			wantErr: true,
		},
		{
			name: "invalid JSON",
			user: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("invalid json"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model", time.Second)
			reply, err := client.Chat(context.Background(), tt.system, tt.user)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Chat() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Chat() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("Chat() reply = %q, want %q", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_ChatTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 20*time.Millisecond)
	_, err := client.Chat(context.Background(), "", "slow question")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Chat() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestClient_PingAndModelAvailable(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		status    int
		models    []string
		wantPing  bool
		wantAvail bool
	}{
		{
			name:      "exact model",
			model:     "llama3.1:8b",
			status:    http.StatusOK,
			models:    []string{"llama3.1:8b", "all-minilm:latest"},
			wantPing:  true,
			wantAvail: true,
		},
		{
			name:      "different tag",
			model:     "llama3.1:8b",
			status:    http.StatusOK,
			models:    []string{"llama3.1:latest"},
			wantPing:  true,
			wantAvail: true,
		},
		{
			name:     "missing model",
			model:    "llama3.1:8b",
			status:   http.StatusOK,
			models:   []string{"mistral:7b"},
			wantPing: true,
		},
		{
			name:   "server down",
			model:  "llama3.1:8b",
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/models" {
					t.Errorf("expected /v1/models, got %s", r.URL.Path)
				}
				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)
					return
				}
				resp := ModelsResponse{}
				for _, id := range tt.models {
					resp.Data = append(resp.Data, ModelStatus{ID: id, Object: "model"})
				}
				_ = json.NewEncoder(w).Encode(resp)
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-key", tt.model, time.Second)
			err := client.Ping(context.Background())
			if (err == nil) != tt.wantPing {
				t.Errorf("Ping() error = %v, want success %v", err, tt.wantPing)
			}

			avail, err := client.ModelAvailable(context.Background())
			if tt.wantPing && err != nil {
				t.Fatalf("ModelAvailable() unexpected error: %v", err)
			}
			if avail != tt.wantAvail {
				t.Errorf("ModelAvailable() = %v, want %v", avail, tt.wantAvail)
			}
		})
	}
}

func TestBaseModelName(t *testing.T) {
	tests := map[string]string{
		"llama3.1:8b": "llama3.1",
		"all-minilm":  "all-minilm",
		"":            "",
	}
	for in, want := range tests {
		if got := baseModelName(in); got != want {
			t.Errorf("baseModelName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClient_PingHangingServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	orig := modelsTimeout
	modelsTimeout = 50 * time.Millisecond
	t.Cleanup(func() { modelsTimeout = orig })

	client := NewClient(server.URL, "test-key", "test-model", time.Minute)
	start := time.Now()
	err := client.Ping(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Ping() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Ping() took %v against a hanging server", elapsed)
	}
}
