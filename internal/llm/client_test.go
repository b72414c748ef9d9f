package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChatCompletion(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"你好"}}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key123", time.Second)
	text, err := client.ChatCompletion(context.Background(), Request{
		Model:       "qwen-max",
		Messages:    []Message{{Role: "user", Content: "在吗"}},
		Temperature: 0.7,
		MaxTokens:   500,
		TopP:        0.8,
		Extra:       map[string]any{"enable_search": true},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if text != "你好" {
		t.Errorf("text = %q, want 你好", text)
	}

	if gotBody["model"] != "qwen-max" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gotBody["temperature"])
	}
	if gotBody["enable_search"] != true {
		t.Errorf("enable_search not flattened into body: %v", gotBody)
	}
}

func TestChatCompletionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.ChatCompletion(context.Background(), Request{Model: "nope"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.ChatCompletion(context.Background(), Request{Model: "m"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
