package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.httpClient = server.Client()
	return client
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestJudgeSemanticMatch(t *testing.T) {
	var prompt string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-3-flash-preview:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		prompt = req.Contents[0].Parts[0].Text
		if req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("expected json response type")
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"isCorrect\":true}"}]}}]}`))
	})

	ok, err := client.JudgeSemanticMatch(context.Background(), "서로 더 친해지다", "친해지다")
	if err != nil {
		t.Fatalf("JudgeSemanticMatch() error = %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
	if !strings.Contains(prompt, "서로 더 친해지다") || !strings.Contains(prompt, "친해지다") {
		t.Fatalf("prompt missing reference or answer: %q", prompt)
	}
}

func TestJudgeSemanticMatchMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"sure!"}]}}]}`))
	})
	_, err := client.JudgeSemanticMatch(context.Background(), "a", "b")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestRateLimitDetection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	})
	_, err := client.SynthesizeSpeech(context.Background(), "break the ice")
	if !errors.Is(err, ErrRateLimited) || !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	quota := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"Quota exhausted for project"}}`))
	})
	_, err = quota.SynthesizeSpeech(context.Background(), "x")
	if !IsRateLimited(err) {
		t.Fatalf("expected quota message to count as rate limit, got %v", err)
	}

	if IsRateLimited(errors.New("connection refused")) || IsRateLimited(nil) {
		t.Fatalf("unexpected rate limit classification")
	}
}

func TestSynthesizeSpeechDecodesPCM(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80} // 0, 16384, -32768
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash-preview-tts") {
			t.Errorf("unexpected model path %s", r.URL.Path)
		}
		var req GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.GenerationConfig.SpeechConfig == nil ||
			req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
			t.Errorf("expected Kore voice")
		}
		data := base64.StdEncoding.EncodeToString(pcm)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"` + data + `"}}]}}]}`))
	})

	audio, err := client.SynthesizeSpeech(context.Background(), "break the ice")
	if err != nil {
		t.Fatalf("SynthesizeSpeech() error = %v", err)
	}
	want := []float32{0, 0.5, -1}
	if len(audio.Samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(audio.Samples))
	}
	for i := range want {
		if audio.Samples[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, audio.Samples[i], want[i])
		}
	}
	if audio.SampleRate != SampleRate {
		t.Fatalf("unexpected sample rate %d", audio.SampleRate)
	}
}

func TestSynthesizeSpeechTextReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I cannot do that"}]}}]}`))
	})
	_, err := client.SynthesizeSpeech(context.Background(), "x")
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}
