// Package ai talks to the Gemini REST API for answer grading and speech synthesis.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrRateLimited marks quota or 429 failures; callers stop batch work on it
	ErrRateLimited = errors.New("too many requests (429), please wait a moment")
	// ErrInvalidResponse is returned for replies that do not carry the expected payload
	ErrInvalidResponse = errors.New("invalid gemini response")
	// ErrNoAudio is returned when the speech model answers without audio data
	ErrNoAudio = errors.New("no audio data returned from gemini")
)

// SampleRate is the rate of the PCM audio returned by the speech model
const SampleRate = 24000

// Config holds client settings. Zero values get defaults in NewClient.
type Config struct {
	APIKey       string
	BaseURL      string
	GradingModel string
	TTSModel     string
	Voice        string
	Timeout      time.Duration
}

// Client is a Gemini API client
type Client struct {
	apiKey       string
	baseURL      string
	gradingModel string
	ttsModel     string
	voice        string
	httpClient   *http.Client
}

// Audio is decoded mono speech
type Audio struct {
	Samples    []float32 // in [-1, 1)
	SampleRate int
}

// Duration returns the playback length
func (a *Audio) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// NewClient creates a new Gemini client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.GradingModel == "" {
		cfg.GradingModel = "gemini-3-flash-preview"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.Voice == "" {
		cfg.Voice = "Kore"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      baseURL,
		gradingModel: cfg.GradingModel,
		ttsModel:     cfg.TTSModel,
		voice:        cfg.Voice,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Part is one piece of message content
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 encoded binary content
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// Content is a list of parts
type Content struct {
	Parts []Part `json:"parts"`
}

// GenerateRequest represents a request to the generateContent endpoint
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// GenerationConfig selects the response format
type GenerationConfig struct {
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseSchema     json.RawMessage `json:"responseSchema,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig   `json:"speechConfig,omitempty"`
}

// SpeechConfig picks the prebuilt voice
type SpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

// GenerateResponse represents a response from the generateContent endpoint
type GenerateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

var gradingSchema = json.RawMessage(`{"type":"OBJECT","properties":{"isCorrect":{"type":"BOOLEAN"}},"required":["isCorrect"]}`)

// JudgeSemanticMatch asks the grading model whether candidate means the same as reference.
// Minor typos and valid paraphrases count as a match.
func (c *Client) JudgeSemanticMatch(ctx context.Context, reference, candidate string) (bool, error) {
	prompt := fmt.Sprintf(`Task: Determine if the user's answer means the same thing as the correct definition.
Context: English Idiom Learning.

Correct Definition: %q
User Answer: %q

Instructions:
1. Ignore minor typos or spacing issues.
2. If the user answer captures the core essence or is a valid synonym in Korean, mark as true.
3. If the meaning is different, mark as false.

Return strictly a JSON object.`, reference, candidate)

	request := GenerateRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
		GenerationConfig: GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   gradingSchema,
		},
	}

	response, err := c.generate(ctx, c.gradingModel, request)
	if err != nil {
		return false, err
	}
	text := response.text()
	if text == "" {
		return false, ErrInvalidResponse
	}

	var verdict struct {
		IsCorrect *bool `json:"isCorrect"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &verdict); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if verdict.IsCorrect == nil {
		return false, fmt.Errorf("%w: missing isCorrect", ErrInvalidResponse)
	}
	return *verdict.IsCorrect, nil
}

// SynthesizeSpeech reads text aloud with the configured voice
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) (*Audio, error) {
	speech := &SpeechConfig{}
	speech.VoiceConfig.PrebuiltVoiceConfig.VoiceName = c.voice
	request := GenerateRequest{
		Contents: []Content{{Parts: []Part{{Text: text}}}},
		GenerationConfig: GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       speech,
		},
	}

	response, err := c.generate(ctx, c.ttsModel, request)
	if err != nil {
		return nil, err
	}

	part, ok := response.firstPart()
	if !ok || part.InlineData == nil || part.InlineData.Data == "" {
		if ok && part.Text != "" {
			return nil, fmt.Errorf("%w: model returned text %q", ErrNoAudio, part.Text)
		}
		return nil, ErrNoAudio
	}

	pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &Audio{Samples: DecodePCM16(pcm), SampleRate: SampleRate}, nil
}

// DecodePCM16 converts little-endian 16-bit PCM into float samples. A trailing odd byte is dropped.
func DecodePCM16(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// IsRateLimited reports whether err is a quota or 429 failure
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

func (c *Client) generate(ctx context.Context, model string, payload GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("gemini request failed, status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if IsRateLimited(err) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, err
	}

	var response GenerateResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if response.Error != nil {
		err := fmt.Errorf("API error: %s", response.Error.Message)
		if response.Error.Code == http.StatusTooManyRequests || response.Error.Status == "RESOURCE_EXHAUSTED" {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, err
	}
	return &response, nil
}

func (r *GenerateResponse) firstPart() (Part, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return Part{}, false
	}
	return r.Candidates[0].Content.Parts[0], true
}

func (r *GenerateResponse) text() string {
	part, ok := r.firstPart()
	if !ok {
		return ""
	}
	return strings.TrimSpace(part.Text)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
