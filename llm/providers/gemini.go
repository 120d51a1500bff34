// Package providers contains LLM provider implementations that register
// themselves with the llm package on import.
package providers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/paperdesk/paperdesk/llm"
)

// GeminiProvider implements the Google Generative Language API.
// Authentication is a query parameter, so the API key participates in URL
// construction rather than headers.
type GeminiProvider struct{}

func init() {
	llm.RegisterProvider(&GeminiProvider{})
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// BuildURL constructs the generateContent endpoint for the model.
func (g *GeminiProvider) BuildURL(baseURL, model, apiKey string) string {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, model, apiKey)
}

// SetHeaders is a no-op; the key travels in the URL.
func (g *GeminiProvider) SetHeaders(_ *http.Request, _ string) {}

// geminiRequest is the generateContent request format.
type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// BuildRequestBody creates the generateContent request body. System
// messages become the systemInstruction; attachments are inlined base64.
func (g *GeminiProvider) BuildRequestBody(req llm.Request) ([]byte, error) {
	var system *geminiContent
	var parts []geminiPart

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
			continue
		}
		parts = append(parts, geminiPart{Text: msg.Content})
	}

	for _, att := range req.Attachments {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MIMEType: att.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(att.Data),
			},
		})
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("no user content in request")
	}

	body := geminiRequest{
		Contents:          []geminiContent{{Role: "user", Parts: parts}},
		SystemInstruction: system,
	}

	if req.Temperature != nil || req.MaxTokens > 0 {
		cfg := &geminiGenConfig{Temperature: req.Temperature}
		if req.MaxTokens > 0 {
			cfg.MaxOutputTokens = &req.MaxTokens
		}
		body.GenerationConfig = cfg
	}

	return json.Marshal(body)
}

// geminiResponse is the generateContent response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// ParseResponse extracts content from a generateContent response.
func (g *GeminiProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}

	return &llm.Response{
		Content: b.String(),
		Model:   model,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
		FinishReason: resp.Candidates[0].FinishReason,
	}, nil
}
