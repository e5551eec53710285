package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

// GeminiProvider calls Google's Generative Language API over JSON HTTP
type GeminiProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:   apiKey,
		endpoint: defaultGeminiEndpoint,
		client:   http.DefaultClient,
	}
}

// NewGeminiProviderWithEndpoint exists for tests
func NewGeminiProviderWithEndpoint(apiKey, endpoint string, client *http.Client) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, endpoint: endpoint, client: client}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) IsAvailable() bool { return p.apiKey != "" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", providerErr(p.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"?key="+p.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", providerErr(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", providerErr(p.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providerErr(p.Name(), err)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", providerErr(p.Name(), fmt.Errorf("unexpected response: %w", err))
	}
	if decoded.Error != nil {
		return "", providerErr(p.Name(), fmt.Errorf("api error: %s", decoded.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return "", providerErr(p.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", providerErr(p.Name(), fmt.Errorf("empty response"))
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

func (p *GeminiProvider) GenerateInsights(ctx context.Context, req InsightRequest) (string, error) {
	return p.generate(ctx, insightPrompt(req))
}

func (p *GeminiProvider) SummarizeEmails(ctx context.Context, emails []EmailSummary) (string, error) {
	return p.generate(ctx, summaryPrompt(emails))
}

func (p *GeminiProvider) CategorizeEmail(ctx context.Context, email EmailSummary) (string, error) {
	return p.generate(ctx, categoryPrompt(email))
}
