package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultHuggingFaceEndpoint = "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.2"

// HuggingFaceProvider calls the Hugging Face inference API over JSON HTTP
type HuggingFaceProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewHuggingFaceProvider(apiKey string) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		apiKey:   apiKey,
		endpoint: defaultHuggingFaceEndpoint,
		client:   http.DefaultClient,
	}
}

// NewHuggingFaceProviderWithEndpoint exists for tests
func NewHuggingFaceProviderWithEndpoint(apiKey, endpoint string, client *http.Client) *HuggingFaceProvider {
	return &HuggingFaceProvider{apiKey: apiKey, endpoint: endpoint, client: client}
}

func (p *HuggingFaceProvider) Name() string { return "huggingface" }

func (p *HuggingFaceProvider) IsAvailable() bool { return p.apiKey != "" }

type hfRequest struct {
	Inputs string `json:"inputs"`
}

// hfGeneration covers the two response shapes the inference API returns for
// text models
type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
	SummaryText   string `json:"summary_text"`
}

type hfError struct {
	Error string `json:"error"`
}

func (p *HuggingFaceProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(hfRequest{Inputs: prompt})
	if err != nil {
		return "", providerErr(p.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", providerErr(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", providerErr(p.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providerErr(p.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr hfError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return "", providerErr(p.Name(), fmt.Errorf("api error: %s", apiErr.Error))
		}
		return "", providerErr(p.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var generations []hfGeneration
	if err := json.Unmarshal(data, &generations); err != nil {
		return "", providerErr(p.Name(), fmt.Errorf("unexpected response: %w", err))
	}
	if len(generations) == 0 {
		return "", providerErr(p.Name(), fmt.Errorf("empty response"))
	}
	text := generations[0].GeneratedText
	if text == "" {
		text = generations[0].SummaryText
	}
	if text == "" {
		return "", providerErr(p.Name(), fmt.Errorf("empty generation"))
	}
	// Instruct models echo the prompt before the completion
	return strings.TrimSpace(strings.TrimPrefix(text, prompt)), nil
}

func (p *HuggingFaceProvider) GenerateInsights(ctx context.Context, req InsightRequest) (string, error) {
	return p.generate(ctx, insightPrompt(req))
}

func (p *HuggingFaceProvider) SummarizeEmails(ctx context.Context, emails []EmailSummary) (string, error) {
	return p.generate(ctx, summaryPrompt(emails))
}

func (p *HuggingFaceProvider) CategorizeEmail(ctx context.Context, email EmailSummary) (string, error) {
	return p.generate(ctx, categoryPrompt(email))
}
