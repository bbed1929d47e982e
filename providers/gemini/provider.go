// Package gemini adapts the Google Gemini generateContent API. Gemini speaks
// its own dialect rather than the Chat Completions one: parts instead of
// messages, thought parts for reasoning, complete functionCall parts instead
// of argument fragments, and grounding metadata for search-backed answers.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider implements the Adapter interface for Gemini models.
type Provider struct {
	settings   llmrelay.Settings
	table      llmrelay.ModelTable
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Gemini adapter.
func New(settings llmrelay.Settings, logger *zap.Logger) (*Provider, error) {
	if settings.APIKey == "" {
		return nil, llmrelay.ErrInvalidAPIKey
	}
	baseURL := defaultBaseURL
	if settings.BaseURL != "" {
		baseURL = settings.BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	table, _ := llmrelay.ModelsFor(llmrelay.ProviderGemini)
	return &Provider{
		settings:   settings,
		table:      table,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logger,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llmrelay.ProviderID {
	return llmrelay.ProviderGemini
}

// GetModel resolves the configured model id against the Gemini table.
func (p *Provider) GetModel() llmrelay.ResolvedModel {
	return p.table.Resolve(p.settings.ModelID)
}

// ==== wire types ====

type generateRequest struct {
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Contents          []geminiContent   `json:"contents"`
	Tools             []geminiTool      `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *inlineData       `json:"inlineData,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []llmrelay.GeminiFunctionDeclaration `json:"functionDeclarations"`
}

type generationConfig struct {
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

// ==== request construction ====

func (p *Provider) buildRequest(req *llmrelay.CreateRequest, params llmrelay.ResolvedParams) (*generateRequest, error) {
	out := &generateRequest{
		Contents: convertContents(req.Messages),
	}
	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	if len(req.Tools) > 0 {
		normalized, err := llmrelay.NormalizeToolsStrict(req.Tools)
		if err != nil {
			return nil, err
		}
		declarations := make([]llmrelay.GeminiFunctionDeclaration, 0, len(normalized))
		for _, tool := range normalized {
			declarations = append(declarations, llmrelay.ToGeminiShape(tool))
		}
		out.Tools = []geminiTool{{FunctionDeclarations: declarations}}
	}

	config := &generationConfig{
		MaxOutputTokens: params.MaxTokens,
		Temperature:     params.Temperature,
	}
	if params.Reasoning != nil && params.Reasoning.BudgetTokens != nil {
		config.ThinkingConfig = &thinkingConfig{
			ThinkingBudget:  *params.Reasoning.BudgetTokens,
			IncludeThoughts: true,
		}
	}
	out.GenerationConfig = config
	return out, nil
}

// convertContents maps library messages onto Gemini contents. Gemini has no
// tool_result role; results travel as functionResponse parts in a user turn,
// keyed by the id the functionCall conversion recorded.
func convertContents(messages []llmrelay.Message) []geminiContent {
	// Gemini matches results to calls by function name, so remember the name
	// each tool_use id mapped to.
	callNames := map[string]string{}
	var out []geminiContent
	for _, msg := range messages {
		role := "user"
		if msg.Role == llmrelay.RoleAssistant {
			role = "model"
		}
		var parts []geminiPart
		for _, block := range msg.Blocks {
			switch block.Type {
			case llmrelay.BlockTypeText:
				parts = append(parts, geminiPart{Text: block.Text})
			case llmrelay.BlockTypeImage:
				parts = append(parts, geminiPart{InlineData: &inlineData{
					MimeType: block.MediaType,
					Data:     block.Data,
				}})
			case llmrelay.BlockTypeToolUse:
				callNames[block.ToolUseID] = block.ToolName
				parts = append(parts, geminiPart{FunctionCall: &functionCall{
					Name: block.ToolName,
					Args: block.ToolInput,
				}})
			case llmrelay.BlockTypeToolResult:
				response := map[string]any{"result": block.Text}
				if block.IsError {
					response = map[string]any{"error": block.Text}
				}
				parts = append(parts, geminiPart{FunctionResponse: &functionResponse{
					Name:     callNames[block.ToolUseID],
					Response: response,
				}})
			}
		}
		if len(parts) > 0 {
			out = append(out, geminiContent{Role: role, Parts: parts})
		}
	}
	return out
}

// ==== transport ====

func (p *Provider) post(ctx context.Context, path string, payload *generateRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", p.settings.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, llmrelay.CompletionError("Gemini", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		message := gjson.GetBytes(raw, "error.message").String()
		if message == "" {
			message = string(raw)
		}
		err := llmrelay.ClassifyHTTPStatus("Gemini", resp.StatusCode, message)
		p.logger.Warn("completion request failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// CompletePrompt runs a single-shot non-streaming completion and returns the
// concatenated non-thought text parts.
func (p *Provider) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	model := p.GetModel()
	params := llmrelay.ResolveParams(model, p.settings, llmrelay.FormatGemini)
	req := &llmrelay.CreateRequest{
		Messages: []llmrelay.Message{llmrelay.UserMessage(prompt)},
	}
	payload, err := p.buildRequest(req, params)
	if err != nil {
		return "", err
	}

	resp, err := p.post(ctx, "/models/"+model.ID+":generateContent", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed streamChunk
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", llmrelay.CompletionError("Gemini", err)
	}
	var text bytes.Buffer
	for _, candidate := range parsed.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}
	return text.String(), nil
}
