// Package anthropic adapts the Anthropic Messages API to the uniform
// streaming contract. It rides the official SDK for transport, translates
// content-block stream events into the uniform event union, places prompt
// cache breakpoints, and prices usage under the non-cache-inclusive
// convention.
package anthropic

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

// claudeCodeSystemPrefix must lead the system prompt on Claude-Code-routed
// requests; the endpoint rejects requests without it.
const claudeCodeSystemPrefix = "You are Claude Code, Anthropic's official CLI for Claude."

// claudeCodeBetaHeader enables OAuth bearer authentication on the Messages
// endpoint.
const claudeCodeBetaHeader = "oauth-2025-04-20"

// TokenSource mints a fresh bearer token for a single call. Used for
// short-lived session tokens that rotate outside the adapter's control.
type TokenSource func(ctx context.Context) (string, error)

// Provider implements the Adapter interface for Anthropic (Claude) models.
//
// The SDK client is held behind an atomic pointer and replaced, never
// mutated, when credentials rotate. In-flight streams keep the client they
// started with.
type Provider struct {
	id          llmrelay.ProviderID
	settings    llmrelay.Settings
	table       llmrelay.ModelTable
	format      llmrelay.Format
	logger      *zap.Logger
	client      atomic.Pointer[anthropic.Client]
	tokenSource TokenSource
}

// Option customizes a Provider at construction.
type Option func(*Provider)

// WithTokenSource installs a per-call token source. When set, every call
// builds its client from a freshly minted token instead of the static
// credentials in Settings.
func WithTokenSource(source TokenSource) Option {
	return func(p *Provider) {
		p.tokenSource = source
	}
}

// New creates an Anthropic adapter with static credentials.
func New(settings llmrelay.Settings, logger *zap.Logger, opts ...Option) (*Provider, error) {
	return newProvider(llmrelay.ProviderAnthropic, llmrelay.FormatAnthropic, settings, logger, opts...)
}

// NewClaudeCode creates an adapter for the Claude-Code-routed Messages
// endpoint. It authenticates with an OAuth bearer token and pins the required
// system prefix.
func NewClaudeCode(settings llmrelay.Settings, logger *zap.Logger, opts ...Option) (*Provider, error) {
	if settings.AuthToken == "" && settings.APIKey == "" {
		return nil, llmrelay.ErrInvalidAPIKey
	}
	return newProvider(llmrelay.ProviderClaudeCode, llmrelay.FormatClaudeCode, settings, logger, opts...)
}

func newProvider(id llmrelay.ProviderID, format llmrelay.Format, settings llmrelay.Settings, logger *zap.Logger, opts ...Option) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	table, _ := llmrelay.ModelsFor(llmrelay.ProviderAnthropic)
	p := &Provider{
		id:       id,
		settings: settings,
		table:    table,
		format:   format,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tokenSource == nil {
		if settings.APIKey == "" && settings.AuthToken == "" {
			return nil, llmrelay.ErrInvalidAPIKey
		}
		client := p.buildClient(settings.APIKey, settings.AuthToken)
		p.client.Store(&client)
	}
	return p, nil
}

func (p *Provider) buildClient(apiKey, authToken string) anthropic.Client {
	opts := []option.RequestOption{
		option.WithRequestTimeout(10 * time.Minute),
	}
	if authToken != "" {
		opts = append(opts, option.WithAuthToken(authToken))
	} else {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if p.settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.settings.BaseURL))
	}
	if p.format == llmrelay.FormatClaudeCode {
		opts = append(opts, option.WithHeaderAdd("anthropic-beta", claudeCodeBetaHeader))
	}
	return anthropic.NewClient(opts...)
}

// RotateAPIKey replaces the adapter's credentials with a new API key. Streams
// already in flight finish on the old client.
func (p *Provider) RotateAPIKey(apiKey string) {
	client := p.buildClient(apiKey, "")
	p.client.Store(&client)
}

// RotateAuthToken replaces the adapter's credentials with a new bearer token.
func (p *Provider) RotateAuthToken(authToken string) {
	client := p.buildClient("", authToken)
	p.client.Store(&client)
}

// clientFor returns the client to use for one call. With a token source
// installed the client is built fresh around a just-minted token.
func (p *Provider) clientFor(ctx context.Context) (*anthropic.Client, error) {
	if p.tokenSource != nil {
		token, err := p.tokenSource(ctx)
		if err != nil {
			return nil, llmrelay.CompletionError(p.label(), err)
		}
		client := p.buildClient("", token)
		return &client, nil
	}
	return p.client.Load(), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llmrelay.ProviderID {
	return p.id
}

func (p *Provider) label() string {
	if p.format == llmrelay.FormatClaudeCode {
		return "Claude Code"
	}
	return "Anthropic"
}

// GetModel resolves the configured model id against the Anthropic table.
func (p *Provider) GetModel() llmrelay.ResolvedModel {
	return p.table.Resolve(p.settings.ModelID)
}

// CompletePrompt runs a single-shot non-streaming completion and returns the
// concatenated text blocks of the reply.
func (p *Provider) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	client, err := p.clientFor(ctx)
	if err != nil {
		return "", err
	}
	model := p.GetModel()
	params := llmrelay.ResolveParams(model, p.settings, p.format)

	req := &llmrelay.CreateRequest{
		Messages: []llmrelay.Message{llmrelay.UserMessage(prompt)},
	}
	apiParams, err := p.buildMessageParams(req, model, params)
	if err != nil {
		return "", err
	}

	message, err := client.Messages.New(ctx, apiParams)
	if err != nil {
		return "", llmrelay.CompletionError(p.label(), classifySDKError(p.label(), err))
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
