package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taskelio/internal/config"
	"taskelio/internal/metrics"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrGeneratorUnavailable = errors.New("content generator unavailable")
	ErrUnknownAITask        = errors.New("unknown content generation task")
)

// Generation variants.
const (
	VariantOK       = "ok"
	VariantDegraded = "degraded"
)

const rawResponseLimit = 500

// ChatCompleter is the slice of the OpenAI client the generator needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GenerationResult carries parsed content. Degraded results hold the task's
// fallback object plus parse_error, parse_error_reason and raw_response.
type GenerationResult struct {
	Task       string                 `json:"task"`
	Variant    string                 `json:"variant"`
	Content    map[string]interface{} `json:"content"`
	Model      string                 `json:"model,omitempty"`
	TokensUsed int                    `json:"tokens_used,omitempty"`
}

func (r *GenerationResult) Degraded() bool { return r != nil && r.Variant == VariantDegraded }

// ContentGenerator turns a task plus context into structured JSON content.
type ContentGenerator struct {
	client      ChatCompleter
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	breaker     *CircuitBreaker
	logger      *logrus.Logger
}

// NewContentGenerator builds an OpenAI-backed generator. Without an API key
// every call returns a degraded result.
func NewContentGenerator(cfg config.OpenAIConfig, breaker *CircuitBreaker, logger *logrus.Logger) *ContentGenerator {
	var client ChatCompleter
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		client = openai.NewClientWithConfig(oc)
	}
	return NewContentGeneratorWithClient(client, cfg, breaker, logger)
}

// NewContentGeneratorWithClient uses the given client; nil means unconfigured.
func NewContentGeneratorWithClient(client ChatCompleter, cfg config.OpenAIConfig, breaker *CircuitBreaker, logger *logrus.Logger) *ContentGenerator {
	if logger == nil {
		logger = logrus.New()
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &ContentGenerator{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   maxTokens,
		timeout:     cfg.Timeout,
		breaker:     breaker,
		logger:      logger,
	}
}

// Configured reports whether an upstream client is available.
func (g *ContentGenerator) Configured() bool { return g != nil && g.client != nil }

// Generate runs task against input. Shape problems yield a degraded result,
// transport problems an error.
func (g *ContentGenerator) Generate(ctx context.Context, task string, input map[string]interface{}) (*GenerationResult, error) {
	def, ok := aiTasks[task]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAITask, task)
	}
	if g.client == nil {
		return g.degrade(task, def, "generator not configured", ""), nil
	}

	userPrompt, err := buildUserPrompt(input)
	if err != nil {
		return g.degrade(task, def, "context not serializable: "+err.Error(), ""), nil
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: def.system},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature:    g.temperature,
		MaxTokens:      g.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var resp openai.ChatCompletionResponse
	call := func() error {
		var callErr error
		resp, callErr = g.client.CreateChatCompletion(ctx, req)
		return callErr
	}
	if g.breaker != nil {
		err = g.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		metrics.ObserveGeneratorResult(task, "error")
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
		}
		g.logger.WithFields(logrus.Fields{"task": task, "model": g.model}).Warnf("content generation failed: %v", err)
		return nil, fmt.Errorf("content generation %s: %w", task, err)
	}

	if len(resp.Choices) == 0 {
		return g.degrade(task, def, "empty response", ""), nil
	}
	raw := resp.Choices[0].Message.Content

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil || parsed == nil {
		return g.degrade(task, def, "invalid JSON", raw), nil
	}
	if missing := missingKeys(parsed, def.required); len(missing) > 0 {
		return g.degrade(task, def, "missing keys: "+strings.Join(missing, ", "), raw), nil
	}

	metrics.ObserveGeneratorResult(task, VariantOK)
	return &GenerationResult{
		Task:       task,
		Variant:    VariantOK,
		Content:    parsed,
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (g *ContentGenerator) degrade(task string, def aiTaskDef, reason, raw string) *GenerationResult {
	metrics.ObserveGeneratorResult(task, VariantDegraded)
	g.logger.WithFields(logrus.Fields{"task": task, "reason": reason}).Warn("content generation degraded to fallback")

	content := def.fallback()
	content["parse_error"] = true
	content["parse_error_reason"] = reason
	content["raw_response"] = truncateRunes(raw, rawResponseLimit)
	return &GenerationResult{Task: task, Variant: VariantDegraded, Content: content, Model: g.model}
}

func buildUserPrompt(input map[string]interface{}) (string, error) {
	if len(input) == 0 {
		return "Context: {}", nil
	}
	b, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", err
	}
	return "Context:\n" + string(b), nil
}

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func missingKeys(m map[string]interface{}, required []string) []string {
	var missing []string
	for _, k := range required {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
