package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskelio/internal/config"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	last  openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Model: req.Model,
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
		Usage: openai.Usage{TotalTokens: 42},
	}, nil
}

func newTestGenerator(fc ChatCompleter, breaker *CircuitBreaker) *ContentGenerator {
	return NewContentGeneratorWithClient(fc, config.OpenAIConfig{Model: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 300}, breaker, logrus.New())
}

func TestContentGenerator_OK(t *testing.T) {
	fc := &fakeCompleter{reply: "```json\n" + `{"sentiment":"negative","confidence":0.9,"emotions":["frustration"],"urgency":"high","recommendations":["call"],"suggested_actions":["schedule_call"]}` + "\n```"}
	g := newTestGenerator(fc, nil)

	res, err := g.Generate(context.Background(), AITaskSentimentAnalysis, map[string]interface{}{"message": "This is late again."})
	require.NoError(t, err)
	assert.Equal(t, VariantOK, res.Variant)
	assert.Equal(t, "negative", res.Content["sentiment"])
	assert.Equal(t, 42, res.TokensUsed)

	require.Len(t, fc.last.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fc.last.Messages[0].Role)
	assert.Contains(t, fc.last.Messages[1].Content, "This is late again.")
	require.NotNil(t, fc.last.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fc.last.ResponseFormat.Type)
}

func TestContentGenerator_NonJSONIsDegradedNotError(t *testing.T) {
	reply := "Sure! Here is my analysis: the client seems " + strings.Repeat("very ", 200) + "upset."
	g := newTestGenerator(&fakeCompleter{reply: reply}, nil)

	res, err := g.Generate(context.Background(), AITaskSentimentAnalysis, nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, true, res.Content["parse_error"])
	assert.Equal(t, "invalid JSON", res.Content["parse_error_reason"])
	assert.Equal(t, "neutral", res.Content["sentiment"], "fallback object is returned")
	assert.Len(t, []rune(res.Content["raw_response"].(string)), rawResponseLimit)
}

func TestContentGenerator_MissingKeysDegrades(t *testing.T) {
	g := newTestGenerator(&fakeCompleter{reply: `{"subject":"Hello"}`}, nil)

	res, err := g.Generate(context.Background(), AITaskEmailDraft, nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Contains(t, res.Content["parse_error_reason"], "body")
}

func TestContentGenerator_NoClientDegrades(t *testing.T) {
	g := NewContentGenerator(config.OpenAIConfig{}, nil, logrus.New())
	assert.False(t, g.Configured())

	res, err := g.Generate(context.Background(), AITaskRiskDetection, nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, "generator not configured", res.Content["parse_error_reason"])
}

func TestContentGenerator_TransportErrorAndBreaker(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("502 bad gateway")}
	breaker := NewCircuitBreaker(config.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	g := newTestGenerator(fc, breaker)

	_, err := g.Generate(context.Background(), AITaskEmailDraft, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrGeneratorUnavailable))

	_, err = g.Generate(context.Background(), AITaskEmailDraft, nil)
	assert.True(t, errors.Is(err, ErrGeneratorUnavailable))
	assert.Equal(t, 1, fc.calls, "open breaker fails fast")
}

func TestContentGenerator_UnknownTask(t *testing.T) {
	g := newTestGenerator(&fakeCompleter{}, nil)
	_, err := g.Generate(context.Background(), "poetry", nil)
	assert.True(t, errors.Is(err, ErrUnknownAITask))
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1} "))
}
