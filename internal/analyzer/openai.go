package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/platform/observability"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = time.Minute
)

const itemPrompt = `You are an expert community manager. Summarize the following feedback thread and its comments as concise markdown.

Structure:
- One short paragraph stating what the discussion is about and the overall sentiment.
- A bulleted list of the main points raised, most common first.
- A final "Actionable" bullet only if commenters asked for something concrete.

Do not invent facts that are not in the thread. Keep it under 200 words.

Thread:
`

const weeklyPrompt = `You are an expert community manager writing a weekly roundup. Given the following discussion digests from one community, write a markdown overview.

Structure:
- "## This week" paragraph naming the dominant themes.
- "## Trends" bullets for recurring complaints or requests across discussions.
- "## Wins" bullets for positive feedback, omit the section if there is none.

Every statement must be grounded in the digests. Keep it under 300 words.

Digests:
`

// Options configures the OpenAI analyzer.
type Options struct {
	APIKey    string
	Model     string
	RateRPS   int
	RateBurst int
}

type openaiAnalyzer struct {
	client      *openai.Client
	model       string
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

// NewOpenAI returns an Analyzer backed by the OpenAI chat API. Calls are
// rate limited and guarded by a circuit breaker so a failing upstream does
// not hammer through a whole batch run.
func NewOpenAI(opts Options, logger *zerolog.Logger) Analyzer {
	model := opts.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &openaiAnalyzer{
		client:      openai.NewClient(opts.APIKey),
		model:       model,
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(opts.RateRPS)), burst),
	}
}

func (a *openaiAnalyzer) Summarize(ctx context.Context, text string) (string, error) {
	return a.complete(ctx, itemPrompt+text)
}

func (a *openaiAnalyzer) SummarizeWeekly(ctx context.Context, texts []string) (string, error) {
	var sb strings.Builder

	for i, t := range texts {
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, t))
	}

	return a.complete(ctx, weeklyPrompt+sb.String())
}

func (a *openaiAnalyzer) complete(ctx context.Context, prompt string) (string, error) {
	if err := a.checkCircuit(); err != nil {
		return "", err
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	start := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})

	observability.AnalyzerRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		a.recordFailure()
		observability.AnalyzerRequests.WithLabelValues("error").Inc()

		return "", fmt.Errorf("openai chat completion error: %w", err)
	}

	a.recordSuccess()
	observability.AnalyzerRequests.WithLabelValues("ok").Inc()

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response: no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (a *openaiAnalyzer) checkCircuit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if time.Now().Before(a.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", apperrors.ErrCircuitBreakerOpen, a.circuitOpenUntil)
	}

	return nil
}

func (a *openaiAnalyzer) recordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.consecutiveFailures = 0
}

func (a *openaiAnalyzer) recordFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.consecutiveFailures++
	if a.consecutiveFailures >= circuitBreakerThreshold {
		a.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		a.logger.Warn().
			Int("consecutive_failures", a.consecutiveFailures).
			Time("open_until", a.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}
