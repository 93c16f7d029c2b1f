package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vaultfunk/vaultfunk/internal/metrics"
)

// ClientConfig contains configuration for the advisor client.
type ClientConfig struct {
	Endpoint          string
	APIKey            string
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client calls a chat-completions endpoint and parses the structured
// JSON guidance out of the reply. Requests are rate limited and routed
// through a circuit breaker; both trip into errors the planner treats
// as "no guidance this tick".
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

// NewClient creates an advisor client.
func NewClient(config ClientConfig, log zerolog.Logger) *Client {
	if config.Endpoint == "" {
		config.Endpoint = "http://localhost:8080/v1/chat/completions"
	}
	if config.Model == "" {
		config.Model = "gpt-4-turbo"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.3
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 20
	}

	return &Client{
		endpoint:    config.Endpoint,
		apiKey:      config.APIKey,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		timeout:     config.Timeout,
		httpClient:  &http.Client{Timeout: config.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "advisor",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		log: log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Advise requests guidance for the snapshot. The advisor is skipped
// entirely (with an error) when the rate limit has no token available;
// it never queues.
func (c *Client) Advise(ctx context.Context, req Request) (*Guidance, error) {
	if !c.limiter.Allow() {
		metrics.AdvisorRequests.WithLabelValues("throttled").Inc()
		return nil, fmt.Errorf("advisor rate limit exceeded")
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.advise(ctx, req)
	})
	if err != nil {
		metrics.AdvisorRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.AdvisorRequests.WithLabelValues("ok").Inc()
	return out.(*Guidance), nil
}

func (c *Client) advise(ctx context.Context, req Request) (*Guidance, error) {
	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build advisor prompt: %w", err)
	}

	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	request.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal advisor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create advisor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("advisor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read advisor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisor API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("parse advisor response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("no choices in advisor response")
	}

	guidance, err := parseGuidance(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("action", string(guidance.Action)).
		Float64("confidence", guidance.Confidence).
		Dur("duration", time.Since(start)).
		Msg("advisor guidance received")

	return guidance, nil
}

// parseGuidance validates the structured content of the model reply.
func parseGuidance(content string) (*Guidance, error) {
	var g Guidance
	if err := json.Unmarshal([]byte(extractJSON(content)), &g); err != nil {
		return nil, fmt.Errorf("parse guidance JSON: %w", err)
	}
	if !validAction(g.Action) {
		return nil, fmt.Errorf("unrecognized advisor action %q", g.Action)
	}
	if g.Confidence < 0 {
		g.Confidence = 0
	}
	if g.Confidence > 1 {
		g.Confidence = 1
	}
	if g.Risk.RiskScore < 0 {
		g.Risk.RiskScore = 0
	}
	if g.Risk.RiskScore > 1 {
		g.Risk.RiskScore = 1
	}
	return &g, nil
}

// extractJSON strips a markdown code fence if the model wrapped its
// reply in one.
func extractJSON(content string) string {
	b := []byte(content)
	start := -1
	if idx := bytes.Index(b, []byte("```json")); idx >= 0 {
		start = idx + 7
	} else if idx := bytes.Index(b, []byte("```")); idx >= 0 {
		start = idx + 3
	}
	if start >= 0 {
		if idx := bytes.Index(b[start:], []byte("```")); idx >= 0 {
			b = b[start : start+idx]
		}
	}
	return string(bytes.TrimSpace(b))
}
