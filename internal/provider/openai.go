package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/VicerInfoTech/TIF-AI/internal/intent"
)

// OpenAIConfig configures one OpenAI-compatible chat-completions endpoint.
// Groq, DeepSeek, OpenRouter and local gateways all speak this protocol, so
// the configured provider roster is usually several instances of this client
// with different base URLs and models.
type OpenAIConfig struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIProvider implements Provider against a chat-completions API.
type OpenAIProvider struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// NewOpenAIProvider validates the config and builds a client. The client
// timeout is an upper bound; per-attempt deadlines come from the caller's
// context.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required for provider %q", cfg.Name)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required for provider %q", cfg.Name)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required for provider %q", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		name:        strings.TrimSpace(cfg.Name),
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

// ResolveIntent asks the model for a structured QuerySpec and decodes it. A
// response that is not a usable JSON spec is wrapped in ErrMalformedOutput.
func (p *OpenAIProvider) ResolveIntent(ctx context.Context, req IntentRequest) (intent.QuerySpec, error) {
	system := "You convert analytics questions into a structured JSON query spec. " +
		"Answer with a single JSON object with keys intent, entities, metrics, dimensions, filters, time_range, limit. " +
		"Entities are table names from the provided schema. No markdown, no prose."

	var user strings.Builder
	fmt.Fprintf(&user, "Database: %s\nCurrent date: %s\n", req.DatabaseID, req.CurrentDate)
	if req.BusinessIntro != "" {
		fmt.Fprintf(&user, "\nBusiness context:\n%s\n", req.BusinessIntro)
	}
	fmt.Fprintf(&user, "\nSchema:\n%s\n", req.SchemaSummary)
	if len(req.History) > 0 {
		user.WriteString("\nEarlier turns:\n")
		for _, turn := range req.History {
			fmt.Fprintf(&user, "- Q: %s\n  SQL: %s\n", turn.Question, turn.SQL)
		}
	}
	fmt.Fprintf(&user, "\nQuestion:\n%s\n", strings.TrimSpace(req.Question))

	content, err := p.chat(ctx, system, user.String())
	if err != nil {
		return intent.QuerySpec{}, err
	}
	spec, err := intent.Parse(content)
	if err != nil {
		return intent.QuerySpec{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return spec, nil
}

// GenerateSQL asks the model for raw SQL text. The output is returned as-is;
// sanitisation and validation are the pipeline's responsibility.
func (p *OpenAIProvider) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	system := "You convert a structured analytics request into one read-only SQL query. " +
		"Use only the listed tables and the provided join paths. " +
		"Return ONLY SQL. No markdown, no explanation."

	specJSON, err := json.Marshal(req.Spec)
	if err != nil {
		return "", fmt.Errorf("marshal query spec: %w", err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Database: %s\n\nTables:\n%s\n", req.DatabaseID, req.SchemaContext)
	if req.JoinSummary != "" {
		fmt.Fprintf(&user, "\nJoin paths:\n%s\n", req.JoinSummary)
	}
	fmt.Fprintf(&user, "\nQuery spec (JSON):\n%s\n\nQuestion:\n%s\n", specJSON, strings.TrimSpace(req.Question))
	if req.Feedback != "" {
		fmt.Fprintf(&user, "\nThe previous attempt was rejected:\n%s\nGenerate a corrected query.\n", req.Feedback)
	}
	user.WriteString("\nRules:\n- Single SELECT (or WITH ... SELECT) statement.\n- No comments, no semicolons except an optional trailing one.\n- Prefer explicit column lists.\n")

	content, err := p.chat(ctx, system, user.String())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: model returned empty SQL", ErrMalformedOutput)
	}
	return content, nil
}

func (p *OpenAIProvider) chat(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": p.temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, truncateBody(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode chat completion response: %v", ErrMalformedOutput, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty chat completion choices", ErrMalformedOutput)
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncateBody(raw []byte) string {
	const limit = 512
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
