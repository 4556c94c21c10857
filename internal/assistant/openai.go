package assistant

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ashureev/assistant-chat/internal/domain"
	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultTimeout  = 30 * time.Second
	betaHeader      = "OpenAI-Beta"
	betaHeaderValue = "assistants=v2"

	// Enough to find the reply to the latest run without paging.
	listMessagesLimit = 20
)

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient implements Client against the Assistants v2 REST API.
type OpenAIClient struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a resty-backed client. It refuses to start
// without an API key so misconfiguration surfaces before any request.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader(betaHeader, betaHeaderValue).
		SetTimeout(cfg.Timeout)

	return &OpenAIClient{http: client, logger: logger}, nil
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

type createMessageRequest struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

type createRunRequest struct {
	AssistantID  string `json:"assistant_id,omitempty"`
	Model        string `json:"model,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type runObject struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	LastError *RunError `json:"last_error"`
}

type messageObject struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	RunID     string `json:"run_id"`
	CreatedAt int64  `json:"created_at"`
	Content   []struct {
		Type string `json:"type"`
		Text *struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

type messageList struct {
	Data []messageObject `json:"data"`
}

// CreateThread creates an empty thread.
func (c *OpenAIClient) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		SetResult(&thread).
		SetError(&apiErrorEnvelope{}).
		Post("/threads")
	if err := check("create thread", resp, err); err != nil {
		return nil, err
	}
	if thread.ID == "" {
		return nil, &ProviderError{Op: "create thread", StatusCode: resp.StatusCode(), Message: "response carried no thread id"}
	}
	return &thread, nil
}

// AppendMessage adds a message to a thread.
func (c *OpenAIClient) AppendMessage(ctx context.Context, threadID string, role domain.Role, content string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("threadID", threadID).
		SetBody(createMessageRequest{Role: role, Content: content}).
		SetError(&apiErrorEnvelope{}).
		Post("/threads/{threadID}/messages")
	return check("append message", resp, err)
}

// StartRun starts a run on a thread.
func (c *OpenAIClient) StartRun(ctx context.Context, threadID string, params RunParams) (*Run, error) {
	var run runObject
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("threadID", threadID).
		SetBody(createRunRequest{
			AssistantID:  params.AssistantID,
			Model:        params.Model,
			Instructions: params.Instructions,
		}).
		SetResult(&run).
		SetError(&apiErrorEnvelope{}).
		Post("/threads/{threadID}/runs")
	if err := check("start run", resp, err); err != nil {
		return nil, err
	}
	if run.ID == "" {
		return nil, &ProviderError{Op: "start run", StatusCode: resp.StatusCode(), Message: "response carried no run id"}
	}
	c.logger.Debug("Assistant run started", "thread_id", threadID, "run_id", run.ID, "status", run.Status)
	return run.toRun(), nil
}

// GetRun fetches the current state of a run.
func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run runObject
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"threadID": threadID, "runID": runID}).
		SetResult(&run).
		SetError(&apiErrorEnvelope{}).
		Get("/threads/{threadID}/runs/{runID}")
	if err := check("get run", resp, err); err != nil {
		return nil, err
	}
	return run.toRun(), nil
}

// ListMessages returns the thread's most recent messages, newest first.
func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var list messageList
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("threadID", threadID).
		SetQueryParams(map[string]string{
			"order": "desc",
			"limit": strconv.Itoa(listMessagesLimit),
		}).
		SetResult(&list).
		SetError(&apiErrorEnvelope{}).
		Get("/threads/{threadID}/messages")
	if err := check("list messages", resp, err); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(list.Data))
	for _, m := range list.Data {
		msgs = append(msgs, Message{
			ID:        m.ID,
			Role:      domain.Role(m.Role),
			Content:   m.text(),
			RunID:     m.RunID,
			CreatedAt: m.CreatedAt,
		})
	}
	return msgs, nil
}

func (r runObject) toRun() *Run {
	return &Run{
		ID:        r.ID,
		Status:    domain.ParseRunStatus(r.Status),
		LastError: r.LastError,
	}
}

// text returns the first text part of the message.
func (m messageObject) text() string {
	for _, part := range m.Content {
		if part.Type == "text" && part.Text != nil {
			return part.Text.Value
		}
	}
	return ""
}

func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	if !resp.IsError() {
		return nil
	}
	perr := &ProviderError{Op: op, StatusCode: resp.StatusCode()}
	if env, ok := resp.Error().(*apiErrorEnvelope); ok && env != nil {
		perr.Message = env.Error.Message
	}
	return perr
}
