package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/entitysync/internal/models"
	"github.com/iudanet/entitysync/pkg/api"
)

// DefaultTimeout ограничивает время одного запроса к серверу
const DefaultTimeout = 30 * time.Second

// HeaderClientID identifies the client node on every request.
const HeaderClientID = "X-Client-ID"

// HeaderIdempotencyKey lets the server deduplicate retried pushes.
const HeaderIdempotencyKey = "Idempotency-Key"

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	token      string
	clientID   string
}

var _ Remote = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithClientID sets the node identifier sent in X-Client-ID.
func WithClientID(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.clientID = id
		}
	}
}

// WithLogger enables request logging.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  baseURL,
		clientID: uuid.NewString(),
		logger:   slog.Default(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = NewLoggingTransport(http.DefaultTransport, c.logger)
	return c
}

// ClientID returns the node identifier sent to the server.
func (c *Client) ClientID() string {
	return c.clientID
}

// SaveEntity отправляет одну сущность на сервер
func (c *Client) SaveEntity(ctx context.Context, typ string, e models.Entity) (Outcome, error) {
	path := "/api/v1/entities/" + url.PathEscape(typ)
	return c.write(ctx, http.MethodPost, path, e, nil)
}

// SaveEntities отправляет пакет сущностей нескольких типов
func (c *Client) SaveEntities(ctx context.Context, batch models.Batch) (Outcome, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/entities", batch, nil)
}

// DeleteEntity удаляет одну сущность на сервере
func (c *Client) DeleteEntity(ctx context.Context, typ string, id int64) (Outcome, error) {
	path := "/api/v1/entities/" + url.PathEscape(typ) + "/" + strconv.FormatInt(id, 10)
	return c.write(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteEntities удаляет несколько сущностей одного типа
func (c *Client) DeleteEntities(ctx context.Context, typ string, ids []int64) (Outcome, error) {
	path := "/api/v1/entities/" + url.PathEscape(typ) + "/delete"
	return c.write(ctx, http.MethodPost, path, api.DeleteEntitiesRequest{IDs: ids}, nil)
}

// UpdateServer отправляет накопленные offline изменения
func (c *Client) UpdateServer(ctx context.Context, req api.UpdateServerRequest) (Outcome, error) {
	headers := map[string]string{}
	if req.PushID != "" {
		headers[HeaderIdempotencyKey] = req.PushID
	}
	return c.write(ctx, http.MethodPost, "/api/v1/sync", req, headers)
}

// GetChangesSince получает изменения сервера после watermark
func (c *Client) GetChangesSince(ctx context.Context, token string) (*api.Changes, error) {
	path := "/api/v1/changes?since=" + url.QueryEscape(token)

	status, body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get changes request failed: %w", err)
	}
	if isGatewayStatus(status) {
		return nil, fmt.Errorf("get changes request failed: %w (status %d)", ErrUnreachable, status)
	}
	if status < 200 || status >= 300 {
		return nil, statusError(status, body)
	}

	var changes api.Changes
	if err := json.Unmarshal(body, &changes); err != nil {
		return nil, fmt.Errorf("failed to decode changes: %w", err)
	}
	return &changes, nil
}

// write выполняет запрос записи и классифицирует ответ
func (c *Client) write(ctx context.Context, method, path string, payload any, headers map[string]string) (Outcome, error) {
	status, body, err := c.doRequest(ctx, method, path, payload, headers)
	if err != nil {
		if errors.Is(err, ErrUnreachable) {
			return Unreachable(), nil
		}
		return Outcome{}, err
	}

	if isGatewayStatus(status) {
		return Unreachable(), nil
	}

	switch {
	case status >= 200 && status < 300:
		results, err := decodeResults(body)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to decode response: %w", err)
		}
		return OutcomeFromResults(results), nil
	case status >= 400 && status < 500:
		// 4xx с телом результатов - отказ сервера по конкретным сущностям
		results, err := decodeResults(body)
		if err != nil || len(results) == 0 {
			return Outcome{}, statusError(status, body)
		}
		return OutcomeFromResults(results), nil
	default:
		return Outcome{}, statusError(status, body)
	}
}

// doRequest выполняет HTTP запрос. Сетевые ошибки оборачиваются в ErrUnreachable.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, headers map[string]string) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderClientID, c.clientID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Отмена контекста вызывающей стороной - не проблема связи
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response body: %v", ErrUnreachable, err)
	}

	return resp.StatusCode, respBody, nil
}

func isGatewayStatus(status int) bool {
	return status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func statusError(status int, body []byte) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("server error (%d): %s", status, errResp.Message)
	}
	return fmt.Errorf("request failed with status %d: %s", status, string(body))
}

// decodeResults принимает как один результат, так и список результатов
func decodeResults(body []byte) ([]models.TransactionResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var results []models.TransactionResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, err
		}
		return results, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	if !hasResultFields(fields) {
		return nil, nil
	}

	var result models.TransactionResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	return []models.TransactionResult{result}, nil
}

func hasResultFields(fields map[string]json.RawMessage) bool {
	for _, key := range []string{"ClientID", "ID", "Errors"} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}
