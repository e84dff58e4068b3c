// Package client provides a Go SDK for the devcrew HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ankittk/devcrew/pkg/models"
)

// APIError is a non-2xx response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// Client calls the devcrew HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:8000"
	APIKey     string       // optional; sent as X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:8000").
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Message: errBody.Error}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func agentPath(name string, rest ...string) string {
	p := "/agents/" + url.PathEscape(name)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// Info returns GET /.
func (c *Client) Info(ctx context.Context) (*models.ServiceInfo, error) {
	var out models.ServiceInfo
	err := c.doJSON(ctx, http.MethodGet, "/", nil, &out)
	return &out, err
}

// Health returns GET /health.
func (c *Client) Health(ctx context.Context) (*models.SystemHealth, error) {
	var out models.SystemHealth
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return &out, err
}

func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var out []models.Agent
	err := c.doJSON(ctx, http.MethodGet, "/agents", nil, &out)
	return out, err
}

func (c *Client) AgentStatus(ctx context.Context, name string) (*models.AgentStatusReport, error) {
	var out models.AgentStatusReport
	err := c.doJSON(ctx, http.MethodGet, agentPath(name), nil, &out)
	return &out, err
}

func (c *Client) StartAgent(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, agentPath(name, "start"), nil, nil)
}

func (c *Client) StopAgent(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, agentPath(name, "stop"), nil, nil)
}

func (c *Client) RestartAgent(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, agentPath(name, "restart"), nil, nil)
}

func (c *Client) AgentTasks(ctx context.Context, name string, limit int) ([]models.Task, error) {
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, withQuery(agentPath(name, "tasks"), limitQuery(limit)), nil, &out)
	return out, err
}

func (c *Client) AgentActivities(ctx context.Context, name string, limit int) ([]models.Activity, error) {
	var out []models.Activity
	err := c.doJSON(ctx, http.MethodGet, withQuery(agentPath(name, "activities"), limitQuery(limit)), nil, &out)
	return out, err
}

// SendMessage delivers msg to a running agent and returns its reply.
func (c *Client) SendMessage(ctx context.Context, name string, msg models.Message) (string, error) {
	var out models.MessageReply
	if err := c.doJSON(ctx, http.MethodPost, agentPath(name, "messages"), msg, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// CreateTask posts t and returns the stored task, including its id and status.
func (c *Client) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks", t, &out)
	return &out, err
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &out)
	return &out, err
}

// ListTasks lists tasks, optionally filtered by agent and status.
func (c *Client) ListTasks(ctx context.Context, agent string, status models.TaskStatus, limit int) ([]models.Task, error) {
	q := limitQuery(limit)
	if agent != "" {
		q.Set("agent", agent)
	}
	if status != "" {
		q.Set("status", string(status))
	}
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, withQuery("/tasks", q), nil, &out)
	return out, err
}

// UpdateTask sets a task completed or failed.
func (c *Client) UpdateTask(ctx context.Context, id string, status models.TaskStatus, result string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), models.TaskUpdate{Status: status, Result: result}, &out)
	return &out, err
}

// RequestCollaboration sends req and returns the requester that was used.
func (c *Client) RequestCollaboration(ctx context.Context, req models.CollaborationRequest) (string, error) {
	var out models.Result
	if err := c.doJSON(ctx, http.MethodPost, "/collaboration", req, &out); err != nil {
		return "", err
	}
	return out.Agent, nil
}

func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var out models.Stats
	err := c.doJSON(ctx, http.MethodGet, "/database/stats", nil, &out)
	return &out, err
}
