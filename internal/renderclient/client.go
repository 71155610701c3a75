// internal/renderclient/client.go
package renderclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "render-workers/internal/common/errors"
	apphttp "render-workers/internal/common/http"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
	"render-workers/internal/render/monitor"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Resolution string
	Quality    string
}

// ServiceError is a non-2xx response or a success:false payload.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("render service %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// HTTPStatus exposes the response status to the error classifier.
func (e *ServiceError) HTTPStatus() int {
	return e.StatusCode
}

// Client talks to the render service. It is safe for concurrent use.
type Client struct {
	config *Config
	http   *apphttp.Client
	logger logger.Logger
	newID  func() string
}

func New(config *Config, log logger.Logger) *Client {
	if config.Resolution == "" {
		config.Resolution = "full-hd"
	}
	if config.Quality == "" {
		config.Quality = "high"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		http:   apphttp.NewClient(config.Timeout).WithHeader("x-api-key", config.APIKey),
		logger: log.WithFields(map[string]interface{}{"component": "render-client"}),
		newID:  uuid.NewString,
	}
}

var _ monitor.RenderService = (*Client)(nil)

// Submit validates the plan payload and posts it. A payload that fails
// validation is never sent.
func (c *Client) Submit(ctx context.Context, plan model.TimingPlan) (string, error) {
	m := buildMovie(c.newID(), plan, c.config.Resolution, c.config.Quality)
	if err := validateMovie(m); err != nil {
		return "", apperrors.NewPlanInvalidError(err.Error())
	}

	resp, err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint("/movies"), m)
	if err != nil {
		return "", fmt.Errorf("submit render: %w", err)
	}

	var body submitResponse
	decodeErr := json.Unmarshal(resp.Body, &body)

	if !resp.OK() {
		return "", &ServiceError{Op: "submit", StatusCode: resp.StatusCode, Message: message(body.Message, resp)}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("submit render: decode response: %w", decodeErr)
	}
	if !body.Success {
		return "", &ServiceError{Op: "submit", StatusCode: resp.StatusCode, Message: message(body.Message, resp)}
	}
	if body.Project == "" {
		return "", &ServiceError{Op: "submit", StatusCode: resp.StatusCode, Message: "response carried no project id"}
	}

	c.logger.Info("render submitted", map[string]interface{}{
		"recordId": plan.RecordID,
		"movieId":  m.ID,
		"project":  body.Project,
		"scenes":   len(m.Scenes),
	})
	return body.Project, nil
}

// Poll fetches the status of a submitted project.
func (c *Client) Poll(ctx context.Context, jobID string) (monitor.PollResult, error) {
	resp, err := c.http.DoJSON(ctx, http.MethodGet, c.endpoint("/movies")+"?project="+url.QueryEscape(jobID), nil)
	if err != nil {
		return monitor.PollResult{}, fmt.Errorf("poll render: %w", err)
	}

	var body pollResponse
	decodeErr := json.Unmarshal(resp.Body, &body)

	if !resp.OK() {
		return monitor.PollResult{}, &ServiceError{Op: "poll", StatusCode: resp.StatusCode, Message: message(body.Message, resp)}
	}
	if decodeErr != nil {
		return monitor.PollResult{}, fmt.Errorf("poll render: decode response: %w", decodeErr)
	}
	if !body.Success {
		return monitor.PollResult{}, &ServiceError{Op: "poll", StatusCode: resp.StatusCode, Message: message(body.Message, resp)}
	}

	result := monitor.PollResult{
		Status:    monitor.PollStatus(strings.ToLower(strings.TrimSpace(body.Movie.Status))),
		OutputURL: strings.TrimSpace(body.Movie.URL),
		Message:   body.Movie.Message,
	}
	c.logger.Debug("render polled", map[string]interface{}{
		"project": jobID,
		"status":  string(result.Status),
	})
	return result, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

func message(m string, resp *apphttp.Response) string {
	if m != "" {
		return m
	}
	if text := http.StatusText(resp.StatusCode); text != "" && !resp.OK() {
		return text
	}
	return "request unsuccessful"
}
