package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// UpstreamError is the single error shape every failed call is folded into.
// Status is 0 when the request never got a response.
type UpstreamError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Client talks to the Crew API with a static bearer token. Every call is a
// single attempt.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:         "crew-import",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Request(ctx, http.MethodPost, path, body, out)
}

// Request sends one JSON request and decodes a 2xx response into out when
// out is non-nil. Anything else comes back as *UpstreamError.
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return &UpstreamError{Message: err.Error()}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return &UpstreamError{Message: transportMessage(err)}
	}

	status := resp.StatusCode()
	respBody := append([]byte(nil), resp.Body()...)

	if status < 200 || status >= 300 {
		return &UpstreamError{
			Status:  status,
			Message: errorMessage(status, respBody),
			Body:    respBody,
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	// A 2xx means the upstream accepted the call even when the body is
	// plain text; *interface{} targets get the text instead.
	if err := json.Unmarshal(respBody, out); err != nil {
		if text, ok := out.(*interface{}); ok {
			*text = strings.TrimSpace(string(respBody))
		}
	}
	return nil
}

func transportMessage(err error) string {
	if err == fasthttp.ErrTimeout {
		return "Request failed: upstream timed out"
	}
	if msg := err.Error(); msg != "" {
		return "Request failed: " + msg
	}
	return "Request failed"
}

// errorMessage pulls a human message out of the many error bodies the API
// produces: plain text, {message}, {error:{message}}, {error:"..."} or
// {errors:{field:[...]}}.
func errorMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return statusText(status)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		if trimmed[0] == '<' {
			return statusText(status)
		}
		return trimmed
	}

	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}
	switch e := parsed["error"].(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg := firstValidationError(parsed["errors"]); msg != "" {
		return msg
	}
	return statusText(status)
}

func firstValidationError(v interface{}) string {
	switch errs := v.(type) {
	case []interface{}:
		for _, item := range errs {
			if msg := firstValidationError(item); msg != "" {
				return msg
			}
		}
	case map[string]interface{}:
		if msg, ok := errs["message"].(string); ok {
			return msg
		}
		for _, item := range errs {
			if msg := firstValidationError(item); msg != "" {
				return msg
			}
		}
	case string:
		return errs
	}
	return ""
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Request failed"
}
