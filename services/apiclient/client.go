// Package apiclient provides the REST client of the Masomo API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

type (
	// Pagination is the pagination block of list responses.
	Pagination struct {
		Total int `json:"total"`
		Pages int `json:"pages"`
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}

	// envelope is the shape of every API response.
	envelope struct {
		Success    bool            `json:"success"`
		Data       json.RawMessage `json:"data"`
		Message    string          `json:"message"`
		Pagination *Pagination     `json:"pagination"`
	}

	// Client is the Masomo API client. Its requests go through a Transport.
	Client struct {
		baseURL    string
		httpClient *http.Client
	}
)

// New creates a client for the API at baseURL. transport is usually a *Transport.
func New(baseURL string, transport http.RoundTripper) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: transport},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs an HTTP request and decodes the data of the response envelope into result.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) (*Pagination, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, unexpected(method, path, errors.Wrap(err, "encoding request body"))
		}
		bodyReader = bytes.NewReader(data)
	}

	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, unexpected(method, u, errors.Wrap(err, "creating request"))
	}
	req.Header.Set("Accept", mimeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if apiErr, ok := AsError(err); ok {
			return nil, apiErr
		}
		// not sent through a Transport
		apiErr := Normalize(0, nil, err)
		apiErr.Method, apiErr.URL = method, u
		return nil, apiErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := Normalize(resp.StatusCode, data, nil)
		apiErr.Method, apiErr.URL = method, u
		return nil, apiErr
	}

	var env envelope
	if err = json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			apiErr := Normalize(0, nil, errors.Wrap(err, "reading response"))
			apiErr.Method, apiErr.URL = method, u
			return nil, apiErr
		}
		return nil, unexpected(method, u, errors.Wrap(err, "decoding response"))
	}
	if !env.Success && err != io.EOF {
		return nil, &Error{
			Kind:        HTTPClientError,
			Status:      resp.StatusCode,
			RawMessage:  env.Message,
			UserMessage: UserMessage(http.StatusBadRequest, env.Message),
			Method:      method,
			URL:         u,
		}
	}
	if result != nil && len(env.Data) > 0 {
		if err = json.Unmarshal(env.Data, result); err != nil {
			return nil, unexpected(method, u, errors.Wrap(err, "decoding response data"))
		}
	}
	return env.Pagination, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) (*Pagination, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, body, result)
	return err
}

func (c *Client) put(ctx context.Context, path string, body, result any) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, body, result)
	return err
}

func (c *Client) delete(ctx context.Context, path string, result any) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, result)
	return err
}

type loginData struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Login exchanges credentials for a bearer token.
// A 401 on login rejects the credentials, not a session: the server message is shown instead.
func (c *Client) Login(ctx context.Context, req user.LoginRequest) (string, error) {
	var data loginData
	if err := c.post(ctx, "auth/login", req, &data); err != nil {
		if apiErr, ok := AsError(err); ok && apiErr.IsAuthExpired() && apiErr.RawMessage != "" {
			apiErr.UserMessage = apiErr.RawMessage
		}
		return "", err
	}
	if data.Token == "" {
		return "", unexpected(http.MethodPost, c.baseURL+"/auth/login", errors.New("login response without token"))
	}
	return data.Token, nil
}

func unexpected(method, u string, err error) *Error {
	return &Error{
		Kind:        Unknown,
		RawMessage:  err.Error(),
		UserMessage: MsgUnexpected,
		Method:      method,
		URL:         u,
		Err:         err,
	}
}
