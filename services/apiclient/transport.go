package apiclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

// Headers
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderAppVersion    = "X-App-Version"
	HeaderEnvironment   = "X-Environment"

	mimeJSON = "application/json"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

var NowFunc = time.Now // mockable

type (
	TransportOptions struct {
		// Base performs the actual round trips. Defaults to http.DefaultTransport.
		Base        http.RoundTripper
		BaseURL     string
		AppVersion  string
		Environment string
		// Timeout bounds each attempt. Zero means no bound.
		Timeout time.Duration
		// Tokens resolves the bearer token of every request.
		Tokens session.TokenSource
		// OnSessionExpired is called once a request is answered with a 401.
		OnSessionExpired func(ctx context.Context)
		Logger           core.Logger
		Metrics          *Metrics
		Debug            bool
	}

	// Transport augments every request targeting the API: it injects the API headers,
	// bounds each attempt with a timeout, retries read-only requests once
	// and turns every failure into an *Error.
	// Unlike a plain http.RoundTripper, error statuses are failures: the response body is
	// consumed and closed, and an *Error is returned instead.
	// Requests to other hosts are passed through untouched.
	Transport struct {
		opts TransportOptions
	}
)

var _ http.RoundTripper = (*Transport)(nil)

func NewTransport(opts TransportOptions) *Transport {
	if opts.Base == nil {
		opts.Base = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Transport{opts: opts}
}

// IsIdempotent reports whether requests with the given method may be retried.
func IsIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// InScope reports whether rawURL targets the API.
func (t *Transport) InScope(rawURL string) bool {
	base := t.opts.BaseURL
	if base == "" || !strings.HasPrefix(rawURL, base) {
		return false
	}
	rest := rawURL[len(base):]
	return rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.InScope(req.URL.String()) {
		t.opts.Metrics.recordRequest(req.Method, outcomePassThrough, 0)
		return t.opts.Base.RoundTrip(req)
	}

	start := NowFunc()
	attempts := 1
	if IsIdempotent(req.Method) {
		attempts = 2
	}

	var apiErr *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if !canReplay(req) {
				break
			}
			t.opts.Metrics.recordRetry(req.Method)
			t.opts.Logger.Warn("retrying API request", map[string]interface{}{
				"attempt": attempt,
				"method":  req.Method,
				"url":     req.URL.String(),
			})
		}

		var resp *http.Response
		resp, apiErr = t.attempt(req)
		if apiErr == nil {
			t.opts.Metrics.recordRequest(req.Method, outcomeSuccess, NowFunc().Sub(start).Seconds())
			return resp, nil
		}
		if req.Context().Err() != nil {
			break // the caller gave up
		}
	}

	apiErr.Method = req.Method
	apiErr.URL = req.URL.String()
	t.fail(req, apiErr)
	t.opts.Metrics.recordRequest(req.Method, outcomeFailure, NowFunc().Sub(start).Seconds())
	return nil, apiErr
}

// attempt performs one try of req under its own timeout.
func (t *Transport) attempt(req *http.Request) (*http.Response, *Error) {
	ctx := req.Context()
	cancel := context.CancelFunc(func() {})
	if t.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
	}

	out, err := t.prepare(ctx, req)
	if err != nil {
		cancel()
		return nil, &Error{Kind: Unknown, RawMessage: err.Error(), UserMessage: MsgUnexpected, Err: err}
	}

	resp, err := t.opts.Base.RoundTrip(out)
	if err != nil {
		cancel()
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.Wrap(context.DeadlineExceeded, err.Error())
		}
		return nil, Normalize(0, nil, err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, ctx: ctx, cancel: cancel}
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	timedOut := ctx.Err() == context.DeadlineExceeded
	cancel()
	if err != nil && timedOut {
		return nil, Normalize(0, nil, errors.Wrap(context.DeadlineExceeded, err.Error()))
	}
	return nil, Normalize(resp.StatusCode, body, nil)
}

// prepare clones req for one attempt and injects the API headers. req itself is never modified.
func (t *Transport) prepare(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "rewinding request body")
		}
		out.Body = body
	}

	out.Header.Set(HeaderContentType, mimeJSON)
	out.Header.Set(HeaderAppVersion, t.opts.AppVersion)
	out.Header.Set(HeaderEnvironment, t.opts.Environment)
	out.Header.Del(HeaderAuthorization)
	if t.opts.Tokens != nil {
		if token := t.opts.Tokens.Token(); token != "" {
			out.Header.Set(HeaderAuthorization, "Bearer "+token)
		}
	}

	if t.opts.Debug {
		names := make([]string, 0, len(out.Header))
		for name := range out.Header {
			names = append(names, name)
		}
		t.opts.Logger.Debug("API request", map[string]interface{}{
			"method":  out.Method,
			"url":     out.URL.String(),
			"headers": names,
		})
	}
	return out, nil
}

// fail logs the final failure of req and triggers the session expiry on 401s.
func (t *Transport) fail(req *http.Request, apiErr *Error) {
	t.opts.Metrics.recordError(apiErr.Kind)

	fields := map[string]interface{}{
		"kind":   apiErr.Kind.String(),
		"status": apiErr.Status,
		"method": apiErr.Method,
		"url":    apiErr.URL,
	}
	if apiErr.Kind == HTTPServerError {
		t.opts.Logger.Error("API server error: "+apiErr.RawMessage, fields)
	} else {
		t.opts.Logger.Warn("API request failed: "+apiErr.RawMessage, fields)
	}

	if apiErr.Kind == AuthExpired && t.opts.OnSessionExpired != nil {
		t.opts.OnSessionExpired(context.WithoutCancel(req.Context()))
	}
}

// canReplay reports whether the body of req can be sent again.
func canReplay(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// cancelOnClose releases the attempt context along with the response body.
// Reads failing past the attempt deadline report context.DeadlineExceeded.
type cancelOnClose struct {
	io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *cancelOnClose) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	if err != nil && err != io.EOF && c.ctx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Wrap(context.DeadlineExceeded, err.Error())
	}
	return n, err
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
