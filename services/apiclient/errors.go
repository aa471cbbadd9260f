package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

type Kind int

// Kinds
const (
	Unknown Kind = iota
	Timeout
	HTTPClientError
	HTTPServerError
	NetworkError
	AuthExpired // a 401: the API no longer accepts the session
)

var kindNames = map[Kind]string{
	Unknown:         "Unknown",
	Timeout:         "Timeout",
	HTTPClientError: "HttpClientError",
	HTTPServerError: "HttpServerError",
	NetworkError:    "NetworkError",
	AuthExpired:     "AuthExpired",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// StatusTimeout is the status reported for requests abandoned after the timeout.
const StatusTimeout = http.StatusRequestTimeout

// User messages
const (
	MsgNetwork       = "Unable to connect to the server. Please check your internet connection."
	MsgBadRequest    = "Invalid request. Please check your input."
	MsgExpired       = "Your session has expired. Please log in again."
	MsgForbidden     = "You do not have permission to perform this action."
	MsgNotFound      = "The requested resource was not found."
	MsgConflict      = "A conflict occurred. This item may already exist."
	MsgUnprocessable = "Validation failed. Please check your input."
	MsgTooMany       = "Too many requests. Please wait a moment and try again."
	MsgServer        = "Server error. Our team has been notified. Please try again later."
	MsgTimeout       = "Connection timeout. Please try again."
	MsgUnexpected    = "An unexpected error occurred. Please try again."
)

// Error is the only error returned by the API client.
type Error struct {
	Kind        Kind
	Status      int // 0 when the server could not be reached
	RawMessage  string
	UserMessage string

	Method string
	URL    string
	Err    error // transport failure, if any
}

func (e *Error) Error() string {
	return e.UserMessage
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) IsAuthExpired() bool {
	return e.Kind == AuthExpired
}

// AsError finds the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// UserMessage maps a status to the message shown to users. serverMsg is used where the server knows better.
func UserMessage(status int, serverMsg string) string {
	orDefault := func(def string) string {
		if serverMsg != "" {
			return serverMsg
		}
		return def
	}

	switch status {
	case 0:
		return MsgNetwork
	case http.StatusBadRequest:
		return orDefault(MsgBadRequest)
	case http.StatusUnauthorized:
		return MsgExpired
	case http.StatusForbidden:
		return MsgForbidden
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusConflict:
		return orDefault(MsgConflict)
	case http.StatusUnprocessableEntity:
		return orDefault(MsgUnprocessable)
	case http.StatusTooManyRequests:
		return MsgTooMany
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return MsgServer
	default:
		return orDefault(MsgUnexpected)
	}
}

// Normalize classifies a failed attempt: err is the transport error (nil if the server answered),
// status and body are those of the response. It has no side effects.
func Normalize(status int, body []byte, err error) *Error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: Timeout, Status: StatusTimeout, RawMessage: err.Error(), UserMessage: MsgTimeout, Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return &Error{Kind: Unknown, RawMessage: err.Error(), UserMessage: MsgUnexpected, Err: err}
		}
		return &Error{Kind: NetworkError, RawMessage: err.Error(), UserMessage: MsgNetwork, Err: err}
	}

	serverMsg := ServerMessage(body)
	apiErr := &Error{
		Status:      status,
		RawMessage:  serverMsg,
		UserMessage: UserMessage(status, serverMsg),
	}
	if apiErr.RawMessage == "" {
		apiErr.RawMessage = strings.TrimSpace(string(body))
	}
	switch {
	case status == http.StatusUnauthorized:
		apiErr.Kind = AuthExpired
	case status >= 400 && status < 500:
		apiErr.Kind = HTTPClientError
	case status >= 500:
		apiErr.Kind = HTTPServerError
	case status == 0:
		apiErr.Kind = NetworkError
	default:
		apiErr.Kind = Unknown
	}
	return apiErr
}

// ServerMessage extracts the message of an API error body:
// `message`, else `error.userMessage`, else `error.message` (or `error` itself when it is a string).
func ServerMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	if len(payload.Error) == 0 {
		return ""
	}

	var detail struct {
		UserMessage string `json:"userMessage"`
		Message     string `json:"message"`
	}
	if json.Unmarshal(payload.Error, &detail) == nil {
		if msg := strings.TrimSpace(detail.UserMessage); msg != "" {
			return msg
		}
		return strings.TrimSpace(detail.Message)
	}
	var msg string
	if json.Unmarshal(payload.Error, &msg) == nil {
		return strings.TrimSpace(msg)
	}
	return ""
}
