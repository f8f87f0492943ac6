package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed catalog call
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindServer       ErrorKind = "server"
)

// Sentinels matched by APIError via errors.Is
var (
	ErrNetwork      = errors.New("catalog service unreachable")
	ErrRejected     = errors.New("catalog service rejected the request")
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrServer       = errors.New("catalog service error")
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:      ErrNetwork,
	KindValidation:   ErrRejected,
	KindNotFound:     ErrNotFound,
	KindUnauthorized: ErrUnauthorized,
	KindServer:       ErrServer,
}

// APIError is returned for every failed call to the catalog API
type APIError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: %d - %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// UserMessage is the text shown in the admin's error banner
func (e *APIError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == KindNetwork {
		return "Unable to reach the catalog service"
	}
	return http.StatusText(e.StatusCode)
}

// KindOf returns the error kind, or "" when err is not an APIError
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

func newStatusError(op string, status int, body []byte) *APIError {
	msg := extractMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{
		Op:         op,
		Kind:       kindForStatus(status),
		StatusCode: status,
		Message:    msg,
	}
}

const maxRawMessage = 200

// extractMessage pulls a readable message out of an error body.
// Accepts {error:"..."}, {error:{message}}, {message} and {detail}.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		if trimmed[0] == '{' || trimmed[0] == '[' || trimmed[0] == '<' {
			return ""
		}
		if len(trimmed) > maxRawMessage {
			trimmed = trimmed[:maxRawMessage]
		}
		return trimmed
	}

	if len(envelope.Error) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Detail
}
