package client

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNetwork        = errors.New("network error")
	ErrServer         = errors.New("server error")
	ErrValidation     = errors.New("request rejected")
	ErrNoRefreshToken = errors.New("no refresh token")
)

// ServerError is a 5xx answer. It matches ErrServer.
type ServerError struct {
	Status int
	Body   []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d", e.Status)
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// ValidationError is a 4xx answer other than 401. Payload is the raw
// response body. It matches ErrValidation.
type ValidationError struct {
	Status  int
	Payload []byte
}

func (e *ValidationError) Error() string {
	msg := strings.TrimSpace(string(e.Payload))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		return fmt.Sprintf("request rejected: status %d", e.Status)
	}
	return fmt.Sprintf("request rejected: status %d: %s", e.Status, msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
