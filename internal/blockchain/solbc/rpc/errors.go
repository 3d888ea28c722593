// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrRateLimit возникает при превышении лимита запросов
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrTimeout возникает при превышении времени ожидания
	ErrTimeout = errors.New("request timeout")

	// ErrInvalidResponse возникает при получении некорректного ответа
	ErrInvalidResponse = errors.New("invalid RPC response")

	// ErrConnectionFailed возникает при ошибке подключения
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNodeRejected возникает, когда узел вернул JSON-RPC ошибку
	ErrNodeRejected = errors.New("request rejected by node")
)

// Error представляет ошибку RPC с дополнительным контекстом
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создает новую ошибку RPC
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}

// Wrap classifies a raw transport error and attaches method and node context.
// A nil err stays nil.
func Wrap(err error, nodeURL, method string) error {
	if err == nil {
		return nil
	}
	return NewError(classify(err), nodeURL, method)
}

type classified struct {
	kind  error
	cause error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%v: %v", c.kind, c.cause)
}

func (c *classified) Unwrap() []error {
	return []error{c.kind, c.cause}
}

func classify(err error) error {
	var kind error

	var httpErr *jsonrpc.HTTPError
	var rpcErr *jsonrpc.RPCError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.As(err, &httpErr) && httpErr.Code == http.StatusTooManyRequests:
		kind = ErrRateLimit
	case errors.As(err, &httpErr) && httpErr.Code >= http.StatusInternalServerError:
		kind = ErrConnectionFailed
	case errors.As(err, &rpcErr):
		kind = ErrNodeRejected
	default:
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "connection reset"),
			strings.Contains(msg, "connection refused"),
			strings.Contains(msg, "no such host"),
			strings.Contains(msg, "eof"):
			kind = ErrConnectionFailed
		case strings.Contains(msg, "timeout"):
			kind = ErrTimeout
		case strings.Contains(msg, "decode"), strings.Contains(msg, "unmarshal"):
			kind = ErrInvalidResponse
		default:
			return err
		}
	}
	return &classified{kind: kind, cause: err}
}

// IsRetryableError определяет, можно ли повторить операцию при данной ошибке
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrConnectionFailed)
}

// IsCriticalError определяет, является ли ошибка критической
func IsCriticalError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidResponse) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "invalid request") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden")
}
