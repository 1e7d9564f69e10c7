package httpx

import (
	"errors"

	"dqx0.com/go/evhttp/httpx/internal/http1"
)

var (
	ErrRequestInFlight = errors.New("httpx: request already in flight")
	ErrResolve         = errors.New("httpx: address resolution failed")
	ErrConnect         = errors.New("httpx: connect failed")
	ErrTimeout         = errors.New("httpx: timeout")
	ErrResponseAborted = errors.New("httpx: response aborted")
	ErrRateLimited     = errors.New("httpx: rate limited")
	ErrClosed          = errors.New("httpx: connection closed")

	ErrRequestTooLarge = http1.ErrRequestTooLarge
	ErrInvalidMethod   = http1.ErrInvalidMethod
	ErrInvalidTarget   = http1.ErrInvalidTarget
	ErrInvalidHeader   = http1.ErrInvalidHeader
)
