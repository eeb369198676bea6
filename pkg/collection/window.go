package collection

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	dErrors "accounting/pkg/domain-errors"
)

const (
	// DefaultPageSize applies when page_size is absent.
	DefaultPageSize = 200
	// DefaultMaxPageSize caps page_size unless configured otherwise.
	DefaultMaxPageSize = 1000
)

// Window is a 1-based page request.
type Window struct {
	Start int
	Size  int
}

// Offset is the number of records skipped before the window.
func (w Window) Offset() int {
	return w.Start - 1
}

// Limit is the maximum number of records in the window.
func (w Window) Limit() int {
	return w.Size
}

// Limits configures window parsing.
type Limits struct {
	DefaultSize int
	MaxSize     int
}

func (l Limits) withDefaults() Limits {
	if l.DefaultSize <= 0 {
		l.DefaultSize = DefaultPageSize
	}
	if l.MaxSize <= 0 {
		l.MaxSize = DefaultMaxPageSize
	}
	if l.DefaultSize > l.MaxSize {
		l.DefaultSize = l.MaxSize
	}
	return l
}

// ParseWindow reads start and page_size from a query string. start defaults
// to 1, page_size to limits.DefaultSize. Values out of range are rejected
// rather than clamped so the links of the returned page match the request.
func ParseWindow(q url.Values, limits Limits) (Window, error) {
	limits = limits.withDefaults()
	w := Window{Start: 1, Size: limits.DefaultSize}

	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Window{}, dErrors.New(dErrors.CodeBadRequest, "start must be an integer")
		}
		if n < 1 {
			return Window{}, dErrors.New(dErrors.CodeBadRequest, "start must be at least 1")
		}
		w.Start = n
	}

	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Window{}, dErrors.New(dErrors.CodeBadRequest, "page_size must be an integer")
		}
		if n < 1 || n > limits.MaxSize {
			return Window{}, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("page_size must be between 1 and %d", limits.MaxSize))
		}
		w.Size = n
	}
	return w, nil
}
