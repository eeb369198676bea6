// Package collection assembles paginated collection envelopes with
// first/previous/next navigation links.
package collection

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Envelope is the wire form of one page of a collection.
type Envelope[T any] struct {
	Href     string `json:"href"`
	First    string `json:"first,omitempty"`
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
	Count    int    `json:"count"`
	PageSize int    `json:"page_size"`
	Items    []T    `json:"items"`
}

type options struct {
	base  *url.URL
	query url.Values
}

// Option customizes how links are rendered.
type Option func(*options)

// WithBase renders absolute links against base instead of absolute-path references.
func WithBase(base *url.URL) Option {
	return func(o *options) {
		o.base = base
	}
}

// WithQuery appends extra query parameters (a filter, for instance) to every
// link, after start and page_size. Empty values are dropped.
func WithQuery(q url.Values) Option {
	return func(o *options) {
		o.query = q
	}
}

// Assemble wraps one page of items. domainPath is an escaped path such as
// "categories" or "categories/children/id/A001"; totalCount is the size of
// the whole collection. start must be >= 1 and pageSize >= 1; callers
// validate both beforehand.
func Assemble[T any](start, pageSize int, domainPath string, totalCount int, items []T, opts ...Option) Envelope[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if items == nil {
		items = []T{}
	}

	link := linker(o, domainPath, pageSize)
	env := Envelope[T]{
		Href:  link(start),
		Count: totalCount,
		Items: items,
	}

	// The page already holds everything.
	if totalCount <= len(items) {
		env.PageSize = totalCount
		return env
	}

	env.PageSize = pageSize
	// start+pageSize < totalCount, rearranged so a huge start cannot overflow.
	if start < totalCount-pageSize {
		env.Next = link(start + pageSize)
	}
	env.First = link(1)
	if start > 1 {
		env.Previous = link(max(start-pageSize, 1))
	}
	return env
}

func linker(o options, domainPath string, pageSize int) func(start int) string {
	var prefix string
	if o.base != nil {
		b := *o.base
		b.RawQuery = ""
		b.Fragment = ""
		b.RawFragment = ""
		b.Path = ""
		b.RawPath = ""
		prefix = b.String() + strings.TrimRight(o.base.EscapedPath(), "/")
	}
	prefix += "/" + strings.Trim(domainPath, "/")

	extra := encodeExtra(o.query)
	size := strconv.Itoa(pageSize)

	return func(start int) string {
		var sb strings.Builder
		sb.WriteString(prefix)
		sb.WriteString("?start=")
		sb.WriteString(strconv.Itoa(start))
		sb.WriteString("&page_size=")
		sb.WriteString(size)
		sb.WriteString(extra)
		return sb.String()
	}
}

func encodeExtra(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		if k == "start" || k == "page_size" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if v == "" {
				continue
			}
			sb.WriteByte('&')
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}
