// Package href converts storage keys to and from the URL form used on the wire.
//
// A resource URL is base + domain path + one escaped key segment:
//
//	https://api.example.com/categories/id/A001
//
// Decoding reads the key back from a path segment counted from the end, so
// both absolute and relative URLs resolve the same way.
package href

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrInvalidKey is returned when a segment cannot be converted to the
	// requested key type.
	ErrInvalidKey = errors.New("invalid key")
	// ErrIndexOutOfRange is returned when the requested segment does not exist.
	ErrIndexOutOfRange = errors.New("path index out of range")
)

// Key is the set of storage key types a resource may use.
type Key interface {
	~int | ~int32 | ~int64 | ~string
}

// Encode builds the URL of the resource stored under key. A nil base yields
// an absolute-path reference such as /journals/id/7.
func Encode[K Key](base *url.URL, domainPath string, key K) *url.URL {
	var u url.URL
	if base != nil {
		u = *base
		u.RawQuery = ""
		u.ForceQuery = false
		u.Fragment = ""
		u.RawFragment = ""
	}

	escaped := strings.TrimRight(u.EscapedPath(), "/")
	if dp := strings.Trim(domainPath, "/"); dp != "" {
		escaped += "/" + dp
	}
	escaped += "/" + url.PathEscape(formatKey(key))

	// The escaped form was just produced by PathEscape, so it always unescapes.
	unescaped, _ := url.PathUnescape(escaped)
	u.Path = unescaped
	u.RawPath = escaped
	return &u
}

// Decode reads the key from the last path segment of raw. Trailing
// separators are ignored.
func Decode[K Key](raw string) (K, error) {
	var zero K
	segs, err := segments(raw)
	if err != nil {
		return zero, err
	}
	if len(segs) == 0 {
		return zero, fmt.Errorf("%w: no path segment in %q", ErrInvalidKey, raw)
	}
	return parseSegment[K](segs[len(segs)-1])
}

// DecodeAt reads the key from the segment positionFromEnd places before the
// last one (0 is the last segment).
func DecodeAt[K Key](raw string, positionFromEnd int) (K, error) {
	var zero K
	segs, err := segments(raw)
	if err != nil {
		return zero, err
	}
	idx := len(segs) - positionFromEnd - 1
	if idx < 0 || idx >= len(segs) {
		return zero, fmt.Errorf("%w: position %d in %d segments", ErrIndexOutOfRange, positionFromEnd, len(segs))
	}
	return parseSegment[K](segs[idx])
}

// DecodeOptional is Decode for optional references: an empty or blank raw
// value, or a URL without any path segment, decodes to nil.
func DecodeOptional[K Key](raw string) (*K, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	segs, err := segments(raw)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, nil
	}
	k, err := parseSegment[K](segs[len(segs)-1])
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// segments returns the escaped, non-trailing path segments of raw.
func segments(raw string) ([]string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		return nil, nil
	}
	return strings.Split(p, "/"), nil
}

func parseSegment[K Key](escaped string) (K, error) {
	var k K
	seg, err := url.PathUnescape(escaped)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if seg == "" {
		return k, fmt.Errorf("%w: empty segment", ErrInvalidKey)
	}

	v := reflect.ValueOf(&k).Elem()
	switch v.Kind() {
	case reflect.String:
		v.SetString(seg)
	default:
		n, err := strconv.ParseInt(seg, 10, v.Type().Bits())
		if err != nil {
			return k, fmt.Errorf("%w: %q is not an integer", ErrInvalidKey, seg)
		}
		v.SetInt(n)
	}
	return k, nil
}

func formatKey[K Key](key K) string {
	v := reflect.ValueOf(key)
	if v.Kind() == reflect.String {
		return v.String()
	}
	return strconv.FormatInt(v.Int(), 10)
}
