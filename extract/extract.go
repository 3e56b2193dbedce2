// Package extract locates candidate bearer tokens in an incoming request.
//
// A [Strategy] has one method and sees the request only through the read-only
// [Request] view, so the same strategy serves net/http, gRPC metadata or any
// other transport that can answer header, cookie and query lookups.
//
// # Ordering
//
// [Pipeline] fixes the order used by certauth: the configured alternate strategy
// runs first and the standard "Authorization: Bearer" header is the fallback. When
// both sources carry a token, the alternate source wins.
//
// A strategy that finds nothing returns ("", false); it never returns an error, so
// the caller can fall through to its default behavior.
package extract

import (
	"fmt"
	"net/http"
	"strings"
)

// Request is the narrow, read-only request view strategies may inspect.
type Request interface {
	Header(name string) string
	Cookie(name string) (string, bool)
	Query(name string) (string, bool)
}

// Strategy finds a candidate token in a request.
type Strategy interface {
	Extract(r Request) (token string, ok bool)
}

// StrategyFunc adapts a function to [Strategy].
type StrategyFunc func(r Request) (string, bool)

// Extract calls f.
func (f StrategyFunc) Extract(r Request) (string, bool) {
	if f == nil {
		return "", false
	}
	return f(r)
}

// Source names an alternate token location in configuration.
type Source string

const (
	SourceNone   Source = "none"
	SourceHeader Source = "header"
	SourceCookie Source = "cookie"
	SourceQuery  Source = "query"
)

// DefaultAuthorizationHeader is the standard bearer header.
const DefaultAuthorizationHeader = "Authorization"

// BearerHeader reads "<Header>: Bearer <token>". The scheme is matched
// case-insensitively.
type BearerHeader struct {
	// Header defaults to Authorization.
	Header string
}

func (b BearerHeader) Extract(r Request) (string, bool) {
	if r == nil {
		return "", false
	}
	name := b.Header
	if name == "" {
		name = DefaultAuthorizationHeader
	}
	return bearerToken(r.Header(name))
}

// Header reads a token from a named header, optionally stripping a prefix.
type Header struct {
	Name   string
	Prefix string
}

func (h Header) Extract(r Request) (string, bool) {
	if r == nil || h.Name == "" {
		return "", false
	}
	value := strings.TrimSpace(r.Header(h.Name))
	if h.Prefix != "" {
		if len(value) < len(h.Prefix) || !strings.EqualFold(value[:len(h.Prefix)], h.Prefix) {
			return "", false
		}
		value = strings.TrimSpace(value[len(h.Prefix):])
	}
	return nonEmpty(value)
}

// Cookie reads a token from a named cookie.
type Cookie struct {
	Name string
}

func (c Cookie) Extract(r Request) (string, bool) {
	if r == nil || c.Name == "" {
		return "", false
	}
	value, ok := r.Cookie(c.Name)
	if !ok {
		return "", false
	}
	return nonEmpty(value)
}

// Query reads a token from a named query parameter.
type Query struct {
	Name string
}

func (q Query) Extract(r Request) (string, bool) {
	if r == nil || q.Name == "" {
		return "", false
	}
	value, ok := r.Query(q.Name)
	if !ok {
		return "", false
	}
	return nonEmpty(value)
}

// Chain tries each strategy in order; the first hit wins.
type Chain []Strategy

func (c Chain) Extract(r Request) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if token, ok := s.Extract(r); ok {
			return token, true
		}
	}
	return "", false
}

type none struct{}

func (none) Extract(Request) (string, bool) { return "", false }

// None returns a strategy that never finds a token.
func None() Strategy { return none{} }

// Pipeline returns the extraction order used per request: alternate first, then
// the standard bearer header. A nil alternate leaves only the bearer header.
func Pipeline(alternate Strategy) Strategy {
	if alternate == nil {
		return BearerHeader{}
	}
	if _, isNone := alternate.(none); isNone {
		return BearerHeader{}
	}
	return Chain{alternate, BearerHeader{}}
}

// FromConfig builds the alternate strategy for a configured source. SourceNone (or
// "") yields [None]; every other source requires a name.
func FromConfig(source Source, name string) (Strategy, error) {
	name = strings.TrimSpace(name)
	switch Source(strings.ToLower(string(source))) {
	case "", SourceNone:
		return None(), nil
	case SourceHeader:
		if name == "" {
			return nil, fmt.Errorf("extract: header source requires a name")
		}
		if strings.EqualFold(name, DefaultAuthorizationHeader) {
			return nil, fmt.Errorf("extract: %s is already the default source", DefaultAuthorizationHeader)
		}
		return Header{Name: name}, nil
	case SourceCookie:
		if name == "" {
			return nil, fmt.Errorf("extract: cookie source requires a name")
		}
		return Cookie{Name: name}, nil
	case SourceQuery:
		if name == "" {
			return nil, fmt.Errorf("extract: query source requires a name")
		}
		return Query{Name: name}, nil
	default:
		return nil, fmt.Errorf("extract: unknown source %q", source)
	}
}

type httpRequest struct {
	r *http.Request
}

// FromHTTP adapts an *http.Request to [Request].
func FromHTTP(r *http.Request) Request {
	return httpRequest{r: r}
}

func (h httpRequest) Header(name string) string {
	if h.r == nil {
		return ""
	}
	return h.r.Header.Get(name)
}

func (h httpRequest) Cookie(name string) (string, bool) {
	if h.r == nil {
		return "", false
	}
	c, err := h.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (h httpRequest) Query(name string) (string, bool) {
	if h.r == nil || h.r.URL == nil {
		return "", false
	}
	values, ok := h.r.URL.Query()[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Map is a [Request] backed by plain maps, for non-HTTP transports and tests.
// Header names are matched case-insensitively.
type Map struct {
	Headers map[string]string
	Cookies map[string]string
	Params  map[string]string
}

func (m Map) Header(name string) string {
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (m Map) Cookie(name string) (string, bool) {
	v, ok := m.Cookies[name]
	return v, ok
}

func (m Map) Query(name string) (string, bool) {
	v, ok := m.Params[name]
	return v, ok
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	value = strings.TrimSpace(value)
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	return nonEmpty(strings.TrimSpace(value[len(bearer):]))
}

func nonEmpty(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	return value, true
}
