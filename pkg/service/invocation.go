// pkg/service/invocation.go
package service

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/codec"
	"github.com/joeydtaylor/steeze-services/pkg/negotiate"
)

// MaxBodyBytes caps request bodies read by DecodeBody.
const MaxBodyBytes = 1 << 20

// Invocation is everything a definition sees while handling one request.
type Invocation struct {
	Request  *http.Request
	Route    RouteMatch
	Context  *ExecutionContext
	Format   negotiate.Result
	Messages *Messages
	// Cache takes cacheability that domain logic discovers while running.
	Cache *cache.Accumulator

	serializer *codec.Serializer
}

// DecodeBody decodes the request body into v using the format named by the
// Content-Type header (json when absent). An empty body leaves v untouched.
func (inv *Invocation) DecodeBody(v any) error {
	if inv.Request == nil || inv.Request.Body == nil {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(inv.Request.Body, MaxBodyBytes+1))
	if err != nil {
		return &DomainError{Status: http.StatusBadRequest, Code: "invalid_body", Message: "could not read request body", Err: err}
	}
	if len(body) > MaxBodyBytes {
		return NewDomainError(http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
	}
	if len(body) == 0 {
		return nil
	}
	s := inv.serializer
	if s == nil {
		s = codec.DefaultSerializer()
	}
	format := "json"
	if ct := inv.Request.Header.Get("Content-Type"); ct != "" {
		if f, ok := s.FormatFor(ct); ok {
			format = f
		} else {
			format = negotiate.FormatOf(ct)
		}
	}
	if err := s.Deserialize(body, format, v); err != nil {
		if errors.Is(err, codec.ErrUnsupportedFormat) {
			return &DomainError{
				Status:  http.StatusUnsupportedMediaType,
				Code:    "unsupported_media_type",
				Message: fmt.Sprintf("cannot decode %q bodies", inv.Request.Header.Get("Content-Type")),
			}
		}
		return &DomainError{Status: http.StatusBadRequest, Code: "invalid_body", Message: "malformed request body", Err: err}
	}
	return nil
}
