// pkg/service/assembler.go
package service

import (
	"net/http"
	"strings"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/codec"
	"github.com/joeydtaylor/steeze-services/pkg/negotiate"
)

// MessageHeaderPrefix is prepended to the message type for diagnostic headers.
const MessageHeaderPrefix = "X-Services-Messages-"

// Assembler serializes domain results into envelopes.
type Assembler struct {
	serializer *codec.Serializer
}

func NewAssembler(s *codec.Serializer) *Assembler {
	if s == nil {
		s = codec.DefaultSerializer()
	}
	return &Assembler{serializer: s}
}

// Assemble encodes data in the negotiated format (the serializer default when
// nothing was declared) and folds the cacheability of every dependency into
// the envelope.
func (a *Assembler) Assemble(data any, neg negotiate.Result, status int, messages map[string][]string, deps ...cache.Cacheable) (*Envelope, error) {
	format := neg.Format
	if !neg.Declared() {
		format = a.serializer.DefaultFormat()
	}
	if !a.serializer.Supports(format) {
		return nil, &UnsupportedFormatError{Format: format}
	}
	if data == nil {
		data = map[string]any{}
	}
	body, err := a.serializer.Serialize(data, format)
	if err != nil {
		return nil, &SerializationError{Format: format, Err: err}
	}

	h := http.Header{}
	if neg.MimeType != "" {
		h.Set("Content-Type", neg.MimeType)
	}
	for _, typ := range sortedKeys(messages) {
		if len(messages[typ]) == 0 {
			continue
		}
		h.Set(MessageHeaderPrefix+typ, strings.Join(messages[typ], "; "))
	}
	h.Set("Vary", "Accept")

	acc := cache.NewAccumulator()
	for _, d := range deps {
		acc.AddDependency(d)
	}

	return &Envelope{
		Status: status,
		Header: h,
		Body:   body,
		Cache:  acc.Metadata(),
	}, nil
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AssembleError renders err as a structured body in the negotiated format
// when possible and as plain text otherwise. Error envelopes are never cacheable.
func (a *Assembler) AssembleError(err error, neg negotiate.Result) *Envelope {
	status := StatusOf(err)
	h := http.Header{}
	h.Set("Vary", "Accept")
	env := &Envelope{Status: status, Header: h, Cache: cache.Uncacheable()}

	detail := errorBody{Error: errorDetail{Code: CodeOf(err), Message: MessageOf(err)}}
	if neg.Declared() && neg.MimeType != "" && a.serializer.Supports(neg.Format) {
		if body, serr := a.serializer.Serialize(detail, neg.Format); serr == nil {
			h.Set("Content-Type", neg.MimeType)
			env.Body = body
			return env
		}
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	env.Body = []byte(detail.Error.Message + "\n")
	return env
}

func sortedKeys(m map[string][]string) []string {
	msgs := &Messages{byType: m}
	return msgs.Types()
}
