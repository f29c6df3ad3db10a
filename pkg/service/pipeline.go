// pkg/service/pipeline.go
package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/codec"
	"github.com/joeydtaylor/steeze-services/pkg/negotiate"
	"go.uber.org/zap"
)

// LanguageContext is added to translatable responses.
const LanguageContext = "languages:language_interface"

// Attribute keys the pipeline itself sets.
const (
	AttrFormat     = "_format"
	AttrEndpoint   = "_endpoint"
	AttrDefinition = "_definition"
	AttrUser       = "user"
)

// Pipeline drives one definition instance from request to envelope.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	negotiator *negotiate.Negotiator
	serializer *codec.Serializer
	assembler  *Assembler
	log        *zap.Logger
}

func NewPipeline(s *codec.Serializer, log *zap.Logger) *Pipeline {
	if s == nil {
		s = codec.DefaultSerializer()
	}
	if log == nil {
		log = zap.NewNop()
	}
	var ps []negotiate.Producible
	for _, f := range s.Formats() {
		c, _ := s.Codec(f)
		ps = append(ps, negotiate.Producible{Format: f, ContentType: c.ContentType()})
	}
	return &Pipeline{
		negotiator: negotiate.NewProducible(ps...),
		serializer: s,
		assembler:  NewAssembler(s),
		log:        log,
	}
}

// Negotiate resolves the request format, failing with *UnsupportedFormatError.
func (p *Pipeline) Negotiate(r *http.Request) (negotiate.Result, error) {
	res, err := p.negotiator.Negotiate(r)
	if errors.Is(err, negotiate.ErrNotAcceptable) {
		return res, &UnsupportedFormatError{Format: res.Format}
	}
	return res, err
}

// BuildRequestResponse binds context, runs the definition, serializes the
// result and assembles the envelope. Nothing is written to the client here;
// on error no envelope is produced.
func (p *Pipeline) BuildRequestResponse(ctx context.Context, def ServiceDefinition, r *http.Request, match RouteMatch, attrs Attributes) (*Envelope, error) {
	log := p.log.With(
		zap.String("definition", def.PluginID()),
		zap.String("route", match.Name),
	)

	neg, err := p.Negotiate(r)
	if err != nil {
		log.Debug("format not acceptable", zap.String("format", neg.Format))
		return nil, err
	}

	bound := make(Attributes, len(attrs)+1)
	for k, v := range attrs {
		bound[k] = v
	}
	if neg.Declared() {
		if _, ok := bound[AttrFormat]; !ok {
			bound[AttrFormat] = neg.Format
		}
	}
	ec, err := Bind(bound, def.ContextDefinitions())
	if err != nil {
		log.Warn("context binding failed", zap.Error(err))
		return nil, err
	}

	inv := &Invocation{
		Request:    r,
		Route:      match,
		Context:    ec,
		Format:     neg,
		Messages:   NewMessages(),
		Cache:      cache.NewAccumulator(),
		serializer: p.serializer,
	}
	if def.SupportsTranslation() {
		inv.Cache.AddContexts(LanguageContext)
	}

	data, err := def.ProcessRequest(ctx, inv)
	if err != nil {
		log.Warn("process request failed", zap.Error(err), zap.Int("status", StatusOf(err)))
		return nil, err
	}

	deps := make([]cache.Cacheable, 0, ec.Len()+2)
	for _, v := range ec.Values() {
		deps = append(deps, v)
	}
	deps = append(deps, def, inv.Cache.Metadata())

	env, err := p.assembler.Assemble(data, neg, def.ResponseCode(), inv.Messages.Drain(), deps...)
	if err != nil {
		log.Error("response assembly failed", zap.Error(err), zap.String("format", neg.Format))
		return nil, err
	}
	if def.SupportsTranslation() {
		env.Header.Add("Vary", "Accept-Language")
		if lang := firstLanguage(r.Header.Get("Accept-Language")); lang != "" {
			env.Header.Set("Content-Language", lang)
		}
	}

	def.ProcessResponse(env)
	return env, nil
}

// ErrorResponse renders err for r, reusing the request's format when it is
// acceptable.
func (p *Pipeline) ErrorResponse(err error, r *http.Request) *Envelope {
	neg, nerr := p.negotiator.Negotiate(r)
	if nerr != nil {
		neg = negotiate.Result{}
	}
	return p.assembler.AssembleError(err, neg)
}

func firstLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(part)
		if i := strings.IndexByte(tag, ';'); i >= 0 {
			tag = strings.TrimSpace(tag[:i])
		}
		if tag != "" && tag != "*" {
			return tag
		}
	}
	return ""
}
