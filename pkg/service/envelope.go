// pkg/service/envelope.go
package service

import (
	"net/http"
	"strconv"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
)

// Envelope is the finished response of the pipeline.
type Envelope struct {
	Status int
	Header http.Header
	Body   []byte
	Cache  cache.Metadata
}

// WriteOptions controls how cache metadata is rendered onto the wire.
type WriteOptions struct {
	// PermanentMaxAge is the max-age sent for permanently cacheable responses.
	PermanentMaxAge int
	// DebugHeaders adds X-Cache-Tags and X-Cache-Contexts.
	DebugHeaders bool
}

// CacheControl renders the Cache-Control value for the envelope's metadata.
func (e *Envelope) CacheControl(permanentMaxAge int) string {
	switch {
	case !e.Cache.IsCacheable():
		return "no-cache, private"
	case e.Cache.MaxAge == cache.Permanent:
		return "max-age=" + strconv.Itoa(permanentMaxAge) + ", public"
	default:
		return "max-age=" + strconv.Itoa(e.Cache.MaxAge) + ", public"
	}
}

// Write sends the envelope.
func (e *Envelope) Write(w http.ResponseWriter, o WriteOptions) error {
	h := w.Header()
	for k, vs := range e.Header {
		h[k] = append([]string(nil), vs...)
	}
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", e.CacheControl(o.PermanentMaxAge))
	}
	if o.DebugHeaders {
		if tags := e.Cache.TagsHeader(); tags != "" {
			h.Set("X-Cache-Tags", tags)
		}
		if ctxs := e.Cache.ContextsHeader(); ctxs != "" {
			h.Set("X-Cache-Contexts", ctxs)
		}
	}
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(e.Body) == 0 {
		return nil
	}
	_, err := w.Write(e.Body)
	return err
}
