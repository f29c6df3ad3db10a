// Package negotiate resolves the serialization format of a request and the
// MIME type that goes with it.
package negotiate

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/munnerz/goautoneg"
)

// FormatParam is the query parameter that declares a format explicitly.
const FormatParam = "_format"

// ErrNotAcceptable is returned when the request asks for a format that
// cannot be produced.
var ErrNotAcceptable = errors.New("negotiate: format not acceptable")

// mimeTypes lists MIME types per format; the first entry is canonical.
var mimeTypes = map[string][]string{
	"html":   {"text/html", "application/xhtml+xml"},
	"txt":    {"text/plain"},
	"js":     {"application/javascript", "application/x-javascript", "text/javascript"},
	"css":    {"text/css"},
	"json":   {"application/json", "application/x-json"},
	"jsonld": {"application/ld+json"},
	"xml":    {"text/xml", "application/xml", "application/x-xml"},
	"rdf":    {"application/rdf+xml"},
	"atom":   {"application/atom+xml"},
	"rss":    {"application/rss+xml"},
	"form":   {"application/x-www-form-urlencoded"},
	"yaml":   {"application/x-yaml", "application/yaml", "text/yaml"},
}

// MimeType returns the canonical MIME type for a format, or "" if unknown.
func MimeType(format string) string {
	if m, ok := mimeTypes[strings.ToLower(format)]; ok {
		return m[0]
	}
	return ""
}

// FormatOf maps a MIME type (parameters ignored) back to its format.
func FormatOf(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for f, list := range mimeTypes {
		for _, m := range list {
			if m == mime {
				return f
			}
		}
	}
	return ""
}

// Result is the outcome of negotiation. Format is empty when the request
// declared nothing; MimeType is empty whenever Format is.
type Result struct {
	Format   string
	MimeType string
}

// Declared reports whether the request carried a format.
func (r Result) Declared() bool { return r.Format != "" }

// Negotiator picks one of the producible formats for a request.
type Negotiator struct {
	formats []string
	// types holds MIME types registered with the negotiator; they take
	// precedence over the built-in table.
	types map[string]string
}

// Producible is a format and the content type its codec emits.
type Producible struct {
	Format      string
	ContentType string
}

// New builds a negotiator over the formats a serializer can produce, in
// preference order.
func New(formats ...string) *Negotiator {
	ps := make([]Producible, 0, len(formats))
	for _, f := range formats {
		ps = append(ps, Producible{Format: f})
	}
	return NewProducible(ps...)
}

// NewProducible is New with explicit content types, so formats outside the
// built-in table can be negotiated.
func NewProducible(ps ...Producible) *Negotiator {
	n := &Negotiator{types: map[string]string{}}
	for _, p := range ps {
		f := strings.ToLower(strings.TrimSpace(p.Format))
		if f == "" || slices.Contains(n.formats, f) {
			continue
		}
		n.formats = append(n.formats, f)
		if ct := strings.ToLower(strings.TrimSpace(p.ContentType)); ct != "" {
			n.types[f] = ct
		}
	}
	return n
}

// MimeType is the content type the negotiator answers format with.
func (n *Negotiator) MimeType(format string) string {
	format = strings.ToLower(format)
	if ct, ok := n.types[format]; ok {
		return ct
	}
	return MimeType(format)
}

// Negotiate looks at the _format query parameter first, then Accept.
// A format declared with _format is returned even when it is not producible
// so callers can report it; Accept only ever selects producible formats and
// never one the client ruled out with q=0.
func (n *Negotiator) Negotiate(r *http.Request) (Result, error) {
	if f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(FormatParam))); f != "" {
		if !n.producible(f) {
			return Result{Format: f}, ErrNotAcceptable
		}
		return Result{Format: f, MimeType: n.MimeType(f)}, nil
	}

	accept := strings.TrimSpace(r.Header.Get("Accept"))
	if accept == "" {
		return Result{}, nil
	}

	var (
		wanted   []string
		excluded = map[string]bool{}
	)
	for _, c := range goautoneg.ParseAccept(accept) {
		mt := c.Type + "/" + c.SubType
		if c.Q <= 0 {
			excluded[strings.ToLower(mt)] = true
			continue
		}
		wanted = append(wanted, mt+";q="+strconv.FormatFloat(c.Q, 'f', -1, 64))
	}
	alts := slices.DeleteFunc(n.alternatives(), func(m string) bool { return excluded[m] })
	if len(wanted) == 0 || len(alts) == 0 {
		return Result{Format: accept}, ErrNotAcceptable
	}

	picked := goautoneg.Negotiate(strings.Join(wanted, ", "), alts)
	if picked == "" {
		return Result{Format: accept}, ErrNotAcceptable
	}
	f := n.formatOf(picked)
	return Result{Format: f, MimeType: n.MimeType(f)}, nil
}

func (n *Negotiator) producible(format string) bool {
	return slices.Contains(n.formats, format)
}

// alternatives lists every MIME type of every producible format, the
// registered content type first.
func (n *Negotiator) alternatives() []string {
	var out []string
	for _, f := range n.formats {
		if ct, ok := n.types[f]; ok {
			out = append(out, ct)
		}
		for _, m := range mimeTypes[f] {
			if !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}

func (n *Negotiator) formatOf(mime string) string {
	for _, f := range n.formats {
		if n.types[f] == mime {
			return f
		}
	}
	return FormatOf(mime)
}
