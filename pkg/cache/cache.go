// pkg/cache/cache.go
package cache

import (
	"sort"
	"strings"
)

// Permanent marks metadata that never expires on its own.
const Permanent = -1

// Metadata is the cacheability contract of one input to a response.
// MaxAge is in seconds; 0 means uncacheable, Permanent means no limit.
type Metadata struct {
	Tags     []string `toml:"tags" json:"tags,omitempty"`
	Contexts []string `toml:"contexts" json:"contexts,omitempty"`
	MaxAge   int      `toml:"max_age" json:"maxAge"`
}

// Cacheable is implemented by anything that carries its own cache metadata.
type Cacheable interface {
	Cacheability() Metadata
}

// New returns neutral metadata: no tags, no contexts, permanent.
func New() Metadata { return Metadata{MaxAge: Permanent} }

// Uncacheable returns metadata with max-age 0.
func Uncacheable() Metadata { return Metadata{MaxAge: 0} }

// WithMaxAge returns a copy with the given max-age.
func (m Metadata) WithMaxAge(seconds int) Metadata {
	m.MaxAge = seconds
	return m
}

// WithTags returns a copy with tags appended.
func (m Metadata) WithTags(tags ...string) Metadata {
	m.Tags = union(m.Tags, tags)
	return m
}

// WithContexts returns a copy with contexts appended.
func (m Metadata) WithContexts(contexts ...string) Metadata {
	m.Contexts = union(m.Contexts, contexts)
	return m
}

// Cacheability lets plain metadata act as a dependency.
func (m Metadata) Cacheability() Metadata { return m }

// IsCacheable reports whether the response may be stored at all.
func (m Metadata) IsCacheable() bool { return m.MaxAge != 0 }

// Merge folds o into m: tags and contexts are unioned, max-age is the minimum.
func (m Metadata) Merge(o Metadata) Metadata {
	return Metadata{
		Tags:     union(m.Tags, o.Tags),
		Contexts: union(m.Contexts, o.Contexts),
		MaxAge:   MergeMaxAges(m.MaxAge, o.MaxAge),
	}
}

// MergeMaxAges returns the smaller max-age, treating Permanent as infinity.
func MergeMaxAges(a, b int) int {
	if a == Permanent {
		return b
	}
	if b == Permanent {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// TagsHeader renders tags the way they are exposed in debug headers.
func (m Metadata) TagsHeader() string { return strings.Join(m.Tags, " ") }

// ContextsHeader renders contexts the way they are exposed in debug headers.
func (m Metadata) ContextsHeader() string { return strings.Join(m.Contexts, " ") }

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
