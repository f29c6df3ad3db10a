// pkg/cache/accumulator.go
package cache

// Accumulator collects the cacheability of every input that shaped a response.
// The zero value is not ready for use; call NewAccumulator.
type Accumulator struct {
	meta Metadata
}

func NewAccumulator() *Accumulator { return &Accumulator{meta: New()} }

// Add folds m into the running total.
func (a *Accumulator) Add(m Metadata) *Accumulator {
	a.meta = a.meta.Merge(m)
	return a
}

// AddDependency folds the metadata of c. A nil dependency is ignored.
func (a *Accumulator) AddDependency(c Cacheable) *Accumulator {
	if c == nil {
		return a
	}
	return a.Add(c.Cacheability())
}

func (a *Accumulator) AddTags(tags ...string) *Accumulator {
	a.meta = a.meta.WithTags(tags...)
	return a
}

func (a *Accumulator) AddContexts(contexts ...string) *Accumulator {
	a.meta = a.meta.WithContexts(contexts...)
	return a
}

// MergeMaxAge lowers the running max-age to seconds if it is smaller.
func (a *Accumulator) MergeMaxAge(seconds int) *Accumulator {
	a.meta.MaxAge = MergeMaxAges(a.meta.MaxAge, seconds)
	return a
}

// Metadata returns a snapshot of the aggregate.
func (a *Accumulator) Metadata() Metadata {
	out := a.meta
	out.Tags = append([]string(nil), a.meta.Tags...)
	out.Contexts = append([]string(nil), a.meta.Contexts...)
	return out
}
