// pkg/service/messages.go
package service

import "sort"

// Message types used across definitions.
const (
	MessageStatus  = "status"
	MessageWarning = "warning"
	MessageError   = "error"
)

// Messages collects diagnostics raised while one request is processed.
// It is passed explicitly through the Invocation and drained once by the
// assembler.
type Messages struct {
	byType map[string][]string
}

func NewMessages() *Messages { return &Messages{byType: map[string][]string{}} }

func (m *Messages) Add(typ, msg string) {
	if m.byType == nil {
		m.byType = map[string][]string{}
	}
	m.byType[typ] = append(m.byType[typ], msg)
}

// Types lists message types in sorted order.
func (m *Messages) Types() []string {
	out := make([]string, 0, len(m.byType))
	for t := range m.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Drain returns all messages and empties the collector.
func (m *Messages) Drain() map[string][]string {
	out := m.byType
	m.byType = map[string][]string{}
	if out == nil {
		out = map[string][]string{}
	}
	return out
}
