package metrics

import (
	"strconv"
	"time"
)

// ObserveDispatch records one pipeline run.
func ObserveDispatch(endpoint, definition string, code int, took time.Duration) {
	dispatchTotal.WithLabelValues(endpoint, definition, strconv.Itoa(code)).Inc()
	dispatchSeconds.WithLabelValues(endpoint, definition).Observe(took.Seconds())
}
