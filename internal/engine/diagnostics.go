package engine

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WarningCode categorizes non-fatal diagnostics.
type WarningCode string

const (
	// WarnCardinality: a leaf or var under the error policy yielded more
	// than one value; the first was used.
	WarnCardinality WarningCode = "CARDINALITY"

	// WarnAmbiguousFrom: a from relationship yielded more than one
	// candidate; the first was used.
	WarnAmbiguousFrom WarningCode = "AMBIGUOUS_FROM"
)

// Warning is a non-fatal diagnostic raised during extraction. Processing
// continues with the first value.
type Warning struct {
	Code WarningCode `json:"code"`

	// Path locates the node, e.g. select[1].select[0].
	Path string `json:"path"`
	Expr string `json:"expr"`

	// Count is how many values the expression yielded.
	Count int `json:"count"`
}

// Diagnostics receives warnings. It is called synchronously from the
// extraction loop.
type Diagnostics func(Warning)

// LogDiagnostics returns Diagnostics that log each warning at warn level.
// A document stream with a systematic cardinality problem would otherwise
// log once per document, so logging is limited to perSecond warnings (with
// a burst of the same size); suppressed warnings are counted and reported
// with the next logged one.
func LogDiagnostics(logger *slog.Logger, perSecond int) Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	if perSecond <= 0 {
		perSecond = 10
	}

	var (
		mu         sync.Mutex
		limiter    = rate.NewLimiter(rate.Every(time.Second/time.Duration(perSecond)), perSecond)
		suppressed int
	)

	return func(w Warning) {
		mu.Lock()
		defer mu.Unlock()

		if !limiter.Allow() {
			suppressed++
			return
		}
		attrs := []any{
			"code", string(w.Code),
			"path", w.Path,
			"expr", w.Expr,
			"count", w.Count,
		}
		if suppressed > 0 {
			attrs = append(attrs, "suppressed", suppressed)
			suppressed = 0
		}
		logger.Warn("multiple values where one was expected; using the first", attrs...)
	}
}

// CountingDiagnostics counts warnings by code and forwards them to next
// (which may be nil).
type CountingDiagnostics struct {
	mu     sync.Mutex
	counts map[WarningCode]int
	next   Diagnostics
}

// NewCountingDiagnostics returns a counter forwarding to next.
func NewCountingDiagnostics(next Diagnostics) *CountingDiagnostics {
	return &CountingDiagnostics{counts: make(map[WarningCode]int), next: next}
}

// Report records w. Pass c.Report where a Diagnostics is expected.
func (c *CountingDiagnostics) Report(w Warning) {
	c.mu.Lock()
	c.counts[w.Code]++
	c.mu.Unlock()
	if c.next != nil {
		c.next(w)
	}
}

// Count returns the number of warnings with code.
func (c *CountingDiagnostics) Count(code WarningCode) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[code]
}

// Total returns the number of warnings of any code.
func (c *CountingDiagnostics) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}
