// Package budget tracks elapsed wall-clock time against a run ceiling.
package budget

import (
	"time"

	"go.uber.org/zap"

	"proxyherald/internal/clock"
)

// Budget is a one-way latch over the configured execution ceiling.
// Once Exceeded reports true it keeps reporting true for the rest of the
// run, regardless of what the clock does afterwards. It is polled at
// iteration boundaries only; in-flight work is never interrupted.
type Budget struct {
	start    time.Time
	max      time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	exceeded bool
}

// New starts tracking from clk.Now().
func New(max time.Duration, clk clock.Clock, logger *zap.Logger) *Budget {
	return &Budget{
		start:  clk.Now(),
		max:    max,
		clock:  clk,
		logger: logger,
	}
}

// Exceeded reports whether the run has used up its time budget.
func (b *Budget) Exceeded() bool {
	if b.exceeded {
		return true
	}
	if b.clock.Now().Sub(b.start) > b.max {
		b.logger.Warn("Execution time limit reached, stopping remaining operations",
			zap.Duration("max", b.max),
		)
		b.exceeded = true
	}
	return b.exceeded
}

// Elapsed returns the wall time consumed since tracking started.
func (b *Budget) Elapsed() time.Duration {
	return b.clock.Now().Sub(b.start)
}
