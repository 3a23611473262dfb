package eventstore

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// The engines report through the same dependency-free interfaces as the command bus,
// so one set of adapters (for example the oteladapters package) serves both.
type (
	Logger                     = commandbus.Logger
	ContextualLogger           = commandbus.ContextualLogger
	MetricsCollector           = commandbus.MetricsCollector
	ContextualMetricsCollector = commandbus.ContextualMetricsCollector
	SpanContext                = commandbus.SpanContext
	TracingCollector           = commandbus.TracingCollector
)
