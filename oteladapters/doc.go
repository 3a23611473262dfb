// Package oteladapters provides OpenTelemetry implementations of the dependency-free observability
// interfaces used by the command bus and the event store engines.
//
// These adapters enable plug-and-play observability without implementing the interfaces yourself:
//
//	bus, err := commandbus.NewCommandBus[*bank.Account](
//		bank.NewAccountFactory(),
//		store,
//		eventBus,
//		commandbus.WithContextualLogger(oteladapters.NewSlogBridgeLogger("bank")),
//		commandbus.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("bank"))),
//		commandbus.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("bank"))),
//	)
package oteladapters
