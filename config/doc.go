// Package config loads the runtime configuration of command bus deployments from environment variables.
//
// It turns the parsed values into ready to use building blocks: commandbus options, a pgxpool.Config,
// a sql.DB or sqlx.DB opened with the lib/pq driver, redis.Options, and OTLP exporting OpenTelemetry providers.
package config
