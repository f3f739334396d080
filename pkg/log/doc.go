/*
Package log provides structured logging for the gateway using zerolog.

The log package wraps the zerolog library to provide JSON- or
console-structured logging with component-specific child loggers and
configurable log levels. The three long-lived components of the gateway
log under fixed component prefixes:

	CORE        index store, cluster arbiter, refresher
	SIMULATION  ingest endpoint (simulation-facing)
	BACKEND     backend endpoint (backend-facing)

Levels follow the launcher's --log flag: debug, verbose, info, warning,
error, critical and quiet. The verbose level sits between debug and info
in the original scheme; zerolog has no such slot, so it is treated as
debug. quiet disables all output.

Usage:

	log.Init(log.Config{Level: log.InfoLevel})
	cl := log.Core()
	cl.Info().Str("namespace", ns).Msg("sweep complete")
*/
package log
