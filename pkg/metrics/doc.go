/*
Package metrics defines the Prometheus collectors for the gateway.

Collectors are package-level and registered in init; the promhttp
handler is exposed through Handler and mounted by the launcher when a
metrics port is configured.
*/
package metrics
