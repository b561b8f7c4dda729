// Package server implements the HTTP surface using Echo framework.
//
// Routes: ratings API (submit/lookup/leaderboard/audit), health probes, and
// Prometheus metrics. Handlers translate domain errors into structured HTTP
// responses; no rating rules live here.
package server
