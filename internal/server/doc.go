// Package server provides the MCP server context and the side HTTP servers of
// the inboxchat serve command.
//
// # Key Components
//
// ServerContext owns references to the backend gateway, the session store and
// the conversation store, and hands them to the MCP tools. It is created once
// by the composition root; nothing here is a package-level singleton.
// ListenForLogin starts the redirect receiver for logins begun from a tool.
//
// MetricsServer exposes Prometheus metrics on a dedicated port together with
// the health endpoints from HealthChecker:
//   - /metrics for Prometheus scraping
//   - /healthz for liveness
//   - /readyz for readiness (not ready once the context shuts down)
//   - /healthz/detailed with uptime and session status
package server
