// Package api hosts the HTTP server, middleware, and REST handlers for the
// importer. Notable routes:
//   - POST /v1/imports/url and /v1/imports/social-media to submit imports.
//   - GET /v1/imports/jobs and /v1/imports/jobs/{job_id} to poll the caller's jobs.
//   - POST /v1/imports/jobs/{job_id}/cancel to cancel a non-terminal job.
//   - GET /v1/domains/{domain}/health for breaker and rate-limit state.
//   - GET /healthz, /readyz, and /metrics for probes and Prometheus.
package api
