// Package readiness implements the readiness gate: a memoized, bounded wait
// for a shared subsystem's validating admission path to be live.
//
// A subsystem is ready when its controller Deployment has an available
// replica and, if it declares a webhook Service, that Service has at least
// one ready endpoint. A controller that exists without webhook endpoints is
// not ready: objects created in that window are rejected by the API server.
package readiness
