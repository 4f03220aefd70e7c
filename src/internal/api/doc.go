// Package api provides the REST API of the keen-iprules service.
//
// The API inspects and drives a running service:
//   - GET  /api/v1/status   service status, last pass result and ledger
//   - GET  /api/v1/rules    filter store entries (?owned=true for ours only)
//   - GET  /api/v1/ledger   names the engine created and disabled
//   - GET  /api/v1/health   service, last pass and filter store checks
//   - POST /api/v1/service  {"action": "apply" | "reset" | "reload"}
//   - POST /api/v1/check    dry-run parse of a settings string
//   - GET  /metrics         Prometheus metrics
//
// Access is restricted to loopback and private networks.
//
// # Response Format
//
// All successful responses wrap data in a "data" field:
//
//	{
//	  "data": { /* response payload */ }
//	}
//
// Error responses use the following format:
//
//	{
//	  "error": {
//	    "code": "parse_failed",
//	    "message": "Human-readable error message",
//	    "details": { /* optional context */ }
//	  }
//	}
package api
