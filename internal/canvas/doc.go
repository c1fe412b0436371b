// Package canvas is the HTTP client for the Canvas LMS REST API.
//
// It provides the two fetch primitives the crawler is built on:
//
//   - FetchOne issues a single authenticated GET with a bounded timeout and
//     retries the request when Canvas throttles it with 403 Forbidden
//   - FetchPages walks a paginated collection by following the rel="next"
//     entry of the Link response header
//
// plus Head and Open for resolving and streaming file downloads.
//
// # Rate limiting
//
// Canvas answers 403 both for throttled requests and for resources the token
// may not read. The client cannot tell the two apart, so it retries a 403 up to
// three times with exponential backoff and jitter and then hands the last 403
// response back to the caller instead of failing. Callers decide whether the
// resource is simply absent.
//
// Transport errors (DNS, refused connections, timeouts) are never retried.
package canvas
