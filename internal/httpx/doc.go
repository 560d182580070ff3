// Package httpx provides the shared retrying HTTP client. Every outbound
// call carries one total timeout, a redirect cap whose targets are re-screened
// against the SSRF rules, and a bounded exponential backoff with jitter for
// transient failures. All retry state is local to a single call.
package httpx
