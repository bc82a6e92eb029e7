// Package transcribe selects and executes the recognition strategy for one
// job: synchronous inline recognition with language fallback, or long-running
// remote recognition over an object-store URI.
package transcribe
