// Package speech is the REST boundary to the recognition provider: request
// and response payloads, the HTTP client with long-running operation polling,
// and transcript extraction.
package speech
