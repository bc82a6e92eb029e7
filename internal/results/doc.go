// Package results persists finished transcripts as JSON documents keyed by
// job ID.
package results
