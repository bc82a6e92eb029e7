// Package storage uploads acquired audio to an S3-compatible object store
// and hands back the durable URI the remote recognition path consumes.
package storage
