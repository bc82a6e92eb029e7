// Package preflight validates the runtime environment before the daemon
// starts processing jobs.
package preflight
