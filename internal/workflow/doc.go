// Package workflow coordinates the job pipeline: submission, the single
// worker loop, state persistence across memory, ledger, and snapshots, and
// crash recovery.
package workflow
