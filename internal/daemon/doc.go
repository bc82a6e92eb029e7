// Package daemon coordinates the long-running scribe process.
//
// It wires configuration, the job ledger, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Orchestration only: the pipeline stages live in their own packages.
package daemon
